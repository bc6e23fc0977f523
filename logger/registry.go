package logger

import (
	"sync"
)

// registry holds the per-component loggers handed out by Get. The
// engine's moving parts each log under their own component name:
// orchestrator, engine, runner, scheduler, webhook, notify.
var registry = &loggerRegistry{
	loggers: make(map[string]*Logger),
}

type loggerRegistry struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
}

// Register stores a named component logger.
func Register(name string, l *Logger) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.loggers[name] = l
}

// Get retrieves a component logger. Unregistered names fall back to
// the global logger tagged with the component, so packages can call
// Get before Init has run.
func Get(name string) *Logger {
	registry.mu.RLock()
	l, ok := registry.loggers[name]
	registry.mu.RUnlock()
	if ok {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}

// RegisterDefaults seeds the registry with component loggers derived
// from the global config. Call after Init so components pick up the
// configured level and format.
func RegisterDefaults(names ...string) {
	for _, name := range names {
		Register(name, GetGlobalLogger().WithComponent(name))
	}
}
