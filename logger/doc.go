// Package logger provides structured logging for the orchestration engine
// using zerolog.
//
// It supports multiple output formats (JSON, console), log level
// configuration, and component-scoped loggers with structured fields for
// jobs, pipelines, waves and runs.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("engine")
//	log.Info("wave completed", logger.Fields(logger.FieldJob, "nightly", logger.FieldWave, 2))
package logger
