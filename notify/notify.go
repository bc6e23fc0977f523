package notify

import (
	"context"

	"github.com/ingestkit/ingestkit/config"
	"github.com/ingestkit/ingestkit/engine"
	"github.com/ingestkit/ingestkit/logger"
)

// Notifier delivers a job run outcome to one channel.
type Notifier interface {
	Notify(ctx context.Context, result *engine.JobResult) error
}

// Dispatcher routes run outcomes to the channels named by a job's
// notification policy. Unknown channels are logged and skipped; a
// notification failure never affects the run outcome.
type Dispatcher struct {
	channels map[string]Notifier
	log      *logger.Logger
}

// NewDispatcher creates a dispatcher with the log channel registered.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		channels: make(map[string]Notifier),
		log:      logger.Get("notify"),
	}
	d.Register("log", NewLogNotifier())
	return d
}

// Register adds or replaces a channel.
func (d *Dispatcher) Register(name string, n Notifier) {
	d.channels[name] = n
}

// Dispatch sends the result to every configured channel if the policy
// selects this outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, policy config.NotificationsConfig, result *engine.JobResult) {
	succeeded := result.Status == engine.StatusSucceeded
	if succeeded && !policy.OnSuccess {
		return
	}
	if !succeeded && !policy.OnFailure {
		return
	}

	for _, name := range policy.Channels {
		n, ok := d.channels[name]
		if !ok {
			d.log.WithContext(ctx).Warn("unknown notification channel", logger.Fields(
				"channel", name,
				logger.FieldJob, result.Job,
			))
			continue
		}
		if err := n.Notify(ctx, result); err != nil {
			d.log.WithContext(ctx).Error("notification failed", logger.Fields(
				"channel", name,
				logger.FieldJob, result.Job,
				logger.FieldError, err.Error(),
			))
		}
	}
}
