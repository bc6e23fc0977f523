package notify

import (
	"context"

	"github.com/ingestkit/ingestkit/engine"
	"github.com/ingestkit/ingestkit/logger"
)

// LogNotifier writes a run summary to the structured log. It is the
// default channel and can never fail.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.Get("notify")}
}

func (n *LogNotifier) Notify(ctx context.Context, result *engine.JobResult) error {
	fields := logger.Fields(
		logger.FieldJob, result.Job,
		logger.FieldRunID, result.RunID,
		logger.FieldStatus, string(result.Status),
		logger.FieldTrigger, result.Trigger,
		logger.FieldDuration, result.Duration().Milliseconds(),
		logger.FieldRows, result.RowsProcessed(),
		"pipelines", len(result.Outcomes),
	)

	log := n.log.WithContext(ctx)
	if result.Status == engine.StatusSucceeded {
		log.Info("job run succeeded", fields)
		return nil
	}

	for _, o := range result.Outcomes {
		if o.Err == nil {
			continue
		}
		log.Error("pipeline did not succeed", logger.Fields(
			logger.FieldJob, result.Job,
			logger.FieldRunID, result.RunID,
			logger.FieldPipeline, o.Pipeline,
			logger.FieldStatus, string(o.Status),
			logger.FieldError, o.Err.Error(),
		))
	}
	log.Error("job run did not succeed", fields)
	return nil
}
