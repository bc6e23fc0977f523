package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ingestkit/ingestkit/engine"
	"github.com/ingestkit/ingestkit/errors"
)

// RunSummary is the JSON payload a webhook channel posts.
type RunSummary struct {
	Job           string            `json:"job"`
	RunID         string            `json:"run_id"`
	Environment   string            `json:"environment"`
	Trigger       string            `json:"trigger,omitempty"`
	Status        string            `json:"status"`
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    time.Time         `json:"finished_at"`
	DurationMs    int64             `json:"duration_ms"`
	RowsProcessed int64             `json:"rows_processed"`
	Pipelines     []PipelineSummary `json:"pipelines"`
}

// PipelineSummary is one pipeline's outcome inside a RunSummary.
type PipelineSummary struct {
	Pipeline string `json:"pipeline"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts,omitempty"`
	Rows     int64  `json:"rows,omitempty"`
	Error    string `json:"error,omitempty"`
}

// WebhookNotifier posts run summaries to an HTTP endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, result *engine.JobResult) error {
	body, err := json.Marshal(Summarize(result))
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.ConnectionFailed("notification webhook", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Summarize flattens a JobResult into its wire form.
func Summarize(result *engine.JobResult) RunSummary {
	summary := RunSummary{
		Job:           result.Job,
		RunID:         result.RunID,
		Environment:   string(result.Environment),
		Trigger:       result.Trigger,
		Status:        string(result.Status),
		StartedAt:     result.StartedAt,
		FinishedAt:    result.FinishedAt,
		DurationMs:    result.Duration().Milliseconds(),
		RowsProcessed: result.RowsProcessed(),
	}
	for _, o := range result.Outcomes {
		ps := PipelineSummary{
			Pipeline: o.Pipeline,
			Status:   string(o.Status),
			Attempts: o.Attempts,
			Rows:     o.RowsProcessed,
		}
		if o.Err != nil {
			ps.Error = o.Err.Error()
		}
		summary.Pipelines = append(summary.Pipelines, ps)
	}
	return summary
}
