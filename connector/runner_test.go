package connector

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ingestkit/ingestkit/config"
	"github.com/ingestkit/ingestkit/engine"
	"github.com/ingestkit/ingestkit/errors"
	"github.com/ingestkit/ingestkit/secrets"
)

type fakeSource struct {
	kind    config.SourceKind
	spec    config.SourceSpec
	batches []Batch
	err     error
}

func (s *fakeSource) Kind() config.SourceKind { return s.kind }

func (s *fakeSource) Extract(ctx context.Context, emit func(context.Context, Batch) error) error {
	for _, b := range s.batches {
		if err := emit(ctx, b); err != nil {
			return err
		}
	}
	return s.err
}

type fakeDestination struct {
	mu      sync.Mutex
	batches []Batch
	loadErr error
	delay   time.Duration
	closed  bool
}

func (d *fakeDestination) Kind() config.DestinationKind { return config.DestPostgres }

func (d *fakeDestination) Load(ctx context.Context, batch Batch) error {
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	d.mu.Lock()
	d.batches = append(d.batches, batch)
	d.mu.Unlock()
	return d.loadErr
}

func (d *fakeDestination) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func runnerWith(src *fakeSource, dest *fakeDestination) *LocalRunner {
	return NewLocalRunner(
		WithSourceFactory(func(pipeline string, spec config.SourceSpec, bundle secrets.Bundle) (Source, error) {
			src.spec = spec
			return src, nil
		}),
		WithDestinationFactory(func(pipeline string, spec config.DestinationSpec, bundle secrets.Bundle) (Destination, error) {
			return dest, nil
		}),
	)
}

func runRequest() engine.RunRequest {
	return engine.RunRequest{
		RunID: "run-1",
		Job:   "nightly",
		Ref:   config.PipelineRef{Name: "orders"},
		Spec: &config.PipelineSpec{
			Name:        "orders",
			Source:      config.SourceSpec{Kind: config.SourceRESTAPI},
			Destination: config.DestinationSpec{Kind: config.DestPostgres, Table: "orders"},
		},
	}
}

// --- LocalRunner tests ---

func TestLocalRunner_MovesAllBatches(t *testing.T) {
	src := &fakeSource{batches: []Batch{
		{Pipeline: "orders", Seq: 0, Records: []Record{{"id": 1}, {"id": 2}}},
		{Pipeline: "orders", Seq: 1, Records: []Record{{"id": 3}}},
	}}
	dest := &fakeDestination{}

	result, err := runnerWith(src, dest).Run(context.Background(), runRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RowsProcessed != 3 {
		t.Errorf("expected 3 rows, got %d", result.RowsProcessed)
	}
	if len(dest.batches) != 2 {
		t.Fatalf("expected 2 loaded batches, got %d", len(dest.batches))
	}
	if dest.batches[0].RunID != "run-1" {
		t.Errorf("expected run id stamped on batch, got %q", dest.batches[0].RunID)
	}
	if !dest.closed {
		t.Error("expected destination closed after run")
	}
}

func TestLocalRunner_ParameterOverrides(t *testing.T) {
	src := &fakeSource{}
	dest := &fakeDestination{}
	req := runRequest()
	req.Spec.Source.Params = map[string]string{"region": "eu", "full": "false"}
	req.Ref.Parameters = map[string]any{"full": true, "since": "2026-01-01"}

	if _, err := runnerWith(src, dest).Run(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	want := map[string]string{"region": "eu", "full": "true", "since": "2026-01-01"}
	for k, v := range want {
		if src.spec.Params[k] != v {
			t.Errorf("expected param %s=%s, got %q", k, v, src.spec.Params[k])
		}
	}
}

func TestLocalRunner_ExtractErrorPropagates(t *testing.T) {
	src := &fakeSource{err: errors.TransientPipeline("orders", nil)}
	dest := &fakeDestination{}

	_, err := runnerWith(src, dest).Run(context.Background(), runRequest())
	if !errors.IsCode(err, errors.ErrCodePipelineTransient) {
		t.Errorf("expected transient extract error, got %v", err)
	}
	if !dest.closed {
		t.Error("expected destination closed on failure")
	}
}

func TestLocalRunner_LoadErrorStopsExtraction(t *testing.T) {
	src := &fakeSource{batches: []Batch{
		{Records: []Record{{"id": 1}}},
		{Records: []Record{{"id": 2}}},
	}}
	dest := &fakeDestination{loadErr: errors.TransientPipeline("orders", nil)}

	result, err := runnerWith(src, dest).Run(context.Background(), runRequest())
	if err == nil {
		t.Fatal("expected load error")
	}
	if result.RowsProcessed != 0 {
		t.Errorf("expected no rows counted on failure, got %d", result.RowsProcessed)
	}
	if len(dest.batches) != 1 {
		t.Errorf("expected extraction to stop after first failed load, got %d loads", len(dest.batches))
	}
}

func TestLocalRunner_LoadTimeout(t *testing.T) {
	src := &fakeSource{batches: []Batch{{Records: []Record{{"id": 1}}}}}
	dest := &fakeDestination{delay: 500 * time.Millisecond}
	req := runRequest()
	req.Spec.Destination.TimeoutSeconds = 1

	start := time.Now()
	if _, err := runnerWith(src, dest).Run(context.Background(), req); err != nil {
		t.Fatalf("expected load within timeout to succeed, got %v", err)
	}
	if time.Since(start) < 400*time.Millisecond {
		t.Error("expected load to actually wait on the destination")
	}
}

func TestLocalRunner_LoadTimeoutExceeded(t *testing.T) {
	src := &fakeSource{batches: []Batch{{Records: []Record{{"id": 1}}}}}
	dest := &fakeDestination{delay: 3 * time.Second}
	req := runRequest()
	req.Spec.Destination.TimeoutSeconds = 1

	_, err := runnerWith(src, dest).Run(context.Background(), req)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.IsCode(err, errors.ErrCodeTimeout) {
		t.Errorf("expected TIMEOUT, got %v", err)
	}
	if !errors.IsRetryable(err) {
		t.Error("expected load timeout to be retryable")
	}
}

func TestLocalRunner_SharedBulkheadPerDestination(t *testing.T) {
	r := NewLocalRunner()
	spec := config.DestinationSpec{
		Kind: config.DestPostgres, Schema: "raw", Table: "orders", MaxParallelLoads: 2,
	}

	bh1 := r.bulkhead(spec)
	bh2 := r.bulkhead(spec)
	if bh1 == nil || bh1 != bh2 {
		t.Error("expected same destination spec to share one bulkhead")
	}
	if bh1.MaxConcurrent() != 2 {
		t.Errorf("expected capacity 2, got %d", bh1.MaxConcurrent())
	}

	other := spec
	other.Table = "customers"
	if r.bulkhead(other) == bh1 {
		t.Error("expected different table to get its own bulkhead")
	}

	if r.bulkhead(config.DestinationSpec{Kind: config.DestPostgres, Table: "t"}) != nil {
		t.Error("expected nil bulkhead when max_parallel_loads unset")
	}
}

func TestLocalRunner_BulkheadBoundsConcurrentLoads(t *testing.T) {
	var current, peak int32
	src := &fakeSource{batches: []Batch{
		{Records: []Record{{"id": 1}}},
		{Records: []Record{{"id": 2}}},
		{Records: []Record{{"id": 3}}},
	}}

	r := NewLocalRunner(
		WithSourceFactory(func(string, config.SourceSpec, secrets.Bundle) (Source, error) {
			return src, nil
		}),
		WithDestinationFactory(func(string, config.DestinationSpec, secrets.Bundle) (Destination, error) {
			return destFunc(func(ctx context.Context, b Batch) error {
				n := atomic.AddInt32(&current, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&current, -1)
				return nil
			}), nil
		}),
	)

	req := runRequest()
	req.Spec.Destination.MaxParallelLoads = 1

	// Three runs of the same pipeline loading into one destination.
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Run(context.Background(), req); err != nil {
				t.Errorf("unexpected run error: %v", err)
			}
		}()
	}
	wg.Wait()

	if peak > 1 {
		t.Errorf("expected at most 1 concurrent load, saw %d", peak)
	}
}

// destFunc adapts a function to the Destination interface.
type destFunc func(ctx context.Context, b Batch) error

func (f destFunc) Kind() config.DestinationKind               { return config.DestPostgres }
func (f destFunc) Load(ctx context.Context, b Batch) error    { return f(ctx, b) }
func (f destFunc) Close(ctx context.Context) error            { return nil }
