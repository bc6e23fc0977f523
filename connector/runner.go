package connector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ingestkit/ingestkit/config"
	"github.com/ingestkit/ingestkit/engine"
	"github.com/ingestkit/ingestkit/errors"
	"github.com/ingestkit/ingestkit/logger"
	"github.com/ingestkit/ingestkit/resilience"
	"github.com/ingestkit/ingestkit/secrets"
)

// loadWait caps how long a batch waits for a slot on a saturated
// destination before the attempt fails.
const loadWait = 5 * time.Minute

// LocalRunner executes a pipeline in-process: it resolves the source
// and destination connectors from the pipeline spec, streams batches
// between them, and returns the total row count. Concurrent loads into
// the same destination are capped by its max_parallel_loads setting,
// shared across all pipelines in the process.
type LocalRunner struct {
	newSource      func(pipeline string, spec config.SourceSpec, bundle secrets.Bundle) (Source, error)
	newDestination func(pipeline string, spec config.DestinationSpec, bundle secrets.Bundle) (Destination, error)
	log            *logger.Logger

	mu        sync.Mutex
	bulkheads map[string]*resilience.Bulkhead
}

// LocalRunnerOption customizes a LocalRunner.
type LocalRunnerOption func(*LocalRunner)

// WithSourceFactory overrides source resolution, used in tests.
func WithSourceFactory(fn func(pipeline string, spec config.SourceSpec, bundle secrets.Bundle) (Source, error)) LocalRunnerOption {
	return func(r *LocalRunner) { r.newSource = fn }
}

// WithDestinationFactory overrides destination resolution, used in tests.
func WithDestinationFactory(fn func(pipeline string, spec config.DestinationSpec, bundle secrets.Bundle) (Destination, error)) LocalRunnerOption {
	return func(r *LocalRunner) { r.newDestination = fn }
}

// WithRunnerLogger sets the runner's logger.
func WithRunnerLogger(l *logger.Logger) LocalRunnerOption {
	return func(r *LocalRunner) { r.log = l }
}

// NewLocalRunner creates a runner backed by the built-in connector kinds.
func NewLocalRunner(opts ...LocalRunnerOption) *LocalRunner {
	r := &LocalRunner{
		newSource:      NewSource,
		newDestination: NewDestination,
		log:            logger.Get("runner"),
		bulkheads:      make(map[string]*resilience.Bulkhead),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run implements engine.Runner.
func (r *LocalRunner) Run(ctx context.Context, req engine.RunRequest) (engine.RunResult, error) {
	srcSpec := req.Spec.Source
	if len(req.Ref.Parameters) > 0 {
		srcSpec.Params = mergeParams(srcSpec.Params, req.Ref.Parameters)
	}

	source, err := r.newSource(req.Spec.Name, srcSpec, req.Secrets)
	if err != nil {
		return engine.RunResult{}, err
	}
	dest, err := r.newDestination(req.Spec.Name, req.Spec.Destination, req.Secrets)
	if err != nil {
		return engine.RunResult{}, err
	}
	defer dest.Close(context.WithoutCancel(ctx))

	bh := r.bulkhead(req.Spec.Destination)
	loadTimeout := req.Spec.Destination.Timeout()

	var rows int64
	err = source.Extract(ctx, func(ctx context.Context, batch Batch) error {
		batch.RunID = req.RunID
		load := func() error {
			loadCtx := ctx
			if loadTimeout > 0 {
				var cancel context.CancelFunc
				loadCtx, cancel = context.WithTimeout(ctx, loadTimeout)
				defer cancel()
			}
			if err := dest.Load(loadCtx, batch); err != nil {
				// The per-load deadline fired while the run itself is
				// still live.
				if loadCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
					return errors.Timeout(fmt.Sprintf("load %s batch %d", req.Spec.Name, batch.Seq))
				}
				return err
			}
			return nil
		}

		var loadErr error
		if bh != nil {
			loadErr = bh.Execute(ctx, load)
		} else {
			loadErr = load()
		}
		if loadErr != nil {
			return loadErr
		}
		rows += int64(len(batch.Records))
		return nil
	})
	if err != nil {
		return engine.RunResult{}, err
	}

	r.log.WithContext(ctx).Debug("pipeline moved rows", logger.Fields(
		logger.FieldPipeline, req.Spec.Name,
		logger.FieldRows, rows,
	))
	return engine.RunResult{RowsProcessed: rows}, nil
}

// bulkhead returns the shared load limiter for a destination, or nil
// when the destination does not cap parallel loads.
func (r *LocalRunner) bulkhead(spec config.DestinationSpec) *resilience.Bulkhead {
	if spec.MaxParallelLoads <= 0 {
		return nil
	}
	key := destinationKey(spec)

	r.mu.Lock()
	defer r.mu.Unlock()
	if bh, ok := r.bulkheads[key]; ok {
		return bh
	}
	bh := resilience.NewBulkhead(key, spec.MaxParallelLoads, loadWait)
	r.bulkheads[key] = bh
	return bh
}

// destinationKey identifies a destination across pipeline specs so
// loads into the same target share one limiter.
func destinationKey(d config.DestinationSpec) string {
	switch d.Kind {
	case config.DestPostgres:
		return fmt.Sprintf("postgres:%s:%s.%s", d.DSNSecretKey, d.Schema, d.Table)
	case config.DestObjectStore:
		return fmt.Sprintf("object_store:%s:%s", d.EndpointSecretKey, d.Bucket)
	default:
		return string(d.Kind)
	}
}

func mergeParams(base map[string]string, overrides map[string]any) map[string]string {
	merged := make(map[string]string, len(base)+len(overrides))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = fmt.Sprint(v)
	}
	return merged
}
