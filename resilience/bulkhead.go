package resilience

import (
	"context"
	"errors"
	"time"
)

// Common bulkhead errors.
var (
	ErrBulkheadFull    = errors.New("bulkhead is full")
	ErrBulkheadTimeout = errors.New("bulkhead wait timeout")
)

// Bulkhead caps the number of concurrent calls into a shared
// collaborator. Callers beyond the cap wait up to MaxWait for a slot.
type Bulkhead struct {
	name    string
	maxWait time.Duration
	sem     chan struct{}
}

// NewBulkhead creates a bulkhead allowing maxConcurrent simultaneous
// calls. A maxWait of 0 rejects immediately when full.
func NewBulkhead(name string, maxConcurrent int, maxWait time.Duration) *Bulkhead {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Bulkhead{
		name:    name,
		maxWait: maxWait,
		sem:     make(chan struct{}, maxConcurrent),
	}
}

// Execute runs fn within the bulkhead. Returns ErrBulkheadFull or
// ErrBulkheadTimeout when no slot frees up in time.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	if err := b.acquire(ctx); err != nil {
		return err
	}
	defer func() { <-b.sem }()
	return fn()
}

func (b *Bulkhead) acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	default:
	}

	if b.maxWait <= 0 {
		return ErrBulkheadFull
	}

	timer := time.NewTimer(b.maxWait)
	defer timer.Stop()

	select {
	case b.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrBulkheadTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InUse returns the number of slots currently held.
func (b *Bulkhead) InUse() int { return len(b.sem) }

// MaxConcurrent returns the slot capacity.
func (b *Bulkhead) MaxConcurrent() int { return cap(b.sem) }

// Name returns the bulkhead's identifier.
func (b *Bulkhead) Name() string { return b.name }
