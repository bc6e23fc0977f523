package connector

import (
	"context"
	"fmt"

	"github.com/ingestkit/ingestkit/config"
	"github.com/ingestkit/ingestkit/errors"
	"github.com/ingestkit/ingestkit/secrets"
)

// Record is one extracted row, keyed by column or field name.
type Record map[string]any

// Batch is one page of records moving from a source to a destination.
type Batch struct {
	Pipeline string
	RunID    string
	Seq      int
	Records  []Record
}

// Source extracts records and hands them off in batches. Extract calls
// emit once per batch, in order, and stops on the first emit error.
type Source interface {
	Kind() config.SourceKind
	Extract(ctx context.Context, emit func(context.Context, Batch) error) error
}

// Destination loads batches into a target system. Close releases any
// connection the destination holds; it is safe to call on a destination
// that never loaded anything.
type Destination interface {
	Kind() config.DestinationKind
	Load(ctx context.Context, batch Batch) error
	Close(ctx context.Context) error
}

// NewSource resolves a source connector for the pipeline. The kind set
// is closed; any kind this factory does not know is an invalid
// configuration.
func NewSource(pipeline string, spec config.SourceSpec, bundle secrets.Bundle) (Source, error) {
	switch spec.Kind {
	case config.SourceRESTAPI:
		return newRESTSource(pipeline, spec, bundle), nil
	case config.SourceFile:
		return newFileSource(pipeline, spec), nil
	default:
		return nil, unknownKind(pipeline, "source", string(spec.Kind))
	}
}

// NewDestination resolves a destination connector for the pipeline.
func NewDestination(pipeline string, spec config.DestinationSpec, bundle secrets.Bundle) (Destination, error) {
	switch spec.Kind {
	case config.DestPostgres:
		return newPostgresDestination(pipeline, spec, bundle), nil
	case config.DestObjectStore:
		return newObjectStoreDestination(pipeline, spec, bundle), nil
	default:
		return nil, unknownKind(pipeline, "destination", string(spec.Kind))
	}
}

func unknownKind(pipeline, role, kind string) error {
	return errors.InvalidConfig("", fmt.Sprintf("pipeline %q: unknown %s kind %q", pipeline, role, kind))
}
