package connector

import (
	"context"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ingestkit/ingestkit/config"
	"github.com/ingestkit/ingestkit/errors"
	"github.com/ingestkit/ingestkit/secrets"
)

// postgresDestination bulk-loads batches into a warehouse table using
// the COPY protocol. The connection pool is opened on first load so a
// pipeline that extracts nothing never dials the database.
type postgresDestination struct {
	pipeline string
	spec     config.DestinationSpec
	dsn      string

	mu   sync.Mutex
	pool *pgxpool.Pool
}

func newPostgresDestination(pipeline string, spec config.DestinationSpec, bundle secrets.Bundle) *postgresDestination {
	dsn, _ := bundle.Get(spec.DSNSecretKey)
	return &postgresDestination{pipeline: pipeline, spec: spec, dsn: dsn}
}

func (d *postgresDestination) Kind() config.DestinationKind { return config.DestPostgres }

func (d *postgresDestination) Load(ctx context.Context, batch Batch) error {
	if len(batch.Records) == 0 {
		return nil
	}

	pool, err := d.connect(ctx)
	if err != nil {
		return err
	}

	columns := columnsOf(batch.Records[0])
	rows := make([][]any, len(batch.Records))
	for i, rec := range batch.Records {
		row := make([]any, len(columns))
		for j, col := range columns {
			row[j] = rec[col]
		}
		rows[i] = row
	}

	table := pgx.Identifier{d.spec.Table}
	if d.spec.Schema != "" {
		table = pgx.Identifier{d.spec.Schema, d.spec.Table}
	}
	if _, err := pool.CopyFrom(ctx, table, columns, pgx.CopyFromRows(rows)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.TransientPipeline(d.pipeline, err)
	}
	return nil
}

func (d *postgresDestination) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pool != nil {
		d.pool.Close()
		d.pool = nil
	}
	return nil
}

func (d *postgresDestination) connect(ctx context.Context) (*pgxpool.Pool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pool != nil {
		return d.pool, nil
	}

	pool, err := pgxpool.New(ctx, d.dsn)
	if err != nil {
		return nil, errors.ConnectionFailed("postgres", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.ConnectionFailed("postgres", err)
	}
	d.pool = pool
	return pool, nil
}

// columnsOf derives a stable column order from a record's keys.
func columnsOf(rec Record) []string {
	columns := make([]string, 0, len(rec))
	for k := range rec {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	return columns
}
