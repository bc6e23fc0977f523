package connector

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ingestkit/ingestkit/config"
	"github.com/ingestkit/ingestkit/errors"
)

// fileBatchSize bounds how many records a single batch carries when
// reading from a local file.
const fileBatchSize = 500

// fileSource reads newline-delimited JSON or CSV from the local
// filesystem. CSV files must carry a header row; its fields become the
// record keys.
type fileSource struct {
	pipeline string
	spec     config.SourceSpec
}

func newFileSource(pipeline string, spec config.SourceSpec) *fileSource {
	return &fileSource{pipeline: pipeline, spec: spec}
}

func (s *fileSource) Kind() config.SourceKind { return config.SourceFile }

func (s *fileSource) Extract(ctx context.Context, emit func(context.Context, Batch) error) error {
	f, err := os.Open(s.spec.Path)
	if err != nil {
		return errors.PermanentPipeline(s.pipeline, err)
	}
	defer f.Close()

	switch s.spec.Format {
	case "csv":
		return s.extractCSV(ctx, f, emit)
	default:
		return s.extractNDJSON(ctx, f, emit)
	}
}

func (s *fileSource) extractNDJSON(ctx context.Context, r io.Reader, emit func(context.Context, Batch) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	batch := make([]Record, 0, fileBatchSize)
	seq, line := 0, 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return errors.PermanentPipeline(s.pipeline,
				fmt.Errorf("%s line %d: %w", s.spec.Path, line, err))
		}
		batch = append(batch, rec)
		if len(batch) == fileBatchSize {
			if err := s.flush(ctx, &batch, &seq, emit); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.PermanentPipeline(s.pipeline, err)
	}
	return s.flush(ctx, &batch, &seq, emit)
}

func (s *fileSource) extractCSV(ctx context.Context, r io.Reader, emit func(context.Context, Batch) error) error {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return errors.PermanentPipeline(s.pipeline, err)
	}

	batch := make([]Record, 0, fileBatchSize)
	seq := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.PermanentPipeline(s.pipeline, err)
		}
		rec := make(Record, len(header))
		for i, field := range header {
			rec[field] = row[i]
		}
		batch = append(batch, rec)
		if len(batch) == fileBatchSize {
			if err := s.flush(ctx, &batch, &seq, emit); err != nil {
				return err
			}
		}
	}
	return s.flush(ctx, &batch, &seq, emit)
}

func (s *fileSource) flush(ctx context.Context, batch *[]Record, seq *int, emit func(context.Context, Batch) error) error {
	if len(*batch) == 0 {
		return nil
	}
	b := Batch{Pipeline: s.pipeline, Seq: *seq, Records: *batch}
	*batch = make([]Record, 0, fileBatchSize)
	*seq++
	return emit(ctx, b)
}
