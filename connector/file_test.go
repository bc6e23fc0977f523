package connector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ingestkit/ingestkit/config"
	"github.com/ingestkit/ingestkit/errors"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// --- File source tests ---

func TestFileSource_NDJSON(t *testing.T) {
	path := writeFixture(t, "orders.ndjson",
		`{"id": 1, "total": 9.5}`+"\n\n"+`{"id": 2, "total": 3.0}`+"\n")

	s := newFileSource("orders", config.SourceSpec{
		Kind: config.SourceFile, Path: path, Format: "ndjson",
	})

	batches := collectBatches(t, s)
	if len(batches) != 1 || len(batches[0].Records) != 2 {
		t.Fatalf("unexpected batches %+v", batches)
	}
	if batches[0].Records[0]["id"] != float64(1) {
		t.Errorf("unexpected record %+v", batches[0].Records[0])
	}
}

func TestFileSource_CSV(t *testing.T) {
	path := writeFixture(t, "orders.csv", "id,region\n1,eu\n2,us\n")

	s := newFileSource("orders", config.SourceSpec{
		Kind: config.SourceFile, Path: path, Format: "csv",
	})

	batches := collectBatches(t, s)
	if len(batches) != 1 || len(batches[0].Records) != 2 {
		t.Fatalf("unexpected batches %+v", batches)
	}
	if batches[0].Records[1]["region"] != "us" {
		t.Errorf("unexpected record %+v", batches[0].Records[1])
	}
}

func TestFileSource_CSVHeaderOnly(t *testing.T) {
	path := writeFixture(t, "empty.csv", "id,region\n")
	s := newFileSource("orders", config.SourceSpec{Kind: config.SourceFile, Path: path, Format: "csv"})
	if batches := collectBatches(t, s); len(batches) != 0 {
		t.Errorf("expected no batches for header-only file, got %d", len(batches))
	}
}

func TestFileSource_BatchesLargeFile(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < fileBatchSize+10; i++ {
		fmt.Fprintf(&sb, `{"id": %d}`+"\n", i)
	}
	path := writeFixture(t, "big.ndjson", sb.String())

	s := newFileSource("orders", config.SourceSpec{Kind: config.SourceFile, Path: path})
	batches := collectBatches(t, s)

	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if len(batches[0].Records) != fileBatchSize || len(batches[1].Records) != 10 {
		t.Errorf("unexpected batch sizes %d, %d", len(batches[0].Records), len(batches[1].Records))
	}
	if batches[1].Seq != 1 {
		t.Errorf("expected second batch seq 1, got %d", batches[1].Seq)
	}
}

func TestFileSource_MissingFileIsPermanent(t *testing.T) {
	s := newFileSource("orders", config.SourceSpec{
		Kind: config.SourceFile, Path: filepath.Join(t.TempDir(), "nope.ndjson"),
	})
	err := s.Extract(context.Background(), func(context.Context, Batch) error { return nil })
	if !errors.IsCode(err, errors.ErrCodePipelinePermanent) {
		t.Errorf("expected permanent error for missing file, got %v", err)
	}
}

func TestFileSource_MalformedLineIsPermanent(t *testing.T) {
	path := writeFixture(t, "bad.ndjson", `{"id": 1}`+"\nnot json\n")
	s := newFileSource("orders", config.SourceSpec{Kind: config.SourceFile, Path: path})

	err := s.Extract(context.Background(), func(context.Context, Batch) error { return nil })
	if !errors.IsCode(err, errors.ErrCodePipelinePermanent) {
		t.Errorf("expected permanent error for malformed line, got %v", err)
	}
}

// --- Factory tests ---

func TestNewSource_UnknownKind(t *testing.T) {
	_, err := NewSource("orders", config.SourceSpec{Kind: "carrier_pigeon"}, nil)
	if !errors.IsCode(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("expected INVALID_CONFIG for unknown source kind, got %v", err)
	}
}

func TestNewDestination_UnknownKind(t *testing.T) {
	_, err := NewDestination("orders", config.DestinationSpec{Kind: "fax"}, nil)
	if !errors.IsCode(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("expected INVALID_CONFIG for unknown destination kind, got %v", err)
	}
}

func TestNewSource_KnownKinds(t *testing.T) {
	src, err := NewSource("orders", config.SourceSpec{Kind: config.SourceRESTAPI, BaseURL: "http://example.com"}, nil)
	if err != nil || src.Kind() != config.SourceRESTAPI {
		t.Errorf("unexpected rest_api resolution: %v, %v", src, err)
	}
	src, err = NewSource("orders", config.SourceSpec{Kind: config.SourceFile, Path: "/tmp/x"}, nil)
	if err != nil || src.Kind() != config.SourceFile {
		t.Errorf("unexpected file resolution: %v, %v", src, err)
	}
}

func TestNewDestination_KnownKinds(t *testing.T) {
	dest, err := NewDestination("orders", config.DestinationSpec{Kind: config.DestPostgres, Table: "orders"}, nil)
	if err != nil || dest.Kind() != config.DestPostgres {
		t.Errorf("unexpected postgres resolution: %v, %v", dest, err)
	}
	dest, err = NewDestination("orders", config.DestinationSpec{Kind: config.DestObjectStore, Bucket: "raw"}, nil)
	if err != nil || dest.Kind() != config.DestObjectStore {
		t.Errorf("unexpected object_store resolution: %v, %v", dest, err)
	}
}
