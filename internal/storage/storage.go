// Package storage abstracts the data lake behind the pipeline. Objects are
// addressed by slash-separated keys; backends are a local directory tree and
// an S3 bucket with identical key layouts, so a pipeline can move between
// targets without rewriting paths.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned by Read when no object exists at the key.
var ErrNotFound = eris.New("storage: object not found")

// Lake zones. Keys are always <zone>/<dataset>/<partitions...>/<file>.
const (
	ZoneRaw       = "raw"
	ZoneProcessed = "processed"
	ZoneCurated   = "curated"
	ZoneAnalytics = "analytics"
)

// Storage reads and writes whole objects in the lake.
type Storage interface {
	// Write stores data at key, creating any intermediate structure. Writes
	// replace existing objects.
	Write(ctx context.Context, key string, data []byte) error

	// Read returns the full object at key, or ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, error)

	// List returns all keys under prefix, lexicographically sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Join builds a lake key from path segments.
func Join(parts ...string) string {
	return strings.Join(parts, "/")
}

// YearPartition formats the year partition directory.
func YearPartition(year int) string {
	return fmt.Sprintf("year=%d", year)
}

// SnapshotPartition formats the snapshot date partition directory.
func SnapshotPartition(ts time.Time) string {
	return "snapshot_date=" + ts.UTC().Format("20060102")
}

// RawKey builds the key for a raw ingestion batch, one JSONL file per run
// named by a UTC timestamp: raw/<dataset>/<dataset>_raw_<ts>.jsonl.
func RawKey(dataset string, ts time.Time) string {
	name := fmt.Sprintf("%s_raw_%s.jsonl", dataset, ts.UTC().Format("20060102T150405Z"))
	return Join(ZoneRaw, dataset, name)
}
