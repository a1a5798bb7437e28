// Package ledger tracks pipeline run lifecycle and per-source checkpoints.
//
// Three backends implement the same contract: a local JSON file, an embedded
// SQLite database, and a DynamoDB table. Checkpoint values are stored and
// compared as strings everywhere so the backends agree on representation.
package ledger

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/atlasdata/econpipe/internal/model"
)

// ErrRunNotFound is returned by EndRun when no run exists with the given id.
var ErrRunNotFound = eris.New("ledger: run not found")

// EndRunOpts carries the optional terminal fields for EndRun. A nil field is
// left untouched on the stored record.
type EndRunOpts struct {
	RowsProcessed  *int
	LastCheckpoint *string
	ErrorMessage   *string
}

// Ledger is the run/checkpoint persistence contract consumed by the
// ingestion and curated stages. Implementations provide no cross-process
// locking; the pipeline is expected to run as one exclusive process.
type Ledger interface {
	// StartRun creates a RUNNING record under the given scope and returns
	// its fresh id.
	StartRun(ctx context.Context, scope string) (string, error)

	// EndRun closes an existing run with a terminal status. Recording a
	// checkpoint on the run is separate from checkpoint persistence: callers
	// that want the watermark to affect future runs must also call
	// SaveCheckpoint.
	EndRun(ctx context.Context, runID string, status model.RunStatus, opts EndRunOpts) (*model.Run, error)

	// SaveCheckpoint persists a watermark for a logical source, last write
	// wins. LoadCheckpoint returns def when no value exists. ListCheckpoints
	// returns all stored watermarks sorted by source.
	SaveCheckpoint(ctx context.Context, source, value string) error
	LoadCheckpoint(ctx context.Context, source, def string) (string, error)
	ListCheckpoints(ctx context.Context) ([]model.Checkpoint, error)

	// ListRuns returns runs in insertion order (oldest first), optionally
	// filtered by scope (empty scope = all). LastRun returns the most recent
	// run for a scope, or nil when none exists.
	ListRuns(ctx context.Context, scope string) ([]model.Run, error)
	LastRun(ctx context.Context, scope string) (*model.Run, error)

	Close() error
}

// IntPtr and StrPtr build the optional fields of EndRunOpts.
func IntPtr(v int) *int { return &v }

func StrPtr(v string) *string { return &v }
