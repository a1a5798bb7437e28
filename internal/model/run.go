// Package model defines the row types and run records shared across the
// ingestion, transformation, and curated layers of the pipeline.
package model

import "time"

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusFailed  RunStatus = "FAILED"
	RunStatusSkipped RunStatus = "SKIPPED"
)

// Run scopes. Each pipeline stage that tracks execution history opens runs
// under exactly one of these.
const (
	ScopeWorldBankAPI = "world_bank_api"
	ScopeWikipediaCO2 = "wikipedia_co2"
	ScopeCuratedJoin  = "curated_join"
)

// Data source tags stamped on every raw and processed record.
const (
	SourceWorldBank = "world_bank_api"
	SourceWikipedia = "wikipedia_co2"
)

// Checkpoint keys. Values are always persisted as strings so the local JSON
// and DynamoDB ledgers agree on representation.
const (
	CheckpointWorldBankYear     = "last_year_loaded_world_bank"
	CheckpointWikipediaRevision = "wikipedia_co2_revision_id"
)

// Checkpoint is one stored watermark for a logical source.
type Checkpoint struct {
	Source string `json:"source"`
	Value  string `json:"value"`
}

// Run is one tracked execution of a pipeline stage. A run is created in
// RUNNING state and closed exactly once with a terminal status; it is never
// reopened.
type Run struct {
	ID             string     `json:"ingestion_run_id"`
	Scope          string     `json:"run_scope"`
	StartTS        time.Time  `json:"start_ts"`
	EndTS          *time.Time `json:"end_ts"`
	Status         RunStatus  `json:"status"`
	RowsProcessed  *int       `json:"rows_processed"`
	LastCheckpoint *string    `json:"last_checkpoint"`
	ErrorMessage   *string    `json:"error_message"`
}

// Terminal reports whether the run has reached a final state.
func (r *Run) Terminal() bool {
	switch r.Status {
	case RunStatusSuccess, RunStatusFailed, RunStatusSkipped:
		return r.EndTS != nil
	default:
		return false
	}
}
