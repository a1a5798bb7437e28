// Package ingest runs the incremental ingestion stages: World Bank GDP via
// the paginated API and Wikipedia CO2 via page scraping. Each run is tracked
// in the ledger and lands one JSONL batch in the raw zone.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/atlasdata/econpipe/internal/ledger"
	"github.com/atlasdata/econpipe/internal/model"
)

// Result summarizes one ingestion run.
type Result struct {
	RunID      string
	Status     model.RunStatus
	Rows       int
	Checkpoint string
	RawKey     string
}

// encodeJSONL renders records one JSON object per line. An empty batch
// yields an empty file, which is still written so every run leaves a trace.
func encodeJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range records {
		if err := enc.Encode(records[i]); err != nil {
			return nil, eris.Wrap(err, "ingest: encode jsonl record")
		}
	}
	return buf.Bytes(), nil
}

// failRun closes the run FAILED with the error message and returns the
// original error. Ledger failures during cleanup are logged, not returned.
func failRun(ctx context.Context, led ledger.Ledger, runID string, err error) error {
	_, endErr := led.EndRun(ctx, runID, model.RunStatusFailed, ledger.EndRunOpts{
		ErrorMessage: ledger.StrPtr(err.Error()),
	})
	if endErr != nil {
		zap.L().Error("failed to close run as FAILED",
			zap.String("run_id", runID),
			zap.Error(endErr),
		)
	}
	return err
}
