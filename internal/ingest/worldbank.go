package ingest

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/atlasdata/econpipe/internal/canonhash"
	"github.com/atlasdata/econpipe/internal/fetcher"
	"github.com/atlasdata/econpipe/internal/ledger"
	"github.com/atlasdata/econpipe/internal/model"
	"github.com/atlasdata/econpipe/internal/storage"
)

// WorldBankDataset is the raw zone dataset name for GDP batches.
const WorldBankDataset = "world_bank_gdp"

// WorldBankOptions bounds the ingested year range. Nil MaxYear means no
// upper bound; nil MinYear leaves the checkpoint as the only lower bound.
type WorldBankOptions struct {
	MinYear *int
	MaxYear *int
}

// WorldBank ingests GDP-per-capita observations incrementally: only years
// strictly above the stored watermark (or the configured minimum) are kept,
// and the watermark advances to the newest year seen.
type WorldBank struct {
	Ledger      ledger.Ledger
	Store       storage.Storage
	Client      *fetcher.WorldBankClient
	IndicatorID string

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

func (w *WorldBank) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// Run executes one ingestion cycle and returns its summary. The run is
// closed SUCCESS with the row count and watermark, or FAILED with the error.
func (w *WorldBank) Run(ctx context.Context, opts WorldBankOptions) (*Result, error) {
	runID, err := w.Ledger.StartRun(ctx, model.ScopeWorldBankAPI)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("run_id", runID), zap.String("source", model.SourceWorldBank))

	stored, err := w.Ledger.LoadCheckpoint(ctx, model.CheckpointWorldBankYear, "0")
	if err != nil {
		return nil, failRun(ctx, w.Ledger, runID, err)
	}
	lowerBound, _ := strconv.Atoi(stored)
	if opts.MinYear != nil && *opts.MinYear-1 > lowerBound {
		lowerBound = *opts.MinYear - 1
	}
	startFields := []zap.Field{zap.Int("lower_bound_exclusive", lowerBound)}
	if opts.MaxYear != nil {
		startFields = append(startFields, zap.Int("max_year", *opts.MaxYear))
	}
	log.Info("starting world bank ingestion", startFields...)

	records, err := w.Client.FetchAllPages(ctx, w.IndicatorID)
	if err != nil {
		return nil, failRun(ctx, w.Ledger, runID, err)
	}

	// The batch location is fixed before enrichment so every record can
	// carry its own raw_file_path.
	batchTS := w.now().UTC()
	rawKey := storage.RawKey(WorldBankDataset, batchTS)
	ingestionTS := batchTS.Format(time.RFC3339)

	var (
		enriched  []map[string]any
		maxParsed int
		dropped   int
	)
	for _, record := range records {
		year, ok := parseYear(record["date"])
		if !ok {
			dropped++
			continue
		}
		if year <= lowerBound {
			continue
		}
		if opts.MaxYear != nil && year > *opts.MaxYear {
			continue
		}

		canonical, err := canonhash.Canonical(record)
		if err != nil {
			return nil, failRun(ctx, w.Ledger, runID, err)
		}
		hash, err := canonhash.Hash(record)
		if err != nil {
			return nil, failRun(ctx, w.Ledger, runID, err)
		}

		row := make(map[string]any, len(record)+6)
		for k, v := range record {
			row[k] = v
		}
		row[model.FieldIngestionRunID] = runID
		row[model.FieldIngestionTS] = ingestionTS
		row[model.FieldDataSource] = model.SourceWorldBank
		row[model.FieldRawPayload] = canonical
		row[model.FieldRecordHash] = hash
		row[model.FieldRawFilePath] = rawKey

		enriched = append(enriched, row)
		if year > maxParsed {
			maxParsed = year
		}
	}
	if dropped > 0 {
		log.Warn("dropped records without a parseable year", zap.Int("count", dropped))
	}

	data, err := encodeJSONL(enriched)
	if err != nil {
		return nil, failRun(ctx, w.Ledger, runID, err)
	}
	if err := w.Store.Write(ctx, rawKey, data); err != nil {
		return nil, failRun(ctx, w.Ledger, runID, err)
	}

	checkpoint := stored
	if len(enriched) > 0 {
		checkpoint = strconv.Itoa(maxParsed)
		if err := w.Ledger.SaveCheckpoint(ctx, model.CheckpointWorldBankYear, checkpoint); err != nil {
			return nil, failRun(ctx, w.Ledger, runID, err)
		}
	}

	if _, err := w.Ledger.EndRun(ctx, runID, model.RunStatusSuccess, ledger.EndRunOpts{
		RowsProcessed:  ledger.IntPtr(len(enriched)),
		LastCheckpoint: ledger.StrPtr(checkpoint),
	}); err != nil {
		return nil, err
	}

	log.Info("world bank ingestion complete",
		zap.Int("rows", len(enriched)),
		zap.String("checkpoint", checkpoint),
		zap.String("raw_key", rawKey),
	)
	return &Result{
		RunID:      runID,
		Status:     model.RunStatusSuccess,
		Rows:       len(enriched),
		Checkpoint: checkpoint,
		RawKey:     rawKey,
	}, nil
}

// parseYear accepts a date field holding a year as a string of at least two
// digits. Anything else is unusable.
func parseYear(v any) (int, bool) {
	s, ok := v.(string)
	if !ok || len(s) < 2 {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	year, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return year, true
}
