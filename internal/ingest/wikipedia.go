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

// WikipediaDataset is the raw zone dataset name for scraped CO2 batches.
const WikipediaDataset = "wikipedia_co2"

// Wikipedia ingests the CO2 emissions table. A revision probe runs before
// any page download; when the page has not changed since the stored revision
// the run ends SKIPPED and no batch is written.
type Wikipedia struct {
	Ledger  ledger.Ledger
	Store   storage.Storage
	Client  *fetcher.WikipediaClient
	PageURL string

	Now func() time.Time
}

func (w *Wikipedia) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// Run executes one scrape cycle. Exactly one raw record is written per
// non-skipped run; the revision id becomes the new checkpoint.
func (w *Wikipedia) Run(ctx context.Context) (*Result, error) {
	runID, err := w.Ledger.StartRun(ctx, model.ScopeWikipediaCO2)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("run_id", runID), zap.String("source", model.SourceWikipedia))

	info, err := w.Client.PageInfo(ctx, w.PageURL)
	if err != nil {
		return nil, failRun(ctx, w.Ledger, runID, err)
	}
	revision := strconv.FormatInt(info.RevisionID, 10)

	stored, err := w.Ledger.LoadCheckpoint(ctx, model.CheckpointWikipediaRevision, "")
	if err != nil {
		return nil, failRun(ctx, w.Ledger, runID, err)
	}
	if stored == revision {
		log.Info("page revision unchanged, skipping scrape",
			zap.String("revision", revision),
		)
		if _, err := w.Ledger.EndRun(ctx, runID, model.RunStatusSkipped, ledger.EndRunOpts{
			RowsProcessed:  ledger.IntPtr(0),
			LastCheckpoint: ledger.StrPtr(revision),
		}); err != nil {
			return nil, err
		}
		return &Result{RunID: runID, Status: model.RunStatusSkipped, Checkpoint: revision}, nil
	}

	html, err := w.Client.FetchPage(ctx, w.PageURL)
	if err != nil {
		return nil, failRun(ctx, w.Ledger, runID, err)
	}
	table, err := fetcher.ExtractTable(html)
	if err != nil {
		return nil, failRun(ctx, w.Ledger, runID, err)
	}
	log.Info("extracted emissions table",
		zap.Int("columns", len(table.Headers)),
		zap.Int("rows", len(table.Rows)),
	)

	payload := model.WikipediaTablePayload{
		PageURL: w.PageURL,
		Headers: table.Headers,
		Rows:    table.Rows,
	}
	hash, err := canonhash.Hash(payload)
	if err != nil {
		return nil, failRun(ctx, w.Ledger, runID, err)
	}

	batchTS := w.now().UTC()
	rawKey := storage.RawKey(WikipediaDataset, batchTS)

	record := model.WikipediaRawRecord{
		IngestionRunID: runID,
		IngestionTS:    batchTS.Format(time.RFC3339),
		DataSource:     model.SourceWikipedia,
		PageURL:        w.PageURL,
		PageID:         info.PageID,
		RevisionID:     info.RevisionID,
		RevTimestamp:   info.RevTimestamp,
		TableHTML:      table.HTML,
		RawTable:       payload,
		RecordHash:     hash,
		RawFilePath:    rawKey,
	}

	data, err := encodeJSONL([]model.WikipediaRawRecord{record})
	if err != nil {
		return nil, failRun(ctx, w.Ledger, runID, err)
	}
	if err := w.Store.Write(ctx, rawKey, data); err != nil {
		return nil, failRun(ctx, w.Ledger, runID, err)
	}

	if err := w.Ledger.SaveCheckpoint(ctx, model.CheckpointWikipediaRevision, revision); err != nil {
		return nil, failRun(ctx, w.Ledger, runID, err)
	}
	if _, err := w.Ledger.EndRun(ctx, runID, model.RunStatusSuccess, ledger.EndRunOpts{
		RowsProcessed:  ledger.IntPtr(1),
		LastCheckpoint: ledger.StrPtr(revision),
	}); err != nil {
		return nil, err
	}

	log.Info("wikipedia ingestion complete",
		zap.String("revision", revision),
		zap.String("raw_key", rawKey),
	)
	return &Result{
		RunID:      runID,
		Status:     model.RunStatusSuccess,
		Rows:       1,
		Checkpoint: revision,
		RawKey:     rawKey,
	}, nil
}
