package transform

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasdata/econpipe/internal/ledger"
	"github.com/atlasdata/econpipe/internal/model"
	"github.com/atlasdata/econpipe/internal/storage"
)

func seedProcessedGDP(t *testing.T, store storage.Storage, year int, rows []model.GDPRow) {
	t.Helper()
	key := storage.Join(storage.ZoneProcessed, WorldBankProcessedDataset,
		storage.YearPartition(year), worldBankProcessedFile)
	require.NoError(t, storage.WriteTable(context.Background(), store, key, rows))
}

func seedProcessedCO2(t *testing.T, store storage.Storage, year int, rows []model.CO2Row) {
	t.Helper()
	key := storage.Join(storage.ZoneProcessed, WikipediaProcessedDataset,
		storage.YearPartition(year), wikipediaProcessedFile)
	require.NoError(t, storage.WriteTable(context.Background(), store, key, rows))
}

func newCuratedStage(t *testing.T) (*Curated, *storage.Local, *ledger.JSONLedger) {
	t.Helper()
	led := ledger.NewJSON(filepath.Join(t.TempDir(), "metadata.json"))
	store := storage.NewLocal(t.TempDir())
	c := &Curated{
		Ledger: led,
		Store:  store,
		Now:    func() time.Time { return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC) },
	}
	return c, store, led
}

func TestCurated_Run_JoinsAndDerives(t *testing.T) {
	c, store, led := newCuratedStage(t)
	ctx := context.Background()

	seedProcessedGDP(t, store, 2023, []model.GDPRow{
		{CountryCode: "CHL", CountryName: "Chile", Year: 2023, GDPPerCapitaUSD: floatPtr(17000), DataSource: model.SourceWorldBank},
		{CountryCode: "PER", CountryName: "Peru", Year: 2023, GDPPerCapitaUSD: nil, DataSource: model.SourceWorldBank},
		{CountryCode: "ARG", CountryName: "Argentina", Year: 2023, GDPPerCapitaUSD: floatPtr(13000), DataSource: model.SourceWorldBank},
	})
	seedProcessedCO2(t, store, 2023, []model.CO2Row{
		{CountryCode: "CHL", CountryName: "Chile", Year: 2023, CO2TonsPerCapita: floatPtr(4.7), DataSource: model.SourceWikipedia},
		{CountryCode: "PER", CountryName: "Peru", Year: 2023, CO2TonsPerCapita: floatPtr(1.8), DataSource: model.SourceWikipedia},
		{CountryCode: "", CountryName: "Atlantis", Year: 2023, CO2TonsPerCapita: floatPtr(9.9), DataSource: model.SourceWikipedia},
		{CountryCode: "BRA", CountryName: "Brazil", Year: 2023, CO2TonsPerCapita: floatPtr(2.2), DataSource: model.SourceWikipedia},
	})
	// BRA has CO2 but no GDP partner; ARG has GDP but no CO2 partner.

	res, err := c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 1, res.MissingCO2)
	assert.Equal(t, "snapshot_date=20260829", res.SnapshotDate)

	key := "curated/env_econ_country_year/year=2023/snapshot_date=20260829/curated_econ_environment_country_year.csv"
	rows, err := storage.ReadTable[model.CuratedRow](ctx, store, key)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	chile := rows[0]
	assert.Equal(t, "CHL", chile.CountryCode)
	assert.Equal(t, "Chile", chile.CountryName)
	require.NotNil(t, chile.CO2Per1000USDGDP)
	assert.InDelta(t, 4.7*1000/17000, *chile.CO2Per1000USDGDP, 1e-9)
	assert.Equal(t, model.SourceWorldBank, chile.GDPSourceSystem)
	assert.Equal(t, model.SourceWikipedia, chile.CO2SourceSystem)
	assert.Equal(t, res.RunID, chile.FirstIngestionRunID)
	assert.Equal(t, res.RunID, chile.LastUpdateRunID)

	// Missing GDP: joined row survives, derived metric stays empty.
	peru := rows[1]
	assert.Equal(t, "PER", peru.CountryCode)
	assert.Nil(t, peru.GDPPerCapitaUSD)
	assert.Nil(t, peru.CO2Per1000USDGDP)

	run, err := led.LastRun(ctx, model.ScopeCuratedJoin)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSuccess, run.Status)
	assert.Equal(t, 2, *run.RowsProcessed)
	assert.Equal(t, "snapshot_date=20260829", *run.LastCheckpoint)
}

func TestCurated_Run_EmptyJoinStillSucceeds(t *testing.T) {
	c, _, led := newCuratedStage(t)
	ctx := context.Background()

	res, err := c.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Rows)
	assert.Zero(t, res.MissingCO2)

	run, err := led.LastRun(ctx, model.ScopeCuratedJoin)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSuccess, run.Status)
}

func TestCurated_Run_NewSnapshotLeavesOldOne(t *testing.T) {
	c, store, _ := newCuratedStage(t)
	ctx := context.Background()

	seedProcessedGDP(t, store, 2023, []model.GDPRow{
		{CountryCode: "CHL", CountryName: "Chile", Year: 2023, GDPPerCapitaUSD: floatPtr(17000)},
	})
	seedProcessedCO2(t, store, 2023, []model.CO2Row{
		{CountryCode: "CHL", CountryName: "Chile", Year: 2023, CO2TonsPerCapita: floatPtr(4.7)},
	})

	_, err := c.Run(ctx)
	require.NoError(t, err)

	c.Now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	_, err = c.Run(ctx)
	require.NoError(t, err)

	keys, err := store.List(ctx, "curated/env_econ_country_year/year=2023/")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestCO2Intensity(t *testing.T) {
	assert.Nil(t, co2Intensity(nil, floatPtr(1)))
	assert.Nil(t, co2Intensity(floatPtr(1), nil))
	assert.Nil(t, co2Intensity(floatPtr(0), floatPtr(1)))
	assert.Nil(t, co2Intensity(floatPtr(-5), floatPtr(1)))

	got := co2Intensity(floatPtr(2000), floatPtr(4))
	require.NotNil(t, got)
	assert.InDelta(t, 2.0, *got, 1e-9)
}

func TestCurated_Run_DedupesProcessedInputs(t *testing.T) {
	c, store, _ := newCuratedStage(t)
	ctx := context.Background()

	seedProcessedGDP(t, store, 2023, []model.GDPRow{
		{CountryCode: "CHL", CountryName: "Chile", Year: 2023, GDPPerCapitaUSD: floatPtr(17000)},
		{CountryCode: "CHL", CountryName: "Chile dup", Year: 2023, GDPPerCapitaUSD: floatPtr(1)},
	})
	seedProcessedCO2(t, store, 2023, []model.CO2Row{
		{CountryCode: "CHL", CountryName: "Chile", Year: 2023, CO2TonsPerCapita: floatPtr(4.7)},
		{CountryCode: "CHL", CountryName: "Chile", Year: 2023, CO2TonsPerCapita: floatPtr(99)},
	})

	res, err := c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)
	assert.Zero(t, res.MissingCO2)

	rows, err := storage.ReadTablePrefix[model.CuratedRow](ctx, store, "curated/")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Chile", rows[0].CountryName)
	assert.Equal(t, 4.7, *rows[0].CO2TonsPerCapita)
}
