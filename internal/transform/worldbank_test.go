package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasdata/econpipe/internal/model"
	"github.com/atlasdata/econpipe/internal/storage"
)

const rawGDPBatch = `{"countryiso3code": "CHL", "country": {"id": "CL", "value": "Chile"}, "indicator": {"id": "NY.GDP.PCAP.CD", "value": "GDP per capita (current US$)"}, "date": "2023", "value": 17000.25, "ingestion_run_id": "run-1", "ingestion_ts": "2026-08-29T10:00:00Z", "data_source": "world_bank_api"}
{"countryiso3code": "PER", "country": {"id": "PE", "value": "Peru"}, "indicator": {"id": "NY.GDP.PCAP.CD", "value": "GDP per capita (current US$)"}, "date": "2023", "value": null, "ingestion_run_id": "run-1", "ingestion_ts": "2026-08-29T10:00:00Z", "data_source": "world_bank_api"}
{"countryiso3code": "CHL", "country": {"id": "CL", "value": "Chile"}, "indicator": {"id": "NY.GDP.PCAP.CD", "value": "GDP per capita (current US$)"}, "date": "2022", "value": 16000.0, "ingestion_run_id": "run-1", "ingestion_ts": "2026-08-29T10:00:00Z", "data_source": "world_bank_api"}
{"countryiso3code": "", "country": {"id": "ZH", "value": "Aggregates"}, "date": "2023", "value": 1.0}
{"countryiso3code": "XYZ", "country": {"value": "Nowhere"}, "date": "unknown", "value": 2.0}
`

func TestWorldBankProcessed_Run(t *testing.T) {
	store := storage.NewLocal(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "raw/world_bank_gdp/world_bank_gdp_raw_20260829T100000Z.jsonl", []byte(rawGDPBatch)))

	p := &WorldBankProcessed{Store: store}
	n, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows2023, err := storage.ReadTable[model.GDPRow](ctx, store,
		"processed/world_bank_gdp/year=2023/processed_worldbank_gdp_per_capita.csv")
	require.NoError(t, err)
	require.Len(t, rows2023, 2)

	chile := rows2023[0]
	assert.Equal(t, "CHL", chile.CountryCode)
	assert.Equal(t, "Chile", chile.CountryName)
	assert.Equal(t, 2023, chile.Year)
	require.NotNil(t, chile.GDPPerCapitaUSD)
	assert.Equal(t, 17000.25, *chile.GDPPerCapitaUSD)
	assert.Equal(t, "NY.GDP.PCAP.CD", chile.IndicatorID)
	assert.Equal(t, "run-1", chile.IngestionRunID)

	// Null upstream value survives as an empty cell, not a dropped row.
	peru := rows2023[1]
	assert.Equal(t, "PER", peru.CountryCode)
	assert.Nil(t, peru.GDPPerCapitaUSD)

	rows2022, err := storage.ReadTable[model.GDPRow](ctx, store,
		"processed/world_bank_gdp/year=2022/processed_worldbank_gdp_per_capita.csv")
	require.NoError(t, err)
	assert.Len(t, rows2022, 1)
}

func TestWorldBankProcessed_Run_MergesBatches(t *testing.T) {
	store := storage.NewLocal(t.TempDir())
	ctx := context.Background()

	batch1 := `{"countryiso3code": "CHL", "country": {"value": "Chile"}, "date": "2022", "value": 1.0}` + "\n"
	batch2 := `{"countryiso3code": "CHL", "country": {"value": "Chile"}, "date": "2023", "value": 2.0}` + "\n"
	require.NoError(t, store.Write(ctx, "raw/world_bank_gdp/world_bank_gdp_raw_20260101T000000Z.jsonl", []byte(batch1)))
	require.NoError(t, store.Write(ctx, "raw/world_bank_gdp/world_bank_gdp_raw_20260201T000000Z.jsonl", []byte(batch2)))

	p := &WorldBankProcessed{Store: store}
	n, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	keys, err := store.List(ctx, "processed/world_bank_gdp/")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestWorldBankProcessed_Run_NoBatches(t *testing.T) {
	p := &WorldBankProcessed{Store: storage.NewLocal(t.TempDir())}
	n, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
