package transform

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasdata/econpipe/internal/model"
	"github.com/atlasdata/econpipe/internal/storage"
)

func strPtr(s string) *string { return &s }

func seedWikipediaRaw(t *testing.T, store storage.Storage, key string, record model.WikipediaRawRecord) {
	t.Helper()
	data, err := json.Marshal(record)
	require.NoError(t, err)
	require.NoError(t, store.Write(context.Background(), key, append(data, '\n')))
}

func seedMapping(t *testing.T, store storage.Storage, rows []model.CountryMapping) {
	t.Helper()
	require.NoError(t, storage.WriteTable(context.Background(), store, MappingKey, rows))
}

func testWikipediaRecord() model.WikipediaRawRecord {
	headers := []string{"Location", "Emissions per capita (tons per year)", "% change from 2000"}
	return model.WikipediaRawRecord{
		IngestionRunID: "run-w1",
		IngestionTS:    "2026-08-29T11:00:00Z",
		DataSource:     model.SourceWikipedia,
		RawTable: model.WikipediaTablePayload{
			PageURL: "https://en.wikipedia.org/wiki/X",
			Headers: headers,
			Rows: []map[string]*string{
				{"Location": strPtr("Chile"), headers[1]: strPtr("4.7"), headers[2]: strPtr("12")},
				{"Location": strPtr("Atlantis"), headers[1]: strPtr("1.1"), headers[2]: strPtr("+5%")},
				{"Location": nil, headers[1]: strPtr("9.9"), headers[2]: nil},
			},
		},
	}
}

func TestWikipediaProcessed_Run(t *testing.T) {
	store := storage.NewLocal(t.TempDir())
	ctx := context.Background()

	seedWikipediaRaw(t, store, "raw/wikipedia_co2/wikipedia_co2_raw_20260829T110000Z.jsonl", testWikipediaRecord())
	seedMapping(t, store, []model.CountryMapping{
		{CountryNameNormalized: "chile", CountryCode: "CHL", CountryName: "Chile", SourcePrecedence: model.PrecedenceWorldBank},
	})

	p := &WikipediaProcessed{Store: store}
	n, err := p.Run(ctx)
	require.NoError(t, err)
	// Chile parses for both years; Atlantis only for 2023 because its
	// percentage cell does not parse. The row without a country cell
	// contributes nothing.
	assert.Equal(t, 3, n)

	rows2023, err := storage.ReadTable[model.CO2Row](ctx, store,
		"processed/wikipedia_co2/year=2023/processed_wikipedia_co2_per_capita.csv")
	require.NoError(t, err)
	require.Len(t, rows2023, 2)

	chile := rows2023[0]
	assert.Equal(t, "CHL", chile.CountryCode)
	assert.Equal(t, "Chile", chile.CountryName)
	require.NotNil(t, chile.CO2TonsPerCapita)
	assert.Equal(t, 4.7, *chile.CO2TonsPerCapita)
	assert.Equal(t, "run-w1", chile.IngestionRunID)

	atlantis := rows2023[1]
	assert.Equal(t, "", atlantis.CountryCode)
	assert.Equal(t, "atlantis", atlantis.CountryNameNormalized)
	assert.Equal(t, "Atlantis", atlantis.CountryName)

	// Only the numeric 2000 cell survives; percentage text parses to null
	// and emits no row.
	rows2000, err := storage.ReadTable[model.CO2Row](ctx, store,
		"processed/wikipedia_co2/year=2000/processed_wikipedia_co2_per_capita.csv")
	require.NoError(t, err)
	require.Len(t, rows2000, 1)
	require.NotNil(t, rows2000[0].CO2TonsPerCapita)
	assert.Equal(t, 12.0, *rows2000[0].CO2TonsPerCapita)
	assert.Equal(t, "chile", rows2000[0].CountryNameNormalized)
}

func TestWikipediaProcessed_Run_UsesLatestBatch(t *testing.T) {
	store := storage.NewLocal(t.TempDir())
	ctx := context.Background()

	old := testWikipediaRecord()
	old.IngestionRunID = "run-old"
	seedWikipediaRaw(t, store, "raw/wikipedia_co2/wikipedia_co2_raw_20260101T000000Z.jsonl", old)

	latest := testWikipediaRecord()
	latest.IngestionRunID = "run-new"
	seedWikipediaRaw(t, store, "raw/wikipedia_co2/wikipedia_co2_raw_20260829T110000Z.jsonl", latest)

	seedMapping(t, store, nil)

	p := &WikipediaProcessed{Store: store}
	_, err := p.Run(ctx)
	require.NoError(t, err)

	rows, err := storage.ReadTablePrefix[model.CO2Row](ctx, store, "processed/wikipedia_co2/")
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	for _, row := range rows {
		assert.Equal(t, "run-new", row.IngestionRunID)
	}
}

func TestWikipediaProcessed_Run_NoMappingTable(t *testing.T) {
	store := storage.NewLocal(t.TempDir())
	ctx := context.Background()

	seedWikipediaRaw(t, store, "raw/wikipedia_co2/wikipedia_co2_raw_20260829T110000Z.jsonl", testWikipediaRecord())

	p := &WikipediaProcessed{Store: store}
	n, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows, err := storage.ReadTablePrefix[model.CO2Row](ctx, store, "processed/wikipedia_co2/")
	require.NoError(t, err)
	for _, row := range rows {
		assert.Empty(t, row.CountryCode)
	}
}

func TestWikipediaProcessed_Run_NoRawBatches(t *testing.T) {
	p := &WikipediaProcessed{Store: storage.NewLocal(t.TempDir())}
	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no raw wikipedia batches")
}

func TestFindColumn(t *testing.T) {
	headers := []string{"Location", "Emissions per capita (tons per year)"}

	col, ok := findColumn(headers, "Location")
	assert.True(t, ok)
	assert.Equal(t, "Location", col)

	col, ok = findColumn(headers, "emissions per capita")
	assert.True(t, ok)
	assert.Equal(t, "Emissions per capita (tons per year)", col)

	_, ok = findColumn(headers, "Population")
	assert.False(t, ok)
}
