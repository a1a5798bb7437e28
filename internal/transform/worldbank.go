package transform

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/atlasdata/econpipe/internal/model"
	"github.com/atlasdata/econpipe/internal/storage"
)

// Processed layer datasets and file names.
const (
	WorldBankProcessedDataset = "world_bank_gdp"
	worldBankProcessedFile    = "processed_worldbank_gdp_per_capita.csv"
)

// WorldBankProcessed converts raw GDP batches into the typed processed
// layer, partitioned by year.
type WorldBankProcessed struct {
	Store storage.Storage
}

// Run reads every raw GDP batch, converts the records, and rewrites the
// per-year processed partitions. Returns the number of processed rows.
func (p *WorldBankProcessed) Run(ctx context.Context) (int, error) {
	keys, err := p.Store.List(ctx, storage.Join(storage.ZoneRaw, WorldBankProcessedDataset)+"/")
	if err != nil {
		return 0, err
	}

	byYear := make(map[int][]model.GDPRow)
	var total, dropped int
	for _, key := range keys {
		data, err := p.Store.Read(ctx, key)
		if err != nil {
			return 0, err
		}

		scanner := bufio.NewScanner(bytes.NewReader(data))
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var raw map[string]any
			if err := json.Unmarshal(line, &raw); err != nil {
				return 0, eris.Wrapf(err, "transform: malformed raw record in %s", key)
			}

			row, ok := gdpRowFromRaw(raw)
			if !ok {
				dropped++
				continue
			}
			byYear[row.Year] = append(byYear[row.Year], row)
			total++
		}
		if err := scanner.Err(); err != nil {
			return 0, eris.Wrapf(err, "transform: scan %s", key)
		}
	}
	if dropped > 0 {
		zap.L().Warn("dropped raw gdp records missing identity fields",
			zap.Int("count", dropped),
		)
	}

	years := make([]int, 0, len(byYear))
	for year := range byYear {
		years = append(years, year)
	}
	sort.Ints(years)

	for _, year := range years {
		rows := byYear[year]
		sort.Slice(rows, func(i, j int) bool {
			return rows[i].CountryCode < rows[j].CountryCode
		})

		key := storage.Join(storage.ZoneProcessed, WorldBankProcessedDataset,
			storage.YearPartition(year), worldBankProcessedFile)
		if err := storage.WriteTable(ctx, p.Store, key, rows); err != nil {
			return 0, err
		}
	}

	zap.L().Info("world bank processed layer rebuilt",
		zap.Int("rows", total),
		zap.Int("years", len(years)),
	)
	return total, nil
}

// gdpRowFromRaw converts one enriched raw record. Records without a country
// code, country name, or parseable year are unusable.
func gdpRowFromRaw(raw map[string]any) (model.GDPRow, bool) {
	code := stringField(raw, "countryiso3code")
	name := nestedStringField(raw, "country", "value")
	year, ok := yearField(raw, "date")
	if code == "" || name == "" || !ok {
		return model.GDPRow{}, false
	}

	row := model.GDPRow{
		CountryCode:    code,
		CountryName:    name,
		Year:           year,
		IndicatorID:    nestedStringField(raw, "indicator", "id"),
		IndicatorName:  nestedStringField(raw, "indicator", "value"),
		IngestionRunID: stringField(raw, model.FieldIngestionRunID),
		IngestionTS:    stringField(raw, model.FieldIngestionTS),
		DataSource:     stringField(raw, model.FieldDataSource),
	}

	switch v := raw["value"].(type) {
	case float64:
		row.GDPPerCapitaUSD = &v
	case string:
		row.GDPPerCapitaUSD = ParseFloat(v)
	}
	return row, true
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

func nestedStringField(raw map[string]any, key, sub string) string {
	obj, _ := raw[key].(map[string]any)
	s, _ := obj[sub].(string)
	return s
}

func yearField(raw map[string]any, key string) (int, bool) {
	s, ok := raw[key].(string)
	if !ok {
		return 0, false
	}
	var year int
	if _, err := fmt.Sscanf(s, "%d", &year); err != nil || fmt.Sprintf("%d", year) != s {
		return 0, false
	}
	return year, true
}
