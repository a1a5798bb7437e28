package transform

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/atlasdata/econpipe/internal/model"
	"github.com/atlasdata/econpipe/internal/storage"
)

const (
	WikipediaProcessedDataset = "wikipedia_co2"
	wikipediaProcessedFile    = "processed_wikipedia_co2_per_capita.csv"
)

// The scraped table is wide: one row per country with a column per
// observation year. These constants pin the unpivot to the table layout.
const (
	wikipediaCountryColumn = "Location"
)

var wikipediaYearColumns = []struct {
	Year   int
	Column string
}{
	{2023, "Emissions per capita (tons per year)"},
	{2000, "% change from 2000"},
}

// WikipediaProcessed unpivots the latest scraped table into long-format CO2
// rows and reconciles country names against the mapping table.
type WikipediaProcessed struct {
	Store storage.Storage
}

// Run converts the newest raw batch and rewrites the per-year processed
// partitions. Returns the number of processed rows.
func (p *WikipediaProcessed) Run(ctx context.Context) (int, error) {
	record, err := p.latestRawRecord(ctx)
	if err != nil {
		return 0, err
	}

	mapping, err := LoadMapping(ctx, p.Store)
	if err != nil {
		if !eris.Is(err, storage.ErrNotFound) {
			return 0, err
		}
		zap.L().Warn("country mapping table not built yet, co2 rows will be unmapped")
		mapping = map[string]model.CountryMapping{}
	}

	rows, unmapped := unpivotCO2(record, mapping)
	if unmapped > 0 {
		zap.L().Warn("co2 rows without a reconciled country code",
			zap.Int("count", unmapped),
		)
	}

	byYear := make(map[int][]model.CO2Row)
	for _, row := range rows {
		byYear[row.Year] = append(byYear[row.Year], row)
	}
	years := make([]int, 0, len(byYear))
	for year := range byYear {
		years = append(years, year)
	}
	sort.Ints(years)

	for _, year := range years {
		key := storage.Join(storage.ZoneProcessed, WikipediaProcessedDataset,
			storage.YearPartition(year), wikipediaProcessedFile)
		if err := storage.WriteTable(ctx, p.Store, key, byYear[year]); err != nil {
			return 0, err
		}
	}

	zap.L().Info("wikipedia processed layer rebuilt",
		zap.Int("rows", len(rows)),
		zap.Int("years", len(years)),
	)
	return len(rows), nil
}

// latestRawRecord loads the single record of the newest raw batch. Batch
// file names embed their UTC timestamp, so the last key is the newest.
func (p *WikipediaProcessed) latestRawRecord(ctx context.Context) (*model.WikipediaRawRecord, error) {
	keys, err := p.Store.List(ctx, storage.Join(storage.ZoneRaw, WikipediaProcessedDataset)+"/")
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, eris.New("transform: no raw wikipedia batches to process")
	}
	key := keys[len(keys)-1]

	data, err := p.Store.Read(ctx, key)
	if err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var record model.WikipediaRawRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, eris.Wrapf(err, "transform: malformed raw record in %s", key)
		}
		return &record, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "transform: scan %s", key)
	}
	return nil, eris.Errorf("transform: raw batch %s is empty", key)
}

// findColumn resolves a wanted column against the scraped headers: exact
// match first, then case-insensitive substring.
func findColumn(headers []string, want string) (string, bool) {
	for _, h := range headers {
		if h == want {
			return h, true
		}
	}
	lowerWant := strings.ToLower(want)
	for _, h := range headers {
		if strings.Contains(strings.ToLower(h), lowerWant) {
			return h, true
		}
	}
	return "", false
}

// unpivotCO2 turns the wide table into one row per (country, year). Rows
// without a country cell are skipped; a year column missing from the table
// simply contributes no rows.
func unpivotCO2(record *model.WikipediaRawRecord, mapping map[string]model.CountryMapping) ([]model.CO2Row, int) {
	countryCol, ok := findColumn(record.RawTable.Headers, wikipediaCountryColumn)
	if !ok {
		zap.L().Warn("scraped table has no country column",
			zap.Strings("headers", record.RawTable.Headers),
		)
		return nil, 0
	}

	var rows []model.CO2Row
	var unmapped int
	for _, tableRow := range record.RawTable.Rows {
		namePtr := tableRow[countryCol]
		if namePtr == nil || *namePtr == "" {
			continue
		}
		name := *namePtr
		normalized := NormalizeCountryName(name)

		code := ""
		displayName := name
		if m, found := mapping[normalized]; found {
			code = m.CountryCode
			if m.CountryName != "" {
				displayName = m.CountryName
			}
		} else {
			unmapped++
		}

		for _, yc := range wikipediaYearColumns {
			col, present := findColumn(record.RawTable.Headers, yc.Column)
			if !present {
				continue
			}

			var value *float64
			if cell := tableRow[col]; cell != nil {
				value = ParseFloat(*cell)
			}
			if value == nil {
				continue
			}

			rows = append(rows, model.CO2Row{
				CountryName:           displayName,
				CountryNameNormalized: normalized,
				CountryCode:           code,
				Year:                  yc.Year,
				CO2TonsPerCapita:      value,
				Notes:                 col,
				IngestionRunID:        record.IngestionRunID,
				IngestionTS:           record.IngestionTS,
				DataSource:            record.DataSource,
			})
		}
	}
	return rows, unmapped
}
