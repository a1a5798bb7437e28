package transform

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/atlasdata/econpipe/internal/ledger"
	"github.com/atlasdata/econpipe/internal/model"
	"github.com/atlasdata/econpipe/internal/storage"
)

const (
	CuratedDataset = "env_econ_country_year"
	curatedFile    = "curated_econ_environment_country_year.csv"
)

// Curated builds the joined country-year table. Each build is a full
// snapshot written under a fresh snapshot_date partition; it never edits
// previous snapshots.
type Curated struct {
	Ledger ledger.Ledger
	Store  storage.Storage

	Now func() time.Time
}

func (c *Curated) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// CuratedResult summarizes one curated build. MissingCO2 counts the
// (country_code, year) keys present only in the GDP set, which the inner
// join excludes.
type CuratedResult struct {
	RunID        string
	Rows         int
	MissingCO2   int
	SnapshotDate string
}

type countryYear struct {
	code string
	year int
}

// Run joins the processed GDP and CO2 layers and writes the snapshot. The
// run is tracked in the ledger like an ingestion run.
func (c *Curated) Run(ctx context.Context) (*CuratedResult, error) {
	runID, err := c.Ledger.StartRun(ctx, model.ScopeCuratedJoin)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("run_id", runID), zap.String("scope", model.ScopeCuratedJoin))

	gdpRows, err := storage.ReadTablePrefix[model.GDPRow](ctx, c.Store,
		storage.Join(storage.ZoneProcessed, WorldBankProcessedDataset)+"/")
	if err != nil {
		return nil, c.fail(ctx, runID, err)
	}
	co2Rows, err := storage.ReadTablePrefix[model.CO2Row](ctx, c.Store,
		storage.Join(storage.ZoneProcessed, WikipediaProcessedDataset)+"/")
	if err != nil {
		return nil, c.fail(ctx, runID, err)
	}

	gdp := make(map[countryYear]model.GDPRow, len(gdpRows))
	for _, row := range gdpRows {
		key := countryYear{row.CountryCode, row.Year}
		if _, dup := gdp[key]; !dup {
			gdp[key] = row
		}
	}

	co2 := make(map[countryYear]model.CO2Row, len(co2Rows))
	var excluded int
	for _, row := range co2Rows {
		if row.CountryCode == "" {
			excluded++
			continue
		}
		key := countryYear{row.CountryCode, row.Year}
		if _, dup := co2[key]; !dup {
			co2[key] = row
		}
	}
	if excluded > 0 {
		log.Info("excluding unreconciled co2 rows from join",
			zap.Int("count", excluded),
		)
	}

	buildTS := c.now().UTC()
	snapshotDate := storage.SnapshotPartition(buildTS)
	lastUpdateTS := buildTS.Format(time.RFC3339)

	var joined []model.CuratedRow
	for key, co2Row := range co2 {
		gdpRow, matched := gdp[key]
		if !matched {
			continue
		}

		row := model.CuratedRow{
			CountryCode:         key.code,
			CountryName:         gdpRow.CountryName,
			Year:                key.year,
			GDPPerCapitaUSD:     gdpRow.GDPPerCapitaUSD,
			CO2TonsPerCapita:    co2Row.CO2TonsPerCapita,
			GDPSourceSystem:     gdpRow.DataSource,
			CO2SourceSystem:     co2Row.DataSource,
			FirstIngestionRunID: runID,
			LastUpdateRunID:     runID,
			LastUpdateTS:        lastUpdateTS,
		}
		row.CO2Per1000USDGDP = co2Intensity(row.GDPPerCapitaUSD, row.CO2TonsPerCapita)
		joined = append(joined, row)
	}

	missingCO2 := len(gdp) - len(joined)
	if missingCO2 > 0 {
		log.Info("excluding gdp rows without a co2 partner from join",
			zap.Int("count", missingCO2),
		)
	}

	sort.Slice(joined, func(i, j int) bool {
		if joined[i].Year != joined[j].Year {
			return joined[i].Year < joined[j].Year
		}
		return joined[i].CountryCode < joined[j].CountryCode
	})

	byYear := make(map[int][]model.CuratedRow)
	for _, row := range joined {
		byYear[row.Year] = append(byYear[row.Year], row)
	}
	for year, rows := range byYear {
		key := storage.Join(storage.ZoneCurated, CuratedDataset,
			storage.YearPartition(year), snapshotDate, curatedFile)
		if err := storage.WriteTable(ctx, c.Store, key, rows); err != nil {
			return nil, c.fail(ctx, runID, err)
		}
	}

	if _, err := c.Ledger.EndRun(ctx, runID, model.RunStatusSuccess, ledger.EndRunOpts{
		RowsProcessed:  ledger.IntPtr(len(joined)),
		LastCheckpoint: ledger.StrPtr(snapshotDate),
	}); err != nil {
		return nil, err
	}

	log.Info("curated snapshot written",
		zap.Int("rows", len(joined)),
		zap.String("snapshot", snapshotDate),
	)
	return &CuratedResult{
		RunID:        runID,
		Rows:         len(joined),
		MissingCO2:   missingCO2,
		SnapshotDate: snapshotDate,
	}, nil
}

func (c *Curated) fail(ctx context.Context, runID string, err error) error {
	_, endErr := c.Ledger.EndRun(ctx, runID, model.RunStatusFailed, ledger.EndRunOpts{
		ErrorMessage: ledger.StrPtr(err.Error()),
	})
	if endErr != nil {
		zap.L().Error("failed to close curated run as FAILED",
			zap.String("run_id", runID),
			zap.Error(endErr),
		)
	}
	return err
}

// co2Intensity derives tons of CO2 per 1000 USD of GDP per capita. Undefined
// when either input is missing or GDP is not positive.
func co2Intensity(gdp, co2 *float64) *float64 {
	if gdp == nil || co2 == nil || *gdp <= 0 {
		return nil
	}
	v := *co2 * 1000 / *gdp
	return &v
}
