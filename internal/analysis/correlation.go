package analysis

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/atlasdata/econpipe/internal/model"
	"github.com/atlasdata/econpipe/internal/storage"
)

const topListSize = 5

// Correlation artifact locations in the analytics zone.
var (
	CorrelationCSVKey  = storage.Join(storage.ZoneAnalytics, "correlation_summary", "correlation_summary.csv")
	CorrelationXLSXKey = storage.Join(storage.ZoneAnalytics, "correlation_summary", "correlation_summary.xlsx")
)

// CountryValue is one entry of a ranked country list.
type CountryValue struct {
	CountryCode string
	Value       float64
}

// YearSummary aggregates one year of curated data. PearsonR is nil when
// fewer than two complete (GDP, CO2) pairs exist or the correlation is
// undefined.
type YearSummary struct {
	Year          int
	CompletePairs int
	PearsonR      *float64
	TopIntensity  []CountryValue
	LowIntensity  []CountryValue
}

// SummaryRow is the flattened CSV/XLSX form of a YearSummary. Ranked lists
// are rendered as "CODE=value" pairs joined with semicolons.
type SummaryRow struct {
	Year          int      `csv:"year"`
	CompletePairs int      `csv:"complete_pairs"`
	PearsonR      *float64 `csv:"pearson_r"`
	Top5Intensity string   `csv:"top5_co2_per_1000usd_gdp"`
	Low5Intensity string   `csv:"bottom5_co2_per_1000usd_gdp"`
}

// Summarize computes per-year summaries from curated rows, ordered by year.
func Summarize(rows []model.CuratedRow) []YearSummary {
	byYear := make(map[int][]model.CuratedRow)
	for _, row := range rows {
		byYear[row.Year] = append(byYear[row.Year], row)
	}

	years := make([]int, 0, len(byYear))
	for year := range byYear {
		years = append(years, year)
	}
	sort.Ints(years)

	summaries := make([]YearSummary, 0, len(years))
	for _, year := range years {
		summaries = append(summaries, summarizeYear(year, byYear[year]))
	}
	return summaries
}

func summarizeYear(year int, rows []model.CuratedRow) YearSummary {
	var xs, ys []float64
	var ranked []CountryValue
	for _, row := range rows {
		if row.GDPPerCapitaUSD != nil && row.CO2TonsPerCapita != nil {
			xs = append(xs, *row.GDPPerCapitaUSD)
			ys = append(ys, *row.CO2TonsPerCapita)
		}
		if row.CO2Per1000USDGDP != nil {
			ranked = append(ranked, CountryValue{row.CountryCode, *row.CO2Per1000USDGDP})
		}
	}

	summary := YearSummary{Year: year, CompletePairs: len(xs)}
	if len(xs) >= 2 {
		if r := stat.Correlation(xs, ys, nil); !math.IsNaN(r) {
			summary.PearsonR = &r
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Value != ranked[j].Value {
			return ranked[i].Value > ranked[j].Value
		}
		return ranked[i].CountryCode < ranked[j].CountryCode
	})
	summary.TopIntensity = headList(ranked)
	summary.LowIntensity = tailList(ranked)
	return summary
}

func headList(ranked []CountryValue) []CountryValue {
	n := min(topListSize, len(ranked))
	return append([]CountryValue(nil), ranked[:n]...)
}

// tailList returns the lowest entries ordered from lowest to highest.
func tailList(ranked []CountryValue) []CountryValue {
	n := min(topListSize, len(ranked))
	out := make([]CountryValue, 0, n)
	for i := len(ranked) - 1; i >= len(ranked)-n; i-- {
		out = append(out, ranked[i])
	}
	return out
}

func formatList(list []CountryValue) string {
	parts := make([]string, 0, len(list))
	for _, cv := range list {
		parts = append(parts, fmt.Sprintf("%s=%.4f", cv.CountryCode, cv.Value))
	}
	return strings.Join(parts, ";")
}

// SummaryRows flattens summaries for tabular rendering.
func SummaryRows(summaries []YearSummary) []SummaryRow {
	rows := make([]SummaryRow, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, SummaryRow{
			Year:          s.Year,
			CompletePairs: s.CompletePairs,
			PearsonR:      s.PearsonR,
			Top5Intensity: formatList(s.TopIntensity),
			Low5Intensity: formatList(s.LowIntensity),
		})
	}
	return rows
}

// WriteCorrelationSummary computes the summary for the given years and
// writes both the CSV and XLSX artifacts.
func (a *Analyzer) WriteCorrelationSummary(ctx context.Context, years []int) ([]YearSummary, error) {
	curated, err := a.LoadCurated(ctx, years)
	if err != nil {
		return nil, err
	}

	summaries := Summarize(curated)
	rows := SummaryRows(summaries)

	if err := storage.WriteTable(ctx, a.Store, CorrelationCSVKey, rows); err != nil {
		return nil, err
	}

	workbook, err := renderXLSX(rows)
	if err != nil {
		return nil, err
	}
	if err := a.Store.Write(ctx, CorrelationXLSXKey, workbook); err != nil {
		return nil, err
	}

	zap.L().Info("correlation summary written",
		zap.Int("years", len(summaries)),
		zap.String("csv", CorrelationCSVKey),
		zap.String("xlsx", CorrelationXLSXKey),
	)
	return summaries, nil
}

func renderXLSX(rows []SummaryRow) ([]byte, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("correlation_summary")
	if err != nil {
		return nil, eris.Wrap(err, "analysis: add xlsx sheet")
	}

	header := sheet.AddRow()
	for _, col := range []string{"year", "complete_pairs", "pearson_r", "top5_co2_per_1000usd_gdp", "bottom5_co2_per_1000usd_gdp"} {
		header.AddCell().SetString(col)
	}

	for _, row := range rows {
		r := sheet.AddRow()
		r.AddCell().SetInt(row.Year)
		r.AddCell().SetInt(row.CompletePairs)
		if row.PearsonR != nil {
			r.AddCell().SetFloat(*row.PearsonR)
		} else {
			r.AddCell().SetString("")
		}
		r.AddCell().SetString(row.Top5Intensity)
		r.AddCell().SetString(row.Low5Intensity)
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, eris.Wrap(err, "analysis: render xlsx")
	}
	return buf.Bytes(), nil
}
