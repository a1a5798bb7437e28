package analysis

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/atlasdata/econpipe/internal/storage"
)

// ScatterKey is the analytics zone location of the per-year scatter plot.
func ScatterKey(year int) string {
	return storage.Join(storage.ZoneAnalytics, "scatter",
		fmt.Sprintf("gdp_vs_co2_%d.png", year))
}

// WriteScatter renders GDP per capita against CO2 per capita for one year as
// a PNG. Only complete pairs are plotted.
func (a *Analyzer) WriteScatter(ctx context.Context, year int) (string, error) {
	curated, err := a.LoadCurated(ctx, []int{year})
	if err != nil {
		return "", err
	}

	var points plotter.XYs
	for _, row := range curated {
		if row.GDPPerCapitaUSD == nil || row.CO2TonsPerCapita == nil {
			continue
		}
		points = append(points, plotter.XY{X: *row.GDPPerCapitaUSD, Y: *row.CO2TonsPerCapita})
	}
	if len(points) == 0 {
		return "", eris.Errorf("analysis: no complete pairs to plot for %d", year)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("GDP per capita vs CO2 per capita (%d)", year)
	p.X.Label.Text = "GDP per capita (current USD)"
	p.Y.Label.Text = "CO2 emissions per capita (tons)"

	scatter, err := plotter.NewScatter(points)
	if err != nil {
		return "", eris.Wrap(err, "analysis: build scatter")
	}
	scatter.GlyphStyle.Radius = vg.Points(2)
	p.Add(scatter, plotter.NewGrid())

	writer, err := p.WriterTo(8*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return "", eris.Wrap(err, "analysis: render scatter")
	}
	var buf bytes.Buffer
	if _, err := writer.WriteTo(&buf); err != nil {
		return "", eris.Wrap(err, "analysis: encode scatter png")
	}

	key := ScatterKey(year)
	if err := a.Store.Write(ctx, key, buf.Bytes()); err != nil {
		return "", err
	}

	zap.L().Info("scatter plot written",
		zap.Int("year", year),
		zap.Int("points", len(points)),
		zap.String("key", key),
	)
	return key, nil
}
