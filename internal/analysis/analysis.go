// Package analysis computes analytical artifacts over the curated layer: a
// GDP-vs-CO2 scatter plot and a per-year correlation summary.
package analysis

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/atlasdata/econpipe/internal/model"
	"github.com/atlasdata/econpipe/internal/storage"
	"github.com/atlasdata/econpipe/internal/transform"
)

// Analyzer reads curated snapshots and writes artifacts to the analytics
// zone.
type Analyzer struct {
	Store storage.Storage
}

// LoadCurated returns curated rows for the requested years, reading only the
// newest snapshot per year. Empty years means every year present.
func (a *Analyzer) LoadCurated(ctx context.Context, years []int) ([]model.CuratedRow, error) {
	prefix := storage.Join(storage.ZoneCurated, transform.CuratedDataset) + "/"
	keys, err := a.Store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(years))
	for _, y := range years {
		wanted[storage.YearPartition(y)] = struct{}{}
	}

	// Snapshot dates sort lexicographically, so within one year partition
	// the last key belongs to the newest snapshot.
	latest := make(map[string]string)
	for _, key := range keys {
		rest := strings.TrimPrefix(key, prefix)
		parts := strings.SplitN(rest, "/", 3)
		if len(parts) != 3 {
			continue
		}
		yearDir := parts[0]
		if len(wanted) > 0 {
			if _, ok := wanted[yearDir]; !ok {
				continue
			}
		}
		if prev, ok := latest[yearDir]; !ok || key > prev {
			latest[yearDir] = key
		}
	}
	if len(latest) == 0 {
		return nil, eris.New("analysis: no curated snapshots found")
	}

	yearDirs := make([]string, 0, len(latest))
	for dir := range latest {
		yearDirs = append(yearDirs, dir)
	}
	sort.Strings(yearDirs)

	var rows []model.CuratedRow
	for _, dir := range yearDirs {
		part, err := storage.ReadTable[model.CuratedRow](ctx, a.Store, latest[dir])
		if err != nil {
			return nil, err
		}
		rows = append(rows, part...)
	}
	return rows, nil
}
