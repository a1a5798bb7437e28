package transform

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/atlasdata/econpipe/internal/model"
	"github.com/atlasdata/econpipe/internal/storage"
)

const (
	MappingDataset = "country_mapping"
	mappingFile    = "country_mapping.csv"
)

// MappingKey is the processed-layer location of the reconciliation table.
var MappingKey = storage.Join(storage.ZoneProcessed, MappingDataset, mappingFile)

// Mapping rebuilds the country reconciliation table from the processed GDP
// layer, then applies manual overrides from a local CSV.
type Mapping struct {
	Store storage.Storage

	// OverridePath is the local override CSV; empty disables overrides.
	OverridePath string
}

// Run rebuilds and writes the mapping table, returning the number of
// mapping rows.
func (m *Mapping) Run(ctx context.Context) (int, error) {
	gdpRows, err := storage.ReadTablePrefix[model.GDPRow](ctx, m.Store,
		storage.Join(storage.ZoneProcessed, WorldBankProcessedDataset)+"/")
	if err != nil {
		return 0, err
	}

	mapping := BuildBaseMapping(gdpRows)

	if m.OverridePath != "" {
		overrides, err := LoadOverrides(m.OverridePath)
		if err != nil {
			return 0, err
		}
		mapping = MergeOverrides(mapping, overrides)
		zap.L().Info("applied country mapping overrides",
			zap.String("path", m.OverridePath),
			zap.Int("overrides", len(overrides)),
		)
	}

	if err := storage.WriteTable(ctx, m.Store, MappingKey, mapping); err != nil {
		return 0, err
	}
	zap.L().Info("country mapping rebuilt", zap.Int("rows", len(mapping)))
	return len(mapping), nil
}

// BuildBaseMapping derives one mapping row per normalized country name from
// the World Bank observations. Candidates are sorted before deduplication so
// the winner for a contested key is deterministic.
func BuildBaseMapping(rows []model.GDPRow) []model.CountryMapping {
	type pair struct{ code, name string }
	distinct := make(map[pair]struct{})
	for _, row := range rows {
		if row.CountryCode == "" || row.CountryName == "" {
			continue
		}
		distinct[pair{row.CountryCode, row.CountryName}] = struct{}{}
	}

	candidates := make([]model.CountryMapping, 0, len(distinct))
	for p := range distinct {
		candidates = append(candidates, model.CountryMapping{
			CountryNameNormalized: NormalizeCountryName(p.name),
			CountryCode:           p.code,
			CountryName:           p.name,
			SourcePrecedence:      model.PrecedenceWorldBank,
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.CountryNameNormalized != b.CountryNameNormalized {
			return a.CountryNameNormalized < b.CountryNameNormalized
		}
		if a.CountryCode != b.CountryCode {
			return a.CountryCode < b.CountryCode
		}
		return a.CountryName < b.CountryName
	})

	var mapping []model.CountryMapping
	seen := make(map[string]struct{})
	for _, c := range candidates {
		if c.CountryNameNormalized == "" {
			continue
		}
		if _, dup := seen[c.CountryNameNormalized]; dup {
			continue
		}
		seen[c.CountryNameNormalized] = struct{}{}
		mapping = append(mapping, c)
	}
	return mapping
}

// LoadOverrides reads the manual override CSV. The three mapping columns
// must all be present; a malformed override file is a configuration error,
// not dirty data.
func LoadOverrides(path string) ([]model.MappingOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "transform: read override file %s", path)
	}

	dec, err := csvutil.NewDecoder(csv.NewReader(bytes.NewReader(data)))
	if err != nil {
		if err == io.EOF {
			return nil, eris.Errorf("transform: override file %s is empty", path)
		}
		return nil, eris.Wrapf(err, "transform: parse override file %s", path)
	}

	header := make(map[string]struct{}, len(dec.Header()))
	for _, col := range dec.Header() {
		header[col] = struct{}{}
	}
	for _, required := range []string{"country_name_normalized", "country_code", "country_name"} {
		if _, ok := header[required]; !ok {
			return nil, eris.Errorf("transform: override file %s is missing column %q", path, required)
		}
	}

	var overrides []model.MappingOverride
	for {
		var row model.MappingOverride
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "transform: decode override row in %s", path)
		}
		row.CountryNameNormalized = strings.TrimSpace(row.CountryNameNormalized)
		if row.CountryNameNormalized == "" {
			continue
		}
		overrides = append(overrides, row)
	}
	return overrides, nil
}

// MergeOverrides applies the override table to the base mapping: a
// non-empty override field replaces the base value, rows touched by any
// override are re-tagged, and override keys absent from the base are
// appended. The result stays sorted by normalized key.
func MergeOverrides(base []model.CountryMapping, overrides []model.MappingOverride) []model.CountryMapping {
	byKey := make(map[string]int, len(base))
	merged := make([]model.CountryMapping, len(base))
	copy(merged, base)
	for i, row := range merged {
		byKey[row.CountryNameNormalized] = i
	}

	for _, ov := range overrides {
		idx, exists := byKey[ov.CountryNameNormalized]
		if !exists {
			merged = append(merged, model.CountryMapping{
				CountryNameNormalized: ov.CountryNameNormalized,
				CountryCode:           ov.CountryCode,
				CountryName:           ov.CountryName,
				SourcePrecedence:      model.PrecedenceOverride,
			})
			byKey[ov.CountryNameNormalized] = len(merged) - 1
			continue
		}

		contributed := false
		if ov.CountryCode != "" {
			merged[idx].CountryCode = ov.CountryCode
			contributed = true
		}
		if ov.CountryName != "" {
			merged[idx].CountryName = ov.CountryName
			contributed = true
		}
		if contributed {
			merged[idx].SourcePrecedence = model.PrecedenceOverride
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].CountryNameNormalized < merged[j].CountryNameNormalized
	})
	return merged
}

// LoadMapping reads the reconciliation table back as a lookup by normalized
// name.
func LoadMapping(ctx context.Context, store storage.Storage) (map[string]model.CountryMapping, error) {
	rows, err := storage.ReadTable[model.CountryMapping](ctx, store, MappingKey)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]model.CountryMapping, len(rows))
	for _, row := range rows {
		byKey[row.CountryNameNormalized] = row
	}
	return byKey, nil
}
