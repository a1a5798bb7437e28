package transform

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasdata/econpipe/internal/model"
	"github.com/atlasdata/econpipe/internal/storage"
)

func gdpRow(code, name string, year int) model.GDPRow {
	return model.GDPRow{CountryCode: code, CountryName: name, Year: year}
}

func TestBuildBaseMapping_DistinctAndNormalized(t *testing.T) {
	rows := []model.GDPRow{
		gdpRow("CHL", "Chile", 2022),
		gdpRow("CHL", "Chile", 2023), // same pair, different year
		gdpRow("CIV", "Côte d'Ivoire", 2023),
		gdpRow("", "Nowhere", 2023),  // no code: not a mapping candidate
		gdpRow("XXX", "", 2023),      // no name: not a mapping candidate
	}

	mapping := BuildBaseMapping(rows)
	require.Len(t, mapping, 2)
	assert.Equal(t, "chile", mapping[0].CountryNameNormalized)
	assert.Equal(t, "CHL", mapping[0].CountryCode)
	assert.Equal(t, model.PrecedenceWorldBank, mapping[0].SourcePrecedence)
	assert.Equal(t, "cote d ivoire", mapping[1].CountryNameNormalized)
}

func TestBuildBaseMapping_ContestedKeyIsDeterministic(t *testing.T) {
	// Two distinct (code, name) pairs collapse to the same normalized key;
	// the lexicographically smaller code must win every time.
	rows := []model.GDPRow{
		gdpRow("ZZZ", "Chile*", 2023),
		gdpRow("CHL", "Chile", 2023),
	}

	for n := 0; n < 10; n++ {
		mapping := BuildBaseMapping(rows)
		require.Len(t, mapping, 1)
		assert.Equal(t, "CHL", mapping[0].CountryCode)
		assert.Equal(t, "Chile", mapping[0].CountryName)
	}
}

func TestMergeOverrides(t *testing.T) {
	base := []model.CountryMapping{
		{CountryNameNormalized: "chile", CountryCode: "CHL", CountryName: "Chile", SourcePrecedence: model.PrecedenceWorldBank},
		{CountryNameNormalized: "peru", CountryCode: "PER", CountryName: "Peru", SourcePrecedence: model.PrecedenceWorldBank},
	}
	overrides := []model.MappingOverride{
		// Partial override: only the display name changes, code falls back.
		{CountryNameNormalized: "chile", CountryName: "Republic of Chile"},
		// New key only present in the override table.
		{CountryNameNormalized: "kosovo", CountryCode: "XKX", CountryName: "Kosovo"},
	}

	merged := MergeOverrides(base, overrides)
	require.Len(t, merged, 3)

	assert.Equal(t, "chile", merged[0].CountryNameNormalized)
	assert.Equal(t, "CHL", merged[0].CountryCode)
	assert.Equal(t, "Republic of Chile", merged[0].CountryName)
	assert.Equal(t, model.PrecedenceOverride, merged[0].SourcePrecedence)

	assert.Equal(t, "kosovo", merged[1].CountryNameNormalized)
	assert.Equal(t, model.PrecedenceOverride, merged[1].SourcePrecedence)

	assert.Equal(t, "peru", merged[2].CountryNameNormalized)
	assert.Equal(t, model.PrecedenceWorldBank, merged[2].SourcePrecedence)
}

func writeOverrideFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "overrides.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOverrides(t *testing.T) {
	path := writeOverrideFile(t,
		"country_name_normalized,country_code,country_name\n"+
			"kosovo,XKX,Kosovo\n"+
			"  ,IGN,Ignored blank key\n"+
			"chile,,Republic of Chile\n")

	overrides, err := LoadOverrides(path)
	require.NoError(t, err)
	require.Len(t, overrides, 2)
	assert.Equal(t, "kosovo", overrides[0].CountryNameNormalized)
	assert.Equal(t, "", overrides[1].CountryCode)
}

func TestLoadOverrides_MissingColumnIsFatal(t *testing.T) {
	path := writeOverrideFile(t, "country_name_normalized,country_name\nchile,Chile\n")

	_, err := LoadOverrides(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing column "country_code"`)
}

func TestLoadOverrides_MissingFileIsFatal(t *testing.T) {
	_, err := LoadOverrides(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}

func TestMapping_Run_EndToEnd(t *testing.T) {
	store := storage.NewLocal(t.TempDir())
	ctx := context.Background()

	gdpKey := storage.Join(storage.ZoneProcessed, WorldBankProcessedDataset,
		storage.YearPartition(2023), worldBankProcessedFile)
	require.NoError(t, storage.WriteTable(ctx, store, gdpKey, []model.GDPRow{
		gdpRow("CHL", "Chile", 2023),
		gdpRow("PER", "Peru", 2023),
	}))

	overridePath := writeOverrideFile(t,
		"country_name_normalized,country_code,country_name\nkosovo,XKX,Kosovo\n")

	m := &Mapping{Store: store, OverridePath: overridePath}
	n, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	byKey, err := LoadMapping(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "CHL", byKey["chile"].CountryCode)
	assert.Equal(t, model.PrecedenceOverride, byKey["kosovo"].SourcePrecedence)
}
