package storage

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	return NewLocal(t.TempDir())
}

func TestLocal_WriteReadRoundTrip(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	key := Join(ZoneProcessed, "world_bank_gdp", YearPartition(2023), "data.csv")
	require.NoError(t, s.Write(ctx, key, []byte("a,b\n1,2\n")))

	data, err := s.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
}

func TestLocal_WriteOverwrites(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "raw/x.json", []byte("old")))
	require.NoError(t, s.Write(ctx, "raw/x.json", []byte("new")))

	data, err := s.Read(ctx, "raw/x.json")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestLocal_ReadMissing(t *testing.T) {
	s := newTestLocal(t)

	_, err := s.Read(context.Background(), "raw/missing.json")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestLocal_ListByPrefix(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "processed/gdp/year=2022/data.csv", []byte("x")))
	require.NoError(t, s.Write(ctx, "processed/gdp/year=2023/data.csv", []byte("x")))
	require.NoError(t, s.Write(ctx, "processed/co2/year=2023/data.csv", []byte("x")))

	keys, err := s.List(ctx, "processed/gdp/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"processed/gdp/year=2022/data.csv",
		"processed/gdp/year=2023/data.csv",
	}, keys)
}

func TestLocal_ListEmptyRoot(t *testing.T) {
	s := NewLocal(t.TempDir() + "/does-not-exist-yet")

	keys, err := s.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestPartitionHelpers(t *testing.T) {
	assert.Equal(t, "year=2023", YearPartition(2023))

	ts := time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "snapshot_date=20260829", SnapshotPartition(ts))

	assert.Equal(t,
		"raw/world_bank_gdp/world_bank_gdp_raw_20260829T143000Z.jsonl",
		RawKey("world_bank_gdp", ts))
}
