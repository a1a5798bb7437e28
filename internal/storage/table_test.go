package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tableRow struct {
	Country string   `csv:"country_name"`
	Year    int      `csv:"year"`
	Value   *float64 `csv:"value"`
}

func TestEncodeTable_RoundTrip(t *testing.T) {
	v := 1234.5
	rows := []tableRow{
		{Country: "Chile", Year: 2023, Value: &v},
		{Country: "Peru", Year: 2023, Value: nil},
	}

	data, err := EncodeTable(rows)
	require.NoError(t, err)

	decoded, err := DecodeTable[tableRow](data)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, "Chile", decoded[0].Country)
	assert.Equal(t, 1234.5, *decoded[0].Value)
	assert.Nil(t, decoded[1].Value)
}

func TestEncodeTable_EmptyKeepsHeader(t *testing.T) {
	data, err := EncodeTable([]tableRow{})
	require.NoError(t, err)

	header := strings.SplitN(string(data), "\n", 2)[0]
	assert.Equal(t, "country_name,year,value", header)

	decoded, err := DecodeTable[tableRow](data)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestReadTablePrefix_ConcatenatesPartitions(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, WriteTable(ctx, s, "processed/gdp/year=2022/data.csv", []tableRow{{Country: "Chile", Year: 2022}}))
	require.NoError(t, WriteTable(ctx, s, "processed/gdp/year=2023/data.csv", []tableRow{{Country: "Chile", Year: 2023}, {Country: "Peru", Year: 2023}}))

	rows, err := ReadTablePrefix[tableRow](ctx, s, "processed/gdp/")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 2022, rows[0].Year)
	assert.Equal(t, 2023, rows[1].Year)
}
