package canonhash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical_SortsKeys(t *testing.T) {
	got, err := Canonical(map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2}`, got)
}

func TestHash_StableAcrossShapes(t *testing.T) {
	type payload struct {
		Value float64 `json:"value"`
		Code  string  `json:"code"`
	}

	fromStruct, err := Hash(payload{Code: "CHL", Value: 15355.5})
	require.NoError(t, err)
	fromMap, err := Hash(map[string]any{"code": "CHL", "value": 15355.5})
	require.NoError(t, err)

	assert.Equal(t, fromStruct, fromMap)
	assert.Len(t, fromStruct, 40)
}

func TestHash_DifferentPayloadsDiffer(t *testing.T) {
	a, err := Hash(map[string]any{"code": "CHL"})
	require.NoError(t, err)
	b, err := Hash(map[string]any{"code": "PER"})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCanonical_Unmarshalable(t *testing.T) {
	_, err := Canonical(make(chan int))
	require.Error(t, err)
}
