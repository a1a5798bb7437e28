package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorldBank_FetchAllPages_Paginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/country/all/indicator/NY.GDP.PCAP.CD", r.URL.Path)
		page := r.URL.Query().Get("page")
		fmt.Fprintf(w, `[
			{"page": %s, "pages": 2, "per_page": 1000, "total": 4},
			[
				{"countryiso3code": "CHL", "date": "202%s", "value": 1.5},
				{"countryiso3code": "PER", "date": "202%s", "value": 2.5}
			]
		]`, page, page, page)
	}))
	defer srv.Close()

	wb := NewWorldBank(newTestClient(), srv.URL)
	records, err := wb.FetchAllPages(context.Background(), "NY.GDP.PCAP.CD")
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "CHL", records[0]["countryiso3code"])
	assert.Equal(t, "2022", records[2]["date"])
}

func TestWorldBank_FetchAllPages_StringMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"page": "1", "pages": "1", "total": "1"}, [{"date": "2023"}]]`)
	}))
	defer srv.Close()

	wb := NewWorldBank(newTestClient(), srv.URL)
	records, err := wb.FetchAllPages(context.Background(), "X")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestWorldBank_FetchAllPages_BadEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"message": "invalid indicator"}]`)
	}))
	defer srv.Close()

	wb := NewWorldBank(newTestClient(), srv.URL)
	_, err := wb.FetchAllPages(context.Background(), "BOGUS")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected [metadata, records]")
}

func TestWorldBank_FetchAllPages_NotAnArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": "nope"}`)
	}))
	defer srv.Close()

	wb := NewWorldBank(newTestClient(), srv.URL)
	_, err := wb.FetchAllPages(context.Background(), "X")
	require.Error(t, err)
}
