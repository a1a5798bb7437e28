package fetcher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultWorldBankBaseURL is the public v2 API endpoint.
const DefaultWorldBankBaseURL = "https://api.worldbank.org/v2"

// WorldBankClient pulls indicator data from the World Bank API. Responses
// are 2-element arrays: [pagination metadata, records].
type WorldBankClient struct {
	client  *Client
	baseURL string
	perPage int
}

// NewWorldBank creates a World Bank client. baseURL defaults to the public
// API when empty.
func NewWorldBank(client *Client, baseURL string) *WorldBankClient {
	if baseURL == "" {
		baseURL = DefaultWorldBankBaseURL
	}
	return &WorldBankClient{client: client, baseURL: baseURL, perPage: 1000}
}

func (w *WorldBankClient) pageURL(indicatorID string, page int) string {
	return fmt.Sprintf("%s/country/all/indicator/%s?format=json&per_page=%d&page=%d",
		w.baseURL, indicatorID, w.perPage, page)
}

// FetchAllPages retrieves every page of the indicator and returns the raw
// record payloads unmodified. The first page's metadata drives pagination.
func (w *WorldBankClient) FetchAllPages(ctx context.Context, indicatorID string) ([]map[string]any, error) {
	var all []map[string]any

	page := 1
	totalPages := 1
	for page <= totalPages {
		body, err := w.client.Get(ctx, w.pageURL(indicatorID, page))
		if err != nil {
			return nil, eris.Wrapf(err, "worldbank: fetch page %d of %s", page, indicatorID)
		}

		meta, records, err := parseWorldBankPage(body)
		if err != nil {
			return nil, eris.Wrapf(err, "worldbank: page %d of %s", page, indicatorID)
		}

		if page == 1 {
			totalPages = meta.Pages
			zap.L().Info("fetching world bank indicator",
				zap.String("indicator", indicatorID),
				zap.Int("pages", totalPages),
				zap.Int("total_records", meta.Total),
			)
		}

		all = append(all, records...)
		page++
	}

	return all, nil
}

type worldBankMeta struct {
	Page  int
	Pages int
	Total int
}

// parseWorldBankPage validates the [metadata, records] shape. The API is
// loose about numeric types in metadata, so fields are coerced.
func parseWorldBankPage(body []byte) (*worldBankMeta, []map[string]any, error) {
	var envelope []json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, nil, eris.Wrap(err, "response is not a JSON array")
	}
	if len(envelope) != 2 {
		return nil, nil, eris.Errorf("expected [metadata, records], got %d elements", len(envelope))
	}

	var rawMeta map[string]any
	if err := json.Unmarshal(envelope[0], &rawMeta); err != nil {
		return nil, nil, eris.Wrap(err, "decode metadata")
	}
	meta := &worldBankMeta{
		Page:  coerceInt(rawMeta["page"]),
		Pages: coerceInt(rawMeta["pages"]),
		Total: coerceInt(rawMeta["total"]),
	}
	if meta.Pages < 1 {
		meta.Pages = 1
	}

	var records []map[string]any
	if err := json.Unmarshal(envelope[1], &records); err != nil {
		return nil, nil, eris.Wrap(err, "decode records")
	}
	return meta, records, nil
}

// coerceInt handles the API's habit of returning numbers as either JSON
// numbers or strings.
func coerceInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		var parsed int
		if _, err := fmt.Sscanf(n, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return 0
}
