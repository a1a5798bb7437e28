package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// PageInfo identifies the current revision of a Wikipedia page.
type PageInfo struct {
	Title        string
	PageID       int64
	RevisionID   int64
	RevTimestamp string
}

// WikipediaClient fetches article pages and revision metadata via the
// MediaWiki API.
type WikipediaClient struct {
	client *Client
}

// NewWikipedia creates a Wikipedia client.
func NewWikipedia(client *Client) *WikipediaClient {
	return &WikipediaClient{client: client}
}

// titleFromURL extracts the article title from a /wiki/<Title> page URL.
func titleFromURL(pageURL string) (string, *url.URL, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", nil, eris.Wrapf(err, "wikipedia: parse url %s", pageURL)
	}
	title := strings.TrimPrefix(u.Path, "/wiki/")
	if title == "" || title == u.Path {
		return "", nil, eris.Errorf("wikipedia: no article title in %s", pageURL)
	}
	if decoded, err := url.PathUnescape(title); err == nil {
		title = decoded
	}
	return title, u, nil
}

// PageInfo probes the current revision of the page without downloading the
// article body.
func (w *WikipediaClient) PageInfo(ctx context.Context, pageURL string) (*PageInfo, error) {
	title, u, err := titleFromURL(pageURL)
	if err != nil {
		return nil, err
	}

	apiURL := fmt.Sprintf("%s://%s/w/api.php?action=query&prop=revisions&rvprop=ids|timestamp&format=json&titles=%s",
		u.Scheme, u.Host, url.QueryEscape(title))

	body, err := w.client.Get(ctx, apiURL)
	if err != nil {
		return nil, eris.Wrapf(err, "wikipedia: revision probe for %s", title)
	}

	var resp struct {
		Query struct {
			Pages map[string]struct {
				PageID    int64  `json:"pageid"`
				Title     string `json:"title"`
				Revisions []struct {
					RevID     int64  `json:"revid"`
					Timestamp string `json:"timestamp"`
				} `json:"revisions"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "wikipedia: decode revision response")
	}

	for _, page := range resp.Query.Pages {
		if page.PageID == 0 || len(page.Revisions) == 0 {
			continue
		}
		return &PageInfo{
			Title:        page.Title,
			PageID:       page.PageID,
			RevisionID:   page.Revisions[0].RevID,
			RevTimestamp: page.Revisions[0].Timestamp,
		}, nil
	}
	return nil, eris.Errorf("wikipedia: no revision found for %s", title)
}

// FetchPage downloads the raw article HTML.
func (w *WikipediaClient) FetchPage(ctx context.Context, pageURL string) (string, error) {
	body, err := w.client.Get(ctx, pageURL)
	if err != nil {
		return "", eris.Wrapf(err, "wikipedia: fetch page %s", pageURL)
	}
	return string(body), nil
}

// ExtractedTable is the structural form of one HTML table: the header row
// plus each data row as a header-keyed map. Empty cells are nil.
type ExtractedTable struct {
	Headers []string
	Rows    []map[string]*string
	HTML    string
}

var footnoteRe = regexp.MustCompile(`\[[^\]]*\]`)

func cleanCell(text string) string {
	text = footnoteRe.ReplaceAllString(text, "")
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}

// ExtractTable locates the emissions table in the page and converts it to
// structural form. Candidate tables are tried in order of confidence:
// caption mentioning emissions per capita, caption mentioning CO2, body text
// mentioning both, then the first wikitable.
func ExtractTable(html string) (*ExtractedTable, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "wikipedia: parse html")
	}

	table := selectTable(doc)
	if table == nil {
		return nil, eris.New("wikipedia: no candidate table found in page")
	}

	rows := table.Find("tr")
	if rows.Length() == 0 {
		return nil, eris.New("wikipedia: selected table has no rows")
	}

	var headers []string
	rows.First().Find("th, td").Each(func(_ int, cell *goquery.Selection) {
		headers = append(headers, cleanCell(cell.Text()))
	})
	if len(headers) == 0 {
		return nil, eris.New("wikipedia: selected table has no header cells")
	}

	var data []map[string]*string
	rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
		if row.Find("td").Length() == 0 {
			return
		}

		record := make(map[string]*string, len(headers))
		row.Find("th, td").Each(func(i int, cell *goquery.Selection) {
			if i >= len(headers) {
				return
			}
			if v := cleanCell(cell.Text()); v != "" {
				record[headers[i]] = &v
			} else {
				record[headers[i]] = nil
			}
		})
		data = append(data, record)
	})

	tableHTML, err := goquery.OuterHtml(table)
	if err != nil {
		return nil, eris.Wrap(err, "wikipedia: render table html")
	}

	return &ExtractedTable{Headers: headers, Rows: data, HTML: tableHTML}, nil
}

func selectTable(doc *goquery.Document) *goquery.Selection {
	tables := doc.Find("table")

	byCaption := func(match func(string) bool) *goquery.Selection {
		var found *goquery.Selection
		tables.EachWithBreak(func(_ int, t *goquery.Selection) bool {
			caption := strings.ToLower(t.Find("caption").Text())
			if caption != "" && match(caption) {
				found = t
				return false
			}
			return true
		})
		return found
	}

	if t := byCaption(func(c string) bool {
		return strings.Contains(c, "emissions") && strings.Contains(c, "per capita")
	}); t != nil {
		return t
	}

	if t := byCaption(func(c string) bool {
		return strings.Contains(c, "co2") || strings.Contains(c, "carbon dioxide")
	}); t != nil {
		return t
	}

	var byText *goquery.Selection
	tables.EachWithBreak(func(_ int, t *goquery.Selection) bool {
		text := strings.ToLower(t.Text())
		if strings.Contains(text, "co2") && strings.Contains(text, "per capita") {
			byText = t
			return false
		}
		return true
	})
	if byText != nil {
		return byText
	}

	if wikitable := doc.Find("table.wikitable").First(); wikitable.Length() > 0 {
		return wikitable
	}
	return nil
}
