package model

// Audit field names attached to every raw record on top of the original
// upstream payload. The content hash is computed before these are added, so
// re-ingesting identical upstream data yields the same hash across runs.
const (
	FieldIngestionRunID = "ingestion_run_id"
	FieldIngestionTS    = "ingestion_ts"
	FieldDataSource     = "data_source"
	FieldRawPayload     = "raw_payload"
	FieldRecordHash     = "record_hash"
	FieldRawFilePath    = "raw_file_path"
)

// WikipediaTablePayload is the structural payload of one scraped table:
// the page it came from, its column headers, and the still-dirty rows keyed
// by header text. Cell values are nil when the cell was missing or empty.
// The record hash covers exactly this structure.
type WikipediaTablePayload struct {
	PageURL string               `json:"page_url"`
	Headers []string             `json:"headers"`
	Rows    []map[string]*string `json:"rows"`
}

// WikipediaRawRecord is the single raw record written per Wikipedia
// ingestion (one batch holds exactly one record).
type WikipediaRawRecord struct {
	IngestionRunID string                `json:"ingestion_run_id"`
	IngestionTS    string                `json:"ingestion_ts"`
	DataSource     string                `json:"data_source"`
	PageURL        string                `json:"page_url"`
	PageID         int64                 `json:"pageid"`
	RevisionID     int64                 `json:"revid"`
	RevTimestamp   string                `json:"rev_timestamp"`
	TableHTML      string                `json:"table_html"`
	RawTable       WikipediaTablePayload `json:"raw_table_json"`
	RecordHash     string                `json:"record_hash"`
	RawFilePath    string                `json:"raw_file_path"`
}
