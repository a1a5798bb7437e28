package model

// Country mapping provenance tags. An override always wins on code and name,
// and its provenance is always "override" regardless of what it replaced.
const (
	PrecedenceWorldBank = "world_bank"
	PrecedenceOverride  = "override"
)

// GDPRow is one processed World Bank observation: one row per
// (country_code, year) with the GDP-per-capita value in current USD.
type GDPRow struct {
	CountryCode     string   `csv:"country_code"`
	CountryName     string   `csv:"country_name"`
	Year            int      `csv:"year"`
	GDPPerCapitaUSD *float64 `csv:"gdp_per_capita_usd"`
	IndicatorID     string   `csv:"indicator_id"`
	IndicatorName   string   `csv:"indicator_name"`
	IngestionRunID  string   `csv:"ingestion_run_id"`
	IngestionTS     string   `csv:"ingestion_ts"`
	DataSource      string   `csv:"data_source"`
}

// CO2Row is one processed Wikipedia observation in long format: one row per
// (country, year). CountryCode is empty when the free-text country name
// could not be reconciled; such rows stay in the processed layer but are
// excluded from the curated join.
type CO2Row struct {
	CountryName           string   `csv:"country_name"`
	CountryNameNormalized string   `csv:"country_name_normalized"`
	CountryCode           string   `csv:"country_code"`
	Year                  int      `csv:"year"`
	CO2TonsPerCapita      *float64 `csv:"co2_tons_per_capita"`
	Notes                 string   `csv:"notes"`
	IngestionRunID        string   `csv:"ingestion_run_id"`
	IngestionTS           string   `csv:"ingestion_ts"`
	DataSource            string   `csv:"data_source"`
}

// CountryMapping reconciles a normalized country-name key with its ISO code
// and canonical display name.
type CountryMapping struct {
	CountryNameNormalized string `csv:"country_name_normalized"`
	CountryCode           string `csv:"country_code"`
	CountryName           string `csv:"country_name"`
	SourcePrecedence      string `csv:"source_precedence"`
}

// MappingOverride is one row of the manual override table. Empty fields fall
// back to the base mapping during the merge.
type MappingOverride struct {
	CountryNameNormalized string `csv:"country_name_normalized"`
	CountryCode           string `csv:"country_code"`
	CountryName           string `csv:"country_name"`
}

// CuratedRow is one joined (country_code, year) observation with the derived
// CO2-intensity metric. Each curated build is a full snapshot, so the
// first-ingestion and last-update run ids are always equal within one
// snapshot.
type CuratedRow struct {
	CountryCode         string   `csv:"country_code"`
	CountryName         string   `csv:"country_name"`
	Year                int      `csv:"year"`
	GDPPerCapitaUSD     *float64 `csv:"gdp_per_capita_usd"`
	CO2TonsPerCapita    *float64 `csv:"co2_tons_per_capita"`
	CO2Per1000USDGDP    *float64 `csv:"co2_per_1000usd_gdp"`
	GDPSourceSystem     string   `csv:"gdp_source_system"`
	CO2SourceSystem     string   `csv:"co2_source_system"`
	FirstIngestionRunID string   `csv:"first_ingestion_run_id"`
	LastUpdateRunID     string   `csv:"last_update_run_id"`
	LastUpdateTS        string   `csv:"last_update_ts"`
}
