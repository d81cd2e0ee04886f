// Package models defines the domain types shared across the research core:
// resolved entities, regulator archives, normalized financial records and the
// snapshot timeline derived from them.
package models

import "strings"

// AssetClass distinguishes listed real-estate funds from common equities.
// The two classes hit different upstream endpoints.
type AssetClass string

const (
	AssetFund   AssetClass = "fii"
	AssetEquity AssetClass = "acao"
)

// Label returns the display label used by the API layer.
func (a AssetClass) Label() string {
	if a == AssetFund {
		return "FII"
	}
	return "Ação"
}

// Entity is a trading symbol resolved to a legal entity. CNPJ and LegalName
// stay empty when every resolution tier came up dry; callers must check
// Resolved() before doing CNPJ-scoped work.
type Entity struct {
	Symbol         string     `json:"symbol"`
	AssetClass     AssetClass `json:"asset_class"`
	CNPJ           string     `json:"cnpj,omitempty"`
	LegalName      string     `json:"legal_name,omitempty"`
	ResolutionTier string     `json:"resolution_tier"`
}

// Resolved reports whether a canonical tax identifier was found.
func (e *Entity) Resolved() bool {
	return e != nil && e.CNPJ != ""
}

// CNPJDigits returns the digits-only form of the CNPJ, the canonical join key
// against every data source (upstreams disagree on punctuation).
func (e *Entity) CNPJDigits() string {
	return DigitsOnly(e.CNPJ)
}

// DigitsOnly strips everything but 0-9 from an identifier.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ArchiveKind is the period granularity of a regulator bulk archive.
type ArchiveKind string

const (
	ArchiveMonthly   ArchiveKind = "monthly"
	ArchiveQuarterly ArchiveKind = "quarterly"
	ArchiveAnnual    ArchiveKind = "annual"
)

// RawRow is one parsed line of a delimited table. Columns preserves the header
// order from the file; Values maps raw column name to the untyped cell text.
// Rows are read-only once built.
type RawRow struct {
	Columns []string
	Values  map[string]string
}

// Get returns the raw cell for a column, or "" when absent.
func (r RawRow) Get(col string) string {
	return r.Values[col]
}

// Archive is one yearly bulk bundle, fully parsed. Immutable once fetched.
type Archive struct {
	Kind   ArchiveKind
	Year   int
	Tables map[string][]RawRow
}

// Field names one canonical financial fact extracted from raw tables.
type Field string

const (
	FieldNetAssets           Field = "net_assets"
	FieldTotalAssets         Field = "total_assets"
	FieldUnitsIssued         Field = "units_issued"
	FieldHolderCount         Field = "holder_count"
	FieldReportedUnitValue   Field = "reported_unit_value"
	FieldAmortizationPctMon  Field = "monthly_amortization_pct"
	FieldDividendYieldPctMon Field = "monthly_dividend_yield_pct"
	FieldCashAvailable       Field = "cash_available"
	FieldRealEstateAssets    Field = "real_estate_assets"
	FieldTotalLiabilities    Field = "total_liabilities"
)

// CanonicalRecord is the normalized view of one entity's facts for one
// reporting period. Provenance records which source table supplied each field.
type CanonicalRecord struct {
	PeriodKey  string             `json:"period"` // "2023-04" or "2023-Q2"
	CNPJDigits string             `json:"cnpj"`
	Fields     map[Field]float64  `json:"fields"`
	Provenance map[Field]string   `json:"-"`
}

// Value returns a field and whether it is present. Zero values are never
// stored by the normalizer, so presence implies a meaningful number.
func (c *CanonicalRecord) Value(f Field) (float64, bool) {
	v, ok := c.Fields[f]
	return v, ok
}

// Snapshot is a CanonicalRecord enriched with derived per-unit metrics.
// BookValuePerUnit is nil unless net assets and issued units are both present
// with units > 0.
type Snapshot struct {
	CanonicalRecord
	BookValuePerUnit         *float64 `json:"book_value_per_unit,omitempty"`
	CumulativeAmortization   *float64 `json:"cumulative_amortization,omitempty"`
	AdjustedBookValuePerUnit *float64 `json:"adjusted_book_value_per_unit,omitempty"`
}

// Timeline is the ordered, period-deduplicated snapshot series for an entity.
// YearsAttempted always lists the requested range so an empty result can be
// explained to the caller.
type Timeline struct {
	Symbol         string     `json:"symbol"`
	CNPJ           string     `json:"cnpj,omitempty"`
	Snapshots      []Snapshot `json:"snapshots"`
	YearsAttempted []int      `json:"years_attempted"`
	YearsLoaded    []int      `json:"years_loaded"`
	VariationPct   *float64   `json:"variation_pct,omitempty"`
}

// Empty reports whether no period survived attribution.
func (t *Timeline) Empty() bool { return len(t.Snapshots) == 0 }

// Document is one regulatory filing returned by the disclosure search.
// StrategyLabel names the query variant that produced it.
type Document struct {
	ID            int64  `json:"id"`
	Category      string `json:"categoria"`
	Type          string `json:"tipo"`
	DeliveryDate  string `json:"data_entrega"`
	ReferenceDate string `json:"data_referencia"`
	Status        string `json:"status"`
	DownloadURL   string `json:"url_download"`
	ViewURL       string `json:"url_fnet"`
	StrategyLabel string `json:"strategy"`
}

// IndicatorReport carries scraped market-site indicators plus the raw
// distribution history payload, both best effort.
type IndicatorReport struct {
	Symbol        string                 `json:"ticker"`
	AssetClass    AssetClass             `json:"tipo"`
	Indicators    map[string]string      `json:"indicadores"`
	Distributions map[string]interface{} `json:"proventos,omitempty"`
}
