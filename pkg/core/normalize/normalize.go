// Package normalize translates raw archive rows into canonical financial
// fields. Column names drift across report years (and the fund-class regime
// renamed most of them), so mapping is layered: an exact-name table first,
// then a fixed, ordered list of substring heuristics for whatever is still
// unset. First match wins, so the output is deterministic per row.
package normalize

import (
	"strconv"
	"strings"

	"brasset_research/pkg/models"
)

// unitsFloor rejects heuristic units-issued matches that are too small to be
// a share count (those columns are usually per-unit values misnamed).
const unitsFloor = 1000

// Exact raw-column names observed across historical schema versions, keyed
// lowercase. Aggregate tables carry fund-level totals; composition tables
// carry the asset/liability breakdown.
var exactAggregate = map[string]models.Field{
	"patrimonio_liquido":               models.FieldNetAssets,
	"patrimonio_liquido_classe":        models.FieldNetAssets,
	"patrim_liq":                       models.FieldNetAssets,
	"valor_ativo":                      models.FieldTotalAssets,
	"cotas_emitidas":                   models.FieldUnitsIssued,
	"quantidade_cotas_emitidas":        models.FieldUnitsIssued,
	"total_numero_cotistas":            models.FieldHolderCount,
	"numero_cotistas":                  models.FieldHolderCount,
	"valor_patrimonial_cotas":          models.FieldReportedUnitValue,
	"valor_patrimonial_cota":           models.FieldReportedUnitValue,
	"percentual_amortizacao_cotas_mes": models.FieldAmortizationPctMon,
	"percentual_dividend_yield_mes":    models.FieldDividendYieldPctMon,
}

var exactComposition = map[string]models.Field{
	"disponibilidades":       models.FieldCashAvailable,
	"direitos_bens_imoveis":  models.FieldRealEstateAssets,
	"imoveis_renda_acabados": models.FieldRealEstateAssets,
	"total_passivo":          models.FieldTotalLiabilities,
	"valor_total_passivo":    models.FieldTotalLiabilities,
	"valor_ativo":            models.FieldTotalAssets,
	"patrimonio_liquido":     models.FieldNetAssets,
}

// rule is one substring heuristic. all must match, none must be absent, and
// a positive min acts as a plausibility floor. Rules without a floor accept
// any parseable value, negatives included, same as the exact-name layer.
type rule struct {
	field models.Field
	all   []string
	none  []string
	min   float64
}

// Heuristics run in this order; earlier rules claim their field before later
// ones are consulted. Reordering changes behavior on ambiguous rows.
var aggregateRules = []rule{
	{field: models.FieldNetAssets, all: []string{"patrim", "liq"}},
	{field: models.FieldUnitsIssued, all: []string{"cota", "emitid"}, none: []string{"cotist"}, min: unitsFloor},
	{field: models.FieldHolderCount, all: []string{"cotist"}},
	{field: models.FieldReportedUnitValue, all: []string{"valor", "patrimonial"}, none: []string{"liq"}},
	{field: models.FieldAmortizationPctMon, all: []string{"amortiz"}},
	{field: models.FieldDividendYieldPctMon, all: []string{"dividend"}},
	{field: models.FieldTotalAssets, all: []string{"valor", "ativo"}, none: []string{"passivo"}},
}

var compositionRules = []rule{
	{field: models.FieldCashAvailable, all: []string{"disponib"}},
	{field: models.FieldRealEstateAssets, all: []string{"imove"}, none: []string{"obrigac"}},
	{field: models.FieldTotalLiabilities, all: []string{"passivo"}},
	{field: models.FieldNetAssets, all: []string{"patrim", "liq"}},
}

// MapAggregate extracts fund-level totals (net assets, issued units, holder
// count and the monthly percentage indicators) from one raw row.
func MapAggregate(row models.RawRow) map[models.Field]float64 {
	return mapRow(row, exactAggregate, aggregateRules)
}

// MapComposition extracts the asset/liability breakdown from one raw row.
func MapComposition(row models.RawRow) map[models.Field]float64 {
	return mapRow(row, exactComposition, compositionRules)
}

func mapRow(row models.RawRow, exact map[string]models.Field, rules []rule) map[models.Field]float64 {
	out := make(map[models.Field]float64)

	// Layer 1: exact column names, in header order.
	for _, col := range row.Columns {
		field, ok := exact[strings.ToLower(col)]
		if !ok {
			continue
		}
		if _, taken := out[field]; taken {
			continue
		}
		if v, ok := ParseDecimal(row.Get(col)); ok {
			out[field] = v
		}
	}

	// Layer 2: ordered substring heuristics for fields still unset.
	for _, r := range rules {
		if _, taken := out[r.field]; taken {
			continue
		}
		for _, col := range row.Columns {
			if !r.matches(strings.ToLower(col)) {
				continue
			}
			v, ok := ParseDecimal(row.Get(col))
			if !ok || (r.min > 0 && v < r.min) {
				continue
			}
			out[r.field] = v
			break
		}
	}
	return out
}

func (r rule) matches(col string) bool {
	for _, s := range r.all {
		if !strings.Contains(col, s) {
			return false
		}
	}
	for _, s := range r.none {
		if strings.Contains(col, s) {
			return false
		}
	}
	return true
}

// ParseDecimal parses a locale-ambiguous numeric cell. Brazilian files write
// "1.234,56"; some years already use "1234.56". Blank and zero cells report
// ok=false so they never claim a canonical field.
func ParseDecimal(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return v, true
}

// BookValuePerUnit derives net assets per issued unit. Defined only when both
// inputs are present and units is positive; callers get nil otherwise, never
// zero or NaN.
func BookValuePerUnit(fields map[models.Field]float64) *float64 {
	na, okNA := fields[models.FieldNetAssets]
	units, okU := fields[models.FieldUnitsIssued]
	if !okNA || !okU || units <= 0 {
		return nil
	}
	v := na / units
	return &v
}

// RowCNPJ returns the digits-only tax id of the row's entity column, whether
// the schema version keys rows by fund or by fund class.
func RowCNPJ(row models.RawRow) string {
	for _, col := range row.Columns {
		if strings.Contains(strings.ToLower(col), "cnpj") {
			if d := models.DigitsOnly(row.Get(col)); d != "" {
				return d
			}
		}
	}
	return ""
}

// PeriodKey extracts the reporting period from the row's reference-date
// column as "YYYY-MM", or "YYYY-Qn" for quarterly archives. Returns "" when
// no usable date is present.
func PeriodKey(row models.RawRow, kind models.ArchiveKind) string {
	raw := ""
	for _, col := range row.Columns {
		lc := strings.ToLower(col)
		if strings.Contains(lc, "data_referencia") || strings.Contains(lc, "dt_refer") {
			raw = strings.TrimSpace(row.Get(col))
			break
		}
	}
	if raw == "" {
		return ""
	}

	year, month, ok := parseDate(raw)
	if !ok {
		return ""
	}
	if kind == models.ArchiveQuarterly {
		q := (month-1)/3 + 1
		return strconv.Itoa(year) + "-Q" + strconv.Itoa(q)
	}
	m := strconv.Itoa(month)
	if month < 10 {
		m = "0" + m
	}
	return strconv.Itoa(year) + "-" + m
}

// parseDate accepts "2023-04", "2023-04-30" and "30/04/2023".
func parseDate(raw string) (year, month int, ok bool) {
	if strings.Contains(raw, "/") {
		parts := strings.Split(raw, "/")
		if len(parts) != 3 {
			return 0, 0, false
		}
		y, errY := strconv.Atoi(parts[2])
		m, errM := strconv.Atoi(parts[1])
		if errY != nil || errM != nil || m < 1 || m > 12 {
			return 0, 0, false
		}
		return y, m, true
	}
	parts := strings.Split(raw, "-")
	if len(parts) < 2 {
		return 0, 0, false
	}
	y, errY := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	if errY != nil || errM != nil || m < 1 || m > 12 {
		return 0, 0, false
	}
	return y, m, true
}
