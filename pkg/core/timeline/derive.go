package timeline

import (
	"strings"

	"brasset_research/pkg/core/normalize"
	"brasset_research/pkg/models"
)

// amortizationPerUnit converts one period's monthly amortization indicator
// into an absolute per-unit amount against that period's book value.
//
// The upstream schema never documented the magnitude of this field and
// published rows support two readings: a number >= 1 behaves like a
// percentage of book value, a number < 1 like a direct fraction. Both
// interpretations are kept behind this magnitude switch; treat the output as
// a best-effort indicator, not an accounting fact.
func amortizationPerUnit(pct, bookValue float64) float64 {
	if pct >= 1 {
		return bookValue * pct / 100
	}
	return bookValue * pct
}

// amortizationWalk accumulates amortization over every period in
// chronological order (not only the retained ones) and returns the running
// total as of each period key.
func amortizationWalk(sortedKeys []string, periods map[string]*models.CanonicalRecord) map[string]float64 {
	cumulative := make(map[string]float64, len(sortedKeys))
	running := 0.0

	for _, k := range sortedKeys {
		rec := periods[k]
		if pct, ok := rec.Value(models.FieldAmortizationPctMon); ok && pct > 0 {
			bv := 0.0
			if derived := normalize.BookValuePerUnit(rec.Fields); derived != nil {
				bv = *derived
			} else if reported, ok := rec.Value(models.FieldReportedUnitValue); ok {
				bv = reported
			}
			if bv > 0 {
				running += amortizationPerUnit(pct, bv)
			}
		}
		cumulative[k] = running
	}
	return cumulative
}

// retainKeys applies the fixed selection policy: the earliest period, the
// latest period, and for every distinct year its December period or, failing
// that, its latest available period. A bounded, display-ready trend rather
// than one point per month.
func retainKeys(sortedKeys []string) []string {
	if len(sortedKeys) == 0 {
		return nil
	}

	keep := map[string]bool{
		sortedKeys[0]:                 true,
		sortedKeys[len(sortedKeys)-1]: true,
	}

	perYear := make(map[string]string) // year -> chosen key
	for _, k := range sortedKeys {
		year := yearOf(k)
		chosen, ok := perYear[year]
		switch {
		case !ok:
			perYear[year] = k
		case isDecember(chosen):
			// December already chosen for this year; keep it.
		case isDecember(k) || k > chosen:
			perYear[year] = k
		}
	}
	for _, k := range perYear {
		keep[k] = true
	}

	out := make([]string, 0, len(keep))
	for _, k := range sortedKeys {
		if keep[k] {
			out = append(out, k)
		}
	}
	return out
}

func yearOf(key string) string {
	if i := strings.IndexByte(key, '-'); i > 0 {
		return key[:i]
	}
	return key
}

func isDecember(key string) bool {
	return strings.HasSuffix(key, "-12") || strings.HasSuffix(key, "-Q4")
}

// variationPct computes the summary change between the earliest and latest
// retained book values, guarded against missing or zero denominators.
func variationPct(snapshots []models.Snapshot) *float64 {
	if len(snapshots) < 2 {
		return nil
	}
	first := snapshots[0].BookValuePerUnit
	last := snapshots[len(snapshots)-1].BookValuePerUnit
	if first == nil || last == nil || *first == 0 {
		return nil
	}
	v := (*last - *first) / *first * 100
	return &v
}
