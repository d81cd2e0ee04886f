package resolve

import (
	"regexp"
	"strings"

	"brasset_research/pkg/models"
)

var (
	leadingAlpha  = regexp.MustCompile(`^[A-Z]+`)
	trailingDigit = regexp.MustCompile(`\d+B?$`)
)

// DetectAssetClass classifies a symbol as fund or equity from exchange naming
// conventions: numeric suffixes 3/4/5/6 are share classes, a four-letter root
// with suffix 11 is almost always a fund, and the known-unit list overrides
// the handful of equity units that also end in 11.
func DetectAssetClass(symbol string) models.AssetClass {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if knownFunds[symbol] {
		return models.AssetFund
	}
	if knownUnits[symbol] {
		return models.AssetEquity
	}

	suffix := strings.ReplaceAll(leadingAlpha.ReplaceAllString(symbol, ""), "B", "")
	switch suffix {
	case "3", "4", "5", "6":
		return models.AssetEquity
	case "11":
		root := trailingDigit.ReplaceAllString(symbol, "")
		if len(root) == 4 {
			return models.AssetFund
		}
	case "13":
		return models.AssetFund
	}
	return models.AssetEquity
}
