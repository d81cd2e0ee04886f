package resolve

import "sort"

// Hand-curated directory for the most liquid symbols: resolution without any
// network round trip. Kept deliberately small; everything else goes through
// the page and registry tiers.
var staticDirectory = map[string]staticEntry{
	"MXRF11": {cnpj: "97.521.225/0001-25", name: "Maxi Renda Fundo de Investimento Imobiliário"},
	"HGLG11": {cnpj: "11.728.688/0001-47", name: "CSHG Logística Fundo de Investimento Imobiliário"},
	"KNRI11": {cnpj: "12.005.956/0001-65", name: "Kinea Renda Imobiliária Fundo de Investimento Imobiliário"},
	"KNCR11": {cnpj: "16.706.958/0001-32", name: "Kinea Rendimentos Imobiliários Fundo de Investimento Imobiliário"},
	"XPLG11": {cnpj: "26.502.794/0001-85", name: "XP Log Fundo de Investimento Imobiliário"},
	"XPML11": {cnpj: "28.757.546/0001-00", name: "XP Malls Fundo de Investimento Imobiliário"},
	"VISC11": {cnpj: "17.554.274/0001-25", name: "Vinci Shopping Centers Fundo de Investimento Imobiliário"},
	"HGRE11": {cnpj: "09.072.017/0001-29", name: "CSHG Real Estate Fundo de Investimento Imobiliário"},
}

type staticEntry struct {
	cnpj string
	name string
}

// StaticSymbols lists the hand-curated symbols, sorted.
func StaticSymbols() []string {
	out := make([]string, 0, len(staticDirectory))
	for s := range staticDirectory {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// knownFunds are symbols known to be listed real-estate funds regardless of
// the suffix rules.
var knownFunds = map[string]bool{
	"BLCA11": true, "HGLG11": true, "MXRF11": true, "KNRI11": true, "KNCR11": true,
	"XPLG11": true, "BTLG11": true, "VISC11": true, "PVBI11": true, "LVBI11": true,
	"BRCO11": true, "BRCR11": true, "HGRE11": true, "XPML11": true, "BCFF11": true,
	"RECR11": true, "IRDM11": true, "CPTS11": true, "VGIP11": true, "RBRR11": true,
	"HSML11": true, "RBRF11": true, "VILG11": true, "HFOF11": true, "TRXF11": true,
	"JSRE11": true, "VRTA11": true, "CVBI11": true, "BLMG11": true, "BLMO11": true,
	"BLMR11": true, "BLMC11": true, "RVBI11": true, "PATC11": true, "PATL11": true,
	"GARE11": true, "RZTR11": true, "VGHF11": true, "TGAR11": true, "RCRB11": true,
	"GTWR11": true, "SPTW11": true, "XPCM11": true, "VINO11": true, "DEVA11": true,
	"HCTR11": true, "SNCI11": true, "RBVA11": true, "RZAK11": true, "CLIN11": true,
	"CCME11": true, "BTAL11": true, "BTCI11": true, "BTRA11": true, "GGRC11": true,
	"BBPO11": true,
}

// knownUnits are "11"-suffixed symbols that are equity units, not funds.
var knownUnits = map[string]bool{
	"BPAC11": true, "KLBN11": true, "TAEE11": true, "SAPR11": true,
	"SANB11": true, "SULA11": true, "ENGI11": true, "AURE11": true,
}
