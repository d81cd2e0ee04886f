// Package resolve maps a trading symbol to its legal entity through a tiered
// fallback chain: static directory, targeted page scraping, then a linear
// scan of the regulator's bulk registry. Resolution never fails outright; an
// exhausted chain produces an entity with no CNPJ that downstream components
// must treat as unresolved.
package resolve

import (
	"context"
	"log"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"brasset_research/pkg/core/cache"
	"brasset_research/pkg/core/config"
	"brasset_research/pkg/core/cvm"
	"brasset_research/pkg/core/strategy"
	"brasset_research/pkg/core/webfetch"
	"brasset_research/pkg/models"
)

// Tier labels recorded on resolved entities for observability.
const (
	TierStatic   = "static"
	TierPage     = "page"
	TierRegistry = "registry"
	TierNone     = "none"
)

var cnpjPattern = regexp.MustCompile(`\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}`)

// Resolver executes the tier chain and memoizes the outcome per symbol, so a
// symbol that needed the registry tier is answered from cache afterwards.
type Resolver struct {
	cfg      *config.Config
	client   *webfetch.Client
	ingester *cvm.Ingester
	cache    *cache.Cache
}

// NewResolver wires the resolver to the shared client, ingester and quick cache.
func NewResolver(cfg *config.Config, client *webfetch.Client, ingester *cvm.Ingester, quickCache *cache.Cache) *Resolver {
	return &Resolver{cfg: cfg, client: client, ingester: ingester, cache: quickCache}
}

// Resolve returns the entity for a symbol. Within the cache TTL, repeated
// calls return the identical value with zero network work.
func (r *Resolver) Resolve(ctx context.Context, symbol string) *models.Entity {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	key := "entity:" + symbol
	if v, ok := r.cache.Get(key); ok {
		return v.(*models.Entity)
	}

	entity := &models.Entity{
		Symbol:         symbol,
		AssetClass:     DetectAssetClass(symbol),
		ResolutionTier: TierNone,
	}

	tier, outcomes := strategy.Execute([]strategy.Attempt{
		{Label: TierStatic, Run: func() (int, error) { return r.fromStatic(entity) }},
		{Label: TierPage, Run: func() (int, error) { return r.fromPages(ctx, entity) }},
		{Label: TierRegistry, Run: func() (int, error) { return r.fromRegistry(ctx, entity) }},
	})
	if tier != "" {
		entity.ResolutionTier = tier
	} else {
		log.Printf("[Resolve] %s unresolved after tiers %v", symbol, strategy.Labels(outcomes))
	}

	r.cache.Set(key, entity)
	return entity
}

func (r *Resolver) fromStatic(e *models.Entity) (int, error) {
	entry, ok := staticDirectory[e.Symbol]
	if !ok {
		return 0, nil
	}
	e.CNPJ = entry.cnpj
	e.LegalName = entry.name
	return 1, nil
}

// fromPages fetches known informational pages in priority order and extracts
// a CNPJ-shaped pattern plus a heading-derived name. Page layout is not
// contractual; a page that stopped matching just yields nothing.
func (r *Resolver) fromPages(ctx context.Context, e *models.Entity) (int, error) {
	for _, url := range r.pageCandidates(e) {
		body, err := r.client.GetQuick(ctx, url)
		if err != nil {
			continue
		}
		cnpj, name := extractFromPage(body)
		if cnpj == "" {
			continue
		}
		e.CNPJ = cnpj
		if name != "" {
			e.LegalName = name
		}
		return 1, nil
	}
	return 0, nil
}

func (r *Resolver) pageCandidates(e *models.Entity) []string {
	base := strings.TrimRight(r.cfg.MarketSiteURL, "/")
	lower := strings.ToLower(e.Symbol)
	if e.AssetClass == models.AssetFund {
		return []string{
			base + "/fundos-imobiliarios/" + lower,
			base + "/fiagros/" + lower,
		}
	}
	return []string{base + "/acoes/" + lower}
}

// extractFromPage pulls the first CNPJ-shaped string and a best-effort legal
// name from the page headings.
func extractFromPage(body []byte) (cnpj, name string) {
	cnpj = cnpjPattern.FindString(string(body))
	if cnpj == "" {
		return "", ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return cnpj, ""
	}
	doc.Find("h1, h2").EachWithBreak(func(i int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if len(text) > 8 && strings.Contains(strings.ToLower(text), "fundo") {
			name = text
			return false
		}
		return true
	})
	if name == "" {
		if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
			name = h1
		}
	}
	return cnpj, name
}

// fromRegistry linear-scans the bulk registry directory for a line mentioning
// the symbol and extracts the CNPJ pattern from it.
func (r *Resolver) fromRegistry(ctx context.Context, e *models.Entity) (int, error) {
	lines, err := r.ingester.RegistryLines(ctx)
	if err != nil {
		return 0, err
	}
	for _, line := range lines {
		if !strings.Contains(strings.ToUpper(line), e.Symbol) {
			continue
		}
		if cnpj := cnpjPattern.FindString(line); cnpj != "" {
			e.CNPJ = cnpj
			if name := registryName(line); name != "" {
				e.LegalName = name
			}
			return 1, nil
		}
	}
	return 0, nil
}

// registryName takes the longest text field of a registry line as the legal
// name, good enough for display.
func registryName(line string) string {
	best := ""
	for _, f := range strings.Split(line, ";") {
		f = strings.TrimSpace(strings.Trim(f, `"`))
		if len(f) > len(best) && strings.Contains(strings.ToUpper(f), "FUNDO") {
			best = f
		}
	}
	return best
}
