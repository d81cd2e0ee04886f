// Package indicators scrapes the market-data site for the label/value
// indicator pairs shown on an asset's page, plus its distribution history
// endpoint. Nothing here is contractual upstream; every extraction is best
// effort and a changed page simply yields fewer pairs.
package indicators

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/PuerkitoBio/goquery"
	jsonrepair "github.com/RealAlexandreAI/json-repair"

	"brasset_research/pkg/core/cache"
	"brasset_research/pkg/core/config"
	"brasset_research/pkg/core/webfetch"
	"brasset_research/pkg/models"
)

// Scraper fetches and caches one indicator report per symbol.
type Scraper struct {
	cfg    *config.Config
	client *webfetch.Client
	cache  *cache.Cache
}

// NewScraper wires the scraper to the shared client and quick cache.
func NewScraper(cfg *config.Config, client *webfetch.Client, quickCache *cache.Cache) *Scraper {
	return &Scraper{cfg: cfg, client: client, cache: quickCache}
}

// Fetch returns the indicator report for an entity. Upstream failure degrades
// to an empty report rather than an error; indicators are decoration, not the
// core dataset.
func (s *Scraper) Fetch(ctx context.Context, entity *models.Entity) *models.IndicatorReport {
	key := "indicators:" + entity.Symbol
	if v, ok := s.cache.Get(key); ok {
		return v.(*models.IndicatorReport)
	}

	report := &models.IndicatorReport{
		Symbol:     entity.Symbol,
		AssetClass: entity.AssetClass,
		Indicators: make(map[string]string),
	}

	body, err := s.client.GetQuick(ctx, s.pageURL(entity))
	if err != nil {
		log.Printf("[Indicators] %s page unavailable: %v", entity.Symbol, err)
		return report
	}
	scrapePairs(body, report.Indicators)

	if dist, err := s.fetchDistributions(ctx, entity); err == nil {
		report.Distributions = dist
	}

	s.cache.Set(key, report)
	return report
}

func (s *Scraper) pageURL(entity *models.Entity) string {
	base := strings.TrimRight(s.cfg.MarketSiteURL, "/")
	segment := "acoes"
	if entity.AssetClass == models.AssetFund {
		segment = "fundos-imobiliarios"
	}
	return fmt.Sprintf("%s/%s/%s", base, segment, strings.ToLower(entity.Symbol))
}

// scrapePairs pulls every strong.value element and pairs it with the h3 or
// span.sub-value label inside the same parent block.
func scrapePairs(body []byte, out map[string]string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return
	}
	doc.Find("strong.value").Each(func(i int, value *goquery.Selection) {
		parent := value.ParentsFiltered("div").First()
		if parent.Length() == 0 {
			return
		}
		label := strings.TrimSpace(parent.Find("h3").First().Text())
		if label == "" {
			label = strings.TrimSpace(parent.Find("span.sub-value").First().Text())
		}
		if label != "" {
			out[label] = strings.TrimSpace(value.Text())
		}
	})
}

// fetchDistributions reads the site's distribution-history JSON endpoint,
// tolerating the sloppy payloads it occasionally serves.
func (s *Scraper) fetchDistributions(ctx context.Context, entity *models.Entity) (map[string]interface{}, error) {
	base := strings.TrimRight(s.cfg.MarketSiteURL, "/")
	var url string
	if entity.AssetClass == models.AssetFund {
		url = fmt.Sprintf("%s/fii/tickerprovents?ticker=%s&chartProv498=true", base, entity.Symbol)
	} else {
		url = fmt.Sprintf("%s/acao/companytickerprovents?ticker=%s&chartProv498=true", base, entity.Symbol)
	}

	body, err := s.client.GetQuick(ctx, url)
	if err != nil {
		return nil, err
	}

	var dist map[string]interface{}
	if err := json.Unmarshal(body, &dist); err == nil {
		return dist, nil
	}
	repaired, err := jsonrepair.RepairJSON(string(body))
	if err != nil {
		return nil, fmt.Errorf("indicators: distributions not decodable: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &dist); err != nil {
		return nil, fmt.Errorf("indicators: distributions not decodable: %w", err)
	}
	return dist, nil
}
