// Package fnet queries the exchange's disclosure search endpoint. The
// endpoint is sensitive to the exact identifier formatting and silently
// returns zero rows for formats it dislikes, so the search runs an ordered
// list of query variants and stops at the first one that produces results.
package fnet

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"

	"brasset_research/pkg/core/cache"
	"brasset_research/pkg/core/config"
	"brasset_research/pkg/core/strategy"
	"brasset_research/pkg/core/webfetch"
	"brasset_research/pkg/models"
)

// Searcher runs the variant chain and memoizes results per (symbol, limit).
type Searcher struct {
	cfg    *config.Config
	client *webfetch.Client
	cache  *cache.Cache
}

// NewSearcher wires the searcher to the shared client and quick cache.
func NewSearcher(cfg *config.Config, client *webfetch.Client, quickCache *cache.Cache) *Searcher {
	return &Searcher{cfg: cfg, client: client, cache: quickCache}
}

type searchResult struct {
	docs  []models.Document
	total int
	label string
}

// Search returns up to maxResults documents for the entity, the upstream
// record count behind them, the label of the winning query variant, and the
// outcome trace of every variant tried. An exhausted chain returns an empty
// slice and label "", never an error; the caller explains the miss using the
// outcome labels.
func (s *Searcher) Search(ctx context.Context, entity *models.Entity, maxResults int) ([]models.Document, int, string, []strategy.Outcome) {
	if maxResults < 1 {
		maxResults = 20
	}
	key := fmt.Sprintf("fnet:%s:%d", entity.Symbol, maxResults)
	if v, ok := s.cache.Get(key); ok {
		r := v.(searchResult)
		return r.docs, r.total, r.label, nil
	}

	var docs []models.Document
	var total int
	attempts := s.variants(ctx, entity, maxResults, &docs, &total)
	label, outcomes := strategy.Execute(attempts)
	if label == "" {
		log.Printf("[FNET] %s: no documents after variants %v", entity.Symbol, strategy.Labels(outcomes))
		return nil, 0, "", outcomes
	}

	for i := range docs {
		docs[i].StrategyLabel = label
	}
	s.cache.Set(key, searchResult{docs: docs, total: total, label: label})
	return docs, total, label, outcomes
}

// variants builds the ordered query list. CNPJ-based variants only exist for
// resolved entities; an unresolved one still gets the symbol-only query.
func (s *Searcher) variants(ctx context.Context, entity *models.Entity, maxResults int, out *[]models.Document, outTotal *int) []strategy.Attempt {
	digits := entity.CNPJDigits()
	symbol := entity.Symbol

	run := func(form url.Values) func() (int, error) {
		return func() (int, error) {
			docs, total, err := s.query(ctx, form, maxResults)
			if err != nil {
				return 0, err
			}
			*out = docs
			*outTotal = total
			return len(docs), nil
		}
	}

	var attempts []strategy.Attempt
	if digits != "" {
		attempts = append(attempts,
			strategy.Attempt{Label: "cnpj-digits", Run: run(s.basePayload(maxResults, digits, ""))},
			strategy.Attempt{Label: "cnpj-punctuated", Run: run(s.basePayload(maxResults, entity.CNPJ, ""))},
			strategy.Attempt{Label: "cnpj-and-symbol", Run: run(s.basePayload(maxResults, digits, symbol))},
		)
	}
	attempts = append(attempts, strategy.Attempt{Label: "symbol-only", Run: run(s.basePayload(maxResults, "", symbol))})
	if digits != "" {
		cleared := s.basePayload(maxResults, digits, "")
		cleared.Set("situacao", "")
		attempts = append(attempts, strategy.Attempt{Label: "cnpj-any-status", Run: run(cleared)})
	}
	return attempts
}

// basePayload mirrors the endpoint's full form contract; partial payloads get
// rejected upstream even though most fields are empty.
func (s *Searcher) basePayload(maxResults int, cnpj, symbol string) url.Values {
	return url.Values{
		"d":                    {"0"},
		"s":                    {"0"},
		"l":                    {strconv.Itoa(maxResults)},
		"o[0][dataEntrega]":    {"desc"},
		"idCategoriaDocumento": {"0"},
		"idTipoDocumento":      {"0"},
		"idEspecieDocumento":   {"0"},
		"situacao":             {"A"},
		"cnpj":                 {cnpj},
		"dataInicial":          {""},
		"dataFinal":            {""},
		"idFundo":              {"0"},
		"razaoSocial":          {""},
		"codigoNegociacao":     {symbol},
	}
}

// query POSTs one variant and maps the rows into documents. The download URL
// points at this service's own proxy route so browsers never hit the exchange
// host directly.
func (s *Searcher) query(ctx context.Context, form url.Values, maxResults int) ([]models.Document, int, error) {
	endpoint := strings.TrimRight(s.cfg.FNETBaseURL, "/") + "/pesquisarGerenciadorDocumentosDados"
	body, err := s.client.PostForm(ctx, endpoint, form)
	if err != nil {
		return nil, 0, err
	}

	resp, err := decodeResponse(body)
	if err != nil {
		return nil, 0, err
	}

	docs := make([]models.Document, 0, len(resp.Data))
	for _, item := range resp.Data {
		if len(docs) >= maxResults {
			break
		}
		id := asInt64(item["id"])
		docs = append(docs, models.Document{
			ID:            id,
			Category:      asString(item["descricaoCategoria"]),
			Type:          asString(item["descricaoTipo"]),
			DeliveryDate:  asString(item["dataEntrega"]),
			ReferenceDate: asString(item["dataReferencia"]),
			Status:        asString(item["situacao"]),
			DownloadURL:   fmt.Sprintf("/api/fnet/download/%d", id),
			ViewURL:       fmt.Sprintf("%s/exibirDocumento?id=%d", strings.TrimRight(s.cfg.FNETBaseURL, "/"), id),
		})
	}

	total := resp.RecordsTotal
	if total == 0 {
		total = len(docs)
	}
	return docs, total, nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	default:
		return 0
	}
}
