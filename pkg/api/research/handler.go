// Package research exposes the query endpoints over the research core. The
// handlers only route, validate and shape responses; all data work lives in
// pkg/core.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"brasset_research/pkg/core/fnet"
	"brasset_research/pkg/core/indicators"
	"brasset_research/pkg/core/resolve"
	"brasset_research/pkg/core/strategy"
	"brasset_research/pkg/core/timeline"
	"brasset_research/pkg/models"
)

// Handler carries the wired core components.
type Handler struct {
	resolver  *resolve.Resolver
	searcher  *fnet.Searcher
	builder   *timeline.Builder
	indicator *indicators.Scraper
}

// NewHandler builds the handler set from already-constructed components.
func NewHandler(resolver *resolve.Resolver, searcher *fnet.Searcher, builder *timeline.Builder, indicator *indicators.Scraper) *Handler {
	return &Handler{resolver: resolver, searcher: searcher, builder: builder, indicator: indicator}
}

// cors applies the permissive header set and answers preflights; it also
// stamps each request with a trace id for log correlation.
func cors(w http.ResponseWriter, r *http.Request) (string, bool) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return "", false
	}
	trace := uuid.NewString()[:8]
	w.Header().Set("X-Request-Id", trace)
	return trace, true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"erro": msg})
}

func symbolParam(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(r.PathValue("ticker")))
}

// HandleHealth answers the liveness probe.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if _, ok := cors(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// HandleAssetType classifies a ticker as fund or equity.
func (h *Handler) HandleAssetType(w http.ResponseWriter, r *http.Request) {
	if _, ok := cors(w, r); !ok {
		return
	}
	symbol := symbolParam(r)
	class := resolve.DetectAssetClass(symbol)
	writeJSON(w, http.StatusOK, map[string]string{
		"ticker": symbol,
		"tipo":   string(class),
		"label":  class.Label(),
	})
}

// HandleDocuments lists regulatory filings for a fund symbol.
func (h *Handler) HandleDocuments(w http.ResponseWriter, r *http.Request) {
	trace, ok := cors(w, r)
	if !ok {
		return
	}
	symbol := symbolParam(r)
	entity := h.resolver.Resolve(r.Context(), symbol)
	if entity.AssetClass != models.AssetFund {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("%s não parece ser um FII. Use /api/indicadores para ações.", symbol))
		return
	}

	maxDocs := queryInt(r, "max_docs", 20, 1, 100)
	docs, total, label, outcomes := h.searcher.Search(r.Context(), entity, maxDocs)
	log.Printf("[API] %s documents %s: %d docs via %q", trace, symbol, len(docs), label)

	if len(docs) == 0 && allErrored(outcomes) {
		writeError(w, http.StatusBadGateway, "FNET indisponível no momento. Tente novamente.")
		return
	}

	if categoria := r.URL.Query().Get("categoria"); categoria != "" {
		docs = filterCategory(docs, categoria)
	}
	writeJSON(w, http.StatusOK, documentsPayload(entity, docs, total, label, outcomes))
}

// HandleDownload proxies one filing's binary so browsers never hit the
// exchange host directly.
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	trace, ok := cors(w, r)
	if !ok {
		return
	}
	docID, err := strconv.ParseInt(r.PathValue("doc_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id de documento inválido")
		return
	}

	body, filename, err := h.searcher.DownloadDocument(r.Context(), docID)
	if err != nil {
		log.Printf("[API] %s download %d failed: %v", trace, docID, err)
		writeError(w, http.StatusBadGateway, fmt.Sprintf("Erro ao baixar do FNET: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Write(body)
}

// HandleIndicators returns scraped market-site indicators for any asset class.
func (h *Handler) HandleIndicators(w http.ResponseWriter, r *http.Request) {
	if _, ok := cors(w, r); !ok {
		return
	}
	symbol := symbolParam(r)
	entity := h.resolver.Resolve(r.Context(), symbol)
	report := h.indicator.Fetch(r.Context(), entity)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticker":        symbol,
		"tipo":          string(entity.AssetClass),
		"label":         entity.AssetClass.Label(),
		"indicadores":   report.Indicators,
		"proventos":     report.Distributions,
		"consultado_em": time.Now().Format(time.RFC3339),
	})
}

// HandleTimeline builds the book-value snapshot series over a year range.
func (h *Handler) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	trace, ok := cors(w, r)
	if !ok {
		return
	}
	symbol := symbolParam(r)
	now := time.Now().Year()
	from := queryInt(r, "de", now-4, 2008, now)
	to := queryInt(r, "ate", now, 2008, now)

	entity := h.resolver.Resolve(r.Context(), symbol)
	tl := h.builder.Build(r.Context(), entity, from, to)
	log.Printf("[API] %s timeline %s %d-%d: %d snapshots (years loaded %v)",
		trace, symbol, from, to, len(tl.Snapshots), tl.YearsLoaded)

	payload := map[string]interface{}{
		"ticker":         symbol,
		"cnpj":           entity.CNPJ,
		"resolucao":      entity.ResolutionTier,
		"linha_do_tempo": tl,
		"consultado_em":  time.Now().Format(time.RFC3339),
	}
	if !entity.Resolved() {
		payload["aviso"] = fmt.Sprintf("CNPJ de %s não encontrado; anos tentados: %v", symbol, tl.YearsAttempted)
	}
	writeJSON(w, http.StatusOK, payload)
}

// HandleSearch is the dashboard's one-stop endpoint: documents (for funds)
// plus indicators, each degrading independently.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	trace, ok := cors(w, r)
	if !ok {
		return
	}
	symbol := symbolParam(r)
	maxDocs := queryInt(r, "max_docs", 20, 1, 100)
	entity := h.resolver.Resolve(r.Context(), symbol)

	result := map[string]interface{}{
		"ticker":        symbol,
		"tipo":          string(entity.AssetClass),
		"label":         entity.AssetClass.Label(),
		"fnet":          nil,
		"indicadores":   nil,
		"consultado_em": time.Now().Format(time.RFC3339),
	}

	if entity.AssetClass == models.AssetFund {
		docs, total, label, outcomes := h.searcher.Search(r.Context(), entity, maxDocs)
		if len(docs) == 0 && allErrored(outcomes) {
			result["fnet"] = map[string]string{"erro": "FNET indisponível"}
		} else {
			result["fnet"] = documentsPayload(entity, docs, total, label, outcomes)
		}
	}

	report := h.indicator.Fetch(r.Context(), entity)
	result["indicadores"] = map[string]interface{}{
		"indicadores": report.Indicators,
		"proventos":   report.Distributions,
	}

	log.Printf("[API] %s search %s done", trace, symbol)
	writeJSON(w, http.StatusOK, result)
}

func documentsPayload(entity *models.Entity, docs []models.Document, total int, label string, outcomes []strategy.Outcome) map[string]interface{} {
	tried := strategy.Labels(outcomes)
	payload := map[string]interface{}{
		"ticker":     entity.Symbol,
		"cnpj":       entity.CNPJ,
		"total_fnet": total,
		"listados":   len(docs),
		"documentos": docs,
		"estrategia": label,
	}
	if len(docs) == 0 {
		payload["aviso"] = fmt.Sprintf("nenhum documento encontrado; identificadores tentados: %v", tried)
	}
	return payload
}

func filterCategory(docs []models.Document, categoria string) []models.Document {
	out := docs[:0:0]
	for _, d := range docs {
		if strings.Contains(strings.ToLower(d.Category), strings.ToLower(categoria)) {
			out = append(out, d)
		}
	}
	return out
}

func allErrored(outcomes []strategy.Outcome) bool {
	if len(outcomes) == 0 {
		return false
	}
	for _, o := range outcomes {
		if o.Err == nil {
			return false
		}
	}
	return true
}

func queryInt(r *http.Request, name string, def, min, max int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return def
	}
	return n
}

// Warm pre-resolves a list of symbols so first dashboard loads after boot
// answer from cache.
func (h *Handler) Warm(ctx context.Context, symbols []string) {
	for _, s := range symbols {
		h.resolver.Resolve(ctx, s)
	}
}
