package fnet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brasset_research/pkg/core/cache"
	"brasset_research/pkg/core/config"
	"brasset_research/pkg/core/webfetch"
	"brasset_research/pkg/models"
)

func newTestSearcher(t *testing.T, handler http.Handler) (*Searcher, *webfetch.Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.FNETBaseURL = srv.URL
	cfg.RequestsPerSecond = 1000
	client := webfetch.NewClient(cfg, nil)
	return NewSearcher(cfg, client, cache.New(10*time.Minute, nil)), client
}

func fundEntity() *models.Entity {
	return &models.Entity{
		Symbol:         "HGLG11",
		AssetClass:     models.AssetFund,
		CNPJ:           "11.728.688/0001-47",
		ResolutionTier: "static",
	}
}

func docPayload(n int) string {
	rows := make([]map[string]interface{}, n)
	for i := range rows {
		rows[i] = map[string]interface{}{
			"id":                 float64(700000 + i),
			"descricaoCategoria": "Relatórios",
			"descricaoTipo":      "Informe Mensal",
			"dataEntrega":        "2024-05-10 18:00",
			"dataReferencia":     "04/2024",
			"situacao":           "AC",
		}
	}
	b, _ := json.Marshal(map[string]interface{}{"data": rows, "recordsTotal": n})
	return string(b)
}

func TestSearch_HaltsOnFirstNonEmptyVariant(t *testing.T) {
	var seen []string
	s, _ := newTestSearcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		cnpj := r.PostForm.Get("cnpj")
		symbol := r.PostForm.Get("codigoNegociacao")
		seen = append(seen, cnpj+"|"+symbol)

		// Only the third variant (digits CNPJ plus symbol) yields rows.
		if cnpj == "11728688000147" && symbol == "HGLG11" {
			w.Write([]byte(docPayload(2)))
			return
		}
		w.Write([]byte(`{"data":[],"recordsTotal":0}`))
	}))

	docs, total, label, outcomes := s.Search(context.Background(), fundEntity(), 20)
	require.Len(t, docs, 2)
	assert.Equal(t, 2, total)
	assert.Equal(t, "cnpj-and-symbol", label)
	assert.Len(t, seen, 3, "variants after the first success must not run")
	assert.Len(t, outcomes, 3)
	for _, d := range docs {
		assert.Equal(t, "cnpj-and-symbol", d.StrategyLabel)
		assert.Contains(t, d.ViewURL, "exibirDocumento?id=")
		assert.Equal(t, fmt.Sprintf("/api/fnet/download/%d", d.ID), d.DownloadURL)
	}
}

func TestSearch_ExhaustedVariantsReturnEmptyNotError(t *testing.T) {
	s, _ := newTestSearcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[],"recordsTotal":0}`))
	}))

	docs, _, label, outcomes := s.Search(context.Background(), fundEntity(), 10)
	assert.Empty(t, docs)
	assert.Empty(t, label)
	assert.Len(t, outcomes, 5, "resolved entity tries all five variants")
}

func TestSearch_UnresolvedEntityUsesSymbolOnly(t *testing.T) {
	var payloads []string
	s, _ := newTestSearcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		payloads = append(payloads, r.PostForm.Get("cnpj"))
		w.Write([]byte(docPayload(1)))
	}))

	entity := &models.Entity{Symbol: "ABCD11", AssetClass: models.AssetFund, ResolutionTier: "none"}
	docs, _, label, _ := s.Search(context.Background(), entity, 5)
	require.Len(t, docs, 1)
	assert.Equal(t, "symbol-only", label)
	require.Len(t, payloads, 1)
	assert.Empty(t, payloads[0])
}

func TestSearch_NonJSONBodyTreatedAsErrorOutcome(t *testing.T) {
	first := true
	s, _ := newTestSearcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if first {
			first = false
			w.Write([]byte("<html>maintenance window</html>"))
			return
		}
		w.Write([]byte(docPayload(1)))
	}))

	docs, _, label, outcomes := s.Search(context.Background(), fundEntity(), 5)
	require.Len(t, docs, 1)
	assert.Equal(t, "cnpj-punctuated", label)
	require.GreaterOrEqual(t, len(outcomes), 2)
	assert.Equal(t, "error", outcomes[0].Status())
}

func TestSearch_SecondCallHitsCache(t *testing.T) {
	s, client := newTestSearcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(docPayload(3)))
	}))

	docs1, total1, _, _ := s.Search(context.Background(), fundEntity(), 10)
	calls := client.Calls()
	docs2, total2, _, _ := s.Search(context.Background(), fundEntity(), 10)

	assert.Equal(t, docs1, docs2)
	assert.Equal(t, total1, total2)
	assert.Equal(t, calls, client.Calls(), "cached search must not POST again")
}

func TestSearch_TruncatesToMaxResults(t *testing.T) {
	s, _ := newTestSearcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(docPayload(8)))
	}))

	docs, total, _, _ := s.Search(context.Background(), fundEntity(), 3)
	assert.Len(t, docs, 3)
	assert.Equal(t, 8, total, "upstream count survives local truncation")
}

func TestDecodeResponse_RepairsSloppyJSON(t *testing.T) {
	// Trailing comma: strict decode fails, repair succeeds.
	body := []byte(`{"data":[{"id":1,"descricaoCategoria":"Aviso",}],"recordsTotal":1}`)
	resp, err := decodeResponse(body)
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Aviso", resp.Data[0]["descricaoCategoria"])
}

func TestDownloadDocument_FilenameFromHeader(t *testing.T) {
	s, _ := newTestSearcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="informe_mensal.pdf"`)
		w.Write([]byte("%PDF-1.4"))
	}))

	body, name, err := s.DownloadDocument(context.Background(), 700001)
	require.NoError(t, err)
	assert.Equal(t, "informe_mensal.pdf", name)
	assert.Equal(t, "%PDF-1.4", string(body))
}
