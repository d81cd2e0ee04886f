package resolve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brasset_research/pkg/core/cache"
	"brasset_research/pkg/core/config"
	"brasset_research/pkg/core/cvm"
	"brasset_research/pkg/core/webfetch"
	"brasset_research/pkg/models"
)

func newTestResolver(t *testing.T, handler http.Handler) (*Resolver, *webfetch.Client) {
	t.Helper()
	cfg := config.Default()
	cfg.RequestsPerSecond = 1000
	if handler != nil {
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)
		cfg.MarketSiteURL = srv.URL
		cfg.CVMRegistryURL = srv.URL + "/cad_fii.csv"
	} else {
		// Unroutable: any network attempt fails fast and loudly.
		cfg.MarketSiteURL = "http://127.0.0.1:1"
		cfg.CVMRegistryURL = "http://127.0.0.1:1/cad_fii.csv"
	}

	client := webfetch.NewClient(cfg, nil)
	ing := cvm.NewIngester(cfg, client, cache.New(time.Hour, nil))
	return NewResolver(cfg, client, ing, cache.New(10*time.Minute, nil)), client
}

func TestResolve_StaticTierSkipsNetwork(t *testing.T) {
	r, client := newTestResolver(t, nil)

	e := r.Resolve(context.Background(), "mxrf11 ")
	require.True(t, e.Resolved())
	assert.Equal(t, "MXRF11", e.Symbol)
	assert.Equal(t, "97.521.225/0001-25", e.CNPJ)
	assert.Equal(t, TierStatic, e.ResolutionTier)
	assert.Equal(t, models.AssetFund, e.AssetClass)
	assert.EqualValues(t, 0, client.Calls(), "static tier must not touch the network")
}

func TestResolve_CachedSecondCallIsIdentical(t *testing.T) {
	r, client := newTestResolver(t, nil)

	first := r.Resolve(context.Background(), "HGLG11")
	calls := client.Calls()
	second := r.Resolve(context.Background(), "HGLG11")

	assert.Same(t, first, second, "within TTL the cached entity is returned as-is")
	assert.Equal(t, calls, client.Calls())
}

func TestResolve_PageTier(t *testing.T) {
	page := `<html><body>
		<h1>Fundo de Investimento Imobiliário Teste Prime</h1>
		<div>CNPJ: 12.345.678/0001-90</div>
	</body></html>`

	r, _ := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/fundos-imobiliarios/test11" {
			http.NotFound(w, req)
			return
		}
		w.Write([]byte(page))
	}))

	e := r.Resolve(context.Background(), "TEST11")
	require.True(t, e.Resolved())
	assert.Equal(t, "12.345.678/0001-90", e.CNPJ)
	assert.Equal(t, TierPage, e.ResolutionTier)
	assert.Contains(t, e.LegalName, "Teste Prime")
}

func TestResolve_RegistryFallback(t *testing.T) {
	registry := "CNPJ_Fundo;Denominacao_Social;Codigo\n" +
		"11.222.333/0001-44;FUNDO DE INVESTIMENTO IMOBILIARIO ZETA;ZETA11\n"

	r, _ := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/cad_fii.csv" {
			w.Write([]byte(registry))
			return
		}
		http.NotFound(w, req) // page tier finds nothing
	}))

	e := r.Resolve(context.Background(), "ZETA11")
	require.True(t, e.Resolved())
	assert.Equal(t, "11.222.333/0001-44", e.CNPJ)
	assert.Equal(t, TierRegistry, e.ResolutionTier)
	assert.Contains(t, e.LegalName, "ZETA")
}

func TestResolve_ExhaustedTiersYieldUnresolvedEntity(t *testing.T) {
	r, _ := newTestResolver(t, http.HandlerFunc(http.NotFound))

	e := r.Resolve(context.Background(), "NADA11")
	require.NotNil(t, e)
	assert.False(t, e.Resolved())
	assert.Equal(t, TierNone, e.ResolutionTier)
	assert.Empty(t, e.CNPJ)
}

func TestDetectAssetClass(t *testing.T) {
	tests := []struct {
		symbol string
		want   models.AssetClass
	}{
		{"PETR4", models.AssetEquity},
		{"VALE3", models.AssetEquity},
		{"HGLG11", models.AssetFund},   // known fund
		{"BPAC11", models.AssetEquity}, // known equity unit
		{"ABCD11", models.AssetFund},   // 4-letter root + 11
		{"ABCDE11", models.AssetEquity},
		{"XYZW13", models.AssetFund},
		{"petr4", models.AssetEquity}, // case-insensitive
	}
	for _, tc := range tests {
		if got := DetectAssetClass(tc.symbol); got != tc.want {
			t.Errorf("DetectAssetClass(%q) = %v, want %v", tc.symbol, got, tc.want)
		}
	}
}
