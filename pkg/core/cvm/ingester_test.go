package cvm

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
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

func buildZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newTestIngester(t *testing.T, handler http.Handler) (*Ingester, *webfetch.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.CVMDataURL = srv.URL
	cfg.CVMRegistryURL = srv.URL + "/cad_fii.csv"
	cfg.MinArchiveBytes = 64
	cfg.RequestsPerSecond = 1000

	client := webfetch.NewClient(cfg, nil)
	ing := NewIngester(cfg, client, cache.New(6*time.Hour, nil))
	return ing, client, srv
}

func TestFetch_ParsesSemicolonTables(t *testing.T) {
	table := []byte("CNPJ_Fundo;Data_Referencia;Patrimonio_Liquido\n" +
		"01.201.140/0001-90;2023-04;1.000,50\n" +
		"97.521.225/0001-25;2023-04;2.500,00\n")
	bundle := buildZip(t, map[string][]byte{
		"inf_mensal_fii_complemento_2023.csv": table,
		"leia_me.txt":                         []byte("ignored"),
	})

	ing, _, _ := newTestIngester(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "INF_MENSAL/DADOS/inf_mensal_fii_2023.zip")
		w.Write(bundle)
	}))

	archive, err := ing.Fetch(context.Background(), models.ArchiveMonthly, 2023)
	require.NoError(t, err)
	require.Len(t, archive.Tables, 1, "non-tabular entries must be skipped")

	rows := archive.Tables["inf_mensal_fii_complemento_2023.csv"]
	require.Len(t, rows, 2)
	assert.Equal(t, "1.000,50", rows[0].Get("Patrimonio_Liquido"))
	assert.Equal(t, []string{"CNPJ_Fundo", "Data_Referencia", "Patrimonio_Liquido"}, rows[0].Columns)
}

func TestFetch_Latin1Fallback(t *testing.T) {
	// "Informações" with ç/õ in ISO-8859-1: invalid as UTF-8.
	latin := append([]byte("Nome;Valor\nInforma"), 0xE7, 0xF5)
	latin = append(latin, []byte("es;1,00\n")...)
	bundle := buildZip(t, map[string][]byte{"tab.csv": latin})

	ing, _, _ := newTestIngester(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bundle)
	}))

	archive, err := ing.Fetch(context.Background(), models.ArchiveMonthly, 2019)
	require.NoError(t, err)
	rows := archive.Tables["tab.csv"]
	require.Len(t, rows, 1)
	assert.Equal(t, "Informações", rows[0].Get("Nome"))
}

func TestFetch_SizeFloorIsFormatError(t *testing.T) {
	ing, _, _ := newTestIngester(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("empty")) // well under the floor
	}))

	_, err := ing.Fetch(context.Background(), models.ArchiveMonthly, 2016)
	var ie *IngestError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, ErrFormat, ie.Kind)
}

func TestFetch_HTTPFailureIsNetworkError(t *testing.T) {
	ing, _, _ := newTestIngester(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))

	_, err := ing.Fetch(context.Background(), models.ArchiveMonthly, 2023)
	var ie *IngestError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, ErrNetwork, ie.Kind)
	assert.True(t, errors.Is(err, webfetch.ErrUnavailable))
}

func TestFetch_SecondCallHitsCache(t *testing.T) {
	bundle := buildZip(t, map[string][]byte{
		"tab.csv": []byte("A;B\n1;2\n"),
	})
	ing, client, _ := newTestIngester(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bundle)
	}))

	_, err := ing.Fetch(context.Background(), models.ArchiveMonthly, 2022)
	require.NoError(t, err)
	calls := client.Calls()

	_, err = ing.Fetch(context.Background(), models.ArchiveMonthly, 2022)
	require.NoError(t, err)
	assert.Equal(t, calls, client.Calls(), "cached fetch must not hit the network")
}

func TestClassAliases(t *testing.T) {
	archive := &models.Archive{
		Kind: models.ArchiveMonthly,
		Year: 2024,
		Tables: map[string][]models.RawRow{
			"registro_fundo_classe.csv": {
				{
					Columns: []string{"CNPJ_Fundo", "CNPJ_Classe"},
					Values: map[string]string{
						"CNPJ_Fundo":  "11.222.333/0001-44",
						"CNPJ_Classe": "55.666.777/0001-88",
					},
				},
			},
			"inf_mensal_fii_complemento_2024.csv": {},
		},
	}

	aliases := ClassAliases(archive)
	require.Len(t, aliases, 1)
	assert.Equal(t, "11222333000144", aliases["55666777000188"])
}

func TestClassAliases_MissingTableIsEmpty(t *testing.T) {
	archive := &models.Archive{Tables: map[string][]models.RawRow{"other.csv": {}}}
	assert.Empty(t, ClassAliases(archive))
}
