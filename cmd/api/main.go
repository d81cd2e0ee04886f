package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"brasset_research/pkg/api/research"
	"brasset_research/pkg/core/cache"
	"brasset_research/pkg/core/config"
	"brasset_research/pkg/core/cvm"
	"brasset_research/pkg/core/fnet"
	"brasset_research/pkg/core/indicators"
	"brasset_research/pkg/core/resolve"
	"brasset_research/pkg/core/timeline"
	"brasset_research/pkg/core/webfetch"
)

func main() {
	// Load environment variables
	godotenv.Load()

	cfg, err := config.Load("config/research.yaml")
	if err != nil {
		fmt.Printf("[FATAL] bad configuration: %v\n", err)
		os.Exit(1)
	}

	// Shared plumbing: one upstream client, one cache per data class.
	client := webfetch.NewClient(cfg, nil)
	quickCache := cache.New(cfg.QuickTTL, nil)
	archiveCache := cache.New(cfg.ArchiveTTL, nil)

	ingester := cvm.NewIngester(cfg, client, archiveCache)
	resolver := resolve.NewResolver(cfg, client, ingester, quickCache)
	searcher := fnet.NewSearcher(cfg, client, quickCache)
	builder := timeline.NewBuilder(cfg, ingester)
	scraper := indicators.NewScraper(cfg, client, quickCache)

	handler := research.NewHandler(resolver, searcher, builder, scraper)
	go handler.Warm(context.Background(), resolve.StaticSymbols())

	http.HandleFunc("GET /api/health", handler.HandleHealth)
	http.HandleFunc("GET /api/tipo/{ticker}", handler.HandleAssetType)
	http.HandleFunc("GET /api/fnet/{ticker}", handler.HandleDocuments)
	http.HandleFunc("GET /api/fnet/download/{doc_id}", handler.HandleDownload)
	http.HandleFunc("GET /api/indicadores/{ticker}", handler.HandleIndicators)
	http.HandleFunc("GET /api/vp/{ticker}", handler.HandleTimeline)
	http.HandleFunc("GET /api/buscar/{ticker}", handler.HandleSearch)

	fmt.Printf("API server starting on %s...\n", cfg.ListenAddr)
	fmt.Println("  - GET /api/health")
	fmt.Println("  - GET /api/tipo/{ticker}")
	fmt.Println("  - GET /api/fnet/{ticker}")
	fmt.Println("  - GET /api/fnet/download/{doc_id}")
	fmt.Println("  - GET /api/indicadores/{ticker}")
	fmt.Println("  - GET /api/vp/{ticker}")
	fmt.Println("  - GET /api/buscar/{ticker}")

	if err := http.ListenAndServe(cfg.ListenAddr, nil); err != nil {
		log.Fatalf("[FATAL] server failed to start: %v", err)
	}
}
