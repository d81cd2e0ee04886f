// Command research runs the pipeline once for a single ticker and prints the
// result: resolution, latest filings and the book-value timeline. Useful for
// smoke-testing upstream availability without the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"brasset_research/pkg/core/cache"
	"brasset_research/pkg/core/config"
	"brasset_research/pkg/core/cvm"
	"brasset_research/pkg/core/fnet"
	"brasset_research/pkg/core/resolve"
	"brasset_research/pkg/core/timeline"
	"brasset_research/pkg/core/webfetch"
	"brasset_research/pkg/models"
)

func main() {
	godotenv.Load()

	var (
		maxDocs = flag.Int("docs", 10, "maximum filings to list")
		from    = flag.Int("de", time.Now().Year()-4, "first year of the timeline")
		to      = flag.Int("ate", time.Now().Year(), "last year of the timeline")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: research [flags] TICKER")
		flag.PrintDefaults()
		os.Exit(2)
	}
	symbol := flag.Arg(0)

	cfg, err := config.Load("config/research.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad configuration: %v\n", err)
		os.Exit(1)
	}

	client := webfetch.NewClient(cfg, nil)
	quickCache := cache.New(cfg.QuickTTL, nil)
	archiveCache := cache.New(cfg.ArchiveTTL, nil)
	ingester := cvm.NewIngester(cfg, client, archiveCache)
	resolver := resolve.NewResolver(cfg, client, ingester, quickCache)
	searcher := fnet.NewSearcher(cfg, client, quickCache)
	builder := timeline.NewBuilder(cfg, ingester)

	ctx := context.Background()

	entity := resolver.Resolve(ctx, symbol)
	fmt.Printf("%s (%s)\n", entity.Symbol, entity.AssetClass.Label())
	if entity.Resolved() {
		fmt.Printf("  CNPJ: %s (tier %s)\n", entity.CNPJ, entity.ResolutionTier)
		if entity.LegalName != "" {
			fmt.Printf("  Name: %s\n", entity.LegalName)
		}
	} else {
		fmt.Println("  CNPJ: not found")
	}

	if entity.AssetClass == models.AssetFund {
		docs, total, label, _ := searcher.Search(ctx, entity, *maxDocs)
		fmt.Printf("\nFilings (%d of %d, via %q):\n", len(docs), total, label)
		for _, d := range docs {
			fmt.Printf("  %-12s %-30s %s\n", d.DeliveryDate, d.Category, d.ViewURL)
		}
	}

	tl := builder.Build(ctx, entity, *from, *to)
	fmt.Printf("\nBook value per unit (%d-%d, years loaded %v):\n", *from, *to, tl.YearsLoaded)
	for _, s := range tl.Snapshots {
		if s.BookValuePerUnit == nil {
			fmt.Printf("  %s  -\n", s.PeriodKey)
			continue
		}
		line := fmt.Sprintf("  %s  %.2f", s.PeriodKey, *s.BookValuePerUnit)
		if s.AdjustedBookValuePerUnit != nil {
			line += fmt.Sprintf("  (adjusted %.2f)", *s.AdjustedBookValuePerUnit)
		}
		fmt.Println(line)
	}
	if tl.VariationPct != nil {
		fmt.Printf("Variation: %+.2f%%\n", *tl.VariationPct)
	}
}
