// Package timeline assembles the period-by-period snapshot series for a
// resolved entity: archives are fetched per year with bounded parallelism,
// rows are attributed by tax id (including fund-class aliases), normalized,
// merged per period, reduced to a display-ready selection and enriched with
// derived per-unit metrics.
package timeline

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"

	"brasset_research/pkg/core/config"
	"brasset_research/pkg/core/cvm"
	"brasset_research/pkg/core/normalize"
	"brasset_research/pkg/models"
)

// Builder orchestrates the ingester and normalizer for one year range.
type Builder struct {
	cfg      *config.Config
	ingester *cvm.Ingester
}

// NewBuilder wires the builder to the shared ingester.
func NewBuilder(cfg *config.Config, ingester *cvm.Ingester) *Builder {
	return &Builder{cfg: cfg, ingester: ingester}
}

// Build returns the timeline for the entity over [fromYear, toYear]. Years
// whose archive fails to load are recorded as gaps, not errors; an entity
// with no attributable rows yields an empty timeline that still names the
// years attempted. Unresolved entities short-circuit to that empty result.
func (b *Builder) Build(ctx context.Context, entity *models.Entity, fromYear, toYear int) models.Timeline {
	tl := models.Timeline{Symbol: entity.Symbol, CNPJ: entity.CNPJ}
	if fromYear > toYear {
		fromYear, toYear = toYear, fromYear
	}
	for y := fromYear; y <= toYear; y++ {
		tl.YearsAttempted = append(tl.YearsAttempted, y)
	}
	if !entity.Resolved() {
		return tl
	}

	archives := b.fetchRange(ctx, tl.YearsAttempted)
	for _, y := range tl.YearsAttempted {
		if archives[y] != nil {
			tl.YearsLoaded = append(tl.YearsLoaded, y)
		}
	}
	if len(tl.YearsLoaded) == 0 {
		return tl
	}

	idSet := attributableIDs(entity, archives)
	periods := b.accumulate(entity, archives, idSet)
	if len(periods) == 0 {
		return tl
	}

	keys := make([]string, 0, len(periods))
	for k := range periods {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cumulative := amortizationWalk(keys, periods)
	retained := retainKeys(keys)

	for _, k := range retained {
		rec := periods[k]
		snap := models.Snapshot{CanonicalRecord: *rec}
		snap.BookValuePerUnit = normalize.BookValuePerUnit(rec.Fields)
		if c := cumulative[k]; c > 0 {
			v := c
			snap.CumulativeAmortization = &v
			if snap.BookValuePerUnit != nil {
				adj := *snap.BookValuePerUnit + c
				snap.AdjustedBookValuePerUnit = &adj
			}
		}
		tl.Snapshots = append(tl.Snapshots, snap)
	}

	tl.VariationPct = variationPct(tl.Snapshots)
	return tl
}

// fetchRange downloads each year's archive with at most MaxConcurrentFetches
// in flight. One year's failure never cancels its siblings.
func (b *Builder) fetchRange(ctx context.Context, years []int) map[int]*models.Archive {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, b.cfg.MaxConcurrentFetches)
	)
	archives := make(map[int]*models.Archive, len(years))

	for _, year := range years {
		wg.Add(1)
		go func(year int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			archive, err := b.ingester.Fetch(ctx, models.ArchiveMonthly, year)
			if err != nil {
				log.Printf("[Timeline] year %d skipped: %v", year, err)
				return
			}
			mu.Lock()
			archives[year] = archive
			mu.Unlock()
		}(year)
	}
	wg.Wait()
	return archives
}

// attributableIDs is the digit set a row may be keyed by: the fund's own tax
// id plus any class-level ids aliased to it by the registry cross-reference.
func attributableIDs(entity *models.Entity, archives map[int]*models.Archive) map[string]bool {
	fund := entity.CNPJDigits()
	ids := map[string]bool{fund: true}
	for _, archive := range archives {
		for classID, fundID := range cvm.ClassAliases(archive) {
			if fundID == fund {
				ids[classID] = true
			}
		}
	}
	return ids
}

// tablePriority orders tables for first-writer-wins merging: fund-level
// aggregate tables outrank the composition breakdown, which outranks
// anything else.
func tablePriority(name string) int {
	lc := strings.ToLower(name)
	switch {
	case strings.Contains(lc, "complemento"):
		return 0
	case strings.Contains(lc, "ativo_passivo"):
		return 1
	default:
		return 2
	}
}

// accumulate merges normalized rows into one record per period key. A field
// set by a higher-priority table is never overwritten by a lower one.
func (b *Builder) accumulate(entity *models.Entity, archives map[int]*models.Archive, idSet map[string]bool) map[string]*models.CanonicalRecord {
	periods := make(map[string]*models.CanonicalRecord)

	years := make([]int, 0, len(archives))
	for y := range archives {
		years = append(years, y)
	}
	sort.Ints(years)

	for _, year := range years {
		archive := archives[year]

		names := make([]string, 0, len(archive.Tables))
		for name := range archive.Tables {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			pi, pj := tablePriority(names[i]), tablePriority(names[j])
			if pi != pj {
				return pi < pj
			}
			return names[i] < names[j]
		})

		for _, name := range names {
			composition := tablePriority(name) == 1
			for _, row := range archive.Tables[name] {
				if !idSet[normalize.RowCNPJ(row)] {
					continue
				}
				key := normalize.PeriodKey(row, archive.Kind)
				if key == "" {
					continue
				}

				var fields map[models.Field]float64
				if composition {
					fields = normalize.MapComposition(row)
				} else {
					fields = normalize.MapAggregate(row)
				}
				if len(fields) == 0 {
					continue
				}

				rec := periods[key]
				if rec == nil {
					rec = &models.CanonicalRecord{
						PeriodKey:  key,
						CNPJDigits: entity.CNPJDigits(),
						Fields:     make(map[models.Field]float64),
						Provenance: make(map[models.Field]string),
					}
					periods[key] = rec
				}
				for f, v := range fields {
					if _, taken := rec.Fields[f]; taken {
						continue
					}
					rec.Fields[f] = v
					rec.Provenance[f] = name
				}
			}
		}
	}
	return periods
}
