// Package cvm downloads and parses the market regulator's open-data files:
// yearly zipped bundles of semicolon-delimited report tables, plus the flat
// registry directory used as the resolution tier of last resort.
//
// Column sets inside the bundles are not stable across years; tables are kept
// as untyped RawRows and only given meaning by the normalize package.
package cvm

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"brasset_research/pkg/core/cache"
	"brasset_research/pkg/core/config"
	"brasset_research/pkg/core/webfetch"
	"brasset_research/pkg/models"
)

// ErrorKind classifies ingest failures so callers can skip a bad year and
// keep going.
type ErrorKind string

const (
	ErrNetwork ErrorKind = "network" // timeout, connection failure, bad status
	ErrFormat  ErrorKind = "format"  // truncated, undecodable or unparsable payload
)

// IngestError is the tagged, non-fatal failure of one archive fetch.
type IngestError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("cvm: %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

// tableSuffix marks which bundle entries carry tabular data.
const tableSuffix = ".csv"

// Ingester fetches and caches yearly archives. Archives are immutable once
// parsed; the cache TTL is multi-hour because upstream refreshes at most daily.
type Ingester struct {
	cfg    *config.Config
	client *webfetch.Client
	cache  *cache.Cache
}

// NewIngester builds an ingester sharing the given client and archive cache.
func NewIngester(cfg *config.Config, client *webfetch.Client, archiveCache *cache.Cache) *Ingester {
	return &Ingester{cfg: cfg, client: client, cache: archiveCache}
}

// archiveURL maps a (kind, year) pair to the upstream bundle location.
func (g *Ingester) archiveURL(kind models.ArchiveKind, year int) string {
	base := strings.TrimRight(g.cfg.CVMDataURL, "/")
	switch kind {
	case models.ArchiveQuarterly:
		return fmt.Sprintf("%s/INF_TRIMESTRAL/DADOS/inf_trimestral_fii_%d.zip", base, year)
	case models.ArchiveAnnual:
		return fmt.Sprintf("%s/INF_ANUAL/DADOS/inf_anual_fii_%d.zip", base, year)
	default:
		return fmt.Sprintf("%s/INF_MENSAL/DADOS/inf_mensal_fii_%d.zip", base, year)
	}
}

// Fetch returns the parsed archive for (kind, year), from cache when fresh.
// Failures come back as *IngestError; they are expected for years the
// regulator has not published and must not abort a multi-year batch.
func (g *Ingester) Fetch(ctx context.Context, kind models.ArchiveKind, year int) (*models.Archive, error) {
	key := fmt.Sprintf("archive:%s:%d", kind, year)
	if v, ok := g.cache.Get(key); ok {
		return v.(*models.Archive), nil
	}

	url := g.archiveURL(kind, year)
	data, err := g.client.GetBulk(ctx, url)
	if err != nil {
		return nil, &IngestError{Kind: ErrNetwork, Op: fmt.Sprintf("download %s/%d", kind, year), Err: err}
	}
	if len(data) < g.cfg.MinArchiveBytes {
		return nil, &IngestError{
			Kind: ErrFormat,
			Op:   fmt.Sprintf("download %s/%d", kind, year),
			Err:  fmt.Errorf("bundle is %d bytes, below the %d-byte floor", len(data), g.cfg.MinArchiveBytes),
		}
	}

	archive, err := parseBundle(data, kind, year)
	if err != nil {
		return nil, &IngestError{Kind: ErrFormat, Op: fmt.Sprintf("parse %s/%d", kind, year), Err: err}
	}

	log.Printf("[CVM] archive %s/%d: %d tables", kind, year, len(archive.Tables))
	g.cache.Set(key, archive)
	return archive, nil
}

// parseBundle opens the zip container and parses every tabular entry.
func parseBundle(data []byte, kind models.ArchiveKind, year int) (*models.Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open container: %w", err)
	}

	archive := &models.Archive{Kind: kind, Year: year, Tables: make(map[string][]models.RawRow)}
	for _, f := range zr.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), tableSuffix) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open entry %s: %w", f.Name, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read entry %s: %w", f.Name, err)
		}

		rows, err := parseTable(raw)
		if err != nil {
			return nil, fmt.Errorf("parse entry %s: %w", f.Name, err)
		}
		archive.Tables[path.Base(f.Name)] = rows
	}

	if len(archive.Tables) == 0 {
		return nil, errors.New("bundle contains no tabular entries")
	}
	return archive, nil
}

// parseTable decodes and parses one semicolon-delimited table, header first.
func parseTable(raw []byte) ([]models.RawRow, error) {
	text, err := decodeText(raw)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = ';'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []models.RawRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// One mangled line should not discard the rest of the table.
			log.Printf("[CVM] skipping malformed row: %v", err)
			continue
		}
		row := models.RawRow{Columns: header, Values: make(map[string]string, len(header))}
		for i, col := range header {
			if i < len(record) {
				row.Values[col] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// decodeText assumes UTF-8 and falls back to ISO-8859-1, which the regulator
// used for older publication years.
func decodeText(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	decoded, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), raw)
	if err != nil {
		return "", fmt.Errorf("decode latin-1: %w", err)
	}
	return string(decoded), nil
}
