package cvm

import (
	"context"
	"strings"

	"brasset_research/pkg/models"
)

// RegistryLines downloads the flat fund registry directory and returns its
// decoded lines. The file carries no index; callers linear-scan it. Cached
// under the archive TTL since the registry changes infrequently.
func (g *Ingester) RegistryLines(ctx context.Context) ([]string, error) {
	const key = "registry:directory"
	if v, ok := g.cache.Get(key); ok {
		return v.([]string), nil
	}

	data, err := g.client.GetBulk(ctx, g.cfg.CVMRegistryURL)
	if err != nil {
		return nil, &IngestError{Kind: ErrNetwork, Op: "download registry", Err: err}
	}
	text, err := decodeText(data)
	if err != nil {
		return nil, &IngestError{Kind: ErrFormat, Op: "decode registry", Err: err}
	}

	lines := strings.Split(text, "\n")
	g.cache.Set(key, lines)
	return lines, nil
}

// ClassAliases extracts the class-CNPJ -> fund-CNPJ cross-reference from an
// archive, when the publication year carries a class registry table. Newer
// regulatory years key report rows by a class-level identifier; without this
// map those rows could not be attributed to the fund. Best effort: an archive
// without the table yields an empty map.
func ClassAliases(archive *models.Archive) map[string]string {
	aliases := make(map[string]string)
	if archive == nil {
		return aliases
	}

	for name, rows := range archive.Tables {
		lc := strings.ToLower(name)
		if !strings.Contains(lc, "classe") || !strings.Contains(lc, "registro") {
			continue
		}
		for _, row := range rows {
			classID, fundID := classAndFund(row)
			if classID != "" && fundID != "" && classID != fundID {
				aliases[classID] = fundID
			}
		}
	}
	return aliases
}

// classAndFund picks the class and fund identifier columns out of one
// cross-reference row, digits only.
func classAndFund(row models.RawRow) (classID, fundID string) {
	for _, col := range row.Columns {
		lc := strings.ToLower(col)
		if !strings.Contains(lc, "cnpj") {
			continue
		}
		digits := models.DigitsOnly(row.Get(col))
		if digits == "" {
			continue
		}
		if strings.Contains(lc, "classe") {
			if classID == "" {
				classID = digits
			}
		} else if fundID == "" {
			fundID = digits
		}
	}
	return classID, fundID
}
