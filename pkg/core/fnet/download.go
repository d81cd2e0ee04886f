package fnet

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var filenamePattern = regexp.MustCompile(`filename="?([^";\n]+)`)

// DownloadDocument fetches one filing's binary content and a filename taken
// from the Content-Disposition header (falling back to a synthetic name).
// The API layer proxies this to browsers that cannot hit the exchange host
// directly.
func (s *Searcher) DownloadDocument(ctx context.Context, docID int64) ([]byte, string, error) {
	endpoint := fmt.Sprintf("%s/downloadDocumento?id=%d", strings.TrimRight(s.cfg.FNETBaseURL, "/"), docID)
	body, headers, err := s.client.GetWithHeaders(ctx, endpoint)
	if err != nil {
		return nil, "", fmt.Errorf("fnet: download %d: %w", docID, err)
	}

	filename := fmt.Sprintf("fnet_%d.pdf", docID)
	if m := filenamePattern.FindStringSubmatch(headers.Get("Content-Disposition")); len(m) == 2 {
		filename = strings.TrimSpace(m[1])
	}
	return body, filename, nil
}
