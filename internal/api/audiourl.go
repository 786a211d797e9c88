package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrAudioUnavailable is returned when no candidate audio URL responds.
var ErrAudioUnavailable = errors.New("áudio indisponível para este registro")

// AudioURLCandidates builds the ordered, deduplicated list of URLs that
// may serve the audio stored under path. The backend's filename handling
// is inconsistent (diacritics, spaces, container extension), so the list
// crosses the streaming and static endpoints with filename variants.
// This compensates a known backend fragility; it is not a general
// resolver.
func AudioURLCandidates(baseURL, storedPath string) []string {
	filename := lastSegment(strings.TrimSpace(storedPath))
	if filename == "" {
		return nil
	}
	base := strings.TrimRight(baseURL, "/")

	names := appendUnique(nil, filename)
	names = appendUnique(names, slugifyFilename(filename))
	withSwaps := make([]string, 0, len(names)*2)
	for _, name := range names {
		withSwaps = appendUnique(withSwaps, name)
		if swapped := swapContainerExt(name); swapped != "" {
			withSwaps = appendUnique(withSwaps, swapped)
		}
	}

	candidates := make([]string, 0, len(withSwaps)*2)
	for _, name := range withSwaps {
		escaped := url.PathEscape(name)
		candidates = appendUnique(candidates, base+"/api/registro/audio/"+escaped)
		candidates = appendUnique(candidates, base+"/uploads/"+escaped)
	}
	return candidates
}

// ResolveAudioURL probes the candidates in order and returns the first
// that responds successfully.
func (c *Client) ResolveAudioURL(ctx context.Context, storedPath string) (string, error) {
	candidates := AudioURLCandidates(c.baseURL, storedPath)
	if resolved, ok := FirstSuccess(ctx, c.probe, candidates); ok {
		return resolved, nil
	}
	return "", ErrAudioUnavailable
}

// FirstSuccess runs probe over candidates in order and returns the first
// winner. Probing stops at the first success.
func FirstSuccess(ctx context.Context, probe func(context.Context, string) bool, candidates []string) (string, bool) {
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return "", false
		}
		if probe(ctx, candidate) {
			return candidate, true
		}
	}
	return "", false
}

// probe performs a lightweight existence check: HEAD first, falling back
// to GET when the server does not implement HEAD.
func (c *Client) probe(ctx context.Context, candidate string) bool {
	status, err := c.probeMethod(ctx, http.MethodHead, candidate)
	if err != nil {
		return false
	}
	if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
		status, err = c.probeMethod(ctx, http.MethodGet, candidate)
		if err != nil {
			return false
		}
	}
	return status >= 200 && status <= 299
}

func (c *Client) probeMethod(ctx context.Context, method, candidate string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, candidate, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func lastSegment(path string) string {
	if path == "" {
		return ""
	}
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}

// slugifyFilename strips diacritics and replaces spaces with underscores,
// matching how the backend rewrites uploaded filenames.
func slugifyFilename(name string) string {
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripper, name)
	if err != nil {
		stripped = name
	}
	return strings.ReplaceAll(stripped, " ", "_")
}

func swapContainerExt(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".m4a"):
		return name[:len(name)-4] + ".mp4"
	case strings.HasSuffix(lower, ".mp4"):
		return name[:len(name)-4] + ".m4a"
	default:
		return ""
	}
}

func appendUnique(list []string, value string) []string {
	if value == "" {
		return list
	}
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
