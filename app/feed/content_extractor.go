package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/go-shiori/go-readability"
)

// maxPageBytes bounds how much of a linked page is read into memory.
const maxPageBytes = 4 << 20

// ContentExtractor fetches an article's linked page and pulls out the main
// textual content, discarding navigation, scripts and other boilerplate.
// It is strictly best-effort: every failure mode yields "no extraction" and
// the caller falls back to the syndication item's own snippet.
type ContentExtractor struct {
	httpClient *http.Client
	userAgent  string
	minLength  int
	converter  *md.Converter
}

func NewContentExtractor(httpClient *http.Client, userAgent string, minLength int) *ContentExtractor {
	return &ContentExtractor{
		httpClient: httpClient,
		userAgent:  userAgent,
		minLength:  minLength,
		converter:  md.NewConverter("", true, nil),
	}
}

// Run returns the extracted main-content text and whether extraction was
// confident. Results below the minimum length are rejected: a too-short
// extraction usually means the fetch was blocked or the page has no
// substantive content.
func (e *ContentExtractor) Run(ctx context.Context, link string) (string, bool) {
	data, err := e.fetchPage(ctx, link)
	if err != nil {
		slog.Debug("Page fetch failed", "url", link, "error", err)
		return "", false
	}

	pageURL, err := url.Parse(link)
	if err != nil {
		slog.Debug("Invalid article link", "url", link, "error", err)
		return "", false
	}

	article, err := readability.FromReader(strings.NewReader(string(data)), pageURL)
	if err != nil {
		slog.Debug("Readability parse failed", "url", link, "error", err)
		return "", false
	}

	text := e.flatten(article.Content)
	if text == "" {
		text = article.TextContent
	}

	// Collapse whitespace runs so length reflects actual prose
	text = strings.Join(strings.Fields(text), " ")

	if len(text) < e.minLength {
		slog.Debug("Extraction below confidence threshold",
			"url", link, "length", len(text), "min", e.minLength)
		return "", false
	}

	return text, true
}

func (e *ContentExtractor) fetchPage(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}

	// Browser-like request identity; bare Go user agents get blocked by
	// many news sites.
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "html") {
		return nil, fmt.Errorf("content type is not HTML: %s", contentType)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
}

func (e *ContentExtractor) flatten(html string) string {
	if html == "" {
		return ""
	}
	text, err := e.converter.ConvertString(html)
	if err != nil {
		return ""
	}
	return text
}
