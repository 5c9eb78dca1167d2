package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Test Article</title></head>
<body>
	<nav><a href="/">Home</a> | <a href="/about">About</a></nav>
	<article>
		<h1>Test Article Title</h1>
		<p>This is the main content of the article. It contains several paragraphs of meaningful text that should be extracted by the readability algorithm.</p>
		<p>This is another paragraph with more content. The readability algorithm should identify this as the main content area and extract it properly.</p>
		<p>A third paragraph rounds out the article with additional substantive prose so the extracted text comfortably clears any minimum length requirement imposed by the extractor.</p>
	</article>
	<script>console.log("tracking");</script>
	<footer>Copyright 2025</footer>
</body>
</html>`

func newTestExtractor(minLength int) *ContentExtractor {
	client := &http.Client{Timeout: 5 * time.Second}
	return NewContentExtractor(client, "test-agent", minLength)
}

func TestExtractMainContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	extractor := newTestExtractor(100)
	content, ok := extractor.Run(context.Background(), server.URL+"/article")
	if !ok {
		t.Fatal("Expected extraction to succeed")
	}

	if !strings.Contains(content, "main content of the article") {
		t.Errorf("Expected extracted text to contain article prose, got %q", content)
	}
	if strings.Contains(content, "console.log") {
		t.Error("Script content should be stripped")
	}
}

func TestExtractBelowMinimumLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><p>Too short.</p></body></html>`))
	}))
	defer server.Close()

	extractor := newTestExtractor(300)
	if _, ok := extractor.Run(context.Background(), server.URL); ok {
		t.Error("Expected extraction to be rejected below the minimum length")
	}
}

func TestExtractNonHTMLContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	extractor := newTestExtractor(10)
	if _, ok := extractor.Run(context.Background(), server.URL); ok {
		t.Error("Expected extraction to fail for non-HTML content")
	}
}

func TestExtractHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	extractor := newTestExtractor(10)
	if _, ok := extractor.Run(context.Background(), server.URL); ok {
		t.Error("Expected extraction to fail on a non-2xx response")
	}
}

func TestExtractUnreachableHost(t *testing.T) {
	extractor := newTestExtractor(10)

	// Extraction must fail soft, never panic or propagate
	if _, ok := extractor.Run(context.Background(), "http://127.0.0.1:1/nothing"); ok {
		t.Error("Expected extraction to fail for an unreachable host")
	}
}

func TestExtractSendsBrowserIdentity(t *testing.T) {
	var gotUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	extractor := newTestExtractor(100)
	extractor.Run(context.Background(), server.URL)

	if gotUserAgent != "test-agent" {
		t.Errorf("Expected configured user agent to be sent, got %q", gotUserAgent)
	}
}

func TestExtractRespectsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	extractor := newTestExtractor(10)
	start := time.Now()
	if _, ok := extractor.Run(ctx, server.URL); ok {
		t.Error("Expected extraction to fail on context timeout")
	}
	if time.Since(start) > time.Second {
		t.Error("Extraction did not honor context cancellation")
	}
}
