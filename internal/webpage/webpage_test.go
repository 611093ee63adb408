package webpage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const articleParagraph = "Urban gardens are becoming a common sight in many cities around the world. " +
	"Residents grow vegetables, herbs and flowers on rooftops, balconies and unused lots. " +
	"Supporters say these gardens improve air quality, reduce food costs and bring neighbours together. "

func articleHTML() string {
	return `<!DOCTYPE html>
<html><head>
<title>Urban Gardens Grow</title>
<meta name="author" content="Jane Doe">
<meta name="description" content="How cities are turning green">
</head><body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<script>var tracking = "should not appear";</script>
<article>
<h1>Urban Gardens Grow</h1>
<p>` + articleParagraph + `</p>
<p>` + articleParagraph + `</p>
<p>` + articleParagraph + `</p>
</article>
<footer>Copyright footer text</footer>
</body></html>`
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url      string
		expected bool
	}{
		{"https://example.com", true},
		{"http://www.example.co.uk/path?q=1", true},
		{"http://localhost:8080/page", true},
		{"http://127.0.0.1:3000", true},
		{"HTTPS://EXAMPLE.COM/", true},
		{"ftp://example.com", false},
		{"example.com", false},
		{"http://", false},
		{"http://exa mple.com", false},
		{"javascript:alert(1)", false},
	}

	for _, test := range tests {
		t.Run(test.url, func(t *testing.T) {
			if got := ValidateURL(test.url); got != test.expected {
				t.Errorf("ValidateURL(%s): expected %v, got %v", test.url, test.expected, got)
			}
		})
	}
}

func TestEstimateReadingTime(t *testing.T) {
	tests := []struct {
		words, wpm, expected int
	}{
		{0, 200, 1},
		{99, 200, 1},
		{300, 200, 2},
		{1000, 200, 5},
		{400, 0, 2},
	}
	for _, test := range tests {
		if got := EstimateReadingTime(test.words, test.wpm); got != test.expected {
			t.Errorf("EstimateReadingTime(%d, %d): expected %d, got %d", test.words, test.wpm, test.expected, got)
		}
	}
}

func TestDomainName(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://www.example.com/a/b", "example.com"},
		{"http://news.example.org", "news.example.org"},
		{"http://localhost:8080", "localhost"},
		{"not a url", "unknown"},
		{"://broken", "unknown"},
	}
	for _, test := range tests {
		if got := DomainName(test.url); got != test.expected {
			t.Errorf("DomainName(%s): expected '%s', got '%s'", test.url, test.expected, got)
		}
	}
}

func TestExtract(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(articleHTML()))
	}))
	defer server.Close()

	p := NewProcessor(server.Client())
	page, err := p.Extract(context.Background(), server.URL+"/article")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if !strings.Contains(gotUA, "Mozilla") {
		t.Errorf("Expected browser user agent, got '%s'", gotUA)
	}
	if !strings.Contains(page.Text, "Urban gardens are becoming") {
		t.Errorf("Expected article text, got '%s'", page.Text)
	}
	if strings.Contains(page.Text, "should not appear") {
		t.Error("Expected script content to be removed")
	}
	if page.Title != "Urban Gardens Grow" {
		t.Errorf("Expected title 'Urban Gardens Grow', got '%s'", page.Title)
	}
	if page.Author != "Jane Doe" {
		t.Errorf("Expected author 'Jane Doe', got '%s'", page.Author)
	}
	if page.WordCount < 50 {
		t.Errorf("Expected at least 50 words, got %d", page.WordCount)
	}
	if page.ReadingTime != 1 {
		t.Errorf("Expected reading time 1, got %d", page.ReadingTime)
	}
	if page.Domain != "127.0.0.1" {
		t.Errorf("Expected domain 127.0.0.1, got '%s'", page.Domain)
	}
}

func TestExtractDefaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><div>" + articleParagraph + articleParagraph + "</div></body></html>"))
	}))
	defer server.Close()

	page, err := NewProcessor(server.Client()).Extract(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if page.Title != defaultTitle {
		t.Errorf("Expected default title, got '%s'", page.Title)
	}
	if page.Author != defaultAuthor {
		t.Errorf("Expected default author, got '%s'", page.Author)
	}
}

func TestExtractErrors(t *testing.T) {
	short := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>Too little here.</p></body></html>"))
	}))
	defer short.Close()

	missing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer missing.Close()

	p := NewProcessor(nil)
	ctx := context.Background()

	if _, err := p.Extract(ctx, "ftp://example.com/file"); !errors.Is(err, ErrInvalidURL) {
		t.Errorf("Expected ErrInvalidURL, got %v", err)
	}
	if _, err := p.Extract(ctx, short.URL); !errors.Is(err, ErrNotEnoughContent) {
		t.Errorf("Expected ErrNotEnoughContent, got %v", err)
	}
	_, err := p.Extract(ctx, missing.URL)
	if err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Errorf("Expected status error, got %v", err)
	}
}

func TestStripHTML(t *testing.T) {
	doc := `<html><head><style>body{}</style></head><body><header>Top</header><p>Fish &amp; chips</p><aside>Ads</aside></body></html>`
	if got := stripHTML(doc); got != "Fish & chips" {
		t.Errorf("Expected 'Fish & chips', got '%s'", got)
	}
}
