// Package webpage fetches web pages and extracts their readable text.
package webpage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	readability "github.com/go-shiori/go-readability"
)

const (
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	maxBodyBytes   = 10 << 20
	minWords       = 50
	defaultTitle   = "Webpage"
	defaultAuthor  = "Unknown"
	defaultTimeout = 30 * time.Second
)

var (
	// ErrInvalidURL is returned for URLs that are not http(s) with a valid host
	ErrInvalidURL = errors.New("invalid URL format")
	// ErrNotEnoughContent is returned when a page has too little readable text
	ErrNotEnoughContent = errors.New("could not extract sufficient content from the webpage")
)

var urlPattern = regexp.MustCompile(`(?i)^https?://` +
	`(?:(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}\.?|localhost|\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})` +
	`(?::\d+)?(?:/?|[/?]\S+)$`)

// Page is the text content of a fetched web page
type Page struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
	SiteName    string `json:"site_name,omitempty"`
	Text        string `json:"text"`
	WordCount   int    `json:"word_count"`
	ReadingTime int    `json:"reading_time"`
	Domain      string `json:"domain"`
}

// ValidateURL reports whether raw is an http(s) URL with a domain, localhost or IPv4 host
func ValidateURL(raw string) bool {
	return urlPattern.MatchString(strings.TrimSpace(raw))
}

// Processor downloads pages and extracts their main content
type Processor struct {
	client *http.Client
}

// NewProcessor creates a processor. A nil client gets a 30s timeout client.
func NewProcessor(client *http.Client) *Processor {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Processor{client: client}
}

// Extract fetches rawURL and returns its readable text
func (p *Processor) Extract(ctx context.Context, rawURL string) (*Page, error) {
	logger := log.New(funcframework.LogWriter(ctx), "", 0)

	rawURL = strings.TrimSpace(rawURL)
	if !ValidateURL(rawURL) {
		return nil, ErrInvalidURL
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	body, err := p.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	page := &Page{URL: rawURL, Domain: DomainName(rawURL)}

	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		logger.Printf("readability_failed url=%s error=%v", rawURL, err)
	} else {
		page.Title = strings.TrimSpace(article.Title)
		page.Author = strings.TrimSpace(article.Byline)
		page.Description = strings.TrimSpace(article.Excerpt)
		page.SiteName = strings.TrimSpace(article.SiteName)
		page.Text = normalize(article.TextContent)
	}

	if countWords(page.Text) < minWords {
		fallback := stripHTML(string(body))
		if countWords(fallback) > countWords(page.Text) {
			page.Text = fallback
		}
	}

	page.WordCount = countWords(page.Text)
	if page.WordCount < minWords {
		return nil, ErrNotEnoughContent
	}

	if page.Title == "" {
		page.Title = firstMatch(titlePattern, string(body))
	}
	if page.Title == "" {
		page.Title = defaultTitle
	}
	if page.Author == "" {
		page.Author = metaContent(string(body), "author")
	}
	if page.Author == "" {
		page.Author = defaultAuthor
	}
	if page.Description == "" {
		page.Description = metaContent(string(body), "description")
	}
	page.ReadingTime = EstimateReadingTime(page.WordCount, 200)

	logger.Printf("webpage_extracted url=%s words=%d", rawURL, page.WordCount)
	return page, nil
}

func (p *Processor) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching webpage: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching webpage: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading webpage: %w", err)
	}
	return body, nil
}

// EstimateReadingTime returns whole minutes at wpm words per minute, never less than one
func EstimateReadingTime(words, wpm int) int {
	if wpm <= 0 {
		wpm = 200
	}
	minutes := int(math.Round(float64(words) / float64(wpm)))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// DomainName returns the host of rawURL without a leading "www."
func DomainName(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Hostname() == "" {
		return "unknown"
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}

var noiseBlocks []*regexp.Regexp

var (
	bodyPattern  = regexp.MustCompile(`(?is)<body[^>]*>(.*)</body>`)
	tagPattern   = regexp.MustCompile(`(?s)<[^>]*>`)
	titlePattern = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	metaPattern  = regexp.MustCompile(`(?is)<meta\s+[^>]*>`)
	spacePattern = regexp.MustCompile(`\s+`)
)

func init() {
	for _, tag := range []string{"script", "style", "nav", "footer", "header", "aside", "iframe", "noscript"} {
		noiseBlocks = append(noiseBlocks, regexp.MustCompile(`(?is)<`+tag+`\b.*?</`+tag+`\s*>`))
	}
}

// stripHTML removes non-content blocks and tags
func stripHTML(doc string) string {
	if m := bodyPattern.FindStringSubmatch(doc); m != nil {
		doc = m[1]
	}
	for _, re := range noiseBlocks {
		doc = re.ReplaceAllString(doc, " ")
	}
	doc = tagPattern.ReplaceAllString(doc, " ")
	return normalize(html.UnescapeString(doc))
}

func normalize(text string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
}

func countWords(text string) int {
	return len(strings.Fields(text))
}

func firstMatch(re *regexp.Regexp, doc string) string {
	if m := re.FindStringSubmatch(doc); m != nil {
		return normalize(html.UnescapeString(m[1]))
	}
	return ""
}

var attrPattern = regexp.MustCompile(`(?i)(name|property|content)\s*=\s*("[^"]*"|'[^']*')`)

// metaContent returns the content of <meta name=...> or <meta property="og:...">
func metaContent(doc, name string) string {
	for _, tag := range metaPattern.FindAllString(doc, -1) {
		var key, content string
		for _, attr := range attrPattern.FindAllStringSubmatch(tag, -1) {
			value := strings.Trim(attr[2], `"'`)
			switch strings.ToLower(attr[1]) {
			case "content":
				content = value
			default:
				key = strings.ToLower(value)
			}
		}
		if key == name || key == "og:"+name || key == "article:"+name {
			return normalize(html.UnescapeString(content))
		}
	}
	return ""
}
