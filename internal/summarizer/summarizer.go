// Package summarizer turns free text into summaries, key points and translations
// using a pluggable text generation backend.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"golang.org/x/sync/errgroup"

	"github.com/pep299/smartnotes/internal/cache"
)

// Summary types
const (
	TypeBrief    = "brief"
	TypeBalanced = "balanced"
	TypeDetailed = "detailed"
)

const (
	maxChunkWords      = 750
	translateChunkSize = 5000
	minSummarizeChars  = 50

	textTooShort       = "Text too short to summarize effectively."
	sectionPlaceholder = "Could not summarize this section."
)

// ErrGenerationFailed is returned when no part of the text could be summarized
var ErrGenerationFailed = errors.New("summary generation failed")

// Generator produces text for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Cache stores summarization results as JSON
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) error
	SetJSON(ctx context.Context, key string, v any) error
}

// Request describes a summarization request
type Request struct {
	Text           string
	MaxLength      int
	MinLength      int
	SummaryType    string
	TargetLanguage string
}

// Result is the outcome of a summarization
type Result struct {
	Summary            string  `json:"summary"`
	OriginalLength     int     `json:"original_length"`
	SummaryLength      int     `json:"summary_length"`
	CompressionRatio   float64 `json:"compression_ratio"`
	DetectedLanguage   string  `json:"detected_language"`
	LanguageName       string  `json:"language_name"`
	TargetLanguage     string  `json:"target_language"`
	TargetLanguageName string  `json:"target_language_name"`
}

// Summarizer coordinates preprocessing, chunking and generation
type Summarizer struct {
	generator     Generator
	cache         Cache
	maxConcurrent int
}

// New creates a summarizer. cache may be nil.
func New(generator Generator, c Cache, maxConcurrent int) *Summarizer {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Summarizer{
		generator:     generator,
		cache:         c,
		maxConcurrent: maxConcurrent,
	}
}

// Backend returns the name of the configured generator
func (s *Summarizer) Backend() string {
	return s.generator.Name()
}

// normalize fills defaults and applies the summary type length rules
func (r Request) normalize() Request {
	if r.MaxLength <= 0 {
		r.MaxLength = 150
	}
	if r.MinLength <= 0 {
		r.MinLength = 50
	}
	if r.SummaryType == "" {
		r.SummaryType = TypeBalanced
	}

	switch r.SummaryType {
	case TypeBrief:
		r.MaxLength = min(r.MaxLength, 100)
		r.MinLength = min(r.MinLength, 30)
	case TypeDetailed:
		r.MaxLength = min(r.MaxLength*2, 300)
		r.MinLength = int(math.Min(float64(r.MinLength)*1.5, 100))
	}

	if r.MinLength > r.MaxLength {
		r.MinLength = r.MaxLength
	}
	return r
}

// Summarize produces a summary of req.Text
func (s *Summarizer) Summarize(ctx context.Context, req Request) (*Result, error) {
	logger := log.New(funcframework.LogWriter(ctx), "", 0)

	if utf8.RuneCountInString(strings.TrimSpace(req.Text)) < minSummarizeChars {
		return &Result{
			Summary:            textTooShort,
			OriginalLength:     WordCount(req.Text),
			DetectedLanguage:   DefaultLanguage,
			LanguageName:       LanguageName(DefaultLanguage),
			TargetLanguage:     DefaultLanguage,
			TargetLanguageName: LanguageName(DefaultLanguage),
		}, nil
	}

	req = req.normalize()

	detected := DetectLanguage(req.Text)
	output := detected
	if IsSupported(req.TargetLanguage) {
		output = req.TargetLanguage
	}

	key := cache.GenerateKey("summary", req.Text, strconv.Itoa(req.MaxLength), strconv.Itoa(req.MinLength), req.SummaryType, output)
	if s.cache != nil {
		var cached Result
		if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
			logger.Printf("summary_cache_hit key=%s", key)
			return &cached, nil
		}
	}

	working := Preprocess(req.Text)
	if working == "" {
		working = NormalizeWhitespace(req.Text)
	}

	chunks := ChunkText(working, maxChunkWords)
	logger.Printf("summarize_start backend=%s words=%d chunks=%d type=%s lang=%s",
		s.generator.Name(), WordCount(working), len(chunks), req.SummaryType, output)

	summaries, err := s.summarizeChunks(ctx, chunks, req, output)
	if err != nil {
		return nil, err
	}

	summary := strings.Join(summaries, " ")
	if len(summaries) > 1 && float64(WordCount(summary)) > float64(req.MaxLength)*1.5 {
		condensed, err := s.generator.Generate(ctx, summaryPrompt(summary, req.MinLength, req.MaxLength, output))
		if err != nil || strings.TrimSpace(condensed) == "" {
			logger.Printf("summary_condense_failed error=%v", err)
			summary = truncateRunes(summary, req.MaxLength*6)
		} else {
			summary = strings.TrimSpace(condensed)
		}
	}

	originalLength := WordCount(req.Text)
	summaryLength := WordCount(summary)
	result := &Result{
		Summary:            summary,
		OriginalLength:     originalLength,
		SummaryLength:      summaryLength,
		CompressionRatio:   compressionRatio(originalLength, summaryLength),
		DetectedLanguage:   detected,
		LanguageName:       LanguageName(detected),
		TargetLanguage:     output,
		TargetLanguageName: LanguageName(output),
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, result); err != nil {
			logger.Printf("summary_cache_set_failed key=%s error=%v", key, err)
		}
	}

	logger.Printf("summarize_done original=%d summary=%d ratio=%.1f", originalLength, summaryLength, result.CompressionRatio)
	return result, nil
}

// summarizeChunks summarizes every chunk concurrently, retrying each failure
// once with conservative lengths before falling back to a placeholder.
func (s *Summarizer) summarizeChunks(ctx context.Context, chunks []string, req Request, lang string) ([]string, error) {
	logger := log.New(funcframework.LogWriter(ctx), "", 0)

	results := make([]string, len(chunks))
	var (
		mu       sync.Mutex
		failures int
		lastErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			text, err := s.generator.Generate(gctx, summaryPrompt(chunk, req.MinLength, req.MaxLength, lang))
			if err == nil && strings.TrimSpace(text) != "" {
				results[i] = strings.TrimSpace(text)
				return nil
			}
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			logger.Printf("chunk_summary_retry chunk=%d error=%v", i, err)

			text, err = s.generator.Generate(gctx, summaryPrompt(chunk, min(req.MinLength, 20), min(req.MaxLength, 100), lang))
			if err == nil && strings.TrimSpace(text) != "" {
				results[i] = strings.TrimSpace(text)
				return nil
			}
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}

			if err == nil {
				err = errors.New("empty response")
			}
			logger.Printf("chunk_summary_failed chunk=%d error=%v", i, err)
			mu.Lock()
			failures++
			lastErr = err
			mu.Unlock()
			results[i] = sectionPlaceholder
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("summarizing chunks: %w", err)
	}

	if failures == len(chunks) {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, lastErr)
	}
	return results, nil
}

// ExtractKeyPoints selects n evenly spaced sentences from text, translating
// them when target is a different non-English language. Targets outside
// Languages() are passed to the generator by code.
func (s *Summarizer) ExtractKeyPoints(ctx context.Context, text string, n int, target string) []string {
	if n <= 0 {
		n = 5
	}

	sentences := SplitSentences(text)
	points := make([]string, 0, n)
	if len(sentences) <= n {
		points = append(points, sentences...)
	} else {
		step := len(sentences) / n
		for i := 0; i < len(sentences) && len(points) < n; i += step {
			points = append(points, sentences[i])
		}
	}

	if target == "" || target == DefaultLanguage {
		return points
	}

	detected := DetectLanguage(text)
	if detected == target {
		return points
	}

	translated := make([]string, len(points))
	for i, point := range points {
		translated[i] = s.Translate(ctx, point, target, detected)
	}
	return translated
}

// Translate translates text into target. source may be "auto" or empty.
// Failures are logged and the original text is returned.
func (s *Summarizer) Translate(ctx context.Context, text, target, source string) string {
	logger := log.New(funcframework.LogWriter(ctx), "", 0)

	if strings.TrimSpace(text) == "" || target == "" {
		return text
	}
	if source == "" || source == "auto" {
		source = DetectLanguage(text)
	}
	if source == target {
		return text
	}

	pieces := []string{text}
	if len(text) > translateChunkSize {
		pieces = chunkByChars(text, translateChunkSize)
	}

	translated := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		out, err := s.generator.Generate(ctx, translatePrompt(piece, source, target))
		if err != nil || strings.TrimSpace(out) == "" {
			logger.Printf("translation_failed source=%s target=%s error=%v", source, target, err)
			return text
		}
		translated = append(translated, strings.TrimSpace(out))
	}
	return strings.Join(translated, " ")
}

func summaryPrompt(text string, minWords, maxWords int, lang string) string {
	return fmt.Sprintf(
		"Summarize the following text in %s. Write between %d and %d words of plain prose, "+
			"without headings, bullet points or any preamble. Only use information found in the text.\n\nText:\n%s",
		LanguageName(lang), minWords, maxWords, text)
}

func translatePrompt(text, source, target string) string {
	return fmt.Sprintf(
		"Translate the following text from %s to %s. Return only the translation.\n\nText:\n%s",
		promptLanguage(source), promptLanguage(target), text)
}

// promptLanguage names code for a prompt, using the code itself when unknown
func promptLanguage(code string) string {
	if IsSupported(code) {
		return LanguageName(code)
	}
	return code
}

func compressionRatio(original, summary int) float64 {
	if original == 0 {
		return 0
	}
	ratio := float64(original-summary) / float64(original) * 100
	return math.Round(ratio*10) / 10
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit])) + "..."
}
