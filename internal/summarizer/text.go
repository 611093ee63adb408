package summarizer

import (
	"regexp"
	"strings"
	"unicode"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeWhitespace collapses runs of whitespace into single spaces
func NormalizeWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// WordCount counts whitespace separated words
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// SplitSentences splits text on sentence terminators. Latin terminators must be
// followed by whitespace; CJK terminators end a sentence unconditionally.
func SplitSentences(text string) []string {
	runes := []rune(NormalizeWhitespace(text))
	var sentences []string
	start := 0

	flush := func(end int) {
		s := strings.TrimSpace(string(runes[start:end]))
		if s != "" {
			sentences = append(sentences, s)
		}
		start = end
	}

	for i, r := range runes {
		switch r {
		case '。', '！', '？', '।':
			flush(i + 1)
		case '.', '!', '?':
			next := i + 1
			// keep closing quotes and brackets with the sentence
			for next < len(runes) && strings.ContainsRune(`"')]”’`, runes[next]) {
				next++
			}
			if next == len(runes) || unicode.IsSpace(runes[next]) {
				flush(next)
			}
		}
	}
	if start < len(runes) {
		flush(len(runes))
	}
	return sentences
}

// Preprocess normalizes whitespace and drops sentences of three words or fewer
func Preprocess(text string) string {
	var meaningful []string
	for _, s := range SplitSentences(text) {
		if WordCount(s) > 3 {
			meaningful = append(meaningful, s)
		}
	}
	return strings.Join(meaningful, " ")
}

// ChunkText groups sentences into chunks of at most maxWords words. A single
// sentence longer than maxWords forms its own chunk.
func ChunkText(text string, maxWords int) []string {
	if WordCount(text) <= maxWords {
		return []string{text}
	}

	var chunks []string
	var current []string
	currentWords := 0

	for _, sentence := range SplitSentences(text) {
		n := WordCount(sentence)
		if currentWords > 0 && currentWords+n > maxWords {
			chunks = append(chunks, strings.Join(current, " "))
			current = nil
			currentWords = 0
		}
		current = append(current, sentence)
		currentWords += n
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// chunkByChars groups sentences into pieces shorter than limit characters
func chunkByChars(text string, limit int) []string {
	var chunks []string
	var current strings.Builder

	for _, sentence := range SplitSentences(text) {
		if current.Len() > 0 && current.Len()+len(sentence)+1 >= limit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
