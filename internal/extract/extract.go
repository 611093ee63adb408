// Package extract pulls plain text out of uploaded documents.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrUnsupportedType is returned for extensions outside the allowed set
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrNoText is returned when a document contains no extractable text
	ErrNoText = errors.New("no text found in file")
)

var allowedExtensions = map[string]bool{
	"txt":  true,
	"pdf":  true,
	"docx": true,
	"doc":  true,
	"pptx": true,
	"ppt":  true,
}

// Result describes the text extracted from one file
type Result struct {
	Text      string `json:"text"`
	Filename  string `json:"filename"`
	WordCount int    `json:"word_count"`
	FileType  string `json:"file_type"`
	FileSize  int    `json:"file_size"`
}

// Extension returns the lowercased extension without the dot
func Extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// AllowedFile reports whether filename has a supported extension
func AllowedFile(filename string) bool {
	return allowedExtensions[Extension(filename)]
}

// AllowedExtensions lists the supported extensions
func AllowedExtensions() []string {
	return []string{"txt", "pdf", "docx", "doc", "pptx", "ppt"}
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename strips directory components and unsafe characters
func SecureFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	return name
}

// File extracts text from data according to the filename's extension
func File(filename string, data []byte) (*Result, error) {
	if !AllowedFile(filename) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, Extension(filename))
	}

	ext := Extension(filename)
	var (
		text string
		err  error
	)

	switch ext {
	case "txt":
		text, err = Text(data)
	case "pdf":
		text, err = PDF(data)
	case "docx", "doc":
		text, err = DOCX(data)
	case "pptx", "ppt":
		text, err = PPTX(data)
	}
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", ext, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoText
	}

	return &Result{
		Text:      text,
		Filename:  SecureFilename(filename),
		WordCount: len(strings.Fields(text)),
		FileType:  ext,
		FileSize:  len(data),
	}, nil
}
