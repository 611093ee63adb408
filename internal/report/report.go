// Package report renders summaries and admin data as downloadable files.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

const (
	originalTextLimit = 5000
	truncatedMarker   = "[Text truncated for display purposes...]"
	timestampLayout   = "2006-01-02 15:04:05"
	fileStampLayout   = "20060102_150405"
)

// Metadata describes the source document of a report
type Metadata struct {
	Filename         string  `json:"filename"`
	WordCount        int     `json:"word_count"`
	CompressionRatio float64 `json:"compression_ratio"`
	DetectedLanguage string  `json:"detected_language"`
	LanguageName     string  `json:"language_name"`
}

// Summary is the content of a downloadable summary report
type Summary struct {
	OriginalText     string
	Summary          string
	KeyPoints        []string
	Metadata         *Metadata
	OriginalFilename string
	GeneratedAt      time.Time
}

func (s Summary) generatedAt() time.Time {
	if s.GeneratedAt.IsZero() {
		return time.Now()
	}
	return s.GeneratedAt
}

func (s Summary) metadataRows() [][2]string {
	var rows [][2]string
	if m := s.Metadata; m != nil {
		if m.Filename != "" {
			rows = append(rows, [2]string{"Original File:", m.Filename})
		}
		if m.WordCount > 0 {
			rows = append(rows, [2]string{"Original Word Count:", fmt.Sprintf("%d", m.WordCount)})
		}
		rows = append(rows, [2]string{"Compression Ratio:", fmt.Sprintf("%.1f%%", m.CompressionRatio)})
		if m.DetectedLanguage != "" {
			name := m.LanguageName
			if name == "" {
				name = "Unknown"
			}
			rows = append(rows, [2]string{"Detected Language:", name})
		}
	}
	return append(rows, [2]string{"Generated On:", s.generatedAt().Format(timestampLayout)})
}

// WritePDF renders an A4 summary report
func WritePDF(w io.Writer, s Summary) error {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(72, 72, 72)
	pdf.SetAutoPageBreak(true, 72)
	pdf.SetTitle("SmartNotes AI Summary Report", true)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageWidth, _ := pdf.GetPageSize()
	contentWidth := pageWidth - 144

	pdf.SetFont("Helvetica", "B", 22)
	pdf.SetTextColor(44, 62, 80)
	pdf.CellFormat(contentWidth, 30, tr("SmartNotes AI Summary Report"), "", 1, "C", false, 0, "")
	pdf.Ln(20)

	if s.Metadata != nil {
		pdf.SetFontSize(10)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetDrawColor(224, 224, 224)
		for _, row := range s.metadataRows() {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.SetFillColor(248, 249, 250)
			pdf.CellFormat(144, 18, tr(row[0]), "1", 0, "L", true, 0, "")
			pdf.SetFont("Helvetica", "", 10)
			pdf.CellFormat(216, 18, tr(row[1]), "1", 1, "L", false, 0, "")
		}
		pdf.Ln(20)
	}

	heading := func(text string) {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.SetTextColor(52, 73, 94)
		pdf.CellFormat(contentWidth, 20, tr(text), "", 1, "L", false, 0, "")
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "", 11)
		pdf.SetTextColor(0, 0, 0)
	}

	heading("AI-Generated Summary")
	pdf.MultiCell(contentWidth, 15, tr(s.Summary), "", "J", false)
	pdf.Ln(20)

	if len(s.KeyPoints) > 0 {
		heading("Key Points")
		for i, point := range s.KeyPoints {
			pdf.SetX(72 + 20)
			pdf.MultiCell(contentWidth-20, 15, tr(fmt.Sprintf("%d. %s", i+1, point)), "", "L", false)
			pdf.Ln(3)
		}
		pdf.Ln(17)
	}

	heading("Original Text")
	pdf.MultiCell(contentWidth, 15, tr(truncateOriginal(s.OriginalText)), "", "J", false)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("generating pdf: %w", err)
	}
	return nil
}

func truncateOriginal(text string) string {
	runes := []rune(text)
	if len(runes) <= originalTextLimit {
		return text
	}
	return string(runes[:originalTextLimit]) + "\n\n" + truncatedMarker
}

// Text renders the plain text summary report
func Text(s Summary) string {
	banner := strings.Repeat("=", 60)
	rule := strings.Repeat("-", 30)

	filename := s.OriginalFilename
	if filename == "" {
		filename = "Unknown"
	}

	lines := []string{
		banner,
		"SMARTNOTES AI SUMMARY REPORT",
		banner,
		"",
		"DOCUMENT INFORMATION",
		rule,
		"Original File: " + filename,
	}

	if m := s.Metadata; m != nil {
		if m.WordCount > 0 {
			lines = append(lines, fmt.Sprintf("Original Word Count: %d", m.WordCount))
		}
		lines = append(lines, fmt.Sprintf("Compression Ratio: %.1f%%", m.CompressionRatio))
		if m.DetectedLanguage != "" {
			name := m.LanguageName
			if name == "" {
				name = "Unknown"
			}
			lines = append(lines, "Detected Language: "+name)
		}
	}

	lines = append(lines,
		"Generated On: "+s.generatedAt().Format(timestampLayout),
		"",
		"AI-GENERATED SUMMARY",
		rule,
		s.Summary,
		"",
	)

	if len(s.KeyPoints) > 0 {
		lines = append(lines, "KEY POINTS", rule)
		for i, point := range s.KeyPoints {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, point))
		}
		lines = append(lines, "")
	}

	lines = append(lines, banner, "Generated by SmartNotes AI", banner)
	return strings.Join(lines, "\n")
}

// SummaryFilename returns the download name for a summary report with ext "pdf" or "txt"
func SummaryFilename(ext string, at time.Time) string {
	return fmt.Sprintf("smartnotes_summary_%s.%s", at.Format(fileStampLayout), ext)
}
