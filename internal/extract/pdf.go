package extract

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"rsc.io/pdf"
)

// PDFNoTextMessage explains an ErrScannedPDF to the user
const PDFNoTextMessage = "Could not extract text from PDF. The file might be image-based or corrupted."

// ErrScannedPDF is returned for PDFs whose pages carry no text layer
var ErrScannedPDF = fmt.Errorf("%w: %s", ErrNoText, PDFNoTextMessage)

// PDF extracts text page by page. The pdf reader panics on some malformed
// files, so panics are converted to errors.
func PDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		if txt := strings.TrimSpace(pageText(page.Content().Text)); txt != "" {
			pages = append(pages, txt)
		}
	}

	if len(pages) == 0 {
		return "", ErrScannedPDF
	}
	return strings.Join(pages, "\n"), nil
}

// pageText joins positioned glyph runs into lines, inserting spaces at
// horizontal gaps and newlines when the baseline moves.
func pageText(runs []pdf.Text) string {
	var b strings.Builder
	var prev *pdf.Text

	for i := range runs {
		t := &runs[i]
		if prev != nil {
			lineHeight := math.Max(prev.FontSize, 1)
			switch {
			case math.Abs(t.Y-prev.Y) > lineHeight*0.5:
				b.WriteByte('\n')
			case t.X > prev.X+prev.W+lineHeight*0.15:
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
		prev = t
	}
	return b.String()
}
