package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DOCX extracts paragraphs from word/document.xml followed by table cell text
func DOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening docx archive: %w", err)
	}

	doc, err := readZipFile(zr, "word/document.xml")
	if err != nil {
		return "", err
	}

	paragraphs, cells, err := parseWordDocument(doc)
	if err != nil {
		return "", fmt.Errorf("parsing document.xml: %w", err)
	}

	return strings.Join(append(paragraphs, cells...), "\n"), nil
}

// parseWordDocument walks the document body. Paragraphs inside tables are
// collected as cells and reported after the body paragraphs.
func parseWordDocument(data []byte) (paragraphs, cells []string, err error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		tableDepth int
		inText     bool
		para       strings.Builder
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "tbl":
				tableDepth++
			case "p":
				para.Reset()
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "tbl":
				tableDepth--
			case "t":
				inText = false
			case "p":
				text := strings.TrimSpace(para.String())
				if text == "" {
					continue
				}
				if tableDepth > 0 {
					cells = append(cells, text)
				} else {
					paragraphs = append(paragraphs, text)
				}
			}
		case xml.CharData:
			if inText {
				para.Write(el)
			}
		}
	}
	return paragraphs, cells, nil
}

var slideName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// PPTX extracts text slide by slide. Each slide with text gets a
// "--- Slide N ---" header; table rows are joined with " | ".
func PPTX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pptx archive: %w", err)
	}

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		m := slideName.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: num, file: f})
	}
	if len(slides) == 0 {
		return "", fmt.Errorf("no slides found in presentation")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var parts []string
	for _, s := range slides {
		content, err := readFile(s.file)
		if err != nil {
			return "", err
		}
		lines, err := parseSlide(content)
		if err != nil {
			return "", fmt.Errorf("parsing slide %d: %w", s.num, err)
		}
		if len(lines) == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("--- Slide %d ---", s.num))
		parts = append(parts, lines...)
	}

	return strings.Join(parts, "\n"), nil
}

// parseSlide returns one line per text paragraph and one line per table row
func parseSlide(data []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		lines      []string
		para       strings.Builder
		inText     bool
		tableDepth int
		row        []string
		cell       []string
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "tbl":
				tableDepth++
			case "tr":
				row = nil
			case "tc":
				cell = nil
			case "p":
				para.Reset()
			case "t":
				inText = true
			case "br":
				para.WriteByte(' ')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "tbl":
				tableDepth--
			case "t":
				inText = false
			case "p":
				text := strings.TrimSpace(para.String())
				if text == "" {
					continue
				}
				if tableDepth > 0 {
					cell = append(cell, text)
				} else {
					lines = append(lines, text)
				}
			case "tc":
				if len(cell) > 0 {
					row = append(row, strings.Join(cell, " "))
				}
			case "tr":
				if len(row) > 0 {
					lines = append(lines, strings.Join(row, " | "))
				}
			}
		case xml.CharData:
			if inText {
				para.Write(el)
			}
		}
	}
	return lines, nil
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == name {
			return readFile(f)
		}
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Name, err)
	}
	return data, nil
}
