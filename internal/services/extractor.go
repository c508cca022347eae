package services

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"docanalyzer/internal/apperr"
	"docanalyzer/internal/models"
)

// ContentExtractor turns raw upload bytes into normalized plain text.
//
// Dispatch is driven by the declared filename extension only; the bytes are
// never sniffed against magic numbers, so a mislabeled file is parsed as
// whatever its name claims. This mirrors the upload contract where the
// client-supplied filename is trusted input.
type ContentExtractor interface {
	Extract(data []byte, filename string) (*models.ExtractedContent, error)
}

type contentExtractor struct {
	maxContentChars int
}

func NewContentExtractor(maxContentChars int) ContentExtractor {
	if maxContentChars <= 0 {
		maxContentChars = 128000
	}
	return &contentExtractor{maxContentChars: maxContentChars}
}

func (e *contentExtractor) Extract(data []byte, filename string) (*models.ExtractedContent, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	var text string
	var pages int
	var err error

	switch ext {
	case ".pdf":
		text, pages, err = extractPDF(data)
	case ".docx":
		text, err = extractDOCX(data)
	case ".txt", ".md":
		text = decodeText(data)
	default:
		return nil, apperr.UnsupportedFormat(strings.TrimPrefix(ext, "."))
	}

	if err != nil {
		return nil, apperr.CorruptDocument(err)
	}

	text = normalizeText(text)
	text, truncated := capLength(text, e.maxContentChars)

	return &models.ExtractedContent{
		Text:      text,
		Truncated: truncated,
		Pages:     pages,
	}, nil
}

// extractPDF pulls plain text page by page. Pages with no extractable text
// (scanned images, font tables the reader cannot decode) are skipped rather
// than failing the document.
func extractPDF(data []byte) (string, int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("failed to open PDF: %w", err)
	}

	var textBuilder strings.Builder
	totalPage := reader.NumPage()

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		textBuilder.WriteString(fmt.Sprintf("--- Page %d ---\n", pageIndex))
		textBuilder.WriteString(text)
		textBuilder.WriteString("\n\n")
	}

	return textBuilder.String(), totalPage, nil
}

// extractDOCX reads word/document.xml from the ZIP container and walks its
// tokens in stream order, so a table sitting between two paragraphs keeps its
// place in the output. Each w:p, whether in the body or inside a table cell,
// becomes one line. Embedded objects carry no w:t elements and fall away on
// their own.
func extractDOCX(data []byte) (string, error) {
	zipReader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to read DOCX as ZIP: %w", err)
	}

	var documentFile *zip.File
	for _, file := range zipReader.File {
		if file.Name == "word/document.xml" {
			documentFile = file
			break
		}
	}
	if documentFile == nil {
		return "", fmt.Errorf("word/document.xml not found in DOCX")
	}

	xmlFile, err := documentFile.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open document.xml: %w", err)
	}
	defer xmlFile.Close()

	decoder := xml.NewDecoder(xmlFile)
	var textBuilder strings.Builder
	var paragraph strings.Builder
	inText := false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse document.xml: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inText = true
			case "tab":
				paragraph.WriteByte('\t')
			case "br":
				paragraph.WriteByte('\n')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				textBuilder.WriteString(paragraph.String())
				textBuilder.WriteByte('\n')
				paragraph.Reset()
			}
		case xml.CharData:
			if inText {
				paragraph.Write(el)
			}
		}
	}

	return textBuilder.String(), nil
}

// decodeText decodes txt/md bytes with a fallback cascade: BOM-declared
// UTF-16, valid UTF-8, Windows-1252, then raw Latin-1. Every byte sequence
// decodes under one of these, so text input never fails on encoding alone.
func decodeText(data []byte) string {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return string(data[3:])
	}

	if len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE {
		decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		if decoded, _, err := transform.Bytes(decoder, data); err == nil {
			return string(decoded)
		}
	}

	if len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF {
		decoder := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		if decoded, _, err := transform.Bytes(decoder, data); err == nil {
			return string(decoded)
		}
	}

	if utf8.Valid(data) {
		return string(data)
	}

	decoder := charmap.Windows1252.NewDecoder()
	if decoded, _, err := transform.Bytes(decoder, data); err == nil {
		return string(decoded)
	}

	decoder = charmap.ISO8859_1.NewDecoder()
	if decoded, _, err := transform.Bytes(decoder, data); err == nil {
		return string(decoded)
	}

	return string(data)
}

// normalizeText collapses whitespace and strips control characters: CRLF
// becomes LF, each line is trimmed, runs of blank lines collapse to one
// paragraph break, and non-printable runes (except tab) are dropped.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7F {
			return -1
		}
		return r
	}, text)

	lines := strings.Split(text, "\n")
	var cleanedLines []string
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(collapseSpaces(line))
		if line == "" {
			blank = true
			continue
		}
		if blank && len(cleanedLines) > 0 {
			cleanedLines = append(cleanedLines, "")
		}
		blank = false
		cleanedLines = append(cleanedLines, line)
	}

	return strings.Join(cleanedLines, "\n")
}

func collapseSpaces(line string) string {
	var b strings.Builder
	space := false
	for _, r := range line {
		if r == ' ' || r == '\t' {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// capLength truncates text to max runes. Oversized input is cut, not
// rejected; the flag lets downstream stages record the truncation.
func capLength(text string, max int) (string, bool) {
	runes := []rune(text)
	if len(runes) <= max {
		return text, false
	}
	return string(runes[:max]), true
}
