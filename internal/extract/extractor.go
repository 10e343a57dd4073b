// Package extract turns uploaded file bytes into raw text.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const (
	// MimePlainText, MimePDF and MimeDocx are the supported upload types.
	MimePlainText = "text/plain"
	MimePDF       = "application/pdf"
	MimeDocx      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	minTextLength     = 10
	minPrintableRatio = 0.8
)

// Extractor converts supported document formats to plain text.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Supported reports whether the MIME type can be extracted.
func (e *Extractor) Supported(mimeType string) bool {
	switch normalizeMime(mimeType) {
	case MimePlainText, MimePDF, MimeDocx:
		return true
	}
	return false
}

// ExtractText converts file bytes into validated raw text. Output shorter
// than 10 characters or with under 80% printable characters is rejected as
// a garbage extraction.
func (e *Extractor) ExtractText(data []byte, mimeType string) (string, error) {
	var text string
	var err error
	switch normalizeMime(mimeType) {
	case MimePlainText:
		text = string(data)
	case MimePDF:
		text, err = extractPDF(data)
	case MimeDocx:
		text, err = extractDocx(data)
	default:
		return "", fmt.Errorf("unsupported mime type %q", mimeType)
	}
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if err := validateText(text); err != nil {
		return "", err
	}
	return text, nil
}

func normalizeMime(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if strings.HasPrefix(mimeType, "text/") {
		return MimePlainText
	}
	return mimeType
}

func validateText(text string) error {
	if !utf8.ValidString(text) {
		return fmt.Errorf("extracted text is not valid utf-8")
	}
	runes := []rune(text)
	if len(runes) < minTextLength {
		return fmt.Errorf("extracted text too short: %d chars", len(runes))
	}
	printable := 0
	for _, r := range runes {
		if unicode.IsPrint(r) || r == '\n' || r == '\t' || r == '\r' {
			printable++
		}
	}
	ratio := float64(printable) / float64(len(runes))
	if ratio < minPrintableRatio {
		return fmt.Errorf("extracted text mostly unprintable: %.0f%% printable", ratio*100)
	}
	return nil
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// docx files are zip archives; the body lives in word/document.xml. Text
// runs are <w:t> elements, paragraphs are <w:p>.
func extractDocx(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}

	var docXML io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docXML, err = f.Open()
			if err != nil {
				return "", fmt.Errorf("open docx body: %w", err)
			}
			break
		}
	}
	if docXML == nil {
		return "", fmt.Errorf("docx has no word/document.xml")
	}
	defer docXML.Close() //nolint:errcheck

	var sb strings.Builder
	decoder := xml.NewDecoder(docXML)
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx body: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}
