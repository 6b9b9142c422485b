package rag

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// supportedExtensions lists the file types Parse understands, in lowercase.
var supportedExtensions = []string{".pdf", ".docx", ".xlsx", ".txt", ".md"}

// SupportedFile reports whether Parse can handle the given filename.
func SupportedFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, s := range supportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Parse extracts plain text from a document, dispatching on the
// filename's extension (case-insensitive). Unknown extensions fail with
// ErrUnsupportedFormat; documents with no extractable text fail with
// ErrEmptyDocument.
func Parse(filename string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return parsePDF(filename, data)
	case ".docx":
		return parseDOCX(filename, data)
	case ".xlsx":
		return parseXLSX(filename, data)
	case ".txt", ".md":
		return string(bytes.ToValidUTF8(data, []byte("�"))), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
}

// parsePDF concatenates the text of every page. Pages that fail
// extraction contribute nothing. The pdf library panics on some
// malformed files, so the whole walk runs under a recover.
func parsePDF(filename string, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("failed to parse PDF %s: %v", filename, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse PDF %s: %w", filename, err)
	}

	var pages []string
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(pageText) != "" {
			pages = append(pages, pageText)
		}
	}

	text = strings.Join(pages, "\n\n")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyDocument, filename)
	}
	return text, nil
}

func parseDOCX(filename string, data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse DOCX %s: %w", filename, err)
	}
	defer doc.Close()

	text := docxParagraphText(doc.Editable().GetContent())
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyDocument, filename)
	}
	return text, nil
}

// docxParagraphText extracts the visible text from a word/document.xml
// body: w:t runs concatenated, paragraphs separated by newlines, tabs
// and breaks preserved.
func docxParagraphText(content string) string {
	decoder := xml.NewDecoder(strings.NewReader(content))

	var b strings.Builder
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func parseXLSX(filename string, data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse XLSX %s: %w", filename, err)
	}
	defer f.Close()

	var sheetsText []string
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}

		var lines []string
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) == 0 {
			continue
		}
		sheetsText = append(sheetsText, fmt.Sprintf("Sheet: %s\n%s", sheetName, strings.Join(lines, "\n")))
	}

	text := strings.Join(sheetsText, "\n\n")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyDocument, filename)
	}
	return text, nil
}
