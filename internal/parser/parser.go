package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pdf-rag/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const defaultPageNumber = 1

// SupportedExtensions lists the file extensions the loader can ingest.
var SupportedExtensions = []string{".pdf", ".docx", ".txt", ".md", ".xlsx", ".ods"}

// LoadDocument extracts the ordered pages of one document. Any parse
// failure is reported as models.ErrUnreadableDocument so the caller can
// skip the file and continue.
func LoadDocument(filePath string) (pages []models.Page, err error) {
	// ledongthuc/pdf panics on some malformed files; contain that here so
	// one corrupt document cannot abort a whole directory scan.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %s: %v", models.ErrUnreadableDocument, filePath, r)
		}
	}()

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		pages, err = parsePDF(filePath)
	case ".docx":
		pages, err = parseDOCX(filePath)
	case ".txt":
		pages, err = parseText(filePath)
	case ".md":
		pages, err = parseMarkdown(filePath)
	case ".xlsx":
		pages, err = parseXLSX(filePath)
	case ".ods":
		pages, err = parseODS(filePath)
	default:
		return nil, fmt.Errorf("%w: unsupported file format %s", models.ErrUnreadableDocument, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrUnreadableDocument, filePath, err)
	}
	return pages, nil
}

func parsePDF(filePath string) ([]models.Page, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	var pages []models.Page
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, err
		}
		pages = append(pages, models.Page{
			Text:   pageText,
			Source: filePath,
			Page:   i,
		})
	}
	return pages, nil
}

func parseDOCX(filePath string) ([]models.Page, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	doc := r.Editable()
	content := doc.GetContent()
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	// DOCX has no page boundaries; the whole body becomes one page.
	return []models.Page{{
		Text:   content,
		Source: filePath,
		Page:   defaultPageNumber,
	}}, nil
}

func parseText(filePath string) ([]models.Page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return []models.Page{{
		Text:   string(data),
		Source: filePath,
		Page:   defaultPageNumber,
	}}, nil
}

func parseMarkdown(filePath string) ([]models.Page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	plain, err := extractMarkdownText(data)
	if err != nil {
		return nil, err
	}
	return []models.Page{{
		Text:   plain,
		Source: filePath,
		Page:   defaultPageNumber,
	}}, nil
}

func parseXLSX(filePath string) ([]models.Page, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	var pages []models.Page
	for sheetNum, sheet := range f.Sheets {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				sb.WriteString(cell.String() + "\t")
			}
			sb.WriteString("\n")
		}
		// sheets stand in for pages, 1-based
		pages = append(pages, models.Page{
			Text:   sb.String(),
			Source: filePath,
			Page:   sheetNum + 1,
		})
	}
	return pages, nil
}

func parseODS(filePath string) ([]models.Page, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []models.Page
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			for _, cell := range row {
				sb.WriteString(cell + "\t")
			}
			sb.WriteString("\n")
		}
		pages = append(pages, models.Page{
			Text:   sb.String(),
			Source: filePath,
			Page:   sheetNum + 1,
		})
	}
	return pages, nil
}

// extractMarkdownText walks the goldmark AST and collects the raw text
// segments, dropping markup.
func extractMarkdownText(source []byte) (string, error) {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(source))

	var sb strings.Builder
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && sb.Len() > 0 {
				sb.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}
		if t, ok := n.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
			if t.HardLineBreak() || t.SoftLineBreak() {
				sb.WriteString("\n")
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}
