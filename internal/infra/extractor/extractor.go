package extractor

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// Extractor implements documents.Extractor with format-specific routines.
// Unrecognized types fall back to a best-effort text decode.
type Extractor struct{}

func New() *Extractor { return &Extractor{} }

func (e *Extractor) Extract(filename, contentType string, data []byte) (string, error) {
	switch {
	case contentType == "application/pdf" || strings.EqualFold(filepath.Ext(filename), ".pdf"):
		return extractPDF(data)
	case contentType == "text/markdown" || strings.EqualFold(filepath.Ext(filename), ".md"):
		return extractMarkdown(data)
	default:
		return decodeText(data), nil
	}
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract pdf page %d: %w", i, err)
		}
		b.WriteString(pageText)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// extractMarkdown parses the markdown AST and keeps only text content,
// with block boundaries turned into newlines.
func extractMarkdown(data []byte) (string, error) {
	parser := goldmark.New().Parser()
	root := parser.Parse(gmtext.NewReader(data))

	var b strings.Builder
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(data))
			if node.HardLineBreak() || node.SoftLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.Paragraph, *ast.Heading, *ast.ListItem, *ast.Blockquote:
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(data))
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", fmt.Errorf("walk markdown: %w", err)
	}
	return b.String(), nil
}

// decodeText strips NUL and control noise so binary-ish uploads still yield
// something usable instead of failing the pipeline
func decodeText(data []byte) string {
	s := strings.ToValidUTF8(string(data), "")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 32 || r == '\t' || r == '\n' || r == '\r' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
