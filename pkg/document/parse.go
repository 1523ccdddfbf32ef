// Package document implements the document collaborators around the pipeline:
// plain-text extraction from uploaded resumes, job-posting scraping, and
// output rendering.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"

	"resume-tailor/pkg/errs"
)

type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
)

// KnownInputFormat reports whether f is accepted on submission.
func KnownInputFormat(f Format) bool {
	switch f {
	case FormatText, FormatMarkdown, FormatJSON, FormatHTML, FormatPDF, FormatDOCX:
		return true
	}
	return false
}

// Parse extracts plain text from a document. A document that yields no text
// is treated as corrupt.
func Parse(data []byte, format Format) (string, error) {
	var (
		text string
		err  error
	)
	switch format {
	case FormatText, FormatMarkdown, "":
		text = string(data)
	case FormatJSON:
		text, err = parseJSON(data)
	case FormatHTML:
		text, err = parseHTML(data)
	case FormatPDF:
		text, err = parsePDF(data)
	case FormatDOCX:
		return "", errs.UnsupportedFormat(string(FormatDOCX))
	default:
		return "", errs.UnsupportedFormat(string(format))
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errs.CorruptDocument("document contains no extractable text")
	}
	return text, nil
}

// parseJSON flattens every string value of a JSON resume into one text block,
// preserving key names as section labels.
func parseJSON(data []byte) (string, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", errs.Parsing("invalid json resume", err)
	}
	var b strings.Builder
	flattenJSON(&b, "", v)
	return b.String(), nil
}

func flattenJSON(b *strings.Builder, key string, v any) {
	switch t := v.(type) {
	case string:
		if key != "" {
			fmt.Fprintf(b, "%s: %s\n", key, t)
		} else {
			b.WriteString(t + "\n")
		}
	case float64:
		fmt.Fprintf(b, "%s: %v\n", key, t)
	case map[string]any:
		for k, item := range t {
			flattenJSON(b, k, item)
		}
	case []any:
		for _, item := range t {
			flattenJSON(b, key, item)
		}
	}
}

func parseHTML(data []byte) (string, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", errs.Parsing("invalid html document", err)
	}
	var b strings.Builder
	collectText(&b, root)
	return b.String(), nil
}

// collectText walks the DOM accumulating text nodes, skipping script and
// style subtrees.
func collectText(b *strings.Builder, n *html.Node) {
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			b.WriteString(t + "\n")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
}

func parsePDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errs.Parsing("invalid pdf document", err)
	}
	rc, err := r.GetPlainText()
	if err != nil {
		return "", errs.Parsing("extract pdf text", err)
	}
	var b bytes.Buffer
	if _, err := b.ReadFrom(rc); err != nil {
		return "", errs.Parsing("read pdf text", err)
	}
	return b.String(), nil
}
