package document

import (
	"bytes"
	"context"
	"fmt"

	"github.com/yuin/goldmark"

	"resume-tailor/pkg/errs"
)

const (
	MIMEText     = "text/plain"
	MIMEMarkdown = "text/markdown"
	MIMEHTML     = "text/html"
	MIMEPDF      = "application/pdf"
)

// Renderer converts an HTML page into PDF bytes.
type Renderer interface {
	RenderHTMLToPDF(ctx context.Context, page string) ([]byte, error)
}

// Formatter converts the generated resume text (markdown) into the requested
// output representation.
type Formatter struct {
	renderer Renderer
}

func NewFormatter(renderer Renderer) *Formatter {
	return &Formatter{renderer: renderer}
}

func (f *Formatter) Format(ctx context.Context, text string, target Format) ([]byte, string, error) {
	switch target {
	case FormatText, "":
		return []byte(text), MIMEText, nil
	case FormatMarkdown:
		return []byte(text), MIMEMarkdown, nil
	case FormatHTML:
		page, err := renderHTML(text)
		if err != nil {
			return nil, "", err
		}
		return []byte(page), MIMEHTML, nil
	case FormatPDF:
		page, err := renderHTML(text)
		if err != nil {
			return nil, "", err
		}
		if f.renderer == nil {
			return nil, "", errs.UnsupportedFormat("pdf output requires a renderer")
		}
		pdf, err := f.renderer.RenderHTMLToPDF(ctx, page)
		if err != nil {
			return nil, "", fmt.Errorf("render pdf: %w", err)
		}
		return pdf, MIMEPDF, nil
	default:
		return nil, "", errs.UnsupportedFormat(string(target))
	}
}

func renderHTML(markdown string) (string, error) {
	var body bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &body); err != nil {
		return "", errs.Parsing("convert markdown", err)
	}
	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\">\n")
	page.WriteString("<style>body{font-family:Georgia,serif;max-width:52rem;margin:2rem auto;line-height:1.4}</style>\n")
	page.WriteString("</head><body>\n")
	page.Write(body.Bytes())
	page.WriteString("\n</body></html>")
	return page.String(), nil
}
