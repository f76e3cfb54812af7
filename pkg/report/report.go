package report

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrTemplateNotFound = errors.New("cover template not found")

// CoverData is the placeholder set available to the cover template.
type CoverData struct {
	Student       string
	Code          string
	Date          string
	Stakeholder   string
	Pages         int
	TotalPages    int
	DocumentCount int
	CurrentDate   string
}

// TemplateRenderer fills a DOCX template with cover data.
type TemplateRenderer interface {
	Render(ctx context.Context, templatePath, outputPath string, data CoverData) error
}

// PDFConverter turns a document into a PDF inside outputDir and returns
// the path of the produced file.
type PDFConverter interface {
	ToPDF(ctx context.Context, inputPath, outputDir string) (string, error)
}

// PDFMerger concatenates PDFs in order.
type PDFMerger interface {
	Merge(ctx context.Context, inputPaths []string, outputPath string) error
}

// PDFStamper writes a page-number header and a fixed footer on every page.
type PDFStamper interface {
	Stamp(ctx context.Context, inputPath, outputPath, header string, footer []string) error
}

// PageCounter reports how many pages a PDF has.
type PageCounter interface {
	Count(ctx context.Context, path string) (int, error)
}

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// FormatSpanishDate renders a date in the long Spanish form used on covers,
// for example "02 de enero de 2006".
func FormatSpanishDate(t time.Time) string {
	return fmt.Sprintf("%02d de %s de %d", t.Day(), spanishMonths[t.Month()-1], t.Year())
}
