package report

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/salas/salas/internal/utils"
	"github.com/salas/salas/internal/validation"
	log "github.com/sirupsen/logrus"
)

type GenerateRequest struct {
	Student     string
	Code        string
	Date        time.Time
	Stakeholder string
	// PDFPaths are the uploaded documents, already saved under WorkDir.
	PDFPaths []string
	// WorkDir is a per-request scratch directory owned by the caller.
	WorkDir string
}

type Service interface {
	Generate(ctx context.Context, request GenerateRequest) (string, error)
}

type ServiceImpl struct {
	renderer     TemplateRenderer
	converter    PDFConverter
	merger       PDFMerger
	stamper      PDFStamper
	counter      PageCounter
	templatePath string
	footer       []string
	clock        utils.Clock
}

func NewService(
	renderer TemplateRenderer,
	converter PDFConverter,
	merger PDFMerger,
	stamper PDFStamper,
	counter PageCounter,
	templatePath string,
	footer []string,
	clock utils.Clock,
) *ServiceImpl {
	return &ServiceImpl{
		renderer:     renderer,
		converter:    converter,
		merger:       merger,
		stamper:      stamper,
		counter:      counter,
		templatePath: templatePath,
		footer:       footer,
		clock:        clock,
	}
}

func (r GenerateRequest) validate() *validation.Result {
	result := &validation.Result{}
	if strings.TrimSpace(r.Student) == "" {
		result.Add("student", "student is required")
	}
	if strings.TrimSpace(r.Code) == "" {
		result.Add("code", "code is required")
	}
	if r.Date.IsZero() {
		result.Add("date", "date is required")
	}
	if strings.TrimSpace(r.Stakeholder) == "" {
		result.Add("stakeholder", "stakeholder is required")
	}
	if len(r.PDFPaths) == 0 {
		result.Add("pdfFiles", "at least one PDF file is required")
	}
	return result
}

// Generate builds the dossier: a rendered cover followed by the uploaded
// documents, stamped with running page numbers and the fixed footer. It
// returns the path of the merged PDF inside the request's work directory.
func (s *ServiceImpl) Generate(ctx context.Context, request GenerateRequest) (string, error) {
	if err := request.validate().AsError(); err != nil {
		return "", err
	}

	bodyPages := 0
	for _, path := range request.PDFPaths {
		pages, err := s.counter.Count(ctx, path)
		if err != nil {
			return "", err
		}
		bodyPages += pages
	}

	data := CoverData{
		Student:       request.Student,
		Code:          request.Code,
		Date:          FormatSpanishDate(request.Date),
		Stakeholder:   request.Stakeholder,
		Pages:         bodyPages,
		TotalPages:    bodyPages,
		DocumentCount: len(request.PDFPaths),
		CurrentDate:   FormatSpanishDate(s.clock.Now()),
	}

	// First pass measures the cover so TotalPages can include it.
	coverPdf, err := s.renderCover(ctx, request.WorkDir, data)
	if err != nil {
		return "", err
	}
	coverPages, err := s.counter.Count(ctx, coverPdf)
	if err != nil {
		return "", err
	}
	if coverPages > 0 {
		data.TotalPages = bodyPages + coverPages
		coverPdf, err = s.renderCover(ctx, request.WorkDir, data)
		if err != nil {
			return "", err
		}
	}

	body := filepath.Join(request.WorkDir, "body.pdf")
	if err := s.merger.Merge(ctx, request.PDFPaths, body); err != nil {
		return "", err
	}

	stamped := filepath.Join(request.WorkDir, "body-stamped.pdf")
	header := fmt.Sprintf("Página %%p de %d", bodyPages)
	if err := s.stamper.Stamp(ctx, body, stamped, header, s.footer); err != nil {
		return "", err
	}

	merged := filepath.Join(request.WorkDir, "report.pdf")
	if err := s.merger.Merge(ctx, []string{coverPdf, stamped}, merged); err != nil {
		return "", err
	}

	log.Infof("Report generated for %s: %d documents, %d pages", request.Code, data.DocumentCount, data.TotalPages)
	return merged, nil
}

func (s *ServiceImpl) renderCover(ctx context.Context, workDir string, data CoverData) (string, error) {
	rendered := filepath.Join(workDir, "cover.docx")
	if err := s.renderer.Render(ctx, s.templatePath, rendered, data); err != nil {
		return "", err
	}
	return s.converter.ToPDF(ctx, rendered, workDir)
}
