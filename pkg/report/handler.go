package report

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/salas/salas/internal/rest"
	"github.com/salas/salas/internal/validation"
	log "github.com/sirupsen/logrus"
)

const maxUploadBytes = 64 << 20

type Handler struct {
	service Service
	devMode bool
}

func NewHandler(service Service, devMode bool) *Handler {
	return &Handler{service: service, devMode: devMode}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var result *validation.Result
	switch {
	case errors.As(err, &result):
		rest.ValidationFailed(w, result.Errors)
	case errors.Is(err, ErrTemplateNotFound):
		rest.Fail(w, http.StatusBadRequest, "cover template is not available")
	default:
		rest.Internal(w, err, h.devMode)
	}
}

func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	log.Debug("Generating report")

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		rest.Fail(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	var date time.Time
	if raw := r.FormValue("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			result := &validation.Result{}
			result.Addf("date", "invalid date %q, expected YYYY-MM-DD", raw)
			h.writeError(w, result)
			return
		}
		date = parsed
	}

	workDir, err := os.MkdirTemp("", "report-*")
	if err != nil {
		rest.Internal(w, err, h.devMode)
		return
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.Errorf("could not remove work dir %s: %v", workDir, err)
		}
	}()

	var pdfPaths []string
	if r.MultipartForm != nil {
		for i, header := range r.MultipartForm.File["pdfFiles"] {
			saved, err := saveUpload(header, workDir, fmt.Sprintf("upload-%03d.pdf", i))
			if err != nil {
				rest.Internal(w, err, h.devMode)
				return
			}
			pdfPaths = append(pdfPaths, saved)
		}
	}

	generated, err := h.service.Generate(r.Context(), GenerateRequest{
		Student:     r.FormValue("student"),
		Code:        r.FormValue("code"),
		Date:        date,
		Stakeholder: r.FormValue("stakeholder"),
		PDFPaths:    pdfPaths,
		WorkDir:     workDir,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	output, err := os.Open(generated)
	if err != nil {
		rest.Internal(w, err, h.devMode)
		return
	}
	defer output.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "reporte-"+r.FormValue("code")+".pdf"))
	if _, err := io.Copy(w, output); err != nil {
		log.Errorf("could not stream report: %v", err)
	}
}

func saveUpload(header *multipart.FileHeader, dir, name string) (string, error) {
	source, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("could not open upload: %w", err)
	}
	defer source.Close()

	path := filepath.Join(dir, name)
	target, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("could not save upload: %w", err)
	}
	defer target.Close()

	if _, err := io.Copy(target, source); err != nil {
		return "", fmt.Errorf("could not save upload: %w", err)
	}
	return path, nil
}
