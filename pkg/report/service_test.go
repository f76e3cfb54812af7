package report

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/salas/salas/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

var clock = &utils.MockClock{FixedNow: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}

type stubRenderer struct {
	rendered []CoverData
	err      error
}

func (s *stubRenderer) Render(ctx context.Context, templatePath, outputPath string, data CoverData) error {
	s.rendered = append(s.rendered, data)
	return s.err
}

type stubConverter struct{}

func (stubConverter) ToPDF(ctx context.Context, inputPath, outputDir string) (string, error) {
	return filepath.Join(outputDir, "cover.pdf"), nil
}

type stubMerger struct {
	merges [][]string
}

func (s *stubMerger) Merge(ctx context.Context, inputPaths []string, outputPath string) error {
	s.merges = append(s.merges, inputPaths)
	return nil
}

type stubStamper struct {
	header string
	footer []string
}

func (s *stubStamper) Stamp(ctx context.Context, inputPath, outputPath, header string, footer []string) error {
	s.header = header
	s.footer = footer
	return nil
}

type stubCounter struct {
	pages map[string]int
}

func (s stubCounter) Count(ctx context.Context, path string) (int, error) {
	return s.pages[filepath.Base(path)], nil
}

func validRequest() GenerateRequest {
	return GenerateRequest{
		Student:     "Laura Pérez",
		Code:        "2021-0457",
		Date:        time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Stakeholder: "Decanatura",
		PDFPaths:    []string{"/tmp/work/a.pdf", "/tmp/work/b.pdf"},
		WorkDir:     "/tmp/work",
	}
}

func newService(renderer *stubRenderer, merger *stubMerger, stamper *stubStamper, counter stubCounter) *ServiceImpl {
	return NewService(renderer, stubConverter{}, merger, stamper, counter,
		"/templates/cover.docx", []string{"Facultad de Ingeniería", "Informe de práctica"}, clock)
}

func TestServiceImpl_Generate(t *testing.T) {
	t.Run("should build the dossier with cover, stamped body and counts", func(t *testing.T) {
		// given two documents of 3 and 4 pages and a single page cover
		renderer := &stubRenderer{}
		merger := &stubMerger{}
		stamper := &stubStamper{}
		counter := stubCounter{pages: map[string]int{"a.pdf": 3, "b.pdf": 4, "cover.pdf": 1}}
		service := newService(renderer, merger, stamper, counter)

		// when
		output, err := service.Generate(ctx, validRequest())

		// then
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/tmp/work", "report.pdf"), output)

		// cover is rendered twice, the second time with the full page count
		require.Len(t, renderer.rendered, 2)
		final := renderer.rendered[1]
		assert.Equal(t, 7, final.Pages)
		assert.Equal(t, 8, final.TotalPages)
		assert.Equal(t, 2, final.DocumentCount)
		assert.Equal(t, "02 de junio de 2025", final.Date)
		assert.Equal(t, "15 de junio de 2025", final.CurrentDate)

		// body pages are numbered, the cover goes in front
		assert.Equal(t, "Página %p de 7", stamper.header)
		assert.Equal(t, []string{"Facultad de Ingeniería", "Informe de práctica"}, stamper.footer)
		require.Len(t, merger.merges, 2)
		assert.Equal(t, validRequest().PDFPaths, merger.merges[0])
		assert.Equal(t, "cover.pdf", filepath.Base(merger.merges[1][0]))
	})

	t.Run("should reject a request without files", func(t *testing.T) {
		service := newService(&stubRenderer{}, &stubMerger{}, &stubStamper{}, stubCounter{})

		request := validRequest()
		request.PDFPaths = nil

		// when
		_, err := service.Generate(ctx, request)

		// then
		assert.Error(t, err)
	})

	t.Run("should reject a request with missing fields", func(t *testing.T) {
		service := newService(&stubRenderer{}, &stubMerger{}, &stubStamper{}, stubCounter{})

		request := validRequest()
		request.Student = ""
		request.Stakeholder = "  "

		// when
		_, err := service.Generate(ctx, request)

		// then
		assert.Error(t, err)
	})

	t.Run("should surface a missing template", func(t *testing.T) {
		renderer := &stubRenderer{err: ErrTemplateNotFound}
		service := newService(renderer, &stubMerger{}, &stubStamper{}, stubCounter{pages: map[string]int{"a.pdf": 1, "b.pdf": 1}})

		// when
		_, err := service.Generate(ctx, validRequest())

		// then
		assert.ErrorIs(t, err, ErrTemplateNotFound)
	})
}

func TestFormatSpanishDate(t *testing.T) {
	tests := []struct {
		date time.Time
		want string
	}{
		{time.Date(2006, 1, 2, 0, 0, 0, 0, time.UTC), "02 de enero de 2006"},
		{time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC), "30 de septiembre de 2025"},
		{time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), "01 de diciembre de 2024"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSpanishDate(tt.date))
		})
	}
}
