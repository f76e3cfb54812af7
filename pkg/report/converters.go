package report

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	log "github.com/sirupsen/logrus"
)

// DocxRenderer substitutes {{.Field}} placeholders inside the
// word/document.xml entry of a DOCX template. Every other zip entry is
// copied through untouched.
type DocxRenderer struct{}

func (DocxRenderer) Render(ctx context.Context, templatePath, outputPath string, data CoverData) error {
	reader, err := zip.OpenReader(templatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrTemplateNotFound
		}
		return fmt.Errorf("could not open template: %w", err)
	}
	defer reader.Close()

	output, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("could not create rendered cover: %w", err)
	}
	defer output.Close()

	writer := zip.NewWriter(output)
	for _, entry := range reader.File {
		content, err := readZipEntry(entry)
		if err != nil {
			return err
		}
		if entry.Name == "word/document.xml" {
			content, err = substitute(content, data)
			if err != nil {
				return err
			}
		}
		target, err := writer.Create(entry.Name)
		if err != nil {
			return fmt.Errorf("could not write zip entry %s: %w", entry.Name, err)
		}
		if _, err := target.Write(content); err != nil {
			return fmt.Errorf("could not write zip entry %s: %w", entry.Name, err)
		}
	}
	return writer.Close()
}

func readZipEntry(entry *zip.File) ([]byte, error) {
	opened, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("could not open zip entry %s: %w", entry.Name, err)
	}
	defer opened.Close()
	content, err := io.ReadAll(opened)
	if err != nil {
		return nil, fmt.Errorf("could not read zip entry %s: %w", entry.Name, err)
	}
	return content, nil
}

func substitute(content []byte, data CoverData) ([]byte, error) {
	parsed, err := template.New("cover").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("could not parse cover template: %w", err)
	}
	var rendered bytes.Buffer
	if err := parsed.Execute(&rendered, data); err != nil {
		return nil, fmt.Errorf("could not render cover template: %w", err)
	}
	return rendered.Bytes(), nil
}

// SofficeConverter shells out to LibreOffice for DOCX to PDF conversion.
type SofficeConverter struct {
	Binary string
}

func (c SofficeConverter) ToPDF(ctx context.Context, inputPath, outputDir string) (string, error) {
	cmd := exec.CommandContext(ctx, c.Binary,
		"--headless", "--convert-to", "pdf", "--outdir", outputDir, inputPath)
	if output, err := cmd.CombinedOutput(); err != nil {
		log.Errorf("soffice failed: %s", output)
		return "", fmt.Errorf("could not convert %s to pdf: %w", filepath.Base(inputPath), err)
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	converted := filepath.Join(outputDir, base+".pdf")
	if _, err := os.Stat(converted); err != nil {
		return "", fmt.Errorf("soffice produced no output for %s: %w", filepath.Base(inputPath), err)
	}
	return converted, nil
}

// PdfcpuTool shells out to the pdfcpu CLI for merging, stamping and page
// counting.
type PdfcpuTool struct {
	Binary string
}

func (t PdfcpuTool) Merge(ctx context.Context, inputPaths []string, outputPath string) error {
	args := append([]string{"merge", outputPath}, inputPaths...)
	cmd := exec.CommandContext(ctx, t.Binary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		log.Errorf("pdfcpu merge failed: %s", output)
		return fmt.Errorf("could not merge pdfs: %w", err)
	}
	return nil
}

func (t PdfcpuTool) Stamp(ctx context.Context, inputPath, outputPath, header string, footer []string) error {
	headerArgs := []string{"stamp", "add", "-mode", "text", "--",
		header, "position:tc, offset:0 -10, scale:1 abs, fontsize:9",
		inputPath, outputPath}
	cmd := exec.CommandContext(ctx, t.Binary, headerArgs...)
	if output, err := cmd.CombinedOutput(); err != nil {
		log.Errorf("pdfcpu header stamp failed: %s", output)
		return fmt.Errorf("could not stamp header: %w", err)
	}

	footerArgs := []string{"stamp", "add", "-mode", "text", "--",
		strings.Join(footer, "\n"), "position:bc, offset:0 10, scale:1 abs, fontsize:8",
		outputPath, outputPath}
	cmd = exec.CommandContext(ctx, t.Binary, footerArgs...)
	if output, err := cmd.CombinedOutput(); err != nil {
		log.Errorf("pdfcpu footer stamp failed: %s", output)
		return fmt.Errorf("could not stamp footer: %w", err)
	}
	return nil
}

var pageCountPattern = regexp.MustCompile(`Page count:\s*(\d+)`)

func (t PdfcpuTool) Count(ctx context.Context, path string) (int, error) {
	cmd := exec.CommandContext(ctx, t.Binary, "info", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Errorf("pdfcpu info failed: %s", output)
		return 0, fmt.Errorf("could not inspect %s: %w", filepath.Base(path), err)
	}
	match := pageCountPattern.FindSubmatch(output)
	if match == nil {
		return 0, fmt.Errorf("no page count reported for %s", filepath.Base(path))
	}
	return strconv.Atoi(string(match[1]))
}
