package converter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/fileconv/internal/format"
	"github.com/raphaelgruber/fileconv/internal/locator"
)

// Request asks for one input file to be converted to Target.
type Request struct {
	InputPath string
	Target    format.Format
}

// Job is one dispatched request and the tool process working on it.
// Jobs are only touched from the converter's event loop.
type Job struct {
	ID         string
	InputPath  string
	OutputPath string
	Source     format.Format
	Target     format.Format
	Route      format.Route
	StartedAt  time.Time

	process    Process
	cancelled  bool
	profileDir string
}

func newJob(req Request, outputDir string) *Job {
	src := format.Detect(req.InputPath)
	return &Job{
		ID:         uuid.New().String()[:8], // Short ID for log lines
		InputPath:  req.InputPath,
		OutputPath: format.OutputPath(req.InputPath, outputDir, req.Target),
		Source:     src,
		Target:     req.Target,
		Route:      format.RouteFor(src, req.Target),
		StartedAt:  time.Now(),
	}
}

// tool returns the external tool the job's route runs.
func (j *Job) tool() locator.Tool {
	if j.Route == format.RouteImage {
		return locator.ImageMagick
	}
	return locator.Office
}

// toolName is the human name used in error messages.
func toolName(t locator.Tool) string {
	if t == locator.ImageMagick {
		return "ImageMagick"
	}
	return "LibreOffice"
}

// pdfImportFilter picks the office import filter for a PDF source: Writer
// for text documents, Draw for presentations.
func pdfImportFilter(target format.Format) string {
	if target == format.PPTX {
		return "draw_pdf_import"
	}
	return "writer_pdf_import"
}

// args builds the command line for the job's route.
func (j *Job) args() []string {
	switch j.Route {
	case format.RouteImage:
		return []string{j.InputPath, j.OutputPath}
	case format.RoutePDFToDocument, format.RouteDocumentToPDF:
		var args []string
		if j.profileDir != "" {
			args = append(args, "-env:UserInstallation="+fileURL(j.profileDir))
		}
		args = append(args, "--headless")
		if j.Route == format.RoutePDFToDocument {
			args = append(args, "--infilter="+pdfImportFilter(j.Target))
		}
		return append(args,
			"--convert-to", j.Target.Extension(),
			"--outdir", filepath.Dir(j.OutputPath),
			j.InputPath,
		)
	}
	return nil
}

// prepareProfile creates a private office profile directory for the job so
// concurrent soffice instances do not contend for one user installation.
func (j *Job) prepareProfile() error {
	dir := filepath.Join(os.TempDir(), "fileconv-profile-"+j.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create office profile directory: %w", err)
	}
	j.profileDir = dir
	return nil
}

func (j *Job) removeProfile() {
	if j.profileDir != "" {
		_ = os.RemoveAll(j.profileDir)
	}
}

func fileURL(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return "file://" + p
}
