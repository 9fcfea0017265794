// Package format describes the file formats fileconv understands and which
// conversions between them are supported.
package format

import (
	"path/filepath"
	"strings"
)

// Format identifies a document or image file format.
type Format int

const (
	Unknown Format = iota
	DOCX
	PPTX
	PDF
	JPEG
	PNG
	WebP
	HEIC
)

// Route names the external tool invocation a conversion needs.
type Route int

const (
	RouteUnsupported Route = iota
	RouteDocumentToPDF
	RoutePDFToDocument
	RouteImage
)

var names = map[Format]string{
	DOCX: "DOCX",
	PPTX: "PPTX",
	PDF:  "PDF",
	JPEG: "JPG",
	PNG:  "PNG",
	WebP: "WEBP",
	HEIC: "HEIC",
}

var extensions = map[Format]string{
	DOCX: "docx",
	PPTX: "pptx",
	PDF:  "pdf",
	JPEG: "jpg",
	PNG:  "png",
	WebP: "webp",
	HEIC: "heic",
}

// aliases maps lowercased extensions and user-facing names to formats.
var aliases = map[string]Format{
	"docx": DOCX,
	"pptx": PPTX,
	"pdf":  PDF,
	"jpg":  JPEG,
	"jpeg": JPEG,
	"png":  PNG,
	"webp": WebP,
	"heic": HEIC,
	"heif": HEIC,
}

// All returns every known format in a stable order, excluding Unknown.
func All() []Format {
	return []Format{DOCX, PPTX, PDF, JPEG, PNG, WebP, HEIC}
}

// String returns the display name of the format.
func (f Format) String() string {
	if n, ok := names[f]; ok {
		return n
	}
	return "Unknown"
}

// Extension returns the canonical file extension without a leading dot.
// Unknown has no extension.
func (f Format) Extension() string {
	return extensions[f]
}

// IsImage reports whether f is one of the raster image formats.
func (f Format) IsImage() bool {
	switch f {
	case JPEG, PNG, WebP, HEIC:
		return true
	}
	return false
}

// IsDocument reports whether f is an office document format.
func (f Format) IsDocument() bool {
	return f == DOCX || f == PPTX
}

// Detect derives the format from the file's extension. Content is never inspected.
func Detect(path string) Format {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if f, ok := aliases[ext]; ok {
		return f
	}
	return Unknown
}

// Parse maps a user-supplied format name ("pdf", "JPEG", ".png") to a Format.
func Parse(name string) Format {
	key := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), ".")
	if f, ok := aliases[key]; ok {
		return f
	}
	return Unknown
}

// CompatibleTargets returns the formats src may be converted to.
func CompatibleTargets(src Format) []Format {
	switch {
	case src.IsDocument():
		return []Format{PDF}
	case src == PDF:
		return []Format{DOCX, PPTX}
	case src.IsImage():
		targets := make([]Format, 0, 3)
		for _, t := range []Format{JPEG, PNG, WebP} {
			if t != src {
				targets = append(targets, t)
			}
		}
		return targets
	}
	return nil
}

// IsCompatible reports whether converting src to dst is supported.
func IsCompatible(src, dst Format) bool {
	return RouteFor(src, dst) != RouteUnsupported
}

// RouteFor picks the tool invocation for a conversion. HEIC is only ever a
// source, and converting a format to itself is never a route.
func RouteFor(src, dst Format) Route {
	if src == dst || src == Unknown || dst == Unknown {
		return RouteUnsupported
	}
	switch {
	case src.IsDocument() && dst == PDF:
		return RouteDocumentToPDF
	case src == PDF && dst.IsDocument():
		return RoutePDFToDocument
	case src.IsImage() && dst.IsImage() && dst != HEIC:
		return RouteImage
	}
	return RouteUnsupported
}

// OutputPath builds the path a conversion of input to dst should produce.
// When dir is empty the input's own directory is used.
func OutputPath(input, dir string, dst Format) string {
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, BaseName(input)+"."+dst.Extension())
}

// BaseName returns the file name of path without its extension, which is the
// stem office tools use when naming their outputs.
func BaseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
