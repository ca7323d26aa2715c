// Package export renders documents to PDF and DOCX.
package export

import (
	"errors"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// ParseFormat validates a format query parameter.
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case FormatPDF, FormatDOCX:
		return Format(raw), nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Request contains parameters for an export operation
type Request struct {
	DocumentID string
	Format     Format
}

// Result contains the export output. ArtifactURL is set when the artifact
// store is configured and the upload succeeded.
type Result struct {
	Data        []byte
	Filename    string
	MimeType    string
	ArtifactURL string
}

var (
	// ErrUnsupportedFormat indicates the requested format is not pdf or docx.
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
