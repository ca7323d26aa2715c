package export

import (
	"context"
	"fmt"
	"html/template"
	"time"

	"inkwell/api/internal/logger"
	"inkwell/api/internal/richtext"
	"inkwell/api/internal/store"
)

// DataStore defines the data access the export service needs.
type DataStore interface {
	GetDocument(ctx context.Context, documentID string) (store.Document, error)
}

// Service renders a document to the requested format and, when an artifact
// store is configured, keeps a copy in object storage.
type Service struct {
	store     DataStore
	artifacts *ArtifactStore
}

func NewService(st DataStore, artifacts *ArtifactStore) *Service {
	return &Service{store: st, artifacts: artifacts}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	doc, err := s.store.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	root, err := richtext.Parse(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("parse document content: %w", err)
	}

	html, err := RenderDocumentHTML(TemplateData{
		Title:       doc.Title,
		ContentHTML: template.HTML(RenderHTML(root)),
		Author:      doc.AuthorName,
		UpdatedAt:   doc.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	var result *Result
	switch req.Format {
	case FormatPDF:
		result, err = exportPDF(ctx, html, doc.Title)
	case FormatDOCX:
		result, err = exportDOCX(ctx, html, doc.Title)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}

	s.storeArtifact(ctx, req, result)
	return result, nil
}

// storeArtifact uploads the export best-effort. A failed upload never fails
// the download itself.
func (s *Service) storeArtifact(ctx context.Context, req Request, result *Result) {
	if s.artifacts == nil {
		return
	}

	objectName := fmt.Sprintf("%s/%d-%s", req.DocumentID, time.Now().Unix(), result.Filename)
	url, err := s.artifacts.Put(ctx, objectName, result.Data, result.MimeType)
	if err != nil {
		logger.Sugar.Warnw("store export artifact", "documentId", req.DocumentID, "error", err)
		return
	}
	result.ArtifactURL = url
}
