package app

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"inkwell/api/internal/access"
	"inkwell/api/internal/export"
	"inkwell/api/internal/richtext"
	"inkwell/api/internal/store"
	"inkwell/api/internal/util"
)

type DocumentInput struct {
	Title      string          `json:"title"`
	Content    json.RawMessage `json:"content"`
	Visibility string          `json:"visibility"`
}

func (s *Service) CreateDocument(ctx context.Context, session Session, input DocumentInput) (map[string]any, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, validationError("title is required")
	}

	visibility := strings.TrimSpace(input.Visibility)
	if visibility == "" {
		visibility = store.VisibilityPrivate
	}
	if visibility != store.VisibilityPrivate && visibility != store.VisibilityPublic {
		return nil, validationError("visibility must be PRIVATE or PUBLIC")
	}

	content := input.Content
	if len(content) == 0 {
		content = richtext.EmptyDocument()
	}
	if _, err := richtext.Parse(content); err != nil {
		return nil, validationError("content must be a rich text document")
	}

	doc := store.Document{
		ID:         util.NewID("doc"),
		Title:      title,
		Content:    content,
		Visibility: visibility,
		AuthorID:   session.UserID,
	}
	if err := s.store.InsertDocument(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.store.InsertVersion(ctx, store.Version{
		ID:         util.NewID("ver"),
		DocumentID: doc.ID,
		Title:      title,
		Content:    content,
		AuthorID:   session.UserID,
	}); err != nil {
		return nil, err
	}

	created, err := s.store.GetDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	s.fanOutMentions(ctx, created, session)
	s.recordMirror(created, session)

	return documentPayload(created, access.RoleOwner, true), nil
}

func (s *Service) GetDocument(ctx context.Context, session Session, documentID string) (map[string]any, error) {
	role, doc, err := s.access.Resolve(ctx, documentID, session.UserID)
	if err != nil {
		return nil, err
	}
	if !role.CanRead() {
		return nil, notFound("Document not found")
	}
	return documentPayload(doc, role, true), nil
}

// UpdateDocument saves new content, records a version, and runs the
// post-save hooks (mention fan-out, archive mirror). Only the owner may save
// through this path.
func (s *Service) UpdateDocument(ctx context.Context, session Session, documentID string, input DocumentInput) (map[string]any, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, validationError("title is required")
	}
	if len(input.Content) == 0 {
		return nil, validationError("content is required")
	}
	if _, err := richtext.Parse(input.Content); err != nil {
		return nil, validationError("content must be a rich text document")
	}

	role, doc, err := s.access.Resolve(ctx, documentID, session.UserID)
	if err != nil {
		return nil, err
	}
	if !role.CanRead() {
		return nil, notFound("Document not found")
	}
	if !role.IsOwner() {
		return nil, forbidden("Only document owners can edit")
	}

	// Visibility is optional on save; absent means keep the current value.
	visibility := strings.TrimSpace(input.Visibility)
	if visibility == "" {
		visibility = doc.Visibility
	}
	if visibility != store.VisibilityPrivate && visibility != store.VisibilityPublic {
		return nil, validationError("visibility must be PRIVATE or PUBLIC")
	}

	if err := s.store.UpdateDocumentContent(ctx, documentID, title, []byte(input.Content), visibility); err != nil {
		return nil, err
	}
	if err := s.store.InsertVersion(ctx, store.Version{
		ID:         util.NewID("ver"),
		DocumentID: documentID,
		Title:      title,
		Content:    input.Content,
		AuthorID:   session.UserID,
	}); err != nil {
		return nil, err
	}

	updated, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	s.fanOutMentions(ctx, updated, session)
	s.recordMirror(updated, session)

	return documentPayload(updated, role, true), nil
}

// ── Listings ──

// ListDocuments returns the caller's owned and shared documents merged,
// newest update first.
func (s *Service) ListDocuments(ctx context.Context, session Session) ([]map[string]any, error) {
	owned, err := s.store.ListOwnedDocuments(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	shared, err := s.store.ListSharedDocuments(ctx, session.UserID, "")
	if err != nil {
		return nil, err
	}

	merged := append(owned, shared...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].UpdatedAt.After(merged[j].UpdatedAt)
	})
	return listingPayloads(merged, session.UserID), nil
}

func (s *Service) ListSharedDocuments(ctx context.Context, session Session) ([]map[string]any, error) {
	items, err := s.store.ListSharedDocuments(ctx, session.UserID, store.LevelView)
	if err != nil {
		return nil, err
	}
	return listingPayloads(items, session.UserID), nil
}

func (s *Service) ListRecentDocuments(ctx context.Context, session Session) ([]map[string]any, error) {
	return s.ListDocuments(ctx, session)
}

// ListArchivedDocuments is always empty: no archived state exists yet, the
// listing is kept so clients can rely on the route.
func (s *Service) ListArchivedDocuments(ctx context.Context, session Session) ([]map[string]any, error) {
	return make([]map[string]any, 0), nil
}

// ── Versions ──

func (s *Service) ListVersions(ctx context.Context, session Session, documentID string) ([]map[string]any, error) {
	role, _, err := s.access.Resolve(ctx, documentID, session.UserID)
	if err != nil {
		return nil, err
	}
	if !role.CanRead() {
		return nil, notFound("Document not found")
	}

	versions, err := s.store.ListVersions(ctx, documentID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(versions))
	for _, version := range versions {
		items = append(items, map[string]any{
			"id":         version.ID,
			"documentId": version.DocumentID,
			"title":      version.Title,
			"content":    version.Content,
			"author": map[string]any{
				"id":    version.AuthorID,
				"name":  version.AuthorName,
				"email": version.AuthorEmail,
			},
			"createdAt": version.CreatedAt,
		})
	}
	return items, nil
}

// ── Public share ──

// PublicDocument serves the unauthenticated share path. Anything that is not
// PUBLIC reads as missing.
func (s *Service) PublicDocument(ctx context.Context, documentID string) (map[string]any, error) {
	doc, err := s.store.GetPublicDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":      doc.ID,
		"title":   doc.Title,
		"content": doc.Content,
		"author": map[string]any{
			"id":    doc.AuthorID,
			"name":  doc.AuthorName,
			"email": doc.AuthorEmail,
		},
		"createdAt": doc.CreatedAt,
		"updatedAt": doc.UpdatedAt,
	}, nil
}

// ── Export ──

func (s *Service) ExportDocument(ctx context.Context, session Session, documentID, format string) (*export.Result, error) {
	role, _, err := s.access.Resolve(ctx, documentID, session.UserID)
	if err != nil {
		return nil, err
	}
	if !role.CanRead() {
		return nil, notFound("Document not found")
	}

	parsed, err := export.ParseFormat(format)
	if err != nil {
		return nil, validationError("format must be pdf or docx")
	}
	if s.exports == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export service not configured", nil)
	}
	return s.exports.Export(ctx, export.Request{DocumentID: documentID, Format: parsed})
}

// ── Archive mirror ──

func (s *Service) ArchiveHistory(ctx context.Context, session Session, documentID string) ([]map[string]any, error) {
	role, _, err := s.access.Resolve(ctx, documentID, session.UserID)
	if err != nil {
		return nil, err
	}
	if !role.CanRead() {
		return nil, notFound("Document not found")
	}

	items := make([]map[string]any, 0)
	if s.archive == nil {
		return items, nil
	}
	commits, err := s.archive.History(documentID, 50)
	if err != nil {
		return nil, err
	}
	for _, commit := range commits {
		items = append(items, map[string]any{
			"hash":      commit.Hash,
			"message":   commit.Message,
			"author":    commit.Author,
			"createdAt": commit.CreatedAt,
		})
	}
	return items, nil
}

// ── Payload helpers ──

func documentPayload(doc store.Document, role access.Role, includeContent bool) map[string]any {
	payload := map[string]any{
		"id":         doc.ID,
		"title":      doc.Title,
		"visibility": doc.Visibility,
		"author": map[string]any{
			"id":    doc.AuthorID,
			"name":  doc.AuthorName,
			"email": doc.AuthorEmail,
		},
		"isOwner":   role.IsOwner(),
		"createdAt": doc.CreatedAt,
		"updatedAt": doc.UpdatedAt,
	}
	if includeContent {
		payload["content"] = doc.Content
	}
	if level := roleLevel(role); level != "" {
		payload["permission"] = level
	}
	return payload
}

func listingPayloads(items []store.DocumentListing, userID string) []map[string]any {
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		role := access.RoleViewer
		switch {
		case item.AuthorID == userID:
			role = access.RoleOwner
		case item.Permission == store.LevelEdit:
			role = access.RoleEditor
		}
		payload = append(payload, documentPayload(item.Document, role, false))
	}
	return payload
}

func roleLevel(role access.Role) string {
	switch role {
	case access.RoleEditor:
		return store.LevelEdit
	case access.RoleViewer:
		return store.LevelView
	default:
		return ""
	}
}
