package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"inkwell/api/internal/store"
	"inkwell/api/internal/util"
)

func (s *Service) ListPermissions(ctx context.Context, session Session, documentID string) ([]map[string]any, error) {
	role, _, err := s.access.Resolve(ctx, documentID, session.UserID)
	if err != nil {
		return nil, err
	}
	if !role.CanRead() {
		return nil, notFound("Document not found")
	}

	permissions, err := s.store.ListPermissions(ctx, documentID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(permissions))
	for _, perm := range permissions {
		items = append(items, permissionPayload(perm))
	}
	return items, nil
}

// GrantPermission shares a document with another user by email. A repeat
// grant updates the level in place; created reports which of the two
// happened so the handler can pick 201 or 200.
func (s *Service) GrantPermission(ctx context.Context, session Session, documentID, targetEmail, level string) (payload map[string]any, created bool, err error) {
	role, doc, err := s.access.Resolve(ctx, documentID, session.UserID)
	if err != nil {
		return nil, false, err
	}
	if !role.CanRead() {
		return nil, false, notFound("Document not found")
	}
	if !role.IsOwner() {
		return nil, false, forbidden("Only document owners can manage sharing")
	}

	if !store.ValidLevel(level) {
		return nil, false, validationError("level must be VIEW or EDIT")
	}
	targetEmail = strings.TrimSpace(targetEmail)
	if targetEmail == "" {
		return nil, false, validationError("email is required")
	}

	target, err := s.store.GetUserByEmail(ctx, targetEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, notFound("User not found")
		}
		return nil, false, err
	}
	if target.ID == doc.AuthorID {
		return nil, false, validationError("The owner already has full access")
	}

	perm := store.Permission{
		DocumentID: documentID,
		UserID:     target.ID,
		Level:      level,
	}
	existing, err := s.store.GetPermission(ctx, documentID, target.ID)
	switch {
	case err == nil:
		perm.ID = existing.ID
	case errors.Is(err, sql.ErrNoRows):
		perm.ID = util.NewID("perm")
		created = true
	default:
		return nil, false, err
	}

	if err := s.store.UpsertPermission(ctx, perm); err != nil {
		return nil, false, err
	}

	perm.UserName = target.Name
	perm.UserEmail = target.Email
	return permissionPayload(perm), created, nil
}

func (s *Service) RevokePermission(ctx context.Context, session Session, documentID, userID string) error {
	role, _, err := s.access.Resolve(ctx, documentID, session.UserID)
	if err != nil {
		return err
	}
	if !role.CanRead() {
		return notFound("Document not found")
	}
	if !role.IsOwner() {
		return forbidden("Only document owners can manage sharing")
	}
	if strings.TrimSpace(userID) == "" {
		return validationError("userId is required")
	}

	removed, err := s.store.DeletePermission(ctx, documentID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return notFound("Permission not found")
	}
	return nil
}

func permissionPayload(perm store.Permission) map[string]any {
	return map[string]any{
		"id":         perm.ID,
		"documentId": perm.DocumentID,
		"level":      perm.Level,
		"user": map[string]any{
			"id":    perm.UserID,
			"name":  perm.UserName,
			"email": perm.UserEmail,
		},
		"createdAt": perm.CreatedAt,
		"updatedAt": perm.UpdatedAt,
	}
}
