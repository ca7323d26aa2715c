// Package access resolves what a user may do with a document. Every
// document handler goes through the resolver before touching content.
package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"inkwell/api/internal/store"
)

// Role is a user's effective role on one document.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleEditor Role = "EDITOR"
	RoleViewer Role = "VIEWER"
	RoleNone   Role = "NONE"
)

// CanRead reports whether the role grants read access. RoleNone must be
// indistinguishable from a missing document, so callers translate it to a
// not-found error rather than a forbidden one.
func (r Role) CanRead() bool {
	return r != RoleNone
}

// CanEdit reports whether the role grants content edit access.
func (r Role) CanEdit() bool {
	return r == RoleOwner || r == RoleEditor
}

// IsOwner reports whether the role is document ownership. Permission
// mutation and content updates are owner-gated.
func (r Role) IsOwner() bool {
	return r == RoleOwner
}

// Store is the slice of the data store the resolver needs.
type Store interface {
	GetDocument(ctx context.Context, documentID string) (store.Document, error)
	GetPermission(ctx context.Context, documentID, userID string) (store.Permission, error)
}

type Resolver struct {
	store Store
}

func NewResolver(st Store) *Resolver {
	return &Resolver{store: st}
}

// Resolve loads the document and computes the user's role on it: OWNER for
// the author, EDITOR/VIEWER from a permission row, NONE otherwise. A missing
// document surfaces as sql.ErrNoRows from the store.
func (r *Resolver) Resolve(ctx context.Context, documentID, userID string) (Role, store.Document, error) {
	doc, err := r.store.GetDocument(ctx, documentID)
	if err != nil {
		return RoleNone, store.Document{}, err
	}

	if doc.AuthorID == userID {
		return RoleOwner, doc, nil
	}

	perm, err := r.store.GetPermission(ctx, documentID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return RoleNone, doc, nil
	}
	if err != nil {
		return RoleNone, store.Document{}, fmt.Errorf("resolve permission: %w", err)
	}

	switch perm.Level {
	case store.LevelEdit:
		return RoleEditor, doc, nil
	case store.LevelView:
		return RoleViewer, doc, nil
	default:
		return RoleNone, doc, nil
	}
}
