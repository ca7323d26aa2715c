package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID                  string
	Name                string
	Email               string
	PasswordHash        string
	ResetToken          string
	ResetTokenExpiresAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// DisplayName is the label used in notifications and emails: the user's
// name when set, otherwise their email.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

type Document struct {
	ID          string
	Title       string
	Content     json.RawMessage
	Visibility  string
	AuthorID    string
	AuthorName  string
	AuthorEmail string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DocumentListing is a document row as seen in a user's listings. Permission
// is empty for documents the user owns and the granted level otherwise.
type DocumentListing struct {
	Document
	Permission string
}

// Permission is a share grant on a document. (DocumentID, UserID) is unique;
// the owner never holds a row for their own document.
type Permission struct {
	ID         string
	DocumentID string
	UserID     string
	Level      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	// Joined fields for API responses
	UserEmail string
	UserName  string
}

// Version is an append-only content snapshot taken on every successful save.
type Version struct {
	ID          string
	DocumentID  string
	Title       string
	Content     json.RawMessage
	AuthorID    string
	AuthorName  string
	AuthorEmail string
	CreatedAt   time.Time
}

type Notification struct {
	ID            string
	UserID        string
	DocumentID    string
	Message       string
	Read          bool
	CreatedAt     time.Time
	DocumentTitle string
}

// SearchCandidate is a document row pulled for the in-request search scan,
// carrying everything the ranking pass and result payload need.
type SearchCandidate struct {
	ID          string
	Title       string
	Content     json.RawMessage
	Visibility  string
	AuthorID    string
	AuthorName  string
	AuthorEmail string
	Permission  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const (
	LevelView = "VIEW"
	LevelEdit = "EDIT"

	VisibilityPrivate = "PRIVATE"
	VisibilityPublic  = "PUBLIC"
)

// ValidLevel reports whether level is a grantable permission level.
func ValidLevel(level string) bool {
	return level == LevelView || level == LevelEdit
}
