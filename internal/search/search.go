// Package search ranks a user's accessible documents against a query. The
// index is the documents table itself; candidates are filtered by scope in
// SQL and scored in process.
package search

import (
	"time"
)

// Scope narrows which documents are searched.
type Scope string

const (
	ScopeAll      Scope = "all"
	ScopeOwned    Scope = "owned"
	ScopeShared   Scope = "shared"
	ScopeRecent   Scope = "recent"
	ScopeArchived Scope = "archived"
)

// ParseScope maps a query parameter to a scope. Unknown values fall back to
// searching everything the user can access.
func ParseScope(raw string) Scope {
	switch Scope(raw) {
	case ScopeOwned, ScopeShared, ScopeRecent, ScopeArchived:
		return Scope(raw)
	default:
		return ScopeAll
	}
}

const defaultLimit = 20

// Author identifies who wrote a matched document.
type Author struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Result is a single search hit returned to the caller.
type Result struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	TitleHighlight string    `json:"titleHighlight"`
	ContentPreview string    `json:"contentPreview"`
	Visibility     string    `json:"visibility"`
	Author         Author    `json:"author"`
	IsOwner        bool      `json:"isOwner"`
	Permission     string    `json:"permission,omitempty"`
	RelevanceScore int       `json:"relevanceScore"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Query describes a search request.
type Query struct {
	Text   string
	UserID string
	Scope  Scope
	Limit  int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}
