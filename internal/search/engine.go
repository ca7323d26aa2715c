package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"inkwell/api/internal/logger"
	"inkwell/api/internal/richtext"
	"inkwell/api/internal/store"
)

const (
	scoreTitleMatch   = 2
	scoreContentMatch = 1
)

// Store lists the documents a user may search, pre-filtered by scope.
type Store interface {
	ListSearchCandidates(ctx context.Context, userID, scope string) ([]store.SearchCandidate, error)
}

type Engine struct {
	store Store
}

func NewEngine(st Store) *Engine {
	return &Engine{store: st}
}

// Search matches the query against title and flattened body text of every
// candidate, scores title hits above body hits, and orders ties by most
// recently updated.
func (e *Engine) Search(ctx context.Context, q Query) (Response, error) {
	resp := Response{
		Results: make([]Result, 0),
		Query:   q.Text,
	}

	query := strings.TrimSpace(q.Text)
	if query == "" {
		return resp, nil
	}
	// No archived state exists yet; the scope is accepted and matches
	// nothing.
	if q.Scope == ScopeArchived {
		return resp, nil
	}

	candidates, err := e.store.ListSearchCandidates(ctx, q.UserID, string(q.Scope))
	if err != nil {
		return Response{}, fmt.Errorf("list candidates: %w", err)
	}

	lowered := strings.ToLower(query)
	for _, c := range candidates {
		text := flatten(c)

		titleMatch := strings.Contains(strings.ToLower(c.Title), lowered)
		contentMatch := strings.Contains(strings.ToLower(text), lowered)
		if !titleMatch && !contentMatch {
			continue
		}

		score := scoreContentMatch
		if titleMatch {
			score = scoreTitleMatch
		}

		resp.Results = append(resp.Results, Result{
			ID:             c.ID,
			Title:          c.Title,
			TitleHighlight: richtext.Highlight(c.Title, query),
			ContentPreview: richtext.Highlight(richtext.Preview(text, query), query),
			Visibility:     c.Visibility,
			Author: Author{
				ID:    c.AuthorID,
				Name:  c.AuthorName,
				Email: c.AuthorEmail,
			},
			IsOwner:        c.AuthorID == q.UserID,
			Permission:     c.Permission,
			RelevanceScore: score,
			CreatedAt:      c.CreatedAt,
			UpdatedAt:      c.UpdatedAt,
		})
	}

	sort.SliceStable(resp.Results, func(i, j int) bool {
		if resp.Results[i].RelevanceScore != resp.Results[j].RelevanceScore {
			return resp.Results[i].RelevanceScore > resp.Results[j].RelevanceScore
		}
		return resp.Results[i].UpdatedAt.After(resp.Results[j].UpdatedAt)
	})

	resp.Total = len(resp.Results)

	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if len(resp.Results) > limit {
		resp.Results = resp.Results[:limit]
	}

	return resp, nil
}

func flatten(c store.SearchCandidate) string {
	if len(c.Content) == 0 {
		return ""
	}
	node, err := richtext.Parse(c.Content)
	if err != nil {
		logger.Sugar.Warnw("skip unparseable document body", "documentId", c.ID, "error", err)
		return ""
	}
	return richtext.FlattenText(node)
}
