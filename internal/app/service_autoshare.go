package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"inkwell/api/internal/archive"
	"inkwell/api/internal/logger"
	"inkwell/api/internal/richtext"
	"inkwell/api/internal/store"
	"inkwell/api/internal/util"
)

// fanOutMentions re-derives the full mention set from the saved content and
// gives every mentioned user VIEW access plus a notification. It runs after
// the save has been committed: one user failing never blocks the others, and
// nothing here can fail the save itself.
func (s *Service) fanOutMentions(ctx context.Context, doc store.Document, actor Session) {
	root, err := richtext.Parse(doc.Content)
	if err != nil {
		logger.Sugar.Warnw("mention fan-out parse", "documentId", doc.ID, "error", err)
		return
	}

	for _, userID := range richtext.MentionedUserIDs(root) {
		if err := s.shareWithMentioned(ctx, doc, actor, userID); err != nil {
			logger.Sugar.Warnw("mention fan-out", "documentId", doc.ID, "userId", userID, "error", err)
		}
	}
}

func (s *Service) shareWithMentioned(ctx context.Context, doc store.Document, actor Session, userID string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		// Stale mentions of deleted users are skipped silently.
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}

	// The owner never holds a permission row; a self-mention still notifies.
	if user.ID != doc.AuthorID {
		if err := s.store.UpsertPermission(ctx, store.Permission{
			ID:         util.NewID("perm"),
			DocumentID: doc.ID,
			UserID:     user.ID,
			Level:      store.LevelView,
		}); err != nil {
			return err
		}
	}

	message := fmt.Sprintf("%s mentioned you in %q", actor.UserName, doc.Title)
	if err := s.store.InsertNotification(ctx, store.Notification{
		ID:         util.NewID("ntf"),
		UserID:     user.ID,
		DocumentID: doc.ID,
		Message:    message,
	}); err != nil {
		return err
	}

	if s.SMTPConfigured() && user.ID != actor.UserID {
		documentURL := s.cfg.AppBaseURL + "/documents/" + doc.ID
		if err := s.email.SendMentionEmail(user.Email, actor.UserName, doc.Title, documentURL); err != nil {
			logger.Sugar.Warnw("mention email", "documentId", doc.ID, "userId", user.ID, "error", err)
		}
	}
	return nil
}

// recordMirror commits the saved state into the document's git mirror,
// best effort.
func (s *Service) recordMirror(doc store.Document, actor Session) {
	if s.archive == nil {
		return
	}
	snap := archive.Snapshot{Title: doc.Title, Content: doc.Content}
	message := fmt.Sprintf("Save %q", doc.Title)
	if _, err := s.archive.RecordSnapshot(doc.ID, snap, actor.UserName, actor.Email, message); err != nil {
		logger.Sugar.Warnw("archive snapshot", "documentId", doc.ID, "error", err)
	}
}
