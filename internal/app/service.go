package app

import (
	"context"
	"time"

	"inkwell/api/internal/access"
	"inkwell/api/internal/archive"
	"inkwell/api/internal/auth"
	"inkwell/api/internal/authpw"
	"inkwell/api/internal/config"
	"inkwell/api/internal/email"
	"inkwell/api/internal/export"
	"inkwell/api/internal/logger"
	"inkwell/api/internal/search"
	"inkwell/api/internal/session"
	"inkwell/api/internal/store"
	"inkwell/api/internal/util"
)

// Session is an authenticated caller. Token and RefreshToken are only set on
// the responses that mint them.
type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	Ping(ctx context.Context) error

	CreateUser(context.Context, store.User) error
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	SearchUsers(context.Context, string, string) ([]store.User, error)
	SetResetToken(context.Context, string, string, time.Time) error
	GetUserByResetToken(context.Context, string) (store.User, error)
	ResetUserPassword(context.Context, string, string) error

	InsertDocument(context.Context, store.Document) error
	GetDocument(context.Context, string) (store.Document, error)
	GetPublicDocument(context.Context, string) (store.Document, error)
	UpdateDocumentContent(context.Context, string, string, []byte, string) error
	ListOwnedDocuments(context.Context, string) ([]store.DocumentListing, error)
	ListSharedDocuments(context.Context, string, string) ([]store.DocumentListing, error)
	ListSearchCandidates(context.Context, string, string) ([]store.SearchCandidate, error)

	ListPermissions(context.Context, string) ([]store.Permission, error)
	GetPermission(context.Context, string, string) (store.Permission, error)
	UpsertPermission(context.Context, store.Permission) error
	DeletePermission(context.Context, string, string) (bool, error)

	InsertVersion(context.Context, store.Version) error
	ListVersions(context.Context, string) ([]store.Version, error)

	InsertNotification(context.Context, store.Notification) error
	ListNotifications(context.Context, string) ([]store.Notification, error)
	MarkNotificationRead(context.Context, string, string) (bool, error)

	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
}

// sessionStore holds refresh tokens. The Postgres store satisfies it; Redis
// takes over when configured.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type exporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

type archiveMirror interface {
	RecordSnapshot(documentID string, snap archive.Snapshot, author, authorEmail, message string) (string, error)
	History(documentID string, limit int) ([]archive.Commit, error)
}

type mailer interface {
	IsConfigured() bool
	SendPasswordResetEmail(to, userName, resetURL string) error
	SendMentionEmail(to, mentionerName, documentTitle, documentURL string) error
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	passwords *authpw.Service
	access    *access.Resolver
	search    *search.Engine
	exports   exporter
	archive   archiveMirror
	email     mailer
}

// New wires the service over the Postgres store. Archive, export, and email
// are optional; the matching endpoints degrade when they are nil.
func New(cfg config.Config, dataStore *store.PostgresStore, archiveSvc *archive.Service, exportSvc *export.Service, emailSvc *email.Service) *Service {
	svc := &Service{
		cfg:       cfg,
		store:     dataStore,
		sessions:  dataStore,
		passwords: authpw.NewService(dataStore),
		access:    access.NewResolver(dataStore),
		search:    search.NewEngine(dataStore),
	}
	if archiveSvc != nil {
		svc.archive = archiveSvc
	}
	if exportSvc != nil {
		svc.exports = exportSvc
	}
	if emailSvc != nil {
		svc.email = emailSvc
	}
	return svc
}

// UseSessionStore moves refresh-token persistence to Redis.
func (s *Service) UseSessionStore(sessions *session.RedisStore) {
	s.sessions = sessions
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

// ── Auth ──

func (s *Service) Register(ctx context.Context, name, email, password string) (Session, error) {
	user, err := s.passwords.Register(ctx, authpw.RegisterRequest{
		Name:     name,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.passwords.Authenticate(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// Refresh rotates the refresh token: the presented token is revoked and a
// fresh session is issued in its place.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	found, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// The Redis backend only stores the user ID.
	user, err := s.store.GetUserByID(ctx, found.ID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.DisplayName(), jti, s.cfg.AccessTTL)
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewToken(32)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, now.Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName(),
		Email:        user.Email,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.ID)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName(),
		Email:     user.Email,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Logout revokes best-effort: an already-dead token is not an error.
func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// RequestPasswordReset mints a reset token and mails the link when SMTP is
// configured. The token is also returned for the dev bypass.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) (string, error) {
	user, token, err := s.passwords.RequestPasswordReset(ctx, emailAddr)
	if err != nil {
		return "", err
	}
	if s.SMTPConfigured() {
		resetURL := s.cfg.AppBaseURL + "/reset-password?token=" + token
		if err := s.email.SendPasswordResetEmail(user.Email, user.DisplayName(), resetURL); err != nil {
			logger.Sugar.Warnw("send password reset email", "userId", user.ID, "error", err)
		}
	}
	return token, nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	return s.passwords.ResetPassword(ctx, token, newPassword)
}

// ── Users ──

// SearchUsers powers mention autocomplete. The requester is excluded.
func (s *Service) SearchUsers(ctx context.Context, session Session, query string) ([]map[string]any, error) {
	users, err := s.store.SearchUsers(ctx, query, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(users))
	for _, user := range users {
		items = append(items, map[string]any{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
		})
	}
	return items, nil
}

// ── Search ──

func (s *Service) Search(ctx context.Context, session Session, text, filter string, limit int) (search.Response, error) {
	return s.search.Search(ctx, search.Query{
		Text:   text,
		UserID: session.UserID,
		Scope:  search.ParseScope(filter),
		Limit:  limit,
	})
}

// ── Notifications ──

func (s *Service) ListNotifications(ctx context.Context, session Session) ([]map[string]any, error) {
	items, err := s.store.ListNotifications(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, map[string]any{
			"id":            item.ID,
			"documentId":    item.DocumentID,
			"documentTitle": item.DocumentTitle,
			"message":       item.Message,
			"read":          item.Read,
			"createdAt":     item.CreatedAt,
		})
	}
	return payload, nil
}

func (s *Service) MarkNotificationRead(ctx context.Context, session Session, notificationID string) error {
	ok, err := s.store.MarkNotificationRead(ctx, notificationID, session.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("Notification not found")
	}
	return nil
}
