package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ── Users ──

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash)
		VALUES ($1, $2, $3, $4)
	`, user.ID, user.Name, user.Email, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`, email).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash
		FROM users
		WHERE id = $1
	`, userID).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// SearchUsers finds users whose name or email contains the query,
// case-insensitively, excluding the requester. Capped at 10 rows for the
// mention autocomplete.
func (s *PostgresStore) SearchUsers(ctx context.Context, query, excludeUserID string) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email
		FROM users
		WHERE id <> $2
		  AND (name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%')
		ORDER BY name ASC, email ASC
		LIMIT 10
	`, query, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		var item User
		if err := rows.Scan(&item.ID, &item.Name, &item.Email); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SetResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET reset_token=$2, reset_token_expires_at=$3, updated_at=NOW()
		WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	return nil
}

// GetUserByResetToken resolves an unexpired reset token to its user.
func (s *PostgresStore) GetUserByResetToken(ctx context.Context, token string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash
		FROM users
		WHERE reset_token = $1
		  AND reset_token_expires_at > NOW()
	`, token).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ResetUserPassword replaces the password hash and clears the reset token.
func (s *PostgresStore) ResetUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash=$2, reset_token=NULL, reset_token_expires_at=NULL, updated_at=NOW()
		WHERE id=$1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("reset user password: %w", err)
	}
	return nil
}

// ── Documents ──

const documentColumns = `
	d.id, d.title, d.content, d.visibility, d.author_id,
	u.name, u.email, d.created_at, d.updated_at
`

func scanDocument(row interface{ Scan(...any) error }) (Document, error) {
	var item Document
	err := row.Scan(
		&item.ID,
		&item.Title,
		&item.Content,
		&item.Visibility,
		&item.AuthorID,
		&item.AuthorName,
		&item.AuthorEmail,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func (s *PostgresStore) InsertDocument(ctx context.Context, item Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, content, visibility, author_id)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.Title, []byte(item.Content), item.Visibility, item.AuthorID)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (Document, error) {
	item, err := scanDocument(s.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents d
		JOIN users u ON u.id = d.author_id
		WHERE d.id = $1
	`, documentID))
	if err != nil {
		return Document{}, err
	}
	return item, nil
}

// GetPublicDocument returns a document only when it is publicly visible.
func (s *PostgresStore) GetPublicDocument(ctx context.Context, documentID string) (Document, error) {
	item, err := scanDocument(s.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents d
		JOIN users u ON u.id = d.author_id
		WHERE d.id = $1 AND d.visibility = 'PUBLIC'
	`, documentID))
	if err != nil {
		return Document{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateDocumentContent(ctx context.Context, documentID, title string, content []byte, visibility string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET title=$2, content=$3, visibility=$4, updated_at=NOW()
		WHERE id=$1
	`, documentID, title, content, visibility)
	if err != nil {
		return fmt.Errorf("update document content: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListOwnedDocuments(ctx context.Context, userID string) ([]DocumentListing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents d
		JOIN users u ON u.id = d.author_id
		WHERE d.author_id = $1
		ORDER BY d.updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list owned documents: %w", err)
	}
	defer rows.Close()

	items := make([]DocumentListing, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan owned document: %w", err)
		}
		items = append(items, DocumentListing{Document: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owned documents: %w", err)
	}
	return items, nil
}

// ListSharedDocuments returns documents shared with the user, newest update
// first. When level is non-empty only grants at that level are returned.
func (s *PostgresStore) ListSharedDocuments(ctx context.Context, userID, level string) ([]DocumentListing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+`, p.level
		FROM document_permissions p
		JOIN documents d ON d.id = p.document_id
		JOIN users u ON u.id = d.author_id
		WHERE p.user_id = $1
		  AND ($2 = '' OR p.level = $2)
		ORDER BY d.updated_at DESC
	`, userID, level)
	if err != nil {
		return nil, fmt.Errorf("list shared documents: %w", err)
	}
	defer rows.Close()

	items := make([]DocumentListing, 0)
	for rows.Next() {
		var item DocumentListing
		if err := rows.Scan(
			&item.ID,
			&item.Title,
			&item.Content,
			&item.Visibility,
			&item.AuthorID,
			&item.AuthorName,
			&item.AuthorEmail,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.Permission,
		); err != nil {
			return nil, fmt.Errorf("scan shared document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shared documents: %w", err)
	}
	return items, nil
}

// ListSearchCandidates pulls the documents visible to the user under the
// given scope. Ranking happens in memory; this query only bounds the
// candidate set.
func (s *PostgresStore) ListSearchCandidates(ctx context.Context, userID, scope string) ([]SearchCandidate, error) {
	const base = `
		SELECT d.id, d.title, d.content, d.visibility, d.author_id,
			u.name, u.email, COALESCE(p.level, ''), d.created_at, d.updated_at
		FROM documents d
		JOIN users u ON u.id = d.author_id
		LEFT JOIN document_permissions p ON p.document_id = d.id AND p.user_id = $1
	`

	var where string
	switch scope {
	case "owned":
		where = `WHERE d.author_id = $1`
	case "shared":
		where = `WHERE d.author_id <> $1 AND p.user_id IS NOT NULL`
	case "recent":
		where = `WHERE (d.author_id = $1 OR p.user_id IS NOT NULL)
			AND d.updated_at >= NOW() - INTERVAL '30 days'`
	default:
		where = `WHERE d.author_id = $1 OR p.user_id IS NOT NULL`
	}

	rows, err := s.db.QueryContext(ctx, base+where+` ORDER BY d.updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list search candidates: %w", err)
	}
	defer rows.Close()

	items := make([]SearchCandidate, 0)
	for rows.Next() {
		var item SearchCandidate
		if err := rows.Scan(
			&item.ID,
			&item.Title,
			&item.Content,
			&item.Visibility,
			&item.AuthorID,
			&item.AuthorName,
			&item.AuthorEmail,
			&item.Permission,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan search candidate: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search candidates: %w", err)
	}
	return items, nil
}

// ── Permissions ──

func (s *PostgresStore) ListPermissions(ctx context.Context, documentID string) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.document_id, p.user_id, p.level, p.created_at, p.updated_at, u.email, u.name
		FROM document_permissions p
		JOIN users u ON u.id = p.user_id
		WHERE p.document_id = $1
		ORDER BY p.created_at ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close()

	items := make([]Permission, 0)
	for rows.Next() {
		var item Permission
		if err := rows.Scan(
			&item.ID,
			&item.DocumentID,
			&item.UserID,
			&item.Level,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.UserEmail,
			&item.UserName,
		); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetPermission(ctx context.Context, documentID, userID string) (Permission, error) {
	var item Permission
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, user_id, level, created_at, updated_at
		FROM document_permissions
		WHERE document_id = $1 AND user_id = $2
	`, documentID, userID).Scan(
		&item.ID,
		&item.DocumentID,
		&item.UserID,
		&item.Level,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return Permission{}, err
	}
	return item, nil
}

// UpsertPermission inserts or updates a grant in one statement. On conflict
// the level is overwritten, which is also how mention auto-sharing resets
// existing grants to VIEW.
func (s *PostgresStore) UpsertPermission(ctx context.Context, item Permission) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_permissions (id, document_id, user_id, level)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (document_id, user_id)
		DO UPDATE SET level=EXCLUDED.level, updated_at=NOW()
	`, item.ID, item.DocumentID, item.UserID, item.Level)
	if err != nil {
		return fmt.Errorf("upsert permission: %w", err)
	}
	return nil
}

// DeletePermission removes a grant and reports whether a row existed.
func (s *PostgresStore) DeletePermission(ctx context.Context, documentID, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM document_permissions
		WHERE document_id = $1 AND user_id = $2
	`, documentID, userID)
	if err != nil {
		return false, fmt.Errorf("delete permission: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete permission rows: %w", err)
	}
	return affected > 0, nil
}

// ── Versions ──

func (s *PostgresStore) InsertVersion(ctx context.Context, item Version) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_versions (id, document_id, title, content, author_id)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.DocumentID, item.Title, []byte(item.Content), item.AuthorID)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListVersions(ctx context.Context, documentID string) ([]Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.id, v.document_id, v.title, v.content, v.author_id, u.name, u.email, v.created_at
		FROM document_versions v
		JOIN users u ON u.id = v.author_id
		WHERE v.document_id = $1
		ORDER BY v.created_at DESC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	items := make([]Version, 0)
	for rows.Next() {
		var item Version
		if err := rows.Scan(
			&item.ID,
			&item.DocumentID,
			&item.Title,
			&item.Content,
			&item.AuthorID,
			&item.AuthorName,
			&item.AuthorEmail,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return items, nil
}

// ── Notifications ──

// InsertNotification stores a notification unless an identical one already
// exists for the same user, document, and message.
func (s *PostgresStore) InsertNotification(ctx context.Context, item Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, document_id, message)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, document_id, message) DO NOTHING
	`, item.ID, item.UserID, item.DocumentID, item.Message)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID string) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, n.user_id, n.document_id, n.message, n.is_read, n.created_at, d.title
		FROM notifications n
		JOIN documents d ON d.id = n.document_id
		WHERE n.user_id = $1
		ORDER BY n.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0)
	for rows.Next() {
		var item Notification
		if err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.DocumentID,
			&item.Message,
			&item.Read,
			&item.CreatedAt,
			&item.DocumentTitle,
		); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

// MarkNotificationRead flags the user's own notification as read and reports
// whether it existed.
func (s *PostgresStore) MarkNotificationRead(ctx context.Context, notificationID, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET is_read = TRUE
		WHERE id = $1 AND user_id = $2
	`, notificationID, userID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification rows: %w", err)
	}
	return affected > 0, nil
}

// ── Refresh sessions and token revocation ──

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.name, u.email
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.Name, &user.Email)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}
