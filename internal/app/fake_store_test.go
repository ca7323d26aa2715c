package app

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"inkwell/api/internal/access"
	"inkwell/api/internal/authpw"
	"inkwell/api/internal/config"
	"inkwell/api/internal/search"
	"inkwell/api/internal/store"
)

type refreshRow struct {
	userID    string
	expiresAt time.Time
}

// fakeStore is an in-memory dataStore for service and handler tests.
type fakeStore struct {
	mu            sync.Mutex
	users         map[string]store.User
	documents     map[string]store.Document
	permissions   map[string]store.Permission
	versions      []store.Version
	notifications []store.Notification
	refresh       map[string]refreshRow
	revokedJTIs   map[string]bool

	// failGrantFor makes UpsertPermission fail for the given user IDs, to
	// exercise fan-out fault isolation.
	failGrantFor map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:        make(map[string]store.User),
		documents:    make(map[string]store.Document),
		permissions:  make(map[string]store.Permission),
		refresh:      make(map[string]refreshRow),
		revokedJTIs:  make(map[string]bool),
		failGrantFor: make(map[string]error),
	}
}

func newTestService() (*Service, *fakeStore) {
	fake := newFakeStore()
	cfg := config.Config{
		JWTSecret:  "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
		AppBaseURL: "http://localhost:3000",
	}
	svc := &Service{
		cfg:       cfg,
		store:     fake,
		sessions:  fake,
		passwords: authpw.NewService(fake),
		access:    access.NewResolver(fake),
		search:    search.NewEngine(fake),
	}
	return svc, fake
}

func (f *fakeStore) addUser(id, name, email string) store.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := store.User{ID: id, Name: name, Email: email, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.users[id] = user
	return user
}

func (f *fakeStore) addDocument(id, title, content, visibility, authorID string, updatedAt time.Time) store.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := store.Document{
		ID:         id,
		Title:      title,
		Content:    []byte(content),
		Visibility: visibility,
		AuthorID:   authorID,
		CreatedAt:  updatedAt,
		UpdatedAt:  updatedAt,
	}
	f.documents[id] = doc
	return doc
}

func permKey(documentID, userID string) string {
	return documentID + "|" + userID
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

// ── Users ──

func (f *fakeStore) CreateUser(ctx context.Context, user store.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeStore) SearchUsers(ctx context.Context, query, excludeUserID string) ([]store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	needle := strings.ToLower(query)
	items := make([]store.User, 0)
	for _, user := range f.users {
		if user.ID == excludeUserID {
			continue
		}
		if strings.Contains(strings.ToLower(user.Name), needle) ||
			strings.Contains(strings.ToLower(user.Email), needle) {
			items = append(items, user)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].Email < items[j].Email
	})
	if len(items) > 10 {
		items = items[:10]
	}
	return items, nil
}

func (f *fakeStore) SetResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.ResetToken = token
	user.ResetTokenExpiresAt = &expiresAt
	f.users[userID] = user
	return nil
}

func (f *fakeStore) GetUserByResetToken(ctx context.Context, token string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.ResetToken == token && user.ResetTokenExpiresAt != nil && user.ResetTokenExpiresAt.After(time.Now()) {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) ResetUserPassword(ctx context.Context, userID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.PasswordHash = passwordHash
	user.ResetToken = ""
	user.ResetTokenExpiresAt = nil
	f.users[userID] = user
	return nil
}

// ── Documents ──

func (f *fakeStore) InsertDocument(ctx context.Context, item store.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.CreatedAt = time.Now()
	item.UpdatedAt = time.Now()
	f.documents[item.ID] = item
	return nil
}

func (f *fakeStore) withAuthor(doc store.Document) store.Document {
	if author, ok := f.users[doc.AuthorID]; ok {
		doc.AuthorName = author.Name
		doc.AuthorEmail = author.Email
	}
	return doc
}

func (f *fakeStore) GetDocument(ctx context.Context, documentID string) (store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[documentID]
	if !ok {
		return store.Document{}, sql.ErrNoRows
	}
	return f.withAuthor(doc), nil
}

func (f *fakeStore) GetPublicDocument(ctx context.Context, documentID string) (store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[documentID]
	if !ok || doc.Visibility != store.VisibilityPublic {
		return store.Document{}, sql.ErrNoRows
	}
	return f.withAuthor(doc), nil
}

func (f *fakeStore) UpdateDocumentContent(ctx context.Context, documentID, title string, content []byte, visibility string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[documentID]
	if !ok {
		return sql.ErrNoRows
	}
	doc.Title = title
	doc.Content = content
	doc.Visibility = visibility
	doc.UpdatedAt = time.Now()
	f.documents[documentID] = doc
	return nil
}

func (f *fakeStore) ListOwnedDocuments(ctx context.Context, userID string) ([]store.DocumentListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.DocumentListing, 0)
	for _, doc := range f.documents {
		if doc.AuthorID == userID {
			items = append(items, store.DocumentListing{Document: f.withAuthor(doc)})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].UpdatedAt.After(items[j].UpdatedAt) })
	return items, nil
}

func (f *fakeStore) ListSharedDocuments(ctx context.Context, userID, level string) ([]store.DocumentListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.DocumentListing, 0)
	for _, perm := range f.permissions {
		if perm.UserID != userID {
			continue
		}
		if level != "" && perm.Level != level {
			continue
		}
		doc, ok := f.documents[perm.DocumentID]
		if !ok {
			continue
		}
		items = append(items, store.DocumentListing{Document: f.withAuthor(doc), Permission: perm.Level})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].UpdatedAt.After(items[j].UpdatedAt) })
	return items, nil
}

func (f *fakeStore) ListSearchCandidates(ctx context.Context, userID, scope string) ([]store.SearchCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.SearchCandidate, 0)
	for _, doc := range f.documents {
		perm, shared := f.permissions[permKey(doc.ID, userID)]
		owned := doc.AuthorID == userID

		switch scope {
		case "owned":
			if !owned {
				continue
			}
		case "shared":
			if owned || !shared {
				continue
			}
		case "recent":
			if (!owned && !shared) || doc.UpdatedAt.Before(time.Now().AddDate(0, 0, -30)) {
				continue
			}
		default:
			if !owned && !shared {
				continue
			}
		}

		doc = f.withAuthor(doc)
		candidate := store.SearchCandidate{
			ID:          doc.ID,
			Title:       doc.Title,
			Content:     doc.Content,
			Visibility:  doc.Visibility,
			AuthorID:    doc.AuthorID,
			AuthorName:  doc.AuthorName,
			AuthorEmail: doc.AuthorEmail,
			CreatedAt:   doc.CreatedAt,
			UpdatedAt:   doc.UpdatedAt,
		}
		if shared {
			candidate.Permission = perm.Level
		}
		items = append(items, candidate)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].UpdatedAt.After(items[j].UpdatedAt) })
	return items, nil
}

// ── Permissions ──

func (f *fakeStore) ListPermissions(ctx context.Context, documentID string) ([]store.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.Permission, 0)
	for _, perm := range f.permissions {
		if perm.DocumentID != documentID {
			continue
		}
		if user, ok := f.users[perm.UserID]; ok {
			perm.UserName = user.Name
			perm.UserEmail = user.Email
		}
		items = append(items, perm)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (f *fakeStore) GetPermission(ctx context.Context, documentID, userID string) (store.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	perm, ok := f.permissions[permKey(documentID, userID)]
	if !ok {
		return store.Permission{}, sql.ErrNoRows
	}
	return perm, nil
}

func (f *fakeStore) UpsertPermission(ctx context.Context, item store.Permission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failGrantFor[item.UserID]; ok {
		return err
	}
	key := permKey(item.DocumentID, item.UserID)
	if existing, ok := f.permissions[key]; ok {
		existing.Level = item.Level
		existing.UpdatedAt = time.Now()
		f.permissions[key] = existing
		return nil
	}
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt
	f.permissions[key] = item
	return nil
}

func (f *fakeStore) DeletePermission(ctx context.Context, documentID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := permKey(documentID, userID)
	if _, ok := f.permissions[key]; !ok {
		return false, nil
	}
	delete(f.permissions, key)
	return true, nil
}

// ── Versions ──

func (f *fakeStore) InsertVersion(ctx context.Context, item store.Version) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.CreatedAt = time.Now()
	if author, ok := f.users[item.AuthorID]; ok {
		item.AuthorName = author.Name
		item.AuthorEmail = author.Email
	}
	f.versions = append(f.versions, item)
	return nil
}

func (f *fakeStore) ListVersions(ctx context.Context, documentID string) ([]store.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.Version, 0)
	for _, version := range f.versions {
		if version.DocumentID == documentID {
			items = append(items, version)
		}
	}
	// Newest first; appended order stands in for created_at.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

// ── Notifications ──

func (f *fakeStore) InsertNotification(ctx context.Context, item store.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.notifications {
		if existing.UserID == item.UserID && existing.DocumentID == item.DocumentID && existing.Message == item.Message {
			return nil
		}
	}
	item.CreatedAt = time.Now()
	f.notifications = append(f.notifications, item)
	return nil
}

func (f *fakeStore) ListNotifications(ctx context.Context, userID string) ([]store.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.Notification, 0)
	for i := len(f.notifications) - 1; i >= 0; i-- {
		item := f.notifications[i]
		if item.UserID != userID {
			continue
		}
		if doc, ok := f.documents[item.DocumentID]; ok {
			item.DocumentTitle = doc.Title
		}
		items = append(items, item)
	}
	return items, nil
}

func (f *fakeStore) MarkNotificationRead(ctx context.Context, notificationID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, item := range f.notifications {
		if item.ID == notificationID && item.UserID == userID {
			f.notifications[i].Read = true
			return true, nil
		}
	}
	return false, nil
}

// ── Sessions ──

func (f *fakeStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh[tokenHash] = refreshRow{userID: userID, expiresAt: expiresAt}
	return nil
}

func (f *fakeStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.refresh[tokenHash]
	if !ok || row.expiresAt.Before(time.Now()) {
		return store.User{}, sql.ErrNoRows
	}
	user, ok := f.users[row.userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, tokenHash)
	return nil
}

func (f *fakeStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokedJTIs[jti] = true
	return nil
}

func (f *fakeStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revokedJTIs[jti], nil
}
