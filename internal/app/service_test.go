package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"inkwell/api/internal/store"
)

func assertDomainStatus(t *testing.T, err error, status int) *DomainError {
	t.Helper()
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Status != status {
		t.Fatalf("expected status %d, got %d (%s)", status, domainErr.Status, domainErr.Code)
	}
	return domainErr
}

func docWithMention(text, mentionedID string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":%q},{"type":"mention","attrs":{"id":%q,"label":"someone"}}]}]}`,
		text, mentionedID,
	))
}

func plainDoc(text string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":%q}]}]}`, text,
	))
}

func TestRegisterLoginRefreshLogout(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	session, err := svc.Register(ctx, "Alice", "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if session.Token == "" || session.RefreshToken == "" {
		t.Fatal("expected access and refresh tokens")
	}
	if session.UserName != "Alice" {
		t.Fatalf("unexpected user name %q", session.UserName)
	}

	login, err := svc.Login(ctx, "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	parsed, err := svc.SessionFromToken(ctx, login.Token)
	if err != nil {
		t.Fatalf("SessionFromToken() error = %v", err)
	}
	if parsed.UserID != login.UserID {
		t.Fatalf("session user mismatch: %q vs %q", parsed.UserID, login.UserID)
	}

	rotated, err := svc.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if rotated.RefreshToken == login.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}
	if _, err := svc.Refresh(ctx, login.RefreshToken); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected old refresh token to be dead, got %v", err)
	}

	if err := svc.Logout(ctx, rotated, rotated.RefreshToken); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := svc.SessionFromToken(ctx, rotated.Token); err == nil {
		t.Fatal("expected revoked access token to be rejected")
	}
	if _, err := svc.Refresh(ctx, rotated.RefreshToken); err == nil {
		t.Fatal("expected revoked refresh token to be rejected")
	}
}

func TestGetDocumentAccess(t *testing.T) {
	svc, fake := newTestService()
	ctx := context.Background()

	fake.addUser("user_owner", "Alice", "alice@example.com")
	fake.addUser("user_viewer", "Bob", "bob@example.com")
	fake.addUser("user_stranger", "Eve", "eve@example.com")
	fake.addDocument("doc_1", "Plan", `{"type":"doc","content":[]}`, store.VisibilityPrivate, "user_owner", time.Now())
	_ = fake.UpsertPermission(ctx, store.Permission{ID: "perm_1", DocumentID: "doc_1", UserID: "user_viewer", Level: store.LevelView})

	owner := Session{UserID: "user_owner", UserName: "Alice"}
	payload, err := svc.GetDocument(ctx, owner, "doc_1")
	if err != nil {
		t.Fatalf("owner GetDocument() error = %v", err)
	}
	if payload["isOwner"] != true {
		t.Fatal("expected isOwner for the author")
	}
	if _, ok := payload["permission"]; ok {
		t.Fatal("owner payload must not carry a permission level")
	}

	viewer := Session{UserID: "user_viewer", UserName: "Bob"}
	payload, err = svc.GetDocument(ctx, viewer, "doc_1")
	if err != nil {
		t.Fatalf("viewer GetDocument() error = %v", err)
	}
	if payload["permission"] != store.LevelView {
		t.Fatalf("expected VIEW permission in payload, got %v", payload["permission"])
	}

	stranger := Session{UserID: "user_stranger", UserName: "Eve"}
	_, err = svc.GetDocument(ctx, stranger, "doc_1")
	assertDomainStatus(t, err, http.StatusNotFound)

	_, err = svc.GetDocument(ctx, owner, "doc_missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows for missing document, got %v", err)
	}
}

func TestUpdateDocumentOwnerOnly(t *testing.T) {
	svc, fake := newTestService()
	ctx := context.Background()

	fake.addUser("user_owner", "Alice", "alice@example.com")
	fake.addUser("user_editor", "Bob", "bob@example.com")
	fake.addDocument("doc_1", "Plan", `{"type":"doc","content":[]}`, store.VisibilityPrivate, "user_owner", time.Now())
	_ = fake.UpsertPermission(ctx, store.Permission{ID: "perm_1", DocumentID: "doc_1", UserID: "user_editor", Level: store.LevelEdit})

	editor := Session{UserID: "user_editor", UserName: "Bob"}
	input := DocumentInput{Title: "Plan v2", Content: plainDoc("new body")}

	_, err := svc.UpdateDocument(ctx, editor, "doc_1", input)
	domainErr := assertDomainStatus(t, err, http.StatusForbidden)
	if domainErr.Message != "Only document owners can edit" {
		t.Fatalf("unexpected message %q", domainErr.Message)
	}
	if len(fake.versions) != 0 {
		t.Fatalf("rejected save must not record a version, got %d", len(fake.versions))
	}

	owner := Session{UserID: "user_owner", UserName: "Alice"}
	payload, err := svc.UpdateDocument(ctx, owner, "doc_1", input)
	if err != nil {
		t.Fatalf("owner UpdateDocument() error = %v", err)
	}
	if payload["title"] != "Plan v2" {
		t.Fatalf("unexpected title %v", payload["title"])
	}
	if len(fake.versions) != 1 {
		t.Fatalf("expected one version, got %d", len(fake.versions))
	}
}

func TestUpdateDocumentValidation(t *testing.T) {
	svc, fake := newTestService()
	ctx := context.Background()

	fake.addUser("user_owner", "Alice", "alice@example.com")
	fake.addDocument("doc_1", "Plan", `{"type":"doc","content":[]}`, store.VisibilityPrivate, "user_owner", time.Now())
	owner := Session{UserID: "user_owner", UserName: "Alice"}

	_, err := svc.UpdateDocument(ctx, owner, "doc_1", DocumentInput{Title: "  ", Content: plainDoc("x")})
	assertDomainStatus(t, err, http.StatusUnprocessableEntity)

	_, err = svc.UpdateDocument(ctx, owner, "doc_1", DocumentInput{Title: "Plan"})
	assertDomainStatus(t, err, http.StatusUnprocessableEntity)

	_, err = svc.UpdateDocument(ctx, owner, "doc_1", DocumentInput{Title: "Plan", Content: json.RawMessage(`not json`)})
	assertDomainStatus(t, err, http.StatusUnprocessableEntity)
}

func TestUpdateDocumentVisibility(t *testing.T) {
	svc, fake := newTestService()
	ctx := context.Background()

	fake.addUser("user_owner", "Alice", "alice@example.com")
	fake.addDocument("doc_1", "Plan", `{"type":"doc","content":[]}`, store.VisibilityPrivate, "user_owner", time.Now())
	owner := Session{UserID: "user_owner", UserName: "Alice"}

	payload, err := svc.UpdateDocument(ctx, owner, "doc_1", DocumentInput{
		Title: "Plan", Content: plainDoc("body"), Visibility: store.VisibilityPublic,
	})
	if err != nil {
		t.Fatalf("UpdateDocument() error = %v", err)
	}
	if payload["visibility"] != store.VisibilityPublic {
		t.Fatalf("visibility not persisted: got %v, want %q", payload["visibility"], store.VisibilityPublic)
	}
	if _, err := svc.PublicDocument(ctx, "doc_1"); err != nil {
		t.Fatalf("published document must be readable on the share path, got %v", err)
	}

	// Omitting visibility keeps the current value.
	payload, err = svc.UpdateDocument(ctx, owner, "doc_1", DocumentInput{Title: "Plan v2", Content: plainDoc("body")})
	if err != nil {
		t.Fatalf("UpdateDocument() error = %v", err)
	}
	if payload["visibility"] != store.VisibilityPublic {
		t.Fatalf("omitted visibility must keep the current value, got %v", payload["visibility"])
	}

	_, err = svc.UpdateDocument(ctx, owner, "doc_1", DocumentInput{
		Title: "Plan", Content: plainDoc("body"), Visibility: "SECRET",
	})
	assertDomainStatus(t, err, http.StatusUnprocessableEntity)
}

func TestMentionFanOut(t *testing.T) {
	svc, fake := newTestService()
	ctx := context.Background()

	fake.addUser("user_owner", "Alice", "alice@example.com")
	fake.addUser("user_2", "Bob", "bob@example.com")
	fake.addDocument("doc_1", "Plan", `{"type":"doc","content":[]}`, store.VisibilityPrivate, "user_owner", time.Now())
	owner := Session{UserID: "user_owner", UserName: "Alice", Email: "alice@example.com"}

	input := DocumentInput{Title: "Plan", Content: docWithMention("hello", "user_2")}
	if _, err := svc.UpdateDocument(ctx, owner, "doc_1", input); err != nil {
		t.Fatalf("UpdateDocument() error = %v", err)
	}

	perm, err := fake.GetPermission(ctx, "doc_1", "user_2")
	if err != nil {
		t.Fatalf("expected auto-share grant, got %v", err)
	}
	if perm.Level != store.LevelView {
		t.Fatalf("expected VIEW grant, got %q", perm.Level)
	}

	notifications, _ := fake.ListNotifications(ctx, "user_2")
	if len(notifications) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifications))
	}
	want := `Alice mentioned you in "Plan"`
	if notifications[0].Message != want {
		t.Fatalf("notification message = %q, want %q", notifications[0].Message, want)
	}

	// A second save with the same mention must not duplicate the notification.
	if _, err := svc.UpdateDocument(ctx, owner, "doc_1", input); err != nil {
		t.Fatalf("second UpdateDocument() error = %v", err)
	}
	notifications, _ = fake.ListNotifications(ctx, "user_2")
	if len(notifications) != 1 {
		t.Fatalf("expected deduplicated notification, got %d", len(notifications))
	}
}

func TestMentionFanOutResetsLevelToView(t *testing.T) {
	svc, fake := newTestService()
	ctx := context.Background()

	fake.addUser("user_owner", "Alice", "alice@example.com")
	fake.addUser("user_2", "Bob", "bob@example.com")
	fake.addDocument("doc_1", "Plan", `{"type":"doc","content":[]}`, store.VisibilityPrivate, "user_owner", time.Now())
	_ = fake.UpsertPermission(ctx, store.Permission{ID: "perm_1", DocumentID: "doc_1", UserID: "user_2", Level: store.LevelEdit})

	owner := Session{UserID: "user_owner", UserName: "Alice"}
	input := DocumentInput{Title: "Plan", Content: docWithMention("hello", "user_2")}
	if _, err := svc.UpdateDocument(ctx, owner, "doc_1", input); err != nil {
		t.Fatalf("UpdateDocument() error = %v", err)
	}

	perm, err := fake.GetPermission(ctx, "doc_1", "user_2")
	if err != nil {
		t.Fatalf("GetPermission() error = %v", err)
	}
	if perm.Level != store.LevelView {
		t.Fatalf("mention must reset the grant to VIEW, got %q", perm.Level)
	}
}

func TestMentionFanOutSkipsOwnerGrant(t *testing.T) {
	svc, fake := newTestService()
	ctx := context.Background()

	fake.addUser("user_owner", "Alice", "alice@example.com")
	fake.addDocument("doc_1", "Plan", `{"type":"doc","content":[]}`, store.VisibilityPrivate, "user_owner", time.Now())

	owner := Session{UserID: "user_owner", UserName: "Alice"}
	input := DocumentInput{Title: "Plan", Content: docWithMention("note to self", "user_owner")}
	if _, err := svc.UpdateDocument(ctx, owner, "doc_1", input); err != nil {
		t.Fatalf("UpdateDocument() error = %v", err)
	}

	if _, err := fake.GetPermission(ctx, "doc_1", "user_owner"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatal("the owner must never hold a permission row")
	}
	notifications, _ := fake.ListNotifications(ctx, "user_owner")
	if len(notifications) != 1 {
		t.Fatalf("self-mention still notifies, got %d notifications", len(notifications))
	}
}

func TestMentionFanOutFaultIsolation(t *testing.T) {
	svc, fake := newTestService()
	ctx := context.Background()

	fake.addUser("user_owner", "Alice", "alice@example.com")
	fake.addUser("user_2", "Bob", "bob@example.com")
	fake.addUser("user_3", "Carol", "carol@example.com")
	fake.addDocument("doc_1", "Plan", `{"type":"doc","content":[]}`, store.VisibilityPrivate, "user_owner", time.Now())
	fake.failGrantFor["user_2"] = errors.New("grant boom")

	content := json.RawMessage(`{"type":"doc","content":[{"type":"paragraph","content":[
		{"type":"mention","attrs":{"id":"user_2"}},
		{"type":"mention","attrs":{"id":"user_3"}}
	]}]}`)

	owner := Session{UserID: "user_owner", UserName: "Alice"}
	if _, err := svc.UpdateDocument(ctx, owner, "doc_1", DocumentInput{Title: "Plan", Content: content}); err != nil {
		t.Fatalf("fan-out failure must not fail the save: %v", err)
	}

	if _, err := fake.GetPermission(ctx, "doc_1", "user_3"); err != nil {
		t.Fatalf("unaffected user must still be shared with: %v", err)
	}
	notifications, _ := fake.ListNotifications(ctx, "user_3")
	if len(notifications) != 1 {
		t.Fatalf("unaffected user must still be notified, got %d", len(notifications))
	}
}

func TestCreateDocumentDefaults(t *testing.T) {
	svc, fake := newTestService()
	ctx := context.Background()

	fake.addUser("user_1", "Alice", "alice@example.com")
	session := Session{UserID: "user_1", UserName: "Alice"}

	payload, err := svc.CreateDocument(ctx, session, DocumentInput{Title: "Notes"})
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	if payload["visibility"] != store.VisibilityPrivate {
		t.Fatalf("expected PRIVATE default, got %v", payload["visibility"])
	}
	if payload["isOwner"] != true {
		t.Fatal("creator must be the owner")
	}
	if len(fake.versions) != 1 {
		t.Fatalf("create must record the initial version, got %d", len(fake.versions))
	}

	_, err = svc.CreateDocument(ctx, session, DocumentInput{})
	assertDomainStatus(t, err, http.StatusUnprocessableEntity)

	_, err = svc.CreateDocument(ctx, session, DocumentInput{Title: "X", Visibility: "SECRET"})
	assertDomainStatus(t, err, http.StatusUnprocessableEntity)
}

func TestGrantPermission(t *testing.T) {
	svc, fake := newTestService()
	ctx := context.Background()

	fake.addUser("user_owner", "Alice", "alice@example.com")
	fake.addUser("user_2", "Bob", "bob@example.com")
	fake.addDocument("doc_1", "Plan", `{"type":"doc","content":[]}`, store.VisibilityPrivate, "user_owner", time.Now())
	owner := Session{UserID: "user_owner", UserName: "Alice"}

	payload, created, err := svc.GrantPermission(ctx, owner, "doc_1", "bob@example.com", store.LevelView)
	if err != nil {
		t.Fatalf("GrantPermission() error = %v", err)
	}
	if !created {
		t.Fatal("first grant must report created")
	}
	firstID := payload["id"]

	payload, created, err = svc.GrantPermission(ctx, owner, "doc_1", "bob@example.com", store.LevelEdit)
	if err != nil {
		t.Fatalf("repeat GrantPermission() error = %v", err)
	}
	if created {
		t.Fatal("repeat grant must update in place")
	}
	if payload["id"] != firstID {
		t.Fatalf("repeat grant must keep the row: %v vs %v", payload["id"], firstID)
	}
	perm, _ := fake.GetPermission(ctx, "doc_1", "user_2")
	if perm.Level != store.LevelEdit {
		t.Fatalf("expected EDIT after update, got %q", perm.Level)
	}

	_, _, err = svc.GrantPermission(ctx, owner, "doc_1", "bob@example.com", "ADMIN")
	assertDomainStatus(t, err, http.StatusUnprocessableEntity)

	_, _, err = svc.GrantPermission(ctx, owner, "doc_1", "nobody@example.com", store.LevelView)
	assertDomainStatus(t, err, http.StatusNotFound)

	_, _, err = svc.GrantPermission(ctx, owner, "doc_1", "alice@example.com", store.LevelView)
	assertDomainStatus(t, err, http.StatusUnprocessableEntity)

	viewer := Session{UserID: "user_2", UserName: "Bob"}
	_, _, err = svc.GrantPermission(ctx, viewer, "doc_1", "bob@example.com", store.LevelView)
	assertDomainStatus(t, err, http.StatusForbidden)
}

func TestRevokePermission(t *testing.T) {
	svc, fake := newTestService()
	ctx := context.Background()

	fake.addUser("user_owner", "Alice", "alice@example.com")
	fake.addUser("user_2", "Bob", "bob@example.com")
	fake.addDocument("doc_1", "Plan", `{"type":"doc","content":[]}`, store.VisibilityPrivate, "user_owner", time.Now())
	_ = fake.UpsertPermission(ctx, store.Permission{ID: "perm_1", DocumentID: "doc_1", UserID: "user_2", Level: store.LevelView})
	owner := Session{UserID: "user_owner", UserName: "Alice"}

	if err := svc.RevokePermission(ctx, owner, "doc_1", "user_2"); err != nil {
		t.Fatalf("RevokePermission() error = %v", err)
	}
	err := svc.RevokePermission(ctx, owner, "doc_1", "user_2")
	assertDomainStatus(t, err, http.StatusNotFound)

	err = svc.RevokePermission(ctx, owner, "doc_1", "")
	assertDomainStatus(t, err, http.StatusUnprocessableEntity)
}

func TestListDocumentsMergesOwnedAndShared(t *testing.T) {
	svc, fake := newTestService()
	ctx := context.Background()

	fake.addUser("user_1", "Alice", "alice@example.com")
	fake.addUser("user_2", "Bob", "bob@example.com")
	base := time.Now()
	fake.addDocument("doc_old", "Old Own", `{"type":"doc","content":[]}`, store.VisibilityPrivate, "user_1", base.Add(-2*time.Hour))
	fake.addDocument("doc_shared", "Shared", `{"type":"doc","content":[]}`, store.VisibilityPrivate, "user_2", base.Add(-time.Hour))
	fake.addDocument("doc_new", "New Own", `{"type":"doc","content":[]}`, store.VisibilityPrivate, "user_1", base)
	_ = fake.UpsertPermission(ctx, store.Permission{ID: "perm_1", DocumentID: "doc_shared", UserID: "user_1", Level: store.LevelEdit})

	session := Session{UserID: "user_1", UserName: "Alice"}
	items, err := svc.ListDocuments(ctx, session)
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(items))
	}
	if items[0]["id"] != "doc_new" || items[1]["id"] != "doc_shared" || items[2]["id"] != "doc_old" {
		t.Fatalf("unexpected order: %v, %v, %v", items[0]["id"], items[1]["id"], items[2]["id"])
	}
	if items[1]["permission"] != store.LevelEdit {
		t.Fatalf("shared row must carry the level, got %v", items[1]["permission"])
	}
	if _, ok := items[0]["content"]; ok {
		t.Fatal("listings must not include content")
	}

	archived, err := svc.ListArchivedDocuments(ctx, session)
	if err != nil || len(archived) != 0 {
		t.Fatalf("archived listing must be empty, got %v, %v", archived, err)
	}
}

func TestNotificationScoping(t *testing.T) {
	svc, fake := newTestService()
	ctx := context.Background()

	fake.addUser("user_1", "Alice", "alice@example.com")
	fake.addUser("user_2", "Bob", "bob@example.com")
	fake.addDocument("doc_1", "Plan", `{"type":"doc","content":[]}`, store.VisibilityPrivate, "user_1", time.Now())
	_ = fake.InsertNotification(ctx, store.Notification{ID: "ntf_1", UserID: "user_2", DocumentID: "doc_1", Message: "hi"})

	alice := Session{UserID: "user_1"}
	err := svc.MarkNotificationRead(ctx, alice, "ntf_1")
	assertDomainStatus(t, err, http.StatusNotFound)

	bob := Session{UserID: "user_2"}
	if err := svc.MarkNotificationRead(ctx, bob, "ntf_1"); err != nil {
		t.Fatalf("MarkNotificationRead() error = %v", err)
	}
	items, _ := svc.ListNotifications(ctx, bob)
	if len(items) != 1 || items[0]["read"] != true {
		t.Fatalf("expected one read notification, got %v", items)
	}
}

func TestPublicDocument(t *testing.T) {
	svc, fake := newTestService()
	ctx := context.Background()

	fake.addUser("user_1", "Alice", "alice@example.com")
	fake.addDocument("doc_public", "Memo", `{"type":"doc","content":[]}`, store.VisibilityPublic, "user_1", time.Now())
	fake.addDocument("doc_private", "Plan", `{"type":"doc","content":[]}`, store.VisibilityPrivate, "user_1", time.Now())

	payload, err := svc.PublicDocument(ctx, "doc_public")
	if err != nil {
		t.Fatalf("PublicDocument() error = %v", err)
	}
	if payload["title"] != "Memo" {
		t.Fatalf("unexpected title %v", payload["title"])
	}

	if _, err := svc.PublicDocument(ctx, "doc_private"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("private document must read as missing, got %v", err)
	}
}

func TestSearchThroughService(t *testing.T) {
	svc, fake := newTestService()
	ctx := context.Background()

	fake.addUser("user_1", "Alice", "alice@example.com")
	fake.addDocument("doc_1", "Release checklist", string(plainDoc("ship it")), store.VisibilityPrivate, "user_1", time.Now())
	fake.addDocument("doc_2", "Meeting notes", string(plainDoc("discussed the release date")), store.VisibilityPrivate, "user_1", time.Now().Add(-time.Hour))

	session := Session{UserID: "user_1"}
	response, err := svc.Search(ctx, session, "release", "all", 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if response.Total != 2 {
		t.Fatalf("expected 2 results, got %d", response.Total)
	}
	if response.Results[0].ID != "doc_1" {
		t.Fatalf("title match must rank first, got %s", response.Results[0].ID)
	}

	response, err = svc.Search(ctx, session, "   ", "all", 0)
	if err != nil {
		t.Fatalf("blank Search() error = %v", err)
	}
	if response.Total != 0 || len(response.Results) != 0 {
		t.Fatalf("blank query must return empty, got %+v", response)
	}
}

func TestSearchScopesRespectAuthorship(t *testing.T) {
	svc, fake := newTestService()
	ctx := context.Background()

	fake.addUser("user_1", "Alice", "alice@example.com")
	fake.addUser("user_2", "Bob", "bob@example.com")
	fake.addDocument("doc_owned", "Plan A", string(plainDoc("mine")), store.VisibilityPrivate, "user_1", time.Now())
	fake.addDocument("doc_shared", "Plan B", string(plainDoc("theirs")), store.VisibilityPrivate, "user_2", time.Now())
	fake.addDocument("doc_stale", "Plan C", string(plainDoc("old")), store.VisibilityPrivate, "user_1", time.Now().AddDate(0, 0, -60))
	// A grant on someone else's document must never make it "owned", and a
	// grant on the requester's own document must not duplicate it.
	_ = fake.UpsertPermission(ctx, store.Permission{ID: "perm_1", DocumentID: "doc_shared", UserID: "user_1", Level: store.LevelView})
	_ = fake.UpsertPermission(ctx, store.Permission{ID: "perm_2", DocumentID: "doc_owned", UserID: "user_1", Level: store.LevelView})

	session := Session{UserID: "user_1"}

	ids := func(scope string) map[string]bool {
		t.Helper()
		response, err := svc.Search(ctx, session, "plan", scope, 0)
		if err != nil {
			t.Fatalf("Search(%q) error = %v", scope, err)
		}
		got := make(map[string]bool, len(response.Results))
		for _, result := range response.Results {
			if got[result.ID] {
				t.Fatalf("scope %q returned %s twice", scope, result.ID)
			}
			got[result.ID] = true
		}
		return got
	}

	owned := ids("owned")
	if !owned["doc_owned"] || !owned["doc_stale"] || len(owned) != 2 {
		t.Fatalf("owned scope must return only authored documents, got %v", owned)
	}

	shared := ids("shared")
	if !shared["doc_shared"] || len(shared) != 1 {
		t.Fatalf("shared scope must return only granted foreign documents, got %v", shared)
	}

	recent := ids("recent")
	if !recent["doc_owned"] || !recent["doc_shared"] || recent["doc_stale"] || len(recent) != 2 {
		t.Fatalf("recent scope must drop documents older than 30 days, got %v", recent)
	}
}

func TestSearchUsersExcludesRequester(t *testing.T) {
	svc, fake := newTestService()
	ctx := context.Background()

	fake.addUser("user_1", "Alice", "alice@example.com")
	fake.addUser("user_2", "Alicia", "alicia@example.com")

	session := Session{UserID: "user_1"}
	items, err := svc.SearchUsers(ctx, session, "ali")
	if err != nil {
		t.Fatalf("SearchUsers() error = %v", err)
	}
	if len(items) != 1 || items[0]["id"] != "user_2" {
		t.Fatalf("expected only the other user, got %v", items)
	}
}
