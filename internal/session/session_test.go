package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type streamCtx struct {
	ThreadID string `json:"threadId"`
	Agent    string `json:"selectedAgent"`
}

func TestTake_ConsumesExactlyOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess := newSession("sid-1", store, time.Hour, true)
	if err := sess.Set("streamContext", streamCtx{ThreadID: "t1", Agent: "grok"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := sess.Save(ctx); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// A later request on the same session consumes the context once.
	later := newSession("sid-1", store, time.Hour, false)
	var got streamCtx
	found, err := later.Take(ctx, "streamContext", &got)
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	if !found {
		t.Fatal("expected first Take to find the context")
	}
	if got.ThreadID != "t1" || got.Agent != "grok" {
		t.Errorf("unexpected context: %+v", got)
	}

	// A duplicated stream request observes nothing.
	found, err = later.Take(ctx, "streamContext", &got)
	if err != nil {
		t.Fatalf("second Take failed: %v", err)
	}
	if found {
		t.Error("second Take must not observe the consumed context")
	}
}

func TestSet_LastWriteWins(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, thread := range []string{"old-thread", "new-thread"} {
		sess := newSession("sid-2", store, time.Hour, false)
		if err := sess.Set("streamContext", streamCtx{ThreadID: thread}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := sess.Save(ctx); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	var got streamCtx
	found, err := newSession("sid-2", store, time.Hour, false).Take(ctx, "streamContext", &got)
	if err != nil || !found {
		t.Fatalf("Take failed: found=%v err=%v", found, err)
	}
	if got.ThreadID != "new-thread" {
		t.Errorf("expected the second setup to win, got %q", got.ThreadID)
	}
}

func TestGet_UnsavedWritesStayPrivate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess := newSession("sid-3", store, time.Hour, true)
	sess.Set("streamContext", streamCtx{ThreadID: "pending"})

	// Another connection on the same session must not see the unsaved write.
	other := newSession("sid-3", store, time.Hour, false)
	var got streamCtx
	found, err := other.Get(ctx, "streamContext", &got)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("unsaved write leaked to another session view")
	}

	// The writing connection reads its own buffer.
	found, err = sess.Get(ctx, "streamContext", &got)
	if err != nil || !found {
		t.Fatalf("expected buffered read, found=%v err=%v", found, err)
	}
	if got.ThreadID != "pending" {
		t.Errorf("unexpected buffered value: %+v", got)
	}
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Set(ctx, "sid-4", "streamContext", []byte(`{}`), time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := store.Take(ctx, "sid-4", "streamContext"); err != ErrNoValue {
		t.Errorf("expected ErrNoValue for expired entry, got %v", err)
	}
}

func TestManager_CookieRoundTrip(t *testing.T) {
	m := NewManager(NewMemoryStore(), "test-secret", false)

	req := httptest.NewRequest(http.MethodPost, "/chat/setup-stream", nil)
	sess := m.Request(req)
	if !sess.IsNew() {
		t.Fatal("expected a fresh session without a cookie")
	}

	rr := httptest.NewRecorder()
	m.WriteCookie(rr, sess)

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName {
		t.Fatalf("expected one %s cookie, got %v", CookieName, cookies)
	}

	// Replay the cookie on the paired stream request.
	req2 := httptest.NewRequest(http.MethodGet, "/chat/stream", nil)
	req2.AddCookie(cookies[0])
	sess2 := m.Request(req2)
	if sess2.IsNew() {
		t.Fatal("expected the cookie to resolve the existing session")
	}
	if sess2.ID != sess.ID {
		t.Errorf("session id mismatch: %q vs %q", sess2.ID, sess.ID)
	}
}

func TestManager_TamperedCookieRejected(t *testing.T) {
	m := NewManager(NewMemoryStore(), "test-secret", false)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	sess := m.Request(req)
	rr := httptest.NewRecorder()
	m.WriteCookie(rr, sess)
	cookie := rr.Result().Cookies()[0]

	// Swap the id but keep the signature.
	cookie.Value = "forged-id." + cookie.Value[len(sess.ID)+1:]
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookie)

	sess2 := m.Request(req2)
	if !sess2.IsNew() {
		t.Error("tampered cookie must not resolve a session")
	}
	if sess2.ID == "forged-id" {
		t.Error("forged id accepted")
	}
}
