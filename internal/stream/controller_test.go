package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/loekTheDreamer/neoplay-backend/internal/agent"
	"github.com/loekTheDreamer/neoplay-backend/internal/llm"
	"github.com/loekTheDreamer/neoplay-backend/internal/models"
	"github.com/loekTheDreamer/neoplay-backend/internal/session"
)

type appendCall struct {
	threadID uuid.UUID
	senderID *uuid.UUID
	role     string
	content  string
}

type recordingStore struct {
	mu      sync.Mutex
	appends []appendCall
}

func (s *recordingStore) Append(_ context.Context, threadID uuid.UUID, senderID *uuid.UUID, role, content string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appends = append(s.appends, appendCall{threadID, senderID, role, content})
	return &models.Message{ID: uuid.New(), ThreadID: threadID, SenderID: senderID, Role: role, Content: content, CreatedAt: time.Now()}, nil
}

func (s *recordingStore) calls() []appendCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]appendCall, len(s.appends))
	copy(out, s.appends)
	return out
}

// scriptedStream plays back a fixed delta sequence, then EOF or a scripted
// failure.
type scriptedStream struct {
	deltas []llm.Delta
	err    error
	i      int
}

func (s *scriptedStream) Recv() (llm.Delta, error) {
	if s.i < len(s.deltas) {
		d := s.deltas[s.i]
		s.i++
		return d, nil
	}
	if s.err != nil {
		return llm.Delta{}, s.err
	}
	return llm.Delta{}, io.EOF
}

func (s *scriptedStream) Close() error { return nil }

type scriptedStreamer struct {
	mu     sync.Mutex
	stream llm.Stream
	calls  int
}

func (f *scriptedStreamer) StreamCompletion(_ context.Context, _ llm.Request) (llm.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.stream, nil
}

func (f *scriptedStreamer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// blockingStream emits its deltas and then blocks until the request context
// is cancelled, simulating a vendor that keeps the wire open.
type blockingStream struct {
	deltas []llm.Delta
	i      int
	ctx    context.Context
}

func (s *blockingStream) Recv() (llm.Delta, error) {
	if s.i < len(s.deltas) {
		d := s.deltas[s.i]
		s.i++
		return d, nil
	}
	<-s.ctx.Done()
	return llm.Delta{}, s.ctx.Err()
}

func (s *blockingStream) Close() error { return nil }

type blockingStreamer struct {
	deltas []llm.Delta
}

func (f *blockingStreamer) StreamCompletion(ctx context.Context, _ llm.Request) (llm.Stream, error) {
	return &blockingStream{deltas: f.deltas, ctx: ctx}, nil
}

type sseEvent struct {
	id    string
	event string
	data  string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	for _, block := range strings.Split(body, "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "id: "):
				ev.id = strings.TrimPrefix(line, "id: ")
			case strings.HasPrefix(line, "event: "):
				ev.event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = strings.TrimPrefix(line, "data: ")
			}
		}
		events = append(events, ev)
	}
	return events
}

func newController(streamer llm.Streamer) (*Controller, *recordingStore, *session.Manager) {
	mgr := session.NewManager(session.NewMemoryStore(), "test-secret", false)
	registry := agent.NewRegistry(map[agent.Vendor]llm.Streamer{
		agent.VendorXAI: streamer,
	})
	store := &recordingStore{}
	return NewController(mgr, registry, store), store, mgr
}

// doSetup runs the setup half and returns the cookie and session id the
// stream request must present.
func doSetup(t *testing.T, ctrl *Controller, userID, threadID, agentName string) (*http.Cookie, string) {
	t.Helper()
	body, _ := json.Marshal(models.SetupStreamRequest{
		ChatHistory: []models.ChatMessage{
			{Role: models.RoleAssistant, Content: "what should we build?"},
			{Role: models.RoleUser, Content: "make pong", ID: "m-2", SenderID: userID, CreatedAt: "2026-08-30T10:00:00Z"},
		},
		ThreadID:      threadID,
		SelectedAgent: agentName,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/setup-stream", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	ctrl.Setup(rec, req, userID)

	if rec.Code != http.StatusOK {
		t.Fatalf("Setup returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.SetupStreamResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode setup response: %v", err)
	}
	if !resp.Success || resp.SessionID == "" {
		t.Fatalf("Unexpected setup response: %+v", resp)
	}

	cookies := rec.Result().Cookies()
	for _, c := range cookies {
		if c.Name == session.CookieName {
			return c, resp.SessionID
		}
	}
	t.Fatal("Setup did not set a session cookie")
	return nil, ""
}

func TestSetup_RejectsMissingThreadID(t *testing.T) {
	ctrl, _, _ := newController(&scriptedStreamer{})

	body, _ := json.Marshal(models.SetupStreamRequest{
		ChatHistory:   []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}},
		SelectedAgent: "grok",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/setup-stream", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	ctrl.Setup(rec, req, uuid.NewString())

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestSetup_RejectsEmptyHistory(t *testing.T) {
	ctrl, _, _ := newController(&scriptedStreamer{})

	body, _ := json.Marshal(models.SetupStreamRequest{
		ThreadID:      uuid.NewString(),
		SelectedAgent: "grok",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/setup-stream", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	ctrl.Setup(rec, req, uuid.NewString())

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestOpen_MissingContextIsJSON400(t *testing.T) {
	ctrl, _, _ := newController(&scriptedStreamer{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/stream", nil)
	rec := httptest.NewRecorder()
	ctrl.Open(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Errorf("Expected JSON error, got Content-Type %q", ct)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Body is not JSON: %v", err)
	}
	if resp["error"] == "" {
		t.Error("Expected an error message")
	}
}

func TestOpen_StreamsOrderedEventsAndPersists(t *testing.T) {
	streamer := &scriptedStreamer{stream: &scriptedStream{
		deltas: []llm.Delta{{Text: "Hel"}, {Text: "lo"}, {Text: " world"}},
	}}
	ctrl, store, _ := newController(streamer)

	userID := uuid.NewString()
	threadID := uuid.NewString()
	cookie, sessionID := doSetup(t, ctrl, userID, threadID, "grok")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/stream", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	ctrl.Open(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Expected SSE content type, got %q", ct)
	}

	events := parseSSE(t, rec.Body.String())
	if len(events) != 4 {
		t.Fatalf("Expected 3 message events + done, got %d: %+v", len(events), events)
	}
	wantTexts := []string{"Hel", "lo", " world"}
	for i, want := range wantTexts {
		ev := events[i]
		wantID := fmt.Sprintf("%s-%d", sessionID, i+1)
		if ev.id != wantID || ev.event != "message" {
			t.Errorf("Event %d = id %q event %q, want id %q event message", i, ev.id, ev.event, wantID)
		}
		var data map[string]string
		if err := json.Unmarshal([]byte(ev.data), &data); err != nil {
			t.Fatalf("Event %d data not JSON: %v", i, err)
		}
		if data["content"] != want {
			t.Errorf("Event %d content = %q, want %q", i, data["content"], want)
		}
	}
	final := events[3]
	if final.event != "done" || final.id != sessionID+"-done" {
		t.Errorf("Terminal event = %+v, want done with id %s-done", final, sessionID)
	}

	calls := store.calls()
	if len(calls) != 2 {
		t.Fatalf("Expected user + assistant persisted, got %d appends", len(calls))
	}
	if calls[0].role != models.RoleUser || calls[0].content != "make pong" {
		t.Errorf("First append = %+v, want the newest user turn", calls[0])
	}
	if calls[0].senderID == nil || calls[0].senderID.String() != userID {
		t.Errorf("User turn sender = %v, want %s", calls[0].senderID, userID)
	}
	if calls[1].role != models.RoleAssistant || calls[1].content != "Hello world" {
		t.Errorf("Second append = %+v, want full assistant text", calls[1])
	}
	if calls[1].senderID != nil {
		t.Errorf("Assistant turn carried sender %v", calls[1].senderID)
	}
}

func TestOpen_ContextConsumedExactlyOnce(t *testing.T) {
	streamer := &scriptedStreamer{stream: &scriptedStream{deltas: []llm.Delta{{Text: "hi"}}}}
	ctrl, _, _ := newController(streamer)

	cookie, _ := doSetup(t, ctrl, uuid.NewString(), uuid.NewString(), "grok")

	first := httptest.NewRequest(http.MethodGet, "/api/v1/chat/stream", nil)
	first.AddCookie(cookie)
	ctrl.Open(httptest.NewRecorder(), first)

	second := httptest.NewRequest(http.MethodGet, "/api/v1/chat/stream", nil)
	second.AddCookie(cookie)
	rec := httptest.NewRecorder()
	ctrl.Open(rec, second)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Second stream request got %d, want 400", rec.Code)
	}
}

func TestOpen_VendorFailureEmitsErrorAndSkipsPersistence(t *testing.T) {
	streamer := &scriptedStreamer{stream: &scriptedStream{
		deltas: []llm.Delta{{Text: "par"}, {Text: "tial"}},
		err:    errors.New("upstream hung up"),
	}}
	ctrl, store, _ := newController(streamer)

	cookie, _ := doSetup(t, ctrl, uuid.NewString(), uuid.NewString(), "grok")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/stream", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	ctrl.Open(rec, req)

	events := parseSSE(t, rec.Body.String())
	last := events[len(events)-1]
	if last.event != "error" {
		t.Fatalf("Terminal event = %+v, want error", last)
	}
	var data map[string]string
	if err := json.Unmarshal([]byte(last.data), &data); err != nil {
		t.Fatalf("Error data not JSON: %v", err)
	}
	if data["error"] != "Streaming error occurred" || !strings.Contains(data["details"], "upstream hung up") {
		t.Errorf("Error payload = %+v", data)
	}
	for _, ev := range events {
		if ev.event == "done" {
			t.Error("Done event emitted after a vendor failure")
		}
	}

	calls := store.calls()
	if len(calls) != 1 || calls[0].role != models.RoleUser {
		t.Errorf("Expected only the user turn persisted, got %+v", calls)
	}
}

func TestOpen_UnknownAgentMakesNoVendorCall(t *testing.T) {
	streamer := &scriptedStreamer{stream: &scriptedStream{deltas: []llm.Delta{{Text: "hi"}}}}
	ctrl, store, _ := newController(streamer)

	cookie, _ := doSetup(t, ctrl, uuid.NewString(), uuid.NewString(), "gpt-5")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/stream", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	ctrl.Open(rec, req)

	events := parseSSE(t, rec.Body.String())
	if len(events) != 1 || events[0].event != "error" {
		t.Fatalf("Expected a single error event, got %+v", events)
	}
	if streamer.callCount() != 0 {
		t.Errorf("Vendor was called %d times for an unknown agent", streamer.callCount())
	}
	if calls := store.calls(); len(calls) != 1 {
		t.Errorf("Expected only the user turn persisted, got %+v", calls)
	}

	// The context is still consumed: a retry must re-run setup.
	retry := httptest.NewRequest(http.MethodGet, "/api/v1/chat/stream", nil)
	retry.AddCookie(cookie)
	rec2 := httptest.NewRecorder()
	ctrl.Open(rec2, retry)
	if rec2.Code != http.StatusBadRequest {
		t.Errorf("Retry after unknown agent got %d, want 400", rec2.Code)
	}
}

func TestOpen_ClientDisconnectStopsStreamWithoutPersisting(t *testing.T) {
	ctrl, store, _ := newController(&blockingStreamer{
		deltas: []llm.Delta{{Text: "one"}, {Text: "two"}},
	})

	cookie, _ := doSetup(t, ctrl, uuid.NewString(), uuid.NewString(), "grok")

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/stream", nil).WithContext(ctx)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.Open(rec, req)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Open did not return after client disconnect")
	}

	events := parseSSE(t, rec.Body.String())
	for _, ev := range events {
		if ev.event == "done" || ev.event == "error" {
			t.Errorf("Unexpected terminal event after disconnect: %+v", ev)
		}
	}
	calls := store.calls()
	if len(calls) != 1 || calls[0].role != models.RoleUser {
		t.Errorf("Expected only the user turn persisted, got %+v", calls)
	}
}
