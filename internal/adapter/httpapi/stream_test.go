package httpapi

import (
	"context"
	"errors"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"inkwell-ai/internal/domain"
)

func dialChat(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	ws, _, err := websocket.Dial(ctx, url+"/chat/stream", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close(websocket.StatusNormalClosure, "") })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) chatOutbound {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var out chatOutbound
	if err := wsjson.Read(ctx, ws, &out); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return out
}

func TestChatStreamHappyPath(t *testing.T) {
	gw := &stubAPIGateway{deltas: []domain.StreamDelta{
		{Content: "Hello"},
		{Content: " there"},
		{Done: true, Usage: &domain.Usage{InputTokens: 3, OutputTokens: 2, TotalTokens: 5}},
	}}
	ts := newTestAPI(t, &stubExecutor{}, gw)
	ws := dialChat(t, ts.URL)

	// First frame announces the session.
	frame := readFrame(t, ws)
	if frame.Type != "session" || frame.SessionID == "" {
		t.Fatalf("first frame = %+v, want session announcement", frame)
	}

	ctx := context.Background()
	if err := wsjson.Write(ctx, ws, chatInbound{Content: "hi"}); err != nil {
		t.Fatal(err)
	}

	var got string
	for {
		frame = readFrame(t, ws)
		if frame.Type == "delta" {
			got += frame.Content
			continue
		}
		break
	}
	if frame.Type != "done" {
		t.Fatalf("final frame = %+v, want done", frame)
	}
	if got != "Hello there" {
		t.Errorf("assembled = %q", got)
	}
	if frame.Usage == nil || frame.Usage.TotalTokens != 5 {
		t.Errorf("usage = %+v", frame.Usage)
	}
}

func TestChatStreamEmptyMessage(t *testing.T) {
	ts := newTestAPI(t, &stubExecutor{}, &stubAPIGateway{})
	ws := dialChat(t, ts.URL)
	readFrame(t, ws) // session frame

	ctx := context.Background()
	if err := wsjson.Write(ctx, ws, chatInbound{}); err != nil {
		t.Fatal(err)
	}

	frame := readFrame(t, ws)
	if frame.Type != "error" || frame.Code != string(domain.CodeInvalidInput) {
		t.Fatalf("frame = %+v, want invalid-input error", frame)
	}
}

func TestChatStreamProviderError(t *testing.T) {
	gw := &stubAPIGateway{
		streamErr: &domain.ProviderError{Provider: "anthropic", Err: errors.New("upstream down")},
	}
	ts := newTestAPI(t, &stubExecutor{}, gw)
	ws := dialChat(t, ts.URL)
	readFrame(t, ws) // session frame

	ctx := context.Background()
	if err := wsjson.Write(ctx, ws, chatInbound{Content: "hi"}); err != nil {
		t.Fatal(err)
	}

	frame := readFrame(t, ws)
	if frame.Type != "error" {
		t.Fatalf("frame = %+v, want error", frame)
	}
	if frame.Provider != "anthropic" {
		t.Errorf("provider = %q, want anthropic", frame.Provider)
	}
	if frame.Code != string(domain.CodeProviderFailure) {
		t.Errorf("code = %q", frame.Code)
	}

	// The connection survives a failed turn.
	gw.streamErr = nil
	gw.deltas = []domain.StreamDelta{{Content: "ok"}, {Done: true}}
	if err := wsjson.Write(ctx, ws, chatInbound{Content: "again"}); err != nil {
		t.Fatal(err)
	}
	frame = readFrame(t, ws)
	if frame.Type != "delta" || frame.Content != "ok" {
		t.Fatalf("frame after recovery = %+v", frame)
	}
}

func TestChatStreamEditorPatchFlow(t *testing.T) {
	ts := newTestAPI(t, &stubExecutor{}, &stubAPIGateway{})
	ws := dialChat(t, ts.URL)
	readFrame(t, ws) // session frame

	ctx := context.Background()
	if err := wsjson.Write(ctx, ws, chatInbound{Type: "document.sync", Content: "hello world"}); err != nil {
		t.Fatal(err)
	}
	frame := readFrame(t, ws)
	if frame.Type != "document" || frame.Document == nil {
		t.Fatalf("frame = %+v, want document", frame)
	}
	if frame.Document.Version != 1 || frame.Document.Length != 11 {
		t.Errorf("document = %+v, want version 1 length 11", frame.Document)
	}

	if err := wsjson.Write(ctx, ws, chatInbound{Type: "selection.set", From: 6, To: 11}); err != nil {
		t.Fatal(err)
	}
	readFrame(t, ws) // document frame

	if err := wsjson.Write(ctx, ws, chatInbound{Type: "patch.preview", Content: "gophers"}); err != nil {
		t.Fatal(err)
	}
	frame = readFrame(t, ws)
	if frame.Type != "preview" || frame.Preview == nil {
		t.Fatalf("frame = %+v, want preview", frame)
	}
	p := frame.Preview
	if p.ProposalID == "" || p.From != 6 || p.To != 11 || p.Original != "world" || p.Proposed != "gophers" {
		t.Errorf("preview = %+v", p)
	}
	if p.BaseVersion != 1 {
		t.Errorf("base version = %d, want 1", p.BaseVersion)
	}

	if err := wsjson.Write(ctx, ws, chatInbound{Type: "patch.commit"}); err != nil {
		t.Fatal(err)
	}
	frame = readFrame(t, ws)
	if frame.Type != "applied" || frame.Document == nil {
		t.Fatalf("frame = %+v, want applied", frame)
	}
	if frame.Document.Version != 2 || frame.Document.Length != len("hello gophers") {
		t.Errorf("document after apply = %+v", frame.Document)
	}

	// A second preview can be cancelled without touching the document.
	if err := wsjson.Write(ctx, ws, chatInbound{Type: "patch.preview", Content: "again"}); err != nil {
		t.Fatal(err)
	}
	readFrame(t, ws) // preview frame
	if err := wsjson.Write(ctx, ws, chatInbound{Type: "patch.cancel"}); err != nil {
		t.Fatal(err)
	}
	frame = readFrame(t, ws)
	if frame.Type != "cancelled" {
		t.Fatalf("frame = %+v, want cancelled", frame)
	}
}

func TestChatStreamStaleCommit(t *testing.T) {
	ts := newTestAPI(t, &stubExecutor{}, &stubAPIGateway{})
	ws := dialChat(t, ts.URL)
	readFrame(t, ws) // session frame

	ctx := context.Background()
	for _, msg := range []chatInbound{
		{Type: "document.sync", Content: "hello world"},
		{Type: "selection.set", From: 6, To: 11},
	} {
		if err := wsjson.Write(ctx, ws, msg); err != nil {
			t.Fatal(err)
		}
		readFrame(t, ws)
	}
	if err := wsjson.Write(ctx, ws, chatInbound{Type: "patch.preview", Content: "gophers"}); err != nil {
		t.Fatal(err)
	}
	readFrame(t, ws) // preview frame

	// The document moves on under the open proposal.
	if err := wsjson.Write(ctx, ws, chatInbound{Type: "document.sync", Content: "rewritten elsewhere"}); err != nil {
		t.Fatal(err)
	}
	readFrame(t, ws) // document frame

	if err := wsjson.Write(ctx, ws, chatInbound{Type: "patch.commit"}); err != nil {
		t.Fatal(err)
	}
	frame := readFrame(t, ws)
	if frame.Type != "error" || frame.Code != string(domain.CodeStalePatch) {
		t.Fatalf("frame = %+v, want stale-patch error", frame)
	}
}

func TestChatStreamPreviewWithoutDocument(t *testing.T) {
	ts := newTestAPI(t, &stubExecutor{}, &stubAPIGateway{})
	ws := dialChat(t, ts.URL)
	readFrame(t, ws) // session frame

	ctx := context.Background()
	if err := wsjson.Write(ctx, ws, chatInbound{Type: "patch.preview", Content: "text"}); err != nil {
		t.Fatal(err)
	}
	frame := readFrame(t, ws)
	if frame.Type != "error" || frame.Code != string(domain.CodeInvalidInput) {
		t.Fatalf("frame = %+v, want invalid-input error", frame)
	}
}

func TestChatStreamUnknownMessageType(t *testing.T) {
	ts := newTestAPI(t, &stubExecutor{}, &stubAPIGateway{})
	ws := dialChat(t, ts.URL)
	readFrame(t, ws) // session frame

	ctx := context.Background()
	if err := wsjson.Write(ctx, ws, chatInbound{Type: "bogus"}); err != nil {
		t.Fatal(err)
	}
	frame := readFrame(t, ws)
	if frame.Type != "error" || frame.Code != string(domain.CodeInvalidInput) {
		t.Fatalf("frame = %+v, want invalid-input error", frame)
	}
}

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get missing = %v, want ErrSessionNotFound", err)
	}

	session := &domain.ChatSession{
		ID:       "s1",
		Status:   domain.SessionActive,
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
	}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "hi" {
		t.Errorf("messages = %+v", got.Messages)
	}

	// The copy is isolated from later caller mutation.
	got.Messages[0].Content = "mutated"
	again, _ := store.Get(ctx, "s1")
	if again.Messages[0].Content != "hi" {
		t.Error("store must hand out isolated copies")
	}

	if err := store.Save(ctx, &domain.ChatSession{}); err == nil {
		t.Error("Save without id should fail")
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}
