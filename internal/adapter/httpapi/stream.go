package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"inkwell-ai/internal/adapter/editor"
	"inkwell-ai/internal/domain"
	"inkwell-ai/internal/usecase/patch"
)

// chatInbound is one client message on the chat stream. Type selects the
// operation: "" or "chat" runs a completion turn; "document.sync",
// "selection.set", "patch.preview", "patch.commit", and "patch.cancel"
// drive the per-connection editor buffer and patch lifecycle.
type chatInbound struct {
	Type         string `json:"type,omitempty"`
	Content      string `json:"content"`
	Provider     string `json:"provider,omitempty"`
	Model        string `json:"model,omitempty"`
	From         int    `json:"from,omitempty"`
	To           int    `json:"to,omitempty"`
	TrackChanges bool   `json:"track_changes,omitempty"`
}

// chatOutbound is one server frame on the chat stream.
type chatOutbound struct {
	Type      string         `json:"type"` // "session", "delta", "done", "error", "document", "preview", "applied", "cancelled"
	SessionID string         `json:"session_id,omitempty"`
	Content   string         `json:"content,omitempty"`
	Usage     *domain.Usage  `json:"usage,omitempty"`
	Error     string         `json:"error,omitempty"`
	Code      string         `json:"code,omitempty"`
	Provider  string         `json:"provider,omitempty"`
	Document  *documentFrame `json:"document,omitempty"`
	Preview   *previewFrame  `json:"preview,omitempty"`
}

// handleChatStream runs a free-form chat over a WebSocket. Each chat
// message streams completion deltas back; the conversation accumulates in a
// per-connection session. The same socket carries the editor protocol: a
// per-connection document buffer plus a patch controller that previews and
// applies model output into it. Closing the socket cancels any in-flight
// stream.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{
			"localhost",
			"localhost:*",
			"127.0.0.1",
			"127.0.0.1:*",
			"[::1]",
			"[::1]:*",
		},
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer ws.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	session := s.openSession(ctx)
	buf := editor.NewBuffer(session.ID, s.bus)
	ctrl := patch.NewController(buf, s.bus, s.logger)

	if err := wsjson.Write(ctx, ws, chatOutbound{Type: "session", SessionID: session.ID}); err != nil {
		return
	}
	s.logger.Info("chat stream opened", "session", session.ID)
	defer s.logger.Info("chat stream closed", "session", session.ID)

	for {
		var in chatInbound
		if err := wsjson.Read(ctx, ws, &in); err != nil {
			return // connection closed
		}
		switch in.Type {
		case "", "chat":
			if in.Content == "" {
				s.writeStreamError(ctx, ws,
					domain.NewDomainError("api.ChatStream", domain.ErrInvalidInput, "content is required"))
				continue
			}
			if !s.serveChatTurn(ctx, ws, session, in) {
				return
			}
		default:
			if !s.handleEditorMessage(ctx, ws, buf, ctrl, in) {
				return
			}
		}
	}
}

// serveChatTurn streams one completion turn. Returns false when the
// connection is gone.
func (s *Server) serveChatTurn(ctx context.Context, ws *websocket.Conn, session *domain.ChatSession, in chatInbound) bool {
	session.Messages = append(session.Messages, domain.Message{Role: domain.RoleUser, Content: in.Content})

	provider := in.Provider
	model := in.Model
	if provider == "" {
		provider = session.Preference.Provider
	}
	if model == "" {
		model = session.Preference.Model
	}

	deltas, err := s.gateway.CompleteStream(ctx, domain.CompletionRequest{
		Provider: provider,
		Model:    model,
		Messages: session.Messages,
	})
	if err != nil {
		// The connection stays usable; the turn failed, not the socket.
		session.Messages = session.Messages[:len(session.Messages)-1]
		s.publishEvent(ctx, domain.EventStreamError, session.ID, map[string]any{"error": err.Error()})
		return s.writeStreamError(ctx, ws, err)
	}
	s.publishEvent(ctx, domain.EventStreamStarted, session.ID, nil)

	var assembled string
	var usage *domain.Usage
	for delta := range deltas {
		if delta.Content != "" {
			assembled += delta.Content
			if err := wsjson.Write(ctx, ws, chatOutbound{Type: "delta", Content: delta.Content}); err != nil {
				return false
			}
		}
		if delta.Done {
			usage = delta.Usage
		}
	}
	if ctx.Err() != nil {
		return false
	}

	session.Messages = append(session.Messages, domain.Message{Role: domain.RoleAssistant, Content: assembled})
	if usage != nil {
		session.TotalTokens += usage.TotalTokens
	}
	session.UpdatedAt = time.Now().UTC()
	s.saveSession(ctx, session)
	s.publishEvent(ctx, domain.EventStreamCompleted, session.ID, map[string]any{"chars": len(assembled)})

	return wsjson.Write(ctx, ws, chatOutbound{Type: "done", Usage: usage}) == nil
}

func (s *Server) writeStreamError(ctx context.Context, ws *websocket.Conn, err error) bool {
	out := chatOutbound{
		Type:  "error",
		Error: err.Error(),
		Code:  string(domain.ErrorCodeOf(err)),
	}
	var provErr *domain.ProviderError
	if errors.As(err, &provErr) {
		out.Provider = provErr.Provider
	}
	return wsjson.Write(ctx, ws, out) == nil
}

func (s *Server) openSession(ctx context.Context) *domain.ChatSession {
	now := time.Now().UTC()
	session := &domain.ChatSession{
		ID:        newSessionID(now),
		Status:    domain.SessionActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.saveSession(ctx, session)
	return session
}

func (s *Server) saveSession(ctx context.Context, session *domain.ChatSession) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger.Warn("session save failed", "session", session.ID, "error", err)
	}
}

func (s *Server) publishEvent(ctx context.Context, t domain.EventType, sessionID string, payload map[string]any) {
	if s.bus == nil {
		return
	}
	var raw []byte
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	s.bus.Publish(ctx, domain.Event{Type: t, SessionID: sessionID, Payload: raw})
}

func newSessionID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
