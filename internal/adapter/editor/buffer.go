package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"inkwell-ai/internal/domain"
)

// Buffer is an in-memory document view backing one editing session. All
// offsets are rune offsets into the document text, end-exclusive. Every
// mutation bumps the version counter, so stale patch proposals can be
// detected by comparing versions.
type Buffer struct {
	mu        sync.RWMutex
	runes     []rune
	version   uint64
	ready     bool
	selection *domain.DocumentRange
	cursor    int

	sessionID string
	bus       domain.EventBus
}

var _ domain.DocumentView = (*Buffer)(nil)

// NewBuffer creates an empty, not-yet-ready buffer bound to a session.
// The buffer becomes ready on the first SetContent call.
func NewBuffer(sessionID string, bus domain.EventBus) *Buffer {
	return &Buffer{
		sessionID: sessionID,
		bus:       bus,
	}
}

// Ready reports whether the editor has synced content into the buffer.
func (b *Buffer) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ready
}

// Length returns the document length in runes.
func (b *Buffer) Length() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.runes)
}

// Version returns the current document version. The version increases on
// every content mutation and never decreases.
func (b *Buffer) Version() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// Slice returns the text within r.
func (b *Buffer) Slice(r domain.DocumentRange) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !r.ValidFor(len(b.runes)) {
		return "", domain.NewDomainError("Buffer.Slice", domain.ErrInvalidInput,
			fmt.Sprintf("range [%d,%d) outside document of length %d", r.From, r.To, len(b.runes)))
	}
	return string(b.runes[r.From:r.To]), nil
}

// Selection returns the active selection, if any.
func (b *Buffer) Selection() (domain.DocumentRange, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.selection == nil {
		return domain.DocumentRange{}, false
	}
	return *b.selection, true
}

// CurrentLine returns the range of the line containing the cursor,
// excluding the trailing newline.
func (b *Buffer) CurrentLine() domain.DocumentRange {
	b.mu.RLock()
	defer b.mu.RUnlock()

	cursor := b.cursor
	if cursor > len(b.runes) {
		cursor = len(b.runes)
	}

	from := cursor
	for from > 0 && b.runes[from-1] != '\n' {
		from--
	}
	to := cursor
	for to < len(b.runes) && b.runes[to] != '\n' {
		to++
	}
	return domain.DocumentRange{From: from, To: to}
}

// SetContent replaces the whole document, marking the buffer ready. The
// first call publishes editor.ready; every call publishes document.changed.
func (b *Buffer) SetContent(ctx context.Context, text string) {
	b.mu.Lock()
	oldLen := len(b.runes)
	b.runes = []rune(text)
	b.version++
	first := !b.ready
	b.ready = true
	b.selection = nil
	if b.cursor > len(b.runes) {
		b.cursor = len(b.runes)
	}
	length := len(b.runes)
	b.mu.Unlock()

	if first {
		b.publish(ctx, domain.EventEditorReady, map[string]any{"length": length})
	}
	b.publish(ctx, domain.EventDocumentChanged, domain.TrackedEditPayload{
		From: 0, To: oldLen, Content: text,
	})
}

// SetSelection records the active selection. An invalid range clears it.
func (b *Buffer) SetSelection(r domain.DocumentRange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !r.ValidFor(len(b.runes)) || r.Len() == 0 {
		b.selection = nil
		return
	}
	b.selection = &r
	b.cursor = r.To
}

// ClearSelection drops the active selection.
func (b *Buffer) ClearSelection() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selection = nil
}

// SetCursor moves the cursor, clamping to the document bounds.
func (b *Buffer) SetCursor(offset int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if offset < 0 {
		offset = 0
	}
	if offset > len(b.runes) {
		offset = len(b.runes)
	}
	b.cursor = offset
}

// ReplaceRange atomically replaces the text within r. The selection is
// cleared and the version bumped; document.changed carries the edit.
func (b *Buffer) ReplaceRange(r domain.DocumentRange, text string) error {
	b.mu.Lock()

	if !b.ready {
		b.mu.Unlock()
		return domain.NewDomainError("Buffer.ReplaceRange", domain.ErrInvalidInput, "editor not ready")
	}
	if !r.ValidFor(len(b.runes)) {
		b.mu.Unlock()
		return domain.NewDomainError("Buffer.ReplaceRange", domain.ErrInvalidInput,
			fmt.Sprintf("range [%d,%d) outside document of length %d", r.From, r.To, len(b.runes)))
	}

	replacement := []rune(text)
	updated := make([]rune, 0, len(b.runes)-r.Len()+len(replacement))
	updated = append(updated, b.runes[:r.From]...)
	updated = append(updated, replacement...)
	updated = append(updated, b.runes[r.To:]...)
	b.runes = updated
	b.version++
	b.selection = nil
	b.cursor = r.From + len(replacement)
	b.mu.Unlock()

	b.publish(context.Background(), domain.EventDocumentChanged, domain.TrackedEditPayload{
		From: r.From, To: r.To, Content: text,
	})
	return nil
}

// Text returns the full document text.
func (b *Buffer) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return string(b.runes)
}

func (b *Buffer) publish(ctx context.Context, t domain.EventType, payload any) {
	if b.bus == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	b.bus.Publish(ctx, domain.Event{
		Type:      t,
		SessionID: b.sessionID,
		Payload:   raw,
	})
}
