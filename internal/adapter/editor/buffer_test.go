package editor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"inkwell-ai/internal/domain"
)

type recordingBus struct {
	mu     sync.Mutex
	events []domain.Event
}

func (b *recordingBus) Publish(_ context.Context, event domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) Subscribe(domain.EventType, domain.EventHandler) func() { return func() {} }
func (b *recordingBus) SubscribeAll(domain.EventHandler) func()                { return func() {} }
func (b *recordingBus) Close()                                                 {}

func (b *recordingBus) byType(t domain.EventType) []domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Event
	for _, e := range b.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func TestBufferNotReadyBeforeContent(t *testing.T) {
	b := NewBuffer("s1", nil)
	if b.Ready() {
		t.Fatal("new buffer should not be ready")
	}
	if b.Version() != 0 {
		t.Fatalf("version = %d, want 0", b.Version())
	}
	err := b.ReplaceRange(domain.DocumentRange{From: 0, To: 0}, "x")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("ReplaceRange before ready = %v, want ErrInvalidInput", err)
	}
}

func TestBufferSetContent(t *testing.T) {
	bus := &recordingBus{}
	b := NewBuffer("s1", bus)

	b.SetContent(context.Background(), "héllo wörld")

	if !b.Ready() {
		t.Fatal("buffer should be ready after SetContent")
	}
	if got := b.Length(); got != 11 {
		t.Fatalf("Length = %d, want 11 runes", got)
	}
	if b.Version() != 1 {
		t.Fatalf("version = %d, want 1", b.Version())
	}
	if got := len(bus.byType(domain.EventEditorReady)); got != 1 {
		t.Fatalf("editor.ready events = %d, want 1", got)
	}
	if got := len(bus.byType(domain.EventDocumentChanged)); got != 1 {
		t.Fatalf("document.changed events = %d, want 1", got)
	}

	b.SetContent(context.Background(), "again")
	if got := len(bus.byType(domain.EventEditorReady)); got != 1 {
		t.Fatalf("editor.ready should fire once, got %d", got)
	}
	if b.Version() != 2 {
		t.Fatalf("version = %d, want 2", b.Version())
	}
}

func TestBufferSlice(t *testing.T) {
	b := NewBuffer("s1", nil)
	b.SetContent(context.Background(), "héllo wörld")

	got, err := b.Slice(domain.DocumentRange{From: 6, To: 11})
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if got != "wörld" {
		t.Fatalf("Slice = %q, want %q", got, "wörld")
	}

	if _, err := b.Slice(domain.DocumentRange{From: 0, To: 12}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("out-of-bounds slice = %v, want ErrInvalidInput", err)
	}
	if _, err := b.Slice(domain.DocumentRange{From: 5, To: 2}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("inverted slice = %v, want ErrInvalidInput", err)
	}
}

func TestBufferSelection(t *testing.T) {
	b := NewBuffer("s1", nil)
	b.SetContent(context.Background(), "hello world")

	if _, ok := b.Selection(); ok {
		t.Fatal("fresh buffer should have no selection")
	}

	b.SetSelection(domain.DocumentRange{From: 6, To: 11})
	sel, ok := b.Selection()
	if !ok || sel.From != 6 || sel.To != 11 {
		t.Fatalf("Selection = %+v %v, want [6,11) true", sel, ok)
	}

	b.ClearSelection()
	if _, ok := b.Selection(); ok {
		t.Fatal("selection should be cleared")
	}

	// Empty and invalid ranges clear rather than select.
	b.SetSelection(domain.DocumentRange{From: 3, To: 3})
	if _, ok := b.Selection(); ok {
		t.Fatal("empty range should not select")
	}
	b.SetSelection(domain.DocumentRange{From: 0, To: 99})
	if _, ok := b.Selection(); ok {
		t.Fatal("out-of-bounds range should not select")
	}
}

func TestBufferCurrentLine(t *testing.T) {
	b := NewBuffer("s1", nil)
	b.SetContent(context.Background(), "first\nsecond\nthird")

	b.SetCursor(8) // inside "second"
	line := b.CurrentLine()
	if line.From != 6 || line.To != 12 {
		t.Fatalf("CurrentLine = [%d,%d), want [6,12)", line.From, line.To)
	}
	text, err := b.Slice(line)
	if err != nil || text != "second" {
		t.Fatalf("line text = %q, %v", text, err)
	}

	b.SetCursor(0)
	line = b.CurrentLine()
	if line.From != 0 || line.To != 5 {
		t.Fatalf("first line = [%d,%d), want [0,5)", line.From, line.To)
	}

	b.SetCursor(999) // clamps to end
	line = b.CurrentLine()
	if line.From != 13 || line.To != 18 {
		t.Fatalf("last line = [%d,%d), want [13,18)", line.From, line.To)
	}
}

func TestBufferReplaceRange(t *testing.T) {
	bus := &recordingBus{}
	b := NewBuffer("s1", bus)
	b.SetContent(context.Background(), "hello world")
	b.SetSelection(domain.DocumentRange{From: 0, To: 5})

	if err := b.ReplaceRange(domain.DocumentRange{From: 6, To: 11}, "gophers"); err != nil {
		t.Fatalf("ReplaceRange: %v", err)
	}

	if got := b.Text(); got != "hello gophers" {
		t.Fatalf("text = %q, want %q", got, "hello gophers")
	}
	if b.Version() != 2 {
		t.Fatalf("version = %d, want 2", b.Version())
	}
	if _, ok := b.Selection(); ok {
		t.Fatal("selection should be cleared by ReplaceRange")
	}

	changed := bus.byType(domain.EventDocumentChanged)
	if len(changed) != 2 {
		t.Fatalf("document.changed events = %d, want 2", len(changed))
	}
	var payload domain.TrackedEditPayload
	if err := json.Unmarshal(changed[1].Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.From != 6 || payload.To != 11 || payload.Content != "gophers" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestBufferReplaceRangeMultibyte(t *testing.T) {
	b := NewBuffer("s1", nil)
	b.SetContent(context.Background(), "naïve café")

	if err := b.ReplaceRange(domain.DocumentRange{From: 6, To: 10}, "bistro"); err != nil {
		t.Fatalf("ReplaceRange: %v", err)
	}
	if got := b.Text(); got != "naïve bistro" {
		t.Fatalf("text = %q, want %q", got, "naïve bistro")
	}
}

func TestBufferReplaceRangeOutOfBounds(t *testing.T) {
	b := NewBuffer("s1", nil)
	b.SetContent(context.Background(), "short")

	err := b.ReplaceRange(domain.DocumentRange{From: 3, To: 10}, "x")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("ReplaceRange = %v, want ErrInvalidInput", err)
	}
	if b.Version() != 1 {
		t.Fatalf("failed replace must not bump version, got %d", b.Version())
	}
}

func TestBufferConcurrentReads(t *testing.T) {
	b := NewBuffer("s1", nil)
	b.SetContent(context.Background(), "concurrent access")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Length()
			_, _ = b.Slice(domain.DocumentRange{From: 0, To: 10})
			_ = b.Version()
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.ReplaceRange(domain.DocumentRange{From: 0, To: 1}, "c")
		}()
	}
	wg.Wait()

	if b.Version() != 6 {
		t.Fatalf("version = %d, want 6", b.Version())
	}
}
