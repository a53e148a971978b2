package patch

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"inkwell-ai/internal/domain"
)

// State is the controller's lifecycle position.
type State string

const (
	StateIdle       State = "idle"
	StatePreviewing State = "previewing"
	StateApplying   State = "applying"
)

// CommitOptions controls how a proposal is applied.
type CommitOptions struct {
	// WithTrackChanges additionally publishes the edit for the
	// change-tracking collaborator, attributing it to the assistant.
	WithTrackChanges bool
}

// Controller manages the preview/apply lifecycle of a single proposed edit
// against one document view. At most one proposal is open at a time; opening
// a new preview replaces the old one wholesale. A commit is exactly one
// ReplaceRange transaction, and a document that changed since the preview
// was captured is never touched.
type Controller struct {
	mu       sync.Mutex
	state    State
	proposal *domain.PatchProposal

	view   domain.DocumentView
	bus    domain.EventBus
	logger *slog.Logger
}

// NewController creates a controller bound to one document view.
func NewController(view domain.DocumentView, bus domain.EventBus, logger *slog.Logger) *Controller {
	return &Controller{
		state:  StateIdle,
		view:   view,
		bus:    bus,
		logger: logger,
	}
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Proposal returns a copy of the open proposal, if any.
func (c *Controller) Proposal() (domain.PatchProposal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proposal == nil {
		return domain.PatchProposal{}, false
	}
	return *c.proposal, true
}

// OpenPreview captures a proposal for the given text against the current
// selection, or the current line when nothing is selected. Without a ready
// view the call is a logged no-op. An existing proposal is replaced.
func (c *Controller) OpenPreview(ctx context.Context, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.view.Ready() {
		c.logger.Warn("patch preview skipped, editor not ready")
		return
	}

	target, ok := c.view.Selection()
	if !ok {
		target = c.view.CurrentLine()
	}
	original, err := c.view.Slice(target)
	if err != nil {
		c.logger.Warn("patch preview skipped, range unreadable", "error", err)
		return
	}

	now := time.Now()
	c.proposal = &domain.PatchProposal{
		ID:           newProposalID(now),
		Range:        target,
		OriginalText: original,
		ProposedText: normalizeProposed(text),
		BaseVersion:  c.view.Version(),
		CapturedAt:   now,
	}
	c.state = StatePreviewing

	c.publish(ctx, domain.EventPatchPreviewOpened, map[string]any{
		"proposal_id": c.proposal.ID,
		"from":        target.From,
		"to":          target.To,
	})
}

// CancelPreview discards the open proposal without touching the document.
// Safe to call when nothing is open.
func (c *Controller) CancelPreview(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.proposal == nil {
		return
	}
	id := c.proposal.ID
	c.proposal = nil
	c.state = StateIdle

	c.publish(ctx, domain.EventPatchCancelled, map[string]any{"proposal_id": id})
}

// Commit applies the open proposal as one ReplaceRange transaction. A
// document that changed since the preview was captured (version or bounds
// mismatch) yields ErrStalePatch with the document untouched. Either way the
// proposal is cleared and the controller returns to Idle.
func (c *Controller) Commit(ctx context.Context, opts CommitOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.proposal == nil {
		return domain.NewDomainError("Patch.Commit", domain.ErrNoProposal, "")
	}
	prop := c.proposal
	c.proposal = nil
	c.state = StateApplying
	defer func() { c.state = StateIdle }()

	if c.view.Version() != prop.BaseVersion {
		return domain.NewDomainError("Patch.Commit", domain.ErrStalePatch, "document version changed")
	}
	if !prop.Range.ValidFor(c.view.Length()) {
		return domain.NewDomainError("Patch.Commit", domain.ErrStalePatch, "captured range no longer fits")
	}

	if err := c.view.ReplaceRange(prop.Range, prop.ProposedText); err != nil {
		return err
	}

	c.publish(ctx, domain.EventPatchApplied, domain.PatchAppliedPayload{
		ProposalID: prop.ID,
		From:       prop.Range.From,
		To:         prop.Range.To,
		Content:    prop.ProposedText,
	})
	if opts.WithTrackChanges {
		c.publish(ctx, domain.EventPatchTracked, domain.TrackedEditPayload{
			From:    prop.Range.From,
			To:      prop.Range.To,
			Content: prop.ProposedText,
		})
	}
	return nil
}

// normalizeProposed strips a surrounding markdown code fence and outer
// whitespace from model output, so fenced completions patch cleanly.
func normalizeProposed(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.SplitN(text, "\n", 2)
	if len(lines) < 2 {
		return text
	}
	body := lines[1]
	if i := strings.LastIndex(body, "```"); i >= 0 {
		body = body[:i]
	}
	return strings.TrimSpace(body)
}

func newProposalID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

func (c *Controller) publish(ctx context.Context, t domain.EventType, payload any) {
	if c.bus == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	c.bus.Publish(ctx, domain.Event{Type: t, Payload: raw})
}
