package domain

import "time"

// DocumentRange is a half-closed [From, To) span of rune offsets into one
// document's current text.
type DocumentRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// ValidFor reports whether the range fits a document of the given length.
func (r DocumentRange) ValidFor(length int) bool {
	return r.From >= 0 && r.From <= r.To && r.To <= length
}

// Len returns the number of runes the range covers.
func (r DocumentRange) Len() int { return r.To - r.From }

// PatchProposal is a captured, not-yet-committed candidate edit. It exists
// only for the duration of preview + apply and is never persisted.
type PatchProposal struct {
	ID           string        `json:"id"`
	Range        DocumentRange `json:"range"`
	OriginalText string        `json:"original_text"`
	ProposedText string        `json:"proposed_text"`
	// BaseVersion is the document version the range was captured against.
	// A commit against any other version is stale.
	BaseVersion uint64    `json:"base_version"`
	CapturedAt  time.Time `json:"captured_at"`
}

// DocumentView is the slice of editor state the patch controller needs.
// Implementations must apply ReplaceRange as one atomic transaction with
// respect to the document's own change stream.
type DocumentView interface {
	// Ready reports whether a live document is attached to this view.
	Ready() bool
	// Length returns the current document length in runes.
	Length() int
	// Version returns a counter that increases on every document change.
	Version() uint64
	// Slice returns the text currently covered by r.
	Slice(r DocumentRange) (string, error)
	// Selection returns the current selection, or false when nothing is
	// selected.
	Selection() (DocumentRange, bool)
	// CurrentLine returns the range of the line containing the cursor.
	CurrentLine() DocumentRange
	// ReplaceRange replaces r with text in a single transaction.
	ReplaceRange(r DocumentRange, text string) error
}

// TrackedEditPayload is the event payload consumed by the change-tracking
// collaborator when a commit requests tracked attribution.
type TrackedEditPayload struct {
	From    int    `json:"from"`
	To      int    `json:"to"`
	Content string `json:"content"`
}

// PatchAppliedPayload is published after every successful commit.
type PatchAppliedPayload struct {
	ProposalID string `json:"proposal_id"`
	From       int    `json:"from"`
	To         int    `json:"to"`
	Content    string `json:"content"`
}
