package skillstore

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell-ai/internal/domain"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type stubSource struct {
	skills []domain.Skill
	err    error
	calls  int
}

func (s *stubSource) Load(context.Context) ([]domain.Skill, error) {
	s.calls++
	return s.skills, s.err
}

func sampleSkills() []domain.Skill {
	return []domain.Skill{
		{
			ID:          "improve-writing",
			Name:        "Improve Writing",
			Description: "Polish prose for clarity and flow",
			Category:    "editing",
			Content:     "Rewrite the passage with tighter sentences.",
			References:  map[string]string{"style": "# Style guide\nPrefer active voice."},
			RefOrder:    []string{"style"},
		},
		{
			ID:          "summarize",
			Name:        "Summarize",
			Description: "Condense a document into key points",
			Category:    "analysis",
			Content:     "Produce a concise summary preserving the main claims.",
		},
		{
			ID:          "brainstorm",
			Name:        "Brainstorm",
			Description: "Generate ideas for the current writing project",
			Content:     "List varied, concrete ideas. Clarity over quantity.",
		},
	}
}

func newLoadedStore(t *testing.T) (*Store, *stubSource) {
	t.Helper()
	src := &stubSource{skills: sampleSkills()}
	store := NewStore(src, noopLogger())
	require.NoError(t, store.LoadAll(context.Background()))
	return store, src
}

func TestStoreLoadAllOnce(t *testing.T) {
	store, src := newLoadedStore(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.LoadAll(context.Background()))
	}
	assert.Equal(t, 1, src.calls, "source must be scanned at most once")
	assert.Equal(t, 3, store.Count())
}

func TestStoreLoadAllPropagatesError(t *testing.T) {
	src := &stubSource{err: errors.New("corpus unreadable")}
	store := NewStore(src, noopLogger())

	err := store.LoadAll(context.Background())
	require.Error(t, err)

	// The failed result is sticky; the source is not re-scanned.
	assert.ErrorContains(t, store.LoadAll(context.Background()), "corpus unreadable")
	assert.Equal(t, 1, src.calls)
}

func TestStoreGet(t *testing.T) {
	store, _ := newLoadedStore(t)

	sk, err := store.Get("improve-writing")
	require.NoError(t, err)
	assert.Equal(t, "Improve Writing", sk.Name)

	_, err = store.Get("missing")
	assert.ErrorIs(t, err, domain.ErrSkillNotFound)
}

func TestStoreByCategory(t *testing.T) {
	store, _ := newLoadedStore(t)

	cats := store.ByCategory()
	assert.Len(t, cats, 2)
	assert.Len(t, cats["editing"], 1)
	assert.Len(t, cats["analysis"], 1)
	// brainstorm has no category and is omitted.
	_, ok := cats[""]
	assert.False(t, ok)
}

func TestStoreGetReference(t *testing.T) {
	store, _ := newLoadedStore(t)

	ref := store.GetReference("improve-writing", "style")
	require.NotNil(t, ref)
	assert.Contains(t, string(ref), "active voice")

	assert.Nil(t, store.GetReference("improve-writing", "missing"))
	assert.Nil(t, store.GetReference("missing", "style"))
}

func TestStoreSearchRanking(t *testing.T) {
	store, _ := newLoadedStore(t)

	// Exact name match outranks everything else.
	results := store.Search("summarize", 10)
	require.NotEmpty(t, results)
	assert.Equal(t, "summarize", results[0].Skill.ID)

	// Name substring outranks a description-only match.
	results = store.Search("writing", 10)
	require.Len(t, results, 2)
	assert.Equal(t, "improve-writing", results[0].Skill.ID)
	assert.Equal(t, "brainstorm", results[1].Skill.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestStoreSearchContentMatch(t *testing.T) {
	store, _ := newLoadedStore(t)

	results := store.Search("concise", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "summarize", results[0].Skill.ID)
}

func TestStoreSearchEmptyQuery(t *testing.T) {
	store, _ := newLoadedStore(t)

	assert.Empty(t, store.Search("", 10))
	assert.Empty(t, store.Search("   \t ", 10))
}

func TestStoreSearchLimit(t *testing.T) {
	store, _ := newLoadedStore(t)

	// "clarity" hits improve-writing (description) and brainstorm (content).
	results := store.Search("clarity", 1)
	require.Len(t, results, 1)
	assert.Equal(t, "improve-writing", results[0].Skill.ID)

	assert.Empty(t, store.Search("clarity", 0))
	assert.Empty(t, store.Search("clarity", -3))
}

func TestStoreSearchDeterministicTies(t *testing.T) {
	src := &stubSource{skills: []domain.Skill{
		{ID: "a", Name: "Alpha", Content: "shared token"},
		{ID: "b", Name: "Beta", Content: "shared token"},
	}}
	store := NewStore(src, noopLogger())
	require.NoError(t, store.LoadAll(context.Background()))

	for i := 0; i < 5; i++ {
		results := store.Search("shared", 10)
		require.Len(t, results, 2)
		assert.Equal(t, "a", results[0].Skill.ID, "ties keep load order")
		assert.Equal(t, "b", results[1].Skill.ID)
	}
}
