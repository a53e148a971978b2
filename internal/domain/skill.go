package domain

import "context"

// Skill is a curated instruction document that grounds a completion in a
// task domain. Skills are immutable once loaded; the authoritative copy
// lives in the external skill source.
type Skill struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Tier        string            `json:"tier,omitempty"`
	Overview    string            `json:"overview,omitempty"`
	Content     string            `json:"-"`
	References  map[string]string `json:"-"`
	// RefOrder preserves the order references were discovered in, so
	// catalog listings stay stable across loads.
	RefOrder []string `json:"references,omitempty"`
}

// SkillSearchResult pairs a skill with its relevance score. Higher scores
// are more relevant.
type SkillSearchResult struct {
	Skill Skill   `json:"skill"`
	Score float64 `json:"score"`
}

// SkillSource provides the raw skill corpus that the store indexes at load
// time. It is consulted at most once per process.
type SkillSource interface {
	Load(ctx context.Context) ([]Skill, error)
}
