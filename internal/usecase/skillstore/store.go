package skillstore

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"inkwell-ai/internal/domain"
)

// Relevance weights for Search. Exact name match always outranks a partial
// one, and metadata matches outrank body matches.
const (
	scoreNameExact     = 100.0
	scoreNameSubstring = 50.0
	scoreDescSubstring = 25.0
	scoreBodySubstring = 10.0
)

// Store is a read-only, load-once index over a skill corpus. The source is
// consulted at most once per process; after that every read is served from
// memory.
type Store struct {
	source domain.SkillSource
	logger *slog.Logger

	loadOnce sync.Once
	loadErr  error

	skills []domain.Skill
	byID   map[string]int
}

// NewStore creates a store over source. Nothing is loaded until LoadAll.
func NewStore(source domain.SkillSource, logger *slog.Logger) *Store {
	return &Store{
		source: source,
		logger: logger,
		byID:   map[string]int{},
	}
}

// LoadAll scans the source. Only the first call scans; later calls return
// the result of the first, including its error.
func (s *Store) LoadAll(ctx context.Context) error {
	s.loadOnce.Do(func() {
		skills, err := s.source.Load(ctx)
		if err != nil {
			s.loadErr = err
			return
		}
		s.skills = skills
		for i, sk := range skills {
			s.byID[sk.ID] = i
		}
		s.logger.Info("skill corpus loaded", "count", len(skills))
	})
	return s.loadErr
}

// Count returns the number of loaded skills.
func (s *Store) Count() int { return len(s.skills) }

// All returns every loaded skill in load order.
func (s *Store) All() []domain.Skill {
	out := make([]domain.Skill, len(s.skills))
	copy(out, s.skills)
	return out
}

// Get returns the skill with the given id.
func (s *Store) Get(id string) (domain.Skill, error) {
	i, ok := s.byID[id]
	if !ok {
		return domain.Skill{}, domain.NewDomainError("SkillStore.Get", domain.ErrSkillNotFound, id)
	}
	return s.skills[i], nil
}

// ByCategory groups skills by category, preserving load order within each
// group. Skills with an empty category are omitted.
func (s *Store) ByCategory() map[string][]domain.Skill {
	out := map[string][]domain.Skill{}
	for _, sk := range s.skills {
		if sk.Category == "" {
			continue
		}
		out[sk.Category] = append(out[sk.Category], sk)
	}
	return out
}

// GetReference returns the named reference document of a skill, or nil when
// either the skill or the reference does not exist.
func (s *Store) GetReference(skillID, refName string) []byte {
	i, ok := s.byID[skillID]
	if !ok {
		return nil
	}
	content, ok := s.skills[i].References[refName]
	if !ok {
		return nil
	}
	return []byte(content)
}

// Search ranks skills against a free-text query. Scoring is deterministic:
// an exact name match scores highest, then name substring, description
// substring, and content substring. Ties keep load order. An empty or
// whitespace-only query, or a non-positive limit, returns no results.
func (s *Store) Search(query string, limit int) []domain.SkillSearchResult {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || limit <= 0 {
		return nil
	}

	var results []domain.SkillSearchResult
	for _, sk := range s.skills {
		score := scoreSkill(sk, query)
		if score > 0 {
			results = append(results, domain.SkillSearchResult{Skill: sk, Score: score})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func scoreSkill(sk domain.Skill, query string) float64 {
	name := strings.ToLower(sk.Name)
	var score float64
	switch {
	case name == query:
		score += scoreNameExact
	case strings.Contains(name, query):
		score += scoreNameSubstring
	}
	if strings.Contains(strings.ToLower(sk.Description), query) {
		score += scoreDescSubstring
	}
	if strings.Contains(strings.ToLower(sk.Content), query) {
		score += scoreBodySubstring
	}
	return score
}
