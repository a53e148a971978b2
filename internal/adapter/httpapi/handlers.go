package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"inkwell-ai/internal/domain"
	"inkwell-ai/internal/usecase/prompt"
	"inkwell-ai/internal/usecase/skillexec"
)

const serviceName = "inkwell-ai"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	health := s.gateway.HealthCheckAll(r.Context())

	type providerStatus struct {
		Healthy   bool      `json:"healthy"`
		Error     string    `json:"error,omitempty"`
		CheckedAt time.Time `json:"checked_at"`
		Streaming bool      `json:"streaming"`
	}
	providers := make(map[string]providerStatus, len(health))
	for name, h := range health {
		providers[name] = providerStatus{
			Healthy:   h.Healthy,
			Error:     h.Error,
			CheckedAt: h.CheckedAt,
			Streaming: s.gateway.SupportsStreaming(name),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service":   serviceName,
		"providers": providers,
	})
}

// skillSummary is the catalog listing shape; content stays server-side.
type skillSummary struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category,omitempty"`
	Tier        string  `json:"tier,omitempty"`
	Score       float64 `json:"score,omitempty"`
}

func summarize(sk domain.Skill) skillSummary {
	return skillSummary{
		ID:          sk.ID,
		Name:        sk.Name,
		Description: sk.Description,
		Category:    sk.Category,
		Tier:        sk.Tier,
	}
}

func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if search := q.Get("search"); search != "" {
		results := s.skills.Search(search, 20)
		out := make([]skillSummary, 0, len(results))
		for _, res := range results {
			sum := summarize(res.Skill)
			sum.Score = res.Score
			out = append(out, sum)
		}
		writeJSON(w, http.StatusOK, map[string]any{"skills": out})
		return
	}

	if category := q.Get("category"); category != "" {
		group := s.skills.ByCategory()[category]
		out := make([]skillSummary, 0, len(group))
		for _, sk := range group {
			out = append(out, summarize(sk))
		}
		writeJSON(w, http.StatusOK, map[string]any{"skills": out})
		return
	}

	all := s.skills.All()
	out := make([]skillSummary, 0, len(all))
	for _, sk := range all {
		out = append(out, summarize(sk))
	}
	writeJSON(w, http.StatusOK, map[string]any{"skills": out})
}

func (s *Server) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	sk, err := s.skills.Get(r.PathValue("skillID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          sk.ID,
		"name":        sk.Name,
		"description": sk.Description,
		"category":    sk.Category,
		"tier":        sk.Tier,
		"overview":    sk.Overview,
		"content":     sk.Content,
		"references":  sk.RefOrder,
	})
}

func (s *Server) handleGetReference(w http.ResponseWriter, r *http.Request) {
	skillID := r.PathValue("skillID")
	refName := r.PathValue("refName")

	ref := s.skills.GetReference(skillID, refName)
	if ref == nil {
		writeError(w, domain.NewDomainError("api.GetReference", domain.ErrSkillNotFound,
			skillID+"/"+refName))
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(ref)
}

type executeRequest struct {
	Input    string `json:"input"`
	Context  string `json:"context,omitempty"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

func (s *Server) handleExecuteSkill(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, domain.NewDomainError("api.ExecuteSkill", domain.ErrInvalidInput, "malformed JSON body"))
		return
	}

	execReq := skillexec.Request{
		SkillID:  r.PathValue("skillID"),
		Input:    req.Input,
		Provider: req.Provider,
		Model:    req.Model,
	}
	if req.Context != "" {
		execReq.Context.Selection = &prompt.Selection{Text: req.Context}
	}

	result, err := s.executor.Execute(r.Context(), execReq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain sentinels to HTTP statuses. Provider failures keep
// the failing provider's name and original cause in the body.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSkillNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrProviderNotFound):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrRateLimit):
		status = http.StatusTooManyRequests
	}

	body := map[string]any{
		"error": err.Error(),
		"code":  string(domain.ErrorCodeOf(err)),
	}
	var provErr *domain.ProviderError
	if errors.As(err, &provErr) {
		body["provider"] = provErr.Provider
	}
	writeJSON(w, status, body)
}
