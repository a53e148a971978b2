package skillexec

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"inkwell-ai/internal/domain"
	"inkwell-ai/internal/usecase/prompt"
)

// CompletionGateway is the slice of the gateway the service needs.
type CompletionGateway interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResult, error)
}

// SkillCatalog resolves skill ids to loaded skills.
type SkillCatalog interface {
	Get(id string) (domain.Skill, error)
}

// Request carries one skill execution.
type Request struct {
	SkillID  string
	Input    string
	Context  prompt.Context
	Provider string
	Model    string
	Caller   domain.CallerIdentity
}

// Result is the outcome of a skill execution.
type Result struct {
	SkillID   string       `json:"skill_id"`
	SkillName string       `json:"skill_name"`
	Content   string       `json:"result"`
	Usage     domain.Usage `json:"usage"`
	Model     string       `json:"model"`
	Provider  string       `json:"provider"`
}

// Service executes skills: resolve, build the prompt, complete, account.
type Service struct {
	skills   SkillCatalog
	builder  *prompt.Builder
	gateway  CompletionGateway
	recorder domain.UsageRecorder
	bus      domain.EventBus
	logger   *slog.Logger
}

// NewService creates a skill execution service. recorder and bus may be nil.
func NewService(skills SkillCatalog, builder *prompt.Builder, gateway CompletionGateway,
	recorder domain.UsageRecorder, bus domain.EventBus, logger *slog.Logger) *Service {
	return &Service{
		skills:   skills,
		builder:  builder,
		gateway:  gateway,
		recorder: recorder,
		bus:      bus,
		logger:   logger,
	}
}

// Execute runs one skill over the user's input. The completion is
// non-streaming; usage is recorded after success but a recording failure
// never fails the execution.
func (s *Service) Execute(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Input) == "" {
		return nil, domain.NewDomainError("SkillExec.Execute", domain.ErrInvalidInput, "input is required")
	}
	skill, err := s.skills.Get(req.SkillID)
	if err != nil {
		return nil, err
	}

	system := s.builder.Build(skill, req.Context)
	result, err := s.gateway.Complete(ctx, domain.CompletionRequest{
		Provider: req.Provider,
		Model:    req.Model,
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: system},
			{Role: domain.RoleUser, Content: req.Input},
		},
		Caller: req.Caller,
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, skill, req.Caller, result)
	s.publish(ctx, skill, result)

	return &Result{
		SkillID:   skill.ID,
		SkillName: skill.Name,
		Content:   result.Content,
		Usage:     result.Usage,
		Model:     result.Model,
		Provider:  result.Provider,
	}, nil
}

func (s *Service) record(ctx context.Context, skill domain.Skill, caller domain.CallerIdentity, result *domain.CompletionResult) {
	if s.recorder == nil {
		return
	}
	err := s.recorder.Record(ctx, domain.UsageRecord{
		UserID:       caller.UserID,
		ProjectID:    caller.ProjectID,
		SkillID:      skill.ID,
		Provider:     result.Provider,
		Model:        result.Model,
		InputTokens:  result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
	})
	if err != nil {
		s.logger.Warn("usage recording failed", "skill", skill.ID, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, skill domain.Skill, result *domain.CompletionResult) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, domain.Event{
		Type: domain.EventSkillExecuted,
		Payload: mustJSON(map[string]any{
			"skill_id": skill.ID,
			"provider": result.Provider,
			"model":    result.Model,
			"tokens":   result.Usage.TotalTokens,
		}),
	})
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
