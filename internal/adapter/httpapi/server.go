package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"inkwell-ai/internal/domain"
	"inkwell-ai/internal/infra/config"
	"inkwell-ai/internal/infra/middleware"
	"inkwell-ai/internal/usecase/skillexec"
)

// SkillCatalog is the read surface over loaded skills.
type SkillCatalog interface {
	All() []domain.Skill
	Get(id string) (domain.Skill, error)
	ByCategory() map[string][]domain.Skill
	GetReference(skillID, refName string) []byte
	Search(query string, limit int) []domain.SkillSearchResult
}

// SkillExecutor runs one skill end to end.
type SkillExecutor interface {
	Execute(ctx context.Context, req skillexec.Request) (*skillexec.Result, error)
}

// CompletionGateway is the slice of the LLM gateway the HTTP surface needs.
type CompletionGateway interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResult, error)
	CompleteStream(ctx context.Context, req domain.CompletionRequest) (<-chan domain.StreamDelta, error)
	Providers() []string
	SupportsStreaming(name string) bool
	HealthCheckAll(ctx context.Context) map[string]domain.ProviderHealth
}

// Server exposes the REST + WebSocket surface.
type Server struct {
	skills   SkillCatalog
	executor SkillExecutor
	gateway  CompletionGateway
	sessions domain.SessionStore
	bus      domain.EventBus
	logger   *slog.Logger
	cfg      config.Server

	httpSrv   *http.Server
	boundAddr string
}

// NewServer wires the HTTP surface. sessions may be nil, in which case the
// chat stream keeps per-connection state only.
func NewServer(skills SkillCatalog, executor SkillExecutor, gateway CompletionGateway,
	sessions domain.SessionStore, bus domain.EventBus, cfg config.Server, logger *slog.Logger) *Server {
	return &Server{
		skills:   skills,
		executor: executor,
		gateway:  gateway,
		sessions: sessions,
		bus:      bus,
		cfg:      cfg,
		logger:   logger,
	}
}

func (s *Server) routes(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /skills", s.handleListSkills)
	mux.HandleFunc("GET /skill/{skillID}", s.handleGetSkill)
	mux.HandleFunc("GET /skill/{skillID}/reference/{refName}", s.handleGetReference)
	mux.HandleFunc("POST /skill/{skillID}/execute", s.handleExecuteSkill)
	mux.HandleFunc("GET /chat/stream", s.handleChatStream)

	var handler http.Handler = mux
	if s.cfg.RateLimit.RequestsPerMin > 0 {
		limit := middleware.RateLimitWithConfig(ctx, middleware.RateLimitConfig{
			RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
			BurstSize:      s.cfg.RateLimit.Burst,
		})
		handler = limit(handler)
	}
	return middleware.SecurityHeaders(handler)
}

// Start begins serving. Blocks until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.boundAddr = listener.Addr().String()

	s.httpSrv = &http.Server{
		Handler:           s.routes(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("api server started", "addr", s.boundAddr)

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// BoundAddr returns the actual listen address. Only valid after Start.
func (s *Server) BoundAddr() string { return s.boundAddr }
