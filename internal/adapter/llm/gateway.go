package llm

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"inkwell-ai/internal/domain"
	"inkwell-ai/internal/infra/config"
	"inkwell-ai/internal/infra/tracer"
)

// Gateway is the single entry point for completion traffic. It resolves the
// target provider from the request (falling back to the configured default),
// applies model and token defaults, and attributes every failure to the
// provider that produced it. The gateway never retries against a different
// provider: caller-visible provider selection is part of the contract.
type Gateway struct {
	registry        *Registry
	defaultProvider string
	defaultModel    string
	defaultMaxTok   int
	probeTimeout    time.Duration
	logger          *slog.Logger
}

// NewGateway creates a Gateway over registry using LLM config defaults.
func NewGateway(registry *Registry, cfg config.LLM, logger *slog.Logger) *Gateway {
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	return &Gateway{
		registry:        registry,
		defaultProvider: cfg.DefaultProvider,
		defaultModel:    cfg.DefaultModel,
		defaultMaxTok:   cfg.MaxTokens,
		probeTimeout:    probeTimeout,
		logger:          logger,
	}
}

// resolve picks the provider for a request and applies request defaults.
func (g *Gateway) resolve(req *domain.CompletionRequest) (domain.Provider, error) {
	name := req.Provider
	if name == "" {
		name = g.defaultProvider
	}

	provider, ok := g.registry.Lookup(name)
	if !ok {
		return nil, domain.NewDomainError("Gateway.resolve", domain.ErrProviderNotFound, name)
	}

	req.Provider = name
	if req.Model == "" {
		req.Model = g.defaultModel
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = g.defaultMaxTok
	}
	return provider, nil
}

// Complete executes a blocking completion against the resolved provider.
// Provider failures are wrapped in ProviderError so callers can attribute
// the failure; no cross-provider failover is attempted.
func (g *Gateway) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResult, error) {
	ctx, span := tracer.StartSpan(ctx, "gateway.complete",
		trace.WithAttributes(tracer.StringAttr("llm.provider", req.Provider)),
	)
	defer span.End()

	provider, err := g.resolve(&req)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	result, err := provider.Complete(ctx, req)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, &domain.ProviderError{Provider: provider.Name(), Err: err}
	}

	if result.Usage.TotalTokens == 0 {
		result.Usage = estimateUsage(req, result.Content)
	}
	if result.Provider == "" {
		result.Provider = provider.Name()
	}

	setUsageAttrs(span, result.Usage)
	tracer.SetOK(span)
	return result, nil
}

// CompleteStream opens a streaming completion. Providers that do not
// implement domain.StreamingProvider yield ErrStreamUnsupported. Cancelling
// ctx tears down the stream and closes the returned channel.
func (g *Gateway) CompleteStream(ctx context.Context, req domain.CompletionRequest) (<-chan domain.StreamDelta, error) {
	provider, err := g.resolve(&req)
	if err != nil {
		return nil, err
	}

	sp, ok := provider.(domain.StreamingProvider)
	if !ok {
		return nil, domain.NewDomainError("Gateway.CompleteStream", domain.ErrStreamUnsupported, provider.Name())
	}

	req.Stream = true
	ch, err := sp.CompleteStream(ctx, req)
	if err != nil {
		return nil, &domain.ProviderError{Provider: provider.Name(), Err: err}
	}
	return ch, nil
}

// Providers returns the registered provider names in registration order.
func (g *Gateway) Providers() []string {
	return g.registry.List()
}

// SupportsStreaming reports whether the named provider can stream.
// Unknown names report false.
func (g *Gateway) SupportsStreaming(name string) bool {
	provider, ok := g.registry.Lookup(name)
	if !ok {
		return false
	}
	_, streaming := provider.(domain.StreamingProvider)
	return streaming
}

// HealthCheckAll probes every registered provider concurrently, each probe
// bounded by the configured probe timeout. The result maps provider name to
// its health; an unhealthy provider is reported, never dropped.
func (g *Gateway) HealthCheckAll(ctx context.Context) map[string]domain.ProviderHealth {
	names := g.registry.List()
	results := make(map[string]domain.ProviderHealth, len(names))

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, name := range names {
		provider, ok := g.registry.Lookup(name)
		if !ok {
			continue
		}

		wg.Add(1)
		go func(name string, provider domain.Provider) {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(ctx, g.probeTimeout)
			defer cancel()

			health := domain.ProviderHealth{Healthy: true, CheckedAt: time.Now()}
			if err := provider.HealthCheck(probeCtx); err != nil {
				health.Healthy = false
				health.Error = err.Error()
				g.logger.Warn("provider health check failed", "provider", name, "error", err)
			}

			mu.Lock()
			results[name] = health
			mu.Unlock()
		}(name, provider)
	}

	wg.Wait()
	return results
}
