package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"inkwell-ai/internal/adapter/httpapi"
	"inkwell-ai/internal/adapter/skillsource"
	"inkwell-ai/internal/adapter/usagelog"
	"inkwell-ai/internal/domain"
	"inkwell-ai/internal/infra/config"
	"inkwell-ai/internal/infra/logger"
	"inkwell-ai/internal/infra/tracer"
	"inkwell-ai/internal/usecase/eventbus"
	"inkwell-ai/internal/usecase/healthmon"
	"inkwell-ai/internal/usecase/prompt"
	"inkwell-ai/internal/usecase/skillexec"
	"inkwell-ai/internal/usecase/skillstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, closeLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closeLogger()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	// Providers, registry, gateway.
	_, gateway, err := initLLM(cfg, log)
	if err != nil {
		return err
	}

	// Skill corpus.
	skills := skillstore.NewStore(skillsource.NewFileSource(cfg.Skills.Dir), log)
	if err := skills.LoadAll(ctx); err != nil {
		return fmt.Errorf("load skills: %w", err)
	}

	// Usage accounting.
	var recorder domain.UsageRecorder
	if cfg.Usage.Enabled {
		usageLog, err := usagelog.NewSQLiteUsageLog(cfg.Usage.DBPath)
		if err != nil {
			return fmt.Errorf("open usage log: %w", err)
		}
		defer usageLog.Close()
		recorder = usageLog
		log.Info("usage accounting enabled", "db", cfg.Usage.DBPath)
	}

	bus := eventbus.New(log)
	defer bus.Close()

	executor := skillexec.NewService(skills, prompt.NewBuilder(), gateway, recorder, bus, log)

	// Periodic provider health sweep.
	if cfg.Health.Enabled {
		monitor := healthmon.NewMonitor(gateway, cfg.Health.Schedule, log)
		if err := monitor.Start(ctx); err != nil {
			return err
		}
		defer monitor.Stop()
	}

	server := httpapi.NewServer(skills, executor, gateway,
		httpapi.NewMemorySessionStore(), bus, cfg.Server, log)

	log.Info("inkwell-ai starting", "skills", skills.Count())
	return server.Start(ctx)
}
