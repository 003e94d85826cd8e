package server

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/paddockai/apex/config"
	"github.com/paddockai/apex/internal/agent"
	"github.com/paddockai/apex/internal/award"
	"github.com/paddockai/apex/internal/broadcast"
	"github.com/paddockai/apex/internal/cascade"
	"github.com/paddockai/apex/internal/debate"
	"github.com/paddockai/apex/internal/domain/f1"
	"github.com/paddockai/apex/internal/evaluation"
	"github.com/paddockai/apex/internal/knowledge"
	"github.com/paddockai/apex/internal/llm"
	"github.com/paddockai/apex/internal/loop"
	"github.com/paddockai/apex/internal/newsfeed"
	"github.com/paddockai/apex/internal/runtime"
	"github.com/paddockai/apex/internal/store"
	"github.com/paddockai/apex/internal/telemetry"
)

// validatorName and anomalyName are the tier-2 cascade personas the platform
// cannot run without.
const (
	validatorName = "Apex-Val"
	anomalyName   = "Apex-Anom"
)

// Build assembles the full platform from config: storage, migrations, seed
// data, the roster, the debate engine, the cascade and the scheduler.
func Build(cfg *config.Config, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.New(os.Stdout, "", log.LstdFlags)
	}

	dsn, err := cfg.PostgresDSN()
	if err != nil {
		return nil, err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err := Seed(ctx, st, logger); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}

	kb, err := knowledge.NewBase(ctx, st, log.New(logger.Writer(), "[KNOWLEDGE] ", log.LstdFlags))
	if err != nil {
		return nil, fmt.Errorf("knowledge index: %w", err)
	}

	costs := telemetry.NewCostTracker(cfg.Telemetry, logger)
	provider := telemetry.Meter(llm.NewAnthropicProvider(cfg.LLM), costs, cfg.LLM.Model)
	dispatcher := agent.NewDispatcher(kb, log.New(logger.Writer(), "[TOOLS] ", log.LstdFlags))

	roster, err := buildRoster(ctx, cfg, st, provider, dispatcher, logger)
	if err != nil {
		return nil, err
	}

	bc := broadcast.NewRegistry(0)
	engine := debate.NewEngine(st, roster, bc, cfg.Loop.DebateSize, cfg.Loop.InterAgentPause,
		log.New(logger.Writer(), "[DEBATE] ", log.LstdFlags))

	awards := award.NewService(st, log.New(logger.Writer(), "[AWARD] ", log.LstdFlags))
	engine.SetPredictionSink(awards)

	validator, ok := roster.Get(validatorName)
	if !ok {
		return nil, fmt.Errorf("validator persona %q missing from roster", validatorName)
	}
	anomaly, ok := roster.Get(anomalyName)
	if !ok {
		return nil, fmt.Errorf("anomaly persona %q missing from roster", anomalyName)
	}
	casc := cascade.New(st, kb, validator, anomaly, bc,
		log.New(logger.Writer(), "[CASCADE] ", log.LstdFlags))

	var redisClient *redis.Client
	if cfg.Storage.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Host + ":" + cfg.Storage.Redis.Port,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Printf("[LOOP] redis unreachable, cycle lock disabled: %v", err)
			redisClient = nil
		}
	}
	scheduler := loop.New(cfg.Loop, st, engine, casc, bc, redisClient,
		log.New(logger.Writer(), "[LOOP] ", log.LstdFlags))

	feed := newsfeed.NewFeed(st, cfg.News, log.New(logger.Writer(), "[NEWS] ", log.LstdFlags))
	evals := evaluation.NewEngine(provider, st, log.New(logger.Writer(), "[EVAL] ", log.LstdFlags))

	secret, err := runtime.LoadJWTSecret(cfg)
	if err != nil {
		return nil, err
	}

	return &Server{
		Config:    cfg,
		Store:     st,
		Roster:    roster,
		Engine:    engine,
		Cascade:   casc,
		Loop:      scheduler,
		Knowledge: kb,
		Feed:      feed,
		Awards:    awards,
		Evals:     evals,
		Broadcast: bc,
		Costs:     costs,
		Redis:     redisClient,
		Secret:    secret,
		Logger:    logger,
	}, nil
}

// buildRoster loads every active agent row and turns it into a live agent.
func buildRoster(ctx context.Context, cfg *config.Config, st *store.Store, provider llm.Provider, dispatcher *agent.Dispatcher, logger *log.Logger) (*agent.Roster, error) {
	rows, err := st.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	agentLogger := log.New(logger.Writer(), "[AGENT] ", log.LstdFlags)
	agents := make([]*agent.Agent, 0, len(rows))
	for _, row := range rows {
		if row.Status != store.AgentStatusActive {
			continue
		}
		persona := agent.Persona{
			ID:           row.ID,
			Name:         row.Name,
			Tier:         row.Tier,
			Domain:       row.Domain,
			Specialty:    row.Specialty,
			ModelID:      row.ModelID,
			SystemPrompt: row.SystemPrompt,
			Bio:          row.Bio,
			Tools:        agent.DefaultTools(row.Tier),
		}
		agents = append(agents, agent.New(persona, provider, dispatcher, cfg.LLM.MaxToolIterations, agentLogger))
	}
	return agent.NewRoster(agents), nil
}

// Seed loads the default personas, base facts and starter news on an empty
// database. Re-running against a populated database is a no-op.
func Seed(ctx context.Context, st *store.Store, logger *log.Logger) error {
	count, err := st.CountAgentsByTier(ctx, 0)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, spec := range f1.Personas {
		_, err := st.CreateAgent(ctx, store.Agent{
			Name:         spec.Name,
			Tier:         spec.Tier,
			Domain:       spec.Domain,
			Specialty:    spec.Specialty,
			SystemPrompt: spec.SystemPrompt,
			Bio:          spec.Bio,
		})
		if err != nil {
			return fmt.Errorf("seed agent %s: %w", spec.Name, err)
		}
	}
	for _, f := range f1.SeedFacts {
		_, err := st.CreateFact(ctx, store.KnowledgeFact{
			Content:    f.Content,
			Category:   f.Category,
			Confidence: f.Confidence,
			IsSeed:     true,
		})
		if err != nil {
			return fmt.Errorf("seed fact: %w", err)
		}
	}
	for _, n := range f1.SeedNews {
		_, err := st.CreateNewsEvent(ctx, store.NewsEvent{
			Headline: n.Headline,
			Source:   n.Source,
			Category: n.Category,
		})
		if err != nil {
			return fmt.Errorf("seed news: %w", err)
		}
	}
	logger.Printf("[SEED] loaded %d personas, %d facts, %d news events",
		len(f1.Personas), len(f1.SeedFacts), len(f1.SeedNews))
	return nil
}
