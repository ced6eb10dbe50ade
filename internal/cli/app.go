package cli

import (
	"fmt"
	"time"

	"github.com/theoyinbooke/saggiatore-sub001/internal/config"
	"github.com/theoyinbooke/saggiatore-sub001/internal/logger"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/catalog"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/conversation"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/events"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/llm"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/scoring"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/session"
	"github.com/theoyinbooke/saggiatore-sub001/pkg/store"
)

// app bundles the wired components behind every command.
type app struct {
	cfg         *config.Config
	log         *logger.Logger
	store       *store.Store
	catalog     *catalog.Catalog
	registry    *llm.Registry
	creds       llm.Credentials
	factory     *llm.Factory
	broadcaster *events.Broadcaster
	sessions    *session.Manager
	engine      *conversation.Engine
	aggregator  *scoring.Aggregator
}

// newApp loads config and wires the component graph.
func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: true,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return nil, err
	}
	zl := log.Zerolog()

	st, err := store.Open(cfg.DatabasePath, zl)
	if err != nil {
		log.Close()
		return nil, err
	}

	cat, err := catalog.New(cfg.DataDir, zl)
	if err != nil {
		st.Close()
		log.Close()
		return nil, err
	}

	creds := llm.CredentialsFromEnv()
	factory := llm.NewFactory(creds)
	registry := llm.NewRegistry(cfg.Models)
	broadcaster := events.NewBroadcaster(zl)
	sessions := session.NewManager(st, broadcaster, zl)

	engine := conversation.NewEngine(conversation.Config{
		Sessions:  sessions,
		Providers: factory,
		SimulatorModel: llm.ModelConfig{
			ModelID:  cfg.Simulator.Model,
			Provider: cfg.Simulator.Provider,
			APIModel: cfg.Simulator.Model,
		},
		MaxToolIterations: cfg.Run.MaxToolIterations,
		Logger:            zl,
	})

	var primary scoring.Scorer
	external := scoring.NewExternalScorer(scoring.ExternalConfig{
		BaseURL:      cfg.Scorer.BaseURL,
		APIKey:       cfg.Scorer.APIKey,
		Project:      cfg.Scorer.Project,
		MaxAttempts:  cfg.Scorer.MaxPollAttempts,
		PollInterval: time.Duration(cfg.Scorer.PollIntervalSeconds) * time.Second,
	}, zl)
	if external.Configured() {
		primary = external
	}
	aggregator := scoring.NewAggregator(st, primary, scoring.NewSimulatedScorer(), broadcaster, zl)

	return &app{
		cfg:         cfg,
		log:         log,
		store:       st,
		catalog:     cat,
		registry:    registry,
		creds:       creds,
		factory:     factory,
		broadcaster: broadcaster,
		sessions:    sessions,
		engine:      engine,
		aggregator:  aggregator,
	}, nil
}

func (a *app) Close() {
	a.broadcaster.Close()
	if err := a.store.Close(); err != nil {
		fmt.Printf("warning: failed to close store: %v\n", err)
	}
	a.log.Close()
}
