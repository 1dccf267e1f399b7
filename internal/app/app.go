// Package app assembles the assessment pipeline, report cache and feedback store from
// configuration. Every entry point builds its runtime through New.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/thyroid-risk-assessor/internal/cache"
	"github.com/thyroid-risk-assessor/internal/database"
	"github.com/thyroid-risk-assessor/internal/domain"
	"github.com/thyroid-risk-assessor/internal/feedback"
	"github.com/thyroid-risk-assessor/internal/inference"
	"github.com/thyroid-risk-assessor/internal/intake"
	"github.com/thyroid-risk-assessor/internal/model"
	"github.com/thyroid-risk-assessor/internal/service"
)

// App holds the wired runtime shared by the HTTP API, the MCP server and the CLI.
type App struct {
	Config   *domain.Config
	Logger   *logrus.Logger
	Bundle   *model.Bundle
	Assessor domain.Assessor
	Parser   *intake.Parser
	Schema   domain.Schema
	// Feedback is nil when the feedback backend is "none".
	Feedback feedback.Store

	closers []func() error
}

// New loads the model bundle and wires every component selected by cfg.
func New(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (*App, error) {
	if logger == nil {
		logger = logrus.New()
	}
	a := &App{
		Config: cfg,
		Logger: logger,
		Parser: intake.NewParser(intake.Options{ApplyDefaults: true}),
	}

	bundle, err := model.LoadBundle(cfg.Artifacts.BundleDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load model bundle: %w", err)
	}
	a.Bundle = bundle

	deps, err := service.DependenciesFromBundle(bundle, logger)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(cfg.Inference.Mode, "remote") {
		if err := useRemoteModels(ctx, &deps, cfg.Inference, logger); err != nil {
			return nil, err
		}
	}

	engine, err := service.NewAssessor(deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create assessor: %w", err)
	}
	a.Schema = intake.DescribeSchema(deps.ModelVersion, bundle.FeatureColumns, bundle.PhenotypeFeatures, bundle.DangerZones)

	a.Assessor, err = a.withCache(ctx, engine, deps.ModelVersion)
	if err != nil {
		a.Close()
		return nil, err
	}

	if err := a.openFeedback(ctx); err != nil {
		a.Close()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"model_version":    deps.ModelVersion,
		"inference_mode":   cfg.Inference.Mode,
		"cache_backend":    cfg.Cache.Backend,
		"feedback_backend": cfg.Feedback.Backend,
	}).Info("Assessment runtime initialized")

	return a, nil
}

// useRemoteModels swaps the in-process estimators for model-server clients. The preprocessor
// and lookup tables keep coming from the bundle.
func useRemoteModels(ctx context.Context, deps *service.Dependencies, cfg domain.InferenceConfig, logger *logrus.Logger) error {
	client, err := inference.NewClient(cfg, logger)
	if err != nil {
		return err
	}

	classifier, err := inference.NewRemoteClassifier(ctx, client, cfg.ClassifierName)
	if err != nil {
		return fmt.Errorf("failed to connect remote classifier: %w", err)
	}
	clusters, err := inference.NewRemoteClusterModel(ctx, client, cfg.ClusterName)
	if err != nil {
		return fmt.Errorf("failed to connect remote cluster model: %w", err)
	}

	// Every cluster the remote model can emit needs a summary row.
	for id := 0; id < clusters.NumClusters(); id++ {
		if _, ok := deps.PhenotypeSummary[id]; !ok {
			return &domain.ConsistencyError{What: "phenotype summary row for remote cluster", Key: fmt.Sprint(id)}
		}
	}

	deps.Classifier = classifier
	deps.ClusterModel = clusters
	deps.ModelVersion = remoteVersion(deps.ModelVersion,
		cfg.ClassifierName, classifier.Version(),
		cfg.ClusterName, clusters.Version())
	logger.WithFields(logrus.Fields{
		"base_url":   cfg.BaseURL,
		"classifier": cfg.ClassifierName,
		"clusters":   cfg.ClusterName,
	}).Info("Using remote model server")
	return nil
}

// remoteVersion appends name@version pairs to the bundle version so reports and cache keys
// change when the model server is redeployed. Models that report no version are listed bare.
func remoteVersion(bundleVersion string, nameVersions ...string) string {
	var b strings.Builder
	b.WriteString(bundleVersion)
	for i := 0; i+1 < len(nameVersions); i += 2 {
		b.WriteString("+")
		b.WriteString(nameVersions[i])
		if v := nameVersions[i+1]; v != "" {
			b.WriteString("@")
			b.WriteString(v)
		}
	}
	return b.String()
}

func (a *App) withCache(ctx context.Context, engine domain.Assessor, version string) (domain.Assessor, error) {
	cfg := a.Config.Cache
	switch strings.ToLower(cfg.Backend) {
	case "", "none":
		return engine, nil
	case "memory":
		return service.NewCachedAssessor(engine, cache.NewMemoryCache(cfg.MaxItems, cfg.DefaultTTL), version, a.Logger), nil
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect report cache: %w", err)
		}
		a.closers = append(a.closers, rc.Close)
		return service.NewCachedAssessor(engine, rc, version, a.Logger), nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Backend)
	}
}

func (a *App) openFeedback(ctx context.Context) error {
	store, closer, err := OpenFeedbackStore(ctx, a.Config, a.Logger)
	if err != nil {
		return err
	}
	if store != nil {
		a.Feedback = store
		a.closers = append(a.closers, closer)
	}
	return nil
}

// OpenFeedbackStore opens the store selected by cfg.Feedback without loading a model bundle.
// The store is nil for the "none" backend. The returned closer releases the store and any
// connection pool behind it.
func OpenFeedbackStore(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (feedback.Store, func() error, error) {
	switch strings.ToLower(cfg.Feedback.Backend) {
	case "", "none":
		return nil, func() error { return nil }, nil
	case "sqlite":
		store, err := feedback.NewSQLiteStore(cfg.Feedback.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open feedback store: %w", err)
		}
		return store, store.Close, nil
	case "postgres":
		db, err := database.NewConnection(ctx, database.ConfigFromDomain(cfg.Database), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect feedback database: %w", err)
		}
		store, err := feedback.NewPostgresStore(db.SQL())
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to open feedback store: %w", err)
		}
		return store, func() error {
			err := store.Close()
			db.Close()
			return err
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown feedback backend: %s", cfg.Feedback.Backend)
	}
}

// Close releases stores and connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
