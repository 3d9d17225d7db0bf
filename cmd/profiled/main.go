package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/profiled/internal/controlplane"
	"github.com/GriffinCanCode/profiled/internal/ide"
	"github.com/GriffinCanCode/profiled/internal/infrastructure/config"
	"github.com/GriffinCanCode/profiled/internal/infrastructure/logging"
	"github.com/GriffinCanCode/profiled/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/profiled/internal/infrastructure/server"
	"github.com/GriffinCanCode/profiled/internal/lifecycle"
	"github.com/GriffinCanCode/profiled/internal/profile"
	"github.com/GriffinCanCode/profiled/internal/storage"
)

func main() {
	port := flag.String("port", "", "Server port (overrides PORT)")
	localGlob := flag.String("local", "", "Serve the first local profile matching this pattern (overrides PROFILE_LOCAL_GLOB)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *localGlob != "" {
		cfg.Profile.LocalGlob = *localGlob
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger.Logger); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
	logger.Info("Shut down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(reg)

	client := controlplane.New(controlplane.Config{
		BaseURL:          cfg.ControlPlane.URL,
		APIKey:           cfg.ControlPlane.APIKey,
		Timeout:          cfg.ControlPlane.Timeout,
		RetryMax:         cfg.ControlPlane.RetryMax,
		RPS:              cfg.ControlPlane.RequestsPerSec,
		BreakerThreshold: cfg.ControlPlane.BreakerThreshold,
		BreakerTimeout:   cfg.ControlPlane.BreakerTimeout,
	}, controlplane.WithLogger(logger), controlplane.WithMetrics(metrics))

	env := ide.NewFromEnvironment(cfg.IDE.Name, cfg.IDE.WorkspaceDir)
	settings := ide.LoadSettingsAsync(ctx, cfg.IDE.SettingsFile)

	store, err := storage.NewStore(cfg.Storage.SnapshotDir)
	if err != nil {
		return err
	}
	defer store.Close()

	policy, err := profile.ParseVersionPolicy(cfg.Profile.VersionPolicy)
	if err != nil {
		return err
	}
	opts := []profile.Option{
		profile.WithReloadInterval(cfg.Profile.ReloadInterval),
		profile.WithVersionPolicy(policy),
		profile.WithLogger(logger),
		profile.WithMetrics(metrics),
	}

	manager := lifecycle.NewManager(logger)
	defer func() {
		if err := manager.Close(); err != nil {
			logger.Warn("Failed to close profile loader", zap.Error(err))
		}
	}()

	if cfg.Profile.LocalGlob != "" {
		loader, err := newLocalLoader(ctx, cfg, client, env, settings, manager, logger, opts)
		if err != nil {
			return err
		}
		manager.Attach(loader)
	} else {
		loader, err := newPlatformLoader(ctx, cfg, policy, client, env, settings, store, manager, logger, opts)
		if err != nil {
			return err
		}
		manager.Attach(loader)
		defer saveSnapshot(store, cfg, loader, logger)
	}

	srv := server.NewServer(cfg, server.Deps{
		Manager:  manager,
		Metrics:  metrics,
		Gatherer: reg,
		Breaker:  client,
		Logger:   logger,
	})
	return srv.Run(ctx)
}

func newPlatformLoader(
	ctx context.Context,
	cfg *config.Config,
	policy profile.VersionPolicy,
	client *controlplane.Client,
	env ide.IDE,
	settings *ide.SettingsPromise,
	store *storage.Store,
	manager *lifecycle.Manager,
	logger *zap.Logger,
	opts []profile.Option,
) (*profile.PlatformLoader, error) {
	owner, pkg := cfg.Profile.OwnerSlug, cfg.Profile.PackageSlug

	var pinned string
	if policy == profile.PinVersion {
		pinned = cfg.Profile.VersionSlug
	}

	initial, found, err := store.Bootstrap(owner, pkg, pinned)
	switch {
	case errors.Is(err, storage.ErrSnapshotVersion):
		logger.Info("Ignoring snapshot of another version", zap.String("path", store.Path(owner, pkg)), zap.Error(err))
	case err != nil:
		logger.Warn("Ignoring unreadable snapshot", zap.String("path", store.Path(owner, pkg)), zap.Error(err))
	}
	if found {
		logger.Info("Restored profile from snapshot", zap.String("path", store.Path(owner, pkg)))
	}

	// Set once the loader exists; reloads before that have nothing to save
	var self atomic.Pointer[profile.PlatformLoader]

	loader, err := profile.NewPlatformLoader(profile.PlatformParams{
		Initial:     initial,
		OwnerSlug:   owner,
		PackageSlug: pkg,
		VersionSlug: cfg.Profile.VersionSlug,
		Client:      client,
		IDE:         env,
		Settings:    settings,
		LogWriter:   logging.Writer(logger.Named("materialize")),
		OnReload: func() {
			manager.OnReload()
			if l := self.Load(); l != nil {
				saveSnapshot(store, cfg, l, logger)
			}
		},
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("create platform loader: %w", err)
	}
	self.Store(loader)

	if !found {
		go func() {
			if _, err := loader.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("Initial refresh failed; retrying on the next interval", zap.Error(err))
			}
		}()
	}
	return loader, nil
}

func newLocalLoader(
	ctx context.Context,
	cfg *config.Config,
	client *controlplane.Client,
	env ide.IDE,
	settings *ide.SettingsPromise,
	manager *lifecycle.Manager,
	logger *zap.Logger,
	opts []profile.Option,
) (*profile.LocalLoader, error) {
	paths, err := profile.DiscoverLocal(cfg.Profile.LocalGlob)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no local profile matches %q", cfg.Profile.LocalGlob)
	}
	if len(paths) > 1 {
		logger.Info("Multiple local profiles found; using the first", zap.Strings("paths", paths))
	}

	var api controlplane.API
	if cfg.ControlPlane.APIKey != "" {
		api = client
	}

	loader, err := profile.NewLocalLoader(ctx, profile.LocalParams{
		Path:      paths[0],
		Client:    api,
		IDE:       env,
		Settings:  settings,
		LogWriter: logging.Writer(logger.Named("materialize")),
		OnReload:  manager.OnReload,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("create local loader: %w", err)
	}
	return loader, nil
}

func saveSnapshot(store *storage.Store, cfg *config.Config, loader *profile.PlatformLoader, logger *zap.Logger) {
	owner, pkg := cfg.Profile.OwnerSlug, cfg.Profile.PackageSlug
	if err := store.Save(owner, pkg, cfg.Profile.VersionSlug, loader.Cached()); err != nil {
		logger.Warn("Failed to save snapshot", zap.Error(err))
		return
	}
	logger.Debug("Saved snapshot", zap.String("path", store.Path(owner, pkg)))
}
