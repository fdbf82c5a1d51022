// Command cse runs the service entity: storage backend, dispatcher, access
// control, registration, lifecycle event publishing, HTTP binding, and the
// metrics endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/c360/cse/config"
	"github.com/c360/cse/dispatcher"
	httpgw "github.com/c360/cse/gateway/http"
	"github.com/c360/cse/metric"
	"github.com/c360/cse/natsclient"
	"github.com/c360/cse/notifier"
	"github.com/c360/cse/registration"
	"github.com/c360/cse/resource"
	"github.com/c360/cse/security"
	"github.com/c360/cse/storage"
	"github.com/c360/cse/storage/kvstore"
	"github.com/c360/cse/storage/memstore"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "cse: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := metric.NewRegistry()

	// NATS backs the KV store and the lifecycle event fabric. With the
	// in-memory backend a missing broker only costs the event features.
	var nats *natsclient.Client
	nats, err = natsclient.Connect(cfg.NATS, logger, registry.CoreMetrics())
	if err != nil {
		if cfg.Storage.Backend == storage.BackendKV {
			return err
		}
		logger.Warn("running without nats; lifecycle events disabled", "error", err)
		nats = nil
	}
	if nats != nil {
		defer nats.Close()
	}

	var store storage.Store
	switch cfg.Storage.Backend {
	case storage.BackendKV:
		store, err = kvstore.New(ctx, nats, cfg.Storage, logger)
		if err != nil {
			return err
		}
	default:
		store = memstore.New()
	}

	if err := bootstrapBase(ctx, store, cfg, logger); err != nil {
		return err
	}

	checker := security.New(store, logger, cfg.Security)
	validator := registration.New(logger, cfg.Registration)

	var events dispatcher.Notifier
	if nats != nil {
		events = notifier.New(nats, logger, registry.CoreMetrics())
	}

	disp, err := dispatcher.New(dispatcher.Dependencies{
		Store:        store,
		Security:     checker,
		Registration: validator,
		Notifier:     events,
		Metrics:      registry,
		Logger:       logger,
		Config: dispatcher.Config{
			CSEID:                   cfg.CSE.CSEID,
			CSEResourceID:           cfg.CSE.ResourceID,
			CSEResourceName:         cfg.CSE.ResourceName,
			SortDiscoveredResources: cfg.CSE.SortDiscoveredResources,
			DefaultExpiration:       cfg.CSE.DefaultExpiration,
			MaxDiscoveryLevel:       cfg.CSE.MaxDiscoveryLevel,
		},
	})
	if err != nil {
		return err
	}

	if cfg.CSE.DefaultExpiration > 0 {
		go disp.RunExpirationSweeper(ctx, time.Minute, cfg.Security.AdminOriginator)
	}

	var feed *httpgw.EventFeed
	if nats != nil && cfg.HTTP.EnableEventFeed {
		feed = httpgw.NewEventFeed(nats, logger)
		if err := feed.Start(); err != nil {
			return err
		}
		defer feed.Stop()
	}

	server, err := httpgw.NewServer(disp, feed, logger, cfg.HTTP)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- server.Start()
	}()

	var metricsServer *metric.Server
	if cfg.Metrics.Enabled {
		metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		go func() {
			errCh <- metricsServer.Start()
		}()
	}

	logger.Info("cse started",
		"cseID", cfg.CSE.CSEID,
		"backend", string(cfg.Storage.Backend),
		"address", cfg.HTTP.Address)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Warn("metrics shutdown failed", "error", err)
		}
	}
	return nil
}

// bootstrapBase creates the base resource on first start.
func bootstrapBase(ctx context.Context, store storage.Store, cfg config.Config, logger *slog.Logger) error {
	exists, err := store.HasResource(ctx, cfg.CSE.ResourceID, cfg.CSE.ResourceName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	base := resource.New(resource.TypeCSEBase, cfg.CSE.ResourceName)
	base.SetRI(cfg.CSE.ResourceID)
	base.SetPI("")
	base.SetAttribute("csi", "/"+cfg.CSE.CSEID)
	base.SetAttribute("srt", supportedTypes())
	base.Stamp(0)
	base.SetStructuredPath(cfg.CSE.ResourceName)

	if err := store.CreateResource(ctx, base, false); err != nil {
		return err
	}
	logger.Info("created base resource", "ri", cfg.CSE.ResourceID, "rn", cfg.CSE.ResourceName)
	return nil
}

func supportedTypes() []int {
	types := []resource.Type{
		resource.TypeACP, resource.TypeAE, resource.TypeCNT, resource.TypeCIN,
		resource.TypeCSEBase, resource.TypeGRP, resource.TypeCSR, resource.TypeREQ,
		resource.TypeSUB, resource.TypeFCNT, resource.TypeFCI,
	}
	out := make([]int, len(types))
	for i, ty := range types {
		out[i] = int(ty)
	}
	return out
}
