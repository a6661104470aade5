// Package aixd bootstraps the exchange and coordinator services: it owns the
// wiring from configuration to a running HTTP server, shared between the
// standalone binaries and the daemon CLI.
package aixd

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"os"
	"time"

	"github.com/absmach/magistrala/pkg/jaeger"
	"github.com/absmach/magistrala/pkg/prometheus"
	"github.com/absmach/magistrala/pkg/server"
	httpserver "github.com/absmach/magistrala/pkg/server/http"
	"github.com/aixprotocol/aix/aggregator"
	"github.com/aixprotocol/aix/coordinator"
	"github.com/aixprotocol/aix/evaluator"
	"github.com/aixprotocol/aix/exchange"
	"github.com/aixprotocol/aix/exchange/api"
	"github.com/aixprotocol/aix/exchange/middleware"
	"github.com/aixprotocol/aix/pkg/mqtt"
	"github.com/aixprotocol/aix/pkg/storage"
	"github.com/aixprotocol/aix/privacy"
	"github.com/aixprotocol/aix/registry"
	"github.com/aixprotocol/aix/secagg"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const exchangeSvcName = "exchange"

type ExchangeConfig struct {
	LogLevel           string
	InstanceID         string
	NodeID             string
	NodeKey            string
	NetworkID          string
	DataDir            string
	MaxSharing         int
	MarketplaceEnabled bool
	RequestTTL         time.Duration
	BidTTL             time.Duration
	CleanupInterval    time.Duration
	ClipNorm           float64
	MQTTAddress        string
	MQTTTimeout        time.Duration
	Server             server.Config
	OTELURL            url.URL
	TraceRatio         float64
}

func StartExchange(ctx context.Context, cancel context.CancelFunc, cfg ExchangeConfig) error {
	g, ctx := errgroup.WithContext(ctx)

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, exchangeSvcName, cfg.OTELURL, "", cfg.TraceRatio)
		if err != nil {
			return fmt.Errorf("failed to initialize opentelemetry: %s", err.Error())
		}
		defer func() {
			if err := sdktp.Shutdown(ctx); err != nil {
				slog.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(exchangeSvcName)

	publisher, err := mqtt.NewBus(cfg.MQTTAddress, exchangeSvcName, cfg.NodeID, cfg.NodeKey, cfg.NetworkID, cfg.MQTTTimeout, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize mqtt event bus: %s", err.Error())
	}
	defer func() {
		if err := publisher.Disconnect(context.Background()); err != nil {
			logger.Warn("failed to disconnect from MQTT broker", slog.Any("error", err))
		}
	}()

	stores, err := openStores(cfg.DataDir, "models", "requests", "bids", "evaluations", "policies", "participants", "budgets", "rounds")
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ledger := privacy.NewLedger(stores["budgets"])
	noise := privacy.NewNoiseEngine(rng, cfg.ClipNorm)

	reg := registry.NewService(stores["participants"], ledger, publisher)
	coord := coordinator.NewService(stores["rounds"], reg, ledger, noise, secagg.NewScheme(), publisher)

	svc := exchange.NewService(
		exchange.Config{
			NodeID:               cfg.NodeID,
			MaxConcurrentSharing: cfg.MaxSharing,
			MarketplaceEnabled:   cfg.MarketplaceEnabled,
			RequestTTL:           cfg.RequestTTL,
			BidTTL:               cfg.BidTTL,
		},
		stores["models"],
		stores["requests"],
		stores["bids"],
		stores["evaluations"],
		stores["policies"],
		aggregator.New(rng.Float64),
		evaluator.New(rng),
		coord,
		publisher,
		logger,
	)
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(exchangeSvcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	g.Go(func() error {
		return svc.RunCleanup(ctx, cleanupInterval)
	})

	hs := httpserver.NewServer(ctx, cancel, exchangeSvcName, cfg.Server, api.MakeHandler(svc, logger, cfg.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, exchangeSvcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", exchangeSvcName, err))
	}

	return nil
}

func openStores(dataDir string, names ...string) (map[string]storage.Storage, error) {
	stores := make(map[string]storage.Storage, len(names))
	for _, name := range names {
		if dataDir == "" {
			stores[name] = storage.NewInMemoryStorage()

			continue
		}
		s, err := storage.NewBadgerStorage(dataDir + "/" + name)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s store: %s", name, err.Error())
		}
		stores[name] = s
	}

	return stores, nil
}
