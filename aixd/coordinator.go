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
	"github.com/aixprotocol/aix/coordinator"
	"github.com/aixprotocol/aix/coordinator/api"
	coordmw "github.com/aixprotocol/aix/coordinator/middleware"
	"github.com/aixprotocol/aix/pkg/mqtt"
	"github.com/aixprotocol/aix/privacy"
	"github.com/aixprotocol/aix/registry"
	regmw "github.com/aixprotocol/aix/registry/middleware"
	"github.com/aixprotocol/aix/secagg"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const coordinatorSvcName = "coordinator"

type CoordinatorConfig struct {
	LogLevel      string
	InstanceID    string
	NodeID        string
	NodeKey       string
	NetworkID     string
	DataDir       string
	ClipNorm      float64
	SweepInterval time.Duration
	MQTTAddress   string
	MQTTTimeout   time.Duration
	Server        server.Config
	OTELURL       url.URL
	TraceRatio    float64
}

func StartCoordinator(ctx context.Context, cancel context.CancelFunc, cfg CoordinatorConfig) error {
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
		sdktp, err := jaeger.NewProvider(ctx, coordinatorSvcName, cfg.OTELURL, "", cfg.TraceRatio)
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
	tracer := tp.Tracer(coordinatorSvcName)

	publisher, err := mqtt.NewBus(cfg.MQTTAddress, coordinatorSvcName, cfg.NodeID, cfg.NodeKey, cfg.NetworkID, cfg.MQTTTimeout, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize mqtt event bus: %s", err.Error())
	}
	defer func() {
		if err := publisher.Disconnect(context.Background()); err != nil {
			logger.Warn("failed to disconnect from MQTT broker", slog.Any("error", err))
		}
	}()

	stores, err := openStores(cfg.DataDir, "participants", "budgets", "rounds")
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ledger := privacy.NewLedger(stores["budgets"])
	noise := privacy.NewNoiseEngine(rng, cfg.ClipNorm)

	reg := registry.NewService(stores["participants"], ledger, publisher)
	reg = regmw.Logging(logger, reg)
	reg = regmw.Tracing(tracer, reg)
	regCounter, regLatency := prometheus.MakeMetrics("registry", "api")
	reg = regmw.Metrics(regCounter, regLatency, reg)

	svc := coordinator.NewService(stores["rounds"], reg, ledger, noise, secagg.NewScheme(), publisher)
	svc = coordmw.Logging(logger, svc)
	svc = coordmw.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(coordinatorSvcName, "api")
	svc = coordmw.Metrics(counter, latency, svc)

	sweepInterval := cfg.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}
	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if _, err := svc.ExpireRounds(ctx); err != nil {
					logger.Warn("round sweep failed", slog.Any("error", err))
				}
			}
		}
	})

	hs := httpserver.NewServer(ctx, cancel, coordinatorSvcName, cfg.Server, api.MakeHandler(svc, reg, logger, cfg.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, coordinatorSvcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", coordinatorSvcName, err))
	}

	return nil
}
