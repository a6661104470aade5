package main

import (
	"context"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/absmach/magistrala/pkg/server"
	"github.com/aixprotocol/aix/aixd"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	defHTTPPort   = "7071"
	envPrefixHTTP = "COORDINATOR_HTTP_"
	pathEnv       = ".env"
)

type envConfig struct {
	LogLevel      string        `env:"COORDINATOR_LOG_LEVEL"      envDefault:"info"`
	InstanceID    string        `env:"COORDINATOR_INSTANCE_ID"`
	NodeID        string        `env:"COORDINATOR_NODE_ID"`
	NodeKey       string        `env:"COORDINATOR_NODE_KEY"`
	NetworkID     string        `env:"COORDINATOR_NETWORK_ID"`
	DataDir       string        `env:"COORDINATOR_DATA_DIR"`
	ClipNorm      float64       `env:"COORDINATOR_CLIP_NORM"      envDefault:"1.0"`
	SweepInterval time.Duration `env:"COORDINATOR_SWEEP_INTERVAL" envDefault:"30s"`
	MQTTAddress   string        `env:"COORDINATOR_MQTT_ADDRESS"   envDefault:"tcp://localhost:1883"`
	MQTTTimeout   time.Duration `env:"COORDINATOR_MQTT_TIMEOUT"   envDefault:"30s"`
	OTELURL       url.URL       `env:"COORDINATOR_OTEL_URL"`
	TraceRatio    float64       `env:"COORDINATOR_TRACE_RATIO"    envDefault:"0"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.NodeID == "" {
		cfg.NodeID = cfg.InstanceID
	}

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		log.Fatalf("failed to load HTTP server configuration : %s", err.Error())
	}

	if err := aixd.StartCoordinator(ctx, cancel, aixd.CoordinatorConfig{
		LogLevel:      cfg.LogLevel,
		InstanceID:    cfg.InstanceID,
		NodeID:        cfg.NodeID,
		NodeKey:       cfg.NodeKey,
		NetworkID:     cfg.NetworkID,
		DataDir:       cfg.DataDir,
		ClipNorm:      cfg.ClipNorm,
		SweepInterval: cfg.SweepInterval,
		MQTTAddress:   cfg.MQTTAddress,
		MQTTTimeout:   cfg.MQTTTimeout,
		Server:        httpServerConfig,
		OTELURL:       cfg.OTELURL,
		TraceRatio:    cfg.TraceRatio,
	}); err != nil {
		log.Fatalf("coordinator service exited with error: %s", err.Error())
	}
}
