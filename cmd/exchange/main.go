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
	defHTTPPort   = "7070"
	envPrefixHTTP = "EXCHANGE_HTTP_"
	pathEnv       = ".env"
)

type envConfig struct {
	LogLevel           string        `env:"EXCHANGE_LOG_LEVEL"        envDefault:"info"`
	InstanceID         string        `env:"EXCHANGE_INSTANCE_ID"`
	NodeID             string        `env:"EXCHANGE_NODE_ID"`
	NodeKey            string        `env:"EXCHANGE_NODE_KEY"`
	NetworkID          string        `env:"EXCHANGE_NETWORK_ID"`
	DataDir            string        `env:"EXCHANGE_DATA_DIR"`
	MaxSharing         int           `env:"EXCHANGE_MAX_SHARING"      envDefault:"10"`
	MarketplaceEnabled bool          `env:"EXCHANGE_MARKETPLACE"      envDefault:"true"`
	RequestTTL         time.Duration `env:"EXCHANGE_REQUEST_TTL"      envDefault:"30m"`
	BidTTL             time.Duration `env:"EXCHANGE_BID_TTL"          envDefault:"1h"`
	CleanupInterval    time.Duration `env:"EXCHANGE_CLEANUP_INTERVAL" envDefault:"5m"`
	ClipNorm           float64       `env:"EXCHANGE_CLIP_NORM"        envDefault:"1.0"`
	MQTTAddress        string        `env:"EXCHANGE_MQTT_ADDRESS"     envDefault:"tcp://localhost:1883"`
	MQTTTimeout        time.Duration `env:"EXCHANGE_MQTT_TIMEOUT"     envDefault:"30s"`
	OTELURL            url.URL       `env:"EXCHANGE_OTEL_URL"`
	TraceRatio         float64       `env:"EXCHANGE_TRACE_RATIO"      envDefault:"0"`
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

	if err := aixd.StartExchange(ctx, cancel, aixd.ExchangeConfig{
		LogLevel:           cfg.LogLevel,
		InstanceID:         cfg.InstanceID,
		NodeID:             cfg.NodeID,
		NodeKey:            cfg.NodeKey,
		NetworkID:          cfg.NetworkID,
		DataDir:            cfg.DataDir,
		MaxSharing:         cfg.MaxSharing,
		MarketplaceEnabled: cfg.MarketplaceEnabled,
		RequestTTL:         cfg.RequestTTL,
		BidTTL:             cfg.BidTTL,
		CleanupInterval:    cfg.CleanupInterval,
		ClipNorm:           cfg.ClipNorm,
		MQTTAddress:        cfg.MQTTAddress,
		MQTTTimeout:        cfg.MQTTTimeout,
		Server:             httpServerConfig,
		OTELURL:            cfg.OTELURL,
		TraceRatio:         cfg.TraceRatio,
	}); err != nil {
		log.Fatalf("exchange service exited with error: %s", err.Error())
	}
}
