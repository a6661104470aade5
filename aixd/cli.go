package aixd

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/magistrala/pkg/server"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	logLevel    = "info"
	dataDir     = ""
	mqttAddress = "tcp://localhost:1883"
	mqttTimeout = 30 * time.Second
	nodeID      = uuid.NewString()
	nodeKey     = ""
	networkID   = ""
	httpPort    = "7070"
)

var exchangeCmd = []cobra.Command{
	{
		Use:   "start",
		Short: "Start exchange",
		Long:  `Start the intelligence exchange service.`,
		Run: func(cmd *cobra.Command, _ []string) {
			cfg := ExchangeConfig{
				LogLevel:           logLevel,
				InstanceID:         uuid.NewString(),
				NodeID:             nodeID,
				NodeKey:            nodeKey,
				NetworkID:          networkID,
				DataDir:            dataDir,
				MaxSharing:         10,
				MarketplaceEnabled: true,
				RequestTTL:         30 * time.Minute,
				BidTTL:             time.Hour,
				CleanupInterval:    5 * time.Minute,
				ClipNorm:           1.0,
				MQTTAddress:        mqttAddress,
				MQTTTimeout:        mqttTimeout,
				Server: server.Config{
					Port: httpPort,
				},
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if err := StartExchange(ctx, cancel, cfg); err != nil {
				slog.Error("failed to start exchange", slog.String("error", err.Error()))
			}
		},
	},
}

var coordinatorCmd = []cobra.Command{
	{
		Use:   "start",
		Short: "Start coordinator",
		Long:  `Start the round coordinator service.`,
		Run: func(cmd *cobra.Command, _ []string) {
			cfg := CoordinatorConfig{
				LogLevel:      logLevel,
				InstanceID:    uuid.NewString(),
				NodeID:        nodeID,
				NodeKey:       nodeKey,
				NetworkID:     networkID,
				DataDir:       dataDir,
				ClipNorm:      1.0,
				SweepInterval: 30 * time.Second,
				MQTTAddress:   mqttAddress,
				MQTTTimeout:   mqttTimeout,
				Server: server.Config{
					Port: httpPort,
				},
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if err := StartCoordinator(ctx, cancel, cfg); err != nil {
				slog.Error("failed to start coordinator", slog.String("error", err.Error()))
			}
		},
	},
}

func NewExchangeCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "exchange [start]",
		Short: "Exchange management",
		Long:  `Run the intelligence exchange service.`,
	}

	for i := range exchangeCmd {
		cmd.AddCommand(&exchangeCmd[i])
	}

	addCommonFlags(&cmd)

	return &cmd
}

func NewCoordinatorCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "coordinator [start]",
		Short: "Coordinator management",
		Long:  `Run the round coordinator service.`,
	}

	for i := range coordinatorCmd {
		cmd.AddCommand(&coordinatorCmd[i])
	}

	addCommonFlags(&cmd)

	return &cmd
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(
		&logLevel,
		"log-level",
		"l",
		logLevel,
		"Log level",
	)
	cmd.PersistentFlags().StringVarP(
		&dataDir,
		"data-dir",
		"d",
		dataDir,
		"Data directory for persistent stores, in-memory when empty",
	)
	cmd.PersistentFlags().StringVarP(
		&mqttAddress,
		"mqtt-address",
		"m",
		mqttAddress,
		"MQTT broker address",
	)
	cmd.PersistentFlags().DurationVarP(
		&mqttTimeout,
		"mqtt-timeout",
		"t",
		mqttTimeout,
		"MQTT timeout",
	)
	cmd.PersistentFlags().StringVarP(
		&nodeID,
		"node-id",
		"i",
		nodeID,
		"Node id",
	)
	cmd.PersistentFlags().StringVarP(
		&nodeKey,
		"node-key",
		"k",
		nodeKey,
		"Node key",
	)
	cmd.PersistentFlags().StringVarP(
		&networkID,
		"network-id",
		"n",
		networkID,
		"Network id",
	)
	cmd.PersistentFlags().StringVarP(
		&httpPort,
		"http-port",
		"p",
		httpPort,
		"HTTP server port",
	)
}
