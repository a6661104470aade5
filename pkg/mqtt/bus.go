// Package mqtt bridges core events onto an MQTT broker. Topics are laid
// out per network and event class:
//
//	aix/<network>/participants/<kind>
//	aix/<network>/rounds/<kind>
//	aix/<network>/models/<kind>
//	aix/<network>/market/<kind>
//
// Registry transitions are published retained at QoS 1 so a node joining
// late still sees the last status. Round, model, sharing and evaluation
// events are QoS 1 without retention. Marketplace traffic is best effort
// at QoS 0.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/aixprotocol/aix/pkg/events"
)

// Event classes, one topic level each.
const (
	ClassParticipants = "participants"
	ClassRounds       = "rounds"
	ClassModels       = "models"
	ClassMarket       = "market"
)

const (
	defNetwork = "default"

	connectTimeout   = 10 * time.Second
	maxReconnectWait = time.Minute
	// Milliseconds granted to in-flight messages on disconnect.
	disconnectQuiesce = 250
)

var (
	errEmptyID          = errors.New("empty client ID")
	errEmptyKind        = errors.New("event carries no kind")
	errUnknownClass     = errors.New("unknown event class")
	errConnectFailed    = errors.New("failed to connect to MQTT broker")
	errConnectTimeout   = errors.New("timeout reached while connecting to MQTT broker")
	errPublishTimeout   = errors.New("timeout reached while publishing")
	errSubscribeTimeout = errors.New("timeout reached while subscribing")
)

// delivery is the broker-level contract for one event class.
type delivery struct {
	qos    byte
	retain bool
}

var deliveries = map[string]delivery{
	ClassParticipants: {qos: 1, retain: true},
	ClassRounds:       {qos: 1},
	ClassModels:       {qos: 1},
	ClassMarket:       {qos: 0},
}

// classOf buckets an event kind by its dotted prefix. Kinds the bus has
// never seen travel with the model traffic.
func classOf(k events.Kind) string {
	prefix, _, _ := strings.Cut(string(k), ".")
	switch prefix {
	case "participant":
		return ClassParticipants
	case "round":
		return ClassRounds
	case "marketplace":
		return ClassMarket
	default:
		return ClassModels
	}
}

// Topic is the broker topic events of the given kind are published on.
func Topic(networkID string, k events.Kind) string {
	return fmt.Sprintf("aix/%s/%s/%s", network(networkID), classOf(k), k)
}

// Filter matches every event of one class within a network.
func Filter(networkID, class string) string {
	return fmt.Sprintf("aix/%s/%s/+", network(networkID), class)
}

func network(id string) string {
	if id == "" {
		return defNetwork
	}

	return id
}

// Handler consumes one decoded event from a subscribed class.
type Handler func(e events.Event) error

// Bus is an events.Publisher backed by the broker, plus the subscriber
// side for nodes following a network's event stream.
type Bus interface {
	events.Publisher
	Subscribe(ctx context.Context, class string, handler Handler) error
	Unsubscribe(ctx context.Context, class string) error
	Disconnect(ctx context.Context) error
}

type bus struct {
	client    paho.Client
	networkID string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewBus connects to the broker and registers a retained last-will on the
// node's presence topic, so peers observe the node dropping off.
func NewBus(address, id, username, password, networkID string, timeout time.Duration, logger *slog.Logger) (Bus, error) {
	if id == "" {
		return nil, errEmptyID
	}

	opts := paho.NewClientOptions().
		AddBroker(address).
		SetClientID(id).
		SetUsername(username).
		SetPassword(password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetMaxReconnectInterval(maxReconnectWait)

	presence := fmt.Sprintf("aix/%s/presence/%s", network(networkID), id)
	opts.SetWill(presence, fmt.Sprintf(`{"status":"offline","node_id":%q}`, id), 1, true)

	opts.SetOnConnectHandler(func(paho.Client) {
		logger.Info("connected to MQTT broker", slog.String("client_id", id))
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("MQTT connection lost", slog.Any("error", err))
	})
	opts.SetReconnectingHandler(func(_ paho.Client, _ *paho.ClientOptions) {
		logger.Info("MQTT reconnecting", slog.String("client_id", id))
	})

	client := paho.NewClient(opts)
	token := client.Connect()
	if token.Error() != nil {
		return nil, errors.Join(errConnectFailed, token.Error())
	}
	if ok := token.WaitTimeout(timeout); !ok {
		return nil, errConnectTimeout
	}

	return &bus{
		client:    client,
		networkID: networkID,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

func (b *bus) Publish(ctx context.Context, e events.Event) error {
	if e.Kind == "" {
		return errEmptyKind
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}

	d := deliveries[classOf(e.Kind)]
	token := b.client.Publish(Topic(b.networkID, e.Kind), d.qos, d.retain, payload)
	if token.Error() != nil {
		return token.Error()
	}
	if ok := token.WaitTimeout(b.timeout); !ok {
		return errPublishTimeout
	}

	return nil
}

func (b *bus) Subscribe(ctx context.Context, class string, handler Handler) error {
	d, ok := deliveries[class]
	if !ok {
		return errUnknownClass
	}

	token := b.client.Subscribe(Filter(b.networkID, class), d.qos, func(_ paho.Client, m paho.Message) {
		var e events.Event
		if err := json.Unmarshal(m.Payload(), &e); err != nil {
			b.logger.Warn("dropping undecodable event",
				slog.String("topic", m.Topic()), slog.Any("error", err))

			return
		}
		if err := handler(e); err != nil {
			b.logger.Warn("event handler failed",
				slog.String("topic", m.Topic()), slog.Any("error", err))
		}
		m.Ack()
	})
	if token.Error() != nil {
		return token.Error()
	}
	if ok := token.WaitTimeout(b.timeout); !ok {
		return errSubscribeTimeout
	}

	return nil
}

func (b *bus) Unsubscribe(ctx context.Context, class string) error {
	if _, ok := deliveries[class]; !ok {
		return errUnknownClass
	}

	token := b.client.Unsubscribe(Filter(b.networkID, class))
	if token.Error() != nil {
		return token.Error()
	}
	if ok := token.WaitTimeout(b.timeout); !ok {
		return errSubscribeTimeout
	}

	return nil
}

func (b *bus) Disconnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		b.client.Disconnect(disconnectQuiesce)

		return nil
	}
}
