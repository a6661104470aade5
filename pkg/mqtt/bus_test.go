package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aixprotocol/aix/pkg/events"
)

func TestClassRouting(t *testing.T) {
	t.Parallel()

	cases := []struct {
		kind  events.Kind
		class string
	}{
		{events.ParticipantRegistered, ClassParticipants},
		{events.ParticipantBlacklisted, ClassParticipants},
		{events.ReputationUpdated, ClassParticipants},
		{events.RoundStarted, ClassRounds},
		{events.RoundCompleted, ClassRounds},
		{events.RoundFailed, ClassRounds},
		{events.ModelRegistered, ClassModels},
		{events.SharingRequested, ClassModels},
		{events.SharingExpired, ClassModels},
		{events.EvaluationStored, ClassModels},
		{events.BidSubmitted, ClassMarket},
		{events.BidExpired, ClassMarket},
		{events.Kind("audit.started"), ClassModels},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.class, classOf(tc.kind), "kind %s", tc.kind)
	}
}

func TestTopicLayout(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "aix/net-1/rounds/round.completed", Topic("net-1", events.RoundCompleted))
	assert.Equal(t, "aix/net-1/market/marketplace.bid-submitted", Topic("net-1", events.BidSubmitted))

	// An unset network falls back to the shared namespace.
	assert.Equal(t, "aix/default/participants/participant.registered", Topic("", events.ParticipantRegistered))
}

func TestFilterMatchesClass(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "aix/net-1/market/+", Filter("net-1", ClassMarket))
	assert.Equal(t, "aix/default/rounds/+", Filter("", ClassRounds))
}

func TestDeliveryPolicy(t *testing.T) {
	t.Parallel()

	// Registry transitions stick around for late subscribers; everything
	// else is transient, and market chatter is fire and forget.
	assert.Equal(t, delivery{qos: 1, retain: true}, deliveries[ClassParticipants])
	assert.Equal(t, delivery{qos: 1}, deliveries[ClassRounds])
	assert.Equal(t, delivery{qos: 1}, deliveries[ClassModels])
	assert.Equal(t, delivery{qos: 0}, deliveries[ClassMarket])
}
