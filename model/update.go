package model

import (
	"time"

	"github.com/aixprotocol/aix/pkg/errors"
	"github.com/fxamacker/cbor/v2"
)

// GradientUpdate is a participant's raw-gradient contribution to a round.
// A non-zero NoiseScale marks the payload as requiring differential-privacy
// noise before aggregation.
type GradientUpdate struct {
	RoundID    string               `json:"round_id"`
	NodeID     string               `json:"node_id"`
	Gradients  map[string][]float64 `json:"gradients"`
	Accuracy   float64              `json:"accuracy,omitempty"`
	Loss       float64              `json:"loss,omitempty"`
	Epoch      int                  `json:"epoch,omitempty"`
	NumSamples int                  `json:"num_samples"`
	NoiseScale float64              `json:"noise_scale,omitempty"`
	ReceivedAt time.Time            `json:"received_at,omitempty"`
}

func (u GradientUpdate) Validate() error {
	if u.RoundID == "" || u.NodeID == "" {
		return errors.ErrMissingField
	}
	if len(u.Gradients) == 0 {
		return errors.ErrMissingField
	}

	return nil
}

// Update is a per-layer weight-delta contribution to a round.
type Update struct {
	RoundID    string               `json:"round_id"`
	NodeID     string               `json:"node_id"`
	Version    string               `json:"version"`
	Deltas     map[string][]float64 `json:"deltas"`
	Accuracy   float64              `json:"accuracy,omitempty"`
	Loss       float64              `json:"loss,omitempty"`
	Epoch      int                  `json:"epoch,omitempty"`
	NumSamples int                  `json:"num_samples"`
	NoiseScale float64              `json:"noise_scale,omitempty"`
	ReceivedAt time.Time            `json:"received_at,omitempty"`
}

func (u Update) Validate() error {
	if u.RoundID == "" || u.NodeID == "" {
		return errors.ErrMissingField
	}
	if len(u.Deltas) == 0 {
		return errors.ErrMissingField
	}

	return nil
}

// MarshalUpdateCBOR encodes an update for transport. Gradient payloads are
// shipped as CBOR rather than JSON to keep large float vectors compact.
func MarshalUpdateCBOR(u Update) ([]byte, error) {
	return cbor.Marshal(u)
}

func UnmarshalUpdateCBOR(data []byte) (Update, error) {
	var u Update
	if err := cbor.Unmarshal(data, &u); err != nil {
		return Update{}, err
	}

	return u, nil
}

func MarshalGradientCBOR(u GradientUpdate) ([]byte, error) {
	return cbor.Marshal(u)
}

func UnmarshalGradientCBOR(data []byte) (GradientUpdate, error) {
	var u GradientUpdate
	if err := cbor.Unmarshal(data, &u); err != nil {
		return GradientUpdate{}, err
	}

	return u, nil
}
