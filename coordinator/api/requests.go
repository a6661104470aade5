package api

import (
	"github.com/aixprotocol/aix/model"
	"github.com/aixprotocol/aix/participant"
	"github.com/aixprotocol/aix/round"
	apiutil "github.com/absmach/supermq/api/http/util"
)

type roundReq struct {
	round.Config `json:",inline"`
}

func (r *roundReq) validate() error {
	return r.Validate()
}

type entityReq struct {
	id string
}

func (e *entityReq) validate() error {
	if e.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type listEntityReq struct {
	offset, limit uint64
}

func (e *listEntityReq) validate() error {
	return nil
}

type updateReq struct {
	model.Update `json:",inline"`
}

func (u *updateReq) validate() error {
	return u.Validate()
}

type gradientUpdateReq struct {
	model.GradientUpdate
}

func (u *gradientUpdateReq) validate() error {
	return u.Validate()
}

type registerParticipantReq struct {
	participant.Participant `json:",inline"`
	MaxEpsilon              float64 `json:"max_epsilon"`
	MaxDelta                float64 `json:"max_delta"`
}

func (r *registerParticipantReq) validate() error {
	if r.ID == "" {
		return apiutil.ErrMissingID
	}
	if r.MaxEpsilon <= 0 || r.MaxDelta <= 0 {
		return apiutil.ErrValidation
	}

	return nil
}

type reputationReq struct {
	id     string
	Delta  float64 `json:"delta"`
	Reason string  `json:"reason"`
}

func (r *reputationReq) validate() error {
	if r.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type statusReq struct {
	id     string
	Reason string `json:"reason"`
}

func (s *statusReq) validate() error {
	if s.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type eligibleReq struct {
	minReputation float64
}

func (e *eligibleReq) validate() error {
	return nil
}

type topNReq struct {
	n int
}

func (t *topNReq) validate() error {
	if t.n <= 0 {
		return apiutil.ErrValidation
	}

	return nil
}
