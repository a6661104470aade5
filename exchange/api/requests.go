package api

import (
	"github.com/aixprotocol/aix/model"
	apiutil "github.com/absmach/supermq/api/http/util"
)

type modelReq struct {
	model.Summary `json:",inline"`
}

func (m *modelReq) validate() error {
	if m.ID == "" {
		return apiutil.ErrMissingID
	}

	return m.Validate()
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

type sharingReq struct {
	model.SharingRequest `json:",inline"`
}

func (s *sharingReq) validate() error {
	return s.Validate()
}

type aggregationReq struct {
	model.AggregationRequest `json:",inline"`
}

func (a *aggregationReq) validate() error {
	return a.Validate()
}

type bidReq struct {
	model.MarketplaceBid `json:",inline"`
}

func (b *bidReq) validate() error {
	return b.Validate()
}

type evaluationReq struct {
	model.EvaluationRequest `json:",inline"`
}

func (e *evaluationReq) validate() error {
	return e.Validate()
}

type evaluationResultReq struct {
	model.EvaluationResult `json:",inline"`
}

func (e *evaluationResultReq) validate() error {
	return e.Validate()
}

type policyReq struct {
	model.PrivacyPolicy `json:",inline"`
}

func (p *policyReq) validate() error {
	if p.NodeID == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type compatibilityReq struct {
	Version         model.Version `json:"version"`
	TargetFramework string        `json:"target_framework"`
}

func (c *compatibilityReq) validate() error {
	if c.Version.Version == "" {
		return apiutil.ErrMissingID
	}

	return nil
}
