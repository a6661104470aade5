package api

import (
	"net/http"

	"github.com/aixprotocol/aix/exchange"
	"github.com/aixprotocol/aix/model"
	"github.com/absmach/magistrala"
)

var (
	_ magistrala.Response = (*modelResponse)(nil)
	_ magistrala.Response = (*listModelResponse)(nil)
	_ magistrala.Response = (*sharingRequestResponse)(nil)
	_ magistrala.Response = (*sharingResponse)(nil)
	_ magistrala.Response = (*bidResponse)(nil)
	_ magistrala.Response = (*listBidResponse)(nil)
	_ magistrala.Response = (*evaluationResponse)(nil)
	_ magistrala.Response = (*listEvaluationResponse)(nil)
	_ magistrala.Response = (*policyResponse)(nil)
	_ magistrala.Response = (*compatibilityResponse)(nil)
	_ magistrala.Response = (*statisticsResponse)(nil)
)

type modelResponse struct {
	model.Summary
	created bool
}

func (m modelResponse) Code() int {
	if m.created {
		return http.StatusCreated
	}

	return http.StatusOK
}

func (m modelResponse) Headers() map[string]string {
	if m.created {
		return map[string]string{
			"Location": "/models/" + m.ID,
		}
	}

	return map[string]string{}
}

func (m modelResponse) Empty() bool {
	return false
}

type listModelResponse struct {
	model.SummaryPage
}

func (l listModelResponse) Code() int {
	return http.StatusOK
}

func (l listModelResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listModelResponse) Empty() bool {
	return false
}

type sharingRequestResponse struct {
	model.SharingRequest
	created  bool
	complete bool
}

func (s sharingRequestResponse) Code() int {
	if s.created {
		return http.StatusCreated
	}
	if s.complete {
		return http.StatusNoContent
	}

	return http.StatusOK
}

func (s sharingRequestResponse) Headers() map[string]string {
	if s.created {
		return map[string]string{
			"Location": "/sharing/requests/" + s.ID,
		}
	}

	return map[string]string{}
}

func (s sharingRequestResponse) Empty() bool {
	return s.complete
}

type sharingResponse struct {
	exchange.SharingResponse
}

func (s sharingResponse) Code() int {
	return http.StatusOK
}

func (s sharingResponse) Headers() map[string]string {
	return map[string]string{}
}

func (s sharingResponse) Empty() bool {
	return false
}

type bidResponse struct {
	model.MarketplaceBid
	created bool
}

func (b bidResponse) Code() int {
	if b.created {
		return http.StatusCreated
	}

	return http.StatusOK
}

func (b bidResponse) Headers() map[string]string {
	return map[string]string{}
}

func (b bidResponse) Empty() bool {
	return false
}

type listBidResponse struct {
	Bids []model.MarketplaceBid `json:"bids"`
}

func (l listBidResponse) Code() int {
	return http.StatusOK
}

func (l listBidResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listBidResponse) Empty() bool {
	return false
}

type evaluationResponse struct {
	model.EvaluationResult
	created bool
}

func (e evaluationResponse) Code() int {
	if e.created {
		return http.StatusCreated
	}

	return http.StatusOK
}

func (e evaluationResponse) Headers() map[string]string {
	return map[string]string{}
}

func (e evaluationResponse) Empty() bool {
	return false
}

type listEvaluationResponse struct {
	Evaluations []model.EvaluationResult `json:"evaluations"`
}

func (l listEvaluationResponse) Code() int {
	return http.StatusOK
}

func (l listEvaluationResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listEvaluationResponse) Empty() bool {
	return false
}

type policyResponse struct {
	model.PrivacyPolicy
	updated bool
}

func (p policyResponse) Code() int {
	if p.updated {
		return http.StatusNoContent
	}

	return http.StatusOK
}

func (p policyResponse) Headers() map[string]string {
	return map[string]string{}
}

func (p policyResponse) Empty() bool {
	return p.updated
}

type compatibilityResponse struct {
	Compatible bool `json:"compatible"`
}

func (c compatibilityResponse) Code() int {
	return http.StatusOK
}

func (c compatibilityResponse) Headers() map[string]string {
	return map[string]string{}
}

func (c compatibilityResponse) Empty() bool {
	return false
}

type statisticsResponse struct {
	exchange.Statistics
}

func (s statisticsResponse) Code() int {
	return http.StatusOK
}

func (s statisticsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (s statisticsResponse) Empty() bool {
	return false
}
