package api

import (
	"net/http"

	"github.com/aixprotocol/aix/participant"
	"github.com/aixprotocol/aix/registry"
	"github.com/aixprotocol/aix/round"
	"github.com/absmach/magistrala"
)

var (
	_ magistrala.Response = (*roundResponse)(nil)
	_ magistrala.Response = (*listRoundResponse)(nil)
	_ magistrala.Response = (*participantResponse)(nil)
	_ magistrala.Response = (*listParticipantResponse)(nil)
	_ magistrala.Response = (*expireResponse)(nil)
	_ magistrala.Response = (*versionResponse)(nil)
	_ magistrala.Response = (*statisticsResponse)(nil)
)

type roundResponse struct {
	round.Round
	created bool
}

func (r roundResponse) Code() int {
	if r.created {
		return http.StatusCreated
	}

	return http.StatusOK
}

func (r roundResponse) Headers() map[string]string {
	if r.created {
		return map[string]string{
			"Location": "/rounds/" + r.ID,
		}
	}

	return map[string]string{}
}

func (r roundResponse) Empty() bool {
	return false
}

type listRoundResponse struct {
	round.RoundPage
}

func (l listRoundResponse) Code() int {
	return http.StatusOK
}

func (l listRoundResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listRoundResponse) Empty() bool {
	return false
}

type participantResponse struct {
	participant.Participant
	created bool
	deleted bool
}

func (p participantResponse) Code() int {
	if p.created {
		return http.StatusCreated
	}
	if p.deleted {
		return http.StatusNoContent
	}

	return http.StatusOK
}

func (p participantResponse) Headers() map[string]string {
	if p.created {
		return map[string]string{
			"Location": "/participants/" + p.ID,
		}
	}

	return map[string]string{}
}

func (p participantResponse) Empty() bool {
	return p.deleted
}

type listParticipantResponse struct {
	participant.ParticipantPage
}

func (l listParticipantResponse) Code() int {
	return http.StatusOK
}

func (l listParticipantResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listParticipantResponse) Empty() bool {
	return false
}

type eligibleResponse struct {
	Participants []participant.Participant `json:"participants"`
}

func (e eligibleResponse) Code() int {
	return http.StatusOK
}

func (e eligibleResponse) Headers() map[string]string {
	return map[string]string{}
}

func (e eligibleResponse) Empty() bool {
	return false
}

type expireResponse struct {
	Expired int `json:"expired"`
}

func (e expireResponse) Code() int {
	return http.StatusOK
}

func (e expireResponse) Headers() map[string]string {
	return map[string]string{}
}

func (e expireResponse) Empty() bool {
	return false
}

type versionResponse struct {
	Version uint64 `json:"version"`
}

func (v versionResponse) Code() int {
	return http.StatusOK
}

func (v versionResponse) Headers() map[string]string {
	return map[string]string{}
}

func (v versionResponse) Empty() bool {
	return false
}

type statisticsResponse struct {
	registry.Statistics
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
