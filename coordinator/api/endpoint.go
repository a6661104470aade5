package api

import (
	"context"
	"errors"

	"github.com/aixprotocol/aix/coordinator"
	pkgerrors "github.com/aixprotocol/aix/pkg/errors"
	"github.com/aixprotocol/aix/registry"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-kit/kit/endpoint"
)

func startRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(roundReq)
		if !ok {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		r, err := svc.StartRound(ctx, req.Config)
		if err != nil {
			return roundResponse{}, err
		}

		return roundResponse{
			Round:   r,
			created: true,
		}, nil
	}
}

func getRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		r, err := svc.GetRound(ctx, req.id)
		if err != nil {
			return roundResponse{}, err
		}

		return roundResponse{
			Round: r,
		}, nil
	}
}

func listRoundsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listRoundResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listRoundResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListRounds(ctx, req.offset, req.limit)
		if err != nil {
			return listRoundResponse{}, err
		}

		return listRoundResponse{
			RoundPage: page,
		}, nil
	}
}

func submitUpdateEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(updateReq)
		if !ok {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		r, err := svc.SubmitModelUpdate(ctx, req.Update)
		if err != nil {
			return roundResponse{}, err
		}

		return roundResponse{
			Round: r,
		}, nil
	}
}

func submitGradientUpdateEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(gradientUpdateReq)
		if !ok {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return roundResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		r, err := svc.SubmitGradientUpdate(ctx, req.GradientUpdate)
		if err != nil {
			return roundResponse{}, err
		}

		return roundResponse{
			Round: r,
		}, nil
	}
}

func expireRoundsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		n, err := svc.ExpireRounds(ctx)
		if err != nil {
			return expireResponse{}, err
		}

		return expireResponse{
			Expired: n,
		}, nil
	}
}

func globalVersionEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(_ context.Context, _ any) (any, error) {
		return versionResponse{
			Version: svc.GlobalVersion(),
		}, nil
	}
}

func registerParticipantEndpoint(svc registry.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(registerParticipantReq)
		if !ok {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		p, err := svc.Register(ctx, req.Participant, req.MaxEpsilon, req.MaxDelta)
		if err != nil {
			return participantResponse{}, err
		}

		return participantResponse{
			Participant: p,
			created:     true,
		}, nil
	}
}

func getParticipantEndpoint(svc registry.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		p, err := svc.Get(ctx, req.id)
		if err != nil {
			return participantResponse{}, err
		}

		return participantResponse{
			Participant: p,
		}, nil
	}
}

func listParticipantsEndpoint(svc registry.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listParticipantResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listParticipantResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.List(ctx, req.offset, req.limit)
		if err != nil {
			return listParticipantResponse{}, err
		}

		return listParticipantResponse{
			ParticipantPage: page,
		}, nil
	}
}

func unregisterParticipantEndpoint(svc registry.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.Unregister(ctx, req.id); err != nil {
			return participantResponse{}, err
		}

		return participantResponse{
			deleted: true,
		}, nil
	}
}

func updateReputationEndpoint(svc registry.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(reputationReq)
		if !ok {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		p, err := svc.UpdateReputation(ctx, req.id, req.Delta, req.Reason)
		if err != nil {
			return participantResponse{}, err
		}

		return participantResponse{
			Participant: p,
		}, nil
	}
}

func suspendParticipantEndpoint(svc registry.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(statusReq)
		if !ok {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.Suspend(ctx, req.id, req.Reason); err != nil {
			return participantResponse{}, err
		}

		return participantResponse{}, nil
	}
}

func blacklistParticipantEndpoint(svc registry.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(statusReq)
		if !ok {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.Blacklist(ctx, req.id, req.Reason); err != nil {
			return participantResponse{}, err
		}

		return participantResponse{}, nil
	}
}

func reactivateParticipantEndpoint(svc registry.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(statusReq)
		if !ok {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.Reactivate(ctx, req.id, req.Reason); err != nil {
			return participantResponse{}, err
		}

		return participantResponse{}, nil
	}
}

func eligibleParticipantsEndpoint(svc registry.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(eligibleReq)
		if !ok {
			return eligibleResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return eligibleResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		participants, err := svc.Eligible(ctx, req.minReputation)
		if err != nil {
			return eligibleResponse{}, err
		}

		return eligibleResponse{
			Participants: participants,
		}, nil
	}
}

func topParticipantsEndpoint(svc registry.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(topNReq)
		if !ok {
			return eligibleResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return eligibleResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		participants, err := svc.TopN(ctx, req.n)
		if err != nil {
			return eligibleResponse{}, err
		}

		return eligibleResponse{
			Participants: participants,
		}, nil
	}
}

func registryStatisticsEndpoint(svc registry.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		stats, err := svc.Statistics(ctx)
		if err != nil {
			return statisticsResponse{}, err
		}

		return statisticsResponse{
			Statistics: stats,
		}, nil
	}
}
