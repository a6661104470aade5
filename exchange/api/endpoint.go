package api

import (
	"context"
	"errors"

	"github.com/aixprotocol/aix/exchange"
	pkgerrors "github.com/aixprotocol/aix/pkg/errors"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-kit/kit/endpoint"
)

func registerModelEndpoint(svc exchange.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(modelReq)
		if !ok {
			return modelResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return modelResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		summary, err := svc.RegisterModel(ctx, req.Summary)
		if err != nil {
			return modelResponse{}, err
		}

		return modelResponse{
			Summary: summary,
			created: true,
		}, nil
	}
}

func getModelEndpoint(svc exchange.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return modelResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return modelResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		summary, err := svc.GetModel(ctx, req.id)
		if err != nil {
			return modelResponse{}, err
		}

		return modelResponse{
			Summary: summary,
		}, nil
	}
}

func listModelsEndpoint(svc exchange.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listModelResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listModelResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListModels(ctx, req.offset, req.limit)
		if err != nil {
			return listModelResponse{}, err
		}

		return listModelResponse{
			SummaryPage: page,
		}, nil
	}
}

func requestSharingEndpoint(svc exchange.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(sharingReq)
		if !ok {
			return sharingRequestResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return sharingRequestResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		created, err := svc.RequestSharing(ctx, req.SharingRequest)
		if err != nil {
			return sharingRequestResponse{}, err
		}

		return sharingRequestResponse{
			SharingRequest: created,
			created:        true,
		}, nil
	}
}

func handleSharingEndpoint(svc exchange.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(sharingReq)
		if !ok {
			return sharingResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return sharingResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		resp, err := svc.HandleSharingRequest(ctx, req.SharingRequest)
		if err != nil {
			return sharingResponse{}, err
		}

		return sharingResponse{
			SharingResponse: resp,
		}, nil
	}
}

func completeSharingEndpoint(svc exchange.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return sharingRequestResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return sharingRequestResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.CompleteSharing(ctx, req.id); err != nil {
			return sharingRequestResponse{}, err
		}

		return sharingRequestResponse{
			complete: true,
		}, nil
	}
}

func requestAggregationEndpoint(svc exchange.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(aggregationReq)
		if !ok {
			return modelResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return modelResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		summary, err := svc.RequestAggregation(ctx, req.AggregationRequest)
		if err != nil {
			return modelResponse{}, err
		}

		return modelResponse{
			Summary: summary,
			created: true,
		}, nil
	}
}

func submitBidEndpoint(svc exchange.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(bidReq)
		if !ok {
			return bidResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return bidResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		bid, err := svc.SubmitMarketplaceBid(ctx, req.MarketplaceBid)
		if err != nil {
			return bidResponse{}, err
		}

		return bidResponse{
			MarketplaceBid: bid,
			created:        true,
		}, nil
	}
}

func listBidsEndpoint(svc exchange.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return listBidResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listBidResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		bids, err := svc.ListBids(ctx, req.id)
		if err != nil {
			return listBidResponse{}, err
		}

		return listBidResponse{
			Bids: bids,
		}, nil
	}
}

func requestEvaluationEndpoint(svc exchange.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(evaluationReq)
		if !ok {
			return evaluationResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return evaluationResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		result, err := svc.RequestEvaluation(ctx, req.EvaluationRequest)
		if err != nil {
			return evaluationResponse{}, err
		}

		return evaluationResponse{
			EvaluationResult: result,
			created:          true,
		}, nil
	}
}

func submitEvaluationEndpoint(svc exchange.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(evaluationResultReq)
		if !ok {
			return evaluationResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return evaluationResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.SubmitEvaluationResult(ctx, req.EvaluationResult); err != nil {
			return evaluationResponse{}, err
		}

		return evaluationResponse{
			EvaluationResult: req.EvaluationResult,
			created:          true,
		}, nil
	}
}

func listEvaluationsEndpoint(svc exchange.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return listEvaluationResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listEvaluationResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		results, err := svc.ListEvaluations(ctx, req.id)
		if err != nil {
			return listEvaluationResponse{}, err
		}

		return listEvaluationResponse{
			Evaluations: results,
		}, nil
	}
}

func setPolicyEndpoint(svc exchange.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(policyReq)
		if !ok {
			return policyResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return policyResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.SetPrivacyPolicy(ctx, req.PrivacyPolicy); err != nil {
			return policyResponse{}, err
		}

		return policyResponse{
			updated: true,
		}, nil
	}
}

func getPolicyEndpoint(svc exchange.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return policyResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return policyResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		policy, err := svc.GetPrivacyPolicy(ctx, req.id)
		if err != nil {
			return policyResponse{}, err
		}

		return policyResponse{
			PrivacyPolicy: policy,
		}, nil
	}
}

func checkCompatibilityEndpoint(svc exchange.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(compatibilityReq)
		if !ok {
			return compatibilityResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return compatibilityResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		return compatibilityResponse{
			Compatible: svc.CheckCompatibility(ctx, req.Version, req.TargetFramework),
		}, nil
	}
}

func statisticsEndpoint(svc exchange.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		stats, err := svc.Statistics(ctx)
		if err != nil {
			return statisticsResponse{}, err
		}

		return statisticsResponse{
			Statistics: stats,
		}, nil
	}
}
