package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aixprotocol/aix/exchange"
	"github.com/aixprotocol/aix/pkg/api"
	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func MakeHandler(svc exchange.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Route("/models", func(r chi.Router) {
		r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
			registerModelEndpoint(svc),
			decodeModelReq,
			api.EncodeResponse,
			opts...,
		), "register-model").ServeHTTP)
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listModelsEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-models").ServeHTTP)
		r.Route("/{modelID}", func(r chi.Router) {
			r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
				getModelEndpoint(svc),
				decodeEntityReq("modelID"),
				api.EncodeResponse,
				opts...,
			), "get-model").ServeHTTP)
			r.Post("/bids", otelhttp.NewHandler(kithttp.NewServer(
				submitBidEndpoint(svc),
				decodeBidReq,
				api.EncodeResponse,
				opts...,
			), "submit-bid").ServeHTTP)
			r.Get("/bids", otelhttp.NewHandler(kithttp.NewServer(
				listBidsEndpoint(svc),
				decodeEntityReq("modelID"),
				api.EncodeResponse,
				opts...,
			), "list-bids").ServeHTTP)
			r.Get("/evaluations", otelhttp.NewHandler(kithttp.NewServer(
				listEvaluationsEndpoint(svc),
				decodeEntityReq("modelID"),
				api.EncodeResponse,
				opts...,
			), "list-evaluations").ServeHTTP)
		})
	})

	mux.Route("/sharing", func(r chi.Router) {
		r.Post("/requests", otelhttp.NewHandler(kithttp.NewServer(
			requestSharingEndpoint(svc),
			decodeSharingReq,
			api.EncodeResponse,
			opts...,
		), "request-sharing").ServeHTTP)
		r.Post("/handle", otelhttp.NewHandler(kithttp.NewServer(
			handleSharingEndpoint(svc),
			decodeSharingReq,
			api.EncodeResponse,
			opts...,
		), "handle-sharing-request").ServeHTTP)
		r.Post("/requests/{requestID}/complete", otelhttp.NewHandler(kithttp.NewServer(
			completeSharingEndpoint(svc),
			decodeEntityReq("requestID"),
			api.EncodeResponse,
			opts...,
		), "complete-sharing").ServeHTTP)
	})

	mux.Post("/aggregations", otelhttp.NewHandler(kithttp.NewServer(
		requestAggregationEndpoint(svc),
		decodeAggregationReq,
		api.EncodeResponse,
		opts...,
	), "request-aggregation").ServeHTTP)

	mux.Route("/evaluations", func(r chi.Router) {
		r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
			requestEvaluationEndpoint(svc),
			decodeEvaluationReq,
			api.EncodeResponse,
			opts...,
		), "request-evaluation").ServeHTTP)
		r.Post("/results", otelhttp.NewHandler(kithttp.NewServer(
			submitEvaluationEndpoint(svc),
			decodeEvaluationResultReq,
			api.EncodeResponse,
			opts...,
		), "submit-evaluation-result").ServeHTTP)
	})

	mux.Route("/policies", func(r chi.Router) {
		r.Put("/", otelhttp.NewHandler(kithttp.NewServer(
			setPolicyEndpoint(svc),
			decodePolicyReq,
			api.EncodeResponse,
			opts...,
		), "set-privacy-policy").ServeHTTP)
		r.Get("/{nodeID}", otelhttp.NewHandler(kithttp.NewServer(
			getPolicyEndpoint(svc),
			decodeEntityReq("nodeID"),
			api.EncodeResponse,
			opts...,
		), "get-privacy-policy").ServeHTTP)
	})

	mux.Post("/compatibility", otelhttp.NewHandler(kithttp.NewServer(
		checkCompatibilityEndpoint(svc),
		decodeCompatibilityReq,
		api.EncodeResponse,
		opts...,
	), "check-compatibility").ServeHTTP)

	mux.Get("/stats", otelhttp.NewHandler(kithttp.NewServer(
		statisticsEndpoint(svc),
		decodeEmptyReq,
		api.EncodeResponse,
		opts...,
	), "statistics").ServeHTTP)

	mux.Get("/health", supermq.Health("exchange", instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeEntityReq(key string) kithttp.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (any, error) {
		return entityReq{
			id: chi.URLParam(r, key),
		}, nil
	}
}

func decodeListEntityReq(_ context.Context, r *http.Request) (any, error) {
	o, err := apiutil.ReadNumQuery[uint64](r, api.OffsetKey, api.DefOffset)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	l, err := apiutil.ReadNumQuery[uint64](r, api.LimitKey, api.DefLimit)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return listEntityReq{
		offset: o,
		limit:  l,
	}, nil
}

func decodeModelReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req modelReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

func decodeSharingReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req sharingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

func decodeAggregationReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req aggregationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

func decodeBidReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req bidReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}
	req.ModelID = chi.URLParam(r, "modelID")

	return req, nil
}

func decodeEvaluationReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req evaluationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

func decodeEvaluationResultReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req evaluationResultReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

func decodePolicyReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req policyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

func decodeCompatibilityReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req compatibilityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

func decodeEmptyReq(_ context.Context, _ *http.Request) (any, error) {
	return nil, nil
}
