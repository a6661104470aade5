package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aixprotocol/aix/coordinator"
	"github.com/aixprotocol/aix/model"
	"github.com/aixprotocol/aix/pkg/api"
	"github.com/aixprotocol/aix/registry"
	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	cborContentType = "application/cbor"
	maxUpdateSize   = 1024 * 1024 * 50
)

func MakeHandler(coord coordinator.Service, reg registry.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Route("/rounds", func(r chi.Router) {
		r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
			startRoundEndpoint(coord),
			decodeRoundReq,
			api.EncodeResponse,
			opts...,
		), "start-round").ServeHTTP)
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listRoundsEndpoint(coord),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-rounds").ServeHTTP)
		r.Post("/expire", otelhttp.NewHandler(kithttp.NewServer(
			expireRoundsEndpoint(coord),
			decodeEmptyReq,
			api.EncodeResponse,
			opts...,
		), "expire-rounds").ServeHTTP)
		r.Get("/{roundID}", otelhttp.NewHandler(kithttp.NewServer(
			getRoundEndpoint(coord),
			decodeEntityReq("roundID"),
			api.EncodeResponse,
			opts...,
		), "get-round").ServeHTTP)
	})

	mux.Route("/updates", func(r chi.Router) {
		r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
			submitUpdateEndpoint(coord),
			decodeUpdateReq,
			api.EncodeResponse,
			opts...,
		), "submit-update").ServeHTTP)
		r.Post("/cbor", otelhttp.NewHandler(kithttp.NewServer(
			submitGradientUpdateEndpoint(coord),
			decodeGradientUpdateCBORReq,
			api.EncodeResponse,
			opts...,
		), "submit-gradient-update").ServeHTTP)
	})

	mux.Get("/version", otelhttp.NewHandler(kithttp.NewServer(
		globalVersionEndpoint(coord),
		decodeEmptyReq,
		api.EncodeResponse,
		opts...,
	), "global-version").ServeHTTP)

	mux.Route("/participants", func(r chi.Router) {
		r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
			registerParticipantEndpoint(reg),
			decodeRegisterParticipantReq,
			api.EncodeResponse,
			opts...,
		), "register-participant").ServeHTTP)
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listParticipantsEndpoint(reg),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-participants").ServeHTTP)
		r.Get("/eligible", otelhttp.NewHandler(kithttp.NewServer(
			eligibleParticipantsEndpoint(reg),
			decodeEligibleReq,
			api.EncodeResponse,
			opts...,
		), "eligible-participants").ServeHTTP)
		r.Get("/top", otelhttp.NewHandler(kithttp.NewServer(
			topParticipantsEndpoint(reg),
			decodeTopNReq,
			api.EncodeResponse,
			opts...,
		), "top-participants").ServeHTTP)
		r.Get("/stats", otelhttp.NewHandler(kithttp.NewServer(
			registryStatisticsEndpoint(reg),
			decodeEmptyReq,
			api.EncodeResponse,
			opts...,
		), "registry-statistics").ServeHTTP)
		r.Route("/{nodeID}", func(r chi.Router) {
			r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
				getParticipantEndpoint(reg),
				decodeEntityReq("nodeID"),
				api.EncodeResponse,
				opts...,
			), "get-participant").ServeHTTP)
			r.Delete("/", otelhttp.NewHandler(kithttp.NewServer(
				unregisterParticipantEndpoint(reg),
				decodeEntityReq("nodeID"),
				api.EncodeResponse,
				opts...,
			), "unregister-participant").ServeHTTP)
			r.Patch("/reputation", otelhttp.NewHandler(kithttp.NewServer(
				updateReputationEndpoint(reg),
				decodeReputationReq,
				api.EncodeResponse,
				opts...,
			), "update-reputation").ServeHTTP)
			r.Post("/suspend", otelhttp.NewHandler(kithttp.NewServer(
				suspendParticipantEndpoint(reg),
				decodeStatusReq,
				api.EncodeResponse,
				opts...,
			), "suspend-participant").ServeHTTP)
			r.Post("/blacklist", otelhttp.NewHandler(kithttp.NewServer(
				blacklistParticipantEndpoint(reg),
				decodeStatusReq,
				api.EncodeResponse,
				opts...,
			), "blacklist-participant").ServeHTTP)
			r.Post("/reactivate", otelhttp.NewHandler(kithttp.NewServer(
				reactivateParticipantEndpoint(reg),
				decodeStatusReq,
				api.EncodeResponse,
				opts...,
			), "reactivate-participant").ServeHTTP)
		})
	})

	mux.Get("/health", supermq.Health("coordinator", instanceID))
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

func decodeRoundReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req roundReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

func decodeUpdateReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req updateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

func decodeGradientUpdateCBORReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), cborContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUpdateSize))
	if err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	update, err := model.UnmarshalGradientCBOR(data)
	if err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return gradientUpdateReq{
		GradientUpdate: update,
	}, nil
}

func decodeRegisterParticipantReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req registerParticipantReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

func decodeReputationReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req reputationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}
	req.id = chi.URLParam(r, "nodeID")

	return req, nil
}

func decodeStatusReq(_ context.Context, r *http.Request) (any, error) {
	var req statusReq
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, errors.Join(err, apiutil.ErrValidation)
		}
	}
	req.id = chi.URLParam(r, "nodeID")

	return req, nil
}

func decodeEligibleReq(_ context.Context, r *http.Request) (any, error) {
	min := 0.0
	if v := r.URL.Query().Get("min_reputation"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, errors.Join(apiutil.ErrValidation, err)
		}
		min = parsed
	}

	return eligibleReq{
		minReputation: min,
	}, nil
}

func decodeTopNReq(_ context.Context, r *http.Request) (any, error) {
	n, err := apiutil.ReadNumQuery[uint64](r, "n", 10)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return topNReq{
		n: int(n),
	}, nil
}

func decodeEmptyReq(_ context.Context, _ *http.Request) (any, error) {
	return nil, nil
}
