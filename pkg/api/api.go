package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/aixprotocol/aix/pkg/errors"
	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
)

const (
	OffsetKey = "offset"
	LimitKey  = "limit"
	DefOffset = 0
	DefLimit  = 100

	ContentType = "application/json"
)

func EncodeResponse(_ context.Context, w http.ResponseWriter, response interface{}) error {
	if ar, ok := response.(supermq.Response); ok {
		for k, v := range ar.Headers() {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", ContentType)
		w.WriteHeader(ar.Code())

		if ar.Empty() {
			return nil
		}
	}

	return json.NewEncoder(w).Encode(response)
}

// EncodeError maps the service error taxonomy onto HTTP status codes.
// Policy denials stay a bare 403 with no detail in the body.
func EncodeError(_ context.Context, err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", ContentType)
	switch {
	case errors.Is(err, apiutil.ErrValidation),
		errors.Is(err, pkgerrors.ErrMissingField),
		errors.Is(err, pkgerrors.ErrInvalidData),
		errors.Is(err, pkgerrors.ErrEmptyKey),
		errors.Is(err, pkgerrors.ErrIncompatible):
		w.WriteHeader(http.StatusBadRequest)
	case errors.Is(err, pkgerrors.ErrPolicyDenied),
		errors.Is(err, pkgerrors.ErrBudgetExceeded),
		errors.Is(err, pkgerrors.ErrBlacklisted),
		errors.Is(err, pkgerrors.ErrMarketplaceDisabled):
		w.WriteHeader(http.StatusForbidden)
	case errors.Is(err, pkgerrors.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, pkgerrors.ErrEntityExists),
		errors.Is(err, pkgerrors.ErrRoundClosed),
		errors.Is(err, pkgerrors.ErrNotMember),
		errors.Is(err, pkgerrors.ErrAlreadySubmitted):
		w.WriteHeader(http.StatusConflict)
	case errors.Is(err, pkgerrors.ErrExhausted):
		w.WriteHeader(http.StatusTooManyRequests)
	case errors.Is(err, pkgerrors.ErrExpired):
		w.WriteHeader(http.StatusGone)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}

	if err := json.NewEncoder(w).Encode(map[string]string{"error": err.Error()}); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}
