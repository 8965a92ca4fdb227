package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/StimpyDev/EconomyCraft/internal/service"
	"github.com/StimpyDev/EconomyCraft/pkg/apierror"
	"github.com/StimpyDev/EconomyCraft/pkg/response"
	"github.com/StimpyDev/EconomyCraft/pkg/uid"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxBodyBytes bounds request bodies. Item metadata can be large.
const maxBodyBytes = 1 << 20

// toAPIError maps an economy error onto the HTTP error envelope.
func toAPIError(err error) *apierror.Error {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		return apierror.InternalError("")
	}
	msg := svcErr.Msg
	if msg == "" {
		msg = string(svcErr.Kind)
	}

	switch svcErr.Kind {
	case service.KindInsufficientFunds:
		return apierror.PaymentRequired(msg)
	case service.KindNotFound:
		return apierror.NotFound(msg)
	case service.KindLimitExceeded:
		return apierror.TooManyRequests(msg)
	case service.KindInvalidAmount:
		return apierror.New(http.StatusBadRequest, "INVALID_AMOUNT", msg)
	case service.KindAlreadyClaimed:
		return apierror.New(http.StatusConflict, "ALREADY_CLAIMED", msg)
	case service.KindInsufficientItems:
		return apierror.New(http.StatusConflict, "INSUFFICIENT_ITEMS", msg)
	case service.KindForbidden:
		return apierror.Forbidden(msg)
	case service.KindUnavailable:
		return apierror.ServiceUnavailable(msg)
	case service.KindPersistenceFailure:
		return apierror.New(http.StatusInternalServerError, "PERSISTENCE_FAILURE", msg)
	default:
		return apierror.InternalError("")
	}
}

func writeError(w http.ResponseWriter, err error) {
	response.Error(w, toAPIError(err))
}

// decode reads a JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return false
	}
	return true
}

// playerParam parses a player id from the named URL parameter.
func playerParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, ok := uid.ParsePlayer(chi.URLParam(r, name))
	if !ok {
		response.Error(w, apierror.ValidationError("invalid player id",
			apierror.FieldError{Field: name, Message: "must be a UUID"}))
		return uuid.Nil, false
	}
	return id, true
}

// playerField parses a player id carried in a request body.
func playerField(w http.ResponseWriter, raw, field string) (uuid.UUID, bool) {
	id, ok := uid.ParsePlayer(raw)
	if !ok {
		response.Error(w, apierror.ValidationError("invalid player id",
			apierror.FieldError{Field: field, Message: "must be a UUID"}))
		return uuid.Nil, false
	}
	return id, true
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(w, apierror.BadRequest("id must be a positive integer"))
		return 0, false
	}
	return id, true
}

// queryInt returns the integer query parameter or def when absent or invalid.
func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}
