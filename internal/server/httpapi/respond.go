package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/avendale/dataroom/internal/common"
	"github.com/avendale/dataroom/internal/server/roles"
	"github.com/avendale/dataroom/internal/server/services"
)

type errorBody struct {
	Error string `json:"error"`
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error(context.Background(), "response encode failed", "error", err)
	}
}

func (a *API) writeErrorCode(w http.ResponseWriter, status int, code string) {
	a.writeJSON(w, status, errorBody{Error: code})
}

// writeError maps the engine's error taxonomy to HTTP. Internal failures
// are logged with full detail and surfaced as a generic body.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var rl *common.RateLimitedError
	if errors.As(err, &rl) {
		retryAfter := int(time.Until(rl.ResetAt).Seconds()) + 1
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		a.writeErrorCode(w, http.StatusTooManyRequests, "rate_limited")
		return
	}

	switch {
	case errors.Is(err, common.ErrUnauthenticated), errors.Is(err, common.ErrInvalidToken):
		a.writeErrorCode(w, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, common.ErrNDARequired):
		a.writeErrorCode(w, http.StatusUnavailableForLegalReasons, "nda_signature_required")
	case errors.Is(err, common.ErrForbidden):
		a.writeErrorCode(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, common.ErrNotFound), errors.Is(err, common.ErrExpired):
		// Expired and unknown must be indistinguishable to callers.
		a.writeErrorCode(w, http.StatusNotFound, "not_found")
	case errors.Is(err, common.ErrAlreadySigned):
		a.writeErrorCode(w, http.StatusConflict, "already_signed")
	case errors.Is(err, common.ErrInvalidSignature):
		a.writeErrorCode(w, http.StatusUnprocessableEntity, "invalid_signature")
	case errors.Is(err, common.ErrHashMismatch):
		a.writeErrorCode(w, http.StatusUnprocessableEntity, "hash_mismatch")
	case errors.Is(err, common.ErrRateLimited):
		a.writeErrorCode(w, http.StatusTooManyRequests, "rate_limited")
	case errors.Is(err, common.ErrFileTooLarge):
		a.writeErrorCode(w, http.StatusRequestEntityTooLarge, "file_too_large")
	case errors.Is(err, common.ErrUpstreamTimeout):
		a.writeErrorCode(w, http.StatusGatewayTimeout, "upstream_timeout")
	case errors.Is(err, common.ErrStorageInconsistency):
		// Already logged loudly at the source; nothing internal leaks here.
		a.writeErrorCode(w, http.StatusInternalServerError, "internal_error")
	default:
		a.logger.Error(r.Context(), "unhandled error", "error", err, "path", r.URL.Path)
		a.writeErrorCode(w, http.StatusInternalServerError, "internal_error")
	}
}

// writeDocumentError applies the denial-normalization policy for document
// endpoints: a non-admin caller gets the same forbidden shape whether the
// document is unknown or merely invisible, so ids cannot be enumerated.
// NDA-required stays distinct because it is actionable. Admins get truthful
// not-found responses.
func (a *API) writeDocumentError(w http.ResponseWriter, r *http.Request, identity services.Identity, err error) {
	if identity.Role != roles.Admin &&
		(errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrForbidden)) {
		a.writeErrorCode(w, http.StatusForbidden, "forbidden")
		return
	}
	a.writeError(w, r, err)
}
