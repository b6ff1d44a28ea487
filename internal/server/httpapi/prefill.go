package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/avendale/dataroom/internal/server/prefill"
)

type prefillRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// handlePrefillCreate accepts an unauthenticated contact submission and
// returns the nonce the later authenticated flow can present. The short TTL
// and 256-bit nonces are the abuse bound here; no identity is required.
func (a *API) handlePrefillCreate(w http.ResponseWriter, r *http.Request) {
	var req prefillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeErrorCode(w, http.StatusBadRequest, "invalid_body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || !strings.Contains(req.Email, "@") {
		a.writeErrorCode(w, http.StatusBadRequest, "invalid_contact")
		return
	}

	nonce, err := a.prefill.Put(r.Context(), prefill.ContactData{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   strings.TrimSpace(req.Phone),
		Message: req.Message,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, map[string]string{"nonce": nonce})
}

// handlePrefillGet returns the redacted record for a nonce. Expired and
// unknown nonces are both opaque 404s; writeError already folds ErrExpired
// into not_found.
func (a *API) handlePrefillGet(w http.ResponseWriter, r *http.Request) {
	data, err := a.prefill.Get(r.Context(), chi.URLParam(r, "nonce"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, data)
}
