package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/avendale/dataroom/internal/common"
	"github.com/avendale/dataroom/internal/server/repositories/auditlog"
	"github.com/avendale/dataroom/internal/server/services"
)

type ndaStatusResponse struct {
	Signed   bool       `json:"signed"`
	Exempt   bool       `json:"exempt"`
	SignedAt *time.Time `json:"signed_at,omitempty"`
	Version  string     `json:"version"`
	Text     string     `json:"text,omitempty"`
	TextHash string     `json:"text_hash,omitempty"`
}

// handleNDAStatus returns the caller's signing state. An unsigned caller
// also gets the personalized contract text and its hash, so the client can
// render the exact text and later submit the hash it reviewed.
func (a *API) handleNDAStatus(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if !identity.Authenticated() {
		a.writeError(w, r, common.ErrUnauthenticated)
		return
	}

	status, err := a.nda.GetStatus(r.Context(), identity)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	resp := ndaStatusResponse{
		Signed:   status.Signed,
		Exempt:   status.Exempt,
		SignedAt: status.SignedAt,
		Version:  status.Version,
	}
	if !status.Signed {
		resp.Text, resp.TextHash = a.nda.SigningText(identity)
	}
	a.writeJSON(w, http.StatusOK, resp)
}

type signRequest struct {
	SignatureData string `json:"signature_data"`
	TextHash      string `json:"text_hash"`
}

func (a *API) handleNDASign(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)

	var req signRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeErrorCode(w, http.StatusBadRequest, "invalid_body")
		return
	}

	sig, err := a.nda.Store(r.Context(), services.SignRequest{
		Identity:      identity,
		SignatureData: req.SignatureData,
		TextHash:      req.TextHash,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.writeJSON(w, http.StatusCreated, map[string]any{
		"id":        sig.ID,
		"signed_at": sig.SignedAt,
		"version":   sig.NDAVersion,
	})
}

type signatureDTO struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	NDAVersion string    `json:"nda_version"`
	TextHash   string    `json:"text_hash"`
	IP         string    `json:"ip"`
	UserAgent  string    `json:"user_agent"`
	SignedAt   time.Time `json:"signed_at"`
}

func (a *API) handleListSignatures(w http.ResponseWriter, r *http.Request) {
	sigs, err := a.nda.List(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	out := make([]signatureDTO, 0, len(sigs))
	for _, sig := range sigs {
		out = append(out, signatureDTO{
			ID:         sig.ID,
			UserID:     sig.UserID,
			Name:       sig.Name,
			Email:      sig.Email,
			NDAVersion: sig.NDAVersion,
			TextHash:   sig.TextHash,
			IP:         sig.IP,
			UserAgent:  sig.UserAgent,
			SignedAt:   sig.SignedAt,
		})
	}
	a.writeJSON(w, http.StatusOK, out)
}

func (a *API) handleDeleteSignature(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if err := a.nda.Delete(r.Context(), chi.URLParam(r, "userID"), identity); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type auditEntryDTO struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	DocumentID *string   `json:"document_id,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	Action     string    `json:"action"`
	IP         string    `json:"ip"`
	CreatedAt  time.Time `json:"created_at"`
}

func (a *API) handleQueryAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := auditlog.Filter{
		UserID:     q.Get("user"),
		DocumentID: q.Get("document"),
		Action:     q.Get("action"),
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		filter.Limit = n
	}

	entries, err := a.audit.Query(r.Context(), filter)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	out := make([]auditEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryDTO(*e))
	}
	a.writeJSON(w, http.StatusOK, out)
}
