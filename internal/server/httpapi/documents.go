package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/avendale/dataroom/internal/server/models"
	"github.com/avendale/dataroom/internal/server/roles"
	"github.com/avendale/dataroom/internal/server/services"
)

// documentDTO is the caller-facing metadata shape. Storage keys and URLs
// never appear in it; content is reachable only through the gateway routes.
type documentDTO struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Category    string     `json:"category"`
	Status      string     `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	ContentType string     `json:"content_type,omitempty"`
	SizeBytes   int64      `json:"size_bytes"`
	SizeHuman   string     `json:"size_human,omitempty"`
	ContentHash string     `json:"content_hash,omitempty"`
	Visibility  []string   `json:"visibility"`
	RequiresNDA bool       `json:"requires_nda"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toDocumentDTO(doc *models.Document) documentDTO {
	return documentDTO{
		ID:          doc.ID,
		Title:       doc.Title,
		Category:    doc.Category,
		Status:      doc.Status,
		Notes:       doc.Notes,
		DueDate:     doc.DueDate,
		ContentType: doc.ContentType,
		SizeBytes:   doc.SizeBytes,
		SizeHuman:   doc.HumanSize(),
		ContentHash: doc.ContentHash,
		Visibility:  doc.Visibility,
		RequiresNDA: roles.RequiresNDA(doc.Visibility),
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

func (a *API) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	docs, err := a.disclosure.ListDocuments(r.Context(), identity, r.URL.Query().Get("category"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	out := make([]documentDTO, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDocumentDTO(doc))
	}
	a.writeJSON(w, http.StatusOK, out)
}

func (a *API) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	doc, err := a.disclosure.GetDocument(r.Context(), chi.URLParam(r, "id"), identity)
	if err != nil {
		a.writeDocumentError(w, r, identity, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toDocumentDTO(doc))
}

// serveAction maps the ?download query flag to the audited action.
func serveAction(r *http.Request) string {
	if r.URL.Query().Get("download") == "1" {
		return models.ActionDownload
	}
	return models.ActionView
}

func (a *API) handleServeContent(w http.ResponseWriter, r *http.Request) {
	a.serveDocument(w, r, chi.URLParam(r, "id"))
}

func (a *API) handleResolveHandle(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	content, err := a.disclosure.ResolveHandle(r.Context(), chi.URLParam(r, "handle"), identity, serveAction(r))
	if err != nil {
		a.writeDocumentError(w, r, identity, err)
		return
	}
	a.streamContent(w, r, content)
}

func (a *API) serveDocument(w http.ResponseWriter, r *http.Request, documentID string) {
	identity := identityFrom(r)
	content, err := a.disclosure.Serve(r.Context(), documentID, identity, serveAction(r))
	if err != nil {
		a.writeDocumentError(w, r, identity, err)
		return
	}
	a.streamContent(w, r, content)
}

// streamContent relays the blob through the gateway; the storage location
// stays server-side.
func (a *API) streamContent(w http.ResponseWriter, r *http.Request, content *services.Content) {
	defer content.Body.Close()

	disposition := "inline"
	if serveAction(r) == models.ActionDownload {
		disposition = "attachment"
	}
	w.Header().Set("Content-Type", content.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(content.SizeBytes, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, content.Document.Title))

	if _, err := io.Copy(w, content.Body); err != nil {
		// Headers are gone; all we can do is note the broken stream.
		a.logger.Warn(r.Context(), "content stream interrupted",
			"error", err, "document_id", content.Document.ID)
	}
}

func (a *API) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	handle, err := a.disclosure.CreateHandle(r.Context(), chi.URLParam(r, "id"), identity)
	if err != nil {
		a.writeDocumentError(w, r, identity, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, map[string]string{
		"handle": handle.Token,
		"url":    "/d/" + handle.Token,
	})
}

func (a *API) handlePresignedURL(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	url, err := a.disclosure.PresignedURL(r.Context(), chi.URLParam(r, "id"), identity)
	if err != nil {
		a.writeDocumentError(w, r, identity, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (a *API) handleUpload(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)

	// Bound the whole multipart body slightly above the document ceiling to
	// leave room for the form fields.
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload+(64<<10))
	if err := r.ParseMultipartForm(a.maxUpload); err != nil {
		a.writeErrorCode(w, http.StatusRequestEntityTooLarge, "file_too_large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		a.writeErrorCode(w, http.StatusBadRequest, "missing_file")
		return
	}
	defer file.Close()

	cmd := services.UploadCommand{
		Title:       r.FormValue("title"),
		Category:    r.FormValue("category"),
		Notes:       r.FormValue("notes"),
		Visibility:  r.Form["visibility"],
		ContentType: header.Header.Get("Content-Type"),
		SizeBytes:   header.Size,
		Body:        file,
	}
	if cmd.Title == "" {
		cmd.Title = header.Filename
	}
	if due, ok := parseDueDate(r.FormValue("due_date")); ok {
		cmd.DueDate = due
	}

	doc, err := a.disclosure.Upload(r.Context(), cmd, identity)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, toDocumentDTO(doc))
}

type expectedRequest struct {
	Title      string   `json:"title"`
	Category   string   `json:"category"`
	Notes      string   `json:"notes"`
	Visibility []string `json:"visibility"`
	DueDate    string   `json:"due_date"`
}

func (a *API) handleCreateExpected(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)

	var req expectedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeErrorCode(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if req.Title == "" {
		a.writeErrorCode(w, http.StatusBadRequest, "missing_title")
		return
	}

	cmd := services.ExpectedCommand{
		Title:      req.Title,
		Category:   req.Category,
		Notes:      req.Notes,
		Visibility: req.Visibility,
	}
	if due, ok := parseDueDate(req.DueDate); ok {
		cmd.DueDate = due
	}

	doc, err := a.disclosure.CreateExpected(r.Context(), cmd, identity)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, toDocumentDTO(doc))
}

type patchRequest struct {
	Title      *string   `json:"title"`
	Category   *string   `json:"category"`
	Status     *string   `json:"status"`
	Notes      *string   `json:"notes"`
	Visibility *[]string `json:"visibility"`
	// DueDate empty string clears the date; non-empty is parsed.
	DueDate *string `json:"due_date"`
}

func (a *API) handlePatchDocument(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)

	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeErrorCode(w, http.StatusBadRequest, "invalid_body")
		return
	}

	patch := services.DocumentPatch{
		Title:      req.Title,
		Category:   req.Category,
		Status:     req.Status,
		Notes:      req.Notes,
		Visibility: req.Visibility,
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			patch.ClearDueDate = true
		} else if due, ok := parseDueDate(*req.DueDate); ok {
			patch.DueDate = due
		} else {
			a.writeErrorCode(w, http.StatusBadRequest, "invalid_due_date")
			return
		}
	}

	doc, err := a.disclosure.UpdateDocument(r.Context(), chi.URLParam(r, "id"), patch, identity)
	if err != nil {
		a.writeDocumentError(w, r, identity, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toDocumentDTO(doc))
}

func (a *API) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if err := a.disclosure.DeleteDocument(r.Context(), chi.URLParam(r, "id"), identity); err != nil {
		a.writeDocumentError(w, r, identity, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseDueDate accepts RFC 3339 timestamps or bare dates.
func parseDueDate(s string) (*time.Time, bool) {
	if s == "" {
		return nil, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, true
		}
	}
	return nil, false
}
