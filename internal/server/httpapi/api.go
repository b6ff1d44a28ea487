// Package httpapi is the HTTP boundary of the disclosure engine. It extracts
// the caller's identity from bearer tokens, routes requests to the services,
// and maps the engine's error taxonomy onto HTTP statuses without leaking
// internals.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/avendale/dataroom/internal/logging"
	sc "github.com/avendale/dataroom/internal/server/config"
	"github.com/avendale/dataroom/internal/server/prefill"
	"github.com/avendale/dataroom/internal/server/services"
)

// sessionCookie is the fallback token carrier for browser navigation
// (content links, handle dereferences) where no Authorization header exists.
const sessionCookie = "dataroom_session"

// API holds the handler dependencies.
type API struct {
	disclosure *services.DisclosureService
	nda        *services.NDAService
	audit      *services.AuditService
	prefill    *prefill.Store
	secretKey  []byte
	maxUpload  int64
	logger     logging.Logger
}

// New constructs the boundary over the engine services.
func New(disclosure *services.DisclosureService, nda *services.NDAService, audit *services.AuditService,
	prefillStore *prefill.Store, cfg *sc.Config, logger logging.Logger) *API {
	return &API{
		disclosure: disclosure,
		nda:        nda,
		audit:      audit,
		prefill:    prefillStore,
		secretKey:  []byte(cfg.SecretKey),
		maxUpload:  cfg.MaxUploadBytes,
		logger:     logger.With("module", "http"),
	}
}

// Router builds the route tree.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(a.withIdentity)

		r.Post("/prefill", a.handlePrefillCreate)
		r.Get("/prefill/{nonce}", a.handlePrefillGet)

		r.Get("/nda", a.handleNDAStatus)
		r.Post("/nda", a.handleNDASign)

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", a.handleListDocuments)
			r.Post("/", a.handleUpload)
			r.Post("/expected", a.handleCreateExpected)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.handleGetDocument)
				r.Patch("/", a.handlePatchDocument)
				r.Delete("/", a.handleDeleteDocument)
				r.Get("/content", a.handleServeContent)
				r.Post("/link", a.handleCreateLink)
				r.Get("/url", a.handlePresignedURL)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(a.requireAdmin)
			r.Get("/signatures", a.handleListSignatures)
			r.Delete("/signatures/{userID}", a.handleDeleteSignature)
			r.Get("/audit", a.handleQueryAudit)
		})
	})

	// Proxy-style handle dereference; re-authorizes on every use.
	r.With(a.withIdentity).Get("/d/{handle}", a.handleResolveHandle)

	return r
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
