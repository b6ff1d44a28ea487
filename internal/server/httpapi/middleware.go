package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/avendale/dataroom/internal/netx"
	"github.com/avendale/dataroom/internal/server/auth"
	"github.com/avendale/dataroom/internal/server/roles"
	"github.com/avendale/dataroom/internal/server/services"
)

type ctxKey int

const identityKey ctxKey = iota

// withIdentity resolves the caller's identity from a bearer token or the
// session cookie and stores it in the request context. An absent or invalid
// token leaves the identity unauthenticated; the services decide whether
// that is acceptable for the operation, so public endpoints need no
// exemption here.
func (a *API) withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := services.Identity{
			SourceIP:  netx.ClientIP(r.RemoteAddr),
			UserAgent: r.UserAgent(),
		}

		if token := bearerToken(r); token != "" {
			claims, err := auth.ParseToken(token, a.secretKey)
			if err != nil {
				a.logger.Debug(r.Context(), "token rejected", "error", err)
			} else {
				identity.UserID = claims.UserID
				identity.Name = claims.Name
				identity.Email = claims.Email
				identity.Role = claims.Role
			}
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token string from the Authorization header,
// falling back to the session cookie.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// identityFrom returns the identity stored by withIdentity; the zero value
// when the middleware did not run.
func identityFrom(r *http.Request) services.Identity {
	identity, _ := r.Context().Value(identityKey).(services.Identity)
	return identity
}

// requireAdmin guards the admin review endpoints.
func (a *API) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := identityFrom(r)
		if !identity.Authenticated() {
			a.writeErrorCode(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		if identity.Role != roles.Admin {
			a.writeErrorCode(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// logRequests emits one structured line per request.
func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"ip", netx.ClientIP(r.RemoteAddr),
		)
	})
}
