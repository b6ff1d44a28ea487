package services

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/avendale/dataroom/internal/kv"
	"github.com/avendale/dataroom/internal/logging"
	sc "github.com/avendale/dataroom/internal/server/config"
	"github.com/avendale/dataroom/internal/server/models"
	"github.com/avendale/dataroom/internal/server/ratelimit"
	"github.com/avendale/dataroom/internal/server/roles"
)

// testEnv wires the three services over fakes the way app.go wires them
// over the real collaborators. The sql handle is a sqlmock; the fake
// repositories ignore it, so only transaction boundaries ever reach it.
type testEnv struct {
	rm         *fakeRepoManager
	blob       *fakeBlob
	cfg        *sc.Config
	mock       sqlmock.Sqlmock
	audit      *AuditService
	nda        *NDAService
	disclosure *DisclosureService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &sc.Config{}
	cfg.LoadDefaults()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	rm := newFakeRepoManager()
	blob := newFakeBlob()

	audit := NewAuditService(db, rm, logger)
	nda := NewNDAService(db, rm, audit, cfg.NDAVersion, logger)
	limiter := ratelimit.New(kv.NewMemory(), cfg.RateLimitPerMinute, time.Minute)
	disclosure := NewDisclosureService(db, rm, blob, limiter, nda, audit, cfg, logger)

	return &testEnv{rm: rm, blob: blob, cfg: cfg, mock: mock, audit: audit, nda: nda, disclosure: disclosure}
}

// addDocument stores metadata and, unless the document is a placeholder, a
// matching blob object.
func (e *testEnv) addDocument(t *testing.T, doc *models.Document) *models.Document {
	t.Helper()
	if doc.Status == "" {
		doc.Status = models.DocumentStatusAvailable
	}
	if doc.HasContent() {
		content := []byte("contents of " + doc.ID)
		e.blob.objects[doc.StorageKey] = content
		e.blob.types[doc.StorageKey] = doc.ContentType
		doc.SizeBytes = int64(len(content))
	}
	if _, err := e.rm.docs.Create(context.Background(), doc); err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return doc
}

func identityWithRole(userID string, role roles.Role) Identity {
	return Identity{
		UserID:   userID,
		Name:     "Pat Example",
		Email:    userID + "@example.com",
		Role:     role,
		SourceIP: "203.0.113.7",
	}
}

// validSignatureData is a minimal decodable signature payload.
func validSignatureData() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("stroke data"))
}
