package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/avendale/dataroom/internal/common"
	"github.com/avendale/dataroom/internal/dbx"
	"github.com/avendale/dataroom/internal/kv"
	"github.com/avendale/dataroom/internal/logging"
	"github.com/avendale/dataroom/internal/server/auth"
	sc "github.com/avendale/dataroom/internal/server/config"
	"github.com/avendale/dataroom/internal/server/models"
	"github.com/avendale/dataroom/internal/server/prefill"
	"github.com/avendale/dataroom/internal/server/ratelimit"
	"github.com/avendale/dataroom/internal/server/repositories/accesshandles"
	"github.com/avendale/dataroom/internal/server/repositories/auditlog"
	"github.com/avendale/dataroom/internal/server/repositories/documents"
	"github.com/avendale/dataroom/internal/server/repositories/ndasignatures"
	"github.com/avendale/dataroom/internal/server/repositories/users"
	"github.com/avendale/dataroom/internal/server/roles"
	"github.com/avendale/dataroom/internal/server/services"
	"github.com/avendale/dataroom/internal/server/storage"
)

// The boundary tests run the real services over in-memory repositories and
// an in-memory blob, exercising the full request path below the router.

type memRepos struct {
	mu      sync.Mutex
	docs    map[string]*models.Document
	sigs    map[string]*models.NDASignature
	handles map[string]*models.AccessHandle
	users   map[string]*models.User
	audit   []*models.AuditEntry
}

func newMemRepos() *memRepos {
	return &memRepos{
		docs:    map[string]*models.Document{},
		sigs:    map[string]*models.NDASignature{},
		handles: map[string]*models.AccessHandle{},
		users:   map[string]*models.User{},
	}
}

func (m *memRepos) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m *memRepos) Documents(dbx.DBTX) documents.Repository         { return (*memDocs)(m) }
func (m *memRepos) NDASignatures(dbx.DBTX) ndasignatures.Repository { return (*memSigs)(m) }
func (m *memRepos) AuditLog(dbx.DBTX) auditlog.Repository           { return (*memAudit)(m) }
func (m *memRepos) AccessHandles(dbx.DBTX) accesshandles.Repository { return (*memHandles)(m) }
func (m *memRepos) Users(dbx.DBTX) users.Repository                 { return (*memUsers)(m) }

type memDocs memRepos

func (m *memDocs) Create(_ context.Context, doc *models.Document) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	doc.CreatedAt, doc.UpdatedAt = now, now
	copied := *doc
	m.docs[doc.ID] = &copied
	return doc, nil
}

func (m *memDocs) GetByID(_ context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (m *memDocs) List(context.Context) ([]*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Document
	for _, doc := range m.docs {
		copied := *doc
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memDocs) ListByCategory(ctx context.Context, category string) ([]*models.Document, error) {
	all, _ := m.List(ctx)
	var out []*models.Document
	for _, doc := range all {
		if doc.Category == category {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (m *memDocs) Update(_ context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; !ok {
		return common.ErrNotFound
	}
	copied := *doc
	m.docs[doc.ID] = &copied
	return nil
}

func (m *memDocs) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return common.ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

type memSigs memRepos

func (m *memSigs) Insert(_ context.Context, sig *models.NDASignature) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sigs[sig.UserID]; ok {
		return false, nil
	}
	sig.SignedAt = time.Now()
	copied := *sig
	m.sigs[sig.UserID] = &copied
	return true, nil
}

func (m *memSigs) GetByUserID(_ context.Context, userID string) (*models.NDASignature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sig, ok := m.sigs[userID]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *sig
	return &copied, nil
}

func (m *memSigs) List(context.Context) ([]*models.NDASignature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.NDASignature
	for _, sig := range m.sigs {
		copied := *sig
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memSigs) DeleteByUserID(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sigs[userID]; !ok {
		return common.ErrNotFound
	}
	delete(m.sigs, userID)
	return nil
}

type memAudit memRepos

func (m *memAudit) Insert(_ context.Context, entry *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *entry
	m.audit = append(m.audit, &copied)
	return nil
}

func (m *memAudit) Query(_ context.Context, filter auditlog.Filter) ([]*models.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AuditEntry
	for i := len(m.audit) - 1; i >= 0; i-- {
		e := m.audit[i]
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.DocumentID != "" && (e.DocumentID == nil || *e.DocumentID != filter.DocumentID) {
			continue
		}
		copied := *e
		out = append(out, &copied)
	}
	return out, nil
}

type memHandles memRepos

func (m *memHandles) Create(_ context.Context, handle *models.AccessHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *handle
	m.handles[handle.Token] = &copied
	return nil
}

func (m *memHandles) GetByToken(_ context.Context, token string) (*models.AccessHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	handle, ok := m.handles[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *handle
	return &copied, nil
}

func (m *memHandles) DeleteByDocumentID(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, handle := range m.handles {
		if handle.DocumentID == documentID {
			delete(m.handles, token)
		}
	}
	return nil
}

type memUsers memRepos

func (m *memUsers) Create(_ context.Context, user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *user
	m.users[user.ID] = &copied
	return user, nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *memUsers) UpdateRoleIf(_ context.Context, userID string, from, to roles.Role) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok || user.Role != from {
		return false, nil
	}
	user.Role = to
	return true, nil
}

type memBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemBlob() *memBlob {
	return &memBlob{objects: map[string][]byte{}, types: map[string]string{}}
}

func (b *memBlob) Put(_ context.Context, key string, body io.Reader, _ int64, contentType string) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = raw
	b.types[key] = contentType
	return nil
}

func (b *memBlob) Head(_ context.Context, key string) (*storage.ObjectInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	raw, ok := b.objects[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &storage.ObjectInfo{ContentType: b.types[key], SizeBytes: int64(len(raw))}, nil
}

func (b *memBlob) Fetch(ctx context.Context, key string) (io.ReadCloser, *storage.ObjectInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	raw, ok := b.objects[key]
	if !ok {
		return nil, nil, common.ErrNotFound
	}
	info := &storage.ObjectInfo{ContentType: b.types[key], SizeBytes: int64(len(raw))}
	return &ctxAwareBody{ctx: ctx, r: bytes.NewReader(raw)}, info, nil
}

// ctxAwareBody fails reads once the fetch context is canceled, the way a
// real storage response body does.
type ctxAwareBody struct {
	ctx context.Context
	r   io.Reader
}

func (b *ctxAwareBody) Read(p []byte) (int, error) {
	if err := b.ctx.Err(); err != nil {
		return 0, err
	}
	return b.r.Read(p)
}

func (b *ctxAwareBody) Close() error { return nil }

func (b *memBlob) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	delete(b.types, key)
	return nil
}

func (b *memBlob) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://blob.test/presigned/" + key, nil
}

type testServer struct {
	handler http.Handler
	repos   *memRepos
	blob    *memBlob
	cfg     *sc.Config
	mock    sqlmock.Sqlmock
}

func newTestServer(t *testing.T, tweak func(cfg *sc.Config)) *testServer {
	t.Helper()

	cfg := &sc.Config{}
	cfg.LoadDefaults()
	if tweak != nil {
		tweak(cfg)
	}

	// Only transaction boundaries reach the sql handle; the repositories
	// are in-memory.
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	repos := newMemRepos()
	blob := newMemBlob()
	kvStore := kv.NewMemory()

	audit := services.NewAuditService(db, repos, logger)
	nda := services.NewNDAService(db, repos, audit, cfg.NDAVersion, logger)
	limiter := ratelimit.New(kvStore, cfg.RateLimitPerMinute, time.Minute)
	disclosure := services.NewDisclosureService(db, repos, blob, limiter, nda, audit, cfg, logger)
	prefillStore := prefill.NewStore(kvStore, cfg.PrefillTTL)

	api := New(disclosure, nda, audit, prefillStore, cfg, logger)
	return &testServer{
		handler: api.Router(),
		repos:   repos,
		blob:    blob,
		cfg:     cfg,
		mock:    mock,
	}
}

func (s *testServer) token(t *testing.T, userID string, role roles.Role) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, "Pat Example", userID+"@example.com", role,
		[]byte(s.cfg.SecretKey), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	return token
}

func (s *testServer) seedDocument(t *testing.T, doc *models.Document) *models.Document {
	t.Helper()
	if doc.Status == "" {
		doc.Status = models.DocumentStatusAvailable
	}
	if doc.HasContent() {
		content := []byte("contents of " + doc.ID)
		s.blob.objects[doc.StorageKey] = content
		s.blob.types[doc.StorageKey] = doc.ContentType
		doc.SizeBytes = int64(len(content))
	}
	if _, err := s.repos.Documents(nil).Create(context.Background(), doc); err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return doc
}
