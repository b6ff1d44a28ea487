package services

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"sync"
	"time"

	"github.com/avendale/dataroom/internal/common"
	"github.com/avendale/dataroom/internal/dbx"
	"github.com/avendale/dataroom/internal/server/models"
	"github.com/avendale/dataroom/internal/server/repositories/accesshandles"
	"github.com/avendale/dataroom/internal/server/repositories/auditlog"
	"github.com/avendale/dataroom/internal/server/repositories/documents"
	"github.com/avendale/dataroom/internal/server/repositories/ndasignatures"
	"github.com/avendale/dataroom/internal/server/repositories/users"
	"github.com/avendale/dataroom/internal/server/roles"
	"github.com/avendale/dataroom/internal/server/storage"
)

// fakeRepoManager vends in-memory repositories and ignores the DBTX handle;
// service tests never touch a real database.
type fakeRepoManager struct {
	docs    *fakeDocumentsRepo
	sigs    *fakeSignaturesRepo
	audit   *fakeAuditRepo
	handles *fakeHandlesRepo
	users   *fakeUsersRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		docs:    &fakeDocumentsRepo{byID: map[string]*models.Document{}},
		sigs:    &fakeSignaturesRepo{byUser: map[string]*models.NDASignature{}},
		audit:   &fakeAuditRepo{},
		handles: &fakeHandlesRepo{byToken: map[string]*models.AccessHandle{}},
		users:   &fakeUsersRepo{byID: map[string]*models.User{}},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error      { return nil }
func (m *fakeRepoManager) Documents(dbx.DBTX) documents.Repository           { return m.docs }
func (m *fakeRepoManager) NDASignatures(dbx.DBTX) ndasignatures.Repository   { return m.sigs }
func (m *fakeRepoManager) AuditLog(dbx.DBTX) auditlog.Repository             { return m.audit }
func (m *fakeRepoManager) AccessHandles(dbx.DBTX) accesshandles.Repository   { return m.handles }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository                   { return m.users }

type fakeDocumentsRepo struct {
	mu     sync.Mutex
	byID   map[string]*models.Document
	getErr error
}

func (r *fakeDocumentsRepo) Create(_ context.Context, doc *models.Document) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	doc.CreatedAt, doc.UpdatedAt = now, now
	copied := *doc
	r.byID[doc.ID] = &copied
	return doc, nil
}

func (r *fakeDocumentsRepo) GetByID(_ context.Context, id string) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	doc, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (r *fakeDocumentsRepo) List(context.Context) ([]*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Document
	for _, doc := range r.byID {
		copied := *doc
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeDocumentsRepo) ListByCategory(_ context.Context, category string) ([]*models.Document, error) {
	all, _ := r.List(context.Background())
	var out []*models.Document
	for _, doc := range all {
		if doc.Category == category {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (r *fakeDocumentsRepo) Update(_ context.Context, doc *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[doc.ID]; !ok {
		return common.ErrNotFound
	}
	copied := *doc
	r.byID[doc.ID] = &copied
	return nil
}

func (r *fakeDocumentsRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

type fakeSignaturesRepo struct {
	mu        sync.Mutex
	byUser    map[string]*models.NDASignature
	insertErr error
}

func (r *fakeSignaturesRepo) Insert(_ context.Context, sig *models.NDASignature) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return false, r.insertErr
	}
	if _, ok := r.byUser[sig.UserID]; ok {
		return false, nil
	}
	sig.SignedAt = time.Now()
	copied := *sig
	r.byUser[sig.UserID] = &copied
	return true, nil
}

func (r *fakeSignaturesRepo) GetByUserID(_ context.Context, userID string) (*models.NDASignature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sig, ok := r.byUser[userID]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *sig
	return &copied, nil
}

func (r *fakeSignaturesRepo) List(context.Context) ([]*models.NDASignature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.NDASignature
	for _, sig := range r.byUser {
		copied := *sig
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeSignaturesRepo) DeleteByUserID(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUser[userID]; !ok {
		return common.ErrNotFound
	}
	delete(r.byUser, userID)
	return nil
}

type fakeAuditRepo struct {
	mu        sync.Mutex
	entries   []*models.AuditEntry
	insertErr error
}

func (r *fakeAuditRepo) Insert(_ context.Context, entry *models.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	copied := *entry
	r.entries = append(r.entries, &copied)
	return nil
}

func (r *fakeAuditRepo) Query(_ context.Context, filter auditlog.Filter) ([]*models.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuditEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
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

func (r *fakeAuditRepo) byAction(action string) []*models.AuditEntry {
	out, _ := r.Query(context.Background(), auditlog.Filter{Action: action})
	return out
}

type fakeHandlesRepo struct {
	mu      sync.Mutex
	byToken map[string]*models.AccessHandle
}

func (r *fakeHandlesRepo) Create(_ context.Context, handle *models.AccessHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *handle
	r.byToken[handle.Token] = &copied
	return nil
}

func (r *fakeHandlesRepo) GetByToken(_ context.Context, token string) (*models.AccessHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	handle, ok := r.byToken[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *handle
	return &copied, nil
}

func (r *fakeHandlesRepo) DeleteByDocumentID(_ context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for token, handle := range r.byToken {
		if handle.DocumentID == documentID {
			delete(r.byToken, token)
		}
	}
	return nil
}

type fakeUsersRepo struct {
	mu        sync.Mutex
	byID      map[string]*models.User
	updateErr error
}

func (r *fakeUsersRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	r.byID[user.ID] = &copied
	return user, nil
}

func (r *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUsersRepo) UpdateRoleIf(_ context.Context, userID string, from, to roles.Role) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return false, r.updateErr
	}
	user, ok := r.byID[userID]
	if !ok || user.Role != from {
		return false, nil
	}
	user.Role = to
	return true, nil
}

// fakeBlob is an in-memory BlobStore with injectable failures.
type fakeBlob struct {
	mu       sync.Mutex
	objects  map[string][]byte
	types    map[string]string
	putErr   error
	headErr  error
	fetchErr error
	puts     int
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{objects: map[string][]byte{}, types: map[string]string{}}
}

func (b *fakeBlob) Put(_ context.Context, key string, body io.Reader, _ int64, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.putErr != nil {
		return b.putErr
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.objects[key] = raw
	b.types[key] = contentType
	b.puts++
	return nil
}

func (b *fakeBlob) Head(_ context.Context, key string) (*storage.ObjectInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.headErr != nil {
		return nil, b.headErr
	}
	raw, ok := b.objects[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &storage.ObjectInfo{ContentType: b.types[key], SizeBytes: int64(len(raw))}, nil
}

func (b *fakeBlob) Fetch(ctx context.Context, key string) (io.ReadCloser, *storage.ObjectInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fetchErr != nil {
		return nil, nil, b.fetchErr
	}
	raw, ok := b.objects[key]
	if !ok {
		return nil, nil, common.ErrNotFound
	}
	info := &storage.ObjectInfo{ContentType: b.types[key], SizeBytes: int64(len(raw))}
	return &ctxBody{ctx: ctx, r: bytes.NewReader(raw)}, info, nil
}

// ctxBody mimics an S3 response body: reads fail once the context the fetch
// was issued under is canceled.
type ctxBody struct {
	ctx context.Context
	r   io.Reader
}

func (b *ctxBody) Read(p []byte) (int, error) {
	if err := b.ctx.Err(); err != nil {
		return 0, err
	}
	return b.r.Read(p)
}

func (b *ctxBody) Close() error { return nil }

func (b *fakeBlob) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	delete(b.types, key)
	return nil
}

func (b *fakeBlob) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://blob.test/presigned/" + key, nil
}
