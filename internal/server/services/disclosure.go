package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/avendale/dataroom/internal/common"
	"github.com/avendale/dataroom/internal/dbx"
	"github.com/avendale/dataroom/internal/hashx"
	"github.com/avendale/dataroom/internal/logging"
	sc "github.com/avendale/dataroom/internal/server/config"
	"github.com/avendale/dataroom/internal/server/models"
	"github.com/avendale/dataroom/internal/server/ratelimit"
	"github.com/avendale/dataroom/internal/server/repositories/repomanager"
	"github.com/avendale/dataroom/internal/server/roles"
	"github.com/avendale/dataroom/internal/server/storage"
)

// handleTokenBytes sizes the random token of an access handle (32 bytes,
// 64 hex characters).
const handleTokenBytes = 32

// Content is a successfully authorized document served through the gateway.
// The underlying storage location is never part of it; callers stream Body
// and must close it.
type Content struct {
	Document    *models.Document
	Body        io.ReadCloser
	ContentType string
	SizeBytes   int64
}

// UploadCommand carries one admin upload. Body is read fully (the ceiling is
// small) so the content hash can be computed before the blob write.
type UploadCommand struct {
	Title       string
	Category    string
	Notes       string
	Visibility  []string
	DueDate     *time.Time
	ContentType string
	SizeBytes   int64
	Body        io.Reader
}

// ExpectedCommand creates a placeholder row for a document the sellers still
// owe, before any file exists for it.
type ExpectedCommand struct {
	Title      string
	Category   string
	Notes      string
	Visibility []string
	DueDate    *time.Time
}

// DocumentPatch is a partial metadata update. Nil fields are left unchanged;
// ClearDueDate removes an existing due date.
type DocumentPatch struct {
	Title        *string
	Category     *string
	Status       *string
	Notes        *string
	Visibility   *[]string
	DueDate      *time.Time
	ClearDueDate bool
}

// DisclosureService is the gateway every document-access request flows
// through. It authorizes against the role model and the NDA ledger, consults
// the rate limiter, fetches content from the blob collaborator, and records
// the audit trail. It is the only writer of documents besides migrations,
// and only on behalf of admin-authenticated callers.
type DisclosureService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blob        storage.BlobStore
	limiter     *ratelimit.Limiter
	nda         *NDAService
	audit       *AuditService
	config      *sc.Config
	logger      logging.Logger
}

// NewDisclosureService wires the gateway to its collaborators.
func NewDisclosureService(db *sql.DB, m repomanager.RepositoryManager, blob storage.BlobStore,
	limiter *ratelimit.Limiter, nda *NDAService, audit *AuditService,
	cfg *sc.Config, logger logging.Logger) *DisclosureService {
	return &DisclosureService{
		db:          db,
		repomanager: m,
		blob:        blob,
		limiter:     limiter,
		nda:         nda,
		audit:       audit,
		config:      cfg,
		logger:      logger.With("module", "disclosure"),
	}
}

// upstream bounds a blob or database call with the configured timeout.
func (s *DisclosureService) upstream(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.config.UpstreamTimeout)
}

// mapUpstream converts a deadline overrun into the typed timeout error; the
// gateway performs one attempt per upstream call and fails fast.
func mapUpstream(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return common.ErrUpstreamTimeout
	}
	return err
}

// consume takes one request from the identity's rate-limit window. Every
// read path draws from the same per-identity budget, content and metadata
// alike.
func (s *DisclosureService) consume(ctx context.Context, identity Identity) error {
	decision, err := s.limiter.CheckAndConsume(ctx, identity.UserID)
	if err != nil {
		// The limiter fails open; the decision is still usable.
		s.logger.Warn(ctx, "rate limit backend failure", "error", err)
	}
	if !decision.Allowed {
		return &common.RateLimitedError{ResetAt: decision.ResetAt}
	}
	return nil
}

// Authorize runs the request pipeline up to and including the NDA gate:
// identity, rate limit, document existence, role visibility, NDA. Role and
// NDA denials are recorded in the audit trail; the earlier failures are not,
// since they carry no authorization signal.
func (s *DisclosureService) Authorize(ctx context.Context, documentID string, identity Identity) (*models.Document, error) {
	if !identity.Authenticated() {
		return nil, common.ErrUnauthenticated
	}
	if err := s.consume(ctx, identity); err != nil {
		return nil, err
	}

	upstreamCtx, cancel := s.upstream(ctx)
	defer cancel()
	doc, err := s.repomanager.Documents(s.db).GetByID(upstreamCtx, documentID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, mapUpstream(fmt.Errorf("load document: %w", err))
	}

	if !roles.Allowed(identity.Role, doc.Visibility) {
		s.recordDenied(ctx, doc.ID, identity)
		return nil, common.ErrForbidden
	}

	if !identity.Role.ExemptFromNDA() && roles.RequiresNDA(doc.Visibility) {
		signed, err := s.nda.HasSigned(ctx, identity)
		if err != nil {
			return nil, fmt.Errorf("nda check: %w", err)
		}
		if !signed {
			s.recordDenied(ctx, doc.ID, identity)
			return nil, common.ErrNDARequired
		}
	}

	return doc, nil
}

func (s *DisclosureService) recordDenied(ctx context.Context, documentID string, identity Identity) {
	s.audit.Record(ctx, &models.AuditEntry{
		UserID:     identity.UserID,
		DocumentID: &documentID,
		Action:     models.ActionDenied,
		IP:         identity.SourceIP,
	})
}

// Serve authorizes and streams a document. action must be ActionView or
// ActionDownload and is what lands in the audit trail; exactly one entry is
// written per successful serve. A metadata row whose blob is gone is a fatal
// integrity fault (ErrStorageInconsistency), never a plain not-found.
func (s *DisclosureService) Serve(ctx context.Context, documentID string, identity Identity, action string) (*Content, error) {
	doc, err := s.Authorize(ctx, documentID, identity)
	if err != nil {
		return nil, err
	}
	if !doc.HasContent() {
		return nil, common.ErrNotFound
	}

	// Only the Head runs under the bounded context: it is the existence and
	// reachability check. The fetch must hang off the caller's context
	// because the returned body outlives this call — the handler streams it
	// after we return, and a canceled fetch context would kill the stream.
	headCtx, cancel := s.upstream(ctx)
	_, err = s.blob.Head(headCtx, doc.StorageKey)
	cancel()
	if err != nil {
		return nil, s.blobFault(ctx, doc, err)
	}

	body, info, err := s.blob.Fetch(ctx, doc.StorageKey)
	if err != nil {
		return nil, s.blobFault(ctx, doc, err)
	}

	s.audit.Record(ctx, &models.AuditEntry{
		UserID:     identity.UserID,
		DocumentID: &doc.ID,
		Action:     action,
		IP:         identity.SourceIP,
	})

	contentType := doc.ContentType
	if contentType == "" {
		contentType = info.ContentType
	}
	return &Content{
		Document:    doc,
		Body:        body,
		ContentType: contentType,
		SizeBytes:   info.SizeBytes,
	}, nil
}

// blobFault classifies a blob failure during a serve: a missing object under
// a live metadata row is metadata/storage drift operators must investigate.
func (s *DisclosureService) blobFault(ctx context.Context, doc *models.Document, err error) error {
	if errors.Is(err, common.ErrNotFound) {
		s.logger.Error(ctx, "storage inconsistency: metadata row has no object",
			"document_id", doc.ID, "storage_key", doc.StorageKey)
		return common.ErrStorageInconsistency
	}
	return mapUpstream(fmt.Errorf("blob access: %w", err))
}

// CreateHandle issues an opaque, never-expiring reference to a document the
// identity is currently authorized to see. Nothing is served at issue time,
// so no view entry is written; every later dereference re-runs the full
// authorization pipeline under the dereferencing caller's identity.
func (s *DisclosureService) CreateHandle(ctx context.Context, documentID string, identity Identity) (*models.AccessHandle, error) {
	doc, err := s.Authorize(ctx, documentID, identity)
	if err != nil {
		return nil, err
	}

	token, err := common.MakeRandHexString(handleTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate handle token: %w", err)
	}

	handle := &models.AccessHandle{
		ID:         uuid.NewString(),
		Token:      token,
		UserID:     identity.UserID,
		DocumentID: doc.ID,
	}
	if err := s.repomanager.AccessHandles(s.db).Create(ctx, handle); err != nil {
		return nil, fmt.Errorf("store handle: %w", err)
	}
	return handle, nil
}

// ResolveHandle dereferences an access handle and serves the referenced
// document under the caller's identity. The handle grants nothing by itself.
func (s *DisclosureService) ResolveHandle(ctx context.Context, token string, identity Identity, action string) (*Content, error) {
	handle, err := s.repomanager.AccessHandles(s.db).GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.Serve(ctx, handle.DocumentID, identity, action)
}

// PresignedURL is the direct access variant: a short-lived signed storage
// URL with no further authorization re-check during its validity. The issue
// itself is authorized and audited as a download.
func (s *DisclosureService) PresignedURL(ctx context.Context, documentID string, identity Identity) (string, error) {
	doc, err := s.Authorize(ctx, documentID, identity)
	if err != nil {
		return "", err
	}
	if !doc.HasContent() {
		return "", common.ErrNotFound
	}

	upstreamCtx, cancel := s.upstream(ctx)
	defer cancel()

	if _, err := s.blob.Head(upstreamCtx, doc.StorageKey); err != nil {
		return "", s.blobFault(ctx, doc, err)
	}

	url, err := s.blob.PresignGet(upstreamCtx, doc.StorageKey, s.config.PresignValidityDuration)
	if err != nil {
		return "", mapUpstream(fmt.Errorf("presign: %w", err))
	}

	s.audit.Record(ctx, &models.AuditEntry{
		UserID:     identity.UserID,
		DocumentID: &doc.ID,
		Action:     models.ActionDownload,
		IP:         identity.SourceIP,
	})
	return url, nil
}

// randomStorageKey shards uploads by date so buckets stay listable.
func randomStorageKey() string {
	d := timeNow()
	return fmt.Sprintf("documents/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

// Upload stores a new document: admin-only, size-capped, content-hashed.
// The blob write happens first and the metadata row only after it succeeds;
// a row must never reference an object that does not exist.
func (s *DisclosureService) Upload(ctx context.Context, cmd UploadCommand, identity Identity) (*models.Document, error) {
	if !identity.Authenticated() {
		return nil, common.ErrUnauthenticated
	}
	if identity.Role != roles.Admin {
		return nil, common.ErrForbidden
	}
	if cmd.SizeBytes > s.config.MaxUploadBytes {
		return nil, common.ErrFileTooLarge
	}

	raw, err := io.ReadAll(io.LimitReader(cmd.Body, s.config.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(raw)) > s.config.MaxUploadBytes {
		return nil, common.ErrFileTooLarge
	}

	key := randomStorageKey()

	upstreamCtx, cancel := s.upstream(ctx)
	defer cancel()
	if err := s.blob.Put(upstreamCtx, key, bytes.NewReader(raw), int64(len(raw)), cmd.ContentType); err != nil {
		return nil, mapUpstream(fmt.Errorf("blob put: %w", err))
	}

	doc := &models.Document{
		ID:          uuid.NewString(),
		Title:       cmd.Title,
		Category:    cmd.Category,
		Status:      models.DocumentStatusAvailable,
		Notes:       cmd.Notes,
		DueDate:     cmd.DueDate,
		StorageKey:  key,
		ContentType: cmd.ContentType,
		SizeBytes:   int64(len(raw)),
		ContentHash: hashx.SHA256Hex(raw),
		Visibility:  cmd.Visibility,
	}
	doc, err = s.repomanager.Documents(s.db).Create(ctx, doc)
	if err != nil {
		// The orphaned blob is harmless; the reverse would not be.
		return nil, fmt.Errorf("store document metadata: %w", err)
	}

	s.audit.Record(ctx, &models.AuditEntry{
		UserID:     identity.UserID,
		DocumentID: &doc.ID,
		Action:     models.ActionUpload,
		IP:         identity.SourceIP,
	})
	return doc, nil
}

// CreateExpected records a placeholder for a document the room still owes,
// with no content behind it. Admin-only.
func (s *DisclosureService) CreateExpected(ctx context.Context, cmd ExpectedCommand, identity Identity) (*models.Document, error) {
	if !identity.Authenticated() {
		return nil, common.ErrUnauthenticated
	}
	if identity.Role != roles.Admin {
		return nil, common.ErrForbidden
	}

	doc := &models.Document{
		ID:         uuid.NewString(),
		Title:      cmd.Title,
		Category:   cmd.Category,
		Status:     models.DocumentStatusExpected,
		Notes:      cmd.Notes,
		DueDate:    cmd.DueDate,
		Visibility: cmd.Visibility,
	}
	return s.repomanager.Documents(s.db).Create(ctx, doc)
}

// GetDocument returns a single metadata record the caller may see. NDA
// gating applies to content, not metadata, so it is not consulted here.
func (s *DisclosureService) GetDocument(ctx context.Context, documentID string, identity Identity) (*models.Document, error) {
	if !identity.Authenticated() {
		return nil, common.ErrUnauthenticated
	}
	if err := s.consume(ctx, identity); err != nil {
		return nil, err
	}

	doc, err := s.repomanager.Documents(s.db).GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !roles.Allowed(identity.Role, doc.Visibility) {
		return nil, common.ErrForbidden
	}
	return doc, nil
}

// ListDocuments returns the metadata the caller's role can see, optionally
// narrowed to one category. Admins additionally see expected-but-missing
// placeholders; other roles only see documents with content behind them.
func (s *DisclosureService) ListDocuments(ctx context.Context, identity Identity, category string) ([]*models.Document, error) {
	if !identity.Authenticated() {
		return nil, common.ErrUnauthenticated
	}
	if err := s.consume(ctx, identity); err != nil {
		return nil, err
	}

	repo := s.repomanager.Documents(s.db)
	var docs []*models.Document
	var err error
	if category != "" {
		docs, err = repo.ListByCategory(ctx, category)
	} else {
		docs, err = repo.List(ctx)
	}
	if err != nil {
		return nil, err
	}

	if identity.Role == roles.Admin {
		return docs, nil
	}

	visible := make([]*models.Document, 0, len(docs))
	for _, doc := range docs {
		if !roles.Allowed(identity.Role, doc.Visibility) {
			continue
		}
		if !doc.HasContent() {
			continue
		}
		visible = append(visible, doc)
	}
	return visible, nil
}

// UpdateDocument applies a partial metadata update. Admin-only; the content
// hash and storage key are deliberately not patchable.
func (s *DisclosureService) UpdateDocument(ctx context.Context, documentID string, patch DocumentPatch, identity Identity) (*models.Document, error) {
	if !identity.Authenticated() {
		return nil, common.ErrUnauthenticated
	}
	if identity.Role != roles.Admin {
		return nil, common.ErrForbidden
	}

	repo := s.repomanager.Documents(s.db)
	doc, err := repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		doc.Title = *patch.Title
	}
	if patch.Category != nil {
		doc.Category = *patch.Category
	}
	if patch.Status != nil {
		doc.Status = *patch.Status
	}
	if patch.Notes != nil {
		doc.Notes = *patch.Notes
	}
	if patch.Visibility != nil {
		doc.Visibility = *patch.Visibility
	}
	if patch.ClearDueDate {
		doc.DueDate = nil
	} else if patch.DueDate != nil {
		doc.DueDate = patch.DueDate
	}

	if err := repo.Update(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// DeleteDocument removes a document: the metadata row and any handles go in
// one transaction, the blob afterwards on a best-effort basis (an orphaned
// object is an inconvenience, a dangling metadata row would be a fault).
func (s *DisclosureService) DeleteDocument(ctx context.Context, documentID string, identity Identity) error {
	if !identity.Authenticated() {
		return common.ErrUnauthenticated
	}
	if identity.Role != roles.Admin {
		return common.ErrForbidden
	}

	doc, err := s.repomanager.Documents(s.db).GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.AccessHandles(tx).DeleteByDocumentID(ctx, doc.ID); err != nil {
			return err
		}
		return s.repomanager.Documents(tx).Delete(ctx, doc.ID)
	}); err != nil {
		return err
	}

	if doc.HasContent() {
		upstreamCtx, cancel := s.upstream(ctx)
		defer cancel()
		if err := s.blob.Delete(upstreamCtx, doc.StorageKey); err != nil {
			s.logger.Warn(ctx, "blob delete failed after metadata removal",
				"error", err, "document_id", doc.ID, "storage_key", doc.StorageKey)
		}
	}

	s.audit.Record(ctx, &models.AuditEntry{
		UserID:     identity.UserID,
		DocumentID: &doc.ID,
		Action:     models.ActionDelete,
		IP:         identity.SourceIP,
	})
	return nil
}
