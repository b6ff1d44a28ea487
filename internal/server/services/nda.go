package services

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avendale/dataroom/internal/common"
	"github.com/avendale/dataroom/internal/hashx"
	"github.com/avendale/dataroom/internal/logging"
	"github.com/avendale/dataroom/internal/server/models"
	"github.com/avendale/dataroom/internal/server/repositories/repomanager"
	"github.com/avendale/dataroom/internal/server/roles"
)

// maxSignatureBytes caps the decoded signature image payload.
const maxSignatureBytes = 256 << 10

// maxUserAgentLen caps the sanitized User-Agent stored with a signature.
const maxUserAgentLen = 256

// ndaTextTemplate is the personalized contract text shown to a signer and
// hashed on both sides of the signing exchange. Placeholders are, in order:
// NDA version, signer name, signer email. Any change to this text changes
// the hash and invalidates in-flight signing sessions, which is the point.
const ndaTextTemplate = `NON-DISCLOSURE AGREEMENT
Version %s

This Non-Disclosure Agreement is entered into by %s (%s), hereinafter the
"Recipient", in connection with the evaluation of a potential acquisition.

1. The Recipient will receive access to confidential business documents,
   including financial statements, contracts, and operational records.
2. The Recipient shall not disclose, copy, or distribute any such material
   to a third party, nor use it for any purpose other than the evaluation.
3. All access to the data room is recorded. The Recipient consents to this
   recording and to its retention for the duration of the process.
4. The obligations of this agreement survive the conclusion or abandonment
   of the evaluation for a period of three years.

By signing below, the Recipient accepts these terms.`

// NDAStatus reports a caller's signing state. Exempt callers (admins) are
// treated as always signed without a ledger record.
type NDAStatus struct {
	Signed   bool       `json:"signed"`
	Exempt   bool       `json:"exempt"`
	SignedAt *time.Time `json:"signed_at,omitempty"`
	Version  string     `json:"version,omitempty"`
}

// SignRequest carries one signing submission. TextHash is the hash the
// client claims to have reviewed; it must match the server-side recomputed
// hash of the current personalized text.
type SignRequest struct {
	Identity      Identity
	SignatureData string
	TextHash      string
}

// NDAService is the signing ledger: it renders the personalized contract
// text, verifies and stores one-time signatures, and answers signed/exempt
// queries for the gateway.
type NDAService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	audit       *AuditService
	version     string
	logger      logging.Logger
}

// NewNDAService constructs an NDAService stamping new signatures with the
// given contract version.
func NewNDAService(db *sql.DB, m repomanager.RepositoryManager, audit *AuditService, version string, logger logging.Logger) *NDAService {
	return &NDAService{
		db:          db,
		repomanager: m,
		audit:       audit,
		version:     version,
		logger:      logger.With("module", "nda"),
	}
}

// SigningText returns the personalized contract text for the identity and
// its SHA-256 hex hash. Name and email are HTML-escaped before interpolation
// so the rendered page and the hashed text cannot diverge on markup.
func (s *NDAService) SigningText(identity Identity) (string, string) {
	text := fmt.Sprintf(ndaTextTemplate, s.version,
		html.EscapeString(identity.Name), html.EscapeString(identity.Email))
	return text, hashx.TextHash(text)
}

// GetStatus reports the signing state for the identity. An exempt role is
// reported signed without consulting the ledger; an absent record is not an
// error, just "not signed".
func (s *NDAService) GetStatus(ctx context.Context, identity Identity) (*NDAStatus, error) {
	if identity.Role.ExemptFromNDA() {
		return &NDAStatus{Signed: true, Exempt: true}, nil
	}

	repo := s.repomanager.NDASignatures(s.db)
	sig, err := repo.GetByUserID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return &NDAStatus{}, nil
		}
		return nil, fmt.Errorf("nda status lookup: %w", err)
	}

	signedAt := sig.SignedAt
	return &NDAStatus{Signed: true, SignedAt: &signedAt, Version: sig.NDAVersion}, nil
}

// HasSigned reports whether the identity may pass an NDA gate.
func (s *NDAService) HasSigned(ctx context.Context, identity Identity) (bool, error) {
	status, err := s.GetStatus(ctx, identity)
	if err != nil {
		return false, err
	}
	return status.Signed, nil
}

// Store verifies and records one signature. The insert is atomic
// insert-if-absent, so concurrent submissions for one user yield exactly one
// row; the losers observe common.ErrAlreadySigned. The viewer-to-buyer
// promotion afterwards is best effort: the recorded signature is the
// authoritative fact, and a promotion hiccup must not fail the response.
func (s *NDAService) Store(ctx context.Context, req SignRequest) (*models.NDASignature, error) {
	if !req.Identity.Authenticated() {
		return nil, common.ErrUnauthenticated
	}
	if req.Identity.Role.ExemptFromNDA() {
		// Admins have nothing to sign; an exempt signature row would only
		// confuse the ledger.
		return nil, common.ErrForbidden
	}

	if err := validateSignatureData(req.SignatureData); err != nil {
		return nil, err
	}

	_, wantHash := s.SigningText(req.Identity)
	if !strings.EqualFold(strings.TrimSpace(req.TextHash), wantHash) {
		return nil, common.ErrHashMismatch
	}

	sig := &models.NDASignature{
		ID:            uuid.NewString(),
		UserID:        req.Identity.UserID,
		Name:          req.Identity.Name,
		Email:         req.Identity.Email,
		SignatureData: req.SignatureData,
		NDAVersion:    s.version,
		TextHash:      wantHash,
		IP:            req.Identity.SourceIP,
		UserAgent:     sanitizeUserAgent(req.Identity.UserAgent),
	}

	repo := s.repomanager.NDASignatures(s.db)
	inserted, err := repo.Insert(ctx, sig)
	if err != nil {
		return nil, fmt.Errorf("store signature: %w", err)
	}
	if !inserted {
		return nil, common.ErrAlreadySigned
	}

	s.promoteSigner(ctx, req.Identity)

	s.audit.Record(ctx, &models.AuditEntry{
		UserID: req.Identity.UserID,
		Action: models.ActionSign,
		IP:     req.Identity.SourceIP,
	})

	return sig, nil
}

// promoteSigner applies the viewer-to-buyer transition. Losing the race to a
// concurrent promotion or hitting a persistence error is logged, not
// returned.
func (s *NDAService) promoteSigner(ctx context.Context, identity Identity) {
	if identity.Role != roles.Viewer {
		return
	}
	repo := s.repomanager.Users(s.db)
	promoted, err := repo.UpdateRoleIf(ctx, identity.UserID, roles.Viewer, roles.Buyer)
	if err != nil {
		s.logger.Warn(ctx, "signer promotion failed",
			"error", err, "user_id", identity.UserID)
		return
	}
	if !promoted {
		s.logger.Info(ctx, "signer promotion skipped, role already changed",
			"user_id", identity.UserID)
	}
}

// List returns every signature, newest first, for the admin surface.
func (s *NDAService) List(ctx context.Context) ([]*models.NDASignature, error) {
	repo := s.repomanager.NDASignatures(s.db)
	return repo.List(ctx)
}

// Delete removes a user's signature. This is the only way a signature ever
// leaves the ledger, it is restricted to admins, and it is audit-logged.
func (s *NDAService) Delete(ctx context.Context, userID string, actor Identity) error {
	if actor.Role != roles.Admin {
		return common.ErrForbidden
	}

	repo := s.repomanager.NDASignatures(s.db)
	if err := repo.DeleteByUserID(ctx, userID); err != nil {
		return err
	}

	s.audit.Record(ctx, &models.AuditEntry{
		UserID:  actor.UserID,
		Subject: userID,
		Action:  models.ActionDelete,
		IP:      actor.SourceIP,
	})
	return nil
}

// validateSignatureData performs the structural checks on a submitted
// signature image: a data URL with an image media type, decodable base64,
// and a bounded decoded size.
func validateSignatureData(data string) error {
	if data == "" {
		return common.ErrInvalidSignature
	}
	if !strings.HasPrefix(data, "data:image/") {
		return common.ErrInvalidSignature
	}
	idx := strings.Index(data, ";base64,")
	if idx < 0 {
		return common.ErrInvalidSignature
	}
	payload := data[idx+len(";base64,"):]
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return common.ErrInvalidSignature
	}
	if len(decoded) == 0 || len(decoded) > maxSignatureBytes {
		return common.ErrInvalidSignature
	}
	return nil
}

// sanitizeUserAgent strips control characters and caps the length before a
// User-Agent header is persisted with a signature.
func sanitizeUserAgent(ua string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, ua)
	if len(cleaned) > maxUserAgentLen {
		cleaned = cleaned[:maxUserAgentLen]
	}
	return cleaned
}
