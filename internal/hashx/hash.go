// Package hashx holds the hashing primitives the disclosure engine relies
// on: the SHA-256 content/contract hashes and the redacted email digest
// exposed through the prefill handoff.
package hashx

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
)

// emailDigestLen is the number of hex characters of the email hash exposed
// publicly. Enough to correlate a returning visitor, useless for recovery.
const emailDigestLen = 12

// SHA256Hex returns the lowercase hex SHA-256 digest of b.
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// TextHash returns the SHA-256 hex digest of a UTF-8 text. NDA contract
// hashes are computed with this, so both the signing page and the
// verification path must call the same function.
func TextHash(text string) string {
	return SHA256Hex([]byte(text))
}

// ReaderHash streams r through SHA-256 and returns the hex digest together
// with the number of bytes read.
func ReaderHash(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// EmailDigest returns a short, case-insensitive digest of an email address.
// The raw address must never leave the prefill store through a public read;
// this digest is what callers get instead.
func EmailDigest(email string) string {
	sum := SHA256Hex([]byte(strings.ToLower(strings.TrimSpace(email))))
	return sum[:emailDigestLen]
}
