// Package nfctag signs and verifies the payloads written to the team's NFC
// tags. A tag stores "student_id:hmac" where the hmac is HMAC-SHA256 of the
// student id under a shared secret, so a reader can trust a scan without a
// database lookup.
package nfctag

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrInvalidPayload is returned for malformed or tampered tag payloads.
var ErrInvalidPayload = errors.New("nfctag: invalid payload")

// Signer signs and verifies tag payloads with a shared HMAC secret.
type Signer struct {
	secret []byte
}

// NewSigner creates a signer. The secret must match the one configured on
// the bridge that programs tags.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the hex HMAC-SHA256 signature for a student id.
func (s *Signer) Sign(studentID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(studentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Payload builds the string written to a tag.
func (s *Signer) Payload(studentID string) string {
	return studentID + ":" + s.Sign(studentID)
}

// Verify checks a scanned payload and returns the embedded student id.
// Comparison is constant-time.
func (s *Signer) Verify(payload string) (string, error) {
	studentID, sig, ok := strings.Cut(payload, ":")
	if !ok || studentID == "" {
		return "", ErrInvalidPayload
	}
	expected := s.Sign(studentID)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", ErrInvalidPayload
	}
	return studentID, nil
}
