package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer computes and verifies HMAC-SHA256 signatures over callback
// bodies. Each provider shares a secret with us out of band.
type Signer struct {
	secret []byte
}

// NewSigner creates a signer for one provider secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign computes HMAC-SHA256 of payload.
// Returns lowercase hex-encoded signature.
func (s *Signer) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks if signature matches HMAC-SHA256(secret, payload).
// Uses constant-time comparison to prevent timing attacks.
func (s *Signer) Verify(payload []byte, signature string) bool {
	expected := s.Sign(payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
