package webhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
)

// Signer computes and checks the processor's webhook signature: hex-encoded
// HMAC-SHA512 over the exact raw request body. Verification must run on the
// unparsed bytes; reserialising parsed JSON would not reproduce what the
// sender signed.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

func (s *Signer) Sign(body []byte) string {
	mac := hmac.New(sha512.New, s.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether the claimed signature matches the body. The
// comparison is constant time.
func (s *Signer) Verify(body []byte, signature string) bool {
	expected := s.Sign(body)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
