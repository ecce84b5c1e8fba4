package mexc

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer handles MEXC v3 request authentication. Keys are stored as []byte
// so they can be wiped from memory on shutdown.
type Signer struct {
	apiKey    []byte
	secretKey []byte
}

// NewSigner creates a new signer.
func NewSigner(apiKey, secretKey string) *Signer {
	return &Signer{
		apiKey:    []byte(apiKey),
		secretKey: []byte(secretKey),
	}
}

// HasCredentials reports whether both keys are present.
func (s *Signer) HasCredentials() bool {
	return len(s.apiKey) > 0 && len(s.secretKey) > 0
}

// APIKey returns the key for the X-MEXC-APIKEY header.
func (s *Signer) APIKey() string {
	return string(s.apiKey)
}

// Sign computes the hex HMAC-SHA256 of the encoded query string, which MEXC
// expects as the trailing `signature` parameter.
func (s *Signer) Sign(query string) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// Wipe clears the keys from memory.
func (s *Signer) Wipe() {
	if s == nil {
		return
	}
	wipeSlice(s.apiKey)
	wipeSlice(s.secretKey)
}

func wipeSlice(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
