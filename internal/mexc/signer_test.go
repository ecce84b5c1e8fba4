package mexc

import "testing"

func TestSigner_Sign(t *testing.T) {
	s := NewSigner("key", "secret")

	sig := s.Sign("symbol=BTCUSDT&timestamp=1700000000000")
	if len(sig) != 64 {
		t.Errorf("signature length = %d, want 64 hex chars", len(sig))
	}

	// Deterministic for the same payload.
	if s.Sign("symbol=BTCUSDT&timestamp=1700000000000") != sig {
		t.Error("signature not deterministic")
	}

	// Different payload, different signature.
	if s.Sign("symbol=ETHUSDT&timestamp=1700000000000") == sig {
		t.Error("different payloads must sign differently")
	}
}

func TestSigner_HasCredentials(t *testing.T) {
	if NewSigner("", "").HasCredentials() {
		t.Error("empty signer should have no credentials")
	}
	if !NewSigner("k", "s").HasCredentials() {
		t.Error("populated signer should have credentials")
	}
}

func TestSigner_Wipe(t *testing.T) {
	s := NewSigner("key", "secret")
	s.Wipe()
	if s.APIKey() != "\x00\x00\x00" {
		t.Error("key not wiped")
	}
}
