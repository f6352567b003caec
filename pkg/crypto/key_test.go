package crypto

import (
	"bytes"
	"testing"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	k1 := DeriveKey("correct horse battery staple")
	k2 := DeriveKey("correct horse battery staple")

	if len(k1) != 32 {
		t.Fatalf("key length = %d, want 32", len(k1))
	}
	if !bytes.Equal(k1, k2) {
		t.Error("same passphrase produced different keys")
	}
}

func TestDeriveKeyDistinct(t *testing.T) {
	k1 := DeriveKey("passphrase-one")
	k2 := DeriveKey("passphrase-two")

	if bytes.Equal(k1, k2) {
		t.Error("different passphrases produced the same key")
	}
}

func TestDerivedKeyRoundTrip(t *testing.T) {
	encrypted, err := EncryptWithKeyString("trading-password", "strong passphrase 123")
	if err != nil {
		t.Fatalf("EncryptWithKeyString() error = %v", err)
	}

	plain, err := DecryptWithKeyString(encrypted, "strong passphrase 123")
	if err != nil {
		t.Fatalf("DecryptWithKeyString() error = %v", err)
	}
	if plain != "trading-password" {
		t.Errorf("round trip = %q, want %q", plain, "trading-password")
	}

	// Чужая фраза не проходит аутентификацию GCM
	if _, err := DecryptWithKeyString(encrypted, "wrong passphrase 456"); err == nil {
		t.Error("decryption with wrong passphrase must fail")
	}
}
