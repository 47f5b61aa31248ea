package auth

import (
	"errors"
	"testing"
)

func TestPasswordDigest_Deterministic(t *testing.T) {
	a := PasswordDigest("secret-pin", "api-key-123")
	b := PasswordDigest("secret-pin", "api-key-123")
	if a != b {
		t.Errorf("digest not deterministic: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestPasswordDigest_KnownValue(t *testing.T) {
	// sha256("abc"), the digest of password "ab" + api key "c"
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := PasswordDigest("ab", "c"); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestPasswordDigest_KeyChangesDigest(t *testing.T) {
	if PasswordDigest("pin", "key1") == PasswordDigest("pin", "key2") {
		t.Error("different api keys must produce different digests")
	}
}

func TestCurrentTOTP_ValidSeed(t *testing.T) {
	code, err := CurrentTOTP("JBSWY3DPEHPK3PXP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(code) != 6 {
		t.Errorf("expected 6 digits, got %q", code)
	}
	for _, ch := range code {
		if ch < '0' || ch > '9' {
			t.Errorf("non-digit in code %q", code)
		}
	}
}

func TestCurrentTOTP_LowercaseSeedAccepted(t *testing.T) {
	if _, err := CurrentTOTP(" jbswy3dpehpk3pxp "); err != nil {
		t.Errorf("lowercase/padded seed should normalize, got error: %v", err)
	}
}

func TestCurrentTOTP_MalformedSeed(t *testing.T) {
	_, err := CurrentTOTP("not-base32-!!!")
	if err == nil {
		t.Fatal("expected error for malformed seed")
	}
	if !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("expected ErrInvalidCredential, got %v", err)
	}
}
