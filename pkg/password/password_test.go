package password

import (
	"strings"
	"testing"
)

// Tests use a low cost factor to keep the suite fast; the production
// default stays at DefaultCost.
func testHasher() *Bcrypt {
	return &Bcrypt{Cost: 4}
}

func TestHashAndVerify(t *testing.T) {
	h := testHasher()

	hash, err := h.Hash("password123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "password123" || hash == "" {
		t.Fatal("hash must not be empty or equal to the plaintext")
	}

	if !h.Verify("password123", hash) {
		t.Error("Verify(correct password) = false, want true")
	}
	if h.Verify("password124", hash) {
		t.Error("Verify(wrong password) = true, want false")
	}
}

func TestHashIsSalted(t *testing.T) {
	h := testHasher()

	h1, err := h.Hash("password123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	h2, err := h.Hash("password123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password are identical, salt missing")
	}
}

func TestVerifyGarbledHash(t *testing.T) {
	h := testHasher()
	if h.Verify("password123", "not-a-bcrypt-hash") {
		t.Error("Verify against garbage hash = true, want false")
	}
}

func TestHashTooLongPassword(t *testing.T) {
	// bcrypt rejects inputs over 72 bytes; the failure must surface as
	// ErrHashingFailure, not silently truncate.
	h := testHasher()
	_, err := h.Hash(strings.Repeat("a", 100))
	if err == nil {
		t.Fatal("Hash(100-byte password) = nil error, want ErrHashingFailure")
	}
}
