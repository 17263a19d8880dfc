package security

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	hash, err := h.Hash("s3cret")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "s3cret" {
		t.Fatalf("hash must not equal plaintext")
	}
	if !h.Verify(hash, "s3cret") {
		t.Errorf("expected password to verify")
	}
	if h.Verify(hash, "wrong") {
		t.Errorf("wrong password must not verify")
	}
}

func TestVerifyDummyCostsOneBcryptCompare(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost + 1)
	if h.VerifyDummy("tradingassistant-dummy-password") {
		t.Errorf("dummy verification must never succeed")
	}
	if h.VerifyDummy("anything") {
		t.Errorf("dummy verification must never succeed")
	}
	cost, err := bcrypt.Cost(h.dummy)
	if err != nil {
		t.Fatalf("dummy hash not generated: %v", err)
	}
	if cost != bcrypt.MinCost+1 {
		t.Errorf("Expected dummy hash at the configured cost %d, got %d", bcrypt.MinCost+1, cost)
	}
}

func TestRandomTokensAreIndependent(t *testing.T) {
	a, err := RandomToken()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := RandomToken()
	if a == b {
		t.Errorf("tokens should differ")
	}
	if len(a) != 43 {
		t.Errorf("Expected 43 base64url chars, got %d", len(a))
	}
}

func TestHashToken(t *testing.T) {
	if HashToken("x") != HashToken("x") {
		t.Errorf("hash must be deterministic")
	}
	if HashToken("x") == HashToken("y") {
		t.Errorf("different tokens must hash differently")
	}
	if len(HashToken("x")) != 64 {
		t.Errorf("Expected 64 hex chars")
	}
}

func TestEqual(t *testing.T) {
	if !Equal("abc", "abc") || Equal("abc", "abd") || Equal("", "a") {
		t.Errorf("unexpected Equal results")
	}
}
