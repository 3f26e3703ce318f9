package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenMintAndParse(t *testing.T) {
	signer, err := newTokenSigner("secret", "")
	if err != nil {
		t.Fatalf("newTokenSigner: %v", err)
	}
	user := &User{ID: "user-1", Role: RolePerpustakaan}
	issued := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)

	raw, err := signer.mint(user, "jti-1", "device-1", issued, issued.Add(12*time.Hour))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	claims, err := signer.parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "user-1" || claims.Role != string(RolePerpustakaan) {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.Fingerprint != "device-1" {
		t.Fatalf("fingerprint not carried: %+v", claims)
	}
	if claims.Issuer != defaultIssuer {
		t.Fatalf("issuer = %q", claims.Issuer)
	}
}

func TestTokenParseRejectsWrongSecret(t *testing.T) {
	signer, _ := newTokenSigner("secret", "")
	other, _ := newTokenSigner("different", "")
	user := &User{ID: "user-1", Role: RoleJadwal}
	now := time.Now()

	raw, err := signer.mint(user, "jti-1", "", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := other.parse(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenParseRejectsGarbage(t *testing.T) {
	signer, _ := newTokenSigner("secret", "")
	for _, raw := range []string{"", "   ", "abc", "a.b.c"} {
		if _, err := signer.parse(raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("parse(%q): expected ErrInvalidToken, got %v", raw, err)
		}
	}
}

func TestTokenParseToleratesExpiry(t *testing.T) {
	// Expiry is enforced against the persisted record, not the claims, so an
	// expired token still parses to let the caller clear the stale record.
	signer, _ := newTokenSigner("secret", "")
	user := &User{ID: "user-1", Role: RoleAbsensi}
	past := time.Now().Add(-48 * time.Hour)

	raw, err := signer.mint(user, "jti-1", "", past, past.Add(time.Hour))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := signer.parse(raw); err != nil {
		t.Fatalf("parse: %v", err)
	}
}

func TestTokenParseRejectsWrongIssuer(t *testing.T) {
	minter, _ := newTokenSigner("secret", "someone-else")
	verifier, _ := newTokenSigner("secret", "")
	user := &User{ID: "user-1", Role: RoleAplikasi}
	now := time.Now()

	raw, err := minter.mint(user, "jti-1", "", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := verifier.parse(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNewTokenSignerRequiresSecret(t *testing.T) {
	if _, err := newTokenSigner("", ""); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := newTokenSigner("   ", ""); err == nil {
		t.Fatal("expected error for blank secret")
	}
}
