package auth

import (
	"testing"
	"time"
)

func TestGenerateOTPCodeShape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		code, err := generateOTPCode()
		if err != nil {
			t.Fatalf("generateOTPCode: %v", err)
		}
		if !validOTPShape(code) {
			t.Fatalf("code %q is not 6 digits", code)
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatal("generator produced a constant code")
	}
}

func TestChallengeMatching(t *testing.T) {
	now := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)
	c, err := newOTPChallenge(now, 5*time.Minute)
	if err != nil {
		t.Fatalf("newOTPChallenge: %v", err)
	}

	if !c.matches(c.code, now) {
		t.Fatal("issued code must match inside the window")
	}
	if c.matches(c.code, now.Add(5*time.Minute)) {
		t.Fatal("code must not match at expiry")
	}
	wrong := "000000"
	if wrong == c.code {
		wrong = "000001"
	}
	if c.matches(wrong, now) {
		t.Fatal("wrong code matched")
	}

	c.consumed = true
	if c.matches(c.code, now) {
		t.Fatal("consumed challenge matched again")
	}

	var nilChallenge *otpChallenge
	if nilChallenge.matches("123456", now) {
		t.Fatal("nil challenge matched")
	}
}

func TestValidOTPShape(t *testing.T) {
	for code, want := range map[string]bool{
		"482913":  true,
		"000000":  true,
		"48291":   false,
		"4829131": false,
		"48a913":  false,
		"":        false,
	} {
		if got := validOTPShape(code); got != want {
			t.Fatalf("validOTPShape(%q) = %v, want %v", code, got, want)
		}
	}
}

func TestNormalizeOTPCode(t *testing.T) {
	if got := normalizeOTPCode(" 482 913 "); got != "482913" {
		t.Fatalf("normalizeOTPCode = %q", got)
	}
}
