package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"
)

const otpDigits = 6

// OTPDispatcher delivers a one-time code out of band. Real deliveries (SMS,
// email) live behind this interface; tests inject a recording fake.
type OTPDispatcher interface {
	Dispatch(ctx context.Context, email, code string) error
}

// ConsoleDispatcher writes codes to the process log. It stands in for a real
// delivery channel during local development.
type ConsoleDispatcher struct{}

func (ConsoleDispatcher) Dispatch(_ context.Context, email, code string) error {
	log.Printf("otp for %s: %s", email, code)
	return nil
}

// otpChallenge is one issued code. A challenge is satisfied at most once;
// reissuing replaces it wholesale.
type otpChallenge struct {
	code      string
	issuedAt  time.Time
	expiresAt time.Time
	consumed  bool
}

func newOTPChallenge(now time.Time, ttl time.Duration) (*otpChallenge, error) {
	code, err := generateOTPCode()
	if err != nil {
		return nil, err
	}
	return &otpChallenge{
		code:      code,
		issuedAt:  now,
		expiresAt: now.Add(ttl),
	}, nil
}

// matches checks the submitted code against the issued one. Expired and
// already-consumed challenges never match, regardless of the code.
func (c *otpChallenge) matches(code string, now time.Time) bool {
	if c == nil || c.consumed {
		return false
	}
	if !now.Before(c.expiresAt) {
		return false
	}
	if len(code) != len(c.code) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(code), []byte(c.code)) == 1
}

func generateOTPCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", otpDigits, n), nil
}

// validOTPShape accepts exactly six ASCII digits.
func validOTPShape(code string) bool {
	if len(code) != otpDigits {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func normalizeOTPCode(raw string) string {
	return strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
}
