package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates a session token failed signature or claim checks.
var ErrInvalidToken = errors.New("auth: invalid token")

const defaultIssuer = "sekolahku"

// sessionClaims is the JWT payload carried by a session token. The persisted
// session record stays the source of truth; the signature only proves the
// token was minted by this service.
type sessionClaims struct {
	Role        string `json:"role"`
	Fingerprint string `json:"fpr,omitempty"`
	jwt.RegisteredClaims
}

type tokenSigner struct {
	secret []byte
	issuer string
}

func newTokenSigner(secret, issuer string) (tokenSigner, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return tokenSigner{}, errors.New("auth secret is required")
	}
	if strings.TrimSpace(issuer) == "" {
		issuer = defaultIssuer
	}
	return tokenSigner{secret: []byte(secret), issuer: issuer}, nil
}

func (ts tokenSigner) mint(user *User, jti, fingerprint string, issuedAt, expiresAt time.Time) (string, error) {
	claims := sessionClaims{
		Role:        string(user.Role),
		Fingerprint: fingerprint,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt.UTC()),
			ExpiresAt: jwt.NewNumericDate(expiresAt.UTC()),
			ID:        jti,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ts.secret)
}

// parse verifies the signature and claim shape only. Expiry is deliberately
// not enforced here: the persisted session record is the source of truth and
// its validation decides staleness, including clearing the stale record.
func (ts tokenSigner) parse(raw string) (*sessionClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(raw, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return ts.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != ts.issuer {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
