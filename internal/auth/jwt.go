package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Principal is the authenticated identity attached to a session.
type Principal struct {
	UserID   string
	Verified bool
}

// Verifier validates a bearer token and returns the principal it names.
type Verifier interface {
	Verify(ctx context.Context, token string) (Principal, error)
}

// Claims are the custom claims carried by gateway tokens.
type Claims struct {
	UserID   string `json:"user_id"`
	Verified bool   `json:"verified"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewJWTVerifier returns a verifier for tokens signed with secret. When
// issuer is non-empty the iss claim must match it.
func NewJWTVerifier(secret, issuer string, leeway time.Duration) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer, leeway: leeway}
}

// Verify parses and validates token. Structural problems map to
// ErrMalformedCredential; everything else the parser rejects maps to
// ErrInvalidCredential.
func (v *JWTVerifier) Verify(_ context.Context, token string) (Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidCredential
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return Principal{}, ErrMalformedCredential
		}
		return Principal{}, ErrInvalidCredential
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Principal{}, ErrInvalidCredential
	}
	uid := strings.TrimSpace(claims.UserID)
	if uid == "" {
		uid = strings.TrimSpace(claims.Subject)
	}
	if uid == "" {
		return Principal{}, ErrInvalidCredential
	}
	return Principal{UserID: uid, Verified: claims.Verified}, nil
}

// Issue signs a token for userID valid for ttl. The gateway never mints
// tokens in production; this backs local tooling and tests.
func (v *JWTVerifier) Issue(userID string, verified bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Verified: verified,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
