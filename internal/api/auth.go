package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer = "venuepark"
	// identityMaxLifetime bounds exp-iat of a platform identity assertion.
	identityMaxLifetime = 5 * time.Minute
)

var (
	errInvalidToken    = errors.New("invalid or expired token")
	errInvalidIdentity = errors.New("invalid identity assertion")
)

// Auth issues and verifies HS256 session tokens. The subject is the caller id.
// It also verifies the identity assertions the platform signs with its own
// secret, which are the only way to obtain a session token.
type Auth struct {
	secret         []byte
	platformSecret []byte
	ttl            time.Duration
	now            func() time.Time
}

func NewAuth(secret, platformSecret string, ttl time.Duration) *Auth {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Auth{secret: []byte(secret), platformSecret: []byte(platformSecret), ttl: ttl, now: time.Now}
}

// Issue implements service.TokenIssuer.
func (a *Auth) Issue(userID string) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    tokenIssuer,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify returns the caller id carried by token.
func (a *Auth) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", errInvalidToken
	}
	return claims.Subject, nil
}

// VerifyIdentity implements service.IdentityVerifier. The assertion is an
// HS256 token signed with the platform secret, addressed to this service and
// valid for at most identityMaxLifetime.
func (a *Auth) VerifyIdentity(assertion string) (string, error) {
	if len(a.platformSecret) == 0 {
		return "", fmt.Errorf("%w: platform secret not configured", errInvalidIdentity)
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(assertion, claims,
		func(*jwt.Token) (interface{}, error) { return a.platformSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidIdentity, err)
	}
	if claims.IssuedAt == nil || claims.ExpiresAt.Sub(claims.IssuedAt.Time) > identityMaxLifetime {
		return "", fmt.Errorf("%w: lifetime exceeds %s", errInvalidIdentity, identityMaxLifetime)
	}
	if claims.Subject == "" {
		return "", errInvalidIdentity
	}
	return claims.Subject, nil
}

// bearerToken extracts the token from "Authorization: Bearer <jwt>".
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
