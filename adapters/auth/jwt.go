// Package auth verifies session tokens issued by the external auth
// service. Tokengate never mints end-user sessions; GenerateToken
// exists for tests and local development only.
package auth

import (
	"crypto/rand"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arvend/tokengate/domain/access"
)

// ErrInvalidToken is returned for malformed, expired, or mis-signed
// session tokens.
var ErrInvalidToken = errors.New("invalid session token")

// Claims represents the JWT claims of a chat session token.
type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService provides stateless JWT session verification.
// Thread-safe and suitable for concurrent use.
type TokenService struct {
	secret     []byte
	expiration time.Duration
}

// NewTokenService creates a new JWT token service. If secret is empty,
// a random 32-byte secret is generated (every token then fails
// verification, which is the safe default for a misconfigured gate).
func NewTokenService(secret string, expiration time.Duration) *TokenService {
	var secretBytes []byte
	if secret == "" {
		secretBytes = make([]byte, 32)
		rand.Read(secretBytes)
	} else {
		secretBytes = []byte(secret)
	}

	if expiration == 0 {
		expiration = 24 * time.Hour
	}

	return &TokenService{
		secret:     secretBytes,
		expiration: expiration,
	}
}

// VerifyToken validates a session token and returns the identity it
// carries.
func (s *TokenService) VerifyToken(tokenString string) (access.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return access.Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID == "" {
		return access.Identity{}, ErrInvalidToken
	}

	return access.Identity{UserID: claims.UserID, Email: claims.Email}, nil
}

// GenerateToken mints a session token for the given identity. Used by
// tests and the dev CLI; production sessions come from the auth
// service.
func (s *TokenService) GenerateToken(id access.Identity) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.expiration)

	claims := Claims{
		UserID: id.UserID,
		Email:  id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}
