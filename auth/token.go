package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"courier/errors"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies bearer tokens with a shared secret
// configured at process start. The same service is used by the identity
// endpoints (issue) and by the connection handshake (verify).
type TokenService struct {
	secret   []byte
	duration time.Duration
}

func NewTokenService(secret string, duration time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), duration: duration}
}

// GenerateToken creates a signed JWT for a specific user.
func (s *TokenService) GenerateToken(userID string) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "courier",
		},
	}

	// HS256 (HMAC with SHA256), signed with the server's secret key.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// VerifyToken parses and validates the signature and expiration of a JWT
// string and returns the embedded identity claim. It runs exactly once per
// connection, before the connection is admitted.
func (s *TokenService) VerifyToken(tokenString string) (string, error) {
	if tokenString == "" {
		return "", errors.ErrMissingCredential
	}

	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return "", errors.ErrInvalidCredential
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", errors.ErrInvalidCredential
	}
	return claims.UserID, nil
}
