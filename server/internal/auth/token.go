package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Rajthegreat123/strikas/server/internal/apperr"
)

// Manager is the identity gate: it mints bearer tokens at login and
// validates the token presented with every connection and request.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl}
}

type AccessClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (m *Manager) GenerateToken(userID, email string) (string, error) {
	claims := AccessClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.secret)
}

// VerifyToken validates the bearer capability and returns the stable user id.
func (m *Manager) VerifyToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return m.secret, nil
	})
	if err != nil {
		return "", apperr.Wrap(apperr.Unauthenticated, "invalid token", err)
	}
	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", apperr.New(apperr.Unauthenticated, "invalid token")
	}
	return claims.Subject, nil
}
