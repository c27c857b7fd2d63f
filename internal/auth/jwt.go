package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// Service issues and verifies the HS256 bearer tokens that establish the
// caller identity for document endpoints.
type Service struct {
	secret   []byte
	expiry   time.Duration
	username string
	password string
}

func NewService(secret string, expiry time.Duration, username, password string) *Service {
	return &Service{
		secret:   []byte(secret),
		expiry:   expiry,
		username: username,
		password: password,
	}
}

// Authenticate checks login credentials.
func (s *Service) Authenticate(username, password string) bool {
	return username == s.username && password == s.password
}

// CreateToken issues a signed token for username.
func (s *Service) CreateToken(username string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   username,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.expiry)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// VerifyToken validates tokenString and returns the caller's username.
func (s *Service) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrTokenInvalid
	}

	return claims.Subject, nil
}
