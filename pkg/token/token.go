package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleType set member role
type RoleType string

const (
	// RoleAdmin is the admin role
	RoleAdmin RoleType = "admin"
	// RoleMember is the member role
	RoleMember RoleType = "member"
)

// Claims structure for custom claims in JWT
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// ErrInvalidToken token can't be parsed or is expired
var ErrInvalidToken = errors.New("invalid token")

const defaultExpiration = 60 * time.Minute

// Signer HMAC JWT signer / verifier
type Signer struct {
	secret     []byte
	expiration time.Duration
}

// NewSigner create a Signer, expiration <= 0 uses one hour
func NewSigner(secret string, expiration time.Duration) *Signer {
	if expiration <= 0 {
		expiration = defaultExpiration
	}
	return &Signer{secret: []byte(secret), expiration: expiration}
}

// GenerateJWT generates a JWT token
func (s *Signer) GenerateJWT(userID string, role RoleType, issuer string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseJWT parses a JWT (optionally prefixed with "Bearer ") and extracts the Claims
func (s *Signer) ParseJWT(tokenStr string) (*Claims, error) {
	tokenStr = strings.TrimPrefix(tokenStr, "Bearer ")
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
