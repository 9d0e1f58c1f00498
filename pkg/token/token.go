package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleType set account role
type RoleType string

const (
	// RoleAdmin operators, may retry failed videos
	RoleAdmin RoleType = "admin"
	// RoleCreator uploads videos
	RoleCreator RoleType = "creator"
)

// Valid report whether r is a known role
func (r RoleType) Valid() bool {
	return r == RoleAdmin || r == RoleCreator
}

// Claims structure for custom claims in JWT
type Claims struct {
	AccountID string `json:"userId"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

var (
	// ErrMissingToken no bearer token in the header
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken signature, expiry or claims rejected
	ErrInvalidToken = errors.New("invalid token")
)

// Secret Key for JWT signing and validation
var (
	JWTSecret       = []byte("secure_secret_key")
	tokenExpiration = 24 * time.Hour
)

// Configure set the signing secret and lifetime from config, ttl <= 0 keeps one day
func Configure(secret string, ttl time.Duration) {
	if secret != "" {
		JWTSecret = []byte(secret)
	}
	if ttl > 0 {
		tokenExpiration = ttl
	}
}

// GenerateJWT generates a JWT token
func GenerateJWT(accountID, role, issuer string) (string, error) {
	now := time.Now()
	claims := Claims{
		AccountID: accountID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(JWTSecret)
}

// ParseJWT parses a JWT and extracts the Claims
func ParseJWT(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return JWTSecret, nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.AccountID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseBearer parse the token of an "Authorization: Bearer <jwt>" header value
func ParseBearer(header string) (*Claims, error) {
	scheme, tokenStr, ok := strings.Cut(strings.TrimSpace(header), " ")
	if header == "" {
		return nil, ErrMissingToken
	}
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tokenStr) == "" {
		return nil, ErrInvalidToken
	}
	return ParseJWT(strings.TrimSpace(tokenStr))
}
