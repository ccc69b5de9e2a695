package service

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

//go:generate mockgen -destination=../../mocks/mock_auth.go -package=mocks github.com/atinyakov/linkcore/internal/app/service AuthIface

// AuthIface defines the JWT operations used by the middleware.
type AuthIface interface {
	BuildJWTString(companyID, userID string) (string, error)
	ParseClaims(c *http.Cookie) (*Claims, error)
	ParseRawJWT(tokenString string) (*Claims, error)
}

// Claims carries the tenant and the acting user of a request.
type Claims struct {
	jwt.RegisteredClaims
	CompanyID string `json:"company_id"`
	UserID    string `json:"user_id"`
}

// TokenExp defines the expiration time of issued tokens.
const TokenExp = time.Hour * 24 * 365

// ErrInvalidToken is returned for tokens that fail verification or lack a
// company.
var ErrInvalidToken = errors.New("invalid token or claims")

// Auth signs and verifies HS256 tokens with a shared secret.
type Auth struct {
	secret []byte
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// BuildJWTString issues a token for userID acting on behalf of companyID.
func (a *Auth) BuildJWTString(companyID, userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(TokenExp)),
		},
		CompanyID: companyID,
		UserID:    userID,
	})

	return token.SignedString(a.secret)
}

// ParseClaims verifies the token carried by cookie c.
func (a *Auth) ParseClaims(c *http.Cookie) (*Claims, error) {
	return a.ParseRawJWT(c.Value)
}

func (a *Auth) ParseRawJWT(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.CompanyID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
