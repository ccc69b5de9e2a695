package service_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/linkcore/internal/app/service"
)

const testSecret = "test-secret"

func TestBuildJWTString(t *testing.T) {
	auth := service.NewAuth(testSecret)

	tokenStr, err := auth.BuildJWTString("company-1", "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, tokenStr)

	// Decode token to verify claims
	token, err := jwt.ParseWithClaims(tokenStr, &service.Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims, ok := token.Claims.(*service.Claims)
	require.True(t, ok)
	require.Equal(t, "company-1", claims.CompanyID)
	require.Equal(t, "user-1", claims.UserID)
	require.WithinDuration(t, time.Now().Add(service.TokenExp), claims.ExpiresAt.Time, time.Minute)
}

func TestParseClaims(t *testing.T) {
	auth := service.NewAuth(testSecret)

	t.Run("valid token", func(t *testing.T) {
		signed, err := auth.BuildJWTString("company-1", "user-1")
		require.NoError(t, err)

		claims, err := auth.ParseClaims(&http.Cookie{Name: "token", Value: signed})
		require.NoError(t, err)
		require.Equal(t, "company-1", claims.CompanyID)
		require.Equal(t, "user-1", claims.UserID)
	})

	t.Run("invalid token", func(t *testing.T) {
		claims, err := auth.ParseClaims(&http.Cookie{Name: "token", Value: "invalid.token.here"})
		require.Error(t, err)
		require.Nil(t, claims)
	})

	t.Run("foreign secret", func(t *testing.T) {
		signed, err := service.NewAuth("other").BuildJWTString("company-1", "user-1")
		require.NoError(t, err)

		claims, err := auth.ParseRawJWT(signed)
		require.Error(t, err)
		require.Nil(t, claims)
	})

	t.Run("missing company", func(t *testing.T) {
		signed, err := auth.BuildJWTString("", "user-1")
		require.NoError(t, err)

		claims, err := auth.ParseRawJWT(signed)
		require.ErrorIs(t, err, service.ErrInvalidToken)
		require.Nil(t, claims)
	})

	t.Run("expired", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, service.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
			CompanyID: "company-1",
		})
		signed, err := token.SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = auth.ParseRawJWT(signed)
		require.Error(t, err)
	})
}
