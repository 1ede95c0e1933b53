package identity

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rdemo143/RenTO/internal/domain"
)

const testSecret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, c jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, c).SignedString(key)
	require.NoError(t, err)
	return tok
}

func TestVerifier_Verify(t *testing.T) {
	v := NewVerifier(testSecret, "rento-auth", "rento-app")
	exp := time.Now().Add(time.Hour).Unix()

	t.Run("valid subject", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
			"sub": "u1", "role": "tenant", "iss": "rento-auth", "aud": "rento-app", "exp": exp,
		})
		id, err := v.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, domain.Identity{UserID: "u1", Role: "tenant"}, id)
	})

	t.Run("legacy id claim", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
			"id": "u2", "iss": "rento-auth", "aud": "rento-app", "exp": exp,
		})
		id, err := v.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, "u2", id.UserID)
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{
			"sub": "u1", "iss": "rento-auth", "aud": "rento-app", "exp": exp,
		})
		_, err := v.Verify(tok)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("wrong audience", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
			"sub": "u1", "iss": "rento-auth", "aud": "someone-else", "exp": exp,
		})
		_, err := v.Verify(tok)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
			"sub": "u1", "iss": "rento-auth", "aud": "rento-app", "exp": time.Now().Add(-time.Minute).Unix(),
		})
		_, err := v.Verify(tok)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("none algorithm rejected", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{
			"sub": "u1", "iss": "rento-auth", "aud": "rento-app", "exp": exp,
		})
		_, err := v.Verify(tok)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := v.Verify("")
		assert.ErrorIs(t, err, domain.ErrMissingToken)
	})
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=q", nil)
	assert.Equal(t, "q", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer h")
	assert.Equal(t, "h", TokenFromRequest(r))

	r.Header.Set("Authorization", "Basic xyz")
	assert.Equal(t, "", TokenFromRequest(r))
}
