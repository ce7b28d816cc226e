package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/classroom/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestNewIDClaims(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()

	c := jwtx.NewIDClaims(jwtx.IDClaimsParams{
		Issuer:   "https://securetoken.example.com/demo",
		Audience: "demo",
		Subject:  "uid-1",
		Email:    "ada@example.com",
		Name:     "Ada",
		SignIn:   "password",
		Now:      now,
	})

	require.Equal(t, "uid-1", c.UID())
	require.Equal(t, "uid-1", c.UserID)
	require.Equal(t, now.Add(jwtx.DefaultIDTokenTTL), c.Expiry())
	require.Equal(t, "password", c.SignInProvider())
	require.Equal(t, jwt.ClaimStrings{"demo"}, c.Audience)
}

func TestClaimsAccessors(t *testing.T) {
	t.Run("uid falls back to user_id", func(t *testing.T) {
		c := jwtx.Claims{UserID: "legacy"}
		require.Equal(t, "legacy", c.UID())
	})

	t.Run("no exp", func(t *testing.T) {
		c := jwtx.Claims{}
		require.True(t, c.Expiry().IsZero())
		require.NoError(t, c.ValidateExpiry(time.Now()))
		require.Empty(t, c.SignInProvider())
	})
}

func TestValidateExpiry(t *testing.T) {
	now := time.Now().UTC()

	t.Run("valid token", func(t *testing.T) {
		c := &jwtx.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			},
		}
		require.NoError(t, c.ValidateExpiry(now))
	})

	t.Run("expired token", func(t *testing.T) {
		c := &jwtx.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
			},
		}
		require.ErrorIs(t, c.ValidateExpiry(now), jwtx.ErrExpired)
	})
}

func TestSignAndDecode(t *testing.T) {
	signer, err := jwtx.NewSignerHS256([]byte("test-secret"))
	require.NoError(t, err)
	require.Equal(t, "HS256", signer.Alg())

	now := time.Now().Truncate(time.Second)
	token, err := signer.Sign(jwtx.NewIDClaims(jwtx.IDClaimsParams{
		Subject:       "uid-2",
		Email:         "grace@example.com",
		EmailVerified: true,
		SignIn:        "google.com",
		TTL:           10 * time.Minute,
		Now:           now,
	}))
	require.NoError(t, err)

	claims, err := jwtx.Decode(token)
	require.NoError(t, err)
	require.Equal(t, "uid-2", claims.UID())
	require.Equal(t, "grace@example.com", claims.Email)
	require.True(t, claims.EmailVerified)
	require.Equal(t, "google.com", claims.SignInProvider())
	require.True(t, claims.Expiry().Equal(now.Add(10*time.Minute)))
}

func TestDecodeExpiredStillReadable(t *testing.T) {
	signer, err := jwtx.NewSignerHS256([]byte("k"))
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	token, err := signer.Sign(jwtx.NewIDClaims(jwtx.IDClaimsParams{Subject: "old", Now: past}))
	require.NoError(t, err)

	// Decode never validates, expiry is the caller's call.
	claims, err := jwtx.Decode(token)
	require.NoError(t, err)
	require.ErrorIs(t, claims.ValidateExpiry(time.Now()), jwtx.ErrExpired)
}

func TestDecodeMalformed(t *testing.T) {
	for _, tok := range []string{"", "not-a-jwt", "a.b"} {
		_, err := jwtx.Decode(tok)
		require.ErrorIs(t, err, jwtx.ErrMalformed, "token %q", tok)
	}
}

func TestNewSignerHS256RejectsEmptyKey(t *testing.T) {
	_, err := jwtx.NewSignerHS256(nil)
	require.Error(t, err)
}
