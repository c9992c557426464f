package auth

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kartikgopal01/coedit/internal/domain"
	"github.com/stretchr/testify/require"
)

func seg(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

func TestCallerID(t *testing.T) {
	_, err := CallerID(context.Background())
	require.ErrorIs(t, err, domain.ErrUnauthenticated)

	id, err := CallerID(WithCallerID(context.Background(), "u1"))
	require.NoError(t, err)
	require.Equal(t, "u1", id)

	_, err = CallerID(WithCallerID(context.Background(), ""))
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestIssueAndVerify(t *testing.T) {
	secret := "test-secret-32-bytes-should-be-long-enough"
	tok, err := IssueToken(secret, "user-123", "Test User", 2*time.Minute)
	require.NoError(t, err)

	v, err := NewHMACVerifier(secret)
	require.NoError(t, err)
	got, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)

	var claims map[string]interface{}
	require.NoError(t, got.Claims(&claims))
	require.Equal(t, "user-123", Subject(claims))
	require.Equal(t, "Test User", claims["name"])
}

func TestVerifyRejects(t *testing.T) {
	secret := "secret-one-32-bytes-xxxxxxxxxxxxxxxx"
	v, err := NewHMACVerifier(secret)
	require.NoError(t, err)
	ctx := context.Background()

	// wrong secret
	other, err := IssueToken("different-secret-xxxxxxxxxxxxxxxx", "u3", "Bob", time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(ctx, other)
	require.Error(t, err)

	// expired
	expired, err := IssueToken(secret, "u3", "Bob", -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(ctx, expired)
	require.Error(t, err)

	// alg=none
	none := seg(`{"alg":"none"}`) + "." + seg(`{"sub":"u","exp":9999999999}`) + "."
	_, err = v.Verify(ctx, none)
	require.Error(t, err)

	// missing exp
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u"}).SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = v.Verify(ctx, noExp)
	require.Error(t, err)

	// missing sub
	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Minute).Unix()}).SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = v.Verify(ctx, noSub)
	require.Error(t, err)

	// tampered payload
	tok, err := IssueToken(secret, "user-t", "Tamper", time.Minute)
	require.NoError(t, err)
	parts := strings.Split(tok, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	parts[1] = seg(strings.Replace(string(payload), "user-t", "attacker", 1))
	_, err = v.Verify(ctx, strings.Join(parts, "."))
	require.Error(t, err)
}

func TestIssueTokenNeedsSecretAndSubject(t *testing.T) {
	_, err := IssueToken("", "u", "", time.Minute)
	require.Error(t, err)
	_, err = IssueToken("s", "", "", time.Minute)
	require.Error(t, err)
	_, err = NewHMACVerifier("")
	require.Error(t, err)
}

func TestKeycloakIssuer(t *testing.T) {
	require.Equal(t, "http://kc:8080/realms/coedit", KeycloakIssuer("http://kc:8080/", "coedit"))
}
