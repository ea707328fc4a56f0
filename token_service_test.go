package authflow_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	authflow "github.com/goliatone/go-auth-flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewTokenCodec(t *testing.T) {
	codec, err := authflow.NewTokenCodec([]byte("secret"))
	require.NoError(t, err)
	assert.NotNil(t, codec)

	codec, err = authflow.NewTokenCodec(nil)
	assert.ErrorIs(t, err, authflow.ErrEmptySecret)
	assert.Nil(t, codec)
}

func TestTokenCodec_RoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	codec, err := authflow.NewTokenCodec([]byte("round-trip-secret"), authflow.WithCodecClock(fixedClock(now)))
	require.NoError(t, err)

	claims := authflow.Claims{
		Identifier: "user@example.com",
		Email:      "user@example.com",
		FirstName:  "Ada",
	}
	claims.Set("role", "admin")

	token, err := codec.Encode(claims, time.Hour)
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	decoded, err := codec.Decode(token)
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", decoded.Identifier)
	assert.Equal(t, "Ada", decoded.FirstName)
	assert.Equal(t, authflow.TokenIssuer, decoded.Issuer)
	assert.Equal(t, now.Unix(), decoded.Issued().Unix())
	assert.Equal(t, now.Add(time.Hour).Unix(), decoded.Expires().Unix())
	assert.Empty(t, decoded.ID)

	role, ok := decoded.Get("role")
	assert.True(t, ok)
	assert.Equal(t, "admin", role)
}

func TestTokenCodec_ExtraClaimsAreJSONTyped(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	codec, err := authflow.NewTokenCodec([]byte("extra-secret"), authflow.WithCodecClock(fixedClock(now)))
	require.NoError(t, err)

	claims := authflow.Claims{Identifier: "user@example.com"}
	claims.Set("n", 1).Set("tags", []string{"a", "b"})

	token, err := codec.Encode(claims, time.Hour)
	require.NoError(t, err)

	decoded, err := codec.Decode(token)
	require.NoError(t, err)

	n, _ := decoded.Get("n")
	assert.Equal(t, float64(1), n)

	tags, _ := decoded.Get("tags")
	assert.Equal(t, []any{"a", "b"}, tags)
}

func TestTokenCodec_EncodeOverridesRegisteredClaims(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	codec, err := authflow.NewTokenCodec([]byte("k"), authflow.WithCodecClock(fixedClock(now)))
	require.NoError(t, err)

	claims := authflow.Claims{Identifier: "x"}
	claims.Issuer = "someone-else"
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Hour))

	token, err := codec.Encode(claims, time.Minute)
	require.NoError(t, err)

	decoded, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, authflow.TokenIssuer, decoded.Issuer)
	assert.Equal(t, now.Add(time.Minute).Unix(), decoded.Expires().Unix())
	assert.Equal(t, "someone-else", claims.Issuer, "input claims must not be mutated")
}

func TestTokenCodec_Expired(t *testing.T) {
	issued := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	signer, err := authflow.NewTokenCodec([]byte("k"), authflow.WithCodecClock(fixedClock(issued)))
	require.NoError(t, err)

	token, err := signer.Encode(authflow.Claims{Identifier: "x"}, time.Minute)
	require.NoError(t, err)

	later, err := authflow.NewTokenCodec([]byte("k"), authflow.WithCodecClock(fixedClock(issued.Add(2*time.Minute))))
	require.NoError(t, err)

	_, err = later.Decode(token)
	assert.ErrorIs(t, err, authflow.ErrTokenExpired)
	assert.Equal(t, authflow.KindTokenExpired, authflow.KindOf(err))
}

func TestTokenCodec_Invalid(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	codec, err := authflow.NewTokenCodec([]byte("right"), authflow.WithCodecClock(fixedClock(now)))
	require.NoError(t, err)

	other, err := authflow.NewTokenCodec([]byte("wrong"), authflow.WithCodecClock(fixedClock(now)))
	require.NoError(t, err)

	good, err := codec.Encode(authflow.Claims{Identifier: "x"}, time.Hour)
	require.NoError(t, err)

	foreign, err := other.Encode(authflow.Claims{Identifier: "x"}, time.Hour)
	require.NoError(t, err)

	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	wrongIssuer := jwt.NewWithClaims(jwt.SigningMethodHS256, &authflow.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "SomeoneElse",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	wrongIssuerToken, err := wrongIssuer.SignedString([]byte("right"))
	require.NoError(t, err)

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, &authflow.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: authflow.TokenIssuer},
	})
	noExpiryToken, err := noExpiry.SignedString([]byte("right"))
	require.NoError(t, err)

	otherAlg := jwt.NewWithClaims(jwt.SigningMethodHS512, &authflow.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    authflow.TokenIssuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	otherAlgToken, err := otherAlg.SignedString([]byte("right"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "Empty", token: ""},
		{name: "Garbage", token: "not-a-token"},
		{name: "Wrong secret", token: foreign},
		{name: "Tampered payload", token: tampered},
		{name: "Wrong issuer", token: wrongIssuerToken},
		{name: "Missing expiration", token: noExpiryToken},
		{name: "Unexpected algorithm", token: otherAlgToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := codec.Decode(tt.token)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, authflow.ErrTokenInvalid)
		})
	}
}

func TestTokenCodec_ExpiredWithBadSignatureIsInvalid(t *testing.T) {
	issued := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	signer, err := authflow.NewTokenCodec([]byte("a"), authflow.WithCodecClock(fixedClock(issued)))
	require.NoError(t, err)

	token, err := signer.Encode(authflow.Claims{Identifier: "x"}, time.Minute)
	require.NoError(t, err)

	verifier, err := authflow.NewTokenCodec([]byte("b"), authflow.WithCodecClock(fixedClock(issued.Add(time.Hour))))
	require.NoError(t, err)

	_, err = verifier.Decode(token)
	assert.ErrorIs(t, err, authflow.ErrTokenInvalid)
}

func TestEncodeDecodeHelpers(t *testing.T) {
	token, err := authflow.Encode(authflow.Claims{Identifier: "42"}, []byte("s"), time.Hour)
	require.NoError(t, err)

	claims, err := authflow.Decode(token, []byte("s"))
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Identifier)

	_, err = authflow.Decode(token, []byte("t"))
	assert.ErrorIs(t, err, authflow.ErrTokenInvalid)

	_, err = authflow.Encode(authflow.Claims{}, nil, time.Hour)
	assert.ErrorIs(t, err, authflow.ErrEmptySecret)
}
