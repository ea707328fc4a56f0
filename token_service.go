package authflow

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenIssuer is bound into every token and required on verification
const TokenIssuer = "AuthFlow"

// ErrEmptySecret is returned when a codec is used without key material
var ErrEmptySecret = goerrors.New("token secret must not be empty", goerrors.CategoryInternal)

// TokenCodec signs and verifies session tokens. It holds no mutable state
// and is safe for concurrent use.
type TokenCodec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// CodecOption configures a TokenCodec
type CodecOption func(*TokenCodec)

// WithCodecClock overrides the time source used for iat, exp and expiry checks
func WithCodecClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewTokenCodec creates a codec bound to secret
func NewTokenCodec(secret []byte, opts ...CodecOption) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	key := make([]byte, len(secret))
	copy(key, secret)

	c := &TokenCodec{
		secret: key,
		issuer: TokenIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Encode signs claims with the given secret, expiring maxAge from now.
func Encode(claims Claims, secret []byte, maxAge time.Duration) (string, error) {
	c, err := NewTokenCodec(secret)
	if err != nil {
		return "", err
	}
	return c.Encode(claims, maxAge)
}

// Decode verifies token against secret and returns its claims.
func Decode(token string, secret []byte) (*Claims, error) {
	c, err := NewTokenCodec(secret)
	if err != nil {
		return nil, err
	}
	return c.Decode(token)
}

// Encode signs claims, setting issued-at, expiration and issuer. Registered
// claims already present on the input are overwritten.
func (c *TokenCodec) Encode(claims Claims, maxAge time.Duration) (string, error) {
	now := c.now()

	signed := claims.clone()
	signed.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    c.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(maxAge)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &signed)

	out, err := token.SignedString(c.secret)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}
	return out, nil
}

// Decode verifies the signature, issuer and expiration of raw.
//
// Signature, payload and issuer failures return ErrTokenInvalid, an elapsed
// expiration returns ErrTokenExpired. Anything else is wrapped as an
// internal error.
func (c *TokenCodec) Decode(raw string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	if err != nil {
		return nil, classifyTokenError(err)
	}

	return claims, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ErrTokenInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return goerrors.Wrap(err, goerrors.CategoryInternal, "token verification failed")
	}
}
