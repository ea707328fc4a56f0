package authflow

import (
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload signed into a session token. Profile fields mirror
// the user record for convenience; Extra carries host additions made from
// the JWT callback. Extra goes through JSON, so after Decode numbers come
// back as float64 and structs as map[string]any.
type Claims struct {
	jwt.RegisteredClaims
	Identifier string         `json:"_identifier"`
	Email      string         `json:"email,omitempty"`
	FirstName  string         `json:"firstName,omitempty"`
	LastName   string         `json:"lastName,omitempty"`
	Image      string         `json:"image,omitempty"`
	Extra      map[string]any `json:"ext,omitempty"`
}

// Set stores a custom claim under key. The value must be JSON encodable;
// its Go type is not preserved across Encode and Decode.
func (c *Claims) Set(key string, val any) *Claims {
	if c.Extra == nil {
		c.Extra = make(map[string]any)
	}
	c.Extra[key] = val
	return c
}

// Get returns a custom claim
func (c *Claims) Get(key string) (any, bool) {
	if c.Extra == nil {
		return nil, false
	}
	v, ok := c.Extra[key]
	return v, ok
}

// Expires returns the expiration time
func (c *Claims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// Issued returns the issued at time
func (c *Claims) Issued() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

func (c Claims) clone() Claims {
	out := c
	out.Extra = maps.Clone(c.Extra)
	return out
}

func claimsForUser(user *User, identifier string) Claims {
	return Claims{
		Identifier: user.IdentifierValue(identifier),
		Email:      user.Email,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Image:      user.Image,
	}
}
