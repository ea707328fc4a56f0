package authflow

import (
	"encoding/json"
	"errors"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// SignUpPayload holds the registration form. Identifier fields other than
// email are read from Fields. When decoding JSON, top level keys that are
// not payload fields are collected into Fields.
type SignUpPayload struct {
	Email           string         `json:"email" form:"email"`
	Password        string         `json:"password" form:"password"`
	ConfirmPassword string         `json:"confirmPassword" form:"confirmPassword"`
	FirstName       string         `json:"firstName,omitempty" form:"firstName"`
	LastName        string         `json:"lastName,omitempty" form:"lastName"`
	Image           string         `json:"image,omitempty" form:"image"`
	Fields          map[string]any `json:"fields,omitempty" form:"-"`
}

// IdentifierValue returns the submitted value for the identifier field
func (p SignUpPayload) IdentifierValue(field string) string {
	if field == "" || field == "email" {
		return p.Email
	}
	return fieldString(p.Fields, field)
}

// UnmarshalJSON decodes the payload, moving unknown keys into Fields
func (p *SignUpPayload) UnmarshalJSON(data []byte) error {
	type plain SignUpPayload
	var out plain
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}

	fields, err := collectFields(data, out.Fields, "email", "password", "confirmPassword", "firstName", "lastName", "image")
	if err != nil {
		return err
	}
	out.Fields = fields

	*p = SignUpPayload(out)
	return nil
}

// SignInPayload holds the login form. Unknown JSON keys land in Fields.
type SignInPayload struct {
	Email    string         `json:"email" form:"email"`
	Password string         `json:"password" form:"password"`
	Fields   map[string]any `json:"fields,omitempty" form:"-"`
}

// IdentifierValue returns the submitted value for the identifier field
func (p SignInPayload) IdentifierValue(field string) string {
	if field == "" || field == "email" {
		return p.Email
	}
	return fieldString(p.Fields, field)
}

// UnmarshalJSON decodes the payload, moving unknown keys into Fields
func (p *SignInPayload) UnmarshalJSON(data []byte) error {
	type plain SignInPayload
	var out plain
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}

	fields, err := collectFields(data, out.Fields, "email", "password")
	if err != nil {
		return err
	}
	out.Fields = fields

	*p = SignInPayload(out)
	return nil
}

// collectFields merges top level keys of data that are not in known into
// fields. Values nested under "fields" win over top level ones.
func collectFields(data []byte, fields map[string]any, known ...string) (map[string]any, error) {
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	delete(raw, "fields")
	for _, k := range known {
		delete(raw, k)
	}

	for k, v := range raw {
		if _, ok := fields[k]; ok {
			continue
		}
		if fields == nil {
			fields = make(map[string]any, len(raw))
		}
		fields[k] = v
	}
	return fields, nil
}

// SignUpSchema validates a registration payload. Any error rejects the
// payload with KindInvalidCredentials.
type SignUpSchema func(identifier string, p SignUpPayload) error

// SignInSchema validates a login payload
type SignInSchema func(identifier string, p SignInPayload) error

var (
	hasUpper = regexp.MustCompile(`[A-Z]`)
	hasLower = regexp.MustCompile(`[a-z]`)
	hasDigit = regexp.MustCompile(`[0-9]`)
)

// PasswordRules are the default strength rules for new passwords
func PasswordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(8, 0).Error("password must be at least 8 characters"),
		validation.Match(hasUpper).Error("password must contain an uppercase letter"),
		validation.Match(hasLower).Error("password must contain a lowercase letter"),
		validation.Match(hasDigit).Error("password must contain a number"),
	}
}

// DefaultSignUpSchema requires a valid identifier, a strong password and a
// matching confirmation.
func DefaultSignUpSchema(identifier string, p SignUpPayload) error {
	if err := validateIdentifier(identifier, p.Email, p.IdentifierValue(identifier)); err != nil {
		return err
	}

	return validation.ValidateStruct(&p,
		validation.Field(&p.Password, PasswordRules()...),
		validation.Field(
			&p.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(p.Password)),
		),
	)
}

// DefaultSignInSchema requires an identifier and a password
func DefaultSignInSchema(identifier string, p SignInPayload) error {
	if err := validateIdentifier(identifier, p.Email, p.IdentifierValue(identifier)); err != nil {
		return err
	}

	return validation.ValidateStruct(&p,
		validation.Field(&p.Password, validation.Required),
	)
}

func validateIdentifier(identifier, email, value string) error {
	if identifier == "" || identifier == "email" {
		return validation.Errors{
			"email": validation.Validate(email, validation.Required, is.Email),
		}.Filter()
	}
	return validation.Errors{
		identifier: validation.Validate(value, validation.Required),
	}.Filter()
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}
