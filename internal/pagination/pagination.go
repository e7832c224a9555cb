// Package pagination provides utilities around page tokens.
package pagination

import (
	"encoding/base64"
	"encoding/json"
)

var tokenEncoding = base64.RawURLEncoding

// Validator is implemented by token payloads that can check their own
// contents after decoding.
type Validator interface {
	Validate() error
}

// TokenError is an opaque error related to pagination tokens. The error message
// does not reveal internal details; use [errors.Unwrap] to access the cause.
type TokenError struct {
	cause error
}

// Error satisfies [error].
func (terr TokenError) Error() string {
	return "invalid pagination token"
}

// Unwrap returns the underlying cause of the token error.
func (terr TokenError) Unwrap() error {
	return terr.cause
}

// FromToken decodes an opaque pagination token into the provided payload,
// which must be a pointer. Returns a [TokenError] if decoding or validation
// fails.
func FromToken(tkn string, out Validator) error {
	data, err := tokenEncoding.DecodeString(tkn)
	if err != nil {
		return TokenError{cause: err}
	}
	if err = json.Unmarshal(data, out); err != nil {
		return TokenError{cause: err}
	}
	if err = out.Validate(); err != nil {
		return TokenError{cause: err}
	}
	return nil
}

// ToToken encodes a payload into an opaque pagination token. Returns a
// [TokenError] if validation or encoding fails.
func ToToken(payload Validator) (string, error) {
	if err := payload.Validate(); err != nil {
		return "", TokenError{cause: err}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", TokenError{cause: err}
	}
	return tokenEncoding.EncodeToString(data), nil
}

// Clamp bounds a requested page size to (0, maxSize], substituting
// defaultSize for non-positive requests.
func Clamp(requested, defaultSize, maxSize int32) int32 {
	switch {
	case requested <= 0:
		return defaultSize
	case requested > maxSize:
		return maxSize
	default:
		return requested
	}
}
