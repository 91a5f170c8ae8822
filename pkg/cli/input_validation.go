// Package cli holds input checks shared by the command line and the local API
package cli

import (
	"fmt"
	"strings"
	"unicode"

	"cartsync/pkg/apperrors"
)

// MaxItemIDLength bounds item ids accepted from users
const MaxItemIDLength = 128

// ValidateItemID rejects ids that cannot be a catalog key: empty, overlong,
// or containing whitespace, control characters or path segments.
func ValidateItemID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", apperrors.ErrInvalidItemID)
	}
	if len(id) > MaxItemIDLength {
		return fmt.Errorf("%w: longer than %d bytes", apperrors.ErrInvalidItemID, MaxItemIDLength)
	}
	if strings.Contains(id, "/") || strings.Contains(id, "\\") || strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q contains a path segment", apperrors.ErrInvalidItemID, id)
	}
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains whitespace or control characters", apperrors.ErrInvalidItemID, id)
		}
	}
	return nil
}

// ValidateToken checks that token can travel in an Authorization header
func ValidateToken(token string) error {
	if token == "" {
		return fmt.Errorf("token is empty")
	}
	for _, r := range token {
		if r > unicode.MaxASCII || unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("token contains characters not allowed in a header")
		}
	}
	return nil
}
