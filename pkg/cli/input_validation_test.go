package cli

import (
	"strings"
	"testing"

	"cartsync/pkg/apperrors"

	"github.com/stretchr/testify/assert"
)

func TestValidateItemID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"object id", "64b7f0c2e4b0a1a2b3c4d5e6", false},
		{"short id", "a", false},
		{"dashes and dots", "item-1.v2", false},
		{"empty", "", true},
		{"whitespace", "item 1", true},
		{"newline", "item\n", true},
		{"path traversal", "../etc/passwd", true},
		{"slash", "a/b", true},
		{"too long", strings.Repeat("x", MaxItemIDLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateItemID(tt.input)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, apperrors.ErrInvalidItemID)
		})
	}
}

func TestValidateToken(t *testing.T) {
	assert.NoError(t, ValidateToken("eyJhbGciOiJIUzI1NiJ9.e30.sig"))
	assert.Error(t, ValidateToken(""))
	assert.Error(t, ValidateToken("two words"))
	assert.Error(t, ValidateToken("tok\r\nX-Evil: 1"))
	assert.Error(t, ValidateToken("jeton-é"))
}
