package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeInput_SizeLimit(t *testing.T) {
	_, err := SanitizeInput(strings.Repeat("a", DefaultMaxInputSize))
	assert.NoError(t, err)

	_, err = SanitizeInput(strings.Repeat("a", DefaultMaxInputSize+1))
	assert.ErrorIs(t, err, ErrInputTooLarge)

	t.Setenv(EnvMaxInputSize, "8")
	_, err = SanitizeInput("123456789")
	assert.ErrorIs(t, err, ErrInputTooLarge)

	t.Setenv(EnvMaxInputSize, "bogus")
	_, err = SanitizeInput("123456789")
	assert.NoError(t, err)
}

func TestSanitizeInput_ControlChars(t *testing.T) {
	tests := []struct {
		name, input, want string
	}{
		{"plain", "Hello World", "Hello World"},
		{"safe controls", "Line1\nLine2\tTabbed\r", "Line1\nLine2\tTabbed\r"},
		{"ansi", "\x1b[31mRed\x1b[0m", "[31mRed[0m"},
		{"null", "Null\x00Byte", "NullByte"},
		{"bell", "Ding\x07", "Ding"},
		{"korean", "안녕하세요", "안녕하세요"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeInput(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeInput_InvalidUTF8(t *testing.T) {
	_, err := SanitizeInput("bad \xff byte")
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}
