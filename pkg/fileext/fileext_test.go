package fileext

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantReason Reason
		wantChar   rune
	}{
		{name: "single group", input: ".gz"},
		{name: "multiple groups", input: ".tar.gz"},
		{name: "unicode letters", input: ".tär"},
		{name: "digits", input: ".mp4"},
		{name: "missing leading dot", input: "tar.gz", wantReason: ReasonMissingLeadingDot, wantChar: 't'},
		{name: "consecutive dots", input: "..gz", wantReason: ReasonConsecutiveDots},
		{name: "consecutive dots in the middle", input: ".tar..gz", wantReason: ReasonConsecutiveDots},
		{name: "trailing dot", input: ".gz.", wantReason: ReasonTrailingDot},
		{name: "lone dot", input: ".", wantReason: ReasonTrailingDot},
		{name: "empty", input: "", wantReason: ReasonEmpty},
		{name: "symbol after dot", input: ".t-z", wantReason: ReasonNotAlphanumeric, wantChar: '-'},
		{name: "symbol right after dot", input: "./gz", wantReason: ReasonNotAlphanumeric, wantChar: '/'},
		{name: "space", input: ".g z", wantReason: ReasonNotAlphanumeric, wantChar: ' '},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, err := Parse(tt.input)
			if tt.wantReason == 0 {
				require.NoError(t, err)
				assert.Equal(t, tt.input, ext.String())
				return
			}

			var extErr *Error
			require.True(t, errors.As(err, &extErr), "expected *Error, got %v", err)
			assert.Equal(t, tt.wantReason, extErr.Reason)
			if tt.wantChar != 0 {
				assert.Equal(t, tt.wantChar, extErr.Char)
			}
			assert.Empty(t, ext)
		})
	}
}

func TestParseLengthBoundary(t *testing.T) {
	atLimit := "." + strings.Repeat("a", MaxLength-1)
	require.Len(t, atLimit, 32)
	_, err := Parse(atLimit)
	assert.NoError(t, err)

	overLimit := "." + strings.Repeat("a", MaxLength)
	require.Len(t, overLimit, 33)
	_, err = Parse(overLimit)

	var extErr *Error
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, ReasonTooLong, extErr.Reason)
	assert.Equal(t, 33, extErr.Length)
	assert.Contains(t, err.Error(), "33")
}

func TestErrorMessagesAreDistinct(t *testing.T) {
	inputs := []string{"tar", "..gz", ".gz.", "", ".a-b", "." + strings.Repeat("x", 40)}
	seen := make(map[string]bool)
	for _, in := range inputs {
		_, err := Parse(in)
		require.Error(t, err)
		assert.False(t, seen[err.Error()], "duplicate message %q", err.Error())
		seen[err.Error()] = true
	}
}
