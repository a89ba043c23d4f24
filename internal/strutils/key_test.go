package strutils_test

import (
	"strings"
	"testing"

	"github.com/Amund211/memocache/internal/domain"
	"github.com/Amund211/memocache/internal/strutils"
	"github.com/stretchr/testify/require"
)

const INVALID_CHARACTER = "invalid character in key"
const EMPTY = "key is empty"
const TOO_LONG = "key is longer than"

func TestNormalizeKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input          string
		expected       string
		errorSubstring string
	}{
		{
			input:    "user:1234",
			expected: "user:1234",
		},
		{
			// Uppercase is lowered
			input:    "User:ABC",
			expected: "user:abc",
		},
		{
			// Surrounding whitespace is trimmed
			input:    "  report.2024-01_final \n",
			expected: "report.2024-01_final",
		},
		{
			input:    strings.Repeat("a", 128),
			expected: strings.Repeat("a", 128),
		},
		{
			input:          "",
			errorSubstring: EMPTY,
		},
		{
			input:          "   ",
			errorSubstring: EMPTY,
		},
		{
			input:          strings.Repeat("a", 129),
			errorSubstring: TOO_LONG,
		},
		{
			input:          "with space",
			errorSubstring: INVALID_CHARACTER,
		},
		{
			input:          "path/traversal",
			errorSubstring: INVALID_CHARACTER,
		},
		{
			input:          "query?x=1",
			errorSubstring: INVALID_CHARACTER,
		},
		{
			input:          "ünïcode",
			errorSubstring: INVALID_CHARACTER,
		},
	}

	for _, c := range cases {
		t.Run(c.input, func(t *testing.T) {
			t.Parallel()

			result, err := strutils.NormalizeKey(c.input)

			if c.errorSubstring != "" {
				require.ErrorIs(t, err, domain.ErrInvalidKey)
				require.ErrorContains(t, err, c.errorSubstring)
				require.False(t, strutils.KeyIsNormalized(c.input))
				return
			}

			require.NoError(t, err)
			require.Equal(t, c.expected, result)
			require.True(t, strutils.KeyIsNormalized(result))
			require.Equal(t, c.input == c.expected, strutils.KeyIsNormalized(c.input))
		})
	}
}
