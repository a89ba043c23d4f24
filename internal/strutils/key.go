package strutils

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Amund211/memocache/internal/domain"
)

const VALID_KEY_PUNCTUATION = "._:-"

const MAX_KEY_LENGTH = 128

// Trims surrounding whitespace and converts all characters to lowercase
func NormalizeKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)

	var normalized strings.Builder
	normalized.Grow(len(trimmed))

	for _, char := range trimmed {
		switch {
		case char >= 'a' && char <= 'z', char >= '0' && char <= '9':
			normalized.WriteRune(char)
		case char >= 'A' && char <= 'Z':
			normalized.WriteRune(unicode.ToLower(char))
		case strings.ContainsRune(VALID_KEY_PUNCTUATION, char):
			normalized.WriteRune(char)
		default:
			return "", fmt.Errorf("%w: invalid character in key. input: '%s'", domain.ErrInvalidKey, key)
		}
	}

	if normalized.Len() == 0 {
		return "", fmt.Errorf("%w: key is empty", domain.ErrInvalidKey)
	}
	if normalized.Len() > MAX_KEY_LENGTH {
		return "", fmt.Errorf("%w: key is longer than %d characters", domain.ErrInvalidKey, MAX_KEY_LENGTH)
	}

	return normalized.String(), nil
}

func KeyIsNormalized(key string) bool {
	normalized, err := NormalizeKey(key)
	if err != nil {
		return false
	}
	return normalized == key
}
