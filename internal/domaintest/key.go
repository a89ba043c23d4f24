package domaintest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// NewKey returns a random normalized key
func NewKey(t *testing.T) string {
	id, err := uuid.NewRandom()
	require.NoError(t, err)
	return "key-" + id.String()
}
