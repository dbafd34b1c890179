package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCheck(t *testing.T) {
	t.Parallel()
	h, err := HashPassword("secret123", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", h)
	assert.True(t, CheckPassword(h, "secret123"))
	assert.False(t, CheckPassword(h, "secret124"))
	assert.False(t, CheckPassword("not-a-hash", "secret123"))
}
