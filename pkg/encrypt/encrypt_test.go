package encrypt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	_, err := HashPassword("12345")
	assert.ErrorIs(t, err, ErrWeakPassword)

	hashed, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hashed)

	assert.NoError(t, CheckPassword(hashed, "secret1"))
	assert.ErrorIs(t, CheckPassword(hashed, "secret2"), ErrPasswordMismatch)
}
