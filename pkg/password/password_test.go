package password

import (
	"bytes"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLengthAndAlphabet(t *testing.T) {
	got, err := Generate(rand.Reader)
	require.NoError(t, err)
	assert.Len(t, got, Length)
	for _, c := range got {
		assert.True(t, strings.ContainsRune(Charset, c), "character %q outside charset", c)
	}
}

func TestGenerateDeterministicSource(t *testing.T) {
	// Bytes below the rejection limit map directly onto the charset.
	src := bytes.NewReader([]byte{0, 1, 2, 3, 4, 5, 6, 7})
	got, err := Generate(src)
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGH", got)
}

func TestGenerateSkipsBiasedBytes(t *testing.T) {
	// 255 is above the largest multiple of len(Charset) and must be skipped.
	src := bytes.NewReader([]byte{255, 0, 1, 2, 3, 4, 5, 6, 7})
	got, err := Generate(src)
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGH", got)
}

func TestGenerateExhaustedSource(t *testing.T) {
	src := bytes.NewReader([]byte{0, 1})
	_, err := Generate(src)
	require.Error(t, err)
}
