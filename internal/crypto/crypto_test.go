package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	payload := []byte("the quick brown fox jumps over the lazy dog")

	sealed, err := Seal(payload, key)
	require.NoError(t, err)
	assert.NotEqual(t, payload, sealed)
	assert.Greater(t, len(sealed), len(payload), "sealed payload carries nonce and tag")

	opened, err := Open(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, payload, opened)
}

func TestSealProducesUniqueCiphertexts(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	payload := []byte("same payload")

	first, err := Seal(payload, key)
	require.NoError(t, err)
	second, err := Seal(payload, key)
	require.NoError(t, err)

	// Fresh nonce per seal
	assert.NotEqual(t, first, second)
}

func TestOpenWrongKeyFails(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	other, err := GenerateKey()
	require.NoError(t, err)

	sealed, err := Seal([]byte("secret"), key)
	require.NoError(t, err)

	_, err = Open(sealed, other)
	require.Error(t, err)
}

func TestOpenMalformedPayloadFails(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	tests := []struct {
		name   string
		sealed []byte
	}{
		{"empty", nil},
		{"shorter than nonce", []byte{0x01, 0x02, 0x03}},
		{"nonce only", bytes.Repeat([]byte{0xAA}, nonceSize)},
		{"corrupted tag", func() []byte {
			sealed, err := Seal([]byte("payload"), key)
			require.NoError(t, err)
			sealed[len(sealed)-1] ^= 0xFF
			return sealed
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.sealed, key)
			require.Error(t, err)
		})
	}
}

func TestSealRejectsBadKeySize(t *testing.T) {
	_, err := Seal([]byte("payload"), []byte("short"))
	require.Error(t, err)

	_, err = Open([]byte("whatever"), []byte("short"))
	require.Error(t, err)
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := []byte("fixed-salt-for-test")

	first := DeriveKey("passphrase", salt)
	second := DeriveKey("passphrase", salt)

	assert.Equal(t, first, second)
	assert.Len(t, first, KeySize)
}

func TestDeriveKeyVariesWithInputs(t *testing.T) {
	salt1 := []byte("salt-one")
	salt2 := []byte("salt-two")

	assert.NotEqual(t, DeriveKey("passphrase", salt1), DeriveKey("passphrase", salt2))
	assert.NotEqual(t, DeriveKey("passphrase", salt1), DeriveKey("other", salt1))
}

func TestGenerateSalt(t *testing.T) {
	first, err := GenerateSalt()
	require.NoError(t, err)
	second, err := GenerateSalt()
	require.NoError(t, err)

	assert.Len(t, first, saltSize)
	assert.NotEqual(t, first, second)
}
