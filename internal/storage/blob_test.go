package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeBlob_Unencrypted(t *testing.T) {
	plaintext := []byte(`{"hello":"world"}`)

	blob, err := EncodeBlob(plaintext, "")
	require.NoError(t, err)

	encrypted, err := IsEncrypted(blob)
	require.NoError(t, err)
	assert.False(t, encrypted)

	decoded, err := DecodeBlob(blob, "")
	require.NoError(t, err)
	assert.Equal(t, plaintext, decoded)
}

func TestEncodeDecodeBlob_Encrypted(t *testing.T) {
	plaintext := []byte(`{"secret":true}`)

	blob, err := EncodeBlob(plaintext, "correct-horse")
	require.NoError(t, err)

	encrypted, err := IsEncrypted(blob)
	require.NoError(t, err)
	assert.True(t, encrypted)

	decoded, err := DecodeBlob(blob, "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, plaintext, decoded)
}

func TestDecodeBlob_Encrypted_WrongPassphrase(t *testing.T) {
	blob, err := EncodeBlob([]byte("data"), "correct-horse")
	require.NoError(t, err)

	_, err = DecodeBlob(blob, "wrong-passphrase")
	assert.Error(t, err)
}

func TestDecodeBlob_Encrypted_NoPassphrase(t *testing.T) {
	blob, err := EncodeBlob([]byte("data"), "correct-horse")
	require.NoError(t, err)

	_, err = DecodeBlob(blob, "")
	assert.ErrorIs(t, err, ErrPassphraseRequired)
}

func TestDecodeBlob_BadMagic(t *testing.T) {
	_, err := DecodeBlob([]byte("not a blob at all, too short"), "")
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestDecodeBlob_UnsupportedVersion(t *testing.T) {
	blob, err := EncodeBlob([]byte("data"), "")
	require.NoError(t, err)
	blob[4], blob[5] = 0xFF, 0xFF // corrupt the version field

	_, err = DecodeBlob(blob, "")
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}
