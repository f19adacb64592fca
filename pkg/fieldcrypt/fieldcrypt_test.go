package fieldcrypt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsBadKeyLength(t *testing.T) {
	_, err := New([]byte("short"))
	require.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	c, err := New(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)

	for _, plain := range []string{"Netflix", "Acme Corp (HK)", "日本語テキスト", "a"} {
		enc, err := c.EncryptString(plain)
		require.NoError(t, err)
		assert.NotEqual(t, plain, enc)

		dec, err := c.DecryptString(enc)
		require.NoError(t, err)
		assert.Equal(t, plain, dec)
	}
}

func TestEmptyValuePassesThrough(t *testing.T) {
	c, err := New(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)

	enc, err := c.EncryptString("")
	require.NoError(t, err)
	assert.Equal(t, "", enc)

	dec, err := c.DecryptString("")
	require.NoError(t, err)
	assert.Equal(t, "", dec)
}

func TestDecrypt_GarbageFails(t *testing.T) {
	c, err := New(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)

	_, err = c.DecryptString("not-base64!!")
	assert.Error(t, err)

	_, err = c.DecryptString("YWJj") // valid base64, too short for a nonce
	assert.Error(t, err)
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	c1, err := New(bytes.Repeat([]byte{0x01}, 32))
	require.NoError(t, err)
	c2, err := New(bytes.Repeat([]byte{0x02}, 32))
	require.NoError(t, err)

	enc, err := c1.EncryptString("secret plan name")
	require.NoError(t, err)
	_, err = c2.DecryptString(enc)
	assert.Error(t, err)
}
