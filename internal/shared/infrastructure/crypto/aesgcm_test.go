package crypto

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAESGCM_RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 32)
	g, err := NewAESGCMFromBase64Key(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)

	sealed, err := g.Seal([]byte(`{"token":"abc"}`))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "abc")

	again, err := g.Seal([]byte(`{"token":"abc"}`))
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce is random")

	plain, err := g.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"token":"abc"}`, string(plain))
}

func TestAESGCM_RejectsTampering(t *testing.T) {
	g, err := NewAESGCM(bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)

	sealed, err := g.Seal([]byte("secret"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = g.Open(sealed)
	assert.Error(t, err)

	_, err = g.Open([]byte{1, 2})
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestAESGCM_KeyValidation(t *testing.T) {
	_, err := NewAESGCM([]byte("short"))
	assert.Error(t, err)

	_, err = NewAESGCMFromBase64Key("")
	assert.Error(t, err)

	_, err = NewAESGCMFromBase64Key("!!!")
	assert.Error(t, err)

	_, err = NewAESGCMFromPassphrase("", []byte("salt"))
	assert.Error(t, err)
}

func TestAESGCM_PassphraseIsDeterministic(t *testing.T) {
	salt := []byte("caravan-session")
	a, err := NewAESGCMFromPassphrase("hunter2", salt)
	require.NoError(t, err)
	b, err := NewAESGCMFromPassphrase("hunter2", salt)
	require.NoError(t, err)
	c, err := NewAESGCMFromPassphrase("other", salt)
	require.NoError(t, err)

	sealed, err := a.Seal([]byte("x"))
	require.NoError(t, err)

	plain, err := b.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "x", string(plain))

	_, err = c.Open(sealed)
	assert.Error(t, err)
}
