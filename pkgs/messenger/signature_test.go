package messenger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func flipHexChar(sig string, i int) string {
	b := []byte(sig)
	if b[i] == 'a' {
		b[i] = 'b'
	} else {
		b[i] = 'a'
	}
	return string(b)
}

func TestSignatureVerifier_RoundTrip(t *testing.T) {
	bodies := [][]byte{
		[]byte(`{"object":"page"}`),
		[]byte(""),
		[]byte("\x00\xff binary"),
		[]byte(`{"entry":[{"messaging":[{"message":{"text":"héllo 🌳"}}]}]}`),
	}
	secrets := []string{"secret", "another secret", "s"}

	for _, secret := range secrets {
		v := NewSignatureVerifier(secret)
		for _, body := range bodies {
			sig := v.Sign(body)
			assert.NoError(t, v.Verify(body, sig))

			for _, i := range []int{len(signaturePrefix), len(sig) / 2, len(sig) - 1} {
				t.Run(fmt.Sprintf("%s/%d", secret, i), func(t *testing.T) {
					err := v.Verify(body, flipHexChar(sig, i))
					assert.True(t, errors.Is(err, ErrSignatureMismatch))
				})
			}
		}
	}
}

func TestSignatureVerifier_Missing(t *testing.T) {
	err := NewSignatureVerifier("secret").Verify([]byte("{}"), "")
	assert.True(t, errors.Is(err, ErrMissingSignature))
}

func TestSignatureVerifier_WrongSecret(t *testing.T) {
	body := []byte(`{"object":"page"}`)
	sig := NewSignatureVerifier("one").Sign(body)
	assert.Error(t, NewSignatureVerifier("two").Verify(body, sig))
}

func TestSignatureVerifier_Malformed(t *testing.T) {
	v := NewSignatureVerifier("secret")
	for _, header := range []string{"nonsense", "sha1=", "sha1=xyz", "md5=abcd"} {
		assert.True(t, errors.Is(v.Verify([]byte("{}"), header), ErrSignatureMismatch), header)
	}
}

func TestSignatureVerifier_UppercasePrefix(t *testing.T) {
	v := NewSignatureVerifier("secret")
	sig := v.Sign([]byte(`{"object":"page"}`))
	assert.Len(t, sig, len("sha1=")+40)
	assert.NoError(t, v.Verify([]byte(`{"object":"page"}`), "SHA1="+sig[len("sha1="):]))
}
