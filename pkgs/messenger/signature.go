package messenger

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/juju/errors"
)

const (
	// SignatureHeader is set by the platform on every event delivery.
	SignatureHeader = "X-Hub-Signature"
	signaturePrefix = "sha1="
)

var (
	ErrMissingSignature  = errors.New("missing " + SignatureHeader + " header")
	ErrSignatureMismatch = errors.New("couldn't validate the request signature")
)

// SignatureVerifier checks the HMAC-SHA1 the platform computes over the raw body
// with the app secret.
type SignatureVerifier struct {
	secret []byte
}

func NewSignatureVerifier(appSecret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(appSecret)}
}

// Sign returns the header value the platform would send for body.
func (v *SignatureVerifier) Sign(body []byte) string {
	return signaturePrefix + hex.EncodeToString(v.digest(body))
}

// Verify returns ErrMissingSignature when header is empty and ErrSignatureMismatch
// when it is malformed or does not match body.
func (v *SignatureVerifier) Verify(body []byte, header string) error {
	if header == "" {
		return ErrMissingSignature
	}

	algo, digest, ok := strings.Cut(header, "=")
	if !ok || !strings.EqualFold(algo, "sha1") {
		return ErrSignatureMismatch
	}

	received, err := hex.DecodeString(digest)
	if err != nil {
		return ErrSignatureMismatch
	}

	if !hmac.Equal(received, v.digest(body)) {
		return ErrSignatureMismatch
	}
	return nil
}

func (v *SignatureVerifier) digest(body []byte) []byte {
	mac := hmac.New(sha1.New, v.secret)
	mac.Write(body)
	return mac.Sum(nil)
}
