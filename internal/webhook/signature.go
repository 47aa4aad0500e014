package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	HeaderSignature256 = "X-Hub-Signature-256"
	HeaderSignature    = "X-Hub-Signature"
)

var (
	ErrMissingSecret    = errors.New("missing app secret")
	ErrMissingSignature = errors.New("no signature found")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Verifier checks the HMAC signature Meta attaches to webhook deliveries.
type Verifier struct {
	secret []byte
}

func NewVerifier(appSecret string) *Verifier {
	return &Verifier{secret: []byte(appSecret)}
}

// Verify authenticates body against the signature headers. The SHA-256
// header takes precedence; the SHA-1 header is only consulted when the
// SHA-256 one is absent.
func (v *Verifier) Verify(headers http.Header, body []byte) error {
	if len(v.secret) == 0 {
		return ErrMissingSecret
	}

	newHash := sha256.New
	signature := headers.Get(HeaderSignature256)
	if signature == "" {
		newHash = sha1.New
		signature = headers.Get(HeaderSignature)
	}
	if signature == "" {
		return ErrMissingSignature
	}

	signature = strings.TrimPrefix(signature, "sha256=")
	signature = strings.TrimPrefix(signature, "sha1=")
	got, err := hex.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}

	if !hmac.Equal(got, mac(newHash, v.secret, body)) {
		return ErrInvalidSignature
	}
	return nil
}

func mac(newHash func() hash.Hash, secret, body []byte) []byte {
	m := hmac.New(newHash, secret)
	m.Write(body)
	return m.Sum(nil)
}

// Sign returns the X-Hub-Signature-256 header value for body.
func Sign(secret string, body []byte) string {
	return "sha256=" + hex.EncodeToString(mac(sha256.New, []byte(secret), body))
}

// SignSHA1 returns the legacy X-Hub-Signature header value for body.
func SignSHA1(secret string, body []byte) string {
	return "sha1=" + hex.EncodeToString(mac(sha1.New, []byte(secret), body))
}

// Signature rejects requests whose captured raw body does not match the
// signature headers. It must run after RawBody.
func Signature(v *Verifier, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := GetRawBody(c)
		if !ok {
			body = []byte{}
		}

		if err := v.Verify(c.Request.Header, body); err != nil {
			log.WithError(err).WithField("remote_ip", c.ClientIP()).Warn("Webhook signature verification failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.Next()
	}
}
