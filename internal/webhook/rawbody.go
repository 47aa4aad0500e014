package webhook

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RawBodyKey is the gin context key holding the unparsed request bytes.
const RawBodyKey = "webhook.raw_body"

var ErrBodyTooLarge = errors.New("request body too large")

// CaptureRawBody reads r completely. A limit > 0 caps the body size and
// bodies longer than limit fail with ErrBodyTooLarge.
func CaptureRawBody(r io.Reader, limit int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	if limit <= 0 {
		return io.ReadAll(r)
	}

	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}

// RawBody stores the exact request bytes under RawBodyKey and puts a fresh
// reader back on the request so later handlers can still bind it.
func RawBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := CaptureRawBody(c.Request.Body, limit)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, ErrBodyTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			c.AbortWithStatusJSON(status, gin.H{"success": false, "error": err.Error()})
			return
		}

		c.Set(RawBodyKey, body)
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

// GetRawBody returns the bytes captured by RawBody, if any.
func GetRawBody(c *gin.Context) ([]byte, bool) {
	v, ok := c.Get(RawBodyKey)
	if !ok {
		return nil, false
	}
	body, ok := v.([]byte)
	return body, ok
}
