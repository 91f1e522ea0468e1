package middlewares

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vshulcz/wxrelay/internal/misc"
)

const hashHeader = "HashSHA256"

type bodyBufferWriter struct {
	gin.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *bodyBufferWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(p)
}

func (w *bodyBufferWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *bodyBufferWriter) WriteHeader(code int) {
	w.status = code
}

// HashSHA256 checks the HashSHA256 header of signed requests against key and signs responses.
// With required set, requests that carry a body but no signature are rejected.
func HashSHA256(key string, required bool) gin.HandlerFunc {
	key = strings.TrimSpace(key)
	if key == "" {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		bw := &bodyBufferWriter{ResponseWriter: c.Writer}
		c.Writer = bw

		verify(c, key, required)
		if !c.IsAborted() {
			c.Next()
		}

		if bw.body.Len() > 0 {
			c.Header(hashHeader, misc.SumSHA256(bw.body.Bytes(), key))
		}
		status := bw.status
		if status == 0 {
			status = http.StatusOK
		}

		c.Writer = bw.ResponseWriter
		c.Writer.WriteHeader(status)
		if _, err := c.Writer.Write(bw.body.Bytes()); err != nil {
			_ = c.Error(err)
		}
	}
}

func verify(c *gin.Context, key string, required bool) {
	got := strings.TrimSpace(c.GetHeader(hashHeader))
	if got == "" && !required {
		return
	}

	reqBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}
	if err := c.Request.Body.Close(); err != nil {
		_ = c.Error(err)
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(reqBody))

	if len(reqBody) == 0 {
		return
	}
	if got == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing signature"})
		return
	}
	if !misc.VerifySHA256(reqBody, key, got) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid hash"})
	}
}
