package middlewares

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vshulcz/iischeck/internal/misc"
)

// capture holds the handler's status and body until the signature is known.
type capture struct {
	gin.ResponseWriter
	code int
	buf  bytes.Buffer
}

func (w *capture) WriteHeader(code int) { w.code = code }

func (w *capture) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *capture) WriteString(s string) (int, error) { return w.buf.WriteString(s) }

func (w *capture) Status() int {
	if w.code == 0 {
		return http.StatusOK
	}
	return w.code
}

// release sends the held response through the wrapped writer, signed when key is set.
func (w *capture) release(key string) error {
	if w.buf.Len() > 0 {
		w.Header().Set(misc.SignatureHeader, misc.Sign(w.buf.Bytes(), key))
	}
	w.ResponseWriter.WriteHeader(w.Status())
	_, err := w.ResponseWriter.Write(w.buf.Bytes())
	return err
}

// SignResponse sets the HashSHA256 header over the response body.
// A blank key disables it.
func SignResponse(key string) gin.HandlerFunc {
	key = strings.TrimSpace(key)
	if key == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		w := &capture{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()
		c.Writer = w.ResponseWriter
		if err := w.release(key); err != nil {
			_ = c.Error(err)
		}
	}
}
