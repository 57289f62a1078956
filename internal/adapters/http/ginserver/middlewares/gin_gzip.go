package middlewares

import (
	"compress/gzip"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var gzipTypes = []string{"application/json", "text/html"}

type gzipResponseWriter struct {
	gin.ResponseWriter
	gzw      *gzip.Writer
	compress bool
	decided  bool
}

// decide runs on the first write, once the handler has set its headers.
func (w *gzipResponseWriter) decide() {
	w.decided = true

	h := w.Header()
	if h.Get("Content-Encoding") != "" {
		return
	}
	status := w.Status()
	if status == http.StatusNoContent || status < http.StatusOK {
		return
	}
	ct := h.Get("Content-Type")
	for _, t := range gzipTypes {
		if strings.HasPrefix(ct, t) {
			h.Del("Content-Length")
			h.Set("Content-Encoding", "gzip")
			h.Add("Vary", "Accept-Encoding")
			w.gzw = gzip.NewWriter(w.ResponseWriter)
			w.compress = true
			return
		}
	}
}

func (w *gzipResponseWriter) Write(p []byte) (int, error) {
	if !w.decided {
		w.decide()
	}
	if w.compress {
		return w.gzw.Write(p)
	}
	return w.ResponseWriter.Write(p)
}

func (w *gzipResponseWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *gzipResponseWriter) Close() error {
	if w.gzw != nil {
		return w.gzw.Close()
	}
	return nil
}

// GzipResponse compresses JSON and HTML bodies for clients that accept gzip.
// Handlers that encode their own body (promhttp) are left alone.
func GzipResponse() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(strings.ToLower(c.GetHeader("Accept-Encoding")), "gzip") {
			c.Next()
			return
		}
		grw := &gzipResponseWriter{ResponseWriter: c.Writer}
		c.Writer = grw
		c.Next()
		if err := grw.Close(); err != nil {
			_ = c.Error(err)
		}
	}
}
