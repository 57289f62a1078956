package ginserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vshulcz/iischeck/internal/adapters/http/ginserver/middlewares"
)

// NewRouter mounts h behind recovery plus the given middlewares.
// When key is set, JSON responses carry a HashSHA256 signature header.
func NewRouter(h *Handler, key string, mws ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	for _, mw := range mws {
		r.Use(mw)
	}

	r.RedirectTrailingSlash = false
	r.RemoveExtraSlash = true

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.String(http.StatusMethodNotAllowed, "method not allowed")
	})

	r.GET("/ping", h.Ping)
	r.GET("/metrics", h.Metrics)

	api := r.Group("/", middlewares.SignResponse(key))
	api.GET("/catalog", h.Catalog)
	api.GET("/instances", h.Instances)

	return r
}
