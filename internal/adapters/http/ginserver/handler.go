// Package ginserver exposes collected metrics and agent state over HTTP.
package ginserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vshulcz/iischeck/internal/config"
	"github.com/vshulcz/iischeck/internal/domain"
)

// InstanceLister reports the currently monitored instances.
type InstanceLister interface {
	Instances() []config.Instance
}

// Handler serves the exposition and introspection endpoints.
type Handler struct {
	metrics http.Handler
	inst    InstanceLister
	class   string
	table   []domain.Mapping
}

// NewHandler builds a Handler scraping g and describing the class/table catalog.
func NewHandler(g prometheus.Gatherer, class string, table []domain.Mapping, inst InstanceLister) *Handler {
	return &Handler{
		metrics: promhttp.HandlerFor(g, promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError}),
		inst:    inst,
		class:   class,
		table:   table,
	}
}

// Metrics handles `GET /metrics` in the Prometheus text format.
func (h *Handler) Metrics(c *gin.Context) {
	h.metrics.ServeHTTP(c.Writer, c.Request)
}

// Ping handles `GET /ping`; it fails while no instance is configured.
func (h *Handler) Ping(c *gin.Context) {
	if h.inst == nil || len(h.inst.Instances()) == 0 {
		c.String(http.StatusServiceUnavailable, "no instances configured")
		return
	}
	c.String(http.StatusOK, "ok")
}

type catalogView struct {
	Class   string           `json:"class"`
	Metrics []domain.Mapping `json:"metrics"`
}

// Catalog handles `GET /catalog` with the fixed counter-to-metric table.
func (h *Handler) Catalog(c *gin.Context) {
	c.JSON(http.StatusOK, catalogView{Class: h.class, Metrics: h.table})
}

type instanceView struct {
	Host     string   `json:"host"`
	Username string   `json:"username,omitempty"`
	Interval string   `json:"interval,omitempty"`
	Tags     []string `json:"tags"`
}

// Instances handles `GET /instances`. Credentials other than the user name are never returned.
func (h *Handler) Instances(c *gin.Context) {
	var list []config.Instance
	if h.inst != nil {
		list = h.inst.Instances()
	}
	out := make([]instanceView, 0, len(list))
	for _, in := range list {
		v := instanceView{Host: in.Name(), Username: in.Username, Tags: in.Tags}
		if v.Tags == nil {
			v.Tags = []string{}
		}
		if in.Interval > 0 {
			v.Interval = in.Interval.String()
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, out)
}
