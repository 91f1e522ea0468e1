// Package ginserver exposes the host's HTTP surface: record ingest, health, status and metrics.
package ginserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vshulcz/wxrelay/internal/domain"
	"github.com/vshulcz/wxrelay/internal/services/audit"
	"github.com/vshulcz/wxrelay/internal/services/host"
)

const maxRecordBody = 1 << 20

// Handler exposes HTTP endpoints for record ingest and inspection.
type Handler struct {
	svc     *host.Service
	metrics http.Handler
	log     *zap.Logger
}

// NewHandler wires the host service into a gin-compatible HTTP handler.
// A nil gatherer serves an empty /metrics page.
func NewHandler(svc *host.Service, gatherer prometheus.Gatherer, log *zap.Logger) *Handler {
	if gatherer == nil {
		gatherer = prometheus.NewRegistry()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		svc:     svc,
		metrics: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{DisableCompression: true}),
		log:     log,
	}
}

// Ingest handles `POST /archive` with a weewx-style JSON record.
func (h *Handler) Ingest(c *gin.Context) {
	var rec domain.Record
	dec := json.NewDecoder(http.MaxBytesReader(c.Writer, c.Request.Body, maxRecordBody))
	if err := dec.Decode(&rec); err != nil {
		c.String(http.StatusBadRequest, "bad request")
		return
	}

	ctx := audit.WithClientIP(c.Request.Context(), c.ClientIP())
	if err := h.svc.Ingest(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrInvalidRecord) {
			c.String(http.StatusBadRequest, "bad request")
			return
		}
		h.log.Error("ingest failed", zap.Int64("dateTime", rec.DateTime), zap.Error(err))
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.String(http.StatusOK, "ok")
}

// Ping reports archive connectivity via `GET /ping`.
func (h *Handler) Ping(c *gin.Context) {
	if err := h.svc.Ping(c.Request.Context()); err != nil {
		c.String(http.StatusInternalServerError, "archive unavailable")
		return
	}
	c.String(http.StatusOK, "ok")
}

// Status returns per-site forwarding counters as JSON.
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Status())
}

// Metrics serves the Prometheus exposition format.
func (h *Handler) Metrics(c *gin.Context) {
	h.metrics.ServeHTTP(c.Writer, c.Request)
}
