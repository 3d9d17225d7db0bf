package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GriffinCanCode/profiled/internal/infrastructure/monitoring"
)

// MetricsHandlers serves the collected metrics
type MetricsHandlers struct {
	metrics  *monitoring.Metrics
	gatherer prometheus.Gatherer
}

// NewMetricsHandlers creates the metrics endpoints over gatherer
func NewMetricsHandlers(metrics *monitoring.Metrics, gatherer prometheus.Gatherer) *MetricsHandlers {
	return &MetricsHandlers{metrics: metrics, gatherer: gatherer}
}

// Register mounts the metrics endpoints on r
func (mh *MetricsHandlers) Register(r gin.IRouter) {
	r.GET("/metrics", mh.Prometheus())
	r.GET("/metrics/json", mh.JSON)
}

// Prometheus serves the text exposition format
func (mh *MetricsHandlers) Prometheus() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(mh.gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))
}

// JSON serves a compact summary for dashboards
func (mh *MetricsHandlers) JSON(c *gin.Context) {
	c.JSON(http.StatusOK, mh.metrics.Snapshot())
}
