package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/profiled/internal/infrastructure/logging"
	"github.com/GriffinCanCode/profiled/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/profiled/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/profiled/internal/lifecycle"
	"github.com/GriffinCanCode/profiled/internal/profile"
)

// Version is reported by the root endpoint
const Version = "0.1.0"

// refreshTimeout bounds a manual refresh
const refreshTimeout = 2 * time.Minute

// BreakerStater reports the control-plane circuit state
type BreakerStater interface {
	BreakerState() resilience.State
}

// Handlers contains all HTTP handlers
type Handlers struct {
	manager *lifecycle.Manager
	metrics *monitoring.Metrics
	breaker BreakerStater
	logger  *zap.Logger
}

// NewHandlers creates a new handler set. metrics and breaker may be nil.
func NewHandlers(manager *lifecycle.Manager, metrics *monitoring.Metrics, breaker BreakerStater, logger *zap.Logger) *Handlers {
	return &Handlers{
		manager: manager,
		metrics: metrics,
		breaker: breaker,
		logger:  logging.OrNop(logger),
	}
}

// Register mounts every handler on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	r.GET("/profile", h.GetProfile)
	r.GET("/profile/config", h.GetConfig)
	r.POST("/profile/refresh", h.Refresh)
	r.POST("/profile/active", h.SetActive)
}

// Root handles the liveness check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "profiled",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	loader := h.manager.Loader()

	profileInfo := gin.H{"attached": loader != nil}
	if loader != nil {
		profileInfo["id"] = loader.Description().ID
	}

	controlPlane := gin.H{"configured": h.breaker != nil}
	if h.breaker != nil {
		controlPlane["breaker"] = h.breaker.BreakerState().String()
	}

	status := "healthy"
	if loader == nil {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        status,
		"profile":       profileInfo,
		"control_plane": controlPlane,
		"subscribers":   h.manager.Subscribers(),
		"metrics":       h.metrics.Snapshot(),
	})
}

// GetProfile returns the description of the attached profile and, when the
// loader exposes it, its raw cached document
func (h *Handlers) GetProfile(c *gin.Context) {
	loader := h.manager.Loader()
	if loader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": lifecycle.ErrNoLoader.Error()})
		return
	}

	resp := gin.H{"description": loader.Description()}
	if r, ok := loader.(profile.Refresher); ok {
		resp["cached"] = r.Cached()
	}
	c.JSON(http.StatusOK, resp)
}

// GetConfig returns the materialized configuration
func (h *Handlers) GetConfig(c *gin.Context) {
	result, err := h.manager.Config(c.Request.Context())
	if err != nil {
		h.fail(c, "load config", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Refresh runs one refresh of the attached loader immediately
func (h *Handlers) Refresh(c *gin.Context) {
	loader := h.manager.Loader()
	if loader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": lifecycle.ErrNoLoader.Error()})
		return
	}
	r, ok := loader.(profile.Refresher)
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "profile does not support refresh"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), refreshTimeout)
	defer cancel()

	replaced, err := r.Refresh(ctx)
	if err != nil {
		h.fail(c, "refresh profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"replaced": replaced,
	})
}

// SetActiveRequest is the body of POST /profile/active
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetActive forwards an activation change to the attached loader
func (h *Handlers) SetActive(c *gin.Context) {
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	loader := h.manager.Loader()
	if loader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": lifecycle.ErrNoLoader.Error()})
		return
	}

	loader.SetActive(*req.Active)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"active":  *req.Active,
	})
}

func (h *Handlers) fail(c *gin.Context, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("Request failed", zap.String("operation", op), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrNoLoader), errors.Is(err, profile.ErrLoaderClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusBadGateway
	}
}
