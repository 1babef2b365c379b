package energy

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mbd888/verdict/internal/logging"
	"github.com/mbd888/verdict/internal/validation"
)

var (
	// PlansTotal counts energy plans by mode.
	PlansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verdict",
			Name:      "energy_plans_total",
			Help:      "Energy plans by mode (normal, saving, rejected).",
		},
		[]string{"mode"},
	)

	// DevicesOn observes how many devices each plan leaves powered.
	DevicesOn = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "verdict",
			Name:      "energy_devices_on",
			Help:      "Devices powered per plan.",
			Buckets:   prometheus.LinearBuckets(0, 2, 8),
		},
	)
)

func init() {
	prometheus.MustRegister(PlansTotal, DevicesOn)
}

// Handler provides HTTP endpoints for energy planning.
type Handler struct{}

// NewHandler creates a new energy handler.
func NewHandler() *Handler {
	return &Handler{}
}

// RegisterRoutes sets up energy routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/energy/plan", h.Plan)
}

// Plan handles POST /v1/energy/plan
func (h *Handler) Plan(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request body must be a valid energy plan request",
		})
		return
	}

	if err := Validate(&req); err != nil {
		PlansTotal.WithLabelValues("rejected").Inc()
		var verrs validation.ValidationErrors
		errors.As(err, &verrs)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": err.Error(),
			"details": verrs,
		})
		return
	}

	res := Plan(req)

	mode := "normal"
	if res.EnergySavingMode {
		mode = "saving"
	}
	on := 0
	for _, powered := range res.DeviceStatus {
		if powered {
			on++
		}
	}
	PlansTotal.WithLabelValues(mode).Inc()
	DevicesOn.Observe(float64(on))
	logging.L(c.Request.Context()).Debug("energy plan computed",
		"mode", mode,
		"devices_on", on,
		"regulating", res.TemperatureRegulationActive,
	)

	c.JSON(http.StatusOK, res)
}
