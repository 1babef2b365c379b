package booking

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mbd888/verdict/internal/logging"
	"github.com/mbd888/verdict/internal/validation"
)

// QuotesTotal counts booking quotes by outcome.
var QuotesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "verdict",
		Name:      "booking_quotes_total",
		Help:      "Booking quotes by outcome (confirmed, cancelled, no_seats, rejected).",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(QuotesTotal)
}

func outcome(req Request, res Result) string {
	switch {
	case res.Confirmed:
		return "confirmed"
	case req.Passengers > req.AvailableSeats:
		return "no_seats"
	default:
		return "cancelled"
	}
}

// Handler provides HTTP endpoints for bookings.
type Handler struct{}

// NewHandler creates a new booking handler.
func NewHandler() *Handler {
	return &Handler{}
}

// RegisterRoutes sets up booking routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/bookings/quote", h.Quote)
}

// Quote handles POST /v1/bookings/quote
func (h *Handler) Quote(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request body must be a valid booking request",
		})
		return
	}

	if err := Validate(&req); err != nil {
		QuotesTotal.WithLabelValues("rejected").Inc()
		var verrs validation.ValidationErrors
		errors.As(err, &verrs)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": err.Error(),
			"details": verrs,
		})
		return
	}

	res := Book(req)
	out := outcome(req, res)
	QuotesTotal.WithLabelValues(out).Inc()
	logging.L(c.Request.Context()).Debug("booking quoted",
		"outcome", out,
		"passengers", req.Passengers,
		"total_price", res.TotalPrice.String(),
		"refund", res.RefundAmount.String(),
	)

	c.JSON(http.StatusOK, res)
}
