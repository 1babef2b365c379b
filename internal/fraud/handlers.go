package fraud

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/verdict/internal/pagination"
	"github.com/mbd888/verdict/internal/validation"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Handler provides HTTP endpoints for fraud checks.
type Handler struct {
	service *Service
}

// NewHandler creates a new fraud handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up fraud routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/fraud/check", h.Check)
	r.GET("/fraud/rules", h.ListRules)
	r.GET("/fraud/accounts/:accountId/assessments", h.ListAssessments)
}

// RegisterAdminRoutes sets up blocklist maintenance routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/fraud/blocklist", h.ListBlocked)
	r.GET("/fraud/blocklist/:location", h.GetBlocked)
	r.POST("/fraud/blocklist", h.BlockLocation)
	r.DELETE("/fraud/blocklist/:location", h.UnblockLocation)
}

// Check handles POST /v1/fraud/check
func (h *Handler) Check(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request body must be a valid check request",
		})
		return
	}

	a, err := h.service.Check(c.Request.Context(), &req)
	if err != nil {
		var verrs validation.ValidationErrors
		if errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_failed",
				"message": verrs.Error(),
				"details": verrs,
			})
			return
		}
		if errors.Is(err, ErrBlocklistUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "blocklist_unavailable",
				"message": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to evaluate transaction",
		})
		return
	}

	c.JSON(http.StatusOK, a)
}

// ListRules handles GET /v1/fraud/rules
func (h *Handler) ListRules(c *gin.Context) {
	rules := h.service.Rules()
	c.JSON(http.StatusOK, gin.H{
		"rules":        rules,
		"count":        len(rules),
		"maxRiskScore": MaxRiskScore,
	})
}

// ListAssessments handles GET /v1/fraud/accounts/:accountId/assessments
func (h *Handler) ListAssessments(c *gin.Context) {
	accountID := c.Param("accountId")

	limit := defaultHistoryLimit
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	page, err := h.service.History(c.Request.Context(), accountID, limit, c.Query("cursor"))
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_cursor",
				"message": "cursor is malformed",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list assessments",
		})
		return
	}

	assessments := page.Assessments
	if assessments == nil {
		assessments = []*Assessment{}
	}

	resp := gin.H{
		"assessments": assessments,
		"count":       len(assessments),
		"hasMore":     page.HasMore,
	}
	if page.NextCursor != "" {
		resp["nextCursor"] = page.NextCursor
	}
	c.JSON(http.StatusOK, resp)
}

type blockRequest struct {
	Location string `json:"location" binding:"required"`
}

// ListBlocked handles GET /v1/admin/fraud/blocklist
func (h *Handler) ListBlocked(c *gin.Context) {
	bl := h.blocklist(c)
	if bl == nil {
		return
	}

	locs, err := bl.Locations(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "blocklist_unavailable",
			"message": err.Error(),
		})
		return
	}

	sorted := locs.Sorted()
	c.JSON(http.StatusOK, gin.H{
		"locations": sorted,
		"count":     len(sorted),
	})
}

// BlockLocation handles POST /v1/admin/fraud/blocklist
func (h *Handler) BlockLocation(c *gin.Context) {
	bl := h.blocklist(c)
	if bl == nil {
		return
	}

	var req blockRequest
	if err := c.ShouldBindJSON(&req); err == nil {
		req.Location = validation.SanitizeString(req.Location, MaxLocationLength+1)
	}
	if !validLocation(c, req.Location) {
		return
	}

	if err := bl.Add(c.Request.Context(), req.Location); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "blocklist_unavailable",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"location": req.Location, "blocked": true})
}

// GetBlocked handles GET /v1/admin/fraud/blocklist/:location
func (h *Handler) GetBlocked(c *gin.Context) {
	bl := h.blocklist(c)
	if bl == nil {
		return
	}

	location := validation.SanitizeString(c.Param("location"), MaxLocationLength+1)
	if !validLocation(c, location) {
		return
	}

	blocked, err := bl.Contains(c.Request.Context(), location)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "blocklist_unavailable",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"location": location, "blocked": blocked})
}

// UnblockLocation handles DELETE /v1/admin/fraud/blocklist/:location
func (h *Handler) UnblockLocation(c *gin.Context) {
	bl := h.blocklist(c)
	if bl == nil {
		return
	}

	location := validation.SanitizeString(c.Param("location"), MaxLocationLength+1)
	if !validLocation(c, location) {
		return
	}
	if err := bl.Remove(c.Request.Context(), location); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "blocklist_unavailable",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"location": location, "blocked": false})
}

func (h *Handler) blocklist(c *gin.Context) BlocklistSource {
	bl := h.service.Blocklist()
	if bl == nil {
		c.JSON(http.StatusNotImplemented, gin.H{
			"error":   "not_configured",
			"message": "No blocklist is configured",
		})
	}
	return bl
}

// validLocation writes a 400 and returns false when location could never
// match a valid transaction.
func validLocation(c *gin.Context, location string) bool {
	errs := validation.Validate(
		validation.Required("location", location),
		validation.MaxLength("location", location, MaxLocationLength),
	)
	if len(errs) == 0 {
		return true
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_request",
		"message": errs.Error(),
		"details": errs,
	})
	return false
}
