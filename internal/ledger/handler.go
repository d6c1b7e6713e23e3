package ledger

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ruleflow/internal/logger"
	"ruleflow/pkg/errors"
	"ruleflow/pkg/middleware"
)

type Handler struct {
	ledger Ledger
	log    logger.Logger
}

func NewHandler(l Ledger, log logger.Logger) *Handler {
	return &Handler{ledger: l, log: log}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	audit := router.Group("/api/v1/audit")
	audit.Use(middleware.TenantMiddleware())
	{
		audit.GET("", h.ListEntries)
		audit.GET("/:occurrence_id", h.GetEntry)
	}
}

// ListEntries godoc
// @Summary      List audit entries
// @Description  One entry per evaluated occurrence, newest first
// @Tags         audit
// @Produce      json
// @Param        X-Tenant-ID  header    string  true   "Tenant ID"
// @Param        limit        query     int     false  "Page size"
// @Param        offset       query     int     false  "Entries to skip"
// @Success      200  {array}   models.AuditEntry
// @Failure      400  {object}  errors.ErrorResponse
// @Failure      503  {object}  errors.ErrorResponse
// @Router       /audit [get]
func (h *Handler) ListEntries(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	entries, err := h.ledger.List(c.Request.Context(), middleware.TenantID(c), ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		h.log.ErrorwCtx(c.Request.Context(), "Failed to list audit entries", "error", err)
		c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
		return
	}
	c.JSON(http.StatusOK, entries)
}

// GetEntry godoc
// @Summary      Get the audit entry of an occurrence
// @Tags         audit
// @Produce      json
// @Param        X-Tenant-ID    header    string  true  "Tenant ID"
// @Param        occurrence_id  path      string  true  "Occurrence ID"
// @Success      200  {object}  models.AuditEntry
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      503  {object}  errors.ErrorResponse
// @Router       /audit/{occurrence_id} [get]
func (h *Handler) GetEntry(c *gin.Context) {
	entry, err := h.ledger.Lookup(c.Request.Context(), middleware.TenantID(c), c.Param("occurrence_id"))
	if err != nil {
		c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
		return
	}
	c.JSON(http.StatusOK, entry)
}
