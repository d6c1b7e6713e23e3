package engine

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ruleflow/internal/logger"
	"ruleflow/pkg/errors"
	"ruleflow/pkg/middleware"
	"ruleflow/pkg/models"
)

type EvaluateRequest struct {
	Module       string                 `json:"module" binding:"required"`
	Event        string                 `json:"event" binding:"required"`
	Entity       string                 `json:"entity" binding:"required"`
	Record       map[string]interface{} `json:"record" binding:"required"`
	OccurrenceID string                 `json:"occurrence_id"`
}

type EvaluateResponse struct {
	Success bool `json:"success"`
	Outcome
}

func toEvaluationRequest(tenantID string, req EvaluateRequest) models.EvaluationRequest {
	return models.EvaluationRequest{
		TenantID:     tenantID,
		Module:       req.Module,
		Event:        req.Event,
		Entity:       req.Entity,
		Record:       req.Record,
		OccurrenceID: req.OccurrenceID,
	}
}

type Handler struct {
	engine *Engine
	log    logger.Logger
}

func NewHandler(engine *Engine, log logger.Logger) *Handler {
	return &Handler{engine: engine, log: log}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.Use(middleware.TenantMiddleware())
	{
		v1.POST("/evaluate", h.Evaluate)
	}
}

// Evaluate godoc
// @Summary      Evaluate rules for an event
// @Description  Run the tenant's rules for (module, event, entity) against the record. Repeating an occurrence_id returns the recorded result without running actions again.
// @Tags         evaluation
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID  header    string           true  "Tenant ID"
// @Param        request      body      EvaluateRequest  true  "Event occurrence"
// @Success      200  {object}  EvaluateResponse
// @Failure      400  {object}  errors.ErrorResponse
// @Failure      409  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Failure      503  {object}  errors.ErrorResponse
// @Router       /evaluate [post]
func (h *Handler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	outcome, err := h.engine.EvaluateRulesForEvent(c.Request.Context(), toEvaluationRequest(middleware.TenantID(c), req))
	if err != nil {
		status := errors.ToHTTPStatus(err)
		if status >= http.StatusInternalServerError {
			h.log.ErrorwCtx(c.Request.Context(), "Evaluation failed", "error", err)
		}
		c.JSON(status, errors.ToErrorResponse(err))
		return
	}

	c.JSON(http.StatusOK, EvaluateResponse{Success: true, Outcome: *outcome})
}
