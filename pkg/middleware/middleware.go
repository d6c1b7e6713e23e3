package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ruleflow/internal/constants"
	"ruleflow/internal/logger"
	"ruleflow/pkg/errors"
	"ruleflow/pkg/logging"
)

const (
	ContextKeyRequestID = "request_id"
	ContextKeyTenantID  = "tenant_id"
)

func LoggerMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		statusCode := c.Writer.Status()
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		if raw != "" {
			path = path + "?" + raw
		}

		logFields := []interface{}{
			"status", statusCode,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
		}

		if errorMessage != "" {
			logFields = append(logFields, "error", errorMessage)
		}

		ctx := c.Request.Context()
		if statusCode >= http.StatusInternalServerError {
			log.ErrorwCtx(ctx, "HTTP Request", logFields...)
		} else {
			log.InfowCtx(ctx, "HTTP Request", logFields...)
		}
	}
}

func RecoveryMiddleware(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		err := errors.RecoverPanic(recovered)
		log.ErrorwCtx(c.Request.Context(), "Panic recovered",
			"error", err,
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errors.ToErrorResponse(err))
	})
}

// RequestIDMiddleware propagates X-Request-ID, generating one when absent, and stores it in the
// request context for logging.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(constants.HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, requestID)
		c.Header(constants.HeaderRequestID, requestID)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// TenantMiddleware requires the X-Tenant-ID header on every request of the group it is attached
// to. The tenant is available through TenantID.
func TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(constants.HeaderTenantID)
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, errors.ToErrorResponse(
				errors.ErrValidation.WithDetail("header", constants.HeaderTenantID),
			))
			return
		}
		c.Set(ContextKeyTenantID, tenantID)
		c.Request = c.Request.WithContext(logging.WithTenantID(c.Request.Context(), tenantID))
		c.Next()
	}
}

func TenantID(c *gin.Context) string {
	return c.GetString(ContextKeyTenantID)
}
