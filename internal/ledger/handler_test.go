package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ruleflow/internal/constants"
	"ruleflow/internal/logger"
	"ruleflow/pkg/models"
)

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewMemoryLedger()
	_, err := l.Claim(context.Background(), pendingEntry("acme", "occ-1"), time.Minute)
	require.NoError(t, err)

	router := gin.New()
	NewHandler(l, logger.NopLogger()).RegisterRoutes(router)

	get := func(path, tenantID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if tenantID != "" {
			req.Header.Set(constants.HeaderTenantID, tenantID)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := get("/api/v1/audit", "acme")
	require.Equal(t, http.StatusOK, w.Code)
	var entries []models.AuditEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	assert.Len(t, entries, 1)

	assert.Equal(t, http.StatusOK, get("/api/v1/audit/occ-1", "acme").Code)
	assert.Equal(t, http.StatusNotFound, get("/api/v1/audit/occ-1", "globex").Code)
	assert.Equal(t, http.StatusBadRequest, get("/api/v1/audit", "").Code)
}
