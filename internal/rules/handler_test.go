package rules

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ruleflow/internal/constants"
	"ruleflow/internal/logger"
	"ruleflow/pkg/models"
)

func newTestRouter(t *testing.T) (*gin.Engine, serviceFixture) {
	gin.SetMode(gin.TestMode)
	f := newServiceFixture(t)
	router := gin.New()
	NewHandler(f.svc, logger.NopLogger()).RegisterRoutes(router)
	return router, f
}

func doRequest(router *gin.Engine, method, path, tenantID string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tenantID != "" {
		req.Header.Set(constants.HeaderTenantID, tenantID)
	}
	req.Header.Set(constants.HeaderUserID, "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_RuleLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/rules", "acme", createRequest("vip"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.Rule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "alice", created.CreatedBy)

	w = doRequest(router, http.MethodGet, "/api/v1/rules/"+created.ID, "acme", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/rules/"+created.ID, "globex", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodPut, "/api/v1/rules/"+created.ID, "acme", map[string]interface{}{"priority": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doRequest(router, http.MethodGet, "/api/v1/rules", "acme", nil)
	var list []models.Rule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].Priority)

	w = doRequest(router, http.MethodGet, "/api/v1/rules/"+created.ID+"/versions", "acme", nil)
	var versions []RuleVersion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &versions))
	assert.Len(t, versions, 2)

	w = doRequest(router, http.MethodDelete, "/api/v1/rules/"+created.ID, "acme", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHandler_Errors(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name     string
		method   string
		path     string
		tenantID string
		body     interface{}
		wantCode int
	}{
		{"missing tenant", http.MethodGet, "/api/v1/rules", "", nil, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/v1/rules", "acme", "not an object", http.StatusBadRequest},
		{"missing trigger", http.MethodPost, "/api/v1/rules", "acme", map[string]interface{}{"name": "x"}, http.StatusBadRequest},
		{
			name:     "unsupported action",
			method:   http.MethodPost,
			path:     "/api/v1/rules",
			tenantID: "acme",
			body: func() CreateRuleRequest {
				req := createRequest("fax")
				req.Actions = []models.ActionSpec{{Type: "send_fax"}}
				return req
			}(),
			wantCode: http.StatusBadRequest,
		},
		{"unknown rule", http.MethodDelete, "/api/v1/rules/missing", "acme", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, tt.method, tt.path, tt.tenantID, tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
		})
	}
}

func TestHandler_DuplicateNameConflicts(t *testing.T) {
	router, _ := newTestRouter(t)

	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/api/v1/rules", "acme", createRequest("vip")).Code)
	assert.Equal(t, http.StatusConflict, doRequest(router, http.MethodPost, "/api/v1/rules", "acme", createRequest("vip")).Code)
	assert.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/api/v1/rules", "globex", createRequest("vip")).Code)
}
