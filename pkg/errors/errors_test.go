package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToErrorResponse_HidesCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp 10.0.0.4:5432: password authentication failed for user admin")
	err := Wrap(cause, ErrStoreUnavailable).WithDetail("host", "10.0.0.4")

	resp := ToErrorResponse(err)

	assert.Equal(t, "STORE_UNAVAILABLE", resp.ErrorCode)
	assert.Equal(t, "rule store unavailable", resp.Error)
	assert.Nil(t, resp.Details)
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(err))
}

func TestToErrorResponse_ClientErrorsKeepDetails(t *testing.T) {
	err := ErrValidation.WithDetail("field", "tenant_id")

	resp := ToErrorResponse(err)

	assert.Equal(t, "VALIDATION_ERROR", resp.ErrorCode)
	assert.Equal(t, "tenant_id", resp.Details["field"])
}

func TestToErrorResponse_ForeignError(t *testing.T) {
	resp := ToErrorResponse(stderrors.New("boom"))

	assert.Equal(t, ErrInternal.Code, resp.ErrorCode)
	assert.Equal(t, "internal server error", resp.Error)
}

func TestRecoverPanic_StackIsInternal(t *testing.T) {
	err := RecoverPanic("kaboom")
	require.Error(t, err)

	var appErr *Error
	require.True(t, stderrors.As(err, &appErr))
	assert.Empty(t, appErr.Details)
	assert.Contains(t, appErr.Internal(), "stack_trace")
	assert.True(t, appErr.IsFatal())
}

func TestError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("loading: %w", Wrap(stderrors.New("timeout"), ErrStoreUnavailable))

	assert.True(t, stderrors.Is(err, ErrStoreUnavailable))
	assert.True(t, IsStoreUnavailable(err))
	assert.False(t, stderrors.Is(err, ErrNotFound))
}

func TestError_WithDetailDoesNotMutateSentinel(t *testing.T) {
	_ = ErrConflict.WithDetail("message", "duplicate")
	_ = ErrActionFailed.WithDetails(map[string]interface{}{"error_code": "timeout"})

	assert.Empty(t, ErrConflict.Details)
	assert.Empty(t, ErrActionFailed.Details)
}

func TestError_WithDetailsMerges(t *testing.T) {
	err := ErrUnsupportedAction.
		WithDetail("field", "actions[0]").
		WithDetails(map[string]interface{}{"action_type": "send_fax", "message": "unsupported action type \"send_fax\""})

	assert.Equal(t, "actions[0]", err.Details["field"])
	assert.Equal(t, "send_fax", err.Details["action_type"])
	assert.Equal(t, `UNSUPPORTED_ACTION_TYPE: unsupported action type "send_fax"`, err.Error())
	assert.Equal(t, "UNSUPPORTED_ACTION_TYPE", ToErrorResponse(err).ErrorCode)
}

func TestError_Retryability(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		retryable bool
	}{
		{"store unavailable", ErrStoreUnavailable, true},
		{"validation", ErrValidation, false},
		{"not found", ErrNotFound, false},
		{"forced fatal", ErrInternal.AsFatal(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.err.IsRetryable())
		})
	}
}
