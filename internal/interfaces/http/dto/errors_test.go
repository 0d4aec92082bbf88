package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/permitflow/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodePersistence, http.StatusServiceUnavailable},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeConcurrencyConflict, http.StatusConflict},
		{ErrCodeActionInProgress, http.StatusConflict},
		{ErrCodeInvalidTransition, http.StatusUnprocessableEntity},
		{ErrCodeActionNotAllowed, http.StatusUnprocessableEntity},
		{ErrCodeInsufficientBalance, http.StatusUnprocessableEntity},
		{ErrCodeBadRequest, http.StatusBadRequest},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{shared.CodeNotFound, ErrCodeNotFound},
		{shared.CodeInvalidInput, ErrCodeInvalidInput},
		{shared.CodeValidation, ErrCodeValidation},
		{shared.CodeInvalidTransition, ErrCodeInvalidTransition},
		{shared.CodeInsufficientBalance, ErrCodeInsufficientBalance},
		{shared.CodePersistenceFailure, ErrCodePersistence},
		{shared.CodeConcurrencyConflict, ErrCodeConcurrencyConflict},
		{shared.CodeActionInProgress, ErrCodeActionInProgress},
		{shared.CodeActionNotAllowed, ErrCodeActionNotAllowed},
		{ErrCodeNotFound, ErrCodeNotFound},
		{"CUSTOM_ERROR", "CUSTOM_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeErrorCode(tt.input))
		})
	}
}

func TestDomainCodesAreMapped(t *testing.T) {
	for domainCode, apiCode := range DomainErrorCodeMapping {
		t.Run(domainCode, func(t *testing.T) {
			_, ok := ErrorCodeHTTPStatus[apiCode]
			assert.True(t, ok, "%s should have an HTTP status", apiCode)
			assert.Contains(t, apiCode, "ERR_")
		})
	}
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(shared.CodeInvalidTransition, "Cannot transition from paid to draft")

	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidTransition, resp.Error.Code)
	assert.Equal(t, "Cannot transition from paid to draft", resp.Error.Message)
	assert.False(t, resp.Error.Timestamp.IsZero())
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{
		{Field: "client_id", Message: "This field is required"},
		{Field: "payment_terms", Message: "Must be one of: due_on_receipt net_15 net_30 net_45 net_60"},
	}

	resp := NewValidationErrorResponse("Request validation failed", "req-789", details)

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-789", resp.Error.RequestID)
	assert.Len(t, resp.Error.Details, 2)
	assert.Equal(t, "client_id", resp.Error.Details[0].Field)
}

func TestErrorResponseJSON(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeNotFound, "Invoice not found", "req-test-123")

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded Response
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.False(t, decoded.Success)
	require.NotNil(t, decoded.Error)
	assert.Equal(t, ErrCodeNotFound, decoded.Error.Code)
	assert.Equal(t, "req-test-123", decoded.Error.RequestID)
}

func TestNewSuccessResponseWithMetaPagination(t *testing.T) {
	tests := []struct {
		total         int64
		pageSize      int
		expectedPages int
		expectedSize  int
	}{
		{100, 10, 10, 10},
		{101, 10, 11, 10},
		{0, 10, 0, 10},
		{9, 10, 1, 10},
		// zero pageSize falls back to 20
		{100, 0, 5, 20},
		{100, -1, 5, 20},
	}

	for _, tt := range tests {
		resp := NewSuccessResponseWithMeta(nil, tt.total, 1, tt.pageSize)
		assert.True(t, resp.Success)
		assert.Equal(t, tt.expectedPages, resp.Meta.TotalPages)
		assert.Equal(t, tt.expectedSize, resp.Meta.PageSize)
	}
}

func TestListRequest_WithDefaults(t *testing.T) {
	req := ListRequest{PageSize: 50}.WithDefaults()

	assert.Equal(t, 1, req.Page)
	assert.Equal(t, 50, req.PageSize)
	assert.Equal(t, "created_at", req.OrderBy)
	assert.Equal(t, "desc", req.OrderDir)
}
