package dto

import "time"

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code      string             `json:"code"`
	Message   string             `json:"message"`
	RequestID string             `json:"request_id,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Details   []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail describes one rejected request field
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Meta represents pagination metadata
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

// NewSuccessResponseWithMeta creates a success response with pagination meta
func NewSuccessResponseWithMeta(data interface{}, total int64, page, pageSize int) Response {
	if pageSize <= 0 {
		pageSize = DefaultListRequest().PageSize
	}
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return Response{
		Success: true,
		Data:    data,
		Meta: &Meta{
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages,
		},
	}
}

// NewErrorResponse creates an error response. Domain codes are normalized
// to the ERR_ format.
func NewErrorResponse(code, message string) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      NormalizeErrorCode(code),
			Message:   message,
			Timestamp: time.Now().UTC(),
		},
	}
}

// NewErrorResponseWithRequestID creates an error response tagged with the request ID
func NewErrorResponseWithRequestID(code, message, requestID string) Response {
	resp := NewErrorResponse(code, message)
	resp.Error.RequestID = requestID
	return resp
}

// NewValidationErrorResponse creates a 400 response listing the rejected fields
func NewValidationErrorResponse(message, requestID string, details []ValidationDetail) Response {
	resp := NewErrorResponseWithRequestID(ErrCodeValidation, message, requestID)
	resp.Error.Details = details
	return resp
}

// ListRequest represents common list/pagination request parameters
type ListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search   string `form:"search"`
}

// DefaultListRequest returns a list request with defaults
func DefaultListRequest() ListRequest {
	return ListRequest{
		Page:     1,
		PageSize: 20,
		OrderBy:  "created_at",
		OrderDir: "desc",
	}
}

// WithDefaults fills unset paging fields
func (r ListRequest) WithDefaults() ListRequest {
	d := DefaultListRequest()
	if r.Page <= 0 {
		r.Page = d.Page
	}
	if r.PageSize <= 0 {
		r.PageSize = d.PageSize
	}
	if r.OrderBy == "" {
		r.OrderBy = d.OrderBy
	}
	if r.OrderDir == "" {
		r.OrderDir = d.OrderDir
	}
	return r
}
