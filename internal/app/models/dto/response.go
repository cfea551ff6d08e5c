package dto

import "time"

// APIResponse is the envelope for every successful response
type APIResponse struct {
	Success   bool         `json:"success" example:"true"`
	Message   string       `json:"message,omitempty" example:"Operation completed successfully"`
	Data      interface{}  `json:"data,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp" example:"2025-04-23T12:01:05.123Z"`
}

// NewSuccessResponse creates a success envelope around data
func NewSuccessResponse(data interface{}, message string) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// SuccessResponse represents a standard success response for API endpoints
type SuccessResponse struct {
	Message string `json:"message"`
}

// PaginatedResponse is a page of results with navigation links
type PaginatedResponse struct {
	Count      int64       `json:"count" example:"42"`
	Next       *string     `json:"next"`
	Previous   *string     `json:"previous"`
	Page       int         `json:"page" example:"1"`
	TotalPages int         `json:"total_pages" example:"3"`
	Results    interface{} `json:"results"`
}

// ListResponse is an unpaginated result list
type ListResponse struct {
	Count   int         `json:"count" example:"5"`
	Results interface{} `json:"results"`
}

// NewListResponse counts results with len
func NewListResponse[T any](results []T) ListResponse {
	if results == nil {
		results = []T{}
	}
	return ListResponse{Count: len(results), Results: results}
}
