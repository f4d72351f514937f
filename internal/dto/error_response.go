package dto

import (
	"time"

	apperrors "ordersvc/internal/errors"
)

type ErrorResponse struct {
	TraceID   string    `json:"traceId"`
	Status    int       `json:"status"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

type ValidationErrorResponse struct {
	TraceID string                       `json:"traceId"`
	Error   string                       `json:"error"`
	Message string                       `json:"message"`
	Details []apperrors.ValidationDetail `json:"details"`
}
