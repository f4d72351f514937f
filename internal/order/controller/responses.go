package controller

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ordersvc/internal/dto"
	apperrors "ordersvc/internal/errors"
)

// responder holds the JSON response helpers shared by the order controllers.
type responder struct {
	logger *zap.Logger
}

func (c responder) handleUseCaseError(w http.ResponseWriter, traceID string, err error, logger *zap.Logger) {
	if ve, ok := apperrors.IsValidationError(err); ok {
		c.writeValidationError(w, traceID, ve.Message, ve.Details...)
		return
	}

	if _, ok := apperrors.IsNotFoundError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}

	if _, ok := apperrors.IsForbiddenError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusForbidden, "FORBIDDEN", err.Error())
		return
	}

	if _, ok := apperrors.IsConflictError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusConflict, "CONFLICT", err.Error())
		return
	}

	if _, ok := apperrors.IsDeadlockError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusConflict, "DEADLOCK", err.Error())
		return
	}

	if _, ok := apperrors.IsInsufficientStockError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error())
		return
	}

	if _, ok := apperrors.IsProductNotFoundError(err); ok {
		logger.Warn("product missing from catalog", zap.Error(err))
		c.writeErrorResponse(w, traceID, http.StatusBadGateway, "PRODUCT_NOT_FOUND", err.Error())
		return
	}

	if _, ok := apperrors.IsCatalogUnavailableError(err); ok {
		logger.Error("product catalog unavailable", zap.Error(err))
		c.writeErrorResponse(w, traceID, http.StatusBadGateway, "CATALOG_UNAVAILABLE", "product catalog unavailable")
		return
	}

	logger.Error("unexpected error", zap.Error(err))
	c.writeErrorResponse(w, traceID, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
}

func (c responder) writeErrorResponse(w http.ResponseWriter, traceID string, statusCode int, code string, message string) {
	response := dto.ErrorResponse{
		TraceID:   traceID,
		Status:    statusCode,
		Message:   message,
		Code:      code,
		Timestamp: time.Now().UTC(),
	}

	c.writeJSON(w, statusCode, response)
}

func (c responder) writeValidationError(w http.ResponseWriter, traceID string, message string, details ...apperrors.ValidationDetail) {
	response := dto.ValidationErrorResponse{
		TraceID: traceID,
		Error:   "VALIDATION_ERROR",
		Message: message,
		Details: details,
	}

	c.writeJSON(w, http.StatusBadRequest, response)
}

func (c responder) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Error("failed to encode response", zap.Error(err))
	}
}

// pathID parses a positive integer URL parameter, writing a 400 when it is malformed.
func (c responder) pathID(w http.ResponseWriter, r *http.Request, traceID, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		c.writeValidationError(w, traceID, "invalid "+name, apperrors.ValidationDetail{
			Field:   name,
			Message: name + " must be a positive integer",
		})
		return 0, false
	}
	return id, true
}
