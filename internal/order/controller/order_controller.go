package controller

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ordersvc/internal/domain"
	"ordersvc/internal/dto"
	apperrors "ordersvc/internal/errors"
)

type OrderUseCase interface {
	Create(ctx context.Context, spec domain.OrderSpec) (*domain.Order, error)
	Update(ctx context.Context, id int64, spec domain.OrderSpec) (*domain.Order, error)
	ReplaceLines(ctx context.Context, id int64, lines []domain.LineSpec) (*domain.Order, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*domain.Order, error)
	GetByNumber(ctx context.Context, number string) (*domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
}

type OrderController struct {
	responder
	useCase OrderUseCase
	logger  *zap.Logger
}

func NewOrderController(useCase OrderUseCase, logger *zap.Logger) *OrderController {
	return &OrderController{
		responder: responder{logger: logger},
		useCase:   useCase,
		logger:    logger,
	}
}

func (c *OrderController) Create(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	spec, ok := c.decodeSpec(w, r, traceID, logger)
	if !ok {
		return
	}

	order, err := c.useCase.Create(r.Context(), spec)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	logger.Info("order created", zap.Int64("orderId", order.ID))
	c.writeJSON(w, http.StatusCreated, dto.NewOrderResponse(order))
}

func (c *OrderController) List(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	orders, err := c.useCase.List(r.Context())
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.NewOrderResponses(orders))
}

func (c *OrderController) Get(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	id, ok := c.pathID(w, r, traceID, "id")
	if !ok {
		return
	}

	order, err := c.useCase.Get(r.Context(), id)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger.With(zap.Int64("orderId", id)))
		return
	}

	c.writeJSON(w, http.StatusOK, dto.NewOrderResponse(order))
}

func (c *OrderController) GetByNumber(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	number := chi.URLParam(r, "number")
	order, err := c.useCase.GetByNumber(r.Context(), number)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger.With(zap.String("orderNumber", number)))
		return
	}

	c.writeJSON(w, http.StatusOK, dto.NewOrderResponse(order))
}

func (c *OrderController) Update(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	id, ok := c.pathID(w, r, traceID, "id")
	if !ok {
		return
	}
	logger = logger.With(zap.Int64("orderId", id))

	spec, ok := c.decodeSpec(w, r, traceID, logger)
	if !ok {
		return
	}

	order, err := c.useCase.Update(r.Context(), id, spec)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	logger.Info("order updated")
	c.writeJSON(w, http.StatusOK, dto.NewOrderResponse(order))
}

func (c *OrderController) ReplaceLines(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	id, ok := c.pathID(w, r, traceID, "id")
	if !ok {
		return
	}
	logger = logger.With(zap.Int64("orderId", id))

	var req dto.ReplaceLinesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid JSON body", zap.Error(err))
		c.writeValidationError(w, traceID, "invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be valid JSON",
		})
		return
	}

	order, err := c.useCase.ReplaceLines(r.Context(), id, dto.ToLineSpecs(req.Lines))
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	logger.Info("order lines replaced")
	c.writeJSON(w, http.StatusOK, dto.NewOrderResponse(order))
}

func (c *OrderController) Delete(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	id, ok := c.pathID(w, r, traceID, "id")
	if !ok {
		return
	}

	if err := c.useCase.Delete(r.Context(), id); err != nil {
		c.handleUseCaseError(w, traceID, err, logger.With(zap.Int64("orderId", id)))
		return
	}

	logger.Info("order deleted", zap.Int64("orderId", id))
	w.WriteHeader(http.StatusNoContent)
}

func (c *OrderController) decodeSpec(w http.ResponseWriter, r *http.Request, traceID string, logger *zap.Logger) (domain.OrderSpec, bool) {
	var req dto.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid JSON body", zap.Error(err))
		c.writeValidationError(w, traceID, "invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be valid JSON",
		})
		return domain.OrderSpec{}, false
	}

	spec, err := req.ToSpec()
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return domain.OrderSpec{}, false
	}
	return spec, true
}
