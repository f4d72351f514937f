package controller

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ordersvc/internal/domain"
	"ordersvc/internal/dto"
)

type ClientOrderUseCase interface {
	ListByClient(ctx context.Context, clientID int64) ([]domain.Order, error)
	LinesForClientOrder(ctx context.Context, clientID, orderID int64) ([]domain.OrderLine, error)
}

// ClientOrderController serves the client-scoped read views used by the customer service.
type ClientOrderController struct {
	responder
	useCase ClientOrderUseCase
	logger  *zap.Logger
}

func NewClientOrderController(useCase ClientOrderUseCase, logger *zap.Logger) *ClientOrderController {
	return &ClientOrderController{
		responder: responder{logger: logger},
		useCase:   useCase,
		logger:    logger,
	}
}

func (c *ClientOrderController) ListOrders(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	clientID, ok := c.pathID(w, r, traceID, "clientId")
	if !ok {
		return
	}

	orders, err := c.useCase.ListByClient(r.Context(), clientID)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger.With(zap.Int64("clientId", clientID)))
		return
	}

	c.writeJSON(w, http.StatusOK, dto.NewOrderResponses(orders))
}

func (c *ClientOrderController) ListOrderLines(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	clientID, ok := c.pathID(w, r, traceID, "clientId")
	if !ok {
		return
	}
	orderID, ok := c.pathID(w, r, traceID, "orderId")
	if !ok {
		return
	}

	lines, err := c.useCase.LinesForClientOrder(r.Context(), clientID, orderID)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger.With(zap.Int64("clientId", clientID), zap.Int64("orderId", orderID)))
		return
	}

	c.writeJSON(w, http.StatusOK, dto.NewLineResponses(lines))
}
