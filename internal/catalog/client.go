// Package catalog talks to the product service: product lookups and stock updates.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"ordersvc/internal/config"
	"ordersvc/internal/domain"
	apperrors "ordersvc/internal/errors"
)

type productPayload struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

type stockChangeRequest struct {
	Quantity    int    `json:"quantity"`
	OperationID string `json:"operationId"`
}

type stockConflictResponse struct {
	Name      string `json:"name"`
	Available int    `json:"available"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg config.CatalogConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// FetchProduct returns the catalog's current view of a product.
func (c *Client) FetchProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	body, err := c.getProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	var p productPayload
	if err := json.Unmarshal(body, &p); err != nil {
		c.logger.Error("invalid product payload", zap.Int64("productId", productID), zap.Error(err))
		return nil, apperrors.NewCatalogUnavailableError(productID, fmt.Errorf("decoding product: %w", err))
	}

	return &domain.Product{
		ID:          productID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
	}, nil
}

// UpdateStock re-fetches the product, overwrites its stock and PUTs the full record back.
// Fields this service does not model are sent back unchanged.
// The read-modify-write is not atomic: a concurrent writer between GET and PUT is lost.
func (c *Client) UpdateStock(ctx context.Context, productID int64, newStock int) error {
	body, err := c.getProduct(ctx, productID)
	if err != nil {
		return err
	}

	var record map[string]json.RawMessage
	if err := json.Unmarshal(body, &record); err != nil {
		return apperrors.NewCatalogUnavailableError(productID, fmt.Errorf("decoding product: %w", err))
	}
	record["stock"] = json.RawMessage(strconv.Itoa(newStock))

	payload, err := json.Marshal(record)
	if err != nil {
		return apperrors.NewInternalError("encoding product", err)
	}

	resp, err := c.do(ctx, http.MethodPut, c.productURL(productID), payload)
	if err != nil {
		c.logger.Error("stock update failed", zap.Int64("productId", productID), zap.Error(err))
		return apperrors.NewCatalogUnavailableError(productID, err)
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NewProductNotFoundError(productID)
	case resp.StatusCode >= 300:
		return apperrors.NewCatalogUnavailableError(productID, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	c.logger.Info("stock updated", zap.Int64("productId", productID), zap.Int("stock", newStock))
	return nil
}

// DecrementStock asks the catalog to remove quantity units if at least that many remain.
func (c *Client) DecrementStock(ctx context.Context, productID int64, quantity int, operationID string) error {
	return c.changeStock(ctx, productID, "decrement", quantity, operationID)
}

func (c *Client) IncrementStock(ctx context.Context, productID int64, quantity int, operationID string) error {
	return c.changeStock(ctx, productID, "increment", quantity, operationID)
}

func (c *Client) changeStock(ctx context.Context, productID int64, action string, quantity int, operationID string) error {
	payload, err := json.Marshal(stockChangeRequest{Quantity: quantity, OperationID: operationID})
	if err != nil {
		return apperrors.NewInternalError("encoding stock change", err)
	}

	url := fmt.Sprintf("%s/stock/%s", c.productURL(productID), action)
	resp, err := c.do(ctx, http.MethodPost, url, payload)
	if err != nil {
		c.logger.Error("stock change failed", zap.Int64("productId", productID), zap.String("action", action), zap.Error(err))
		return apperrors.NewCatalogUnavailableError(productID, err)
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NewProductNotFoundError(productID)
	case resp.StatusCode == http.StatusConflict:
		var conflict stockConflictResponse
		_ = json.NewDecoder(resp.Body).Decode(&conflict)
		return apperrors.NewInsufficientStockError(productID, conflict.Name, conflict.Available, quantity)
	case resp.StatusCode >= 300:
		return apperrors.NewCatalogUnavailableError(productID, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	c.logger.Info("stock changed",
		zap.Int64("productId", productID),
		zap.String("action", action),
		zap.Int("quantity", quantity),
		zap.String("operationId", operationID),
	)
	return nil
}

func (c *Client) getProduct(ctx context.Context, productID int64) ([]byte, error) {
	start := time.Now()
	resp, err := c.do(ctx, http.MethodGet, c.productURL(productID), nil)
	if err != nil {
		c.logger.Error("catalog call failed", zap.Int64("productId", productID), zap.Error(err))
		return nil, apperrors.NewCatalogUnavailableError(productID, err)
	}
	defer drain(resp)

	c.logger.Debug("catalog call",
		zap.Int64("productId", productID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.NewProductNotFoundError(productID)
	case resp.StatusCode >= 300:
		return nil, apperrors.NewCatalogUnavailableError(productID, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewCatalogUnavailableError(productID, fmt.Errorf("reading body: %w", err))
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, apperrors.NewProductNotFoundError(productID)
	}

	return trimmed, nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	return c.httpClient.Do(req)
}

func (c *Client) productURL(productID int64) string {
	return fmt.Sprintf("%s/products/%d", c.baseURL, productID)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
