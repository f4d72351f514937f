package order

import (
	"database/sql"

	"go.uber.org/zap"

	"ordersvc/internal/catalog"
	"ordersvc/internal/config"
	"ordersvc/internal/idempotency"
	"ordersvc/internal/order/controller"
	orderrepo "ordersvc/internal/order/repository"
	"ordersvc/internal/order/saga"
	"ordersvc/internal/order/service"
	"ordersvc/internal/order/usecase"
)

type Module struct {
	UseCase               *usecase.OrderUseCase
	OrderController       *controller.OrderController
	ClientOrderController *controller.ClientOrderController
}

func NewModule(db *sql.DB, cfg *config.Config, store idempotency.Store, publisher usecase.ChangePublisher, logger *zap.Logger) *Module {
	orderRepo := orderrepo.NewMySQLOrderRepository(db)
	lineRepo := orderrepo.NewMySQLOrderLineRepository(db)
	addressRepo := orderrepo.NewMySQLAddressRepository(db)

	catalogClient := catalog.NewClient(cfg.Catalog, logger)
	ledger := catalog.NewStockLedger(catalogClient, store, cfg.Catalog.AtomicStock, logger)

	uc := usecase.NewOrderUseCase(
		db,
		orderRepo,
		lineRepo,
		service.NewAddressResolver(addressRepo, logger),
		service.NewLineReconciler(catalogClient, cfg.Catalog.PrefetchConcurrency, logger),
		ledger,
		saga.NewOrchestrator(logger),
		publisher,
		logger,
		cfg.Order.MaxRetryAttempts,
		cfg.Order.TxTimeout,
	)

	return &Module{
		UseCase:               uc,
		OrderController:       controller.NewOrderController(uc, logger),
		ClientOrderController: controller.NewClientOrderController(uc, logger),
	}
}
