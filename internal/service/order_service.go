package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sakashimaa/go-pet-project/shop/internal/db"
	"github.com/sakashimaa/go-pet-project/shop/internal/domain"
	"github.com/sakashimaa/go-pet-project/shop/internal/metrics"
	"github.com/sakashimaa/go-pet-project/shop/internal/mylogger"
	"github.com/sakashimaa/go-pet-project/shop/internal/outbox"
	"github.com/sakashimaa/go-pet-project/shop/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const aggregateOrder = "order"

type OrderService interface {
	PlaceOrder(ctx context.Context, identity domain.Identity, input domain.PlaceOrderInput) (*domain.OrderView, error)
	GetOrder(ctx context.Context, identity domain.Identity, orderID int64) (*domain.OrderView, error)
	ListOrders(ctx context.Context, identity domain.Identity, limit, offset int64) ([]domain.OrderView, int64, error)
}

type orderService struct {
	pool        db.TxBeginner
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	addressRepo repository.AddressRepository
	orderRepo   repository.OrderRepository
	outboxRepo  outbox.Repository
	logger      *zap.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

func NewOrderService(
	pool db.TxBeginner,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	addressRepo repository.AddressRepository,
	orderRepo repository.OrderRepository,
	outboxRepo outbox.Repository,
	logger *zap.Logger,
	m *metrics.Metrics,
) OrderService {
	return &orderService{
		pool:        pool,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		addressRepo: addressRepo,
		orderRepo:   orderRepo,
		outboxRepo:  outboxRepo,
		logger:      logger,
		metrics:     m,
		tracer:      otel.Tracer("order_service"),
	}
}

// PlaceOrder turns the caller's cart into an order. Stock was reserved
// when the lines were added, so checkout only confirms each product is
// still sellable before the cart is consumed.
func (s *orderService) PlaceOrder(ctx context.Context, identity domain.Identity, input domain.PlaceOrderInput) (view *domain.OrderView, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.PlaceOrder")
	defer span.End()
	defer func() {
		s.metrics.OrdersPlaced.WithLabelValues(metrics.Result(err)).Inc()
	}()

	span.SetAttributes(
		attribute.Int64("user_id", identity.UserID),
		attribute.Int64("address_id", input.AddressID),
		attribute.String("payment_method", input.PaymentMethod),
	)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Failed to begin transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer db.Rollback(ctx, tx, s.logger)

	cart, err := s.cartRepo.GetByUserForUpdate(ctx, tx, identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			mylogger.Warn(ctx, s.logger, "Checkout without a cart", zap.Int64("user_id", identity.UserID))
			return nil, domain.NotFound("Cart not found for user %d", identity.UserID)
		}

		return nil, err
	}

	if cart.Items, err = s.cartRepo.ListItems(ctx, tx, cart.ID); err != nil {
		return nil, err
	}

	if cart.IsEmpty() {
		mylogger.Warn(ctx, s.logger, "Checkout of an empty cart", zap.Int64("cart_id", cart.ID))
		return nil, domain.Conflict("Cart is empty")
	}

	address, err := s.addressRepo.GetForShipping(ctx, tx, input.AddressID, identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrAddressNotFound) {
			mylogger.Warn(ctx, s.logger, "Shipping address not found", zap.Int64("address_id", input.AddressID))
			return nil, domain.NotFound("Address not found with addressId: %d", input.AddressID)
		}

		return nil, err
	}

	// lines come back ordered by product id, so the locks below are taken
	// in the same order by every checkout
	for _, item := range cart.Items {
		product, err := s.productRepo.GetByIDForUpdate(ctx, tx, item.ProductID)
		if err != nil && !errors.Is(err, repository.ErrProductNotFound) {
			return nil, err
		}

		if err != nil || product.DeletedAt != nil {
			mylogger.Warn(
				ctx,
				s.logger,
				"Cart line no longer sellable",
				zap.Int64("cart_id", cart.ID),
				zap.Int64("product_id", item.ProductID),
			)

			return nil, domain.Conflict("Not enough stock for product: %s", item.ProductName)
		}
	}

	payment := &domain.Payment{
		PaymentMethod:     input.PaymentMethod,
		PgName:            input.PgName,
		PgPaymentID:       input.PgPaymentID,
		PgStatus:          input.PgStatus,
		PgResponseMessage: input.PgResponseMessage,
	}

	if err := s.orderRepo.CreatePayment(ctx, tx, payment); err != nil {
		return nil, err
	}

	order := &domain.Order{
		UserID:      identity.UserID,
		Email:       identity.Email,
		Status:      domain.OrderStatusAccepted,
		TotalAmount: cart.TotalPrice,
		AddressID:   address.ID,
		PaymentID:   payment.ID,
		Payment:     payment,
		Items:       make([]domain.OrderItem, 0, len(cart.Items)),
	}

	eventItems := make([]domain.EventItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		order.Items = append(order.Items, domain.OrderItemFromCart(item))
		eventItems = append(eventItems, domain.EventItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	if err := s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	if err := s.cartRepo.DeleteItems(ctx, tx, cart.ID); err != nil {
		return nil, err
	}

	if err := s.cartRepo.Delete(ctx, tx, cart.ID); err != nil {
		return nil, err
	}

	event, err := outbox.NewEvent(
		domain.TopicOrderEvents,
		aggregateOrder,
		order.ID,
		domain.EventOrderPlaced,
		domain.OrderPlacedEvent{
			OrderID:     order.ID,
			UserID:      order.UserID,
			Email:       order.Email,
			TotalAmount: order.TotalAmount,
			Items:       eventItems,
		},
	)
	if err != nil {
		return nil, err
	}

	if err := s.outboxRepo.SaveEvent(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("failed to save outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	amount, _ := order.TotalAmount.Float64()
	s.metrics.OrderAmount.Observe(amount)

	mylogger.Info(
		ctx,
		s.logger,
		"Order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", order.UserID),
		zap.Int("items", len(order.Items)),
		zap.String("total", order.TotalAmount.String()),
	)

	return order.ToView(), nil
}

func (s *orderService) GetOrder(ctx context.Context, identity domain.Identity, orderID int64) (*domain.OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.orderRepo.GetByID(ctx, orderID, identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, domain.NotFound("Order not found with orderId: %d", orderID)
		}

		return nil, err
	}

	return order.ToView(), nil
}

func (s *orderService) ListOrders(ctx context.Context, identity domain.Identity, limit, offset int64) ([]domain.OrderView, int64, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ListOrders")
	defer span.End()

	if limit <= 0 || offset < 0 {
		return nil, 0, domain.InvalidInput("limit must be positive and offset not negative")
	}

	orders, total, err := s.orderRepo.ListByUser(ctx, identity.UserID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	views := make([]domain.OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, *orders[i].ToView())
	}

	return views, total, nil
}
