package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
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

const (
	opAddItem        = "add_item"
	opAdjustQuantity = "adjust_quantity"
	opRemoveItem     = "remove_item"
)

// CartService keeps a cart and the stock it holds in step. Stock is
// reserved when a line is added or grown and returned when it shrinks or
// goes away, so the cart total and product quantities move together in
// one transaction.
type CartService interface {
	AddItem(ctx context.Context, identity domain.Identity, productID, quantity int64) (*domain.CartView, error)
	AdjustQuantity(ctx context.Context, identity domain.Identity, productID int64, delta int64) (*domain.CartView, error)
	RemoveItem(ctx context.Context, identity domain.Identity, cartID, productID int64) (*domain.CartView, error)
	GetCart(ctx context.Context, identity domain.Identity) (*domain.CartView, error)
}

type cartService struct {
	pool        db.TxBeginner
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	outboxRepo  outbox.Repository
	logger      *zap.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

func NewCartService(
	pool db.TxBeginner,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	outboxRepo outbox.Repository,
	logger *zap.Logger,
	m *metrics.Metrics,
) CartService {
	return &cartService{
		pool:        pool,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		outboxRepo:  outboxRepo,
		logger:      logger,
		metrics:     m,
		tracer:      otel.Tracer("cart_service"),
	}
}

func (s *cartService) AddItem(ctx context.Context, identity domain.Identity, productID, quantity int64) (view *domain.CartView, err error) {
	ctx, span := s.tracer.Start(ctx, "CartService.AddItem")
	defer span.End()
	defer s.observe(opAddItem, &err)

	span.SetAttributes(
		attribute.Int64("user_id", identity.UserID),
		attribute.Int64("product_id", productID),
		attribute.Int64("quantity", quantity),
	)

	if quantity <= 0 {
		return nil, domain.InvalidInput("quantity must be greater than 0")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Failed to begin transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer db.Rollback(ctx, tx, s.logger)

	cart, err := s.openCart(ctx, tx, identity)
	if err != nil {
		return nil, err
	}

	if cart.Items, err = s.cartRepo.ListItems(ctx, tx, cart.ID); err != nil {
		return nil, err
	}

	product, err := s.lockProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if product.DeletedAt != nil {
		return nil, domain.NotFound("Product not found with productId: %d", productID)
	}

	if _, exists := cart.FindItem(productID); exists {
		mylogger.Warn(ctx, s.logger, "Product already in cart",
			zap.Int64("cart_id", cart.ID),
			zap.Int64("product_id", productID),
		)

		return nil, domain.Conflict("Product %s already exists in the cart", product.Name)
	}

	if product.StockQuantity == 0 {
		return nil, domain.Conflict("%s is not available", product.Name)
	}

	if product.StockQuantity < quantity {
		return nil, domain.Conflict("Please order %s in a quantity less than or equal to %d", product.Name, product.StockQuantity)
	}

	item := domain.CartItem{
		CartID:       cart.ID,
		ProductID:    product.ID,
		ProductName:  product.Name,
		Quantity:     quantity,
		ProductPrice: product.Price,
		Discount:     product.Discount,
	}

	if err := s.cartRepo.InsertItem(ctx, tx, &item); err != nil {
		if errors.Is(err, repository.ErrDuplicateCartItem) {
			return nil, domain.Conflict("Product %s already exists in the cart", product.Name)
		}

		return nil, err
	}

	if err := s.productRepo.DecreaseStock(ctx, tx, product.ID, quantity); err != nil {
		if errors.Is(err, repository.ErrInsufficientStock) {
			return nil, domain.Conflict("Please order %s in a quantity less than or equal to %d", product.Name, product.StockQuantity)
		}

		return nil, err
	}

	cart.Items = append(cart.Items, item)

	if err := s.saveTotal(ctx, tx, cart); err != nil {
		return nil, err
	}

	if err := s.stockChanged(ctx, tx, product.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Product added to cart",
		zap.Int64("cart_id", cart.ID),
		zap.Int64("product_id", productID),
		zap.Int64("quantity", quantity),
		zap.String("total", cart.TotalPrice.String()),
	)

	return cart.ToView(), nil
}

func (s *cartService) AdjustQuantity(ctx context.Context, identity domain.Identity, productID int64, delta int64) (view *domain.CartView, err error) {
	ctx, span := s.tracer.Start(ctx, "CartService.AdjustQuantity")
	defer span.End()
	defer s.observe(opAdjustQuantity, &err)

	span.SetAttributes(
		attribute.Int64("user_id", identity.UserID),
		attribute.Int64("product_id", productID),
		attribute.Int64("delta", delta),
	)

	if delta != 1 && delta != -1 {
		return nil, domain.InvalidInput("quantity can only change by one unit at a time")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Failed to begin transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer db.Rollback(ctx, tx, s.logger)

	cart, err := s.lockCart(ctx, tx, identity.UserID)
	if err != nil {
		return nil, err
	}

	product, err := s.lockProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	item, ok := cart.FindItem(productID)
	if !ok {
		return nil, domain.NotFound("Product %s not available in the cart", product.Name)
	}

	newQuantity := item.Quantity + delta

	if delta > 0 {
		if !product.IsAvailable() {
			return nil, domain.Conflict("%s is not available", product.Name)
		}

		if err := s.productRepo.DecreaseStock(ctx, tx, productID, delta); err != nil {
			if errors.Is(err, repository.ErrInsufficientStock) {
				return nil, domain.Conflict("%s is not available", product.Name)
			}

			return nil, err
		}
	} else {
		if err := s.productRepo.IncreaseStock(ctx, tx, productID, -delta); err != nil {
			return nil, err
		}
	}

	if newQuantity == 0 {
		if err := s.cartRepo.DeleteItem(ctx, tx, cart.ID, productID); err != nil {
			return nil, err
		}

		cart.Items = withoutItem(cart.Items, productID)
	} else {
		item.Quantity = newQuantity
		item.ProductPrice = product.Price
		item.Discount = product.Discount

		if err := s.cartRepo.UpdateItem(ctx, tx, item); err != nil {
			return nil, err
		}
	}

	if err := s.saveTotal(ctx, tx, cart); err != nil {
		return nil, err
	}

	if err := s.stockChanged(ctx, tx, productID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Cart quantity adjusted",
		zap.Int64("cart_id", cart.ID),
		zap.Int64("product_id", productID),
		zap.Int64("new_quantity", newQuantity),
		zap.String("total", cart.TotalPrice.String()),
	)

	return cart.ToView(), nil
}

func (s *cartService) RemoveItem(ctx context.Context, identity domain.Identity, cartID, productID int64) (view *domain.CartView, err error) {
	ctx, span := s.tracer.Start(ctx, "CartService.RemoveItem")
	defer span.End()
	defer s.observe(opRemoveItem, &err)

	span.SetAttributes(
		attribute.Int64("user_id", identity.UserID),
		attribute.Int64("cart_id", cartID),
		attribute.Int64("product_id", productID),
	)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Failed to begin transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer db.Rollback(ctx, tx, s.logger)

	cart, err := s.lockCart(ctx, tx, identity.UserID)
	if err != nil {
		return nil, err
	}

	// another user's cart id is reported exactly like a missing one
	if cart.ID != cartID {
		return nil, domain.NotFound("Cart not found with cartId: %d", cartID)
	}

	item, ok := cart.FindItem(productID)
	if !ok {
		return nil, domain.NotFound("Cart item not found with productId: %d", productID)
	}

	if err := s.productRepo.IncreaseStock(ctx, tx, productID, item.Quantity); err != nil {
		return nil, err
	}

	if err := s.cartRepo.DeleteItem(ctx, tx, cart.ID, productID); err != nil {
		return nil, err
	}

	name := item.ProductName
	cart.Items = withoutItem(cart.Items, productID)

	if err := s.saveTotal(ctx, tx, cart); err != nil {
		return nil, err
	}

	if err := s.stockChanged(ctx, tx, productID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Product removed from the cart",
		zap.Int64("cart_id", cart.ID),
		zap.String("product", name),
	)

	return cart.ToView(), nil
}

func (s *cartService) GetCart(ctx context.Context, identity domain.Identity) (*domain.CartView, error) {
	ctx, span := s.tracer.Start(ctx, "CartService.GetCart")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", identity.UserID),
	)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer db.Rollback(ctx, tx, s.logger)

	cart, err := s.cartRepo.GetByUser(ctx, tx, identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			return nil, domain.NotFound("No cart exists for user %d", identity.UserID)
		}

		return nil, err
	}

	if cart.Items, err = s.cartRepo.ListItems(ctx, tx, cart.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return cart.ToView(), nil
}

// openCart gets or creates the caller's cart. A cart deleted by a checkout
// or the reaper between the upsert and the lock is created again once.
func (s *cartService) openCart(ctx context.Context, tx pgx.Tx, identity domain.Identity) (*domain.Cart, error) {
	for attempt := 0; ; attempt++ {
		cart, err := s.cartRepo.GetOrCreateForUpdate(ctx, tx, identity)
		if err == nil {
			return cart, nil
		}

		if !errors.Is(err, repository.ErrCartNotFound) {
			return nil, fmt.Errorf("failed to resolve cart: %w", err)
		}

		if attempt > 0 {
			mylogger.Warn(ctx, s.logger, "Cart vanished twice while opening", zap.Int64("user_id", identity.UserID))
			return nil, domain.Conflict("Cart is being modified, please retry")
		}

		mylogger.Debug(ctx, s.logger, "Cart removed concurrently, recreating", zap.Int64("user_id", identity.UserID))
	}
}

// stockChanged queues a ProductUpdated event so cached copies of the product
// are evicted once the reservation commits.
func (s *cartService) stockChanged(ctx context.Context, tx pgx.Tx, productID int64) error {
	event, err := outbox.NewEvent(
		domain.TopicProductEvents,
		"product",
		productID,
		domain.EventProductUpdated,
		domain.ProductChangedEvent{ProductID: productID},
	)
	if err != nil {
		return err
	}

	if err := s.outboxRepo.SaveEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	return nil
}

// lockCart loads the caller's cart with its items under a row lock.
func (s *cartService) lockCart(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Cart, error) {
	cart, err := s.cartRepo.GetByUserForUpdate(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			mylogger.Warn(ctx, s.logger, "Cart not found", zap.Int64("user_id", userID))
			return nil, domain.NotFound("Cart not found for user %d", userID)
		}

		return nil, err
	}

	if cart.Items, err = s.cartRepo.ListItems(ctx, tx, cart.ID); err != nil {
		return nil, err
	}

	return cart, nil
}

func (s *cartService) lockProduct(ctx context.Context, tx pgx.Tx, productID int64) (*domain.Product, error) {
	product, err := s.productRepo.GetByIDForUpdate(ctx, tx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			mylogger.Warn(ctx, s.logger, "Product not found", zap.Int64("product_id", productID))
			return nil, domain.NotFound("Product not found with productId: %d", productID)
		}

		return nil, err
	}

	return product, nil
}

func (s *cartService) saveTotal(ctx context.Context, tx pgx.Tx, cart *domain.Cart) error {
	cart.CalculateTotal()

	return s.cartRepo.UpdateTotal(ctx, tx, cart.ID, cart.TotalPrice)
}

func (s *cartService) observe(operation string, err *error) {
	s.metrics.CartMutations.WithLabelValues(operation, metrics.Result(*err)).Inc()
}

func withoutItem(items []domain.CartItem, productID int64) []domain.CartItem {
	result := make([]domain.CartItem, 0, len(items))
	for _, item := range items {
		if item.ProductID != productID {
			result = append(result, item)
		}
	}

	return result
}
