package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sakashimaa/go-pet-project/shop/internal/db"
	"github.com/sakashimaa/go-pet-project/shop/internal/domain"
	"github.com/sakashimaa/go-pet-project/shop/internal/mylogger"
	"github.com/sakashimaa/go-pet-project/shop/internal/outbox"
	"github.com/sakashimaa/go-pet-project/shop/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundredPercent = decimal.NewFromInt(100)

// ProductService is the read side of the catalog plus the two writes the
// shop needs locally. Cart and order flows go to the repository directly.
type ProductService interface {
	Create(ctx context.Context, product *domain.Product) (int64, error)
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context, limit, offset int64) ([]domain.Product, int64, error)
	Delete(ctx context.Context, id int64) error
}

type productService struct {
	pool       db.TxBeginner
	repo       repository.ProductRepository
	outboxRepo outbox.Repository
	logger     *zap.Logger
}

func NewProductService(
	pool db.TxBeginner,
	repo repository.ProductRepository,
	outboxRepo outbox.Repository,
	logger *zap.Logger,
) ProductService {
	return &productService{
		pool:       pool,
		repo:       repo,
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

func (s *productService) Create(ctx context.Context, product *domain.Product) (int64, error) {
	if product.Price.IsNegative() {
		return 0, domain.InvalidInput("price must not be negative")
	}

	if product.Discount.IsNegative() || product.Discount.GreaterThan(hundredPercent) {
		return 0, domain.InvalidInput("discount must be between 0 and 100")
	}

	if product.StockQuantity < 0 {
		return 0, domain.InvalidInput("stock quantity must not be negative")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer db.Rollback(ctx, tx, s.logger)

	id, err := s.repo.Create(ctx, tx, product)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	mylogger.Info(ctx, s.logger, "Product created", zap.Int64("product_id", id))

	return id, nil
}

func (s *productService) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, domain.NotFound("Product not found with productId: %d", id)
		}

		return nil, err
	}

	return product, nil
}

func (s *productService) List(ctx context.Context, limit, offset int64) ([]domain.Product, int64, error) {
	if limit <= 0 || offset < 0 {
		return nil, 0, domain.InvalidInput("limit must be positive and offset not negative")
	}

	return s.repo.List(ctx, limit, offset)
}

// Delete hides the product from the catalog and announces it on
// product_events. Rows already in carts keep their reservation until
// checkout refuses them or the reaper frees them.
func (s *productService) Delete(ctx context.Context, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer db.Rollback(ctx, tx, s.logger)

	if err := s.repo.DeleteByID(ctx, tx, id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return domain.NotFound("Product not found with productId: %d", id)
		}

		return err
	}

	event, err := outbox.NewEvent(
		domain.TopicProductEvents,
		"product",
		id,
		domain.EventProductDeleted,
		domain.ProductChangedEvent{ProductID: id},
	)
	if err != nil {
		return err
	}

	if err := s.outboxRepo.SaveEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	mylogger.Info(ctx, s.logger, "Product deleted", zap.Int64("product_id", id))

	return nil
}
