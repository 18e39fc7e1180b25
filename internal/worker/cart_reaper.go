package worker

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

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

const aggregateCart = "cart"

// CartReaper releases carts nobody touched for ttl. Their lines hold
// reserved stock, which goes back to the products.
type CartReaper struct {
	pool        db.TxBeginner
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	outboxRepo  outbox.Repository
	logger      *zap.Logger
	metrics     *metrics.Metrics
	ttl         time.Duration
	interval    time.Duration
	batch       int
	now         func() time.Time
	tracer      trace.Tracer
}

func NewCartReaper(
	pool db.TxBeginner,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	outboxRepo outbox.Repository,
	logger *zap.Logger,
	m *metrics.Metrics,
	ttl, interval time.Duration,
	batch int,
) *CartReaper {
	return &CartReaper{
		pool:        pool,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		outboxRepo:  outboxRepo,
		logger:      logger,
		metrics:     m,
		ttl:         ttl,
		interval:    interval,
		batch:       batch,
		now:         time.Now,
		tracer:      otel.Tracer("cart-reaper"),
	}
}

func (r *CartReaper) Start(ctx context.Context) {
	mylogger.Info(
		ctx,
		r.logger,
		"Starting cart reaper",
		zap.Duration("ttl", r.ttl),
		zap.Duration("interval", r.interval),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mylogger.Info(ctx, r.logger, "Cart reaper stopping")
			return
		case <-ticker.C:
			if _, err := r.ReapOnce(ctx); err != nil {
				mylogger.Error(ctx, r.logger, "Error reaping carts", zap.Error(err))
			}
		}
	}
}

// ReapOnce expires one batch of carts in a single transaction and returns
// how many were removed.
func (r *CartReaper) ReapOnce(ctx context.Context) (int, error) {
	ctx, span := r.tracer.Start(ctx, "CartReaper.ReapOnce")
	defer span.End()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer db.Rollback(ctx, tx, r.logger)

	carts, err := r.cartRepo.ListExpiredForUpdate(ctx, tx, r.now().Add(-r.ttl), r.batch)
	if err != nil {
		return 0, err
	}

	if len(carts) == 0 {
		return 0, nil
	}

	lines := make(map[int64][]domain.EventItem, len(carts))
	for _, cart := range carts {
		items, err := r.cartRepo.ListItems(ctx, tx, cart.ID)
		if err != nil {
			return 0, err
		}

		lines[cart.ID] = make([]domain.EventItem, 0, len(items))
		for _, item := range items {
			lines[cart.ID] = append(lines[cart.ID], domain.EventItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			})
		}
	}

	// same product lock order as checkout
	for _, restock := range restockOrder(lines) {
		if err := r.productRepo.IncreaseStock(ctx, tx, restock.ProductID, restock.Quantity); err != nil {
			return 0, err
		}
	}

	for _, cart := range carts {
		if err := r.cartRepo.DeleteItems(ctx, tx, cart.ID); err != nil {
			return 0, err
		}

		if err := r.cartRepo.Delete(ctx, tx, cart.ID); err != nil {
			return 0, err
		}

		event, err := outbox.NewEvent(
			domain.TopicCartEvents,
			aggregateCart,
			cart.ID,
			domain.EventCartExpired,
			domain.CartExpiredEvent{
				CartID: cart.ID,
				UserID: cart.UserID,
				Items:  lines[cart.ID],
			},
		)
		if err != nil {
			return 0, err
		}

		if err := r.outboxRepo.SaveEvent(ctx, tx, event); err != nil {
			return 0, fmt.Errorf("failed to save outbox event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to commit reaped carts: %w", err)
	}

	r.metrics.CartsReaped.Add(float64(len(carts)))
	span.SetAttributes(attribute.Int("reaped", len(carts)))

	mylogger.Info(ctx, r.logger, "Expired carts released", zap.Int("count", len(carts)))

	return len(carts), nil
}

// restockOrder folds the lines of every reaped cart into one quantity per
// product, ascending by product id.
func restockOrder(lines map[int64][]domain.EventItem) []domain.EventItem {
	totals := make(map[int64]int64)
	for _, items := range lines {
		for _, item := range items {
			totals[item.ProductID] += item.Quantity
		}
	}

	result := make([]domain.EventItem, 0, len(totals))
	for productID, quantity := range totals {
		result = append(result, domain.EventItem{ProductID: productID, Quantity: quantity})
	}

	slices.SortFunc(result, func(a, b domain.EventItem) int {
		return cmp.Compare(a.ProductID, b.ProductID)
	})

	return result
}
