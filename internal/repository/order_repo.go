package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/go-pet-project/shop/internal/domain"
	"github.com/sakashimaa/go-pet-project/shop/internal/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type OrderRepository interface {
	CreatePayment(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error
	CreateOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	GetByID(ctx context.Context, id, userID int64) (*domain.Order, error)
	ListByUser(ctx context.Context, userID, limit, offset int64) ([]domain.Order, int64, error)
}

type orderRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewOrderRepository(pool *pgxpool.Pool, logger *zap.Logger) OrderRepository {
	return &orderRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("repository/order_repo"),
	}
}

func (r *orderRepo) CreatePayment(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.CreatePayment")
	defer span.End()

	span.SetAttributes(
		attribute.String("payment_method", payment.PaymentMethod),
		attribute.String("pg_name", payment.PgName),
	)

	query := `
		INSERT INTO payments (payment_method, pg_name, pg_payment_id, pg_status, pg_response_message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	if err := tx.QueryRow(
		ctx,
		query,
		payment.PaymentMethod,
		payment.PgName,
		payment.PgPaymentID,
		payment.PgStatus,
		payment.PgResponseMessage,
	).Scan(&payment.ID); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to insert payment",
			zap.Error(err),
		)

		return fmt.Errorf("failed to insert payment: %w", err)
	}

	return nil
}

// CreateOrder inserts the order row and then all of its items in a single
// batch round trip.
func (r *orderRepo) CreateOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.CreateOrder")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", order.UserID),
		attribute.Int("items_count", len(order.Items)),
	)

	queryOrder := `
		INSERT INTO orders (user_id, email, order_date, status, total_amount, address_id, payment_id)
		VALUES ($1, $2, NOW(), $3, $4, $5, $6)
		RETURNING id, order_date
	`

	if err := tx.QueryRow(
		ctx,
		queryOrder,
		order.UserID,
		order.Email,
		string(order.Status),
		order.TotalAmount,
		order.AddressID,
		order.PaymentID,
	).Scan(
		&order.ID,
		&order.OrderDate,
	); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to insert order",
			zap.Error(err),
		)

		return fmt.Errorf("failed to insert order: %w", err)
	}

	queryItem := `
		INSERT INTO order_items (order_id, product_id, product_name, quantity, discount, ordered_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	batch := &pgx.Batch{}
	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID

		batch.Queue(
			queryItem,
			item.OrderID,
			item.ProductID,
			item.ProductName,
			item.Quantity,
			item.Discount,
			item.OrderedPrice,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&item.ID)
		})
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to insert order items",
			zap.Int64("order_id", order.ID),
			zap.Error(err),
		)

		return fmt.Errorf("failed to insert order items: %w", err)
	}

	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id, userID int64) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByID")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", id),
		attribute.Int64("user_id", userID),
	)

	query := `
		SELECT o.id, o.user_id, o.email, o.order_date, o.status, o.total_amount, o.address_id, o.payment_id,
			p.id, p.payment_method, p.pg_name, p.pg_payment_id, p.pg_status, p.pg_response_message
		FROM orders o
		JOIN payments p ON p.id = o.payment_id
		WHERE o.id = $1 AND o.user_id = $2
	`

	var order domain.Order
	var payment domain.Payment
	if err := r.pool.QueryRow(ctx, query, id, userID).Scan(
		&order.ID,
		&order.UserID,
		&order.Email,
		&order.OrderDate,
		&order.Status,
		&order.TotalAmount,
		&order.AddressID,
		&order.PaymentID,
		&payment.ID,
		&payment.PaymentMethod,
		&payment.PgName,
		&payment.PgPaymentID,
		&payment.PgStatus,
		&payment.PgResponseMessage,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		span.RecordError(err)
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	order.Payment = &payment

	items, err := r.itemsOf(ctx, []int64{order.ID})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	order.Items = items[order.ID]

	return &order, nil
}

func (r *orderRepo) ListByUser(ctx context.Context, userID, limit, offset int64) ([]domain.Order, int64, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ListByUser")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("limit", limit),
		attribute.Int64("offset", offset),
	)

	query := `
		SELECT id, user_id, email, order_date, status, total_amount, address_id, payment_id
		FROM orders
		WHERE user_id = $1
		ORDER BY order_date DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID,
			&o.UserID,
			&o.Email,
			&o.OrderDate,
			&o.Status,
			&o.TotalAmount,
			&o.AddressID,
			&o.PaymentID,
		); err != nil {
			span.RecordError(err)
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}

		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	items, err := r.itemsOf(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return nil, 0, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	return orders, total, nil
}

func (r *orderRepo) itemsOf(ctx context.Context, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	result := make(map[int64][]domain.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT id, order_id, product_id, product_name, quantity, discount, ordered_price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, id
	`

	rows, err := r.pool.Query(ctx, query, orderIDs)
	if err != nil {
		mylogger.Error(
			ctx,
			r.logger,
			"Failed to query order_items",
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.Quantity,
			&item.Discount,
			&item.OrderedPrice,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}

		result[item.OrderID] = append(result[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
