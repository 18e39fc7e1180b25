package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sakashimaa/go-pet-project/shop/internal/domain"
	"github.com/sakashimaa/go-pet-project/shop/internal/mylogger"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CartRepository never cascades: items and the cart row are written and
// deleted by explicit calls.
type CartRepository interface {
	GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, identity domain.Identity) (*domain.Cart, error)
	GetByUserForUpdate(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Cart, error)
	GetByUser(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Cart, error)
	ListItems(ctx context.Context, tx pgx.Tx, cartID int64) ([]domain.CartItem, error)
	InsertItem(ctx context.Context, tx pgx.Tx, item *domain.CartItem) error
	UpdateItem(ctx context.Context, tx pgx.Tx, item *domain.CartItem) error
	DeleteItem(ctx context.Context, tx pgx.Tx, cartID, productID int64) error
	DeleteItems(ctx context.Context, tx pgx.Tx, cartID int64) error
	UpdateTotal(ctx context.Context, tx pgx.Tx, cartID int64, total decimal.Decimal) error
	Delete(ctx context.Context, tx pgx.Tx, cartID int64) error
	ListExpiredForUpdate(ctx context.Context, tx pgx.Tx, before time.Time, limit int) ([]domain.Cart, error)
}

type cartRepo struct {
	tracer trace.Tracer
	logger *zap.Logger
}

func NewCartRepository(logger *zap.Logger) CartRepository {
	return &cartRepo{
		logger: logger,
		tracer: otel.Tracer("repository/cart_repo"),
	}
}

const cartColumns = `id, user_id, email, total_price, created_at, updated_at`

func scanCart(row pgx.Row, c *domain.Cart) error {
	return row.Scan(
		&c.ID,
		&c.UserID,
		&c.Email,
		&c.TotalPrice,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
}

// GetOrCreateForUpdate returns the user's cart, creating it if needed, and
// holds its row lock until tx ends. The no-op update makes the statement wait
// on a cart locked by a checkout or the reaper; if that transaction deletes
// the row, the insert is retried and a fresh cart comes back.
func (r *cartRepo) GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, identity domain.Identity) (*domain.Cart, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.GetOrCreateForUpdate")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", identity.UserID),
	)

	query := `
		INSERT INTO carts (user_id, email, total_price)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = carts.updated_at
		RETURNING ` + cartColumns

	var cart domain.Cart
	if err := scanCart(tx.QueryRow(ctx, query, identity.UserID, identity.Email), &cart); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to create cart",
			zap.Int64("user_id", identity.UserID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	return &cart, nil
}

func (r *cartRepo) GetByUserForUpdate(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Cart, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.GetByUserForUpdate")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
	)

	query := `SELECT ` + cartColumns + `
		FROM carts
		WHERE user_id = $1
		FOR UPDATE
	`

	return r.getCart(ctx, span, tx, query, userID)
}

func (r *cartRepo) GetByUser(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Cart, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.GetByUser")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
	)

	query := `SELECT ` + cartColumns + `
		FROM carts
		WHERE user_id = $1
	`

	return r.getCart(ctx, span, tx, query, userID)
}

func (r *cartRepo) getCart(ctx context.Context, span trace.Span, tx pgx.Tx, query string, userID int64) (*domain.Cart, error) {
	var cart domain.Cart
	if err := scanCart(tx.QueryRow(ctx, query, userID), &cart); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to query cart",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to query cart: %w", err)
	}

	return &cart, nil
}

func (r *cartRepo) ListItems(ctx context.Context, tx pgx.Tx, cartID int64) ([]domain.CartItem, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.ListItems")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("cart_id", cartID),
	)

	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, p.name, ci.quantity, ci.product_price, ci.discount
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.product_id
	`

	rows, err := tx.Query(ctx, query, cartID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.CartItem, 0)
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(
			&item.ID,
			&item.CartID,
			&item.ProductID,
			&item.ProductName,
			&item.Quantity,
			&item.ProductPrice,
			&item.Discount,
		); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}

		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	span.SetAttributes(attribute.Int("items_count", len(items)))

	return items, nil
}

func (r *cartRepo) InsertItem(ctx context.Context, tx pgx.Tx, item *domain.CartItem) error {
	ctx, span := r.tracer.Start(ctx, "CartRepository.InsertItem")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("cart_id", item.CartID),
		attribute.Int64("product_id", item.ProductID),
		attribute.Int64("quantity", item.Quantity),
	)

	query := `
		INSERT INTO cart_items (cart_id, product_id, quantity, product_price, discount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := tx.QueryRow(
		ctx,
		query,
		item.CartID,
		item.ProductID,
		item.Quantity,
		item.ProductPrice,
		item.Discount,
	).Scan(&item.ID)
	if err != nil {
		var pgError *pgconn.PgError
		if errors.As(err, &pgError) && pgError.Code == uniqueViolation {
			return ErrDuplicateCartItem
		}

		span.RecordError(err)
		return fmt.Errorf("failed to insert cart item: %w", err)
	}

	return nil
}

func (r *cartRepo) UpdateItem(ctx context.Context, tx pgx.Tx, item *domain.CartItem) error {
	ctx, span := r.tracer.Start(ctx, "CartRepository.UpdateItem")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("cart_id", item.CartID),
		attribute.Int64("product_id", item.ProductID),
		attribute.Int64("quantity", item.Quantity),
	)

	query := `
		UPDATE cart_items
		SET quantity = $3, product_price = $4, discount = $5
		WHERE cart_id = $1 AND product_id = $2
	`

	commandTag, err := tx.Exec(
		ctx,
		query,
		item.CartID,
		item.ProductID,
		item.Quantity,
		item.ProductPrice,
		item.Discount,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update cart item: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrCartItemNotFound
	}

	return nil
}

func (r *cartRepo) DeleteItem(ctx context.Context, tx pgx.Tx, cartID, productID int64) error {
	ctx, span := r.tracer.Start(ctx, "CartRepository.DeleteItem")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("cart_id", cartID),
		attribute.Int64("product_id", productID),
	)

	query := `
		DELETE FROM cart_items
		WHERE cart_id = $1 AND product_id = $2
	`

	commandTag, err := tx.Exec(ctx, query, cartID, productID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete cart item: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrCartItemNotFound
	}

	return nil
}

func (r *cartRepo) DeleteItems(ctx context.Context, tx pgx.Tx, cartID int64) error {
	ctx, span := r.tracer.Start(ctx, "CartRepository.DeleteItems")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("cart_id", cartID),
	)

	commandTag, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete cart items: %w", err)
	}

	span.SetAttributes(attribute.Int64("deleted", commandTag.RowsAffected()))

	return nil
}

// UpdateTotal also bumps updated_at, which is what the reaper measures
// cart age from.
func (r *cartRepo) UpdateTotal(ctx context.Context, tx pgx.Tx, cartID int64, total decimal.Decimal) error {
	ctx, span := r.tracer.Start(ctx, "CartRepository.UpdateTotal")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("cart_id", cartID),
		attribute.String("total", total.String()),
	)

	query := `
		UPDATE carts
		SET total_price = $2, updated_at = NOW()
		WHERE id = $1
	`

	commandTag, err := tx.Exec(ctx, query, cartID, total)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update cart total: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrCartNotFound
	}

	return nil
}

func (r *cartRepo) Delete(ctx context.Context, tx pgx.Tx, cartID int64) error {
	ctx, span := r.tracer.Start(ctx, "CartRepository.Delete")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("cart_id", cartID),
	)

	commandTag, err := tx.Exec(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrCartNotFound
	}

	return nil
}

// ListExpiredForUpdate locks carts untouched since before. Rows locked by a
// live request are skipped and picked up on a later pass.
func (r *cartRepo) ListExpiredForUpdate(ctx context.Context, tx pgx.Tx, before time.Time, limit int) ([]domain.Cart, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.ListExpiredForUpdate")
	defer span.End()

	span.SetAttributes(
		attribute.String("before", before.Format(time.RFC3339)),
		attribute.Int("limit", limit),
	)

	query := `SELECT ` + cartColumns + `
		FROM carts
		WHERE updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`

	rows, err := tx.Query(ctx, query, before, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query expired carts: %w", err)
	}
	defer rows.Close()

	carts := make([]domain.Cart, 0)
	for rows.Next() {
		var cart domain.Cart
		if err := scanCart(rows, &cart); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan cart: %w", err)
		}

		carts = append(carts, cart)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return carts, nil
}
