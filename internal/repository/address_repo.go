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

type AddressRepository interface {
	Create(ctx context.Context, address *domain.Address) error
	ListByUser(ctx context.Context, userID int64) ([]domain.Address, error)
	GetByID(ctx context.Context, id, userID int64) (*domain.Address, error)
	GetForShipping(ctx context.Context, tx pgx.Tx, id, userID int64) (*domain.Address, error)
}

type addressRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewAddressRepository(pool *pgxpool.Pool, logger *zap.Logger) AddressRepository {
	return &addressRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("repository/address_repo"),
	}
}

const addressColumns = `id, user_id, street, building_name, city, state, country, pincode, created_at`

func scanAddress(row pgx.Row, a *domain.Address) error {
	return row.Scan(
		&a.ID,
		&a.UserID,
		&a.Street,
		&a.BuildingName,
		&a.City,
		&a.State,
		&a.Country,
		&a.Pincode,
		&a.CreatedAt,
	)
}

func (r *addressRepo) Create(ctx context.Context, address *domain.Address) error {
	ctx, span := r.tracer.Start(ctx, "AddressRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", address.UserID),
	)

	query := `
		INSERT INTO addresses (user_id, street, building_name, city, state, country, pincode)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(
		ctx,
		query,
		address.UserID,
		address.Street,
		address.BuildingName,
		address.City,
		address.State,
		address.Country,
		address.Pincode,
	).Scan(&address.ID, &address.CreatedAt)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to insert address",
			zap.Int64("user_id", address.UserID),
			zap.Error(err),
		)

		return fmt.Errorf("failed to insert address: %w", err)
	}

	return nil
}

func (r *addressRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Address, error) {
	ctx, span := r.tracer.Start(ctx, "AddressRepository.ListByUser")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
	)

	query := `SELECT ` + addressColumns + `
		FROM addresses
		WHERE user_id = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query addresses: %w", err)
	}
	defer rows.Close()

	addresses := make([]domain.Address, 0)
	for rows.Next() {
		var a domain.Address
		if err := scanAddress(rows, &a); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addresses = append(addresses, a)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return addresses, nil
}

func (r *addressRepo) GetByID(ctx context.Context, id, userID int64) (*domain.Address, error) {
	ctx, span := r.tracer.Start(ctx, "AddressRepository.GetByID")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("id", id),
		attribute.Int64("user_id", userID),
	)

	query := `SELECT ` + addressColumns + `
		FROM addresses
		WHERE id = $1 AND user_id = $2
	`

	var a domain.Address
	if err := scanAddress(r.pool.QueryRow(ctx, query, id, userID), &a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAddressNotFound
		}

		span.RecordError(err)
		return nil, fmt.Errorf("failed to query address: %w", err)
	}

	return &a, nil
}

// GetForShipping reads the address inside a checkout and keeps it from
// being changed or removed until tx ends.
func (r *addressRepo) GetForShipping(ctx context.Context, tx pgx.Tx, id, userID int64) (*domain.Address, error) {
	ctx, span := r.tracer.Start(ctx, "AddressRepository.GetForShipping")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("id", id),
		attribute.Int64("user_id", userID),
	)

	query := `SELECT ` + addressColumns + `
		FROM addresses
		WHERE id = $1 AND user_id = $2
		FOR SHARE
	`

	var a domain.Address
	if err := scanAddress(tx.QueryRow(ctx, query, id, userID), &a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAddressNotFound
		}

		span.RecordError(err)
		return nil, fmt.Errorf("failed to query address: %w", err)
	}

	return &a, nil
}
