package service

import (
	"context"
	"errors"

	"github.com/sakashimaa/go-pet-project/shop/internal/domain"
	"github.com/sakashimaa/go-pet-project/shop/internal/mylogger"
	"github.com/sakashimaa/go-pet-project/shop/internal/repository"
	"go.uber.org/zap"
)

type AddressService interface {
	Create(ctx context.Context, identity domain.Identity, address *domain.Address) (*domain.Address, error)
	List(ctx context.Context, identity domain.Identity) ([]domain.Address, error)
	Get(ctx context.Context, identity domain.Identity, id int64) (*domain.Address, error)
}

type addressService struct {
	repo   repository.AddressRepository
	logger *zap.Logger
}

func NewAddressService(repo repository.AddressRepository, logger *zap.Logger) AddressService {
	return &addressService{
		repo:   repo,
		logger: logger,
	}
}

func (s *addressService) Create(ctx context.Context, identity domain.Identity, address *domain.Address) (*domain.Address, error) {
	address.UserID = identity.UserID

	if err := s.repo.Create(ctx, address); err != nil {
		return nil, err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Address created",
		zap.Int64("address_id", address.ID),
		zap.Int64("user_id", address.UserID),
	)

	return address, nil
}

func (s *addressService) List(ctx context.Context, identity domain.Identity) ([]domain.Address, error) {
	return s.repo.ListByUser(ctx, identity.UserID)
}

func (s *addressService) Get(ctx context.Context, identity domain.Identity, id int64) (*domain.Address, error) {
	address, err := s.repo.GetByID(ctx, id, identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrAddressNotFound) {
			return nil, domain.NotFound("Address not found with addressId: %d", id)
		}

		return nil, err
	}

	return address, nil
}
