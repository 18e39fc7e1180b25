package handler

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/go-pet-project/shop/internal/domain"
	"github.com/sakashimaa/go-pet-project/shop/internal/mylogger"
	"github.com/sakashimaa/go-pet-project/shop/internal/service"
	"github.com/sakashimaa/go-pet-project/shop/internal/utils"
	"go.uber.org/zap"
)

type AddressHandler struct {
	service  service.AddressService
	validate *validator.Validate
	logger   *zap.Logger
	timeout  time.Duration
}

func NewAddressHandler(service service.AddressService, logger *zap.Logger, timeout time.Duration) *AddressHandler {
	return &AddressHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
		timeout:  timeout,
	}
}

type CreateAddressInput struct {
	Street       string `json:"street" validate:"required,min=5,max=255"`
	BuildingName string `json:"building_name" validate:"required,min=5,max=255"`
	City         string `json:"city" validate:"required,min=2,max=100"`
	State        string `json:"state" validate:"required,min=2,max=100"`
	Country      string `json:"country" validate:"required,min=2,max=100"`
	Pincode      string `json:"pincode" validate:"required,min=5,max=20"`
}

func (h *AddressHandler) Create(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	identity, ok := identityOf(c)
	if !ok {
		return unauthorized(c)
	}

	input := new(CreateAddressInput)
	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(ctx, h.logger, "failed to parse body in create address", zap.Error(err))
		return badRequest(c, "error parsing body")
	}

	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": utils.FormatValidationError(err),
		})
	}

	address, err := h.service.Create(ctx, identity, &domain.Address{
		Street:       input.Street,
		BuildingName: input.BuildingName,
		City:         input.City,
		State:        input.State,
		Country:      input.Country,
		Pincode:      input.Pincode,
	})
	if err != nil {
		return writeError(ctx, c, h.logger, "create address", err)
	}

	return c.Status(fiber.StatusCreated).JSON(address)
}

func (h *AddressHandler) List(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	identity, ok := identityOf(c)
	if !ok {
		return unauthorized(c)
	}

	addresses, err := h.service.List(ctx, identity)
	if err != nil {
		return writeError(ctx, c, h.logger, "list addresses", err)
	}

	return c.Status(fiber.StatusOK).JSON(addresses)
}

func (h *AddressHandler) Get(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	identity, ok := identityOf(c)
	if !ok {
		return unauthorized(c)
	}

	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Id is invalid")
	}

	address, err := h.service.Get(ctx, identity, id)
	if err != nil {
		return writeError(ctx, c, h.logger, "get address", err)
	}

	return c.Status(fiber.StatusOK).JSON(address)
}
