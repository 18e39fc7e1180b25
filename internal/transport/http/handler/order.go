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

type OrderHandler struct {
	service  service.OrderService
	validate *validator.Validate
	logger   *zap.Logger
	timeout  time.Duration
}

func NewOrderHandler(service service.OrderService, logger *zap.Logger, timeout time.Duration) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
		timeout:  timeout,
	}
}

type PlaceOrderInput struct {
	AddressID         int64  `json:"address_id" validate:"required,gt=0"`
	PgName            string `json:"pg_name" validate:"required,max=100"`
	PgPaymentID       string `json:"pg_payment_id" validate:"required,max=255"`
	PgStatus          string `json:"pg_status" validate:"required,max=50"`
	PgResponseMessage string `json:"pg_response_message" validate:"max=1000"`
}

func (h *OrderHandler) PlaceOrder(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	identity, ok := identityOf(c)
	if !ok {
		return unauthorized(c)
	}

	paymentMethod := c.Params("paymentMethod")
	if paymentMethod == "" {
		return badRequest(c, "paymentMethod is required")
	}

	input := new(PlaceOrderInput)
	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(ctx, h.logger, "failed to parse body in place order", zap.Error(err))
		return badRequest(c, "error parsing body")
	}

	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": utils.FormatValidationError(err),
		})
	}

	order, err := h.service.PlaceOrder(ctx, identity, domain.PlaceOrderInput{
		AddressID:         input.AddressID,
		PaymentMethod:     paymentMethod,
		PgName:            input.PgName,
		PgPaymentID:       input.PgPaymentID,
		PgStatus:          input.PgStatus,
		PgResponseMessage: input.PgResponseMessage,
	})
	if err != nil {
		return writeError(ctx, c, h.logger, "place order", err)
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
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

	order, err := h.service.GetOrder(ctx, identity, id)
	if err != nil {
		return writeError(ctx, c, h.logger, "get order", err)
	}

	return c.Status(fiber.StatusOK).JSON(order)
}

func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	identity, ok := identityOf(c)
	if !ok {
		return unauthorized(c)
	}

	limit, offset, ok := pagination(c)
	if !ok {
		return badRequest(c, "limit must be 1..100 and offset not negative")
	}

	orders, total, err := h.service.ListOrders(ctx, identity, limit, offset)
	if err != nil {
		return writeError(ctx, c, h.logger, "list orders", err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"orders":      orders,
		"total_count": total,
	})
}
