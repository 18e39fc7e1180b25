package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/go-pet-project/shop/internal/service"
	"go.uber.org/zap"
)

type ProductHandler struct {
	service service.ProductService
	logger  *zap.Logger
	timeout time.Duration
}

func NewProductHandler(service service.ProductService, logger *zap.Logger, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		service: service,
		logger:  logger,
		timeout: timeout,
	}
}

func (h *ProductHandler) FindByID(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Id is invalid")
	}

	product, err := h.service.FindByID(ctx, id)
	if err != nil {
		return writeError(ctx, c, h.logger, "find product", err)
	}

	return c.Status(fiber.StatusOK).JSON(product)
}

func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	limit, offset, ok := pagination(c)
	if !ok {
		return badRequest(c, "limit must be 1..100 and offset not negative")
	}

	products, total, err := h.service.List(ctx, limit, offset)
	if err != nil {
		return writeError(ctx, c, h.logger, "list products", err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"products":    products,
		"total_count": total,
	})
}
