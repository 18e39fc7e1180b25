package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/go-pet-project/shop/internal/service"
	"go.uber.org/zap"
)

type CartHandler struct {
	service service.CartService
	logger  *zap.Logger
	timeout time.Duration
}

func NewCartHandler(service service.CartService, logger *zap.Logger, timeout time.Duration) *CartHandler {
	return &CartHandler{
		service: service,
		logger:  logger,
		timeout: timeout,
	}
}

func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	identity, ok := identityOf(c)
	if !ok {
		return unauthorized(c)
	}

	productID, ok := paramID(c, "productId")
	if !ok {
		return badRequest(c, "productId is invalid")
	}

	quantity, err := c.ParamsInt("quantity")
	if err != nil {
		return badRequest(c, "quantity is invalid")
	}

	cart, err := h.service.AddItem(ctx, identity, productID, int64(quantity))
	if err != nil {
		return writeError(ctx, c, h.logger, "add to cart", err)
	}

	return c.Status(fiber.StatusCreated).JSON(cart)
}

func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	identity, ok := identityOf(c)
	if !ok {
		return unauthorized(c)
	}

	cart, err := h.service.GetCart(ctx, identity)
	if err != nil {
		return writeError(ctx, c, h.logger, "get cart", err)
	}

	return c.Status(fiber.StatusOK).JSON(cart)
}

// AdjustQuantity maps the operation segment onto a one-unit change:
// "add" grows the line, "delete" shrinks it.
func (h *CartHandler) AdjustQuantity(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	identity, ok := identityOf(c)
	if !ok {
		return unauthorized(c)
	}

	productID, ok := paramID(c, "productId")
	if !ok {
		return badRequest(c, "productId is invalid")
	}

	var delta int64
	switch c.Params("operation") {
	case "add":
		delta = 1
	case "delete":
		delta = -1
	default:
		return badRequest(c, "operation must be add or delete")
	}

	cart, err := h.service.AdjustQuantity(ctx, identity, productID, delta)
	if err != nil {
		return writeError(ctx, c, h.logger, "update cart quantity", err)
	}

	return c.Status(fiber.StatusOK).JSON(cart)
}

func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	identity, ok := identityOf(c)
	if !ok {
		return unauthorized(c)
	}

	cartID, ok := paramID(c, "cartId")
	if !ok {
		return badRequest(c, "cartId is invalid")
	}

	productID, ok := paramID(c, "productId")
	if !ok {
		return badRequest(c, "productId is invalid")
	}

	cart, err := h.service.RemoveItem(ctx, identity, cartID, productID)
	if err != nil {
		return writeError(ctx, c, h.logger, "remove from cart", err)
	}

	return c.Status(fiber.StatusOK).JSON(cart)
}
