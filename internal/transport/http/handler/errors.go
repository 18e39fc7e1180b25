package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/go-pet-project/shop/internal/domain"
	"github.com/sakashimaa/go-pet-project/shop/internal/mylogger"
	"github.com/sakashimaa/go-pet-project/shop/internal/transport/http/middleware"
	"go.uber.org/zap"
)

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError renders err for the client. Only business errors expose
// their message.
func writeError(ctx context.Context, c *fiber.Ctx, logger *zap.Logger, op string, err error) error {
	code := statusOf(err)

	if code >= fiber.StatusInternalServerError {
		mylogger.Error(ctx, logger, op+" failed", zap.Int("http_code", code), zap.Error(err))

		return c.Status(code).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	mylogger.Warn(ctx, logger, op+" rejected", zap.Int("http_code", code), zap.Error(err))

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "userId parsing error"})
}

func identityOf(c *fiber.Ctx) (domain.Identity, bool) {
	return middleware.Identity(c)
}

func paramID(c *fiber.Ctx, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}

	return id, true
}

// pagination reads limit and offset with the same defaults for every list.
func pagination(c *fiber.Ctx) (int64, int64, bool) {
	limit := int64(c.QueryInt("limit", 10))
	offset := int64(c.QueryInt("offset", 0))

	if limit <= 0 || limit > 100 || offset < 0 {
		return 0, 0, false
	}

	return limit, offset, true
}
