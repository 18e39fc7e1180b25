package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sakashimaa/go-pet-project/shop/internal/transport/http/handler"
	"github.com/sakashimaa/go-pet-project/shop/internal/transport/http/middleware"
)

type Handlers struct {
	Cart    *handler.CartHandler
	Order   *handler.OrderHandler
	Address *handler.AddressHandler
	Product *handler.ProductHandler
}

func RegisterRoutes(app *fiber.App, h *Handlers, accessSecret string, gatherer prometheus.Gatherer) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := app.Group("/api", middleware.NewAuthMiddleware(accessSecret))

	api.Post("/carts/products/:productId/quantity/:quantity", h.Cart.AddItem)
	api.Get("/carts/users/cart", h.Cart.GetCart)
	api.Put("/cart/products/:productId/quantity/:operation", h.Cart.AdjustQuantity)
	api.Delete("/carts/:cartId/product/:productId", h.Cart.RemoveItem)

	api.Post("/order/users/payments/:paymentMethod", h.Order.PlaceOrder)

	order := api.Group("/orders")
	order.Get("", h.Order.ListOrders)
	order.Get("/:id", h.Order.GetOrder)

	address := api.Group("/addresses")
	address.Post("", h.Address.Create)
	address.Get("", h.Address.List)
	address.Get("/:id", h.Address.Get)

	product := api.Group("/products")
	product.Get("", h.Product.ListProducts)
	product.Get("/:id", h.Product.FindByID)
}
