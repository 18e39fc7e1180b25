package service_test

import (
	"fmt"
	"time"

	"github.com/sakashimaa/go-pet-project/shop/internal/domain"
	"github.com/shopspring/decimal"
)

func (s *IntegrationTestSuite) placeOrder(identity domain.Identity, addressID int64) (*domain.OrderView, error) {
	return s.OrderService.PlaceOrder(s.Ctx, identity, domain.PlaceOrderInput{
		AddressID:         addressID,
		PaymentMethod:     "card",
		PgName:            "stripe",
		PgPaymentID:       "pi_3Nx",
		PgStatus:          "succeeded",
		PgResponseMessage: "Payment successful",
	})
}

func (s *IntegrationTestSuite) TestPlaceOrder_Success() {
	productID := s.seedProduct("Kuronami Vandal", 100, 0, 10)
	addressID := s.seedAddress(alice)

	_, err := s.CartService.AddItem(s.Ctx, alice, productID, 3)
	s.Require().NoError(err)

	order, err := s.placeOrder(alice, addressID)
	s.Require().NoError(err)
	s.Require().NotZero(order.OrderID)
	s.Require().Equal(domain.OrderStatusAccepted, order.Status)
	s.Require().True(order.TotalAmount.Equal(decimal.NewFromInt(300)))
	s.Require().Len(order.OrderItems, 1)
	s.Require().Equal(int64(3), order.OrderItems[0].Quantity)
	s.Require().Equal(addressID, order.AddressID)
	s.Require().NotNil(order.Payment)
	s.Require().Equal("pi_3Nx", order.Payment.PgPaymentID)

	s.Require().Equal(int64(7), s.stockOf(productID))
	s.Require().Zero(s.countRows("carts"))
	s.Require().Zero(s.countRows("cart_items"))

	_, err = s.CartService.GetCart(s.Ctx, alice)
	s.Require().ErrorIs(err, domain.ErrNotFound)

	stored, err := s.OrderService.GetOrder(s.Ctx, alice, order.OrderID)
	s.Require().NoError(err)
	s.Require().Len(stored.OrderItems, 1)
	s.Require().True(stored.OrderItems[0].OrderedPrice.Equal(decimal.NewFromInt(100)))

	_, err = s.OrderService.GetOrder(s.Ctx, bob, order.OrderID)
	s.Require().ErrorIs(err, domain.ErrNotFound)

	publishedAtQuery := `
		SELECT published_at
		FROM outbox
		WHERE aggregate_id = $1 AND event_type = $2
	`

	s.Require().Eventually(func() bool {
		var publishedAt *time.Time

		err := s.DbPool.QueryRow(s.Ctx, publishedAtQuery, fmt.Sprintf("%d", order.OrderID), domain.EventOrderPlaced).
			Scan(&publishedAt)

		return err == nil && publishedAt != nil
	}, 10*time.Second, 100*time.Millisecond)
}

func (s *IntegrationTestSuite) TestPlaceOrder_EmptyCart() {
	productID := s.seedProduct("Kuronami Vandal", 100, 0, 10)
	addressID := s.seedAddress(alice)

	cart, err := s.CartService.AddItem(s.Ctx, alice, productID, 1)
	s.Require().NoError(err)
	_, err = s.CartService.RemoveItem(s.Ctx, alice, cart.CartID, productID)
	s.Require().NoError(err)

	_, err = s.placeOrder(alice, addressID)
	s.Require().ErrorIs(err, domain.ErrConflict)
	s.Require().EqualError(err, "Cart is empty")

	s.Require().Zero(s.countRows("orders"))
	s.Require().Zero(s.countRows("payments"))
	s.Require().Zero(s.countRows("order_items"))
}

func (s *IntegrationTestSuite) TestPlaceOrder_ForeignAddress() {
	productID := s.seedProduct("Kuronami Vandal", 100, 0, 10)
	bobsAddress := s.seedAddress(bob)

	_, err := s.CartService.AddItem(s.Ctx, alice, productID, 1)
	s.Require().NoError(err)

	_, err = s.placeOrder(alice, bobsAddress)
	s.Require().ErrorIs(err, domain.ErrNotFound)

	s.Require().Zero(s.countRows("orders"))
	s.Require().Equal(int64(1), s.countRows("cart_items"))
}

func (s *IntegrationTestSuite) TestPlaceOrder_WithdrawnProduct() {
	productID := s.seedProduct("Kuronami Vandal", 100, 0, 10)
	addressID := s.seedAddress(alice)

	_, err := s.CartService.AddItem(s.Ctx, alice, productID, 2)
	s.Require().NoError(err)

	s.Require().NoError(s.ProductService.Delete(s.Ctx, productID))

	_, err = s.placeOrder(alice, addressID)
	s.Require().ErrorIs(err, domain.ErrConflict)
	s.Require().EqualError(err, "Not enough stock for product: Kuronami Vandal")
	s.Require().Zero(s.countRows("orders"))
}

func (s *IntegrationTestSuite) TestListOrders_NewestFirst() {
	productID := s.seedProduct("Kuronami Vandal", 100, 0, 10)
	addressID := s.seedAddress(alice)

	var ids []int64
	for i := 0; i < 2; i++ {
		_, err := s.CartService.AddItem(s.Ctx, alice, productID, 1)
		s.Require().NoError(err)

		order, err := s.placeOrder(alice, addressID)
		s.Require().NoError(err)
		ids = append(ids, order.OrderID)
	}

	orders, total, err := s.OrderService.ListOrders(s.Ctx, alice, 10, 0)
	s.Require().NoError(err)
	s.Require().Equal(int64(2), total)
	s.Require().Len(orders, 2)
	s.Require().Equal(ids[1], orders[0].OrderID)

	orders, total, err = s.OrderService.ListOrders(s.Ctx, bob, 10, 0)
	s.Require().NoError(err)
	s.Require().Zero(total)
	s.Require().Empty(orders)
}
