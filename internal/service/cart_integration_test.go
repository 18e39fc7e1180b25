package service_test

import (
	"sync"
	"time"

	"github.com/sakashimaa/go-pet-project/shop/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	cacheTTL      = 30 * time.Second
	pollInterval = 100 * time.Millisecond
)

var (
	alice = domain.Identity{UserID: 1001, Email: "alice@example.com"}
	bob   = domain.Identity{UserID: 1002, Email: "bob@example.com"}
)

func (s *IntegrationTestSuite) TestAddItem_ReservesStock() {
	productID := s.seedProduct("Kuronami Vandal", 100, 0, 10)

	view, err := s.CartService.AddItem(s.Ctx, alice, productID, 3)
	s.Require().NoError(err)
	s.Require().True(view.TotalPrice.Equal(decimal.NewFromInt(300)))
	s.Require().Len(view.Products, 1)
	s.Require().Equal(int64(7), s.stockOf(productID))

	s.requireTotalConsistent(alice.UserID)
}

func (s *IntegrationTestSuite) TestAddItem_DuplicateLeavesCartUnchanged() {
	productID := s.seedProduct("Kuronami Vandal", 100, 0, 10)

	_, err := s.CartService.AddItem(s.Ctx, alice, productID, 2)
	s.Require().NoError(err)

	_, err = s.CartService.AddItem(s.Ctx, alice, productID, 1)
	s.Require().ErrorIs(err, domain.ErrConflict)

	cart, err := s.CartService.GetCart(s.Ctx, alice)
	s.Require().NoError(err)
	s.Require().Len(cart.Products, 1)
	s.Require().Equal(int64(2), cart.Products[0].Quantity)
	s.Require().True(cart.TotalPrice.Equal(decimal.NewFromInt(200)))
	s.Require().Equal(int64(8), s.stockOf(productID))
}

func (s *IntegrationTestSuite) TestAddItem_FailureRollsBackNewCart() {
	productID := s.seedProduct("Sold Out Vinyl", 50, 0, 0)

	_, err := s.CartService.AddItem(s.Ctx, alice, productID, 1)
	s.Require().ErrorIs(err, domain.ErrConflict)

	_, err = s.CartService.GetCart(s.Ctx, alice)
	s.Require().ErrorIs(err, domain.ErrNotFound)
	s.Require().Zero(s.countRows("carts"))
}

func (s *IntegrationTestSuite) TestAddItem_ConcurrentLastUnits() {
	productID := s.seedProduct("Limited Edition", 100, 0, 5)

	var wg sync.WaitGroup
	errs := make([]error, 2)

	for i, buyer := range []domain.Identity{alice, bob} {
		wg.Add(1)
		go func(i int, buyer domain.Identity) {
			defer wg.Done()
			_, errs[i] = s.CartService.AddItem(s.Ctx, buyer, productID, 5)
		}(i, buyer)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		s.Require().ErrorIs(err, domain.ErrConflict)
	}

	s.Require().Equal(1, succeeded)
	s.Require().Equal(int64(0), s.stockOf(productID))
}

func (s *IntegrationTestSuite) TestAdjustQuantity_DecrementToZeroRestoresStock() {
	productID := s.seedProduct("Kuronami Vandal", 100, 10, 10)

	_, err := s.CartService.AddItem(s.Ctx, alice, productID, 2)
	s.Require().NoError(err)
	s.Require().Equal(int64(8), s.stockOf(productID))

	view, err := s.CartService.AdjustQuantity(s.Ctx, alice, productID, -1)
	s.Require().NoError(err)
	s.Require().True(view.TotalPrice.Equal(decimal.NewFromInt(90)))
	s.requireTotalConsistent(alice.UserID)

	view, err = s.CartService.AdjustQuantity(s.Ctx, alice, productID, -1)
	s.Require().NoError(err)
	s.Require().Empty(view.Products)
	s.Require().True(view.TotalPrice.IsZero())

	s.Require().Equal(int64(10), s.stockOf(productID))
	s.Require().Zero(s.countRows("cart_items"))
	s.requireTotalConsistent(alice.UserID)
}

func (s *IntegrationTestSuite) TestAdjustQuantity_IncrementUntilSoldOut() {
	productID := s.seedProduct("Kuronami Vandal", 100, 0, 2)

	_, err := s.CartService.AddItem(s.Ctx, alice, productID, 1)
	s.Require().NoError(err)

	view, err := s.CartService.AdjustQuantity(s.Ctx, alice, productID, 1)
	s.Require().NoError(err)
	s.Require().Equal(int64(2), view.Products[0].Quantity)
	s.Require().Equal(int64(0), s.stockOf(productID))

	_, err = s.CartService.AdjustQuantity(s.Ctx, alice, productID, 1)
	s.Require().ErrorIs(err, domain.ErrConflict)
	s.Require().Equal(int64(0), s.stockOf(productID))
	s.requireTotalConsistent(alice.UserID)
}

func (s *IntegrationTestSuite) TestRemoveItem_RestoresStock() {
	first := s.seedProduct("Kuronami Vandal", 100, 0, 10)
	second := s.seedProduct("Prime Phantom", 40, 25, 10)

	_, err := s.CartService.AddItem(s.Ctx, alice, first, 4)
	s.Require().NoError(err)
	cart, err := s.CartService.AddItem(s.Ctx, alice, second, 2)
	s.Require().NoError(err)
	s.Require().True(cart.TotalPrice.Equal(decimal.NewFromInt(460)))

	view, err := s.CartService.RemoveItem(s.Ctx, alice, cart.CartID, first)
	s.Require().NoError(err)
	s.Require().Len(view.Products, 1)
	s.Require().True(view.TotalPrice.Equal(decimal.NewFromInt(60)))
	s.Require().Equal(int64(10), s.stockOf(first))
	s.requireTotalConsistent(alice.UserID)

	_, err = s.CartService.RemoveItem(s.Ctx, bob, cart.CartID, second)
	s.Require().ErrorIs(err, domain.ErrNotFound)
	s.Require().Equal(int64(8), s.stockOf(second))
}

func (s *IntegrationTestSuite) TestAddItem_RecreatesCartDeletedByCheckout() {
	firstID := s.seedProduct("Kuronami Vandal", 100, 0, 10)
	secondID := s.seedProduct("Kuronami Phantom", 50, 0, 5)

	first, err := s.CartService.AddItem(s.Ctx, alice, firstID, 1)
	s.Require().NoError(err)

	// hold the cart the way PlaceOrder does, then delete it
	tx, err := s.DbPool.Begin(s.Ctx)
	s.Require().NoError(err)
	defer func() { _ = tx.Rollback(s.Ctx) }()

	_, err = s.CartRepository.GetByUserForUpdate(s.Ctx, tx, alice.UserID)
	s.Require().NoError(err)

	type result struct {
		view *domain.CartView
		err  error
	}
	done := make(chan result, 1)

	go func() {
		view, err := s.CartService.AddItem(s.Ctx, alice, secondID, 2)
		done <- result{view, err}
	}()

	select {
	case <-done:
		s.FailNow("add did not wait for the locked cart")
	case <-time.After(300 * time.Millisecond):
	}

	s.Require().NoError(s.CartRepository.DeleteItems(s.Ctx, tx, first.CartID))
	s.Require().NoError(s.CartRepository.Delete(s.Ctx, tx, first.CartID))
	s.Require().NoError(tx.Commit(s.Ctx))

	var res result
	select {
	case res = <-done:
	case <-time.After(10 * time.Second):
		s.FailNow("add never finished")
	}

	s.Require().NoError(res.err)
	s.Require().NotEqual(first.CartID, res.view.CartID)
	s.Require().Len(res.view.Products, 1)
	s.Require().Equal(secondID, res.view.Products[0].ProductID)
	s.Require().True(res.view.TotalPrice.Equal(decimal.NewFromInt(100)))
	s.Require().Equal(int64(3), s.stockOf(secondID))
	s.Require().Equal(int64(1), s.countRows("carts"))

	s.requireTotalConsistent(alice.UserID)
}
