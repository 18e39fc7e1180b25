package service_test

import (
	"fmt"
	"time"

	"github.com/sakashimaa/go-pet-project/shop/internal/domain"
	"github.com/sakashimaa/go-pet-project/shop/internal/worker"
	"go.uber.org/zap"
)

func (s *IntegrationTestSuite) TestCartReaper_ReleasesAbandonedCarts() {
	productID := s.seedProduct("Kuronami Vandal", 100, 0, 10)

	stale, err := s.CartService.AddItem(s.Ctx, alice, productID, 3)
	s.Require().NoError(err)
	_, err = s.CartService.AddItem(s.Ctx, bob, productID, 2)
	s.Require().NoError(err)
	s.Require().Equal(int64(5), s.stockOf(productID))

	_, err = s.DbPool.Exec(s.Ctx, `UPDATE carts SET updated_at = NOW() - INTERVAL '48 hours' WHERE id = $1`, stale.CartID)
	s.Require().NoError(err)

	reaper := worker.NewCartReaper(
		s.DbPool,
		s.CartRepository,
		s.ProductRepository,
		s.OutboxRepository,
		zap.NewNop(),
		s.Metrics,
		24*time.Hour,
		time.Minute,
		50,
	)

	reaped, err := reaper.ReapOnce(s.Ctx)
	s.Require().NoError(err)
	s.Require().Equal(1, reaped)

	s.Require().Equal(int64(8), s.stockOf(productID))

	_, err = s.CartService.GetCart(s.Ctx, alice)
	s.Require().ErrorIs(err, domain.ErrNotFound)

	cart, err := s.CartService.GetCart(s.Ctx, bob)
	s.Require().NoError(err)
	s.Require().Len(cart.Products, 1)

	var events int64
	err = s.DbPool.QueryRow(
		s.Ctx,
		`SELECT COUNT(*) FROM outbox WHERE aggregate_id = $1 AND event_type = $2`,
		fmt.Sprintf("%d", stale.CartID),
		domain.EventCartExpired,
	).Scan(&events)
	s.Require().NoError(err)
	s.Require().Equal(int64(1), events)

	reaped, err = reaper.ReapOnce(s.Ctx)
	s.Require().NoError(err)
	s.Require().Zero(reaped)
}
