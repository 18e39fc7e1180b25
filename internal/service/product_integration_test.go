package service_test

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/redis/go-redis/v9"
	"github.com/sakashimaa/go-pet-project/shop/internal/domain"
	shopKafka "github.com/sakashimaa/go-pet-project/shop/internal/transport/kafka"
	"go.uber.org/zap"
)

func (s *IntegrationTestSuite) TestFindByID_CachesProduct() {
	productID := s.seedProduct("A Great Chaos Vinyl", 9999, 0, 5)

	found, err := s.CachedProductService.FindByID(s.Ctx, productID)
	s.Require().NoError(err)
	s.Require().Equal("A Great Chaos Vinyl", found.Name)

	val, err := s.RedisClient.Get(s.Ctx, fmt.Sprintf("product:%d", productID)).Result()
	s.Require().NoError(err)
	s.Require().NotEmpty(val)

	cached, err := s.CachedProductService.FindByID(s.Ctx, productID)
	s.Require().NoError(err)
	s.Require().Equal(found.ID, cached.ID)
	s.Require().True(found.Price.Equal(cached.Price))
}

func (s *IntegrationTestSuite) TestFindByID_NotFound() {
	product, err := s.CachedProductService.FindByID(s.Ctx, 999)
	s.Require().Error(err)
	s.Require().Nil(product)
	s.Require().ErrorIs(err, domain.ErrNotFound)
}

func (s *IntegrationTestSuite) TestProductEvent_InvalidatesCache() {
	productID := s.seedProduct("A Great Chaos Vinyl", 9999, 0, 5)

	_, err := s.CachedProductService.FindByID(s.Ctx, productID)
	s.Require().NoError(err)

	body, err := json.Marshal(domain.EventEnvelope{
		Event:   domain.EventProductUpdated,
		Payload: domain.ProductChangedEvent{ProductID: productID},
	})
	s.Require().NoError(err)

	consumer := shopKafka.NewConsumer(s.CachedProductService, zap.NewNop())
	s.Require().NoError(consumer.ProcessMessage(s.Ctx, &sarama.ConsumerMessage{
		Topic: domain.TopicProductEvents,
		Value: body,
	}))

	_, err = s.RedisClient.Get(s.Ctx, fmt.Sprintf("product:%d", productID)).Result()
	s.Require().ErrorIs(err, redis.Nil)
}

func (s *IntegrationTestSuite) TestDelete_DropsCachedProduct() {
	productID := s.seedProduct("A Great Chaos Vinyl", 9999, 0, 5)

	_, err := s.CachedProductService.FindByID(s.Ctx, productID)
	s.Require().NoError(err)

	s.Require().NoError(s.CachedProductService.Delete(s.Ctx, productID))

	_, err = s.CachedProductService.FindByID(s.Ctx, productID)
	s.Require().ErrorIs(err, domain.ErrNotFound)
}

// outboxPayload returns the newest event of eventType saved for a product.
func (s *IntegrationTestSuite) outboxPayload(productID int64, eventType string) []byte {
	var payload string
	err := s.DbPool.QueryRow(s.Ctx, `
		SELECT payload::text
		FROM outbox
		WHERE aggregate_type = 'product' AND aggregate_id = $1 AND event_type = $2
		ORDER BY id DESC
		LIMIT 1
	`, fmt.Sprintf("%d", productID), eventType).Scan(&payload)
	s.Require().NoError(err)

	return []byte(payload)
}

func (s *IntegrationTestSuite) TestAddItem_EvictsCachedProduct() {
	productID := s.seedProduct("A Great Chaos Vinyl", 9999, 0, 10)

	before, err := s.CachedProductService.FindByID(s.Ctx, productID)
	s.Require().NoError(err)
	s.Require().Equal(int64(10), before.StockQuantity)

	_, err = s.CartService.AddItem(s.Ctx, alice, productID, 4)
	s.Require().NoError(err)

	consumer := shopKafka.NewConsumer(s.CachedProductService, zap.NewNop())
	s.Require().NoError(consumer.ProcessMessage(s.Ctx, &sarama.ConsumerMessage{
		Topic: domain.TopicProductEvents,
		Value: s.outboxPayload(productID, domain.EventProductUpdated),
	}))

	after, err := s.CachedProductService.FindByID(s.Ctx, productID)
	s.Require().NoError(err)
	s.Require().Equal(int64(6), after.StockQuantity)
}

func (s *IntegrationTestSuite) TestDelete_SavesProductDeletedEvent() {
	productID := s.seedProduct("A Great Chaos Vinyl", 9999, 0, 5)

	s.Require().NoError(s.ProductService.Delete(s.Ctx, productID))

	var envelope struct {
		Event   string                     `json:"event"`
		Payload domain.ProductChangedEvent `json:"payload"`
	}
	s.Require().NoError(json.Unmarshal(s.outboxPayload(productID, domain.EventProductDeleted), &envelope))
	s.Require().Equal(domain.EventProductDeleted, envelope.Event)
	s.Require().Equal(productID, envelope.Payload.ProductID)
}
