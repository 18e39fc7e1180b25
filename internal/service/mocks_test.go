package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sakashimaa/go-pet-project/shop/internal/domain"
	"github.com/sakashimaa/go-pet-project/shop/internal/outbox"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(_ context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(_ context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

type fakePool struct {
	tx    *fakeTx
	begun int
}

func newFakePool() *fakePool {
	return &fakePool{tx: &fakeTx{}}
}

func (p *fakePool) Begin(_ context.Context) (pgx.Tx, error) {
	p.begun++
	return p.tx, nil
}

type mockCartRepo struct {
	mock.Mock
}

func (m *mockCartRepo) GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, identity domain.Identity) (*domain.Cart, error) {
	args := m.Called(ctx, tx, identity)
	cart, _ := args.Get(0).(*domain.Cart)
	return cart, args.Error(1)
}

func (m *mockCartRepo) GetByUserForUpdate(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Cart, error) {
	args := m.Called(ctx, tx, userID)
	cart, _ := args.Get(0).(*domain.Cart)
	return cart, args.Error(1)
}

func (m *mockCartRepo) GetByUser(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Cart, error) {
	args := m.Called(ctx, tx, userID)
	cart, _ := args.Get(0).(*domain.Cart)
	return cart, args.Error(1)
}

func (m *mockCartRepo) ListItems(ctx context.Context, tx pgx.Tx, cartID int64) ([]domain.CartItem, error) {
	args := m.Called(ctx, tx, cartID)
	items, _ := args.Get(0).([]domain.CartItem)
	return items, args.Error(1)
}

func (m *mockCartRepo) InsertItem(ctx context.Context, tx pgx.Tx, item *domain.CartItem) error {
	return m.Called(ctx, tx, item).Error(0)
}

func (m *mockCartRepo) UpdateItem(ctx context.Context, tx pgx.Tx, item *domain.CartItem) error {
	return m.Called(ctx, tx, item).Error(0)
}

func (m *mockCartRepo) DeleteItem(ctx context.Context, tx pgx.Tx, cartID, productID int64) error {
	return m.Called(ctx, tx, cartID, productID).Error(0)
}

func (m *mockCartRepo) DeleteItems(ctx context.Context, tx pgx.Tx, cartID int64) error {
	return m.Called(ctx, tx, cartID).Error(0)
}

func (m *mockCartRepo) UpdateTotal(ctx context.Context, tx pgx.Tx, cartID int64, total decimal.Decimal) error {
	return m.Called(ctx, tx, cartID, total).Error(0)
}

func (m *mockCartRepo) Delete(ctx context.Context, tx pgx.Tx, cartID int64) error {
	return m.Called(ctx, tx, cartID).Error(0)
}

func (m *mockCartRepo) ListExpiredForUpdate(ctx context.Context, tx pgx.Tx, before time.Time, limit int) ([]domain.Cart, error) {
	args := m.Called(ctx, tx, before, limit)
	carts, _ := args.Get(0).([]domain.Cart)
	return carts, args.Error(1)
}

type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) Create(ctx context.Context, tx pgx.Tx, product *domain.Product) (int64, error) {
	args := m.Called(ctx, tx, product)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockProductRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	args := m.Called(ctx, id)
	product, _ := args.Get(0).(*domain.Product)
	return product, args.Error(1)
}

func (m *mockProductRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.Product, error) {
	args := m.Called(ctx, tx, id)
	product, _ := args.Get(0).(*domain.Product)
	return product, args.Error(1)
}

func (m *mockProductRepo) List(ctx context.Context, limit, offset int64) ([]domain.Product, int64, error) {
	args := m.Called(ctx, limit, offset)
	products, _ := args.Get(0).([]domain.Product)
	return products, args.Get(1).(int64), args.Error(2)
}

func (m *mockProductRepo) DeleteByID(ctx context.Context, tx pgx.Tx, id int64) error {
	return m.Called(ctx, tx, id).Error(0)
}

func (m *mockProductRepo) DecreaseStock(ctx context.Context, tx pgx.Tx, id, quantity int64) error {
	return m.Called(ctx, tx, id, quantity).Error(0)
}

func (m *mockProductRepo) IncreaseStock(ctx context.Context, tx pgx.Tx, id, quantity int64) error {
	return m.Called(ctx, tx, id, quantity).Error(0)
}

type mockAddressRepo struct {
	mock.Mock
}

func (m *mockAddressRepo) Create(ctx context.Context, address *domain.Address) error {
	return m.Called(ctx, address).Error(0)
}

func (m *mockAddressRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Address, error) {
	args := m.Called(ctx, userID)
	addresses, _ := args.Get(0).([]domain.Address)
	return addresses, args.Error(1)
}

func (m *mockAddressRepo) GetByID(ctx context.Context, id, userID int64) (*domain.Address, error) {
	args := m.Called(ctx, id, userID)
	address, _ := args.Get(0).(*domain.Address)
	return address, args.Error(1)
}

func (m *mockAddressRepo) GetForShipping(ctx context.Context, tx pgx.Tx, id, userID int64) (*domain.Address, error) {
	args := m.Called(ctx, tx, id, userID)
	address, _ := args.Get(0).(*domain.Address)
	return address, args.Error(1)
}

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) CreatePayment(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error {
	return m.Called(ctx, tx, payment).Error(0)
}

func (m *mockOrderRepo) CreateOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	return m.Called(ctx, tx, order).Error(0)
}

func (m *mockOrderRepo) GetByID(ctx context.Context, id, userID int64) (*domain.Order, error) {
	args := m.Called(ctx, id, userID)
	order, _ := args.Get(0).(*domain.Order)
	return order, args.Error(1)
}

func (m *mockOrderRepo) ListByUser(ctx context.Context, userID, limit, offset int64) ([]domain.Order, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	orders, _ := args.Get(0).([]domain.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

type mockOutboxRepo struct {
	mock.Mock
}

func (m *mockOutboxRepo) SaveEvent(ctx context.Context, tx pgx.Tx, event *outbox.Event) error {
	return m.Called(ctx, tx, event).Error(0)
}

func (m *mockOutboxRepo) GetUnpublishedEvents(ctx context.Context, tx pgx.Tx, batchSize int) ([]*outbox.Event, error) {
	args := m.Called(ctx, tx, batchSize)
	events, _ := args.Get(0).([]*outbox.Event)
	return events, args.Error(1)
}

func (m *mockOutboxRepo) MarkEventPublished(ctx context.Context, tx pgx.Tx, eventID int64) error {
	return m.Called(ctx, tx, eventID).Error(0)
}

func (m *mockOutboxRepo) MarkEventFailed(ctx context.Context, tx pgx.Tx, eventID int64, errMsg string) error {
	return m.Called(ctx, tx, eventID, errMsg).Error(0)
}

func decimalEq(want int64) any {
	return mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(want))
	})
}
