package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sakashimaa/go-pet-project/shop/internal/domain"
	"github.com/sakashimaa/go-pet-project/shop/internal/transport/http/handler"
	"github.com/sakashimaa/go-pet-project/shop/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "router-test-secret"

var caller = domain.Identity{UserID: 42, Email: "buyer@example.com"}

type mockCartService struct {
	mock.Mock
}

func (m *mockCartService) AddItem(ctx context.Context, identity domain.Identity, productID, quantity int64) (*domain.CartView, error) {
	args := m.Called(ctx, identity, productID, quantity)
	view, _ := args.Get(0).(*domain.CartView)
	return view, args.Error(1)
}

func (m *mockCartService) AdjustQuantity(ctx context.Context, identity domain.Identity, productID int64, delta int64) (*domain.CartView, error) {
	args := m.Called(ctx, identity, productID, delta)
	view, _ := args.Get(0).(*domain.CartView)
	return view, args.Error(1)
}

func (m *mockCartService) RemoveItem(ctx context.Context, identity domain.Identity, cartID, productID int64) (*domain.CartView, error) {
	args := m.Called(ctx, identity, cartID, productID)
	view, _ := args.Get(0).(*domain.CartView)
	return view, args.Error(1)
}

func (m *mockCartService) GetCart(ctx context.Context, identity domain.Identity) (*domain.CartView, error) {
	args := m.Called(ctx, identity)
	view, _ := args.Get(0).(*domain.CartView)
	return view, args.Error(1)
}

type mockOrderService struct {
	mock.Mock
}

func (m *mockOrderService) PlaceOrder(ctx context.Context, identity domain.Identity, input domain.PlaceOrderInput) (*domain.OrderView, error) {
	args := m.Called(ctx, identity, input)
	view, _ := args.Get(0).(*domain.OrderView)
	return view, args.Error(1)
}

func (m *mockOrderService) GetOrder(ctx context.Context, identity domain.Identity, orderID int64) (*domain.OrderView, error) {
	args := m.Called(ctx, identity, orderID)
	view, _ := args.Get(0).(*domain.OrderView)
	return view, args.Error(1)
}

func (m *mockOrderService) ListOrders(ctx context.Context, identity domain.Identity, limit, offset int64) ([]domain.OrderView, int64, error) {
	args := m.Called(ctx, identity, limit, offset)
	views, _ := args.Get(0).([]domain.OrderView)
	return views, args.Get(1).(int64), args.Error(2)
}

type mockAddressService struct {
	mock.Mock
}

func (m *mockAddressService) Create(ctx context.Context, identity domain.Identity, address *domain.Address) (*domain.Address, error) {
	args := m.Called(ctx, identity, address)
	created, _ := args.Get(0).(*domain.Address)
	return created, args.Error(1)
}

func (m *mockAddressService) List(ctx context.Context, identity domain.Identity) ([]domain.Address, error) {
	args := m.Called(ctx, identity)
	addresses, _ := args.Get(0).([]domain.Address)
	return addresses, args.Error(1)
}

func (m *mockAddressService) Get(ctx context.Context, identity domain.Identity, id int64) (*domain.Address, error) {
	args := m.Called(ctx, identity, id)
	address, _ := args.Get(0).(*domain.Address)
	return address, args.Error(1)
}

type mockProductService struct {
	mock.Mock
}

func (m *mockProductService) Create(ctx context.Context, product *domain.Product) (int64, error) {
	args := m.Called(ctx, product)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockProductService) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	args := m.Called(ctx, id)
	product, _ := args.Get(0).(*domain.Product)
	return product, args.Error(1)
}

func (m *mockProductService) List(ctx context.Context, limit, offset int64) ([]domain.Product, int64, error) {
	args := m.Called(ctx, limit, offset)
	products, _ := args.Get(0).([]domain.Product)
	return products, args.Get(1).(int64), args.Error(2)
}

func (m *mockProductService) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type testApp struct {
	app       *fiber.App
	carts     *mockCartService
	orders    *mockOrderService
	addresses *mockAddressService
	products  *mockProductService
}

func newTestApp() *testApp {
	logger := zap.NewNop()
	ta := &testApp{
		app:       fiber.New(),
		carts:     &mockCartService{},
		orders:    &mockOrderService{},
		addresses: &mockAddressService{},
		products:  &mockProductService{},
	}

	RegisterRoutes(ta.app, &Handlers{
		Cart:    handler.NewCartHandler(ta.carts, logger, time.Second),
		Order:   handler.NewOrderHandler(ta.orders, logger, time.Second),
		Address: handler.NewAddressHandler(ta.addresses, logger, time.Second),
		Product: handler.NewProductHandler(ta.products, logger, time.Second),
	}, testSecret, prometheus.NewRegistry())

	return ta
}

func (ta *testApp) do(t *testing.T, method, path, body string, authorized bool) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	if authorized {
		token, err := utils.GenerateAccessToken(testSecret, caller.UserID, caller.Email, time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	_ = json.Unmarshal(raw, &decoded)

	return resp.StatusCode, decoded
}

func TestRoutes_RequireBearerToken(t *testing.T) {
	ta := newTestApp()

	code, body := ta.do(t, nethttp.MethodGet, "/api/carts/users/cart", "", false)
	require.Equal(t, fiber.StatusUnauthorized, code)
	require.Equal(t, "Unauthorized: missed header", body["error"])

	req := httptest.NewRequest(nethttp.MethodGet, "/api/carts/users/cart", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRoutes_HealthAndMetricsArePublic(t *testing.T) {
	ta := newTestApp()

	code, body := ta.do(t, nethttp.MethodGet, "/healthz", "", false)
	require.Equal(t, fiber.StatusOK, code)
	require.Equal(t, "ok", body["status"])

	req := httptest.NewRequest(nethttp.MethodGet, "/metrics", nil)
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAddItem_Created(t *testing.T) {
	ta := newTestApp()

	ta.carts.On("AddItem", mock.Anything, caller, int64(1), int64(3)).Return(&domain.CartView{
		CartID:     7,
		TotalPrice: decimal.NewFromInt(300),
		Products:   []domain.CartItemView{{ProductID: 1, Quantity: 3}},
	}, nil).Once()

	code, body := ta.do(t, nethttp.MethodPost, "/api/carts/products/1/quantity/3", "", true)
	require.Equal(t, fiber.StatusCreated, code)
	require.Equal(t, float64(7), body["cart_id"])
	require.Equal(t, "300", body["total_price"])

	ta.carts.AssertExpectations(t)
}

func TestAddItem_ConflictCarriesReason(t *testing.T) {
	ta := newTestApp()

	ta.carts.On("AddItem", mock.Anything, caller, int64(1), int64(1)).
		Return(nil, domain.Conflict("Product %s already exists in the cart", "Vinyl")).Once()

	code, body := ta.do(t, nethttp.MethodPost, "/api/carts/products/1/quantity/1", "", true)
	require.Equal(t, fiber.StatusConflict, code)
	require.Equal(t, "Product Vinyl already exists in the cart", body["error"])
}

func TestAddItem_InternalErrorIsHidden(t *testing.T) {
	ta := newTestApp()

	ta.carts.On("AddItem", mock.Anything, caller, int64(1), int64(1)).
		Return(nil, errors.New("pq: connection refused")).Once()

	code, body := ta.do(t, nethttp.MethodPost, "/api/carts/products/1/quantity/1", "", true)
	require.Equal(t, fiber.StatusInternalServerError, code)
	require.Equal(t, "internal error", body["error"])
}

func TestAddItem_BadPath(t *testing.T) {
	ta := newTestApp()

	code, _ := ta.do(t, nethttp.MethodPost, "/api/carts/products/abc/quantity/1", "", true)
	require.Equal(t, fiber.StatusBadRequest, code)

	code, _ = ta.do(t, nethttp.MethodPost, "/api/carts/products/1/quantity/many", "", true)
	require.Equal(t, fiber.StatusBadRequest, code)

	ta.carts.AssertNotCalled(t, "AddItem", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAdjustQuantity_Operations(t *testing.T) {
	ta := newTestApp()

	ta.carts.On("AdjustQuantity", mock.Anything, caller, int64(1), int64(1)).Return(&domain.CartView{CartID: 7}, nil).Once()
	ta.carts.On("AdjustQuantity", mock.Anything, caller, int64(1), int64(-1)).Return(&domain.CartView{CartID: 7}, nil).Once()

	code, _ := ta.do(t, nethttp.MethodPut, "/api/cart/products/1/quantity/add", "", true)
	require.Equal(t, fiber.StatusOK, code)

	code, _ = ta.do(t, nethttp.MethodPut, "/api/cart/products/1/quantity/delete", "", true)
	require.Equal(t, fiber.StatusOK, code)

	code, _ = ta.do(t, nethttp.MethodPut, "/api/cart/products/1/quantity/double", "", true)
	require.Equal(t, fiber.StatusBadRequest, code)

	ta.carts.AssertExpectations(t)
}

func TestRemoveItem_NotFound(t *testing.T) {
	ta := newTestApp()

	ta.carts.On("RemoveItem", mock.Anything, caller, int64(8), int64(1)).
		Return(nil, domain.NotFound("Cart not found with cartId: %d", 8)).Once()

	code, body := ta.do(t, nethttp.MethodDelete, "/api/carts/8/product/1", "", true)
	require.Equal(t, fiber.StatusNotFound, code)
	require.Equal(t, "Cart not found with cartId: 8", body["error"])
}

func TestPlaceOrder_Created(t *testing.T) {
	ta := newTestApp()

	expected := domain.PlaceOrderInput{
		AddressID:     5,
		PaymentMethod: "card",
		PgName:        "stripe",
		PgPaymentID:   "pi_1",
		PgStatus:      "succeeded",
	}
	ta.orders.On("PlaceOrder", mock.Anything, caller, expected).Return(&domain.OrderView{
		OrderID: 100,
		Status:  domain.OrderStatusAccepted,
	}, nil).Once()

	body := `{"address_id":5,"pg_name":"stripe","pg_payment_id":"pi_1","pg_status":"succeeded"}`
	code, resp := ta.do(t, nethttp.MethodPost, "/api/order/users/payments/card", body, true)
	require.Equal(t, fiber.StatusCreated, code)
	require.Equal(t, float64(100), resp["order_id"])
	require.Equal(t, string(domain.OrderStatusAccepted), resp["order_status"])

	ta.orders.AssertExpectations(t)
}

func TestPlaceOrder_ValidationFailure(t *testing.T) {
	ta := newTestApp()

	code, resp := ta.do(t, nethttp.MethodPost, "/api/order/users/payments/card", `{"pg_name":"stripe"}`, true)
	require.Equal(t, fiber.StatusBadRequest, code)
	require.Equal(t, "validation failed", resp["error"])

	fields, ok := resp["fields"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, fields, "addressid")

	ta.orders.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestPlaceOrder_EmptyCartConflict(t *testing.T) {
	ta := newTestApp()

	ta.orders.On("PlaceOrder", mock.Anything, caller, mock.Anything).Return(nil, domain.Conflict("Cart is empty")).Once()

	body := `{"address_id":5,"pg_name":"stripe","pg_payment_id":"pi_1","pg_status":"succeeded"}`
	code, resp := ta.do(t, nethttp.MethodPost, "/api/order/users/payments/card", body, true)
	require.Equal(t, fiber.StatusConflict, code)
	require.Equal(t, "Cart is empty", resp["error"])
}

func TestListOrders_Pagination(t *testing.T) {
	ta := newTestApp()

	ta.orders.On("ListOrders", mock.Anything, caller, int64(5), int64(10)).Return([]domain.OrderView{}, int64(0), nil).Once()

	code, resp := ta.do(t, nethttp.MethodGet, "/api/orders?limit=5&offset=10", "", true)
	require.Equal(t, fiber.StatusOK, code)
	require.Equal(t, float64(0), resp["total_count"])

	code, _ = ta.do(t, nethttp.MethodGet, "/api/orders?limit=500", "", true)
	require.Equal(t, fiber.StatusBadRequest, code)

	ta.orders.AssertExpectations(t)
}

func TestCreateAddress_Validation(t *testing.T) {
	ta := newTestApp()

	code, resp := ta.do(t, nethttp.MethodPost, "/api/addresses", `{"street":"abc","city":"T"}`, true)
	require.Equal(t, fiber.StatusBadRequest, code)

	fields, ok := resp["fields"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, fields, "street")
	require.Contains(t, fields, "buildingname")

	ta.addresses.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateAddress_Created(t *testing.T) {
	ta := newTestApp()

	ta.addresses.On("Create", mock.Anything, caller, mock.MatchedBy(func(a *domain.Address) bool {
		return a.City == "Tokyo" && a.Pincode == "150-0042"
	})).Return(&domain.Address{ID: 3, City: "Tokyo"}, nil).Once()

	body := `{"street":"Shibuya Crossing 1","building_name":"Tower Records","city":"Tokyo","state":"Tokyo","country":"Japan","pincode":"150-0042"}`
	code, resp := ta.do(t, nethttp.MethodPost, "/api/addresses", body, true)
	require.Equal(t, fiber.StatusCreated, code)
	require.Equal(t, float64(3), resp["address_id"])

	ta.addresses.AssertExpectations(t)
}

func TestFindProduct(t *testing.T) {
	ta := newTestApp()

	ta.products.On("FindByID", mock.Anything, int64(4)).Return(&domain.Product{ID: 4, Name: "Vinyl"}, nil).Once()
	ta.products.On("FindByID", mock.Anything, int64(5)).Return(nil, domain.NotFound("Product not found with productId: %d", 5)).Once()

	code, resp := ta.do(t, nethttp.MethodGet, "/api/products/4", "", true)
	require.Equal(t, fiber.StatusOK, code)
	require.Equal(t, "Vinyl", resp["name"])

	code, _ = ta.do(t, nethttp.MethodGet, "/api/products/5", "", true)
	require.Equal(t, fiber.StatusNotFound, code)

	ta.products.AssertExpectations(t)
}
