package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shopsight/backend/internal/domain/shared"
	"github.com/shopsight/backend/internal/domain/store"
)

type storeDataTestMocks struct {
	customers *MockCustomerStore
	orders    *MockOrderStore
	products  *MockProductStore
}

func setupStoreDataTestRouter() (*gin.Engine, *storeDataTestMocks, *StoreDataHandler) {
	gin.SetMode(gin.TestMode)

	mocks := &storeDataTestMocks{
		customers: new(MockCustomerStore),
		orders:    new(MockOrderStore),
		products:  new(MockProductStore),
	}
	handler := NewStoreDataHandler(mocks.customers, mocks.orders, mocks.products)

	return gin.New(), mocks, handler
}

func TestStoreDataHandler_GetCounts(t *testing.T) {
	t.Run("returns per-kind counts", func(t *testing.T) {
		router, mocks, handler := setupStoreDataTestRouter()
		router.GET("/shops/:id/data/counts", handler.GetCounts)

		shopID := uuid.New()
		mocks.customers.On("CountForShop", mock.Anything, shopID).Return(int64(120), nil)
		mocks.orders.On("CountForShop", mock.Anything, shopID).Return(int64(450), nil)
		mocks.products.On("CountForShop", mock.Anything, shopID).Return(int64(38), nil)

		req, _ := http.NewRequest(http.MethodGet, "/shops/"+shopID.String()+"/data/counts", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		require.NoError(t, err)
		data := response["data"].(map[string]interface{})
		assert.Equal(t, float64(120), data["customers"])
		assert.Equal(t, float64(450), data["orders"])
		assert.Equal(t, float64(38), data["products"])

		mocks.customers.AssertExpectations(t)
		mocks.orders.AssertExpectations(t)
		mocks.products.AssertExpectations(t)
	})

	t.Run("returns 400 for invalid shop ID", func(t *testing.T) {
		router, _, handler := setupStoreDataTestRouter()
		router.GET("/shops/:id/data/counts", handler.GetCounts)

		req, _ := http.NewRequest(http.MethodGet, "/shops/not-a-uuid/data/counts", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("propagates repository failure", func(t *testing.T) {
		router, mocks, handler := setupStoreDataTestRouter()
		router.GET("/shops/:id/data/counts", handler.GetCounts)

		shopID := uuid.New()
		mocks.customers.On("CountForShop", mock.Anything, shopID).
			Return(int64(0), assert.AnError)

		req, _ := http.NewRequest(http.MethodGet, "/shops/"+shopID.String()+"/data/counts", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestStoreDataHandler_GetCustomer(t *testing.T) {
	t.Run("returns customer by platform id", func(t *testing.T) {
		router, mocks, handler := setupStoreDataTestRouter()
		router.GET("/shops/:id/data/customers", handler.GetCustomer)

		shopID := uuid.New()
		// Platform IDs contain slashes, hence the query parameter
		platformID := "gid://platform/Customer/1001"
		customer := &store.Customer{
			PlatformID: platformID,
			Email:      "jo@example.com",
		}

		mocks.customers.On("FindByPlatformID", mock.Anything, shopID, platformID).
			Return(customer, nil)

		req, _ := http.NewRequest(http.MethodGet, "/shops/"+shopID.String()+"/data/customers", nil)
		q := req.URL.Query()
		q.Set("platform_id", platformID)
		req.URL.RawQuery = q.Encode()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "jo@example.com")

		mocks.customers.AssertExpectations(t)
	})

	t.Run("returns 400 when platform_id is missing", func(t *testing.T) {
		router, _, handler := setupStoreDataTestRouter()
		router.GET("/shops/:id/data/customers", handler.GetCustomer)

		req, _ := http.NewRequest(http.MethodGet, "/shops/"+uuid.New().String()+"/data/customers", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("returns 404 for unknown customer", func(t *testing.T) {
		router, mocks, handler := setupStoreDataTestRouter()
		router.GET("/shops/:id/data/customers", handler.GetCustomer)

		shopID := uuid.New()
		mocks.customers.On("FindByPlatformID", mock.Anything, shopID, "gid://platform/Customer/404").
			Return(nil, shared.ErrNotFound)

		req, _ := http.NewRequest(http.MethodGet, "/shops/"+shopID.String()+"/data/customers", nil)
		q := req.URL.Query()
		q.Set("platform_id", "gid://platform/Customer/404")
		req.URL.RawQuery = q.Encode()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestStoreDataHandler_GetOrder(t *testing.T) {
	router, mocks, handler := setupStoreDataTestRouter()
	router.GET("/shops/:id/data/orders", handler.GetOrder)

	shopID := uuid.New()
	platformID := "gid://platform/Order/2002"
	order := &store.Order{OrderData: store.OrderData{PlatformID: platformID}}

	mocks.orders.On("FindByPlatformID", mock.Anything, shopID, platformID).
		Return(order, nil)

	req, _ := http.NewRequest(http.MethodGet, "/shops/"+shopID.String()+"/data/orders", nil)
	q := req.URL.Query()
	q.Set("platform_id", platformID)
	req.URL.RawQuery = q.Encode()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	mocks.orders.AssertExpectations(t)
}

func TestStoreDataHandler_GetProduct(t *testing.T) {
	router, mocks, handler := setupStoreDataTestRouter()
	router.GET("/shops/:id/data/products", handler.GetProduct)

	shopID := uuid.New()
	platformID := "gid://platform/Product/3003"
	product := &store.Product{PlatformID: platformID, Title: "Trail Shoe"}

	mocks.products.On("FindByPlatformID", mock.Anything, shopID, platformID).
		Return(product, nil)

	req, _ := http.NewRequest(http.MethodGet, "/shops/"+shopID.String()+"/data/products", nil)
	q := req.URL.Query()
	q.Set("platform_id", platformID)
	req.URL.RawQuery = q.Encode()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Trail Shoe")

	mocks.products.AssertExpectations(t)
}
