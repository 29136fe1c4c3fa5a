package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	shopapp "github.com/shopsight/backend/internal/application/shop"
	"github.com/shopsight/backend/internal/domain/shared"
	"github.com/shopsight/backend/internal/domain/shop"
)

type shopTestMocks struct {
	shops    *MockShopRepository
	jobs     *MockJobAbandoner
	enqueuer *MockExportEnqueuer
}

func setupShopTestRouter() (*gin.Engine, *shopTestMocks, *ShopHandler) {
	gin.SetMode(gin.TestMode)

	mocks := &shopTestMocks{
		shops:    new(MockShopRepository),
		jobs:     new(MockJobAbandoner),
		enqueuer: new(MockExportEnqueuer),
	}
	service := shopapp.NewService(mocks.shops, mocks.jobs, zap.NewNop())
	handler := NewShopHandler(service, mocks.enqueuer, zap.NewNop())

	return gin.New(), mocks, handler
}

func connectedTestShop(t *testing.T, domain string) *shop.Shop {
	t.Helper()
	sh, err := shop.NewShop(domain, "Acme Outdoor", "shpat_test_token")
	require.NoError(t, err)
	return sh
}

func TestShopHandler_Connect(t *testing.T) {
	t.Run("creates shop and queues initial exports", func(t *testing.T) {
		router, mocks, handler := setupShopTestRouter()
		router.POST("/shops/connect", handler.Connect)

		mocks.shops.On("FindByDomain", mock.Anything, "acme.myplatform.com").
			Return(nil, shared.ErrNotFound)
		mocks.shops.On("Save", mock.Anything, mock.AnythingOfType("*shop.Shop")).
			Return(nil)
		mocks.enqueuer.On("EnqueueExports", mock.AnythingOfType("uuid.UUID")).
			Return(nil)

		reqBody := ConnectShopRequest{
			Domain:      "acme.myplatform.com",
			Name:        "Acme Outdoor",
			AccessToken: "shpat_test_token",
		}
		body, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/shops/connect", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		require.NoError(t, err)
		assert.True(t, response["success"].(bool))

		data := response["data"].(map[string]interface{})
		assert.Equal(t, "acme.myplatform.com", data["domain"])
		assert.Equal(t, "connected", data["status"])
		// The credential must never appear in a response
		assert.NotContains(t, w.Body.String(), "shpat_test_token")

		mocks.shops.AssertExpectations(t)
		mocks.enqueuer.AssertExpectations(t)
	})

	t.Run("returns 200 for a reconnecting shop", func(t *testing.T) {
		router, mocks, handler := setupShopTestRouter()
		router.POST("/shops/connect", handler.Connect)

		existing := connectedTestShop(t, "acme.myplatform.com")
		require.NoError(t, existing.Disconnect())

		mocks.shops.On("FindByDomain", mock.Anything, "acme.myplatform.com").
			Return(existing, nil)
		mocks.shops.On("Save", mock.Anything, existing).Return(nil)
		mocks.enqueuer.On("EnqueueExports", existing.ID).Return(nil)

		reqBody := ConnectShopRequest{
			Domain:      "acme.myplatform.com",
			AccessToken: "shpat_new_token",
		}
		body, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/shops/connect", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		mocks.shops.AssertExpectations(t)
		mocks.enqueuer.AssertExpectations(t)
	})

	t.Run("succeeds even when the export queue is full", func(t *testing.T) {
		router, mocks, handler := setupShopTestRouter()
		router.POST("/shops/connect", handler.Connect)

		mocks.shops.On("FindByDomain", mock.Anything, "acme.myplatform.com").
			Return(nil, shared.ErrNotFound)
		mocks.shops.On("Save", mock.Anything, mock.AnythingOfType("*shop.Shop")).
			Return(nil)
		mocks.enqueuer.On("EnqueueExports", mock.AnythingOfType("uuid.UUID")).
			Return(assert.AnError)

		reqBody := ConnectShopRequest{
			Domain:      "acme.myplatform.com",
			AccessToken: "shpat_test_token",
		}
		body, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/shops/connect", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		mocks.enqueuer.AssertExpectations(t)
	})

	t.Run("returns 400 for missing access token", func(t *testing.T) {
		router, _, handler := setupShopTestRouter()
		router.POST("/shops/connect", handler.Connect)

		reqBody := map[string]interface{}{
			"domain": "acme.myplatform.com",
		}
		body, _ := json.Marshal(reqBody)

		req, _ := http.NewRequest(http.MethodPost, "/shops/connect", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestShopHandler_Disconnect(t *testing.T) {
	t.Run("disconnects a connected shop", func(t *testing.T) {
		router, mocks, handler := setupShopTestRouter()
		router.DELETE("/shops/:id", handler.Disconnect)

		sh := connectedTestShop(t, "acme.myplatform.com")

		mocks.shops.On("FindByID", mock.Anything, sh.ID).Return(sh, nil)
		mocks.shops.On("Save", mock.Anything, sh).Return(nil)
		mocks.jobs.On("AbandonShopJobs", mock.Anything, sh.ID).Return(int64(2), nil)

		req, _ := http.NewRequest(http.MethodDelete, "/shops/"+sh.ID.String(), nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		require.NoError(t, err)
		data := response["data"].(map[string]interface{})
		assert.Equal(t, "disconnected", data["status"])
		assert.NotEmpty(t, data["disconnected_at"])

		mocks.shops.AssertExpectations(t)
		mocks.jobs.AssertExpectations(t)
	})

	t.Run("returns 404 for unknown shop", func(t *testing.T) {
		router, mocks, handler := setupShopTestRouter()
		router.DELETE("/shops/:id", handler.Disconnect)

		shopID := uuid.New()
		mocks.shops.On("FindByID", mock.Anything, shopID).
			Return(nil, shared.ErrNotFound)

		req, _ := http.NewRequest(http.MethodDelete, "/shops/"+shopID.String(), nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)

		mocks.shops.AssertExpectations(t)
	})

	t.Run("returns 400 for invalid shop ID", func(t *testing.T) {
		router, _, handler := setupShopTestRouter()
		router.DELETE("/shops/:id", handler.Disconnect)

		req, _ := http.NewRequest(http.MethodDelete, "/shops/not-a-uuid", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("returns 422 for an already disconnected shop", func(t *testing.T) {
		router, mocks, handler := setupShopTestRouter()
		router.DELETE("/shops/:id", handler.Disconnect)

		sh := connectedTestShop(t, "acme.myplatform.com")
		require.NoError(t, sh.Disconnect())

		mocks.shops.On("FindByID", mock.Anything, sh.ID).Return(sh, nil)

		req, _ := http.NewRequest(http.MethodDelete, "/shops/"+sh.ID.String(), nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		mocks.shops.AssertExpectations(t)
	})
}

func TestShopHandler_GetByID(t *testing.T) {
	t.Run("returns shop", func(t *testing.T) {
		router, mocks, handler := setupShopTestRouter()
		router.GET("/shops/:id", handler.GetByID)

		sh := connectedTestShop(t, "acme.myplatform.com")
		mocks.shops.On("FindByID", mock.Anything, sh.ID).Return(sh, nil)

		req, _ := http.NewRequest(http.MethodGet, "/shops/"+sh.ID.String(), nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "acme.myplatform.com")

		mocks.shops.AssertExpectations(t)
	})

	t.Run("returns 404 for unknown shop", func(t *testing.T) {
		router, mocks, handler := setupShopTestRouter()
		router.GET("/shops/:id", handler.GetByID)

		shopID := uuid.New()
		mocks.shops.On("FindByID", mock.Anything, shopID).
			Return(nil, shared.ErrNotFound)

		req, _ := http.NewRequest(http.MethodGet, "/shops/"+shopID.String(), nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestShopHandler_List(t *testing.T) {
	router, mocks, handler := setupShopTestRouter()
	router.GET("/shops", handler.List)

	shops := []*shop.Shop{
		connectedTestShop(t, "acme.myplatform.com"),
		connectedTestShop(t, "globex.myplatform.com"),
	}
	mocks.shops.On("FindConnected", mock.Anything).Return(shops, nil)

	req, _ := http.NewRequest(http.MethodGet, "/shops", nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	data := response["data"].([]interface{})
	assert.Len(t, data, 2)

	mocks.shops.AssertExpectations(t)
}
