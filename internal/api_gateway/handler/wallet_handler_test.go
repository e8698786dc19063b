package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/unifarm-balance-ledger/internal/domain/wallet"
)

type MockWalletService struct {
	mock.Mock
}

func (m *MockWalletService) CreateWallet(ctx context.Context, userID int64, referredBy *int64) (*wallet.Wallet, error) {
	args := m.Called(ctx, userID, referredBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletService) GetWallet(ctx context.Context, userID int64) (*wallet.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.Default()
	return r
}

func testHandlerLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

// decodeData re-marshals the untyped data field into the expected DTO.
func decodeData(t *testing.T, body []byte, out interface{}) *Response {
	t.Helper()

	var topLevel Response
	require.NoError(t, json.Unmarshal(body, &topLevel))
	require.NotNil(t, topLevel.Data, "'data' field should not be nil")

	dataBytes, err := json.Marshal(topLevel.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(dataBytes, out))
	return &topLevel
}

func decodeError(t *testing.T, body []byte) *ErrorInfo {
	t.Helper()

	var topLevel Response
	require.NoError(t, json.Unmarshal(body, &topLevel))
	require.NotNil(t, topLevel.Error, "'error' field should not be nil")
	return topLevel.Error
}

func TestWalletHandler_Create(t *testing.T) {
	logger := testHandlerLogger()

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockWalletService)
		handler := NewWalletHandler(logger, mockService)

		now := time.Now()
		referrer := int64(17)
		created := &wallet.Wallet{
			UserID:     42,
			ReferredBy: &referrer,
			BalanceUni: decimal.Zero,
			BalanceTon: decimal.Zero,
			Version:    1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		mockService.On("CreateWallet", mock.Anything, int64(42), &referrer).Return(created, nil)

		router := setupTestRouter()
		router.POST("/wallets", handler.Create)

		jsonBody, _ := json.Marshal(CreateWalletRequest{UserID: 42, ReferredBy: &referrer})
		req, _ := http.NewRequest(http.MethodPost, "/wallets", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var responseBody WalletResponse
		decodeData(t, rr.Body.Bytes(), &responseBody)
		assert.Equal(t, int64(42), responseBody.UserID)
		require.NotNil(t, responseBody.ReferredBy)
		assert.Equal(t, int64(17), *responseBody.ReferredBy)
		assert.Equal(t, "0", responseBody.BalanceUni)
		assert.Equal(t, "0", responseBody.BalanceTon)

		mockService.AssertExpectations(t)
	})

	t.Run("DuplicateWallet", func(t *testing.T) {
		mockService := new(MockWalletService)
		handler := NewWalletHandler(logger, mockService)

		mockService.On("CreateWallet", mock.Anything, int64(42), (*int64)(nil)).
			Return(nil, wallet.ErrDuplicateWallet{UserID: 42})

		router := setupTestRouter()
		router.POST("/wallets", handler.Create)

		jsonBody, _ := json.Marshal(CreateWalletRequest{UserID: 42})
		req, _ := http.NewRequest(http.MethodPost, "/wallets", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "CONFLICT", decodeError(t, rr.Body.Bytes()).Code)
	})

	t.Run("InvalidRequestBody", func(t *testing.T) {
		mockService := new(MockWalletService)
		handler := NewWalletHandler(logger, mockService)

		router := setupTestRouter()
		router.POST("/wallets", handler.Create)

		req, _ := http.NewRequest(http.MethodPost, "/wallets", bytes.NewBufferString(`{"user_id": -1}`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "CreateWallet", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestWalletHandler_GetByUserID(t *testing.T) {
	logger := testHandlerLogger()

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockWalletService)
		handler := NewWalletHandler(logger, mockService)

		mockService.On("GetWallet", mock.Anything, int64(42)).Return(&wallet.Wallet{
			UserID:     42,
			BalanceUni: decimal.RequireFromString("100.5"),
			BalanceTon: decimal.RequireFromString("2.25"),
		}, nil)

		router := setupTestRouter()
		router.GET("/wallets/:user_id", handler.GetByUserID)

		req, _ := http.NewRequest(http.MethodGet, "/wallets/42", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var responseBody WalletResponse
		decodeData(t, rr.Body.Bytes(), &responseBody)
		assert.Equal(t, "100.5", responseBody.BalanceUni)
		assert.Equal(t, "2.25", responseBody.BalanceTon)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockService := new(MockWalletService)
		handler := NewWalletHandler(logger, mockService)

		mockService.On("GetWallet", mock.Anything, int64(42)).
			Return(nil, wallet.ErrWalletNotFound{UserID: 42})

		router := setupTestRouter()
		router.GET("/wallets/:user_id", handler.GetByUserID)

		req, _ := http.NewRequest(http.MethodGet, "/wallets/42", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("InvalidUserID", func(t *testing.T) {
		mockService := new(MockWalletService)
		handler := NewWalletHandler(logger, mockService)

		router := setupTestRouter()
		router.GET("/wallets/:user_id", handler.GetByUserID)

		req, _ := http.NewRequest(http.MethodGet, "/wallets/abc", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "GetWallet", mock.Anything, mock.Anything)
	})
}
