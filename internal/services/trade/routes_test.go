package trade

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/reloop-api/internal/auth"
	"github.com/rajivgeraev/reloop-api/internal/logger"
	"github.com/rajivgeraev/reloop-api/internal/middleware"
	"github.com/rajivgeraev/reloop-api/internal/mocks"
	"github.com/rajivgeraev/reloop-api/internal/models"
	"github.com/rajivgeraev/reloop-api/internal/notifier"
)

// newTestApp поднимает маршруты обменов; токеном служит ID пользователя
func newTestApp(t *testing.T, f *fixture) func(method, path, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	ctrl := gomock.NewController(t)
	verifier := mocks.NewMockTokenVerifier(ctrl)
	verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, token string) (*auth.Identity, error) {
			return &auth.Identity{UserID: token}, nil
		}).AnyTimes()

	log := logger.Discard()
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(log)})
	f.svc.SetupRoutes(app, middleware.AuthMiddleware(verifier, nil, log))

	return func(method, path, token, body string) (*http.Response, map[string]any) {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		var out map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return resp, out
	}
}

func TestHTTP_RequestAndReject(t *testing.T) {
	f := newFixture(t, map[string]int64{"buyer": 20, "seller": 10, "other": 100})
	do := newTestApp(t, f)

	resp, _ := do(http.MethodPost, "/api/trades", "", `{"listing_id":"lamp"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(http.MethodPost, "/api/trades", "buyer", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(http.MethodPost, "/api/trades", "seller", `{"listing_id":"lamp"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "свое объявление")

	resp, body := do(http.MethodPost, "/api/trades", "buyer", `{"listing_id":"lamp"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tradeID, _ := body["trade_id"].(string)
	require.NotEmpty(t, tradeID)
	assert.Equal(t, "conv-buyer-seller-lamp", body["conversation_id"])

	// объявление занято запросом покупателя
	resp, _ = do(http.MethodPost, "/api/trades", "other", `{"listing_id":"lamp"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = do(http.MethodPost, "/api/trades/"+tradeID+"/accept", "buyer", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// у покупателя 20 монет при цене 40
	resp, _ = do(http.MethodPost, "/api/trades/"+tradeID+"/accept", "seller", "")
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, models.ListingPending, f.listingStatus(t))
	assert.Equal(t, int64(20), f.coins(t, "buyer"))
	assert.Equal(t, int64(10), f.coins(t, "seller"))

	resp, _ = do(http.MethodPost, "/api/trades/no-such-trade/accept", "seller", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(http.MethodPost, "/api/trades/"+tradeID+"/reject", "other", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = do(http.MethodPost, "/api/trades/"+tradeID+"/reject", "seller", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(models.TradeRejected), body["status"])
	assert.Equal(t, models.ListingAvailable, f.listingStatus(t))

	resp, _ = do(http.MethodPost, "/api/trades/"+tradeID+"/reject", "seller", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = do(http.MethodGet, "/api/trades", "buyer", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	trades, _ := body["trades"].([]any)
	require.Len(t, trades, 1)
	assert.Equal(t, "buyer", trades[0].(map[string]any)["role"])
}

func TestHTTP_Accept(t *testing.T) {
	f := newFixture(t, map[string]int64{"buyer": 100, "seller": 10})
	f.notifier.EXPECT().NotifyProgress(gomock.Any(), gomock.Any(), notifier.EventCompleteTrade, 1).Return(nil).Times(2)
	do := newTestApp(t, f)

	resp, body := do(http.MethodPost, "/api/trades", "buyer", `{"listing_id":"lamp"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tradeID, _ := body["trade_id"].(string)

	resp, body = do(http.MethodPost, "/api/trades/"+tradeID+"/accept", "seller", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(models.TradeCompleted), body["status"])
	assert.Equal(t, models.ListingSold, f.listingStatus(t))
	assert.Equal(t, int64(60), f.coins(t, "buyer"))
	assert.Equal(t, int64(50), f.coins(t, "seller"))

	// завершенный обмен не принимается и не отклоняется повторно
	resp, _ = do(http.MethodPost, "/api/trades/"+tradeID+"/accept", "seller", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp, _ = do(http.MethodPost, "/api/trades/"+tradeID+"/reject", "buyer", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
