package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/StimpyDev/EconomyCraft/internal/catalog"
	"github.com/StimpyDev/EconomyCraft/internal/config"
	"github.com/StimpyDev/EconomyCraft/internal/handler"
	"github.com/StimpyDev/EconomyCraft/internal/logger"
	"github.com/StimpyDev/EconomyCraft/internal/metrics"
	"github.com/StimpyDev/EconomyCraft/internal/middleware"
	"github.com/StimpyDev/EconomyCraft/internal/model"
	"github.com/StimpyDev/EconomyCraft/internal/repository"
	"github.com/StimpyDev/EconomyCraft/internal/router"
	"github.com/StimpyDev/EconomyCraft/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "test-key"

const testItems = `
items:
  - key: diamond
    sell_price: 100
    category: ores
  - key: bread
    buy_price: 5
    category: food
`

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testServer struct {
	eco *service.Economy
	mux http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.Discard()

	store, err := repository.NewFileRecordStore(t.TempDir(), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	items, err := catalog.Parse([]byte(testItems))
	require.NoError(t, err)

	cfg := config.EconomyConfig{
		StartingBalance:     100,
		DailyAmount:         50,
		TaxRate:             0.1,
		MaxRequestStacks:    36,
		SellConfirmWindow:   20 * time.Second,
		Timezone:            "UTC",
		ServerShopEnabled:   true,
		TopPageSize:         10,
		EventSubscriberSize: 16,
	}
	eco, err := service.Open(context.Background(), store, cfg,
		service.WithLogger(log), service.WithCatalog(items))
	require.NoError(t, err)
	t.Cleanup(func() { _ = eco.Close(context.Background()) })

	m := metrics.New()
	mux := router.New(router.Config{
		Logger:         log,
		Metrics:        m,
		Handler:        handler.New(eco, "economycraft", "test"),
		EconomyHandler: handler.NewEconomyHandler(eco),
		MarketHandler:  handler.NewMarketHandler(eco),
		ShopHandler:    handler.NewShopHandler(eco, items),
		MailboxHandler: handler.NewMailboxHandler(eco),
		LogHandler:     handler.NewLogHandler(eco),
		AdminHandler:   handler.NewAdminHandler(eco, nil, "file"),
		EventsHandler:  handler.NewEventsHandler(eco.Hub, 16, log),
		AuthMiddleware: middleware.NewAuthMiddleware(middleware.AuthConfig{APIKeys: []string{testKey}, Logger: log}),
	})
	return &testServer{eco: eco, mux: mux}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-API-Key", testKey)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	var env envelope
	if rec.Code != http.StatusNoContent {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestPublicAndAuthenticatedRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/listings", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBalanceEndpoints(t *testing.T) {
	s := newTestServer(t)
	p := uuid.New()
	base := "/api/v1/players/" + p.String()

	rec, env := s.do(t, http.MethodGet, base+"/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeData[handler.BalanceResponse](t, env).Exists)

	rec, env = s.do(t, http.MethodPut, base+"/balance", handler.AmountRequest{Amount: 500})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(500), decodeData[handler.BalanceResponse](t, env).Balance)

	rec, env = s.do(t, http.MethodPost, base+"/balance/add", handler.AmountRequest{Amount: 25})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(525), decodeData[handler.BalanceResponse](t, env).Balance)

	rec, env = s.do(t, http.MethodPost, base+"/balance/remove", handler.AmountRequest{Amount: 1000})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "INSUFFICIENT_FUNDS", env.Error.Code)

	rec, env = s.do(t, http.MethodPost, base+"/balance/remove", handler.AmountRequest{Amount: 25})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(500), decodeData[handler.BalanceResponse](t, env).Balance)

	rec, _ = s.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, exists := s.eco.Ledger.GetBalance(context.Background(), p, false)
	assert.False(t, exists)
}

func TestInvalidPlayerID(t *testing.T) {
	s := newTestServer(t)
	rec, env := s.do(t, http.MethodGet, "/api/v1/players/not-a-uuid/balance", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestDailyClaim(t *testing.T) {
	s := newTestServer(t)
	base := "/api/v1/players/" + uuid.NewString()

	rec, _ := s.do(t, http.MethodPost, base+"/daily", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := s.do(t, http.MethodPost, base+"/daily", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_CLAIMED", env.Error.Code)

	_, env = s.do(t, http.MethodGet, base+"/daily", nil)
	status := decodeData[map[string]any](t, env)
	assert.Equal(t, true, status["claimed_today"])
}

func TestPayments(t *testing.T) {
	s := newTestServer(t)
	from, to := uuid.NewString(), uuid.NewString()

	rec, env := s.do(t, http.MethodPost, "/api/v1/payments", handler.PaymentRequest{From: from, To: to, Amount: 40})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeData[map[string]int64](t, env)
	assert.Equal(t, int64(60), res["from_balance"])
	assert.Equal(t, int64(140), res["to_balance"])

	rec, env = s.do(t, http.MethodPost, "/api/v1/payments", handler.PaymentRequest{From: from, To: from, Amount: 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_AMOUNT", env.Error.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/v1/payments", handler.PaymentRequest{From: from, To: to, Amount: 1000})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestListingPurchaseFlow(t *testing.T) {
	s := newTestServer(t)
	seller, buyer := uuid.New(), uuid.New()

	rec, env := s.do(t, http.MethodPost, "/api/v1/listings", handler.CreateListingRequest{
		Seller: seller.String(),
		Item:   model.NewItem("diamond", 3, nil),
		Price:  50,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	listing := decodeData[handler.ListingView](t, env)
	assert.Equal(t, int64(5), listing.Tax)

	path := "/api/v1/listings/" + jsonInt(listing.ID)
	rec, env = s.do(t, http.MethodPost, path+"/purchase", handler.PlayerRequest{Player: buyer.String()})
	require.Equal(t, http.StatusOK, rec.Code)
	receipt := decodeData[service.PurchaseReceipt](t, env)
	assert.Equal(t, int64(55), receipt.Total)
	assert.False(t, receipt.Delivered, "no inventory attached")

	ctx := context.Background()
	assert.Equal(t, int64(45), s.eco.Ledger.Balance(ctx, buyer))
	assert.Equal(t, int64(150), s.eco.Ledger.Balance(ctx, seller))

	rec, _ = s.do(t, http.MethodPost, path+"/purchase", handler.PlayerRequest{Player: buyer.String()})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, env = s.do(t, http.MethodGet, "/api/v1/players/"+buyer.String()+"/mailbox", nil)
	box := decodeData[struct {
		Items []model.Item `json:"items"`
	}](t, env)
	require.Len(t, box.Items, 1)
	assert.Equal(t, 3, box.Items[0].Count)

	_, env = s.do(t, http.MethodPost, "/api/v1/players/"+buyer.String()+"/mailbox/claim", nil)
	box = decodeData[struct {
		Items []model.Item `json:"items"`
	}](t, env)
	assert.Len(t, box.Items, 1)
	assert.False(t, s.eco.Mailbox.HasDeliveries(buyer))
}

func TestCancelListingByOtherPlayer(t *testing.T) {
	s := newTestServer(t)
	l, err := s.eco.Listings.AddListing(context.Background(), uuid.New(), model.NewItem("diamond", 1, nil), 10)
	require.NoError(t, err)

	rec, env := s.do(t, http.MethodPost, "/api/v1/listings/"+jsonInt(l.ID)+"/cancel", handler.PlayerRequest{Player: uuid.NewString()})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/listings/"+jsonInt(l.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestsWithoutInventory(t *testing.T) {
	s := newTestServer(t)
	requester := uuid.NewString()

	rec, env := s.do(t, http.MethodPost, "/api/v1/requests", handler.CreateRequestRequest{
		Requester: requester,
		Item:      model.NewItem("diamond", 1, nil),
		Amount:    10,
		Price:     50,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	req := decodeData[model.OrderRequest](t, env)

	rec, _ = s.do(t, http.MethodPost, "/api/v1/requests/"+jsonInt(req.ID)+"/fulfill", handler.PlayerRequest{Player: uuid.NewString()})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	_, env = s.do(t, http.MethodGet, "/api/v1/requests?requester="+requester, nil)
	assert.Len(t, decodeData[[]model.OrderRequest](t, env), 1)

	rec, _ = s.do(t, http.MethodDelete, "/api/v1/requests/"+jsonInt(req.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = s.do(t, http.MethodDelete, "/api/v1/requests/"+jsonInt(req.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShopBuy(t *testing.T) {
	s := newTestServer(t)
	p := uuid.New()
	base := "/api/v1/players/" + p.String()

	rec, env := s.do(t, http.MethodPost, base+"/shop/buy", handler.BuyRequest{Key: "bread", Count: 10})
	require.Equal(t, http.StatusOK, rec.Code)
	receipt := decodeData[service.ShopReceipt](t, env)
	assert.Equal(t, int64(50), receipt.Total)
	assert.Equal(t, int64(50), receipt.Balance)

	rec, _ = s.do(t, http.MethodPost, base+"/shop/buy", handler.BuyRequest{Key: "diamond", Count: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(t, http.MethodPost, base+"/sell", handler.SellRequest{Item: model.NewItem("diamond", 1, nil), Count: 1})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	_, env = s.do(t, http.MethodGet, "/api/v1/shop/items?category=food", nil)
	listing := decodeData[struct {
		Items []model.ItemDescriptor `json:"items"`
	}](t, env)
	require.Len(t, listing.Items, 1)
	assert.Equal(t, "bread", listing.Items[0].Key)
}

func TestTopBalances(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	rich := uuid.New()
	s.eco.Ledger.SetMoney(ctx, uuid.New(), 10)
	s.eco.Ledger.SetMoney(ctx, rich, 900)
	require.NoError(t, s.eco.Directory.Register(ctx, rich, "Steve"))

	rec, env := s.do(t, http.MethodGet, "/api/v1/balances/top", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeData[[]model.BalanceEntry](t, env)
	require.Len(t, entries, 2)
	assert.Equal(t, rich, entries[0].Player)
	assert.Equal(t, "Steve", entries[0].Name)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/balances/top?page=5", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, env = s.do(t, http.MethodGet, "/api/v1/names/steve", nil)
	assert.Equal(t, rich.String(), decodeData[map[string]string](t, env)["player"])
}

func TestTransactionsWithoutAuditLog(t *testing.T) {
	s := newTestServer(t)
	rec, _ := s.do(t, http.MethodGet, "/api/v1/players/"+uuid.NewString()+"/transactions", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEventStream(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.mux)
	defer srv.Close()

	p := uuid.New()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events?player=" + p.String()
	header := http.Header{"X-API-Key": []string{testKey}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	s.eco.Ledger.SetMoney(context.Background(), uuid.New(), 1)
	s.eco.Ledger.SetMoney(context.Background(), p, 777)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev model.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, model.EventBalanceChanged, ev.Kind)
	assert.Equal(t, p, ev.Player, "events for other players are filtered out")
	assert.Equal(t, int64(777), ev.Amount)
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
