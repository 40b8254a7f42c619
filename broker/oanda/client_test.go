package oanda

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/trendbot/broker"
	"github.com/rustyeddy/trendbot/market"
)

func testClient(serverURL string) *Client {
	return &Client{
		baseURL:    serverURL,
		token:      "test-token",
		accountID:  "101-001-1234567-001",
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func TestNewClient(t *testing.T) {
	t.Run("practice mode", func(t *testing.T) {
		client := NewClient("test-token", "acct", true)
		assert.Equal(t, PracticeURL, client.baseURL)
		assert.Equal(t, "test-token", client.token)
		assert.NotNil(t, client.httpClient)
	})

	t.Run("live mode", func(t *testing.T) {
		client := NewClient("test-token", "acct", false)
		assert.Equal(t, LiveURL, client.baseURL)
	})
}

func TestGetCandles_Success(t *testing.T) {
	mockResponse := candlesResponse{
		Instrument: "EUR_USD",
		Candles: []apiCandle{
			{
				Complete: true,
				Volume:   100,
				Time:     "2026-08-20T10:00:00.000000000Z",
				Mid:      candleData{O: "1.1650", H: "1.1660", L: "1.1640", C: "1.1655"},
			},
			{
				Complete: false,
				Volume:   12,
				Time:     "2026-08-20T10:15:00.000000000Z",
				Mid:      candleData{O: "1.1655", H: "1.1658", L: "1.1652", C: "1.1657"},
			},
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "M", r.URL.Query().Get("price"))
		assert.Equal(t, "M15", r.URL.Query().Get("granularity"))
		assert.Equal(t, "100", r.URL.Query().Get("count"))

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(mockResponse)
	}))
	defer server.Close()

	candles, err := testClient(server.URL).GetCandles(context.Background(), "EUR_USD", market.M15, 100)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, 1.1650, candles[0].Open)
	assert.Equal(t, 1.1660, candles[0].High)
	assert.Equal(t, 1.1640, candles[0].Low)
	assert.Equal(t, 1.1655, candles[0].Close)
	assert.Equal(t, 100.0, candles[0].Volume)
	assert.True(t, candles[0].Complete)

	// The forming candle is kept with its flag so closed-only mode can
	// strip it later.
	assert.False(t, candles[1].Complete)
}

func TestGetCandles_Validation(t *testing.T) {
	client := NewClient("test-token", "acct", true)

	_, err := client.GetCandles(context.Background(), "", market.M15, 10)
	assert.Error(t, err)

	_, err = client.GetCandles(context.Background(), "EUR_USD", market.M15, 6000)
	assert.Error(t, err)
}

func TestGetTick(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "EUR_USD", r.URL.Query().Get("instruments"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"prices":[{
			"instrument":"EUR_USD",
			"time":"2026-08-20T10:00:00.000000000Z",
			"bids":[{"price":"1.16630"}],
			"asks":[{"price":"1.16650"}]
		}]}`))
	}))
	defer server.Close()

	tick, err := testClient(server.URL).GetTick(context.Background(), "EUR_USD")
	require.NoError(t, err)
	assert.Equal(t, 1.16630, tick.Bid)
	assert.Equal(t, 1.16650, tick.Ask)
	assert.InDelta(t, 0.0002, tick.Spread(), 1e-9)
}

func TestGetAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/summary")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"account":{
			"id":"101-001-1234567-001",
			"currency":"USD",
			"balance":"10000.00",
			"NAV":"10042.50",
			"marginUsed":"250.00",
			"marginAvailable":"9792.50"
		}}`))
	}))
	defer server.Close()

	acct, err := testClient(server.URL).GetAccount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "101-001-1234567-001", acct.ID)
	assert.Equal(t, 10000.0, acct.Balance)
	assert.Equal(t, 10042.5, acct.Equity)
}

func TestPlaceOrder_Filled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var body orderBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "MARKET", body.Order.Type)
		assert.Equal(t, "FOK", body.Order.TimeInForce)
		assert.Equal(t, "EUR_USD", body.Order.Instrument)
		assert.Equal(t, "83000", body.Order.Units)
		require.NotNil(t, body.Order.StopLossOnFill)
		assert.Equal(t, "1.16140", body.Order.StopLossOnFill.Price)
		assert.Equal(t, "GTC", body.Order.StopLossOnFill.TimeInForce)
		require.NotNil(t, body.Order.TakeProfitOnFill)
		assert.Equal(t, "1.16404", body.Order.TakeProfitOnFill.Price)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{
			"orderFillTransaction":{
				"price":"1.16262",
				"units":"83000",
				"time":"2026-08-20T10:00:01.000000000Z",
				"tradeOpened":{"tradeID":"12345"}
			},
			"stopLossOrderTransaction":{"id":"12346","price":"1.16140"},
			"takeProfitOrderTransaction":{"id":"12347","price":"1.16404"}
		}`))
	}))
	defer server.Close()

	stop := 1.16140
	tp := 1.16404
	fill, err := testClient(server.URL).PlaceOrder(context.Background(), broker.OrderRequest{
		Instrument: "EUR_USD",
		Units:      83000,
		StopLoss:   &stop,
		TakeProfit: &tp,
	})
	require.NoError(t, err)
	assert.Equal(t, "12345", fill.TradeID)
	assert.Equal(t, 1.16262, fill.FillPrice)
	assert.Equal(t, "12346", fill.StopLossOrderID)
	assert.Equal(t, "12347", fill.TakeProfitOrderID)
	assert.Equal(t, 1.16404, fill.TakeProfitPrice)
}

func TestPlaceOrder_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"orderCancelTransaction":{"reason":"INSUFFICIENT_LIQUIDITY"}}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).PlaceOrder(context.Background(), broker.OrderRequest{
		Instrument: "EUR_USD",
		Units:      1000,
	})
	require.Error(t, err)

	var berr *broker.Error
	require.True(t, errors.As(err, &berr))
	assert.Equal(t, "ORDER_NOT_FILLED", berr.Code)
	assert.Contains(t, berr.Message, "INSUFFICIENT_LIQUIDITY")
	assert.False(t, broker.IsTransient(err), "an unfilled FOK order is a rejection")
}

func TestGetOpenTrades_FiltersInstrument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"trades":[
			{
				"id":"100","instrument":"EUR_USD","currentUnits":"83000",
				"price":"1.16262","openTime":"2026-08-20T10:00:01.000000000Z",
				"unrealizedPL":"14.50",
				"stopLossOrder":{"id":"101","price":"1.16140"},
				"takeProfitOrder":{"id":"102","price":"1.16404"}
			},
			{
				"id":"200","instrument":"GBP_USD","currentUnits":"-5000",
				"price":"1.34000","openTime":"2026-08-20T09:00:00.000000000Z",
				"unrealizedPL":"-3.20"
			}
		]}`))
	}))
	defer server.Close()

	trades, err := testClient(server.URL).GetOpenTrades(context.Background(), "EUR_USD")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "100", trades[0].ID)
	assert.Equal(t, 83000.0, trades[0].Units)
	assert.Equal(t, "101", trades[0].StopLossOrderID)
	assert.Equal(t, 1.16404, trades[0].TakeProfitPrice)
	assert.Equal(t, 14.5, trades[0].UnrealizedPL)
}

func TestModifyStopLoss_ReturnsNewOrderID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Contains(t, r.URL.Path, "/orders/101")

		var body orderBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "STOP_LOSS", body.Order.Type)
		assert.Equal(t, "100", body.Order.TradeID)
		assert.Equal(t, "1.16460", body.Order.Price)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"stopLossOrderTransaction":{"id":"103"}}`))
	}))
	defer server.Close()

	newID, err := testClient(server.URL).ModifyStopLoss(context.Background(), "100", "101", 1.16460)
	require.NoError(t, err)
	assert.Equal(t, "103", newID)
}

func TestModify_StaleOrderID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errorMessage":"The Order specified does not exist"}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).ModifyStopLoss(context.Background(), "100", "stale", 1.16460)
	assert.ErrorIs(t, err, broker.ErrOrderNotFound)
	assert.False(t, broker.IsTransient(err))
}

func TestClosePosition(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Contains(t, r.URL.Path, "/positions/EUR_USD/close")

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ALL", body["longUnits"])

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"longOrderFillTransaction":{
			"price":"1.16300",
			"pl":"31.54",
			"reason":"MARKET_ORDER_POSITION_CLOSEOUT",
			"time":"2026-08-20T12:00:00.000000000Z"
		}}`))
	}))
	defer server.Close()

	result, err := testClient(server.URL).ClosePosition(context.Background(), "EUR_USD")
	require.NoError(t, err)
	assert.Equal(t, 1.16300, result.Price)
	assert.Equal(t, 31.54, result.RealizedPL)
	assert.Equal(t, "MARKET_ORDER_POSITION_CLOSEOUT", result.Reason)
}

func TestDo_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"errorMessage":"service unavailable"}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).GetAccount(context.Background())
	require.Error(t, err)
	assert.True(t, broker.IsTransient(err))
}
