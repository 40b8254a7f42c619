// Package oanda implements broker.Gateway against the OANDA v20 REST API.
package oanda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rustyeddy/trendbot/broker"
	"github.com/rustyeddy/trendbot/market"
)

const (
	// PracticeURL is OANDA's practice/demo environment.
	PracticeURL = "https://api-fxpractice.oanda.com"
	// LiveURL is OANDA's live trading environment.
	LiveURL = "https://api-fxtrade.oanda.com"
)

// Client is an OANDA v20 REST client bound to one account.
type Client struct {
	baseURL    string
	token      string
	accountID  string
	httpClient *http.Client
}

// NewClient creates a client for the given account. Practice selects the
// demo environment.
func NewClient(token, accountID string, practice bool) *Client {
	baseURL := LiveURL
	if practice {
		baseURL = PracticeURL
	}
	return &Client{
		baseURL:   baseURL,
		token:     token,
		accountID: accountID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

var _ broker.Gateway = (*Client)(nil)

type candleData struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

type apiCandle struct {
	Complete bool       `json:"complete"`
	Volume   int        `json:"volume"`
	Time     string     `json:"time"`
	Mid      candleData `json:"mid"`
}

type candlesResponse struct {
	Instrument string      `json:"instrument"`
	Candles    []apiCandle `json:"candles"`
}

// GetCandles fetches the most recent count mid-price candles. Incomplete
// candles are included (Complete=false) so the caller can choose closed-only
// evaluation.
func (c *Client) GetCandles(ctx context.Context, instrument string, granularity market.Granularity, count int) ([]market.Candle, error) {
	if instrument == "" {
		return nil, fmt.Errorf("oanda: instrument is required")
	}
	if count <= 0 || count > 5000 {
		return nil, fmt.Errorf("oanda: count must be in 1..5000, got %d", count)
	}

	params := url.Values{}
	params.Set("price", "M")
	params.Set("granularity", string(granularity))
	params.Set("count", strconv.Itoa(count))

	var resp candlesResponse
	path := fmt.Sprintf("/v3/instruments/%s/candles?%s", instrument, params.Encode())
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	candles := make([]market.Candle, 0, len(resp.Candles))
	for _, ac := range resp.Candles {
		t, err := time.Parse(time.RFC3339, ac.Time)
		if err != nil {
			return nil, fmt.Errorf("oanda: parse candle time %q: %w", ac.Time, err)
		}
		open, err1 := strconv.ParseFloat(ac.Mid.O, 64)
		high, err2 := strconv.ParseFloat(ac.Mid.H, 64)
		low, err3 := strconv.ParseFloat(ac.Mid.L, 64)
		cls, err4 := strconv.ParseFloat(ac.Mid.C, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			return nil, fmt.Errorf("oanda: parse candle prices at %s", ac.Time)
		}
		candles = append(candles, market.Candle{
			Time:     t.UTC(),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    cls,
			Volume:   float64(ac.Volume),
			Complete: ac.Complete,
		})
	}
	return candles, nil
}

type pricingResponse struct {
	Prices []struct {
		Instrument string `json:"instrument"`
		Time       string `json:"time"`
		Bids       []struct {
			Price string `json:"price"`
		} `json:"bids"`
		Asks []struct {
			Price string `json:"price"`
		} `json:"asks"`
	} `json:"prices"`
}

func (c *Client) GetTick(ctx context.Context, instrument string) (market.Tick, error) {
	params := url.Values{}
	params.Set("instruments", instrument)

	var resp pricingResponse
	path := fmt.Sprintf("/v3/accounts/%s/pricing?%s", c.accountID, params.Encode())
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return market.Tick{}, err
	}
	if len(resp.Prices) == 0 || len(resp.Prices[0].Bids) == 0 || len(resp.Prices[0].Asks) == 0 {
		return market.Tick{}, fmt.Errorf("oanda: no pricing for %s", instrument)
	}

	p := resp.Prices[0]
	bid, err1 := strconv.ParseFloat(p.Bids[0].Price, 64)
	ask, err2 := strconv.ParseFloat(p.Asks[0].Price, 64)
	if err1 != nil || err2 != nil {
		return market.Tick{}, fmt.Errorf("oanda: parse pricing for %s", instrument)
	}
	t, _ := time.Parse(time.RFC3339, p.Time)

	return market.Tick{Instrument: instrument, Time: t.UTC(), Bid: bid, Ask: ask}, nil
}

type accountResponse struct {
	Account struct {
		ID              string `json:"id"`
		Currency        string `json:"currency"`
		Balance         string `json:"balance"`
		NAV             string `json:"NAV"`
		MarginUsed      string `json:"marginUsed"`
		MarginAvailable string `json:"marginAvailable"`
	} `json:"account"`
}

func (c *Client) GetAccount(ctx context.Context) (broker.Account, error) {
	var resp accountResponse
	path := fmt.Sprintf("/v3/accounts/%s/summary", c.accountID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return broker.Account{}, err
	}

	a := resp.Account
	balance, _ := strconv.ParseFloat(a.Balance, 64)
	equity, _ := strconv.ParseFloat(a.NAV, 64)
	marginUsed, _ := strconv.ParseFloat(a.MarginUsed, 64)
	marginAvail, _ := strconv.ParseFloat(a.MarginAvailable, 64)

	return broker.Account{
		ID:          a.ID,
		Currency:    a.Currency,
		Balance:     balance,
		Equity:      equity,
		MarginUsed:  marginUsed,
		MarginAvail: marginAvail,
	}, nil
}

type orderBody struct {
	Order struct {
		Type             string  `json:"type"`
		Instrument       string  `json:"instrument,omitempty"`
		Units            string  `json:"units,omitempty"`
		TimeInForce      string  `json:"timeInForce"`
		PositionFill     string  `json:"positionFill,omitempty"`
		Price            string  `json:"price,omitempty"`
		TradeID          string  `json:"tradeID,omitempty"`
		StopLossOnFill   *onFill `json:"stopLossOnFill,omitempty"`
		TakeProfitOnFill *onFill `json:"takeProfitOnFill,omitempty"`
	} `json:"order"`
}

type onFill struct {
	Price       string `json:"price"`
	TimeInForce string `json:"timeInForce"`
}

type orderResponse struct {
	OrderFillTransaction *struct {
		Price       string `json:"price"`
		Units       string `json:"units"`
		Time        string `json:"time"`
		TradeOpened *struct {
			TradeID string `json:"tradeID"`
		} `json:"tradeOpened"`
	} `json:"orderFillTransaction"`
	StopLossOrderTransaction *struct {
		ID    string `json:"id"`
		Price string `json:"price"`
	} `json:"stopLossOrderTransaction"`
	TakeProfitOrderTransaction *struct {
		ID    string `json:"id"`
		Price string `json:"price"`
	} `json:"takeProfitOrderTransaction"`
	OrderCancelTransaction *struct {
		Reason string `json:"reason"`
	} `json:"orderCancelTransaction"`
	ErrorMessage string `json:"errorMessage"`
}

func (c *Client) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderFill, error) {
	var body orderBody
	body.Order.Type = "MARKET"
	body.Order.Instrument = req.Instrument
	body.Order.Units = strconv.FormatFloat(req.Units, 'f', 0, 64)
	body.Order.TimeInForce = "FOK"
	body.Order.PositionFill = "DEFAULT"
	if req.StopLoss != nil {
		body.Order.StopLossOnFill = &onFill{Price: formatPrice(*req.StopLoss), TimeInForce: "GTC"}
	}
	if req.TakeProfit != nil {
		body.Order.TakeProfitOnFill = &onFill{Price: formatPrice(*req.TakeProfit), TimeInForce: "GTC"}
	}

	var resp orderResponse
	path := fmt.Sprintf("/v3/accounts/%s/orders", c.accountID)
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return broker.OrderFill{}, err
	}

	if resp.OrderFillTransaction == nil || resp.OrderFillTransaction.TradeOpened == nil {
		reason := resp.ErrorMessage
		if reason == "" && resp.OrderCancelTransaction != nil {
			reason = resp.OrderCancelTransaction.Reason
		}
		if reason == "" {
			reason = "order not filled"
		}
		return broker.OrderFill{}, &broker.Error{Status: http.StatusOK, Code: "ORDER_NOT_FILLED", Message: reason}
	}

	fill := resp.OrderFillTransaction
	price, _ := strconv.ParseFloat(fill.Price, 64)
	units, _ := strconv.ParseFloat(fill.Units, 64)
	fillTime, _ := time.Parse(time.RFC3339, fill.Time)

	out := broker.OrderFill{
		TradeID:   fill.TradeOpened.TradeID,
		FillPrice: price,
		Units:     units,
		Time:      fillTime.UTC(),
	}
	if sl := resp.StopLossOrderTransaction; sl != nil {
		out.StopLossOrderID = sl.ID
		out.StopLossPrice, _ = strconv.ParseFloat(sl.Price, 64)
	}
	if tp := resp.TakeProfitOrderTransaction; tp != nil {
		out.TakeProfitOrderID = tp.ID
		out.TakeProfitPrice, _ = strconv.ParseFloat(tp.Price, 64)
	}
	return out, nil
}

type openTradesResponse struct {
	Trades []struct {
		ID            string `json:"id"`
		Instrument    string `json:"instrument"`
		CurrentUnits  string `json:"currentUnits"`
		Price         string `json:"price"`
		OpenTime      string `json:"openTime"`
		UnrealizedPL  string `json:"unrealizedPL"`
		StopLossOrder *struct {
			ID    string `json:"id"`
			Price string `json:"price"`
		} `json:"stopLossOrder"`
		TakeProfitOrder *struct {
			ID    string `json:"id"`
			Price string `json:"price"`
		} `json:"takeProfitOrder"`
	} `json:"trades"`
}

func (c *Client) GetOpenTrades(ctx context.Context, instrument string) ([]broker.Trade, error) {
	var resp openTradesResponse
	path := fmt.Sprintf("/v3/accounts/%s/openTrades", c.accountID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	var trades []broker.Trade
	for _, t := range resp.Trades {
		if instrument != "" && t.Instrument != instrument {
			continue
		}
		units, _ := strconv.ParseFloat(t.CurrentUnits, 64)
		entry, _ := strconv.ParseFloat(t.Price, 64)
		pl, _ := strconv.ParseFloat(t.UnrealizedPL, 64)
		openTime, _ := time.Parse(time.RFC3339, t.OpenTime)

		trade := broker.Trade{
			ID:           t.ID,
			Instrument:   t.Instrument,
			Units:        units,
			EntryPrice:   entry,
			OpenTime:     openTime.UTC(),
			UnrealizedPL: pl,
		}
		if t.StopLossOrder != nil {
			trade.StopLossOrderID = t.StopLossOrder.ID
			trade.StopLossPrice, _ = strconv.ParseFloat(t.StopLossOrder.Price, 64)
		}
		if t.TakeProfitOrder != nil {
			trade.TakeProfitOrderID = t.TakeProfitOrder.ID
			trade.TakeProfitPrice, _ = strconv.ParseFloat(t.TakeProfitOrder.Price, 64)
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

type modifyResponse struct {
	StopLossOrderTransaction *struct {
		ID string `json:"id"`
	} `json:"stopLossOrderTransaction"`
	TakeProfitOrderTransaction *struct {
		ID string `json:"id"`
	} `json:"takeProfitOrderTransaction"`
	OrderCreateTransaction *struct {
		ID string `json:"id"`
	} `json:"orderCreateTransaction"`
}

// ModifyStopLoss replaces the stop-loss order with a new price. OANDA
// cancels the old order and creates a new one: the returned id supersedes
// orderID and must replace any cached copy.
func (c *Client) ModifyStopLoss(ctx context.Context, tradeID, orderID string, price float64) (string, error) {
	var body orderBody
	body.Order.Type = "STOP_LOSS"
	body.Order.TradeID = tradeID
	body.Order.Price = formatPrice(price)
	body.Order.TimeInForce = "GTC"

	var resp modifyResponse
	path := fmt.Sprintf("/v3/accounts/%s/orders/%s", c.accountID, orderID)
	if err := c.do(ctx, http.MethodPut, path, body, &resp); err != nil {
		return "", err
	}

	if resp.StopLossOrderTransaction != nil {
		return resp.StopLossOrderTransaction.ID, nil
	}
	if resp.OrderCreateTransaction != nil {
		return resp.OrderCreateTransaction.ID, nil
	}
	return "", fmt.Errorf("oanda: stop loss replace returned no order id")
}

// ModifyTakeProfit replaces the take-profit order; same id semantics as
// ModifyStopLoss.
func (c *Client) ModifyTakeProfit(ctx context.Context, tradeID, orderID string, price float64) (string, error) {
	var body orderBody
	body.Order.Type = "TAKE_PROFIT"
	body.Order.TradeID = tradeID
	body.Order.Price = formatPrice(price)
	body.Order.TimeInForce = "GTC"

	var resp modifyResponse
	path := fmt.Sprintf("/v3/accounts/%s/orders/%s", c.accountID, orderID)
	if err := c.do(ctx, http.MethodPut, path, body, &resp); err != nil {
		return "", err
	}

	if resp.TakeProfitOrderTransaction != nil {
		return resp.TakeProfitOrderTransaction.ID, nil
	}
	if resp.OrderCreateTransaction != nil {
		return resp.OrderCreateTransaction.ID, nil
	}
	return "", fmt.Errorf("oanda: take profit replace returned no order id")
}

type closeResponse struct {
	LongOrderFillTransaction *struct {
		Price  string `json:"price"`
		PL     string `json:"pl"`
		Reason string `json:"reason"`
		Time   string `json:"time"`
	} `json:"longOrderFillTransaction"`
	ShortOrderFillTransaction *struct {
		Price  string `json:"price"`
		PL     string `json:"pl"`
		Reason string `json:"reason"`
		Time   string `json:"time"`
	} `json:"shortOrderFillTransaction"`
}

func (c *Client) ClosePosition(ctx context.Context, instrument string) (broker.CloseResult, error) {
	body := map[string]string{"longUnits": "ALL", "shortUnits": "ALL"}

	var resp closeResponse
	path := fmt.Sprintf("/v3/accounts/%s/positions/%s/close", c.accountID, instrument)
	if err := c.do(ctx, http.MethodPut, path, body, &resp); err != nil {
		return broker.CloseResult{}, err
	}

	fill := resp.LongOrderFillTransaction
	if fill == nil {
		fill = resp.ShortOrderFillTransaction
	}
	if fill == nil {
		return broker.CloseResult{}, fmt.Errorf("oanda: close returned no fill transaction")
	}

	price, _ := strconv.ParseFloat(fill.Price, 64)
	pl, _ := strconv.ParseFloat(fill.PL, 64)
	closeTime, _ := time.Parse(time.RFC3339, fill.Time)

	return broker.CloseResult{
		Price:      price,
		RealizedPL: pl,
		Reason:     fill.Reason,
		Time:       closeTime.UTC(),
	}, nil
}

// do executes one authenticated request and decodes the JSON response.
// Non-2xx responses become *broker.Error so callers can classify them.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("oanda: marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("oanda: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &broker.Error{Status: 0, Code: "TRANSPORT", Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			ErrorCode    string `json:"errorCode"`
			ErrorMessage string `json:"errorMessage"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		msg := apiErr.ErrorMessage
		if msg == "" {
			msg = string(raw)
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", broker.ErrOrderNotFound, msg)
		}
		return &broker.Error{Status: resp.StatusCode, Code: apiErr.ErrorCode, Message: msg}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("oanda: decode response: %w", err)
		}
	}
	return nil
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', 5, 64)
}
