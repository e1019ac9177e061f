// 文件: pkg/platformx/http_client.go
package platformx

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync/atomic"
	"time"
)

// HTTPClient signs every request as
// HMAC-SHA256(apiSecret, timestamp||apiKey||recvWindow||sortedQueryString)
// in header X-BAPI-SIGN.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	recvWindow string
	http       *http.Client

	driftMillis atomic.Int64 // subtracted from local time before signing
}

func NewHTTPClient(baseURL, apiKey, apiSecret string) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		recvWindow: "5000",
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}

// SyncTime measures clock drift against the exchange's server-time
// endpoint. The Account Registry calls it once at boot; nothing calls it
// again on a SignatureExpiredError.
func (c *HTTPClient) SyncTime(ctx context.Context) error {
	serverMillis, err := c.ServerTime(ctx)
	if err != nil {
		return fmt.Errorf("platformx: sync time: %w", err)
	}
	c.driftMillis.Store(time.Now().UnixMilli() - serverMillis)
	return nil
}

func (c *HTTPClient) timestamp() string {
	return strconv.FormatInt(time.Now().UnixMilli()-c.driftMillis.Load(), 10)
}

func (c *HTTPClient) sign(ts string, query url.Values) string {
	sortedQuery := sortedQueryString(query)
	payload := ts + c.apiKey + c.recvWindow + sortedQuery
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func sortedQueryString(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	v := url.Values{}
	for _, k := range keys {
		v[k] = q[k]
	}
	return v.Encode()
}

func (c *HTTPClient) post(ctx context.Context, path string, body map[string]any) ([]byte, error) {
	query := url.Values{}
	for k, v := range body {
		query.Set(k, fmt.Sprintf("%v", v))
	}
	ts := c.timestamp()

	payload, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-BAPI-API-KEY", c.apiKey)
	req.Header.Set("X-BAPI-TIMESTAMP", ts)
	req.Header.Set("X-BAPI-RECV-WINDOW", c.recvWindow)
	req.Header.Set("X-BAPI-SIGN", c.sign(ts, query))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

func (c *HTTPClient) decode(raw []byte, out any) error {
	var e envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return fmt.Errorf("platformx: decode envelope: %w", err)
	}
	if e.RetCode != 0 {
		rc := &RetCodeError{RetCode: e.RetCode, RetMsg: e.RetMsg}
		if e.RetMsg == "signature expired" || e.RetCode == 10002 {
			return &SignatureExpiredError{Cause: rc}
		}
		return rc
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(e.Result, out)
}

func (c *HTTPClient) ListPendingOrders(ctx context.Context, statuses []int) ([]Order, error) {
	raw, err := c.post(ctx, "/v5/p2p/order/pending/simplifyList", map[string]any{"status": statuses})
	if err != nil {
		return nil, fmt.Errorf("platformx: list orders: %w", err)
	}
	var result struct {
		Items []orderDTO `json:"items"`
	}
	if err := c.decode(raw, &result); err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(result.Items))
	for _, d := range result.Items {
		out = append(out, d.toOrder())
	}
	return out, nil
}

type orderDTO struct {
	ID        string `json:"id"`
	ItemID    string `json:"itemId"`
	UserID    string `json:"userId"`
	Amount    int64  `json:"amount"`
	Status    int    `json:"status"`
	CreatedAt int64  `json:"createDate"`
}

func (d orderDTO) toOrder() Order {
	return Order{
		OrderID:   d.ID,
		ItemID:    d.ItemID,
		UserID:    d.UserID,
		Amount:    d.Amount,
		Status:    d.Status,
		CreatedAt: d.CreatedAt,
	}
}

func (c *HTTPClient) OrderInfo(ctx context.Context, orderID string) (Order, error) {
	raw, err := c.post(ctx, "/v5/p2p/order/info", map[string]any{"orderId": orderID})
	if err != nil {
		return Order{}, fmt.Errorf("platformx: order info: %w", err)
	}
	var d orderDTO
	if err := c.decode(raw, &d); err != nil {
		return Order{}, err
	}
	return d.toOrder(), nil
}

func (c *HTTPClient) ListMessages(ctx context.Context, orderID string, limit int) ([]ChatMessage, error) {
	raw, err := c.post(ctx, "/v5/p2p/order/message/listpage", map[string]any{"orderId": orderID, "size": limit})
	if err != nil {
		return nil, fmt.Errorf("platformx: list messages: %w", err)
	}
	var dtos []chatMessageDTO
	if err := c.decode(raw, &dtos); err != nil {
		return nil, err
	}
	out := make([]ChatMessage, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, ChatMessage{
			MessageID:   d.ID,
			UserID:      d.UserID,
			ContentType: d.ContentType,
			Body:        d.Message,
			MsgType:     d.MsgType,
			SentAt:      d.CreateDate,
		})
	}
	return out, nil
}

type chatMessageDTO struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	ContentType string `json:"contentType"`
	Message     string `json:"message"`
	MsgType     int    `json:"msgType"`
	CreateDate  int64  `json:"createDate"`
}

func (c *HTTPClient) SendMessage(ctx context.Context, orderID, body, idempotencyToken string) (string, error) {
	raw, err := c.post(ctx, "/v5/p2p/order/message/send", map[string]any{
		"orderId":     orderID,
		"message":     body,
		"contentType": "text",
		"clientMsgID": idempotencyToken,
	})
	if err != nil {
		return "", fmt.Errorf("platformx: send message: %w", err)
	}
	var result struct {
		MessageID string `json:"messageId"`
	}
	if err := c.decode(raw, &result); err != nil {
		return "", err
	}
	return result.MessageID, nil
}

func (c *HTTPClient) CreateAd(ctx context.Context, spec AdSpec) (string, error) {
	raw, err := c.post(ctx, "/v5/p2p/ad/create", adSpecBody(spec))
	if err != nil {
		return "", fmt.Errorf("platformx: create ad: %w", err)
	}
	var result struct {
		ItemID string `json:"itemId"`
	}
	if err := c.decode(raw, &result); err != nil {
		return "", err
	}
	return result.ItemID, nil
}

func (c *HTTPClient) UpdateAd(ctx context.Context, adID string, spec AdSpec) error {
	body := adSpecBody(spec)
	body["itemId"] = adID
	raw, err := c.post(ctx, "/v5/p2p/ad/update", body)
	if err != nil {
		return fmt.Errorf("platformx: update ad: %w", err)
	}
	return c.decode(raw, nil)
}

func (c *HTTPClient) CancelAd(ctx context.Context, adID string) error {
	raw, err := c.post(ctx, "/v5/p2p/ad/cancel", map[string]any{"itemId": adID})
	if err != nil {
		return fmt.Errorf("platformx: cancel ad: %w", err)
	}
	return c.decode(raw, nil)
}

func adSpecBody(spec AdSpec) map[string]any {
	return map[string]any{
		"side":           spec.Side,
		"asset":          spec.Asset,
		"fiat":           spec.Fiat,
		"priceType":      "FIXED",
		"price":          spec.UnitPrice,
		"quantity":       spec.Quantity,
		"minAmount":      spec.MinAmount,
		"maxAmount":      spec.MaxAmount,
		"paymentMethods": spec.PaymentMethods,
	}
}

func (c *HTTPClient) ReleaseOrder(ctx context.Context, orderID, idempotencyToken string) error {
	raw, err := c.post(ctx, "/v5/p2p/order/release", map[string]any{
		"orderId":     orderID,
		"clientMsgID": idempotencyToken,
	})
	if err != nil {
		return fmt.Errorf("platformx: release order: %w", err)
	}
	return c.decode(raw, nil)
}

func (c *HTTPClient) WalletBalance(ctx context.Context, asset string) (Balance, error) {
	ts := c.timestamp()
	query := url.Values{"coin": []string{asset}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v5/account/wallet-balance?"+query.Encode(), nil)
	if err != nil {
		return Balance{}, err
	}
	req.Header.Set("X-BAPI-API-KEY", c.apiKey)
	req.Header.Set("X-BAPI-TIMESTAMP", ts)
	req.Header.Set("X-BAPI-RECV-WINDOW", c.recvWindow)
	req.Header.Set("X-BAPI-SIGN", c.sign(ts, query))

	resp, err := c.http.Do(req)
	if err != nil {
		return Balance{}, fmt.Errorf("platformx: wallet balance: %w", err)
	}
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)

	var result struct {
		Available int64 `json:"availableBalance"`
	}
	if err := c.decode(buf.Bytes(), &result); err != nil {
		return Balance{}, err
	}
	return Balance{Asset: asset, Available: result.Available}, nil
}

func (c *HTTPClient) ServerTime(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v5/market/time", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	var result struct {
		Result struct {
			TimeSecond string `json:"timeSecond"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, err
	}
	secs, err := strconv.ParseInt(result.Result.TimeSecond, 10, 64)
	if err != nil {
		return 0, err
	}
	return secs * 1000, nil
}
