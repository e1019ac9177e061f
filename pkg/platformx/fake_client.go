// 文件: pkg/platformx/fake_client.go
package platformx

import (
	"context"
	"fmt"
	"sync"
)

// FakeClient is a hand-written in-memory fake used across the service
// tests so none of them need a live Platform-X sandbox.
type FakeClient struct {
	mu sync.Mutex

	Orders           map[string]Order
	Messages         map[string][]ChatMessage
	SentMessages     []string
	Ads              map[string]AdSpec
	ReleasedOrders   []string
	CancelledAds     []string
	NextAdID         int
	ServerTimeMillis int64
	Balances         map[string]int64
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		Orders:   make(map[string]Order),
		Messages: make(map[string][]ChatMessage),
		Ads:      make(map[string]AdSpec),
		Balances: make(map[string]int64),
	}
}

func (f *FakeClient) ListPendingOrders(ctx context.Context, statuses []int) ([]Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Order
	for _, o := range f.Orders {
		for _, s := range statuses {
			if o.Status == s {
				out = append(out, o)
				break
			}
		}
	}
	return out, nil
}

func (f *FakeClient) OrderInfo(ctx context.Context, orderID string) (Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.Orders[orderID]
	if !ok {
		return Order{}, &RetCodeError{RetCode: 10001, RetMsg: "order not found"}
	}
	return o, nil
}

func (f *FakeClient) ListMessages(ctx context.Context, orderID string, limit int) ([]ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.Messages[orderID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (f *FakeClient) SendMessage(ctx context.Context, orderID, body, idempotencyToken string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("msg-%d", len(f.SentMessages))
	f.SentMessages = append(f.SentMessages, idempotencyToken)
	f.Messages[orderID] = append(f.Messages[orderID], ChatMessage{
		MessageID: id, UserID: "us", ContentType: "text", Body: body,
	})
	return id, nil
}

func (f *FakeClient) CreateAd(ctx context.Context, spec AdSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.NextAdID++
	id := fmt.Sprintf("AD%d", f.NextAdID)
	f.Ads[id] = spec
	return id, nil
}

func (f *FakeClient) UpdateAd(ctx context.Context, adID string, spec AdSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Ads[adID]; !ok {
		return &RetCodeError{RetCode: 10002, RetMsg: "ad not found"}
	}
	f.Ads[adID] = spec
	return nil
}

func (f *FakeClient) CancelAd(ctx context.Context, adID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Ads, adID)
	f.CancelledAds = append(f.CancelledAds, adID)
	return nil
}

func (f *FakeClient) ReleaseOrder(ctx context.Context, orderID, idempotencyToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReleasedOrders = append(f.ReleasedOrders, orderID)
	return nil
}

func (f *FakeClient) WalletBalance(ctx context.Context, asset string) (Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Balance{Asset: asset, Available: f.Balances[asset]}, nil
}

func (f *FakeClient) ServerTime(ctx context.Context) (int64, error) {
	return f.ServerTimeMillis, nil
}
