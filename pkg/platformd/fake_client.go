// 文件: pkg/platformd/fake_client.go
// Hand-written in-memory fake, used across service tests so none of
// them need a live Platform-D sandbox.

package platformd

import (
	"context"
	"sync"
)

type FakeClient struct {
	mu       sync.Mutex
	Payouts  []RawPayout
	Accepted map[string]bool
	Actions  map[string]Action
	Balances []int64
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		Accepted: make(map[string]bool),
		Actions:  make(map[string]Action),
	}
}

func (f *FakeClient) Login(ctx context.Context, loginEmail, password string) (string, error) {
	return "fake-session-cookie", nil
}

func (f *FakeClient) ListPayouts(ctx context.Context, page int, statuses []int) (PayoutPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var data []RawPayout
	for _, p := range f.Payouts {
		for _, s := range statuses {
			if p.Status == s {
				data = append(data, p)
				break
			}
		}
	}
	return PayoutPage{Data: data, Total: len(data), CurrentPage: page}, nil
}

func (f *FakeClient) Accept(ctx context.Context, externalID string) (RawPayout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Accepted[externalID] = true
	for i, p := range f.Payouts {
		if p.ExternalID == externalID {
			f.Payouts[i].Status = 5
			return f.Payouts[i], nil
		}
	}
	return RawPayout{ExternalID: externalID}, nil
}

func (f *FakeClient) Action(ctx context.Context, externalID string, action Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Actions[externalID] = action
	return nil
}

func (f *FakeClient) SetBalance(ctx context.Context, amountMinor int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Balances = append(f.Balances, amountMinor)
	return nil
}
