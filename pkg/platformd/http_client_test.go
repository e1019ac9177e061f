package platformd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListPayoutsParsesPagedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payments/payouts" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"response": map[string]any{
				"payouts": map[string]any{
					"data": []map[string]any{
						{"id": "P1", "amount": 0, "status": 4},
					},
					"total":         1,
					"current_page":  1,
					"next_page_url": "",
				},
			},
		})
	}))
	defer srv.Close()

	c, err := NewHTTPClient(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	page, err := c.ListPayouts(context.Background(), 1, []int{4})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Data) != 1 || page.Data[0].ExternalID != "P1" {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Data[0].AmountMinor != 0 {
		t.Fatal("status-4 payout should not have a revealed amount")
	}
}

func TestAcceptRevealsAmount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"amount": 15000, "wallet": "+79991234567", "bank": "Сбербанк",
			"recipient_name": "Ivan Ivanov", "status": 5,
		})
	}))
	defer srv.Close()

	c, _ := NewHTTPClient(srv.URL)
	p, err := c.Accept(context.Background(), "P1")
	if err != nil {
		t.Fatal(err)
	}
	if p.AmountMinor != 15000 {
		t.Fatalf("expected revealed amount 15000, got %d", p.AmountMinor)
	}
}

func TestSessionExpiredMapsTo401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, _ := NewHTTPClient(srv.URL)
	_, err := c.Accept(context.Background(), "P1")
	if _, ok := err.(*SessionError); !ok {
		t.Fatalf("expected *SessionError, got %T: %v", err, err)
	}
}
