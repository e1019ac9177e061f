package platformx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSignatureHeadersPresent(t *testing.T) {
	var gotSign, gotKey, gotTS string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSign = r.Header.Get("X-BAPI-SIGN")
		gotKey = r.Header.Get("X-BAPI-API-KEY")
		gotTS = r.Header.Get("X-BAPI-TIMESTAMP")
		io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(map[string]any{"retCode": 0, "retMsg": "OK", "result": map[string]any{"items": []any{}}})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key123", "secret456")
	_, err := c.ListPendingOrders(context.Background(), []int{10, 20})
	if err != nil {
		t.Fatal(err)
	}
	if gotSign == "" || gotKey != "key123" || gotTS == "" {
		t.Fatalf("expected signed request, got sign=%q key=%q ts=%q", gotSign, gotKey, gotTS)
	}
}

func TestRetCodeErrorSurfacesOnNonZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(map[string]any{"retCode": 10001, "retMsg": "bad request"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key", "secret")
	_, err := c.OrderInfo(context.Background(), "O1")
	rc, ok := err.(*RetCodeError)
	if !ok {
		t.Fatalf("expected *RetCodeError, got %T: %v", err, err)
	}
	if rc.RetCode != 10001 {
		t.Fatalf("unexpected retcode %d", rc.RetCode)
	}
}

func TestSignatureExpiredMapsToTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(map[string]any{"retCode": 10002, "retMsg": "signature expired"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key", "secret")
	_, err := c.OrderInfo(context.Background(), "O1")
	if _, ok := err.(*SignatureExpiredError); !ok {
		t.Fatalf("expected *SignatureExpiredError, got %T: %v", err, err)
	}
}
