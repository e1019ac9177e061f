// 文件: pkg/platformd/http_client.go
package platformd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"
)

// HTTPClient is the minimal net/http implementation of Client.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPClient(baseURL string) (*HTTPClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("platformd: new cookie jar: %w", err)
	}
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Jar: jar, Timeout: 30 * time.Second},
	}, nil
}

// RestoreSession seeds the cookie jar from a previously persisted cookie
// string, so a restart does not force re-login.
func (c *HTTPClient) RestoreSession(sessionCookie string) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	c.http.Jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: sessionCookie}})
	return nil
}

type loginResponse struct {
	Success  bool `json:"success"`
	Response struct {
		User json.RawMessage `json:"user"`
	} `json:"response"`
}

func (c *HTTPClient) Login(ctx context.Context, loginEmail, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"login": loginEmail, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/basic/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("platformd: login: %w", err)
	}
	defer resp.Body.Close()

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", fmt.Errorf("platformd: decode login response: %w", err)
	}
	if !lr.Success {
		return "", fmt.Errorf("platformd: login rejected")
	}

	u, _ := url.Parse(c.baseURL)
	for _, ck := range c.http.Jar.Cookies(u) {
		if ck.Name == "session" {
			return ck.Value, nil
		}
	}
	return "", nil
}

type payoutsResponse struct {
	Response struct {
		Payouts struct {
			Data        []rawPayoutDTO `json:"data"`
			Total       int            `json:"total"`
			CurrentPage int            `json:"current_page"`
			NextPageURL string         `json:"next_page_url"`
		} `json:"payouts"`
	} `json:"response"`
}

type rawPayoutDTO struct {
	ID            string `json:"id"`
	Amount        int64  `json:"amount"`
	Wallet        string `json:"wallet"`
	Bank          string `json:"bank"`
	RecipientName string `json:"recipient_name"`
	Status        int    `json:"status"`
}

func (c *HTTPClient) ListPayouts(ctx context.Context, page int, statuses []int) (PayoutPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	for _, s := range statuses {
		q.Add("filters[status][]", strconv.Itoa(s))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payments/payouts?"+q.Encode(), nil)
	if err != nil {
		return PayoutPage{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return PayoutPage{}, fmt.Errorf("platformd: list payouts: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return PayoutPage{}, &SessionError{Cause: fmt.Errorf("401")}
	}

	var pr payoutsResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return PayoutPage{}, fmt.Errorf("platformd: decode payouts: %w", err)
	}

	out := PayoutPage{
		Total:       pr.Response.Payouts.Total,
		CurrentPage: pr.Response.Payouts.CurrentPage,
		HasNext:     pr.Response.Payouts.NextPageURL != "",
	}
	for _, d := range pr.Response.Payouts.Data {
		out.Data = append(out.Data, RawPayout{
			ExternalID:    d.ID,
			AmountMinor:   d.Amount,
			Wallet:        d.Wallet,
			Bank:          d.Bank,
			RecipientName: d.RecipientName,
			Status:        d.Status,
		})
	}
	return out, nil
}

func (c *HTTPClient) Accept(ctx context.Context, externalID string) (RawPayout, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments/payouts/"+externalID+"/accept", nil)
	if err != nil {
		return RawPayout{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return RawPayout{}, fmt.Errorf("platformd: accept %s: %w", externalID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return RawPayout{}, &SessionError{Cause: fmt.Errorf("401")}
	}

	var d rawPayoutDTO
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return RawPayout{}, fmt.Errorf("platformd: decode accept response: %w", err)
	}
	return RawPayout{
		ExternalID:    externalID,
		AmountMinor:   d.Amount,
		Wallet:        d.Wallet,
		Bank:          d.Bank,
		RecipientName: d.RecipientName,
		Status:        d.Status,
	}, nil
}

func (c *HTTPClient) Action(ctx context.Context, externalID string, action Action) error {
	body, _ := json.Marshal(map[string]string{"action": string(action)})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments/payouts/"+externalID+"/action", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("platformd: action %s on %s: %w", action, externalID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return &SessionError{Cause: fmt.Errorf("401")}
	}
	return nil
}

func (c *HTTPClient) SetBalance(ctx context.Context, amountMinor int64) error {
	body, _ := json.Marshal(map[string]int64{"balance": amountMinor})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/balance/set", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("platformd: set balance: %w", err)
	}
	defer resp.Body.Close()
	return nil
}
