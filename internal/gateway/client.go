package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client is a minimal payment gateway REST client. It speaks the order and
// payment endpoints this engine needs, nothing more.
type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
}

// NewClient constructs a gateway client. keyID and keySecret are the API
// credentials used for basic auth.
func NewClient(baseURL, keyID, keySecret string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("gateway: empty base url")
	}
	if keyID == "" || keySecret == "" {
		return nil, errors.New("gateway: empty api credentials")
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
		client:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Order is a gateway payment order.
type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
}

// ErrGatewayUnavailable marks transport-level failures talking to the
// gateway, as opposed to rejected requests.
var ErrGatewayUnavailable = errors.New("gateway: unavailable")

var errNotFound = errors.New("gateway: not found")

// CreateOrder creates a payment order. amountMinor is in minor currency
// units.
func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (Order, error) {
	if amountMinor <= 0 {
		return Order{}, errors.New("gateway: non-positive order amount")
	}
	if currency == "" {
		currency = "INR"
	}
	body := map[string]any{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
	}
	var resp orderResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/orders", body, &resp); err != nil {
		return Order{}, err
	}
	return Order{
		ID:       resp.ID,
		Amount:   resp.Amount,
		Currency: resp.Currency,
		Receipt:  resp.Receipt,
		Status:   resp.Status,
	}, nil
}

// FetchOrder reads an order back from the gateway.
func (c *Client) FetchOrder(ctx context.Context, orderID string) (Order, bool, error) {
	if orderID == "" {
		return Order{}, false, errors.New("gateway: empty order id")
	}
	var resp orderResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/orders/"+orderID, nil, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return Order{}, false, nil
		}
		return Order{}, false, err
	}
	return Order{
		ID:       resp.ID,
		Amount:   resp.Amount,
		Currency: resp.Currency,
		Receipt:  resp.Receipt,
		Status:   resp.Status,
	}, true, nil
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("gateway: http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
