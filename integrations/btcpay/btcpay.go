// Package btcpay is a minimal BTCPay Server Greenfield API client, covering
// only what the donation workflow needs: creating invoices and reading
// settlement data back.
package btcpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MagicGrants/donatehub"
	"github.com/MagicGrants/donatehub/baseapi/flags"
	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
)

var _ donatehub.CryptoProcessor = &Client{}

type Client struct {
	host    string
	storeID string
	apiKey  string

	client *http.Client
}

func NewClient() *Client {
	return &Client{
		host:    flags.BTCPayHost.Value(),
		storeID: flags.BTCPayStoreID.Value(),
		apiKey:  flags.BTCPayAPIKey.Value(),

		client: &http.Client{Timeout: 15 * time.Second},
	}
}

type invoice struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Currency    string          `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
	Metadata    map[string]any  `json:"metadata"`
	CheckoutURL string          `json:"checkoutLink"`
}

func (inv *invoice) toModel() *donatehub.CryptoInvoice {
	return &donatehub.CryptoInvoice{
		ID:          inv.ID,
		Status:      inv.Status,
		Currency:    inv.Currency,
		Amount:      inv.Amount,
		Metadata:    inv.Metadata,
		CheckoutURL: inv.CheckoutURL,
	}
}

type paymentMethod struct {
	PaymentMethod string          `json:"paymentMethod"`
	Rate          decimal.Decimal `json:"rate"`
	TotalPaid     decimal.Decimal `json:"totalPaid"`
}

func (c *Client) CreateInvoice(ctx context.Context, req *donatehub.CryptoInvoiceRequest) (*donatehub.CryptoInvoice, error) {
	body := map[string]any{
		"amount":   req.Amount,
		"currency": req.Currency,
		"metadata": req.Metadata,
	}
	inv, err := do[invoice](ctx, c, http.MethodPost, fmt.Sprintf("/api/v1/stores/%s/invoices", c.storeID), body)
	if err != nil {
		return nil, fmt.Errorf("couldn't create BTCPay invoice: %w", err)
	}
	return inv.toModel(), nil
}

func (c *Client) Invoice(ctx context.Context, id string) (*donatehub.CryptoInvoice, error) {
	inv, err := do[invoice](ctx, c, http.MethodGet, fmt.Sprintf("/api/v1/stores/%s/invoices/%s", c.storeID, id), nil)
	if err != nil {
		return nil, fmt.Errorf("couldn't get BTCPay invoice: %w", err)
	}
	return inv.toModel(), nil
}

// Payments returns the settled payment methods of an invoice, carrying the
// processor-reported exchange rate. Methods without any payment are skipped.
func (c *Client) Payments(ctx context.Context, invoiceID string) ([]*donatehub.CryptoPayment, error) {
	methods, err := do[[]paymentMethod](ctx, c, http.MethodGet, fmt.Sprintf("/api/v1/stores/%s/invoices/%s/payment-methods", c.storeID, invoiceID), nil)
	if err != nil {
		return nil, fmt.Errorf("couldn't get BTCPay payment methods: %w", err)
	}

	var rez []*donatehub.CryptoPayment
	for _, pm := range *methods {
		if pm.TotalPaid.IsZero() {
			continue
		}
		rez = append(rez, &donatehub.CryptoPayment{
			PaymentMethod: pm.PaymentMethod,
			Rate:          pm.Rate,
			TotalPaid:     pm.TotalPaid,
		})
	}
	return rez, nil
}

func do[T any](ctx context.Context, c *Client, method, path string, body any) (*T, error) {
	return backoff.Retry(ctx, func() (*T, error) {
		var reqBody io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return nil, backoff.Permanent(err)
			}
			reqBody = bytes.NewReader(data)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.host+path, reqBody)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "token "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("btcpay: status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return nil, backoff.Permanent(fmt.Errorf("btcpay: status %d", resp.StatusCode))
		}

		var out T
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, backoff.Permanent(err)
		}
		return &out, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(4))
}
