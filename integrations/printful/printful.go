// Package printful talks to the Printful drop-shipping API for physical perk
// fulfillment: shipping/tax quotes, order placement and order cancellation.
package printful

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/MagicGrants/donatehub"
	"github.com/MagicGrants/donatehub/baseapi/flags"
	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
)

var _ donatehub.FulfillmentProvider = &Client{}

type Client struct {
	host   string
	apiKey string

	client *http.Client
}

func NewClient() *Client {
	return &Client{
		host:   "https://api.printful.com",
		apiKey: flags.PrintfulAPIKey.Value(),

		client: &http.Client{Timeout: 20 * time.Second},
	}
}

type recipient struct {
	Name        string `json:"name"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city"`
	StateCode   string `json:"state_code,omitempty"`
	CountryCode string `json:"country_code"`
	Zip         string `json:"zip"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
}

func toRecipient(addr *donatehub.ShippingAddress) recipient {
	return recipient{
		Name:        addr.Name,
		Address1:    addr.Address1,
		Address2:    addr.Address2,
		City:        addr.City,
		StateCode:   addr.State,
		CountryCode: addr.CountryCode,
		Zip:         addr.Zip,
		Phone:       addr.Phone,
		Email:       addr.Email,
	}
}

type orderItem struct {
	VariantID int64 `json:"variant_id"`
	Quantity  int   `json:"quantity"`
}

type orderCosts struct {
	Currency string          `json:"currency"`
	Total    decimal.Decimal `json:"total"`
}

type orderResult struct {
	ID    int64      `json:"id"`
	Costs orderCosts `json:"costs"`
	// RetailCosts is what we charge points against: product retail price plus
	// shipping and tax, as quoted by Printful.
	RetailCosts orderCosts `json:"retail_costs"`
}

// EstimateCost runs a draft order estimate without placing anything.
func (c *Client) EstimateCost(ctx context.Context, variantID string, addr *donatehub.ShippingAddress) (*donatehub.CostEstimate, error) {
	variant, err := strconv.ParseInt(variantID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid printful variant id %q: %w", variantID, err)
	}
	body := map[string]any{
		"recipient": toRecipient(addr),
		"items":     []orderItem{{VariantID: variant, Quantity: 1}},
	}
	res, err := do[orderResult](ctx, c, http.MethodPost, "/orders/estimate-costs", body)
	if err != nil {
		return nil, fmt.Errorf("couldn't estimate fulfillment costs: %w", err)
	}
	costs := res.RetailCosts
	if costs.Total.IsZero() {
		costs = res.Costs
	}
	return &donatehub.CostEstimate{Total: costs.Total, Currency: costs.Currency}, nil
}

// CreateOrder places a confirmed order and returns Printful's order id.
func (c *Client) CreateOrder(ctx context.Context, order *donatehub.FulfillmentOrder) (string, error) {
	variant, err := strconv.ParseInt(order.VariantID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid printful variant id %q: %w", order.VariantID, err)
	}
	body := map[string]any{
		"external_id": order.ExternalID,
		"recipient":   toRecipient(&order.Recipient),
		"items":       []orderItem{{VariantID: variant, Quantity: 1}},
		"confirm":     true,
	}
	res, err := do[orderResult](ctx, c, http.MethodPost, "/orders", body)
	if err != nil {
		return "", fmt.Errorf("couldn't place fulfillment order: %w", err)
	}
	return strconv.FormatInt(res.ID, 10), nil
}

func (c *Client) CancelOrder(ctx context.Context, providerOrderID string) error {
	if _, err := do[orderResult](ctx, c, http.MethodDelete, "/orders/"+providerOrderID, nil); err != nil {
		return fmt.Errorf("couldn't cancel fulfillment order: %w", err)
	}
	return nil
}

// Printful wraps every response in {code, result}.
type envelope[T any] struct {
	Code   int `json:"code"`
	Result T   `json:"result"`
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
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("printful: status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return nil, backoff.Permanent(fmt.Errorf("printful: status %d", resp.StatusCode))
		}

		var out envelope[T]
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, backoff.Permanent(err)
		}
		return &out.Result, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(4))
}
