// Package strapi is the perk/points catalog client. The CMS holds the perk
// definitions and the fulfillment orders; the points ledger itself is in the
// ledger store.
package strapi

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

	"github.com/MagicGrants/donatehub"
	"github.com/MagicGrants/donatehub/baseapi/flags"
	"github.com/cenkalti/backoff/v5"
)

var _ donatehub.PerkCatalog = &Client{}

type Client struct {
	host  string
	token string

	client *http.Client
}

func NewClient() *Client {
	return &Client{
		host:  flags.StrapiHost.Value(),
		token: flags.StrapiToken.Value(),

		client: &http.Client{Timeout: 15 * time.Second},
	}
}

type entry[T any] struct {
	ID         int64 `json:"id"`
	Attributes T     `json:"attributes"`
}

type listResponse[T any] struct {
	Data []entry[T] `json:"data"`
}

type singleResponse[T any] struct {
	Data *entry[T] `json:"data"`
}

type perkAttrs struct {
	Name                 string  `json:"name"`
	Price                int64   `json:"price"`
	NeedsShippingAddress bool    `json:"needsShippingAddress"`
	PrintfulVariantID    *string `json:"printfulVariantId"`
	FundSlugWhitelist    string  `json:"fundSlugWhitelist"`
}

func (e *entry[T]) id() string {
	return strconv.FormatInt(e.ID, 10)
}

func perkModel(e *entry[perkAttrs]) *donatehub.Perk {
	return &donatehub.Perk{
		ID:                   e.id(),
		Name:                 e.Attributes.Name,
		Price:                e.Attributes.Price,
		NeedsShippingAddress: e.Attributes.NeedsShippingAddress,
		PrintfulVariantID:    e.Attributes.PrintfulVariantID,
		FundSlugWhitelist:    e.Attributes.FundSlugWhitelist,
	}
}

func (c *Client) Perk(ctx context.Context, id string) (*donatehub.Perk, error) {
	res, err := do[singleResponse[perkAttrs]](ctx, c, http.MethodGet, "/api/perks/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("couldn't get perk: %w", err)
	}
	if res.Data == nil {
		return nil, nil
	}
	return perkModel(res.Data), nil
}

func (c *Client) Perks(ctx context.Context) ([]*donatehub.Perk, error) {
	res, err := do[listResponse[perkAttrs]](ctx, c, http.MethodGet, "/api/perks?pagination[pageSize]=100", nil)
	if err != nil {
		return nil, fmt.Errorf("couldn't list perks: %w", err)
	}
	perks := make([]*donatehub.Perk, len(res.Data))
	for i := range res.Data {
		perks[i] = perkModel(&res.Data[i])
	}
	return perks, nil
}

type orderAttrs struct {
	PerkID   string `json:"perkId"`
	PerkName string `json:"perkName"`

	UserID      int     `json:"userId"`
	FundSlug    string  `json:"fundSlug"`
	ProjectSlug *string `json:"projectSlug"`

	Shipping *donatehub.ShippingAddress `json:"shipping"`

	PrintfulOrderID *string `json:"printfulOrderId"`
	TrackingNumber  *string `json:"trackingNumber"`
	TrackingURL     *string `json:"trackingUrl"`
}

func orderModel(e *entry[orderAttrs]) *donatehub.Order {
	return &donatehub.Order{
		ID:              e.id(),
		PerkID:          e.Attributes.PerkID,
		PerkName:        e.Attributes.PerkName,
		UserID:          e.Attributes.UserID,
		FundSlug:        e.Attributes.FundSlug,
		ProjectSlug:     e.Attributes.ProjectSlug,
		Shipping:        e.Attributes.Shipping,
		PrintfulOrderID: e.Attributes.PrintfulOrderID,
		TrackingNumber:  e.Attributes.TrackingNumber,
		TrackingURL:     e.Attributes.TrackingURL,
	}
}

func (c *Client) CreateOrder(ctx context.Context, order *donatehub.Order) error {
	body := map[string]any{"data": orderAttrs{
		PerkID:          order.PerkID,
		PerkName:        order.PerkName,
		UserID:          order.UserID,
		FundSlug:        order.FundSlug,
		ProjectSlug:     order.ProjectSlug,
		Shipping:        order.Shipping,
		PrintfulOrderID: order.PrintfulOrderID,
	}}
	res, err := do[singleResponse[orderAttrs]](ctx, c, http.MethodPost, "/api/orders", body)
	if err != nil {
		return fmt.Errorf("couldn't create order: %w", err)
	}
	if res.Data == nil {
		return fmt.Errorf("catalog returned no order data")
	}
	order.ID = res.Data.id()
	return nil
}

// DeleteOrder removes an order. It is only called to compensate a failed
// purchase.
func (c *Client) DeleteOrder(ctx context.Context, id string) error {
	if _, err := do[singleResponse[orderAttrs]](ctx, c, http.MethodDelete, "/api/orders/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("couldn't delete order: %w", err)
	}
	return nil
}

func (c *Client) OrderByPrintfulID(ctx context.Context, printfulOrderID string) (*donatehub.Order, error) {
	res, err := do[listResponse[orderAttrs]](ctx, c, http.MethodGet,
		"/api/orders?filters[printfulOrderId][$eq]="+url.QueryEscape(printfulOrderID), nil)
	if err != nil {
		return nil, fmt.Errorf("couldn't look up order: %w", err)
	}
	if len(res.Data) == 0 {
		return nil, nil
	}
	return orderModel(&res.Data[0]), nil
}

func (c *Client) UpdateOrderTracking(ctx context.Context, id string, trackingNumber, trackingURL string) error {
	body := map[string]any{"data": map[string]any{
		"trackingNumber": trackingNumber,
		"trackingUrl":    trackingURL,
	}}
	if _, err := do[singleResponse[orderAttrs]](ctx, c, http.MethodPut, "/api/orders/"+url.PathEscape(id), body); err != nil {
		return fmt.Errorf("couldn't update order tracking: %w", err)
	}
	return nil
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
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			var out T
			return &out, nil
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("strapi: status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return nil, backoff.Permanent(fmt.Errorf("strapi: status %d", resp.StatusCode))
		}

		var out T
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, backoff.Permanent(err)
		}
		return &out, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(4))
}
