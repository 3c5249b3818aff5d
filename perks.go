package donatehub

import (
	"context"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Perk is a catalog item redeemable for points. The catalog itself lives in
// the CMS, this is just our view of it.
type Perk struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`

	NeedsShippingAddress bool `json:"needs_shipping_address"`

	// PrintfulVariantID is set on physical perks that are drop-shipped.
	PrintfulVariantID *string `json:"printful_variant_id"`

	// FundSlugWhitelist is a comma-separated list of fund slugs the perk is
	// restricted to. Empty means available everywhere.
	FundSlugWhitelist string `json:"fund_slug_whitelist"`
}

func (p *Perk) AvailableInFund(fundSlug string) bool {
	if p == nil {
		return false
	}
	if strings.TrimSpace(p.FundSlugWhitelist) == "" {
		return true
	}
	funds := strings.Split(p.FundSlugWhitelist, ",")
	for i := range funds {
		funds[i] = strings.TrimSpace(funds[i])
	}
	return slices.Contains(funds, fundSlug)
}

func (p *Perk) Physical() bool {
	return p != nil && p.PrintfulVariantID != nil
}

// ShippingAddress is the recipient data required for physical perks.
type ShippingAddress struct {
	Name        string `json:"name"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2"`
	City        string `json:"city"`
	State       string `json:"state"`
	CountryCode string `json:"country_code"`
	Zip         string `json:"zip"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
}

func (addr *ShippingAddress) Complete() bool {
	if addr == nil {
		return false
	}
	return addr.Name != "" && addr.Address1 != "" && addr.City != "" &&
		addr.CountryCode != "" && addr.Zip != ""
}

// Order is created in the catalog service when a perk purchase is initiated.
// It is deleted only as the compensating action of a failed purchase.
type Order struct {
	ID string `json:"id"`

	PerkID   string `json:"perk_id"`
	PerkName string `json:"perk_name"`

	UserID      int     `json:"user_id"`
	FundSlug    string  `json:"fund_slug"`
	ProjectSlug *string `json:"project_slug"`

	Shipping *ShippingAddress `json:"shipping"`

	PrintfulOrderID *string `json:"printful_order_id"`
	TrackingNumber  *string `json:"tracking_number"`
	TrackingURL     *string `json:"tracking_url"`
}

// PurchaseRequest is the input of the perk purchase coordinator.
type PurchaseRequest struct {
	PerkID      string  `json:"perk_id"`
	FundSlug    string  `json:"fund_slug"`
	ProjectSlug *string `json:"project_slug"`

	UserID     int    `json:"-"`
	UserEmail  string `json:"-"`

	Shipping *ShippingAddress `json:"shipping"`
}

// CostEstimate is a fulfillment provider quote for a physical perk, including
// shipping and tax, denominated in fiat.
type CostEstimate struct {
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}

// Points converts the fiat quote into the points that will be deducted.
func (est *CostEstimate) Points() int64 {
	return est.Total.Mul(decimal.NewFromInt(PointsPerUSD)).Floor().IntPart()
}

// PerkCatalog is the catalog service (CMS) holding perk definitions and
// fulfillment orders.
type PerkCatalog interface {
	Perk(ctx context.Context, id string) (*Perk, error)
	Perks(ctx context.Context) ([]*Perk, error)

	CreateOrder(ctx context.Context, order *Order) error
	DeleteOrder(ctx context.Context, id string) error

	OrderByPrintfulID(ctx context.Context, printfulOrderID string) (*Order, error)
	UpdateOrderTracking(ctx context.Context, id string, trackingNumber, trackingURL string) error
}

// FulfillmentOrder is what gets placed at the print-on-demand provider.
type FulfillmentOrder struct {
	ExternalID string
	VariantID  string
	Recipient  ShippingAddress
}

type FulfillmentProvider interface {
	EstimateCost(ctx context.Context, variantID string, recipient *ShippingAddress) (*CostEstimate, error)
	CreateOrder(ctx context.Context, order *FulfillmentOrder) (string, error)
	CancelOrder(ctx context.Context, providerOrderID string) error
}
