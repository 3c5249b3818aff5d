package donatehub

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodUnknown PaymentMethod = ""
	PaymentMethodFiat    PaymentMethod = "fiat"
	PaymentMethodCrypto  PaymentMethod = "crypto"
)

// Donation is a record of a single settled payment. Rows are immutable once
// created, with the sole exception of the subscription cancellation marker.
type Donation struct {
	ID        int       `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// Exactly one of the three external references is set. It identifies the
	// settlement at the payment processor and is the idempotency key.
	StripePaymentIntentID *string `json:"stripe_payment_intent_id"`
	StripeInvoiceID       *string `json:"stripe_invoice_id"`
	BTCPayInvoiceID       *string `json:"btcpay_invoice_id"`

	UserID     *int   `json:"user_id"`
	DonorName  string `json:"donor_name"`
	DonorEmail string `json:"donor_email"`

	ProjectSlug string `json:"project_slug"`
	ProjectName string `json:"project_name"`
	FundSlug    string `json:"fund_slug"`

	// GrossFiatAmount is the amount the donor paid. NetFiatAmount is what the
	// cause receives: equal to gross, unless the donor opted into points.
	GrossFiatAmount decimal.Decimal  `json:"gross_fiat_amount"`
	NetFiatAmount   decimal.Decimal  `json:"net_fiat_amount"`
	CryptoCode      *string          `json:"crypto_code"`
	CryptoAmount    *decimal.Decimal `json:"crypto_amount"`

	PointsAdded int64 `json:"points_added"`

	MembershipExpiresAt        *time.Time `json:"membership_expires_at"`
	ShowDonorNameOnLeaderboard bool       `json:"show_donor_name_on_leaderboard"`

	StripeSubscriptionID *string    `json:"stripe_subscription_id"`
	SubscriptionCancelAt *time.Time `json:"subscription_cancel_at"`
}

func (d *Donation) Method() PaymentMethod {
	if d == nil {
		return PaymentMethodUnknown
	}
	if d.BTCPayInvoiceID != nil {
		return PaymentMethodCrypto
	}
	return PaymentMethodFiat
}

func (d *Donation) IsMembership() bool {
	return d != nil && d.MembershipExpiresAt != nil
}

// ExternalRef identifies a settlement at exactly one payment processor.
type ExternalRef struct {
	StripePaymentIntentID *string
	StripeInvoiceID       *string
	BTCPayInvoiceID       *string
}

func (ref ExternalRef) Valid() bool {
	var cnt int
	if ref.StripePaymentIntentID != nil {
		cnt++
	}
	if ref.StripeInvoiceID != nil {
		cnt++
	}
	if ref.BTCPayInvoiceID != nil {
		cnt++
	}
	return cnt == 1
}

// DonationFilter is the struct with all filterable fields on donations.
// It also provides a Limit and Offset field, for pagination.
type DonationFilter struct {
	ID          *int    `json:"id"`
	UserID      *int    `json:"user_id"`
	FundSlug    *string `json:"fund_slug"`
	ProjectSlug *string `json:"project_slug"`

	ExternalRef *ExternalRef `json:"-"`

	StripeSubscriptionID *string `json:"stripe_subscription_id"`

	// Membership selects only donations that granted a membership.
	Membership *bool `json:"membership"`

	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// LeaderboardEntry is a publicly visible donation summary. Donors that did not
// opt into the leaderboard show up as anonymous.
type LeaderboardEntry struct {
	DonorName string          `json:"donor_name"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}
