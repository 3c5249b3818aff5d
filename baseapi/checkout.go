package baseapi

import (
	"context"
	"fmt"

	"github.com/MagicGrants/donatehub"
	"github.com/MagicGrants/donatehub/baseapi/flags"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"
)

// CheckoutRequest starts a donation. The metadata attached here is what the
// settlement webhook later reconstructs the donation from.
type CheckoutRequest struct {
	Amount decimal.Decimal `json:"amount"`

	UserID     *int   `json:"-"`
	DonorName  string `json:"donor_name"`
	DonorEmail string `json:"donor_email"`

	ProjectSlug string `json:"project_slug"`
	ProjectName string `json:"project_name"`
	FundSlug    string `json:"fund_slug"`

	GivePointsBack             bool `json:"give_points_back"`
	IsMembership               bool `json:"is_membership"`
	ShowDonorNameOnLeaderboard bool `json:"show_donor_name_on_leaderboard"`

	// RecurringPriceID makes the checkout a subscription on that Stripe
	// price instead of a one-time payment.
	RecurringPriceID string `json:"recurring_price_id"`
}

func (req *CheckoutRequest) metadata() *donationMetadata {
	return &donationMetadata{
		UserID:     req.UserID,
		DonorName:  req.DonorName,
		DonorEmail: req.DonorEmail,

		ProjectSlug: req.ProjectSlug,
		ProjectName: req.ProjectName,
		FundSlug:    req.FundSlug,

		IsMembership:               req.IsMembership,
		GivePointsBack:             req.GivePointsBack,
		ShowDonorNameOnLeaderboard: req.ShowDonorNameOnLeaderboard,
	}
}

// CreateStripeCheckout creates a Stripe Checkout Session and returns its
// redirect URL.
func (s *BaseAPI) CreateStripeCheckout(ctx context.Context, req *CheckoutRequest) (string, error) {
	meta := req.metadata().toMap()

	params := &stripe.CheckoutSessionParams{
		SuccessURL: stripe.String(flags.StripeSuccessURL.Value()),
		CancelURL:  stripe.String(flags.StripeCancelURL.Value()),
	}
	params.Context = ctx
	if req.DonorEmail != "" {
		params.CustomerEmail = stripe.String(req.DonorEmail)
	}

	if req.RecurringPriceID != "" {
		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(req.RecurringPriceID),
			Quantity: stripe.Int64(1),
		}}
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: meta,
		}
	} else {
		cents := req.Amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
		if cents <= 0 {
			return "", donatehub.Statusf(400, "Donation amount must be positive")
		}
		params.Mode = stripe.String(string(stripe.CheckoutSessionModePayment))
		params.SubmitType = stripe.String("donate")
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String("usd"),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(fmt.Sprintf("Donation to %s", req.ProjectName)),
				},
				UnitAmount: stripe.Int64(cents),
			},
			Quantity: stripe.Int64(1),
		}}
		params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: meta,
		}
	}

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("couldn't create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreateCryptoInvoice creates a BTCPay invoice and returns its checkout URL.
func (s *BaseAPI) CreateCryptoInvoice(ctx context.Context, req *CheckoutRequest) (string, error) {
	if !req.Amount.IsPositive() {
		return "", donatehub.Statusf(400, "Donation amount must be positive")
	}
	metadata := make(map[string]any)
	for k, v := range req.metadata().toMap() {
		metadata[k] = v
	}

	invoice, err := s.crypto.CreateInvoice(ctx, &donatehub.CryptoInvoiceRequest{
		Amount:   req.Amount,
		Currency: "USD",
		Metadata: metadata,
	})
	if err != nil {
		return "", err
	}
	return invoice.CheckoutURL, nil
}
