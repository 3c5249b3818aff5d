package baseapi

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/MagicGrants/donatehub"
	"github.com/MagicGrants/donatehub/integrations/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"
	"golang.org/x/sync/errgroup"
)

// pointsBackRate is the share of a donation the cause still receives when the
// donor opts into points: net = gross * 0.9.
var pointsBackRate = decimal.RequireFromString("0.9")

// DonationRecord is the input of the donation recorder: the metadata and
// settlement amounts of a verified payment provider event.
type DonationRecord struct {
	Ref donatehub.ExternalRef

	UserID     *int
	DonorName  string
	DonorEmail string

	ProjectSlug string
	ProjectName string
	FundSlug    string

	GrossFiatAmount decimal.Decimal
	CryptoCode      *string
	CryptoAmount    *decimal.Decimal

	IsMembership         bool
	StripeSubscriptionID *string

	GivePointsBack             bool
	ShowDonorNameOnLeaderboard bool
}

// RecordDonation persists exactly one donation per external reference.
//
// Replayed webhook deliveries return the already-recorded donation. If the
// original delivery crashed between the donation insert and the points
// credit, the replay repairs the missing credit.
func (s *BaseAPI) RecordDonation(ctx context.Context, rec *DonationRecord) (*donatehub.Donation, error) {
	if !rec.Ref.Valid() {
		return nil, donatehub.Statusf(400, "Donation must reference exactly one external payment")
	}
	if rec.ProjectSlug == "" || rec.FundSlug == "" {
		return nil, donatehub.ErrMissingRequired
	}

	existing, err := s.db.Donation(ctx, donatehub.DonationFilter{ExternalRef: &rec.Ref})
	if err != nil {
		return nil, fmt.Errorf("couldn't check for existing donation: %w", err)
	}
	if existing != nil {
		slog.InfoContext(ctx, "Ignoring replayed settlement event", slog.Int("donation_id", existing.ID))
		if err := s.repairMissingCredit(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	netAmount := rec.GrossFiatAmount
	var points int64
	if rec.GivePointsBack {
		netAmount = rec.GrossFiatAmount.Mul(pointsBackRate).Round(2)
		points = rec.GrossFiatAmount.Mul(decimal.NewFromInt(donatehub.PointsPerUSD)).Floor().IntPart()
	}

	donation := &donatehub.Donation{
		CreatedAt: time.Now(),

		StripePaymentIntentID: rec.Ref.StripePaymentIntentID,
		StripeInvoiceID:       rec.Ref.StripeInvoiceID,
		BTCPayInvoiceID:       rec.Ref.BTCPayInvoiceID,

		UserID:     rec.UserID,
		DonorName:  rec.DonorName,
		DonorEmail: rec.DonorEmail,

		ProjectSlug: rec.ProjectSlug,
		ProjectName: rec.ProjectName,
		FundSlug:    rec.FundSlug,

		GrossFiatAmount: rec.GrossFiatAmount,
		NetFiatAmount:   netAmount,
		CryptoCode:      rec.CryptoCode,
		CryptoAmount:    rec.CryptoAmount,

		PointsAdded: points,

		ShowDonorNameOnLeaderboard: rec.ShowDonorNameOnLeaderboard,

		StripeSubscriptionID: rec.StripeSubscriptionID,
	}
	if rec.IsMembership {
		expires := donation.CreatedAt.AddDate(1, 0, 0)
		donation.MembershipExpiresAt = &expires
	}

	if err := s.db.CreateDonation(ctx, donation); err != nil {
		return nil, fmt.Errorf("couldn't record donation: %w", err)
	}
	prometheus.DonationsRecorded.WithLabelValues(string(donation.Method())).Inc()

	if points > 0 && rec.UserID != nil {
		if err := s.creditPoints(ctx, donation); err != nil {
			// The donation row exists, so the provider's retry will land in
			// the repair path above.
			return nil, err
		}
	}

	s.sendEmail(ctx, donationConfirmation(donation))
	return donation, nil
}

func (s *BaseAPI) creditPoints(ctx context.Context, donation *donatehub.Donation) error {
	scope := donatehub.PointsScope{FundSlug: donation.FundSlug}
	balance, err := s.db.PointsBalance(ctx, *donation.UserID, scope)
	if err != nil {
		return fmt.Errorf("couldn't read points balance: %w", err)
	}
	entry := &donatehub.PointHistory{
		UserID:   *donation.UserID,
		FundSlug: donation.FundSlug,

		PointsAdded:   donation.PointsAdded,
		PointsBalance: balance + donation.PointsAdded,

		DonationID: &donation.ID,
	}
	if err := s.db.CreatePointHistory(ctx, entry); err != nil {
		return fmt.Errorf("couldn't credit points: %w", err)
	}
	return nil
}

func (s *BaseAPI) repairMissingCredit(ctx context.Context, donation *donatehub.Donation) error {
	if donation.PointsAdded == 0 || donation.UserID == nil {
		return nil
	}
	entries, err := s.db.PointHistories(ctx, donatehub.PointHistoryFilter{DonationID: &donation.ID, Limit: 1})
	if err != nil {
		return fmt.Errorf("couldn't check points credit: %w", err)
	}
	if len(entries) > 0 {
		return nil
	}
	slog.WarnContext(ctx, "Donation exists without its points credit, repairing", slog.Int("donation_id", donation.ID))
	return s.creditPoints(ctx, donation)
}

// RecordStripePaymentIntent records a one-time Stripe donation. The caller
// has already verified the webhook signature and filtered partial payments.
func (s *BaseAPI) RecordStripePaymentIntent(ctx context.Context, pi *stripe.PaymentIntent) (*donatehub.Donation, error) {
	meta := parseDonationMetadata(pi.Metadata)
	rec := meta.toRecord()
	rec.Ref = donatehub.ExternalRef{StripePaymentIntentID: &pi.ID}
	rec.GrossFiatAmount = decimal.NewFromInt(pi.AmountReceived).Div(decimal.NewFromInt(100))
	return s.RecordDonation(ctx, rec)
}

// RecordStripeInvoice records a settled subscription invoice (membership
// renewal). Metadata travels on the invoice line of the subscription.
func (s *BaseAPI) RecordStripeInvoice(ctx context.Context, invoice *stripe.Invoice, line *stripe.InvoiceLineItem) (*donatehub.Donation, error) {
	meta := parseDonationMetadata(line.Metadata)
	rec := meta.toRecord()
	rec.Ref = donatehub.ExternalRef{StripeInvoiceID: &invoice.ID}
	rec.GrossFiatAmount = decimal.NewFromInt(invoice.AmountPaid).Div(decimal.NewFromInt(100))
	if invoice.Subscription != nil {
		rec.StripeSubscriptionID = &invoice.Subscription.ID
	}
	return s.RecordDonation(ctx, rec)
}

// RecordCryptoSettlement records a settled BTCPay invoice. The fiat value is
// derived from the processor-reported exchange rate at settlement time.
func (s *BaseAPI) RecordCryptoSettlement(ctx context.Context, invoiceID string) (*donatehub.Donation, error) {
	var (
		invoice  *donatehub.CryptoInvoice
		payments []*donatehub.CryptoPayment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		invoice, err = s.crypto.Invoice(gctx, invoiceID)
		return
	})
	g.Go(func() (err error) {
		payments, err = s.crypto.Payments(gctx, invoiceID)
		return
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, donatehub.Statusf(400, "Invoice %s settled without payments", invoiceID)
	}

	meta := parseDonationMetadata(stringMetadata(invoice.Metadata))
	rec := meta.toRecord()
	rec.Ref = donatehub.ExternalRef{BTCPayInvoiceID: &invoice.ID}

	// The donation is valued at what actually arrived, at the processor's
	// settlement rate. For fixed-amount invoices this reproduces the invoice
	// amount; for funding-required invoices it is the only value there is.
	payment := payments[0]
	cryptoCode := normalizeCryptoCode(payment.PaymentMethod)
	cryptoAmount := payment.TotalPaid
	rec.CryptoCode = &cryptoCode
	rec.CryptoAmount = &cryptoAmount
	rec.GrossFiatAmount = payment.TotalPaid.Mul(payment.Rate).Round(2)

	return s.RecordDonation(ctx, rec)
}

// CancelSubscription marks all donations of a Stripe subscription with its
// scheduled cancellation time (or clears it if cancellation was undone).
func (s *BaseAPI) CancelSubscription(ctx context.Context, stripeSubscriptionID string, cancelAt *time.Time) error {
	if err := s.db.SetSubscriptionCancelAt(ctx, stripeSubscriptionID, cancelAt); err != nil {
		return fmt.Errorf("couldn't mark subscription as cancelled: %w", err)
	}
	return nil
}

func (s *BaseAPI) Donations(ctx context.Context, filter donatehub.DonationFilter) ([]*donatehub.Donation, error) {
	donations, err := s.db.Donations(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("couldn't get donations: %w", err)
	}
	return donations, nil
}

// Leaderboard lists a fund's donations for public display. Donors that did
// not opt in are shown as anonymous.
func (s *BaseAPI) Leaderboard(ctx context.Context, fundSlug string, limit int) ([]*donatehub.LeaderboardEntry, error) {
	donations, err := s.db.Donations(ctx, donatehub.DonationFilter{FundSlug: &fundSlug, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("couldn't get leaderboard: %w", err)
	}
	entries := make([]*donatehub.LeaderboardEntry, len(donations))
	for i, d := range donations {
		name := "Anonymous"
		if d.ShowDonorNameOnLeaderboard && d.DonorName != "" {
			name = d.DonorName
		}
		entries[i] = &donatehub.LeaderboardEntry{
			DonorName: name,
			Amount:    d.NetFiatAmount,
			CreatedAt: d.CreatedAt,
		}
	}
	return entries, nil
}

// MembershipStatus returns the user's latest membership donation, or nil if
// they never purchased one.
func (s *BaseAPI) MembershipStatus(ctx context.Context, userID int) (*donatehub.Donation, error) {
	membership := true
	donation, err := s.db.Donation(ctx, donatehub.DonationFilter{UserID: &userID, Membership: &membership})
	if err != nil {
		return nil, fmt.Errorf("couldn't get membership status: %w", err)
	}
	return donation, nil
}

// donationMetadata is the set of metadata keys we attach to every checkout
// session / invoice so the webhook can reconstruct the donation.
type donationMetadata struct {
	UserID      *int
	DonorName   string
	DonorEmail  string
	ProjectSlug string
	ProjectName string
	FundSlug    string

	IsMembership               bool
	GivePointsBack             bool
	ShowDonorNameOnLeaderboard bool
}

func (meta *donationMetadata) toRecord() *DonationRecord {
	return &DonationRecord{
		UserID:     meta.UserID,
		DonorName:  meta.DonorName,
		DonorEmail: meta.DonorEmail,

		ProjectSlug: meta.ProjectSlug,
		ProjectName: meta.ProjectName,
		FundSlug:    meta.FundSlug,

		IsMembership:               meta.IsMembership,
		GivePointsBack:             meta.GivePointsBack,
		ShowDonorNameOnLeaderboard: meta.ShowDonorNameOnLeaderboard,
	}
}

func (meta *donationMetadata) toMap() map[string]string {
	m := map[string]string{
		"donorName":                  meta.DonorName,
		"donorEmail":                 meta.DonorEmail,
		"projectSlug":                meta.ProjectSlug,
		"projectName":                meta.ProjectName,
		"fundSlug":                   meta.FundSlug,
		"isMembership":               strconv.FormatBool(meta.IsMembership),
		"givePointsBack":             strconv.FormatBool(meta.GivePointsBack),
		"showDonorNameOnLeaderboard": strconv.FormatBool(meta.ShowDonorNameOnLeaderboard),
	}
	if meta.UserID != nil {
		m["userId"] = strconv.Itoa(*meta.UserID)
	}
	return m
}

func parseDonationMetadata(m map[string]string) *donationMetadata {
	meta := &donationMetadata{
		DonorName:   m["donorName"],
		DonorEmail:  m["donorEmail"],
		ProjectSlug: m["projectSlug"],
		ProjectName: m["projectName"],
		FundSlug:    m["fundSlug"],
	}
	if v, err := strconv.Atoi(m["userId"]); err == nil {
		meta.UserID = &v
	}
	meta.IsMembership, _ = strconv.ParseBool(m["isMembership"])
	meta.GivePointsBack, _ = strconv.ParseBool(m["givePointsBack"])
	meta.ShowDonorNameOnLeaderboard, _ = strconv.ParseBool(m["showDonorNameOnLeaderboard"])
	return meta
}

func stringMetadata(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch v := v.(type) {
		case string:
			out[k] = v
		case bool:
			out[k] = strconv.FormatBool(v)
		case float64:
			out[k] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return out
}

// normalizeCryptoCode strips BTCPay payment method suffixes, e.g.
// "BTC-LightningNetwork" -> "BTC".
func normalizeCryptoCode(paymentMethod string) string {
	code, _, _ := strings.Cut(paymentMethod, "-")
	return code
}

func donationConfirmation(d *donatehub.Donation) *donatehub.MailerMessage {
	subject := fmt.Sprintf("Thank you for supporting %s", d.ProjectName)
	body := fmt.Sprintf("Your donation of %s USD to %s has been received.",
		d.NetFiatAmount.StringFixed(2), d.ProjectName)
	if d.IsMembership() {
		body += fmt.Sprintf(" Your membership is valid until %s.", d.MembershipExpiresAt.Format("January 2, 2006"))
	}
	if d.PointsAdded > 0 {
		body += fmt.Sprintf(" You earned %d points.", d.PointsAdded)
	}
	return &donatehub.MailerMessage{
		To:           d.DonorEmail,
		Subject:      subject,
		PlainContent: body,
	}
}
