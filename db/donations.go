package db

import (
	"context"
	"time"

	"github.com/MagicGrants/donatehub"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type donation struct {
	ID        int       `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	StripePaymentIntentID *string `db:"stripe_payment_intent_id"`
	StripeInvoiceID       *string `db:"stripe_invoice_id"`
	BTCPayInvoiceID       *string `db:"btcpay_invoice_id"`

	UserID     *int   `db:"user_id"`
	DonorName  string `db:"donor_name"`
	DonorEmail string `db:"donor_email"`

	ProjectSlug string `db:"project_slug"`
	ProjectName string `db:"project_name"`
	FundSlug    string `db:"fund_slug"`

	GrossFiatAmount decimal.Decimal  `db:"gross_fiat_amount"`
	NetFiatAmount   decimal.Decimal  `db:"net_fiat_amount"`
	CryptoCode      *string          `db:"crypto_code"`
	CryptoAmount    *decimal.Decimal `db:"crypto_amount"`

	PointsAdded int64 `db:"points_added"`

	MembershipExpiresAt        *time.Time `db:"membership_expires_at"`
	ShowDonorNameOnLeaderboard bool       `db:"show_donor_name_on_leaderboard"`

	StripeSubscriptionID *string    `db:"stripe_subscription_id"`
	SubscriptionCancelAt *time.Time `db:"subscription_cancel_at"`
}

func (d *donation) toModel() *donatehub.Donation {
	return &donatehub.Donation{
		ID:        d.ID,
		CreatedAt: d.CreatedAt,

		StripePaymentIntentID: d.StripePaymentIntentID,
		StripeInvoiceID:       d.StripeInvoiceID,
		BTCPayInvoiceID:       d.BTCPayInvoiceID,

		UserID:     d.UserID,
		DonorName:  d.DonorName,
		DonorEmail: d.DonorEmail,

		ProjectSlug: d.ProjectSlug,
		ProjectName: d.ProjectName,
		FundSlug:    d.FundSlug,

		GrossFiatAmount: d.GrossFiatAmount,
		NetFiatAmount:   d.NetFiatAmount,
		CryptoCode:      d.CryptoCode,
		CryptoAmount:    d.CryptoAmount,

		PointsAdded: d.PointsAdded,

		MembershipExpiresAt:        d.MembershipExpiresAt,
		ShowDonorNameOnLeaderboard: d.ShowDonorNameOnLeaderboard,

		StripeSubscriptionID: d.StripeSubscriptionID,
		SubscriptionCancelAt: d.SubscriptionCancelAt,
	}
}

func donationFilterQuery(filter *donatehub.DonationFilter) *filterBuilder {
	fb := newFilterBuilder()
	if v := filter.ID; v != nil {
		fb.AddConstraint("id = %s", v)
	}
	if v := filter.UserID; v != nil {
		fb.AddConstraint("user_id = %s", v)
	}
	if v := filter.FundSlug; v != nil {
		fb.AddConstraint("fund_slug = %s", v)
	}
	if v := filter.ProjectSlug; v != nil {
		fb.AddConstraint("project_slug = %s", v)
	}
	if v := filter.StripeSubscriptionID; v != nil {
		fb.AddConstraint("stripe_subscription_id = %s", v)
	}
	if v := filter.Membership; v != nil {
		if *v {
			fb.AddConstraint("membership_expires_at IS NOT NULL")
		} else {
			fb.AddConstraint("membership_expires_at IS NULL")
		}
	}
	if ref := filter.ExternalRef; ref != nil {
		if v := ref.StripePaymentIntentID; v != nil {
			fb.AddConstraint("stripe_payment_intent_id = %s", v)
		}
		if v := ref.StripeInvoiceID; v != nil {
			fb.AddConstraint("stripe_invoice_id = %s", v)
		}
		if v := ref.BTCPayInvoiceID; v != nil {
			fb.AddConstraint("btcpay_invoice_id = %s", v)
		}
	}
	return fb
}

func (s *DB) Donation(ctx context.Context, filter donatehub.DonationFilter) (*donatehub.Donation, error) {
	filter.Limit = 1
	donations, err := s.Donations(ctx, filter)
	if err != nil || len(donations) == 0 {
		return nil, err
	}
	return donations[0], nil
}

func (s *DB) Donations(ctx context.Context, filter donatehub.DonationFilter) ([]*donatehub.Donation, error) {
	fb := donationFilterQuery(&filter)
	rows, _ := s.conn.Query(ctx,
		"SELECT * FROM donations WHERE "+fb.Where()+" ORDER BY created_at DESC "+FormatLimitOffset(filter.Limit, filter.Offset),
		fb.Args()...,
	)
	donations, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[donation])
	if err != nil {
		return nil, err
	}

	rez := make([]*donatehub.Donation, len(donations))
	for i := range donations {
		rez[i] = donations[i].toModel()
	}
	return rez, nil
}

func (s *DB) CreateDonation(ctx context.Context, d *donatehub.Donation) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	return s.conn.QueryRow(ctx, `
INSERT INTO donations (
	created_at, stripe_payment_intent_id, stripe_invoice_id, btcpay_invoice_id,
	user_id, donor_name, donor_email, project_slug, project_name, fund_slug,
	gross_fiat_amount, net_fiat_amount, crypto_code, crypto_amount, points_added,
	membership_expires_at, show_donor_name_on_leaderboard,
	stripe_subscription_id, subscription_cancel_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
RETURNING id`,
		d.CreatedAt, d.StripePaymentIntentID, d.StripeInvoiceID, d.BTCPayInvoiceID,
		d.UserID, d.DonorName, d.DonorEmail, d.ProjectSlug, d.ProjectName, d.FundSlug,
		d.GrossFiatAmount, d.NetFiatAmount, d.CryptoCode, d.CryptoAmount, d.PointsAdded,
		d.MembershipExpiresAt, d.ShowDonorNameOnLeaderboard,
		d.StripeSubscriptionID, d.SubscriptionCancelAt,
	).Scan(&d.ID)
}

func (s *DB) SetSubscriptionCancelAt(ctx context.Context, stripeSubscriptionID string, cancelAt *time.Time) error {
	_, err := s.conn.Exec(ctx,
		"UPDATE donations SET subscription_cancel_at = $1 WHERE stripe_subscription_id = $2",
		cancelAt, stripeSubscriptionID,
	)
	return err
}
