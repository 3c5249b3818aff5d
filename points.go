package donatehub

import "time"

// PointHistory is an append-only ledger entry for the loyalty program. Each
// row carries the resulting balance, so the current balance of a scope is the
// balance field of its most recent row.
//
// Rows are never updated. The only row that is ever deleted is a deduction
// that has to be compensated after a failed perk purchase.
type PointHistory struct {
	ID        int       `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID      int     `json:"user_id"`
	FundSlug    string  `json:"fund_slug"`
	ProjectSlug *string `json:"project_slug"`

	PointsAdded    int64 `json:"points_added"`
	PointsDeducted int64 `json:"points_deducted"`
	PointsBalance  int64 `json:"points_balance"`

	DonationID       *int    `json:"donation_id"`
	PurchasePerkID   *string `json:"purchase_perk_id"`
	PurchasePerkName *string `json:"purchase_perk_name"`
	OrderID          *string `json:"order_id"`
}

// PointsScope selects the ledger a balance is kept in. Balances are tracked
// per fund, optionally narrowed down to a single project.
type PointsScope struct {
	FundSlug    string  `json:"fund_slug"`
	ProjectSlug *string `json:"project_slug"`
}

type PointHistoryFilter struct {
	UserID     *int         `json:"user_id"`
	Scope      *PointsScope `json:"scope"`
	OrderID    *string      `json:"order_id"`
	DonationID *int         `json:"donation_id"`
	Deducted   *bool        `json:"deducted"`

	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
