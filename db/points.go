package db

import (
	"context"
	"time"

	"github.com/MagicGrants/donatehub"
	"github.com/jackc/pgx/v5"
)

type pointHistory struct {
	ID        int       `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	UserID      int     `db:"user_id"`
	FundSlug    string  `db:"fund_slug"`
	ProjectSlug *string `db:"project_slug"`

	PointsAdded    int64 `db:"points_added"`
	PointsDeducted int64 `db:"points_deducted"`
	PointsBalance  int64 `db:"points_balance"`

	DonationID       *int    `db:"donation_id"`
	PurchasePerkID   *string `db:"purchase_perk_id"`
	PurchasePerkName *string `db:"purchase_perk_name"`
	OrderID          *string `db:"order_id"`
}

func (h *pointHistory) toModel() *donatehub.PointHistory {
	return &donatehub.PointHistory{
		ID:        h.ID,
		CreatedAt: h.CreatedAt,

		UserID:      h.UserID,
		FundSlug:    h.FundSlug,
		ProjectSlug: h.ProjectSlug,

		PointsAdded:    h.PointsAdded,
		PointsDeducted: h.PointsDeducted,
		PointsBalance:  h.PointsBalance,

		DonationID:       h.DonationID,
		PurchasePerkID:   h.PurchasePerkID,
		PurchasePerkName: h.PurchasePerkName,
		OrderID:          h.OrderID,
	}
}

func pointHistoryFilterQuery(filter *donatehub.PointHistoryFilter) *filterBuilder {
	fb := newFilterBuilder()
	if v := filter.UserID; v != nil {
		fb.AddConstraint("user_id = %s", v)
	}
	if scope := filter.Scope; scope != nil {
		fb.AddConstraint("fund_slug = %s", scope.FundSlug)
		// The fund-wide ledger and each project sub-ledger are separate
		// scopes; a fund-wide read must not see project rows.
		if scope.ProjectSlug != nil {
			fb.AddConstraint("project_slug = %s", scope.ProjectSlug)
		} else {
			fb.AddConstraint("project_slug IS NULL")
		}
	}
	if v := filter.OrderID; v != nil {
		fb.AddConstraint("order_id = %s", v)
	}
	if v := filter.DonationID; v != nil {
		fb.AddConstraint("donation_id = %s", v)
	}
	if v := filter.Deducted; v != nil {
		if *v {
			fb.AddConstraint("points_deducted > 0")
		} else {
			fb.AddConstraint("points_added > 0")
		}
	}
	return fb
}

// PointsBalance is the balance of the most recent ledger row in the scope, or
// 0 if the user has no rows there.
func (s *DB) PointsBalance(ctx context.Context, userID int, scope donatehub.PointsScope) (int64, error) {
	entries, err := s.PointHistories(ctx, donatehub.PointHistoryFilter{
		UserID: &userID,
		Scope:  &scope,
		Limit:  1,
	})
	if err != nil || len(entries) == 0 {
		return 0, err
	}
	return entries[0].PointsBalance, nil
}

// PointHistories returns ledger rows, most recent first.
func (s *DB) PointHistories(ctx context.Context, filter donatehub.PointHistoryFilter) ([]*donatehub.PointHistory, error) {
	fb := pointHistoryFilterQuery(&filter)
	rows, _ := s.conn.Query(ctx,
		"SELECT * FROM point_history WHERE "+fb.Where()+" ORDER BY created_at DESC, id DESC "+FormatLimitOffset(filter.Limit, filter.Offset),
		fb.Args()...,
	)
	entries, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[pointHistory])
	if err != nil {
		return nil, err
	}

	rez := make([]*donatehub.PointHistory, len(entries))
	for i := range entries {
		rez[i] = entries[i].toModel()
	}
	return rez, nil
}

func (s *DB) CreatePointHistory(ctx context.Context, entry *donatehub.PointHistory) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return s.conn.QueryRow(ctx, `
INSERT INTO point_history (
	created_at, user_id, fund_slug, project_slug,
	points_added, points_deducted, points_balance,
	donation_id, purchase_perk_id, purchase_perk_name, order_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id`,
		entry.CreatedAt, entry.UserID, entry.FundSlug, entry.ProjectSlug,
		entry.PointsAdded, entry.PointsDeducted, entry.PointsBalance,
		entry.DonationID, entry.PurchasePerkID, entry.PurchasePerkName, entry.OrderID,
	).Scan(&entry.ID)
}

// DeletePointHistory removes a ledger row. It exists solely for the perk
// purchase compensation path.
func (s *DB) DeletePointHistory(ctx context.Context, id int) error {
	_, err := s.conn.Exec(ctx, "DELETE FROM point_history WHERE id = $1", id)
	return err
}
