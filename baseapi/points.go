package baseapi

import (
	"context"
	"fmt"

	"github.com/MagicGrants/donatehub"
)

// PointsBalance is the balance of the most recent ledger row in the scope, or
// 0 with no rows. All mutation goes through the donation recorder (credit)
// and the perk purchase coordinator (debit).
func (s *BaseAPI) PointsBalance(ctx context.Context, userID int, scope donatehub.PointsScope) (int64, error) {
	balance, err := s.db.PointsBalance(ctx, userID, scope)
	if err != nil {
		return 0, fmt.Errorf("couldn't get points balance: %w", err)
	}
	return balance, nil
}

// PointsHistory lists the user's ledger rows, most recent first.
func (s *BaseAPI) PointsHistory(ctx context.Context, userID int, filter donatehub.PointHistoryFilter) ([]*donatehub.PointHistory, error) {
	filter.UserID = &userID
	entries, err := s.db.PointHistories(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("couldn't get points history: %w", err)
	}
	return entries, nil
}
