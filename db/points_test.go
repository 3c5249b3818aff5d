package db

import (
	"testing"

	"github.com/MagicGrants/donatehub"
	"github.com/matryer/is"
)

func TestPointHistoryScopeQuery(t *testing.T) {
	is := is.New(t)
	userID := 7
	project := "monero-research"

	// A fund-wide read must pin project_slug to NULL, otherwise the most
	// recent row of any project sub-ledger would leak into the fund balance.
	fb := pointHistoryFilterQuery(&donatehub.PointHistoryFilter{
		UserID: &userID,
		Scope:  &donatehub.PointsScope{FundSlug: "monero"},
	})
	is.Equal(fb.Where(), "user_id = $1 AND fund_slug = $2 AND project_slug IS NULL")
	is.Equal(fb.Args(), []any{&userID, "monero"})

	fb = pointHistoryFilterQuery(&donatehub.PointHistoryFilter{
		UserID: &userID,
		Scope:  &donatehub.PointsScope{FundSlug: "monero", ProjectSlug: &project},
	})
	is.Equal(fb.Where(), "user_id = $1 AND fund_slug = $2 AND project_slug = $3")
	is.Equal(fb.Args(), []any{&userID, "monero", &project})
}
