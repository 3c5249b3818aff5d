package baseapi

import (
	"testing"

	"github.com/MagicGrants/donatehub"
	"github.com/matryer/is"
)

func TestPointsBalanceEmpty(t *testing.T) {
	is := is.New(t)
	env := newTestEnv(t)

	balance, err := env.base.PointsBalance(ctx, 7, donatehub.PointsScope{FundSlug: "monero"})
	is.NoErr(err)
	is.Equal(balance, int64(0))
}

func TestPointsBalanceScoping(t *testing.T) {
	is := is.New(t)
	env := newTestEnv(t)

	fund := donatehub.PointsScope{FundSlug: "monero"}
	project := donatehub.PointsScope{FundSlug: "monero", ProjectSlug: sPtr("monero-research")}

	env.db.seedBalance(t, 7, fund, 1000)
	env.db.seedBalance(t, 7, project, 250)
	env.db.seedBalance(t, 8, fund, 9999)

	// Fund-wide and project-scoped ledgers are independent, as are users.
	balance, err := env.base.PointsBalance(ctx, 7, fund)
	is.NoErr(err)
	is.Equal(balance, int64(1000))

	balance, err = env.base.PointsBalance(ctx, 7, project)
	is.NoErr(err)
	is.Equal(balance, int64(250))
}

func TestPointsBalanceIsLastRow(t *testing.T) {
	is := is.New(t)
	env := newTestEnv(t)
	scope := donatehub.PointsScope{FundSlug: "monero"}

	env.db.seedBalance(t, 7, scope, 1000)
	err := env.db.CreatePointHistory(ctx, &donatehub.PointHistory{
		UserID:   7,
		FundSlug: "monero",

		PointsDeducted: 300,
		PointsBalance:  700,
	})
	is.NoErr(err)

	balance, err := env.base.PointsBalance(ctx, 7, scope)
	is.NoErr(err)
	is.Equal(balance, int64(700))
}

func TestPointsHistoryScopedToUser(t *testing.T) {
	is := is.New(t)
	env := newTestEnv(t)
	scope := donatehub.PointsScope{FundSlug: "monero"}

	env.db.seedBalance(t, 7, scope, 1000)
	env.db.seedBalance(t, 8, scope, 2000)

	entries, err := env.base.PointsHistory(ctx, 7, donatehub.PointHistoryFilter{})
	is.NoErr(err)
	is.Equal(len(entries), 1)
	is.Equal(entries[0].UserID, 7)
}
