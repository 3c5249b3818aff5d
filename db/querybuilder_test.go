package db

import (
	"testing"

	"github.com/matryer/is"
)

func TestFilterBuilder(t *testing.T) {
	is := is.New(t)

	fb := newFilterBuilder()
	is.Equal(fb.Where(), "1 = 1")
	is.Equal(len(fb.Args()), 0)

	fb.AddConstraint("fund_slug = %s", "monero")
	fb.AddConstraint("points_deducted > 0")
	fb.AddConstraint("user_id = %s AND donation_id = %s", 7, 12)

	is.Equal(fb.Where(), "fund_slug = $1 AND points_deducted > 0 AND user_id = $2 AND donation_id = $3")
	is.Equal(fb.Args(), []any{"monero", 7, 12})
}

func TestFormatLimitOffset(t *testing.T) {
	is := is.New(t)
	is.Equal(FormatLimitOffset(0, 0), "")
	is.Equal(FormatLimitOffset(10, 0), "LIMIT 10")
	is.Equal(FormatLimitOffset(0, 5), "OFFSET 5")
	is.Equal(FormatLimitOffset(10, 5), "LIMIT 10 OFFSET 5")
}
