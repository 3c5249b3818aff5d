package donatehub

import (
	"context"
	"time"
)

// DB is the ledger store. The db package implements it on PostgreSQL, tests
// implement it in memory.
type DB interface {
	// Donations
	Donation(ctx context.Context, filter DonationFilter) (*Donation, error)
	Donations(ctx context.Context, filter DonationFilter) ([]*Donation, error)
	CreateDonation(ctx context.Context, donation *Donation) error
	SetSubscriptionCancelAt(ctx context.Context, stripeSubscriptionID string, cancelAt *time.Time) error

	// Points ledger
	PointsBalance(ctx context.Context, userID int, scope PointsScope) (int64, error)
	PointHistories(ctx context.Context, filter PointHistoryFilter) ([]*PointHistory, error)
	CreatePointHistory(ctx context.Context, entry *PointHistory) error
	DeletePointHistory(ctx context.Context, id int) error
}
