package baseapi

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/MagicGrants/donatehub"
	"github.com/shopspring/decimal"
)

func sPtr(s string) *string { return &s }
func iPtr(i int) *int       { return &i }

// memDB implements donatehub.DB in memory, with the same read semantics as
// the PostgreSQL implementation: newest rows first, balance taken from the
// most recent ledger row of the scope.
type memDB struct {
	donations []*donatehub.Donation
	histories []*donatehub.PointHistory

	nextDonationID int
	nextHistoryID  int

	failCreateHistory bool
}

func newMemDB() *memDB {
	return &memDB{nextDonationID: 1, nextHistoryID: 1}
}

func (m *memDB) Donation(ctx context.Context, filter donatehub.DonationFilter) (*donatehub.Donation, error) {
	filter.Limit = 1
	donations, err := m.Donations(ctx, filter)
	if err != nil || len(donations) == 0 {
		return nil, err
	}
	return donations[0], nil
}

func (m *memDB) Donations(ctx context.Context, filter donatehub.DonationFilter) ([]*donatehub.Donation, error) {
	var rez []*donatehub.Donation
	for i := len(m.donations) - 1; i >= 0; i-- {
		if donationMatches(m.donations[i], filter) {
			rez = append(rez, m.donations[i])
		}
	}
	if filter.Limit > 0 && len(rez) > filter.Limit {
		rez = rez[:filter.Limit]
	}
	return rez, nil
}

func donationMatches(d *donatehub.Donation, filter donatehub.DonationFilter) bool {
	if v := filter.ID; v != nil && d.ID != *v {
		return false
	}
	if v := filter.UserID; v != nil && (d.UserID == nil || *d.UserID != *v) {
		return false
	}
	if v := filter.FundSlug; v != nil && d.FundSlug != *v {
		return false
	}
	if v := filter.ProjectSlug; v != nil && d.ProjectSlug != *v {
		return false
	}
	if v := filter.StripeSubscriptionID; v != nil && (d.StripeSubscriptionID == nil || *d.StripeSubscriptionID != *v) {
		return false
	}
	if v := filter.Membership; v != nil && d.IsMembership() != *v {
		return false
	}
	if ref := filter.ExternalRef; ref != nil {
		switch {
		case ref.StripePaymentIntentID != nil:
			return d.StripePaymentIntentID != nil && *d.StripePaymentIntentID == *ref.StripePaymentIntentID
		case ref.StripeInvoiceID != nil:
			return d.StripeInvoiceID != nil && *d.StripeInvoiceID == *ref.StripeInvoiceID
		case ref.BTCPayInvoiceID != nil:
			return d.BTCPayInvoiceID != nil && *d.BTCPayInvoiceID == *ref.BTCPayInvoiceID
		}
		return false
	}
	return true
}

func (m *memDB) CreateDonation(ctx context.Context, donation *donatehub.Donation) error {
	donation.ID = m.nextDonationID
	m.nextDonationID++
	if donation.CreatedAt.IsZero() {
		donation.CreatedAt = time.Now()
	}
	m.donations = append(m.donations, donation)
	return nil
}

func (m *memDB) SetSubscriptionCancelAt(ctx context.Context, stripeSubscriptionID string, cancelAt *time.Time) error {
	for _, d := range m.donations {
		if d.StripeSubscriptionID != nil && *d.StripeSubscriptionID == stripeSubscriptionID {
			d.SubscriptionCancelAt = cancelAt
		}
	}
	return nil
}

func (m *memDB) PointsBalance(ctx context.Context, userID int, scope donatehub.PointsScope) (int64, error) {
	entries, err := m.PointHistories(ctx, donatehub.PointHistoryFilter{UserID: &userID, Scope: &scope, Limit: 1})
	if err != nil || len(entries) == 0 {
		return 0, err
	}
	return entries[0].PointsBalance, nil
}

func (m *memDB) PointHistories(ctx context.Context, filter donatehub.PointHistoryFilter) ([]*donatehub.PointHistory, error) {
	var rez []*donatehub.PointHistory
	for i := len(m.histories) - 1; i >= 0; i-- {
		if historyMatches(m.histories[i], filter) {
			rez = append(rez, m.histories[i])
		}
	}
	if filter.Limit > 0 && len(rez) > filter.Limit {
		rez = rez[:filter.Limit]
	}
	return rez, nil
}

func historyMatches(h *donatehub.PointHistory, filter donatehub.PointHistoryFilter) bool {
	if v := filter.UserID; v != nil && h.UserID != *v {
		return false
	}
	if scope := filter.Scope; scope != nil {
		if h.FundSlug != scope.FundSlug {
			return false
		}
		if (h.ProjectSlug == nil) != (scope.ProjectSlug == nil) {
			return false
		}
		if h.ProjectSlug != nil && *h.ProjectSlug != *scope.ProjectSlug {
			return false
		}
	}
	if v := filter.OrderID; v != nil && (h.OrderID == nil || *h.OrderID != *v) {
		return false
	}
	if v := filter.DonationID; v != nil && (h.DonationID == nil || *h.DonationID != *v) {
		return false
	}
	if v := filter.Deducted; v != nil && (h.PointsDeducted > 0) != *v {
		return false
	}
	return true
}

func (m *memDB) CreatePointHistory(ctx context.Context, entry *donatehub.PointHistory) error {
	if m.failCreateHistory {
		return fmt.Errorf("ledger unavailable")
	}
	entry.ID = m.nextHistoryID
	m.nextHistoryID++
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m.histories = append(m.histories, entry)
	return nil
}

func (m *memDB) DeletePointHistory(ctx context.Context, id int) error {
	for i, h := range m.histories {
		if h.ID == id {
			m.histories = append(m.histories[:i], m.histories[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no such entry")
}

// seedBalance inserts a credit row so the scope starts at the given balance.
func (m *memDB) seedBalance(t *testing.T, userID int, scope donatehub.PointsScope, balance int64) {
	t.Helper()
	err := m.CreatePointHistory(context.Background(), &donatehub.PointHistory{
		UserID:      userID,
		FundSlug:    scope.FundSlug,
		ProjectSlug: scope.ProjectSlug,

		PointsAdded:   balance,
		PointsBalance: balance,
	})
	if err != nil {
		t.Fatal(err)
	}
}

type memCatalog struct {
	perks  map[string]*donatehub.Perk
	orders map[string]*donatehub.Order

	nextOrderID     int
	failCreateOrder bool
}

func newMemCatalog(perks ...*donatehub.Perk) *memCatalog {
	c := &memCatalog{
		perks:  make(map[string]*donatehub.Perk),
		orders: make(map[string]*donatehub.Order),

		nextOrderID: 1,
	}
	for _, p := range perks {
		c.perks[p.ID] = p
	}
	return c
}

func (c *memCatalog) Perk(ctx context.Context, id string) (*donatehub.Perk, error) {
	return c.perks[id], nil
}

func (c *memCatalog) Perks(ctx context.Context) ([]*donatehub.Perk, error) {
	var rez []*donatehub.Perk
	for _, p := range c.perks {
		rez = append(rez, p)
	}
	return rez, nil
}

func (c *memCatalog) CreateOrder(ctx context.Context, order *donatehub.Order) error {
	if c.failCreateOrder {
		return fmt.Errorf("catalog unavailable")
	}
	order.ID = fmt.Sprintf("order-%d", c.nextOrderID)
	c.nextOrderID++
	c.orders[order.ID] = order
	return nil
}

func (c *memCatalog) DeleteOrder(ctx context.Context, id string) error {
	delete(c.orders, id)
	return nil
}

func (c *memCatalog) OrderByPrintfulID(ctx context.Context, printfulOrderID string) (*donatehub.Order, error) {
	for _, o := range c.orders {
		if o.PrintfulOrderID != nil && *o.PrintfulOrderID == printfulOrderID {
			return o, nil
		}
	}
	return nil, nil
}

func (c *memCatalog) UpdateOrderTracking(ctx context.Context, id string, trackingNumber, trackingURL string) error {
	order, ok := c.orders[id]
	if !ok {
		return fmt.Errorf("no such order")
	}
	order.TrackingNumber = &trackingNumber
	order.TrackingURL = &trackingURL
	return nil
}

type memFulfiller struct {
	estimate decimal.Decimal

	nextOrderID int
	placed      []*donatehub.FulfillmentOrder
	canceled    []string
}

func newMemFulfiller(estimate string) *memFulfiller {
	return &memFulfiller{estimate: decimal.RequireFromString(estimate), nextOrderID: 1}
}

func (f *memFulfiller) EstimateCost(ctx context.Context, variantID string, recipient *donatehub.ShippingAddress) (*donatehub.CostEstimate, error) {
	return &donatehub.CostEstimate{Total: f.estimate, Currency: "USD"}, nil
}

func (f *memFulfiller) CreateOrder(ctx context.Context, order *donatehub.FulfillmentOrder) (string, error) {
	id := fmt.Sprintf("pf-%d", f.nextOrderID)
	f.nextOrderID++
	f.placed = append(f.placed, order)
	return id, nil
}

func (f *memFulfiller) CancelOrder(ctx context.Context, providerOrderID string) error {
	f.canceled = append(f.canceled, providerOrderID)
	return nil
}

type memCrypto struct {
	invoices map[string]*donatehub.CryptoInvoice
	payments map[string][]*donatehub.CryptoPayment
}

func (c *memCrypto) CreateInvoice(ctx context.Context, req *donatehub.CryptoInvoiceRequest) (*donatehub.CryptoInvoice, error) {
	invoice := &donatehub.CryptoInvoice{
		ID:       fmt.Sprintf("inv-%d", len(c.invoices)+1),
		Status:   "New",
		Currency: req.Currency,

		Amount:      req.Amount,
		Metadata:    req.Metadata,
		CheckoutURL: "https://btcpay.example.com/i/test",
	}
	c.invoices[invoice.ID] = invoice
	return invoice, nil
}

func (c *memCrypto) Invoice(ctx context.Context, id string) (*donatehub.CryptoInvoice, error) {
	return c.invoices[id], nil
}

func (c *memCrypto) Payments(ctx context.Context, invoiceID string) ([]*donatehub.CryptoPayment, error) {
	return c.payments[invoiceID], nil
}

type testEnv struct {
	base *BaseAPI

	db        *memDB
	catalog   *memCatalog
	fulfiller *memFulfiller
	crypto    *memCrypto
}

func newTestEnv(t *testing.T, perks ...*donatehub.Perk) *testEnv {
	t.Helper()
	env := &testEnv{
		db:        newMemDB(),
		catalog:   newMemCatalog(perks...),
		fulfiller: newMemFulfiller("25.50"),
		crypto: &memCrypto{
			invoices: make(map[string]*donatehub.CryptoInvoice),
			payments: make(map[string][]*donatehub.CryptoPayment),
		},
	}
	base, err := GetBaseAPI(env.db, nil, env.catalog, env.fulfiller, env.crypto)
	if err != nil {
		t.Fatal(err)
	}
	env.base = base
	return env
}
