package donatehub

import (
	"context"

	"github.com/shopspring/decimal"
)

type Mailer interface {
	SendEmail(ctx context.Context, msg *MailerMessage) error
}

type MailerMessage struct {
	To      string
	Subject string
	ReplyTo string

	PlainContent string
	HTMLContent  string
}

// CryptoInvoice is our view of a BTCPay Server invoice.
type CryptoInvoice struct {
	ID       string
	Status   string
	Currency string
	// Amount is the fiat amount the invoice was created for. Zero for
	// funding-required invoices, which are settled by whatever arrives.
	Amount      decimal.Decimal
	Metadata    map[string]any
	CheckoutURL string
}

// CryptoPayment is one settled payment method on an invoice, with the
// processor-reported exchange rate at settlement time.
type CryptoPayment struct {
	// PaymentMethod is the processor's payment method code, e.g. "BTC" or
	// "XMR" (possibly suffixed, e.g. "BTC-LightningNetwork").
	PaymentMethod string
	Rate          decimal.Decimal
	TotalPaid     decimal.Decimal
}

type CryptoInvoiceRequest struct {
	Amount   decimal.Decimal
	Currency string
	Metadata map[string]any
}

// CryptoProcessor is the Bitcoin/Monero payment processor (BTCPay Server).
type CryptoProcessor interface {
	CreateInvoice(ctx context.Context, req *CryptoInvoiceRequest) (*CryptoInvoice, error)
	Invoice(ctx context.Context, id string) (*CryptoInvoice, error)
	Payments(ctx context.Context, invoiceID string) ([]*CryptoPayment, error)
}
