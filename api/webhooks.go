package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MagicGrants/donatehub/baseapi/flags"
	"github.com/MagicGrants/donatehub/integrations/prometheus"
	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
)

// Providers retry deliveries on non-2xx responses. Handlers return an error
// status only when a retry could actually succeed; events that are verified
// but not ours get a 200 so they stop coming back.

// Subscription invoice events with many expanded lines run well past 64 KiB,
// and an oversized delivery would be redelivered forever without ever
// succeeding.
const webhookBodyLimit = 1 << 20

func (s *API) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	fundSlug := chi.URLParam(r, "fundSlug")
	secret := flags.StripeWebhookSecrets.Value()[fundSlug]
	if secret == "" {
		slog.WarnContext(r.Context(), "Stripe webhook POSTed for fund with no configured secret", slog.String("fund", fundSlug))
		errorData(w, "Unknown webhook endpoint", 400)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, webhookBodyLimit))
	if err != nil {
		errorData(w, "Couldn't read body", 400)
		return
	}
	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), secret)
	if err != nil {
		prometheus.WebhookEvents.WithLabelValues("stripe", "invalid").Inc()
		errorData(w, "Invalid signature", 400)
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			errorData(w, "Invalid payment intent payload", 400)
			return
		}
		if pi.Metadata["fundSlug"] == "" {
			// Not a donation checkout, probably created straight in the
			// dashboard.
			prometheus.WebhookEvents.WithLabelValues("stripe", "skipped").Inc()
			returnData(w, "skipped")
			return
		}
		if pi.AmountReceived != pi.Amount {
			slog.WarnContext(r.Context(), "Ignoring partially captured payment intent",
				slog.String("payment_intent_id", pi.ID), slog.Int64("amount", pi.Amount), slog.Int64("received", pi.AmountReceived))
			prometheus.WebhookEvents.WithLabelValues("stripe", "skipped").Inc()
			returnData(w, "skipped")
			return
		}
		if _, err := s.base.RecordStripePaymentIntent(r.Context(), &pi); err != nil {
			prometheus.WebhookEvents.WithLabelValues("stripe", "error").Inc()
			statusError(w, err)
			return
		}

	case "invoice.paid":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			errorData(w, "Invalid invoice payload", 400)
			return
		}
		if invoice.Subscription == nil {
			// One-off invoices are not membership renewals; their payment
			// intent event is the one that records them.
			prometheus.WebhookEvents.WithLabelValues("stripe", "skipped").Inc()
			returnData(w, "skipped")
			return
		}
		line := donationLine(&invoice)
		if line == nil {
			// A 4xx would make Stripe redeliver an invoice we will never be
			// able to attribute.
			slog.WarnContext(r.Context(), "Paid subscription invoice has no donation line, skipping",
				slog.String("invoice_id", invoice.ID))
			prometheus.WebhookEvents.WithLabelValues("stripe", "skipped").Inc()
			returnData(w, "skipped")
			return
		}
		if _, err := s.base.RecordStripeInvoice(r.Context(), &invoice, line); err != nil {
			prometheus.WebhookEvents.WithLabelValues("stripe", "error").Inc()
			statusError(w, err)
			return
		}

	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			errorData(w, "Invalid subscription payload", 400)
			return
		}
		if err := s.base.CancelSubscription(r.Context(), sub.ID, subscriptionCancelAt(&sub, event.Type)); err != nil {
			prometheus.WebhookEvents.WithLabelValues("stripe", "error").Inc()
			statusError(w, err)
			return
		}

	default:
		prometheus.WebhookEvents.WithLabelValues("stripe", "skipped").Inc()
		returnData(w, "skipped")
		return
	}

	prometheus.WebhookEvents.WithLabelValues("stripe", "ok").Inc()
	returnData(w, "ok")
}

// donationLine finds the subscription line carrying our checkout metadata.
func donationLine(invoice *stripe.Invoice) *stripe.InvoiceLineItem {
	if invoice.Lines == nil {
		return nil
	}
	for _, line := range invoice.Lines.Data {
		if line.Metadata["fundSlug"] != "" {
			return line
		}
	}
	return nil
}

func subscriptionCancelAt(sub *stripe.Subscription, eventType string) *time.Time {
	if eventType == "customer.subscription.deleted" {
		at := time.Now()
		if sub.CanceledAt > 0 {
			at = time.Unix(sub.CanceledAt, 0)
		}
		return &at
	}
	if sub.CancelAt > 0 {
		at := time.Unix(sub.CancelAt, 0)
		return &at
	}
	// Cancellation was undone from the dashboard.
	return nil
}

type btcpayEvent struct {
	Type      string         `json:"type"`
	InvoiceID string         `json:"invoiceId"`
	Metadata  map[string]any `json:"metadata"`
}

func (e *btcpayEvent) apiInvoice() bool {
	v, _ := e.Metadata["apiInvoice"].(bool)
	return v
}

func (s *API) btcpayWebhook(w http.ResponseWriter, r *http.Request) {
	secret := flags.BTCPayWebhookSecret.Value()
	if secret == "" {
		slog.WarnContext(r.Context(), "BTCPay webhook POSTed but no secret was specified in config file")
		errorData(w, "BTCPay secret not rolled out", 400)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, webhookBodyLimit))
	if err != nil {
		errorData(w, "Couldn't read body", 400)
		return
	}

	// The signature covers the raw body, so decode only after it checks out.
	sig, ok := strings.CutPrefix(r.Header.Get("BTCPay-Sig"), "sha256=")
	if !ok {
		errorData(w, "Invalid signature", 400)
		return
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	if !hmac.Equal([]byte(hex.EncodeToString(mac.Sum(nil))), []byte(sig)) {
		prometheus.WebhookEvents.WithLabelValues("btcpay", "invalid").Inc()
		errorData(w, "Invalid signature", 400)
		return
	}

	var event btcpayEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		errorData(w, "Invalid JSON", 400)
		return
	}

	// Fixed-amount invoices settle once, as InvoiceSettled. Invoices created
	// through the funding API settle payment by payment, and only
	// InvoicePaymentSettled carries a final amount for them.
	record := (event.Type == "InvoiceSettled" && !event.apiInvoice()) ||
		(event.Type == "InvoicePaymentSettled" && event.apiInvoice())
	if !record {
		prometheus.WebhookEvents.WithLabelValues("btcpay", "skipped").Inc()
		returnData(w, "skipped")
		return
	}

	if _, err := s.base.RecordCryptoSettlement(r.Context(), event.InvoiceID); err != nil {
		prometheus.WebhookEvents.WithLabelValues("btcpay", "error").Inc()
		statusError(w, err)
		return
	}
	prometheus.WebhookEvents.WithLabelValues("btcpay", "ok").Inc()
	returnData(w, "ok")
}

type printfulEvent struct {
	Type string `json:"type"`
	Data struct {
		Order struct {
			ID int64 `json:"id"`
		} `json:"order"`
		Shipment struct {
			TrackingNumber string `json:"tracking_number"`
			TrackingURL    string `json:"tracking_url"`
		} `json:"shipment"`
	} `json:"data"`
}

func (s *API) printfulWebhook(w http.ResponseWriter, r *http.Request) {
	secret := flags.PrintfulWebhookSecret.Value()
	if secret == "" || !hmac.Equal([]byte(r.URL.Query().Get("secret")), []byte(secret)) {
		prometheus.WebhookEvents.WithLabelValues("printful", "invalid").Inc()
		errorData(w, "Invalid secret", 400)
		return
	}

	event, ok := parseJSONBody[printfulEvent](r, w)
	if !ok {
		return
	}
	if event.Type != "package_shipped" {
		prometheus.WebhookEvents.WithLabelValues("printful", "skipped").Inc()
		returnData(w, "skipped")
		return
	}

	err := s.base.TrackShipment(r.Context(),
		strconv.FormatInt(event.Data.Order.ID, 10),
		event.Data.Shipment.TrackingNumber, event.Data.Shipment.TrackingURL)
	if err != nil {
		prometheus.WebhookEvents.WithLabelValues("printful", "error").Inc()
		statusError(w, err)
		return
	}
	prometheus.WebhookEvents.WithLabelValues("printful", "ok").Inc()
	returnData(w, "ok")
}
