package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MagicGrants/donatehub/baseapi/flags"
	"github.com/MagicGrants/donatehub/internal/config"
	"github.com/go-chi/chi/v5"
	"github.com/matryer/is"
	"github.com/stripe/stripe-go/v74"
)

func setupFlags(t *testing.T) {
	t.Helper()
	config.SetPath(filepath.Join(t.TempDir(), "config.json"))
	flags.StripeWebhookSecrets.Update(map[string]string{"monero": "stripe-secret"})
	flags.BTCPayWebhookSecret.Update("btcpay-secret")
	flags.PrintfulWebhookSecret.Update("printful-secret")
}

func btcpaySig(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestBTCPayWebhookSignature(t *testing.T) {
	is := is.New(t)
	setupFlags(t)
	s := New(nil)

	payload := []byte(`{"type":"InvoiceCreated","invoiceId":"inv_1"}`)

	// No signature header at all.
	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/btcpay/webhook", strings.NewReader(string(payload)))
	s.btcpayWebhook(w, r)
	is.Equal(w.Code, 400)

	// Signed with the wrong secret.
	w = httptest.NewRecorder()
	r = httptest.NewRequest("POST", "/btcpay/webhook", strings.NewReader(string(payload)))
	r.Header.Set("BTCPay-Sig", btcpaySig("wrong-secret", payload))
	s.btcpayWebhook(w, r)
	is.Equal(w.Code, 400)

	// Signature over a different body.
	w = httptest.NewRecorder()
	r = httptest.NewRequest("POST", "/btcpay/webhook", strings.NewReader(string(payload)))
	r.Header.Set("BTCPay-Sig", btcpaySig("btcpay-secret", []byte(`{"tampered":true}`)))
	s.btcpayWebhook(w, r)
	is.Equal(w.Code, 400)

	// A valid signature on an event type we don't act on is acknowledged, so
	// the processor stops redelivering it.
	w = httptest.NewRecorder()
	r = httptest.NewRequest("POST", "/btcpay/webhook", strings.NewReader(string(payload)))
	r.Header.Set("BTCPay-Sig", btcpaySig("btcpay-secret", payload))
	s.btcpayWebhook(w, r)
	is.Equal(w.Code, 200)
}

func TestBTCPayWebhookEventSelection(t *testing.T) {
	is := is.New(t)
	setupFlags(t)
	s := New(nil)

	// InvoicePaymentSettled is only meaningful for funding API invoices;
	// regular ones wait for InvoiceSettled.
	payload := []byte(`{"type":"InvoicePaymentSettled","invoiceId":"inv_1","metadata":{"apiInvoice":false}}`)
	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/btcpay/webhook", strings.NewReader(string(payload)))
	r.Header.Set("BTCPay-Sig", btcpaySig("btcpay-secret", payload))
	s.btcpayWebhook(w, r)
	is.Equal(w.Code, 200)
	is.True(strings.Contains(w.Body.String(), "skipped"))

	payload = []byte(`{"type":"InvoiceSettled","invoiceId":"inv_1","metadata":{"apiInvoice":true}}`)
	w = httptest.NewRecorder()
	r = httptest.NewRequest("POST", "/btcpay/webhook", strings.NewReader(string(payload)))
	r.Header.Set("BTCPay-Sig", btcpaySig("btcpay-secret", payload))
	s.btcpayWebhook(w, r)
	is.Equal(w.Code, 200)
	is.True(strings.Contains(w.Body.String(), "skipped"))
}

func stripeSig(secret string, payload []byte, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func stripeEventPayload(eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{"api_version":%q,"type":%q,"data":{"object":%s}}`,
		stripe.APIVersion, eventType, object))
}

func TestStripeWebhookInvoiceSelection(t *testing.T) {
	is := is.New(t)
	setupFlags(t)
	router := chi.NewRouter()
	router.Post("/stripe/{fundSlug}-webhook", New(nil).stripeWebhook)

	// A one-off invoice never records a donation here, even when a line
	// carries checkout metadata; its payment intent event is authoritative.
	payload := stripeEventPayload("invoice.paid",
		`{"id":"in_1","lines":{"data":[{"metadata":{"fundSlug":"monero"}}]}}`)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/stripe/monero-webhook", bytes.NewReader(payload))
	r.Header.Set("Stripe-Signature", stripeSig("stripe-secret", payload, time.Now()))
	router.ServeHTTP(w, r)
	is.Equal(w.Code, 200)
	is.True(strings.Contains(w.Body.String(), "skipped"))

	// Signed with the wrong secret.
	w = httptest.NewRecorder()
	r = httptest.NewRequest("POST", "/stripe/monero-webhook", bytes.NewReader(payload))
	r.Header.Set("Stripe-Signature", stripeSig("wrong-secret", payload, time.Now()))
	router.ServeHTTP(w, r)
	is.Equal(w.Code, 400)

	// Fund without a configured secret.
	w = httptest.NewRecorder()
	r = httptest.NewRequest("POST", "/stripe/firo-webhook", bytes.NewReader(payload))
	r.Header.Set("Stripe-Signature", stripeSig("stripe-secret", payload, time.Now()))
	router.ServeHTTP(w, r)
	is.Equal(w.Code, 400)
}

func TestPrintfulWebhookSecret(t *testing.T) {
	is := is.New(t)
	setupFlags(t)
	s := New(nil)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/printful/webhook?secret=wrong", strings.NewReader(`{}`))
	s.printfulWebhook(w, r)
	is.Equal(w.Code, 400)

	w = httptest.NewRecorder()
	r = httptest.NewRequest("POST", "/printful/webhook?secret=printful-secret", strings.NewReader(`{"type":"order_created"}`))
	s.printfulWebhook(w, r)
	is.Equal(w.Code, 200)
	is.True(strings.Contains(w.Body.String(), "skipped"))
}

func TestDonationLine(t *testing.T) {
	is := is.New(t)

	invoice := &stripe.Invoice{Lines: &stripe.InvoiceLineItemList{Data: []*stripe.InvoiceLineItem{
		{Metadata: map[string]string{}},
		{Metadata: map[string]string{"fundSlug": "monero"}},
	}}}
	line := donationLine(invoice)
	is.True(line != nil)
	is.Equal(line.Metadata["fundSlug"], "monero")

	is.True(donationLine(&stripe.Invoice{}) == nil)
	is.True(donationLine(&stripe.Invoice{Lines: &stripe.InvoiceLineItemList{}}) == nil)
}

func TestSubscriptionCancelAt(t *testing.T) {
	is := is.New(t)

	cancelAt := time.Now().Add(720 * time.Hour).Unix()
	at := subscriptionCancelAt(&stripe.Subscription{CancelAt: cancelAt}, "customer.subscription.updated")
	is.True(at != nil)
	is.Equal(at.Unix(), cancelAt)

	// Cancellation undone.
	is.True(subscriptionCancelAt(&stripe.Subscription{}, "customer.subscription.updated") == nil)

	// Hard deletion always carries a timestamp.
	at = subscriptionCancelAt(&stripe.Subscription{}, "customer.subscription.deleted")
	is.True(at != nil)
}

func TestUserContext(t *testing.T) {
	is := is.New(t)
	s := New(nil)

	var got *int
	handler := s.userContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = userID(r)
	}))

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-User-Id", "7")
	handler.ServeHTTP(httptest.NewRecorder(), r)
	is.True(got != nil)
	is.Equal(*got, 7)

	r = httptest.NewRequest("GET", "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), r)
	is.True(got == nil)

	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-User-Id", "not-an-int")
	handler.ServeHTTP(httptest.NewRecorder(), r)
	is.True(got == nil)
}
