package api

import (
	"net/http/httptest"
	"testing"

	"github.com/MagicGrants/donatehub"
	"github.com/matryer/is"
)

func TestAttestationFilter(t *testing.T) {
	is := is.New(t)

	filter, err := attestationFilter(httptest.NewRequest("GET", "/attestation?donation_id=12", nil))
	is.NoErr(err)
	is.Equal(*filter.ID, 12)

	filter, err = attestationFilter(httptest.NewRequest("GET", "/attestation?stripe_payment_intent_id=pi_1", nil))
	is.NoErr(err)
	is.Equal(*filter.ExternalRef.StripePaymentIntentID, "pi_1")

	filter, err = attestationFilter(httptest.NewRequest("GET", "/attestation?btcpay_invoice_id=inv_1", nil))
	is.NoErr(err)
	is.Equal(*filter.ExternalRef.BTCPayInvoiceID, "inv_1")

	filter, err = attestationFilter(httptest.NewRequest("GET", "/attestation?stripe_subscription_id=sub_1", nil))
	is.NoErr(err)
	is.Equal(*filter.StripeSubscriptionID, "sub_1")

	_, err = attestationFilter(httptest.NewRequest("GET", "/attestation?donation_id=abc", nil))
	is.Equal(donatehub.ErrorCode(err), 400)

	_, err = attestationFilter(httptest.NewRequest("GET", "/attestation", nil))
	is.Equal(donatehub.ErrorCode(err), 400)
}
