package api

import (
	"net/http"
	"strconv"

	"github.com/MagicGrants/donatehub"
)

// attestationFilter builds the donation lookup from the request: either the
// internal donation ID, any of its external payment references, or a Stripe
// subscription ID (memberships; resolves to the latest invoice donation).
func attestationFilter(r *http.Request) (donatehub.DonationFilter, error) {
	var filter donatehub.DonationFilter
	switch {
	case r.FormValue("donation_id") != "":
		id, err := strconv.Atoi(r.FormValue("donation_id"))
		if err != nil {
			return filter, donatehub.Statusf(400, "Param `donation_id` not int")
		}
		filter.ID = &id
	case r.FormValue("stripe_payment_intent_id") != "":
		id := r.FormValue("stripe_payment_intent_id")
		filter.ExternalRef = &donatehub.ExternalRef{StripePaymentIntentID: &id}
	case r.FormValue("stripe_invoice_id") != "":
		id := r.FormValue("stripe_invoice_id")
		filter.ExternalRef = &donatehub.ExternalRef{StripeInvoiceID: &id}
	case r.FormValue("btcpay_invoice_id") != "":
		id := r.FormValue("btcpay_invoice_id")
		filter.ExternalRef = &donatehub.ExternalRef{BTCPayInvoiceID: &id}
	case r.FormValue("stripe_subscription_id") != "":
		id := r.FormValue("stripe_subscription_id")
		filter.StripeSubscriptionID = &id
	default:
		return filter, donatehub.Statusf(400, "Specify a donation ID, a payment reference or a subscription ID")
	}
	return filter, nil
}

// getAttestation returns a signed receipt for a donation.
func (s *API) getAttestation(w http.ResponseWriter, r *http.Request) {
	filter, err := attestationFilter(r)
	if err != nil {
		statusError(w, err)
		return
	}

	attestation, err := s.base.DonationAttestation(r.Context(), filter)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, attestation)
}

func (s *API) publicKey(w http.ResponseWriter, r *http.Request) {
	key := s.base.AttestationPublicKey()
	if key == "" {
		errorData(w, "Attestations are not enabled on this instance", 404)
		return
	}
	returnData(w, struct {
		Type      string `json:"type"`
		PublicKey string `json:"public_key"`
	}{Type: "ed25519", PublicKey: key})
}
