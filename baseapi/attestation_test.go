package baseapi

import (
	"crypto/ed25519"
	"fmt"
	"strings"
	"testing"

	"github.com/MagicGrants/donatehub"
	"github.com/matryer/is"
)

func TestAttestationRoundTrip(t *testing.T) {
	is := is.New(t)

	pub, priv, err := ed25519.GenerateKey(nil)
	is.NoErr(err)

	message := "attestation body"
	sig := SignAttestation(priv, message)
	is.True(VerifyAttestation(pub, message, sig))

	// Any mutation of the message or the signature must fail verification.
	is.True(!VerifyAttestation(pub, message+" ", sig))
	is.True(!VerifyAttestation(pub, strings.Replace(message, "a", "b", 1), sig))

	tampered := []byte(sig)
	if tampered[0] == 'f' {
		tampered[0] = '0'
	} else {
		tampered[0] = 'f'
	}
	is.True(!VerifyAttestation(pub, message, string(tampered)))
	is.True(!VerifyAttestation(pub, message, "not-hex"))
}

func TestDonationAttestation(t *testing.T) {
	is := is.New(t)
	env := newTestEnv(t)

	_, priv, err := ed25519.GenerateKey(nil)
	is.NoErr(err)
	env.base.attestKey = priv

	rec := paymentIntentRecord("pi_1", "100")
	rec.IsMembership = true
	donation, err := env.base.RecordDonation(ctx, rec)
	is.NoErr(err)

	attestation, err := env.base.DonationAttestation(ctx, donatehub.DonationFilter{ID: &donation.ID})
	is.NoErr(err)

	is.True(strings.Contains(attestation.Message, "Ada Lovelace"))
	is.True(strings.Contains(attestation.Message, "Amount (USD): 90.00"))
	is.True(strings.Contains(attestation.Message, "Membership valid until:"))

	pub := priv.Public().(ed25519.PublicKey)
	is.True(VerifyAttestation(pub, attestation.Message, attestation.Signature))

	_, err = env.base.DonationAttestation(ctx, donatehub.DonationFilter{ID: iPtr(999)})
	is.Equal(donatehub.ErrorCode(err), 404)
}

func TestMembershipAttestationBySubscription(t *testing.T) {
	is := is.New(t)
	env := newTestEnv(t)

	_, priv, err := ed25519.GenerateKey(nil)
	is.NoErr(err)
	env.base.attestKey = priv

	// Two renewal invoices of the same subscription; the receipt resolves to
	// the latest one.
	rec := paymentIntentRecord("", "100")
	rec.Ref = donatehub.ExternalRef{StripeInvoiceID: sPtr("in_1")}
	rec.StripeSubscriptionID = sPtr("sub_1")
	rec.IsMembership = true
	_, err = env.base.RecordDonation(ctx, rec)
	is.NoErr(err)

	rec = paymentIntentRecord("", "100")
	rec.Ref = donatehub.ExternalRef{StripeInvoiceID: sPtr("in_2")}
	rec.StripeSubscriptionID = sPtr("sub_1")
	rec.IsMembership = true
	latest, err := env.base.RecordDonation(ctx, rec)
	is.NoErr(err)

	attestation, err := env.base.DonationAttestation(ctx, donatehub.DonationFilter{StripeSubscriptionID: sPtr("sub_1")})
	is.NoErr(err)
	is.True(strings.Contains(attestation.Message, fmt.Sprintf("Donation ID: %d", latest.ID)))

	_, err = env.base.DonationAttestation(ctx, donatehub.DonationFilter{StripeSubscriptionID: sPtr("sub_unknown")})
	is.Equal(donatehub.ErrorCode(err), 404)
}

func TestAttestationDisabled(t *testing.T) {
	is := is.New(t)
	env := newTestEnv(t)

	is.Equal(env.base.AttestationPublicKey(), "")
	_, err := env.base.DonationAttestation(ctx, donatehub.DonationFilter{ID: iPtr(1)})
	is.Equal(donatehub.ErrorCode(err), 400)
}
