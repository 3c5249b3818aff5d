package baseapi

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/MagicGrants/donatehub"
)

// Attestation is a signed text receipt proving a donation or membership
// occurred, verifiable by anyone holding the public key. Nothing is stored:
// both fields are recomputed on demand from the donation row.
type Attestation struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// The message layout is a frozen contract: attestations live outside this
// system, so changing field order, labels or separators invalidates every
// previously issued receipt. Bump the version line instead.
const attestationHeader = "MAGIC Grants Donation Attestation v1"

func buildAttestationMessage(d *donatehub.Donation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", attestationHeader)
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", len(attestationHeader)))
	fmt.Fprintf(&b, "Donor: %s <%s>\n", d.DonorName, d.DonorEmail)
	fmt.Fprintf(&b, "Donation ID: %d\n", d.ID)
	fmt.Fprintf(&b, "Fund: %s\n", d.FundSlug)
	fmt.Fprintf(&b, "Project: %s\n", d.ProjectName)
	fmt.Fprintf(&b, "Amount (USD): %s\n", d.NetFiatAmount.StringFixed(2))
	if d.CryptoCode != nil && d.CryptoAmount != nil {
		fmt.Fprintf(&b, "Paid: %s %s\n", d.CryptoAmount.String(), *d.CryptoCode)
	}
	fmt.Fprintf(&b, "Method: %s\n", d.Method())
	if d.IsMembership() {
		fmt.Fprintf(&b, "Membership valid until: %s\n", d.MembershipExpiresAt.UTC().Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "Date: %s", d.CreatedAt.UTC().Format("2006-01-02"))
	return b.String()
}

// DonationAttestation signs a receipt for a persisted donation.
func (s *BaseAPI) DonationAttestation(ctx context.Context, filter donatehub.DonationFilter) (*Attestation, error) {
	if s.attestKey == nil {
		return nil, donatehub.Statusf(400, "Attestations are not enabled on this instance")
	}
	donation, err := s.db.Donation(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("couldn't get donation: %w", err)
	}
	if donation == nil {
		return nil, donatehub.ErrNotFound
	}

	message := buildAttestationMessage(donation)
	return &Attestation{
		Message:   message,
		Signature: SignAttestation(s.attestKey, message),
	}, nil
}

// SignAttestation signs the hex encoding of the UTF-8 message bytes. The
// extra hex step is part of the external contract, verifiers must apply it
// too.
func SignAttestation(key ed25519.PrivateKey, message string) string {
	hexMsg := hex.EncodeToString([]byte(message))
	return hex.EncodeToString(ed25519.Sign(key, []byte(hexMsg)))
}

// VerifyAttestation checks a signature produced by SignAttestation. It is a
// pure function so holders of the public key can reimplement it anywhere.
func VerifyAttestation(pub ed25519.PublicKey, message, signature string) bool {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	hexMsg := hex.EncodeToString([]byte(message))
	return ed25519.Verify(pub, []byte(hexMsg), sig)
}

// AttestationPublicKey is the hex-encoded verification key, or empty if
// attestations are disabled.
func (s *BaseAPI) AttestationPublicKey() string {
	if s.attestKey == nil {
		return ""
	}
	return hex.EncodeToString(s.attestKey.Public().(ed25519.PublicKey))
}
