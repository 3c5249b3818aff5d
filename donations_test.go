package donatehub

import "testing"

func sp(s string) *string { return &s }

func TestExternalRefValid(t *testing.T) {
	var candidates = []struct {
		ref   ExternalRef
		valid bool
	}{
		{ExternalRef{}, false},
		{ExternalRef{StripePaymentIntentID: sp("pi_1")}, true},
		{ExternalRef{StripeInvoiceID: sp("in_1")}, true},
		{ExternalRef{BTCPayInvoiceID: sp("inv_1")}, true},
		{ExternalRef{StripePaymentIntentID: sp("pi_1"), BTCPayInvoiceID: sp("inv_1")}, false},
		{ExternalRef{StripePaymentIntentID: sp("pi_1"), StripeInvoiceID: sp("in_1"), BTCPayInvoiceID: sp("inv_1")}, false},
	}

	for _, c := range candidates {
		if c.ref.Valid() != c.valid {
			t.Errorf("expected Valid() == %v for %+v", c.valid, c.ref)
		}
	}
}

func TestPerkAvailableInFund(t *testing.T) {
	open := &Perk{ID: "p1"}
	if !open.AvailableInFund("monero") {
		t.Error("perk without whitelist should be available everywhere")
	}

	restricted := &Perk{ID: "p2", FundSlugWhitelist: "firo, zcash"}
	if !restricted.AvailableInFund("zcash") {
		t.Error("whitelisted fund should be available")
	}
	if restricted.AvailableInFund("monero") {
		t.Error("non-whitelisted fund should not be available")
	}
}

func TestShippingAddressComplete(t *testing.T) {
	var addr *ShippingAddress
	if addr.Complete() {
		t.Error("nil address is not complete")
	}

	addr = &ShippingAddress{
		Name:        "Ada Lovelace",
		Address1:    "12 Example St",
		City:        "London",
		CountryCode: "GB",
	}
	if addr.Complete() {
		t.Error("address without zip is not complete")
	}
	addr.Zip = "E1 6AN"
	if !addr.Complete() {
		t.Error("address with all required fields should be complete")
	}
}
