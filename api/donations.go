package api

import (
	"net/http"
	"strconv"

	"github.com/MagicGrants/donatehub"
	"github.com/MagicGrants/donatehub/baseapi"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

func validateCheckout(req *baseapi.CheckoutRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.FundSlug, validation.Required),
		validation.Field(&req.ProjectSlug, validation.Required),
		validation.Field(&req.ProjectName, validation.Required),
		validation.Field(&req.DonorEmail, is.Email),
	)
}

func (s *API) createStripeCheckout(w http.ResponseWriter, r *http.Request) {
	req, ok := parseJSONBody[baseapi.CheckoutRequest](r, w)
	if !ok {
		return
	}
	if err := validateCheckout(&req); err != nil {
		errorData(w, err, 400)
		return
	}
	req.UserID = userID(r)
	if req.IsMembership && req.UserID == nil {
		errorData(w, "Memberships require an account", 401)
		return
	}

	url, err := s.base.CreateStripeCheckout(r.Context(), &req)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, url)
}

func (s *API) createCryptoInvoice(w http.ResponseWriter, r *http.Request) {
	req, ok := parseJSONBody[baseapi.CheckoutRequest](r, w)
	if !ok {
		return
	}
	if err := validateCheckout(&req); err != nil {
		errorData(w, err, 400)
		return
	}
	req.UserID = userID(r)
	if req.IsMembership && req.UserID == nil {
		errorData(w, "Memberships require an account", 401)
		return
	}

	url, err := s.base.CreateCryptoInvoice(r.Context(), &req)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, url)
}

func (s *API) leaderboard(w http.ResponseWriter, r *http.Request) {
	fundSlug := r.FormValue("fund")
	if fundSlug == "" {
		errorData(w, "Missing param fund", 400)
		return
	}
	limit, err := strconv.Atoi(r.FormValue("limit"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}

	entries, err := s.base.Leaderboard(r.Context(), fundSlug, limit)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, entries)
}

func (s *API) myDonations(w http.ResponseWriter, r *http.Request) {
	filter := donatehub.DonationFilter{UserID: userID(r), Limit: 50}
	if fund := r.FormValue("fund"); fund != "" {
		filter.FundSlug = &fund
	}
	if project := r.FormValue("project"); project != "" {
		filter.ProjectSlug = &project
	}

	donations, err := s.base.Donations(r.Context(), filter)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, donations)
}

func (s *API) membershipStatus(w http.ResponseWriter, r *http.Request) {
	donation, err := s.base.MembershipStatus(r.Context(), *userID(r))
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, donation)
}
