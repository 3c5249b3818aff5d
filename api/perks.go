package api

import (
	"net/http"
	"strconv"

	"github.com/MagicGrants/donatehub"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func (s *API) listPerks(w http.ResponseWriter, r *http.Request) {
	fundSlug := r.FormValue("fund")
	if fundSlug == "" {
		errorData(w, "Missing param fund", 400)
		return
	}
	perks, err := s.base.Perks(r.Context(), fundSlug)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, perks)
}

func (s *API) purchasePerk(w http.ResponseWriter, r *http.Request) {
	req, ok := parseJSONBody[donatehub.PurchaseRequest](r, w)
	if !ok {
		return
	}
	if err := validation.ValidateStruct(&req,
		validation.Field(&req.PerkID, validation.Required),
		validation.Field(&req.FundSlug, validation.Required),
	); err != nil {
		errorData(w, err, 400)
		return
	}
	req.UserID = *userID(r)
	req.UserEmail = r.Header.Get("X-User-Email")

	if err := s.base.PurchasePerk(r.Context(), &req); err != nil {
		statusError(w, err)
		return
	}
	returnData(w, "purchased")
}

func (s *API) pointsBalance(w http.ResponseWriter, r *http.Request) {
	fundSlug := r.FormValue("fund")
	if fundSlug == "" {
		errorData(w, "Missing param fund", 400)
		return
	}
	scope := donatehub.PointsScope{FundSlug: fundSlug}
	if project := r.FormValue("project"); project != "" {
		scope.ProjectSlug = &project
	}

	balance, err := s.base.PointsBalance(r.Context(), *userID(r), scope)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, balance)
}

func (s *API) pointsHistory(w http.ResponseWriter, r *http.Request) {
	filter := donatehub.PointHistoryFilter{Limit: 50}
	if limit, err := strconv.Atoi(r.FormValue("limit")); err == nil && limit > 0 && limit <= 200 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(r.FormValue("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}
	if fund := r.FormValue("fund"); fund != "" {
		scope := donatehub.PointsScope{FundSlug: fund}
		if project := r.FormValue("project"); project != "" {
			scope.ProjectSlug = &project
		}
		filter.Scope = &scope
	}

	entries, err := s.base.PointsHistory(r.Context(), *userID(r), filter)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, entries)
}
