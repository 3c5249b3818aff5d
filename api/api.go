package api

import (
	"net/http"

	"github.com/MagicGrants/donatehub/baseapi"
	"github.com/go-chi/chi/v5"
)

type API struct {
	base *baseapi.BaseAPI
}

func New(base *baseapi.BaseAPI) *API {
	return &API{base}
}

// Handler is the route zone of the API. It is meant to be mounted under
// /api in the platform router.
func (s *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.userContext)

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		returnData(w, "pong")
	})

	// Webhook endpoints carry their own authentication (signatures or shared
	// secrets), never the user session.
	r.Post("/stripe/{fundSlug}-webhook", s.stripeWebhook)
	r.Post("/btcpay/{fundSlug}-webhook", s.btcpayWebhook)
	// Kept for stores registered before per-fund endpoints existed.
	r.Post("/btcpay/webhook", s.btcpayWebhook)
	r.Post("/printful/webhook", s.printfulWebhook)

	r.Route("/donation", func(r chi.Router) {
		r.Post("/stripe", s.createStripeCheckout)
		r.Post("/crypto", s.createCryptoInvoice)

		r.Get("/leaderboard", s.leaderboard)
		r.With(s.mustBeAuthed).Get("/mine", s.myDonations)
		r.With(s.mustBeAuthed).Get("/membership", s.membershipStatus)
	})

	r.Route("/perks", func(r chi.Router) {
		r.Get("/", s.listPerks)
		r.With(s.mustBeAuthed).Post("/purchase", s.purchasePerk)
	})

	r.Route("/points", func(r chi.Router) {
		r.Use(s.mustBeAuthed)
		r.Get("/balance", s.pointsBalance)
		r.Get("/history", s.pointsHistory)
	})

	r.Get("/attestation", s.getAttestation)
	r.Get("/public-key", s.publicKey)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errorData(w, "Endpoint not found", 404)
	})

	return r
}
