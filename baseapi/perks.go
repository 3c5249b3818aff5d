package baseapi

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MagicGrants/donatehub"
)

func (s *BaseAPI) Perk(ctx context.Context, id string) (*donatehub.Perk, error) {
	perk, err := s.perkCache.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("couldn't get perk: %w", err)
	}
	return perk, nil
}

func (s *BaseAPI) Perks(ctx context.Context, fundSlug string) ([]*donatehub.Perk, error) {
	perks, err := s.catalog.Perks(ctx)
	if err != nil {
		return nil, fmt.Errorf("couldn't list perks: %w", err)
	}
	var rez []*donatehub.Perk
	for _, perk := range perks {
		if perk.AvailableInFund(fundSlug) {
			rez = append(rez, perk)
		}
	}
	return rez, nil
}

// PurchasePerk validates a purchase request and either completes it inline
// (instant perks) or enqueues it on the fulfillment queue (physical perks).
//
// Validation never mutates anything: every rejection here leaves the ledger
// and the catalog untouched.
func (s *BaseAPI) PurchasePerk(ctx context.Context, req *donatehub.PurchaseRequest) error {
	perk, err := s.Perk(ctx, req.PerkID)
	if err != nil {
		return err
	}
	if perk == nil {
		return donatehub.ErrPerkNotFound
	}
	if !perk.AvailableInFund(req.FundSlug) {
		return donatehub.ErrPerkNotAvailableInFund
	}
	if perk.NeedsShippingAddress && !req.Shipping.Complete() {
		return donatehub.ErrShippingDataMissing
	}

	scope := donatehub.PointsScope{FundSlug: req.FundSlug, ProjectSlug: req.ProjectSlug}
	balance, err := s.db.PointsBalance(ctx, req.UserID, scope)
	if err != nil {
		return fmt.Errorf("couldn't get points balance: %w", err)
	}

	price := perk.Price
	if perk.Physical() {
		// Physical perks cost whatever the fulfillment quote says, shipping
		// and tax included.
		est, err := s.fulfiller.EstimateCost(ctx, *perk.PrintfulVariantID, req.Shipping)
		if err != nil {
			return fmt.Errorf("couldn't estimate fulfillment cost: %w", err)
		}
		price = est.Points()
	}
	if balance < price {
		return donatehub.ErrInsufficientBalance
	}

	if perk.Physical() {
		return s.enqueueFulfillment(&fulfillmentJob{perk: perk, req: req})
	}
	return s.purchaseInstant(ctx, perk, req, scope, balance)
}

// purchaseInstant is the inline saga for non-physical perks: deduct first,
// then place the catalog order, and compensate the deduction if the order
// fails. Two concurrent purchases by the same user can both pass the balance
// check above; the ledger keeps both rows either way.
func (s *BaseAPI) purchaseInstant(ctx context.Context, perk *donatehub.Perk, req *donatehub.PurchaseRequest, scope donatehub.PointsScope, balance int64) error {
	deduction := &donatehub.PointHistory{
		UserID:      req.UserID,
		FundSlug:    scope.FundSlug,
		ProjectSlug: scope.ProjectSlug,

		PointsDeducted: perk.Price,
		PointsBalance:  balance - perk.Price,

		PurchasePerkID:   &perk.ID,
		PurchasePerkName: &perk.Name,
	}
	if err := s.db.CreatePointHistory(ctx, deduction); err != nil {
		return fmt.Errorf("couldn't deduct points: %w", err)
	}

	order := &donatehub.Order{
		PerkID:   perk.ID,
		PerkName: perk.Name,

		UserID:      req.UserID,
		FundSlug:    req.FundSlug,
		ProjectSlug: req.ProjectSlug,
	}
	if err := s.catalog.CreateOrder(ctx, order); err != nil {
		if derr := s.db.DeletePointHistory(ctx, deduction.ID); derr != nil {
			slog.ErrorContext(ctx, "Couldn't roll back point deduction, ledger needs manual reconciliation",
				slog.Any("err", derr), slog.Int("point_history_id", deduction.ID))
		}
		return fmt.Errorf("couldn't place perk order: %w", err)
	}

	s.sendEmail(ctx, purchaseConfirmation(perk, req.UserEmail))
	return nil
}

func purchaseConfirmation(perk *donatehub.Perk, email string) *donatehub.MailerMessage {
	return &donatehub.MailerMessage{
		To:           email,
		Subject:      fmt.Sprintf("Your %s is on its way", perk.Name),
		PlainContent: fmt.Sprintf("Your purchase of %s has been confirmed.", perk.Name),
	}
}
