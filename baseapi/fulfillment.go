package baseapi

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MagicGrants/donatehub"
	"github.com/MagicGrants/donatehub/integrations/prometheus"
	"github.com/google/uuid"
)

type fulfillmentJob struct {
	perk *donatehub.Perk
	req  *donatehub.PurchaseRequest
}

func (s *BaseAPI) enqueueFulfillment(job *fulfillmentJob) error {
	select {
	case s.fulfillCh <- job:
		return nil
	default:
		return donatehub.Statusf(503, "Fulfillment queue is full, try again later")
	}
}

// fulfillmentWorker drains the queue one job at a time. The single worker is
// what serializes point deductions for physical perks: while a job runs, no
// other physical purchase can observe a stale balance.
func (s *BaseAPI) fulfillmentWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.fulfillCh:
			if err := s.fulfill(ctx, job); err != nil {
				slog.WarnContext(ctx, "Perk fulfillment failed",
					slog.Any("err", err), slog.String("perk_id", job.perk.ID), slog.Int("user_id", job.req.UserID))
				prometheus.FulfillmentJobs.WithLabelValues("failed").Inc()
			} else {
				prometheus.FulfillmentJobs.WithLabelValues("ok").Inc()
			}
		}
	}
}

// fulfill runs one physical perk purchase: re-verify the balance against a
// fresh quote, place the provider order, create the catalog order, then
// deduct points. The order exists before the deduction, so a failed deduction
// compensates by removing the order (provider first, then catalog).
func (s *BaseAPI) fulfill(ctx context.Context, job *fulfillmentJob) error {
	perk, req := job.perk, job.req
	scope := donatehub.PointsScope{FundSlug: req.FundSlug, ProjectSlug: req.ProjectSlug}

	// Time has passed since the synchronous pre-check.
	balance, err := s.db.PointsBalance(ctx, req.UserID, scope)
	if err != nil {
		return fmt.Errorf("couldn't get points balance: %w", err)
	}
	est, err := s.fulfiller.EstimateCost(ctx, *perk.PrintfulVariantID, req.Shipping)
	if err != nil {
		return fmt.Errorf("couldn't estimate fulfillment cost: %w", err)
	}
	price := est.Points()
	if balance < price {
		return donatehub.ErrInsufficientBalance
	}

	providerOrderID, err := s.fulfiller.CreateOrder(ctx, &donatehub.FulfillmentOrder{
		ExternalID: uuid.NewString(),
		VariantID:  *perk.PrintfulVariantID,
		Recipient:  *req.Shipping,
	})
	if err != nil {
		return fmt.Errorf("couldn't place fulfillment order: %w", err)
	}

	order := &donatehub.Order{
		PerkID:   perk.ID,
		PerkName: perk.Name,

		UserID:      req.UserID,
		FundSlug:    req.FundSlug,
		ProjectSlug: req.ProjectSlug,

		Shipping:        req.Shipping,
		PrintfulOrderID: &providerOrderID,
	}
	if err := s.catalog.CreateOrder(ctx, order); err != nil {
		if cerr := s.fulfiller.CancelOrder(ctx, providerOrderID); cerr != nil {
			slog.ErrorContext(ctx, "Couldn't cancel fulfillment order, provider needs manual reconciliation",
				slog.Any("err", cerr), slog.String("printful_order_id", providerOrderID))
		}
		return fmt.Errorf("couldn't create catalog order: %w", err)
	}

	deduction := &donatehub.PointHistory{
		UserID:      req.UserID,
		FundSlug:    scope.FundSlug,
		ProjectSlug: scope.ProjectSlug,

		PointsDeducted: price,
		PointsBalance:  balance - price,

		PurchasePerkID:   &perk.ID,
		PurchasePerkName: &perk.Name,
		OrderID:          &order.ID,
	}
	if err := s.db.CreatePointHistory(ctx, deduction); err != nil {
		if derr := s.catalog.DeleteOrder(ctx, order.ID); derr != nil {
			slog.ErrorContext(ctx, "Couldn't roll back catalog order, catalog needs manual reconciliation",
				slog.Any("err", derr), slog.String("order_id", order.ID))
		}
		if cerr := s.fulfiller.CancelOrder(ctx, providerOrderID); cerr != nil {
			slog.ErrorContext(ctx, "Couldn't cancel fulfillment order, provider needs manual reconciliation",
				slog.Any("err", cerr), slog.String("printful_order_id", providerOrderID))
		}
		return fmt.Errorf("couldn't deduct points: %w", err)
	}

	s.sendEmail(ctx, purchaseConfirmation(perk, req.UserEmail))
	return nil
}

// TrackShipment handles the fulfillment provider's package_shipped event:
// attach tracking data to the catalog order and notify the buyer.
func (s *BaseAPI) TrackShipment(ctx context.Context, providerOrderID, trackingNumber, trackingURL string) error {
	order, err := s.catalog.OrderByPrintfulID(ctx, providerOrderID)
	if err != nil {
		return err
	}
	if order == nil {
		return donatehub.Statusf(404, "No order for fulfillment id %s", providerOrderID)
	}
	if err := s.catalog.UpdateOrderTracking(ctx, order.ID, trackingNumber, trackingURL); err != nil {
		return err
	}

	if order.Shipping != nil && order.Shipping.Email != "" {
		s.sendEmail(ctx, &donatehub.MailerMessage{
			To:           order.Shipping.Email,
			Subject:      fmt.Sprintf("Your %s has shipped", order.PerkName),
			PlainContent: fmt.Sprintf("Track your package: %s", trackingURL),
		})
	}
	return nil
}
