package billing

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/BillFox/app/models"
	"github.com/ManuelReschke/BillFox/app/repository"
	"github.com/ManuelReschke/BillFox/internal/pkg/jobqueue"
)

// HandleWebhook verifies a provider callback, records it and applies the
// payment outcome. A redelivered event is a duplicate and changes nothing
// when its earlier delivery was processed with the same or a final status.
// Events for unknown payments are acknowledged as ignored.
func (s *Service) HandleWebhook(ctx context.Context, provider string, req WebhookRequest) (*WebhookOutcome, error) {
	p, err := ParseProvider(provider)
	if err != nil {
		return nil, err
	}
	gateway, err := s.registry.Resolve(p, MethodWebhook)
	if err != nil {
		return nil, err
	}

	result, err := gateway.VerifyWebhook(ctx, req)
	if err != nil {
		s.metrics.observeWebhook(p, ErrorCode(err))
		return nil, err
	}

	events := repository.NewWebhookEventRepository(s.db.WithContext(ctx))
	created, stored, err := events.CreateIfNotExists(&models.BillingWebhookEvent{
		Provider:        string(p),
		ProviderEventID: result.EventID,
		EventType:       result.EventType,
		ReferenceID:     result.ReferenceID,
		ResultStatus:    string(result.Status),
		PayloadJSON:     string(result.Raw),
	})
	if err != nil {
		return nil, err
	}

	outcome := &WebhookOutcome{Result: result}
	if !created && isProcessedDelivery(stored, result.Status) {
		outcome.Duplicate = true
		s.metrics.observeWebhook(p, "duplicate")
		return outcome, nil
	}

	applied, applyErr := s.ApplyWebhookResult(ctx, p, result)
	processingError := ""
	if applyErr != nil {
		processingError = applyErr.Error()
	}
	if err := events.MarkProcessed(stored.ID, string(result.Status), processingError); err != nil {
		log.Errorf("[Billing] Failed to mark webhook event %d processed: %v", stored.ID, err)
	}
	if errors.Is(applyErr, ErrPaymentNotFound) {
		// stays eligible for reprocessing on redelivery
		log.Warnf("[Billing] Webhook %s references unknown payment %s", result.EventID, result.ReferenceID)
		outcome.Ignored = true
		s.metrics.observeWebhook(p, "ignored")
		return outcome, nil
	}
	if applyErr != nil {
		s.metrics.observeWebhook(p, ErrorCode(applyErr))
		return nil, applyErr
	}

	outcome.Applied = applied
	if applied {
		s.metrics.observeWebhook(p, "applied")
	} else {
		s.metrics.observeWebhook(p, "noop")
	}
	return outcome, nil
}

// isProcessedDelivery reports whether a stored event already covers status.
// A delivery recorded as pending is applied again once it verifies as paid
// or failed.
func isProcessedDelivery(stored *models.BillingWebhookEvent, status WebhookStatus) bool {
	if stored.ProcessedAt == nil || stored.ProcessingError != "" {
		return false
	}
	recorded := WebhookStatus(stored.ResultStatus)
	return recorded == status || recorded.IsFinal()
}

// ApplyWebhookResult moves the referenced payment and its subscription to
// the reported outcome. Pending results and redelivered terminal results
// are no-ops. A payment that already settled is never moved to a different
// final status.
func (s *Service) ApplyWebhookResult(ctx context.Context, provider Provider, result *WebhookResult) (bool, error) {
	if result == nil {
		return false, &InvalidArgumentError{Field: "webhook result", Value: "<nil>"}
	}
	if result.Status == WebhookStatusPending {
		return false, nil
	}
	if result.ReferenceID == "" {
		return false, &MalformedPayloadError{Reason: "event carries no reference"}
	}

	target := paymentStatusFor(result.Status)
	var settled *models.Payment

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)

		payment, err := repos.Payment.GetByProviderReference(string(provider), result.ReferenceID, true)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPaymentNotFound
		}
		if err != nil {
			return err
		}

		if payment.Status == target {
			return nil
		}
		if payment.IsTerminal() {
			log.Warnf("[Billing] Ignoring %s for payment %d already %s", target, payment.ID, payment.Status)
			return nil
		}

		paidAt := result.PaidAt
		subStatus := models.SubscriptionStatusCanceled
		if target == models.PaymentStatusPaid {
			subStatus = models.SubscriptionStatusActive
			if paidAt == nil {
				t := s.now()
				paidAt = &t
			}
		} else {
			paidAt = nil
		}

		if err := repos.Payment.UpdateStatus(payment.ID, target, paidAt); err != nil {
			return err
		}
		if err := repos.Subscription.UpdateStatus(payment.SubscriptionID, subStatus); err != nil {
			return err
		}

		payment.Status = target
		payment.PaidAt = paidAt
		settled = payment
		return nil
	})
	if err != nil {
		return false, err
	}
	if settled == nil {
		return false, nil
	}

	log.Infof("[Billing] Payment %d (%s) is now %s", settled.ID, result.ReferenceID, settled.Status)
	s.dispatch(ctx, settled)
	return true, nil
}

// dispatch publishes the side-effect job of a settled payment. Failures are
// logged only; the state change is already committed.
func (s *Service) dispatch(ctx context.Context, payment *models.Payment) {
	if s.jobs == nil {
		return
	}

	var (
		jobType jobqueue.JobType
		payload map[string]interface{}
	)
	switch payment.Status {
	case models.PaymentStatusPaid:
		jobType = jobqueue.JobTypeSubscriptionActivated
		payload = jobqueue.SubscriptionActivatedPayload{
			SubscriptionID: payment.SubscriptionID,
			PaymentID:      payment.ID,
			CompanyID:      payment.CompanyID,
			Provider:       payment.Provider,
			Amount:         payment.Amount.StringFixed(2),
			Currency:       payment.Currency,
			PaidAt:         *payment.PaidAt,
		}.ToMap()
	case models.PaymentStatusFailed:
		jobType = jobqueue.JobTypePaymentFailed
		payload = jobqueue.PaymentFailedPayload{
			SubscriptionID: payment.SubscriptionID,
			PaymentID:      payment.ID,
			CompanyID:      payment.CompanyID,
			Provider:       payment.Provider,
		}.ToMap()
	default:
		return
	}

	if _, err := s.jobs.Enqueue(ctx, jobType, payload); err != nil {
		log.Errorf("[Billing] Failed to enqueue %s for payment %d: %v", jobType, payment.ID, err)
	}
}
