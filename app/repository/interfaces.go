package repository

import (
	"time"

	"github.com/ManuelReschke/BillFox/app/models"
	"gorm.io/gorm"
)

// PlanRepository reads plan catalog entries
type PlanRepository interface {
	GetByID(id uint) (*models.Plan, error)
}

// SubscriptionRepository defines subscription persistence
type SubscriptionRepository interface {
	Create(sub *models.Subscription) error
	// FindOccupying returns the pending or active subscription of a company
	// for the given billing month, or nil when the month is free.
	FindOccupying(companyID uint, billingMonth time.Time, forUpdate bool) (*models.Subscription, error)
	UpdateStatus(id uint, status string) error
}

// PaymentRepository defines payment persistence
type PaymentRepository interface {
	Create(payment *models.Payment) error
	GetByProviderReference(provider, referenceID string, forUpdate bool) (*models.Payment, error)
	SaveCheckout(paymentID uint, referenceID, checkoutURL string, metadata models.JSON) error
	UpdateStatus(paymentID uint, status string, paidAt *time.Time) error
}

// WebhookEventRepository stores verified provider webhook deliveries
type WebhookEventRepository interface {
	CreateIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkProcessed(id uint, resultStatus, processingError string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Plan         PlanRepository
	Subscription SubscriptionRepository
	Payment      PaymentRepository
	WebhookEvent WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories. Passing a
// transaction handle scopes every repository to that transaction.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Plan:         NewPlanRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Payment:      NewPaymentRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
	}
}
