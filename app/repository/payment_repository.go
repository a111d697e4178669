package repository

import (
	"time"

	"github.com/ManuelReschke/BillFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// paymentRepository implements the PaymentRepository interface
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// Create inserts a new payment
func (r *paymentRepository) Create(payment *models.Payment) error {
	return r.db.Omit(clause.Associations).Create(payment).Error
}

// GetByProviderReference finds the payment a provider checkout session
// belongs to. Returns gorm.ErrRecordNotFound when nothing matches.
func (r *paymentRepository) GetByProviderReference(provider, referenceID string, forUpdate bool) (*models.Payment, error) {
	q := r.db.Model(&models.Payment{})
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var payments []models.Payment
	err := q.Where("provider = ? AND provider_reference_id = ?", provider, referenceID).
		Limit(1).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &payments[0], nil
}

// SaveCheckout stores the gateway answer on a pending payment
func (r *paymentRepository) SaveCheckout(paymentID uint, referenceID, checkoutURL string, metadata models.JSON) error {
	return r.db.Model(&models.Payment{}).Where("id = ?", paymentID).Updates(map[string]interface{}{
		"provider_reference_id": referenceID,
		"checkout_url":          checkoutURL,
		"metadata":              metadata,
	}).Error
}

// UpdateStatus sets the status of a payment and, for paid payments, the
// settlement time.
func (r *paymentRepository) UpdateStatus(paymentID uint, status string, paidAt *time.Time) error {
	updates := map[string]interface{}{"status": status}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}
	return r.db.Model(&models.Payment{}).Where("id = ?", paymentID).Updates(updates).Error
}
