package repository

import (
	"time"

	"github.com/ManuelReschke/BillFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// Create inserts a new subscription
func (r *subscriptionRepository) Create(sub *models.Subscription) error {
	return r.db.Omit(clause.Associations).Create(sub).Error
}

// FindOccupying matches billing_month on the UTC calendar date of billingMonth
func (r *subscriptionRepository) FindOccupying(companyID uint, billingMonth time.Time, forUpdate bool) (*models.Subscription, error) {
	q := r.db.Model(&models.Subscription{})
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var subs []models.Subscription
	err := q.Where("company_id = ? AND billing_month = ? AND status IN ?",
		companyID, billingMonth.UTC().Format("2006-01-02"), models.OccupyingSubscriptionStatuses).
		Order("id ASC").
		Limit(1).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, nil
	}
	return &subs[0], nil
}

// UpdateStatus sets the status of a subscription
func (r *subscriptionRepository) UpdateStatus(id uint, status string) error {
	return r.db.Model(&models.Subscription{}).Where("id = ?", id).Update("status", status).Error
}
