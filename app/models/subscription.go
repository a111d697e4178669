package models

import "time"

const (
	SubscriptionStatusPending  = "pending"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusExpired  = "expired"
)

// OccupyingSubscriptionStatuses are the statuses that claim a company's
// billing month.
var OccupyingSubscriptionStatuses = []string{SubscriptionStatusPending, SubscriptionStatusActive}

// Subscription covers one company for one billing month.
//
// ActiveSlot is generated by the database: 1 while the row is pending or
// active, NULL otherwise. The unique index over (company_id, billing_month,
// active_slot) therefore only collides for rows occupying the month.
type Subscription struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CompanyID    uint      `gorm:"not null;index:ux_subscriptions_company_month_slot,unique,priority:1" json:"company_id"`
	PlanID       uint      `gorm:"not null;index" json:"plan_id"`
	Status       string    `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	BillingMonth time.Time `gorm:"type:date;not null;index:ux_subscriptions_company_month_slot,unique,priority:2" json:"billing_month"`
	ActiveSlot   *int8     `gorm:"->;type:tinyint GENERATED ALWAYS AS (IF(status IN ('pending','active'), 1, NULL)) STORED;index:ux_subscriptions_company_month_slot,unique,priority:3" json:"-"`
	StartsAt     time.Time `gorm:"type:timestamp;not null" json:"starts_at"`
	EndsAt       time.Time `gorm:"type:timestamp;not null" json:"ends_at"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// OccupiesMonth reports whether the subscription blocks another one in the
// same billing month.
func (s *Subscription) OccupiesMonth() bool {
	return s.Status == SubscriptionStatusPending || s.Status == SubscriptionStatusActive
}
