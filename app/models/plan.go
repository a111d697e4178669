package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	BillingCycleMonthly = "monthly"
	BillingCycleYearly  = "yearly"
)

// Plan is catalog reference data. Administration of plans happens elsewhere;
// this service only reads them.
type Plan struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Name         string          `gorm:"type:varchar(100);not null" json:"name"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	BillingCycle string          `gorm:"type:varchar(16);not null;default:'monthly'" json:"billing_cycle"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// PeriodEnd returns the end of a subscription period that starts at start.
func (p *Plan) PeriodEnd(start time.Time) time.Time {
	if p.BillingCycle == BillingCycleYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}
