package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
	PaymentStatusExpired = "expired"
)

// Payment is one checkout attempt for a subscription. Rows are append-only;
// only the gateway reference fields and the status change after creation.
type Payment struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	SubscriptionID      uint            `gorm:"not null;index" json:"subscription_id"`
	CompanyID           uint            `gorm:"not null;index" json:"company_id"`
	Provider            string          `gorm:"type:varchar(20);not null;index:ux_payments_provider_reference,unique,priority:1" json:"provider"`
	Method              string          `gorm:"type:varchar(20);not null" json:"method"`
	Amount              decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency            string          `gorm:"type:char(3);not null" json:"currency"`
	Status              string          `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	Description         string          `gorm:"type:varchar(255);not null;default:''" json:"description"`
	ReferenceNumber     string          `gorm:"type:char(36);not null;uniqueIndex" json:"reference_number"`
	ProviderReferenceID *string         `gorm:"type:varchar(191);index:ux_payments_provider_reference,unique,priority:2" json:"provider_reference_id,omitempty"`
	CheckoutURL         string          `gorm:"type:varchar(512);not null;default:''" json:"checkout_url"`
	Metadata            JSON            `gorm:"type:json" json:"metadata"`
	PaidAt              *time.Time      `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the payment reached a final status.
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentStatusPaid || p.Status == PaymentStatusFailed || p.Status == PaymentStatusExpired
}
