package models

import "time"

// Billing provider constants used across billing-related models.
const (
	BillingProviderPayMongo = "paymongo"
)

// BillingWebhookEvent stores verified provider webhook payloads. The unique
// index on (provider, provider_event_id) makes redelivered events detectable.
type BillingWebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_billing_webhook_events_provider_event,unique,priority:1;index" json:"provider"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;default:'';index:ux_billing_webhook_events_provider_event,unique,priority:2" json:"provider_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	ReferenceID     string     `gorm:"type:varchar(191);not null;default:'';index" json:"reference_id"`
	ResultStatus    string     `gorm:"type:varchar(16);not null;default:''" json:"result_status"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
