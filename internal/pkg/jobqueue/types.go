package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeSubscriptionActivated JobType = "subscription_activated"
	JobTypePaymentFailed         JobType = "payment_failed"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// SubscriptionActivatedPayload is published once a payment settles and its
// subscription becomes active
type SubscriptionActivatedPayload struct {
	SubscriptionID uint      `json:"subscription_id"`
	PaymentID      uint      `json:"payment_id"`
	CompanyID      uint      `json:"company_id"`
	Provider       string    `json:"provider"`
	Amount         string    `json:"amount"`
	Currency       string    `json:"currency"`
	PaidAt         time.Time `json:"paid_at"`
}

// ToMap converts the payload to a map for storage
func (p SubscriptionActivatedPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"subscription_id": p.SubscriptionID,
		"payment_id":      p.PaymentID,
		"company_id":      p.CompanyID,
		"provider":        p.Provider,
		"amount":          p.Amount,
		"currency":        p.Currency,
		"paid_at":         p.PaidAt.UTC().Format(time.RFC3339),
	}
}

// SubscriptionActivatedPayloadFromMap creates a payload from a map
func SubscriptionActivatedPayloadFromMap(data map[string]interface{}) (*SubscriptionActivatedPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload SubscriptionActivatedPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// PaymentFailedPayload is published when the provider reports a failed payment
type PaymentFailedPayload struct {
	SubscriptionID uint   `json:"subscription_id"`
	PaymentID      uint   `json:"payment_id"`
	CompanyID      uint   `json:"company_id"`
	Provider       string `json:"provider"`
}

// ToMap converts the payload to a map for storage
func (p PaymentFailedPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"subscription_id": p.SubscriptionID,
		"payment_id":      p.PaymentID,
		"company_id":      p.CompanyID,
		"provider":        p.Provider,
	}
}

// PaymentFailedPayloadFromMap creates a payload from a map
func PaymentFailedPayloadFromMap(data map[string]interface{}) (*PaymentFailedPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload PaymentFailedPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}
