package billing

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrMissingSignature is returned when a webhook carries no signature header.
	ErrMissingSignature = errors.New("missing webhook signature")
	// ErrInvalidSignature is returned when the signature does not match the body.
	// It never carries the received value or the secret.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrPaymentNotFound is returned when a webhook references an unknown checkout.
	ErrPaymentNotFound = errors.New("payment not found for provider reference")
)

// ConfigurationError reports missing or invalid gateway credentials.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("billing configuration error: %s %s", e.Setting, e.Reason)
}

// InvalidArgumentError reports a caller-supplied value that is not recognized.
type InvalidArgumentError struct {
	Field string
	Value string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Field, e.Value)
}

// AlreadySubscribedError means the company already holds a pending or active
// subscription to the same plan in the billing month.
type AlreadySubscribedError struct {
	CompanyID    uint
	PlanID       uint
	BillingMonth time.Time
}

func (e *AlreadySubscribedError) Error() string {
	return fmt.Sprintf("company %d is already subscribed to plan %d for %s",
		e.CompanyID, e.PlanID, e.BillingMonth.Format("2006-01"))
}

// UpgradeRequiredError means the company holds a pending or active
// subscription to a different plan in the billing month.
type UpgradeRequiredError struct {
	CompanyID     uint
	CurrentPlanID uint
	RequestedPlan uint
	BillingMonth  time.Time
}

func (e *UpgradeRequiredError) Error() string {
	return fmt.Sprintf("company %d is subscribed to plan %d for %s, plan %d requires an upgrade",
		e.CompanyID, e.CurrentPlanID, e.BillingMonth.Format("2006-01"), e.RequestedPlan)
}

// UnknownGatewayError reports a provider/method pair without a registry entry.
type UnknownGatewayError struct {
	Provider string
	Method   string
}

func (e *UnknownGatewayError) Error() string {
	return fmt.Sprintf("no gateway registered for provider %q and method %q", e.Provider, e.Method)
}

// GatewayConfigurationError reports a registry entry that cannot serve requests.
type GatewayConfigurationError struct {
	Key GatewayKey
	Err error
}

func (e *GatewayConfigurationError) Error() string {
	return fmt.Sprintf("gateway %s is misconfigured: %v", e.Key, e.Err)
}

func (e *GatewayConfigurationError) Unwrap() error { return e.Err }

// GatewayRequestError reports a provider call that did not complete with a
// success status. StatusCode is 0 when no response was received.
type GatewayRequestError struct {
	Operation  string
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayRequestError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("gateway %s request failed: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("gateway %s request failed: status=%d body=%s", e.Operation, e.StatusCode, e.Body)
}

func (e *GatewayRequestError) Unwrap() error { return e.Err }

// InvalidGatewayResponseError reports a success response missing required fields.
type InvalidGatewayResponseError struct {
	Operation string
	Missing   string
}

func (e *InvalidGatewayResponseError) Error() string {
	return fmt.Sprintf("gateway %s response is missing %s", e.Operation, e.Missing)
}

// MalformedPayloadError reports a webhook body that cannot be interpreted.
type MalformedPayloadError struct {
	Reason string
	Err    error
}

func (e *MalformedPayloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed webhook payload: %s: %v", e.Reason, e.Err)
	}
	return "malformed webhook payload: " + e.Reason
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

// HTTPStatus maps an error from this package to the status code the HTTP
// layer should answer with.
func HTTPStatus(err error) int {
	var (
		invalidArg *InvalidArgumentError
		already    *AlreadySubscribedError
		upgrade    *UpgradeRequiredError
		malformed  *MalformedPayloadError
		gwRequest  *GatewayRequestError
		gwResponse *InvalidGatewayResponseError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &invalidArg), errors.As(err, &malformed), errors.Is(err, ErrMissingSignature):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, ErrPaymentNotFound):
		return http.StatusNotFound
	case errors.As(err, &already), errors.As(err, &upgrade):
		return http.StatusConflict
	case errors.As(err, &gwRequest), errors.As(err, &gwResponse):
		return http.StatusBadGateway
	default:
		// configuration and registry errors are deployment faults
		return http.StatusInternalServerError
	}
}

// ErrorCode is the stable machine-readable code for an error kind.
func ErrorCode(err error) string {
	var (
		invalidArg *InvalidArgumentError
		already    *AlreadySubscribedError
		upgrade    *UpgradeRequiredError
		malformed  *MalformedPayloadError
		unknown    *UnknownGatewayError
		gwConfig   *GatewayConfigurationError
		config     *ConfigurationError
		gwRequest  *GatewayRequestError
		gwResponse *InvalidGatewayResponseError
	)
	switch {
	case errors.Is(err, ErrMissingSignature):
		return "missing_signature"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrPaymentNotFound):
		return "payment_not_found"
	case errors.As(err, &malformed):
		return "invalid_payload"
	case errors.As(err, &invalidArg):
		return "invalid_argument"
	case errors.As(err, &already):
		return "already_subscribed"
	case errors.As(err, &upgrade):
		return "upgrade_required"
	case errors.As(err, &gwRequest):
		return "gateway_request_failed"
	case errors.As(err, &gwResponse):
		return "invalid_gateway_response"
	case errors.As(err, &unknown):
		return "unknown_gateway"
	case errors.As(err, &gwConfig), errors.As(err, &config):
		return "gateway_misconfigured"
	default:
		return "internal_error"
	}
}
