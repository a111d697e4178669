package billing

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/BillFox/internal/pkg/env"
)

const (
	defaultPayMongoAPIBaseURL = "https://api.paymongo.com/v1"
	defaultGatewayTimeout     = 10 * time.Second
	defaultBillingCurrency    = "PHP"
	defaultBillingTimezone    = "Asia/Manila"
)

var validate = validator.New()

// PayMongoConfig holds the credentials of the PayMongo account. It is
// read-only after construction and shared by all PayMongo gateways.
type PayMongoConfig struct {
	APIBaseURL    string        `validate:"required,url"`
	SecretKey     string        `validate:"required"`
	WebhookSecret string        `validate:"omitempty"`
	Timeout       time.Duration `validate:"gte=0"`
	// HTTPClient overrides the default client, mostly for tests.
	HTTPClient *http.Client `validate:"-"`
}

// GatewayConfig is handed to every registry factory.
type GatewayConfig struct {
	PayMongo PayMongoConfig
	Metrics  *Metrics
}

// Settings are the deployment-wide billing parameters.
type Settings struct {
	Currency string         `validate:"required,len=3,uppercase"`
	Location *time.Location `validate:"required"`
}

// NewGatewayConfigFromEnv reads provider credentials from the environment.
func NewGatewayConfigFromEnv() GatewayConfig {
	return GatewayConfig{
		PayMongo: PayMongoConfig{
			APIBaseURL:    strings.TrimSpace(env.GetEnv("PAYMONGO_API_BASE_URL", defaultPayMongoAPIBaseURL)),
			SecretKey:     strings.TrimSpace(env.GetEnv("PAYMONGO_SECRET_KEY", "")),
			WebhookSecret: strings.TrimSpace(env.GetEnv("PAYMONGO_WEBHOOK_SECRET", "")),
			Timeout:       env.GetEnvDuration("PAYMONGO_TIMEOUT", defaultGatewayTimeout),
		},
	}
}

// NewSettingsFromEnv reads BILLING_CURRENCY and BILLING_TIMEZONE.
func NewSettingsFromEnv() (Settings, error) {
	tzName := strings.TrimSpace(env.GetEnv("BILLING_TIMEZONE", defaultBillingTimezone))
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return Settings{}, &ConfigurationError{Setting: "BILLING_TIMEZONE", Reason: "is not a known timezone"}
	}
	s := Settings{
		Currency: strings.ToUpper(strings.TrimSpace(env.GetEnv("BILLING_CURRENCY", defaultBillingCurrency))),
		Location: loc,
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks the settings and reports the first offending field.
func (s Settings) Validate() error {
	return configurationErrorFrom(validate.Struct(s))
}

// Validate checks the PayMongo credentials and reports the first offending field.
func (c PayMongoConfig) Validate() error {
	return configurationErrorFrom(validate.Struct(c))
}

func configurationErrorFrom(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := "is required"
		if fe.Tag() != "required" {
			reason = "failed " + fe.Tag() + " validation"
		}
		return &ConfigurationError{Setting: fe.Field(), Reason: reason}
	}
	return &ConfigurationError{Setting: "config", Reason: err.Error()}
}
