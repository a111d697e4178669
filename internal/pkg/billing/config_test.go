package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsValidate(t *testing.T) {
	loc := time.FixedZone("PHT", 8*60*60)

	require.NoError(t, Settings{Currency: "PHP", Location: loc}.Validate())

	tests := []struct {
		name     string
		settings Settings
		setting  string
	}{
		{name: "missing currency", settings: Settings{Location: loc}, setting: "Currency"},
		{name: "lower case currency", settings: Settings{Currency: "php", Location: loc}, setting: "Currency"},
		{name: "long currency", settings: Settings{Currency: "PESO", Location: loc}, setting: "Currency"},
		{name: "missing location", settings: Settings{Currency: "PHP"}, setting: "Location"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfgErr *ConfigurationError
			require.True(t, errors.As(tt.settings.Validate(), &cfgErr))
			assert.Equal(t, tt.setting, cfgErr.Setting)
		})
	}
}

func TestPayMongoConfigValidate(t *testing.T) {
	require.NoError(t, PayMongoConfig{APIBaseURL: defaultPayMongoAPIBaseURL, SecretKey: "sk"}.Validate())

	var cfgErr *ConfigurationError
	require.True(t, errors.As(PayMongoConfig{APIBaseURL: "not a url", SecretKey: "sk"}.Validate(), &cfgErr))
	assert.Equal(t, "APIBaseURL", cfgErr.Setting)
	assert.Equal(t, "failed url validation", cfgErr.Reason)

	require.True(t, errors.As(PayMongoConfig{APIBaseURL: defaultPayMongoAPIBaseURL}.Validate(), &cfgErr))
	assert.Equal(t, "SecretKey", cfgErr.Setting)
	assert.Equal(t, "is required", cfgErr.Reason)
}

func TestNewGatewayConfigFromEnv(t *testing.T) {
	t.Setenv("PAYMONGO_SECRET_KEY", " sk_live_abc ")
	t.Setenv("PAYMONGO_WEBHOOK_SECRET", "whsk_live")
	t.Setenv("PAYMONGO_TIMEOUT", "3s")

	cfg := NewGatewayConfigFromEnv()
	assert.Equal(t, defaultPayMongoAPIBaseURL, cfg.PayMongo.APIBaseURL)
	assert.Equal(t, "sk_live_abc", cfg.PayMongo.SecretKey)
	assert.Equal(t, "whsk_live", cfg.PayMongo.WebhookSecret)
	assert.Equal(t, 3*time.Second, cfg.PayMongo.Timeout)
}

func TestNewSettingsFromEnvRejectsUnknownTimezone(t *testing.T) {
	t.Setenv("BILLING_TIMEZONE", "Mars/Olympus_Mons")

	_, err := NewSettingsFromEnv()

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "BILLING_TIMEZONE", cfgErr.Setting)
}

func TestNewSettingsFromEnvUTC(t *testing.T) {
	t.Setenv("BILLING_TIMEZONE", "UTC")
	t.Setenv("BILLING_CURRENCY", "usd")

	s, err := NewSettingsFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "USD", s.Currency)
	assert.Equal(t, time.UTC, s.Location)
}
