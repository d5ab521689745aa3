package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/partsmarket")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PAYMENT_PROVIDER", "Paystack")
	t.Setenv("PAYSTACK_SECRET_KEY", "sk_test_123")
	t.Setenv("PAYMENT_CURRENCY", "zar")
	for _, key := range []string{"PORT", "PAYMENT_REFERENCE_PREFIX", "MAIL_DRIVER", "HTTP_CLIENT_TIMEOUT", "OUTBOX_MAX_ATTEMPTS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	require.NotNil(t, cfg)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "paystack", cfg.PaymentProvider)
	assert.Equal(t, "ZAR", cfg.Currency)
	assert.Equal(t, "APM", cfg.ReferencePrefix)
	assert.Equal(t, "sk_test_123", cfg.PaystackSecret)
	assert.Equal(t, "log", cfg.MailDriver)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 8, cfg.OutboxMaxAttempts)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty-two")
	t.Setenv("TEST_FLOAT", "0.5")
	t.Setenv("TEST_DURATION", "90s")
	t.Setenv("TEST_EMPTY", "")

	assert.Equal(t, 42, getInt("TEST_INT", 1))
	assert.Equal(t, 1, getInt("TEST_BAD_INT", 1))
	assert.Equal(t, 0.5, getFloat("TEST_FLOAT", 2))
	assert.Equal(t, 90*time.Second, getDuration("TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, getDuration("TEST_MISSING", time.Second))
	assert.Equal(t, "fallback", getEnv("TEST_EMPTY", "fallback"))
}
