package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUnquote(t *testing.T) {
	assert.Equal(t, "secret", Unquote(`  "secret" `))
	assert.Equal(t, "secret", Unquote(`'secret'`))
	assert.Equal(t, `"mixed'`, Unquote(`"mixed'`))
	assert.Equal(t, `"`, Unquote(`"`))
}

func TestGetEnvPositiveInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	assert.Equal(t, int64(42), GetEnvPositiveInt("TEST_INT", 7))

	t.Setenv("TEST_INT", "-1")
	assert.Equal(t, int64(7), GetEnvPositiveInt("TEST_INT", 7))

	t.Setenv("TEST_INT", "many")
	assert.Equal(t, int64(7), GetEnvPositiveInt("TEST_INT", 7))
}

func TestGetEnvPositiveDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "90s")
	assert.Equal(t, 90*time.Second, GetEnvPositiveDuration("TEST_DURATION", time.Minute))

	t.Setenv("TEST_DURATION", "0s")
	assert.Equal(t, time.Minute, GetEnvPositiveDuration("TEST_DURATION", time.Minute))
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "false")
	assert.False(t, GetEnvBool("TEST_BOOL", true))

	t.Setenv("TEST_BOOL", "maybe")
	assert.True(t, GetEnvBool("TEST_BOOL", true))
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("TEST_LIST", " https://a.example , ,https://b.example,")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, GetEnvList("TEST_LIST"))

	t.Setenv("TEST_LIST", "")
	assert.Nil(t, GetEnvList("TEST_LIST"))
}

func TestTracingSettings(t *testing.T) {
	t.Setenv("OTEL_TRACES_ENABLED", "")
	t.Setenv("OTEL_SERVICE_NAME", "")
	assert.False(t, IsTracingEnabled())
	assert.Equal(t, "event-referrals", OTelServiceName())

	t.Setenv("OTEL_TRACES_ENABLED", "true")
	t.Setenv("OTEL_SERVICE_NAME", "referrals-staging")
	assert.True(t, IsTracingEnabled())
	assert.Equal(t, "referrals-staging", OTelServiceName())
}
