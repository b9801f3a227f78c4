package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAutoMigrateAllowed(t *testing.T) {
	for _, env := range []string{"", "dev", "development", "local", "test", "testing", "DEV", "  Local  "} {
		assert.NoError(t, ValidateAutoMigrateAllowed(env), env)
	}

	for _, env := range []string{"prod", "production", "staging", "preprod", " Production ", "qa"} {
		assert.Error(t, ValidateAutoMigrateAllowed(env), env)
	}
}

func TestIsProduction(t *testing.T) {
	assert.True(t, IsProduction("prod"))
	assert.True(t, IsProduction(" Production "))
	assert.False(t, IsProduction("staging"))
	assert.False(t, IsProduction(""))
}

func TestGetAppEnv(t *testing.T) {
	t.Setenv(AppEnvKey, "  Staging ")
	assert.Equal(t, "staging", GetAppEnv())
}
