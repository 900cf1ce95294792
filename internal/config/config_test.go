package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:           "development",
		DBSSLMode:     "disable",
		JWTSecret:     "secure-secret-at-least-32-chars-long",
		DBPassword:    "secure-password",
		Port:          "8080",
		MediaProvider: "local",
		RedisURL:      "redis://localhost:6379",
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with empty SSL mode", "prod", "", true},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateMediaProvider(t *testing.T) {
	c := validConfig()
	c.MediaProvider = "imgur"
	assert.Error(t, c.Validate())
	c.ImgurClientID = "abc123"
	assert.NoError(t, c.Validate())

	c = validConfig()
	c.MediaProvider = "s3"
	assert.Error(t, c.Validate())
	c.S3Bucket = "media"
	assert.NoError(t, c.Validate())

	c = validConfig()
	c.MediaProvider = "ftp"
	assert.Error(t, c.Validate())
}

func TestConfig_ProductionRejectsDefaultSecret(t *testing.T) {
	c := validConfig()
	c.Env = "production"
	c.DBSSLMode = "require"
	c.JWTSecret = defaultJWTSecret
	assert.Error(t, c.Validate())
}

func TestConfig_Durations(t *testing.T) {
	c := &Config{}
	assert.Equal(t, 7*24*time.Hour, c.TokenTTL())
	assert.Equal(t, 15*time.Second, c.MediaUploadTimeout())

	c.JWTTTLHours = 2
	c.MediaUploadTimeoutSeconds = 3
	assert.Equal(t, 2*time.Hour, c.TokenTTL())
	assert.Equal(t, 3*time.Second, c.MediaUploadTimeout())
}

func TestLoadConfig_Defaults(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("DB_SSLMODE")
	defer viper.Reset()

	os.Setenv("APP_ENV", "development")
	os.Setenv("DB_SSLMODE", "  DISABLE  ")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, 5, c.LockoutThreshold)
	assert.Equal(t, "local", c.MediaProvider)
	assert.Equal(t, "8375", c.Port)
}
