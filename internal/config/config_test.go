package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("AUTH_PROVIDER", "jwt")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TELEGRAM_BOT_TOKEN", "bot")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PGHOST", "db")
	t.Setenv("TX_MAX_ATTEMPTS", "")
	t.Setenv("STARTING_COINS", "")
	t.Setenv("AUTO_MIGRATE", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.TxMaxAttempts)
	assert.Equal(t, int64(100), cfg.StartingCoins)
	assert.True(t, cfg.AutoMigrate)
	assert.Contains(t, cfg.DatabaseURL, "@db:")
}

func TestLoadConfig_DatabaseURLWins(t *testing.T) {
	t.Setenv("AUTH_PROVIDER", "jwt")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TELEGRAM_BOT_TOKEN", "bot")
	t.Setenv("DATABASE_URL", "postgres://u:p@h:1/x")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@h:1/x", cfg.DatabaseURL)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"jwt без секрета", map[string]string{"AUTH_PROVIDER": "jwt", "JWT_SECRET": "", "TELEGRAM_BOT_TOKEN": "bot"}},
		{"firebase без проекта", map[string]string{"AUTH_PROVIDER": "firebase", "FIREBASE_PROJECT_ID": ""}},
		{"неизвестный провайдер", map[string]string{"AUTH_PROVIDER": "ldap"}},
		{"плохое число попыток", map[string]string{"AUTH_PROVIDER": "jwt", "JWT_SECRET": "s", "TELEGRAM_BOT_TOKEN": "b", "TX_MAX_ATTEMPTS": "abc"}},
		{"нулевое число попыток", map[string]string{"AUTH_PROVIDER": "jwt", "JWT_SECRET": "s", "TELEGRAM_BOT_TOKEN": "b", "TX_MAX_ATTEMPTS": "0"}},
		{"отрицательный стартовый баланс", map[string]string{"AUTH_PROVIDER": "jwt", "JWT_SECRET": "s", "TELEGRAM_BOT_TOKEN": "b", "STARTING_COINS": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
