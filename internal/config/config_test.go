package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsSweeperAndTelegramSettings(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://relay@localhost/relay")
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_IDS", "42, 7,")
	t.Setenv("TICKET_AUTO_CLOSE_MINUTES", "90")
	t.Setenv("TICKET_AUTO_CLOSE_CHECK_SECONDS", "15")
	t.Setenv("TELEGRAM_DELIVERY_ACK", "false")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []int64{42, 7}, cfg.Telegram.AdminIDs)
	assert.True(t, cfg.Telegram.IsAdmin(7))
	assert.False(t, cfg.Telegram.IsAdmin(8))
	assert.False(t, cfg.Telegram.DeliveryAck)
	assert.True(t, cfg.Sweeper.Enabled())
	assert.Equal(t, 90*time.Minute, cfg.Sweeper.Threshold())
	assert.Equal(t, 15*time.Second, cfg.Sweeper.Interval())
}

func TestSweeperDisabledByNonPositiveThreshold(t *testing.T) {
	for _, minutes := range []string{"0", "-5"} {
		t.Setenv("TICKET_AUTO_CLOSE_MINUTES", minutes)
		cfg, err := Load()
		require.NoError(t, err)
		assert.False(t, cfg.Sweeper.Enabled(), minutes)
	}
}

func TestLoadRejectsMalformedAdminIDs(t *testing.T) {
	t.Setenv("ADMIN_IDS", "12,abc")
	_, err := Load()
	require.Error(t, err)
}

func TestValidateRequiresDSNAndToken(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("BOT_TOKEN", "")
	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_DSN")
	assert.Contains(t, err.Error(), "BOT_TOKEN")
}
