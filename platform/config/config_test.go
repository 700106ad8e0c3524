package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATASET_PATH_LEDGER", "extracts/cartera.txt")
	t.Setenv("DATASET_PATH_PRICES", "  ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.GetMaxToolRounds())
	assert.Equal(t, 60, cfg.GetPurchaseHistoryDays())
	assert.Equal(t, 1000, cfg.GetDedupCapacity())
	assert.Equal(t, 10*time.Second, cfg.GetSendTimeout())
	assert.Equal(t, "extracts/cartera.txt", cfg.GetDatasetPath("ledger"))
	assert.Empty(t, cfg.GetDatasetPath("prices"))
	assert.Empty(t, cfg.GetDatasetPath("unknown"))
	assert.Equal(t, "CO", cfg.GetDefaultPhoneRegion())
}

func TestLoadRejectsInvalidToolRounds(t *testing.T) {
	t.Setenv("MAX_TOOL_ROUNDS", "0")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRequiresVerifyTokenWithWhatsApp(t *testing.T) {
	t.Setenv("WHATSAPP_ACCESS_TOKEN", "token")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "123")
	t.Setenv("WHATSAPP_VERIFY_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
}
