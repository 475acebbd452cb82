package config

import (
	"testing"
	"time"

	"lottery_system/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("IS_PROD", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, int64(33), cfg.Lottery.Multiplier)
	assert.Equal(t, time.Minute, cfg.Lottery.LeadWindow)
	assert.Equal(t, 15*time.Minute, cfg.Lottery.ExecutionLag)
	assert.Equal(t, SlotTime{Hour: 14}, cfg.Lottery.Slots[domain.GroupB])
	assert.Equal(t, "8080", cfg.AppPort)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("LOTTERY_TZ", "Africa/Lagos")
	t.Setenv("SLOT_C", "19:30")
	t.Setenv("PAYOUT_MULTIPLIER", "30")
	t.Setenv("LEAD_WINDOW", "2m")
	t.Setenv("ADMIN_IDS", "1, 7 ,9")
	t.Setenv("FORCED_WINNING_FIGURE", "5")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "Africa/Lagos", cfg.Lottery.Location.String())
	assert.Equal(t, SlotTime{Hour: 19, Minute: 30}, cfg.Lottery.Slots[domain.GroupC])
	assert.Equal(t, int64(30), cfg.Lottery.Multiplier)
	assert.Equal(t, 2*time.Minute, cfg.Lottery.LeadWindow)
	assert.Equal(t, []uint{1, 7, 9}, cfg.Lottery.AdminIDs)
	assert.True(t, cfg.Lottery.IsAdminID(7))
	assert.False(t, cfg.Lottery.IsAdminID(2))
	assert.Equal(t, 5, cfg.Lottery.ForcedFigure)
}

func TestLoadConfig_ForcedFigureIgnoredInProd(t *testing.T) {
	t.Setenv("IS_PROD", "true")
	t.Setenv("FORCED_WINNING_FIGURE", "5")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Zero(t, cfg.Lottery.ForcedFigure)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"SLOT_A":                "25:99",
		"LEAD_WINDOW":           "soon",
		"FORCED_WINNING_FIGURE": "37",
		"PAYOUT_MULTIPLIER":     "0",
		"ADMIN_IDS":             "1,x",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("IS_PROD", "")
			t.Setenv(key, val)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
