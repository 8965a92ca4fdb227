package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 36, cfg.Economy.MaxRequestStacks)
	assert.Equal(t, 20*time.Second, cfg.Economy.SellConfirmWindow)
	assert.Equal(t, "file", cfg.Store.Type)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STARTING_BALANCE", "100")
	t.Setenv("TAX_RATE", "0.1")
	t.Setenv("DAILY_SELL_LIMIT", "500")
	t.Setenv("API_KEYS", " a , b,,c ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.EqualValues(t, 100, cfg.Economy.StartingBalance)
	assert.InDelta(t, 0.1, cfg.Economy.TaxRate, 1e-9)
	assert.EqualValues(t, 500, cfg.Economy.DailySellLimit)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.App.Keys())
}

func TestEconomyValidate(t *testing.T) {
	valid := func() EconomyConfig {
		return EconomyConfig{
			StartingBalance:   100,
			TaxRate:           0.1,
			MaxRequestStacks:  36,
			SellConfirmWindow: 20 * time.Second,
			Timezone:          "UTC",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*EconomyConfig)
		wantErr bool
	}{
		{"valid", func(*EconomyConfig) {}, false},
		{"negative starting balance", func(c *EconomyConfig) { c.StartingBalance = -1 }, true},
		{"tax above one", func(c *EconomyConfig) { c.TaxRate = 1.5 }, true},
		{"negative pvp", func(c *EconomyConfig) { c.PvPBalanceLossPct = -0.1 }, true},
		{"zero stacks", func(c *EconomyConfig) { c.MaxRequestStacks = 0 }, true},
		{"bad timezone", func(c *EconomyConfig) { c.Timezone = "Mars/Olympus" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDSNs(t *testing.T) {
	s := StoreConfig{User: "u", Password: "p", Host: "h", Port: 1, Name: "db", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:1/db?sslmode=disable", s.PostgresDSN())
	assert.Equal(t, "u:p@tcp(h:1)/db?parseTime=true", s.MySQLDSN())
}
