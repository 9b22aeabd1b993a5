package params

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Len(t, cfg.Markets, 1)
	assert.Equal(t, "SYN-USD", cfg.Markets[0].Symbol)
	assert.Len(t, cfg.Markets[0].Agents, 4)
}

func TestAgentInterval(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, AgentConfig{}.Interval(), "default interval")
	assert.Equal(t, 50*time.Millisecond, AgentConfig{IntervalMS: 50}.Interval())
	assert.Equal(t, 200*time.Millisecond, AgentConfig{IntervalMS: -5}.Interval())
}

func TestValidateRejects(t *testing.T) {
	base := func() Config { return Default() }

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no markets", func(c *Config) { c.Markets = nil }},
		{"empty symbol", func(c *Config) { c.Markets[0].Symbol = "" }},
		{"zero tick", func(c *Config) { c.Markets[0].TickSize = 0 }},
		{"inverted prices", func(c *Config) { c.Markets[0].MinPrice = 200 }},
		{"inverted quantities", func(c *Config) { c.Markets[0].MaxQuantity = 1 }},
		{"duplicate agent id", func(c *Config) { c.Markets[0].Agents[1].ID = c.Markets[0].Agents[0].ID }},
		{"unknown strategy", func(c *Config) { c.Markets[0].Agents[0].Type = "martingale" }},
		{"uniform without price range", func(c *Config) { c.Markets[0].Agents[0].MaxPrice = 0 }},
		{"normal without initial price", func(c *Config) { c.Markets[0].Agents[2].InitialPrice = 0 }},
		{"agent zero quantity", func(c *Config) { c.Markets[0].Agents[0].MinQuantity = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateRejectsDuplicateMarkets(t *testing.T) {
	cfg := Default()
	cfg.Markets = append(cfg.Markets, cfg.Markets[0])
	assert.Error(t, cfg.Validate())
}

func TestLoadFromEnvDefaults(t *testing.T) {
	t.Setenv("EXCHANGE_CONFIG", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FILE", "")
	t.Setenv("API_ADDR", "")
	t.Setenv("JOURNAL_PATH", "")

	cfg, err := LoadFromEnv("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.APIAddr)
	assert.Len(t, cfg.Markets, 1)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("EXCHANGE_CONFIG", "")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FILE", "data/test.log")
	t.Setenv("API_ADDR", ":9999")
	t.Setenv("JOURNAL_PATH", "data/journal")

	cfg, err := LoadFromEnv("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "data/test.log", cfg.LogFile)
	assert.Equal(t, ":9999", cfg.APIAddr)
	assert.Equal(t, "data/journal", cfg.JournalPath)
}

func TestLoadFromEnvConfigFile(t *testing.T) {
	body := `{
		"logLevel": "warn",
		"markets": [{
			"marketId": 5,
			"symbol": "ABC-USD",
			"minPrice": 10,
			"maxPrice": 20,
			"tickSize": 0.5,
			"minQuantity": 1,
			"maxQuantity": 2,
			"agents": [
				{"agentId": 1, "type": "random_uniform", "minPrice": 10, "maxPrice": 20, "tickSize": 0.5, "minQuantity": 1, "maxQuantity": 2}
			]
		}]
	}`
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	t.Setenv("EXCHANGE_CONFIG", path)
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FILE", "")
	t.Setenv("API_ADDR", "")
	t.Setenv("JOURNAL_PATH", "")

	cfg, err := LoadFromEnv("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.APIAddr, "missing addr falls back to default")
	require.Len(t, cfg.Markets, 1)
	assert.Equal(t, 5, cfg.Markets[0].ID)
	assert.Equal(t, "ABC-USD", cfg.Markets[0].Symbol)
	require.Len(t, cfg.Markets[0].Agents, 1)
	assert.Equal(t, StrategyRandomUniform, cfg.Markets[0].Agents[0].Type)
}

func TestLoadFromEnvBadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	t.Setenv("EXCHANGE_CONFIG", path)

	_, err := LoadFromEnv("")
	assert.Error(t, err)

	t.Setenv("EXCHANGE_CONFIG", filepath.Join(t.TempDir(), "missing.json"))
	_, err = LoadFromEnv("")
	assert.Error(t, err)
}
