package params

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Agent strategy types accepted in configuration.
const (
	StrategyRandomUniform = "random_uniform"
	StrategyRandomNormal  = "random_normal"
)

// AgentConfig describes one synthetic order-flow agent. All values arrive
// here already validated by Config.Validate; constructors downstream accept
// them as-is.
type AgentConfig struct {
	ID           int     `json:"agentId"`
	Type         string  `json:"type"`
	InitialPrice float64 `json:"initialPrice"`
	MinPrice     float64 `json:"minPrice"`
	MaxPrice     float64 `json:"maxPrice"`
	TickSize     float64 `json:"tickSize"`
	MinQuantity  float64 `json:"minQuantity"`
	MaxQuantity  float64 `json:"maxQuantity"`
	IntervalMS   int     `json:"intervalMs"`
	Seed         int64   `json:"seed"`
}

// Interval is the agent's wake interval.
func (a AgentConfig) Interval() time.Duration {
	if a.IntervalMS <= 0 {
		return 200 * time.Millisecond
	}
	return time.Duration(a.IntervalMS) * time.Millisecond
}

// MarketConfig describes one instrument and its agents.
type MarketConfig struct {
	ID          int           `json:"marketId"`
	Symbol      string        `json:"symbol"`
	MinPrice    float64       `json:"minPrice"`
	MaxPrice    float64       `json:"maxPrice"`
	TickSize    float64       `json:"tickSize"`
	MinQuantity float64       `json:"minQuantity"`
	MaxQuantity float64       `json:"maxQuantity"`
	QueueSize   int           `json:"queueSize"`
	Agents      []AgentConfig `json:"agents"`
}

type Config struct {
	LogLevel       string         `json:"logLevel"`
	LogFile        string         `json:"logFile"`
	APIAddr        string         `json:"apiAddr"`
	AllowedOrigins []string       `json:"allowedOrigins"`
	JournalPath    string         `json:"journalPath"`
	Markets        []MarketConfig `json:"markets"`
}

// Default is a single-instrument setup with two uniform and two
// normal-walk agents.
func Default() Config {
	market := MarketConfig{
		ID:          1,
		Symbol:      "SYN-USD",
		MinPrice:    100,
		MaxPrice:    150,
		TickSize:    1,
		MinQuantity: 10,
		MaxQuantity: 25,
		QueueSize:   100,
	}
	market.Agents = []AgentConfig{
		{ID: 1, Type: StrategyRandomUniform, MinPrice: 100, MaxPrice: 150, TickSize: 1, MinQuantity: 10, MaxQuantity: 25, IntervalMS: 200},
		{ID: 2, Type: StrategyRandomUniform, MinPrice: 100, MaxPrice: 150, TickSize: 1, MinQuantity: 10, MaxQuantity: 25, IntervalMS: 200},
		{ID: 3, Type: StrategyRandomNormal, InitialPrice: 125, MinQuantity: 10, MaxQuantity: 25, IntervalMS: 300},
		{ID: 4, Type: StrategyRandomNormal, InitialPrice: 125, MinQuantity: 10, MaxQuantity: 25, IntervalMS: 300},
	}
	return Config{
		LogLevel: "info",
		APIAddr:  ":8080",
		Markets:  []MarketConfig{market},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. EXCHANGE_CONFIG points at a JSON file replacing
// the full config; scalar env vars override afterwards.
// Priority: ENV > EXCHANGE_CONFIG file > defaults.
func LoadFromEnv(envPath string) (Config, error) {
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg := Default()

	if path := os.Getenv("EXCHANGE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read EXCHANGE_CONFIG: %w", err)
		}
		cfg = Config{}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse EXCHANGE_CONFIG: %w", err)
		}
		if cfg.LogLevel == "" {
			cfg.LogLevel = "info"
		}
		if cfg.APIAddr == "" {
			cfg.APIAddr = ":8080"
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.APIAddr = v
	}
	if v := os.Getenv("JOURNAL_PATH"); v != "" {
		cfg.JournalPath = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the structural sanity of the configuration so that
// downstream constructors can accept values as-is.
func (c Config) Validate() error {
	if len(c.Markets) == 0 {
		return fmt.Errorf("config: no markets defined")
	}
	symbols := make(map[string]bool)
	ids := make(map[int]bool)
	for _, m := range c.Markets {
		if m.Symbol == "" {
			return fmt.Errorf("config: market %d has no symbol", m.ID)
		}
		if symbols[m.Symbol] {
			return fmt.Errorf("config: duplicate symbol %s", m.Symbol)
		}
		if ids[m.ID] {
			return fmt.Errorf("config: duplicate market id %d", m.ID)
		}
		symbols[m.Symbol] = true
		ids[m.ID] = true

		if m.TickSize <= 0 {
			return fmt.Errorf("config: market %s tickSize must be positive", m.Symbol)
		}
		if m.MinPrice <= 0 || m.MaxPrice <= m.MinPrice {
			return fmt.Errorf("config: market %s needs 0 < minPrice < maxPrice", m.Symbol)
		}
		if m.MinQuantity <= 0 || m.MaxQuantity < m.MinQuantity {
			return fmt.Errorf("config: market %s needs 0 < minQuantity <= maxQuantity", m.Symbol)
		}

		agentIDs := make(map[int]bool)
		for _, a := range m.Agents {
			if agentIDs[a.ID] {
				return fmt.Errorf("config: market %s duplicate agent id %d", m.Symbol, a.ID)
			}
			agentIDs[a.ID] = true
			switch a.Type {
			case StrategyRandomUniform:
				if a.TickSize <= 0 || a.MinPrice <= 0 || a.MaxPrice <= a.MinPrice {
					return fmt.Errorf("config: agent %d invalid uniform price range", a.ID)
				}
			case StrategyRandomNormal:
				if a.InitialPrice <= 0 {
					return fmt.Errorf("config: agent %d needs a positive initialPrice", a.ID)
				}
			default:
				return fmt.Errorf("config: agent %d unknown strategy %q", a.ID, a.Type)
			}
			if a.MinQuantity <= 0 || a.MaxQuantity < a.MinQuantity {
				return fmt.Errorf("config: agent %d invalid quantity range", a.ID)
			}
		}
	}
	return nil
}
