package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"synthex/params"
	"synthex/pkg/api"
	"synthex/pkg/exchange"
	"synthex/pkg/journal"
	"synthex/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg, err := params.LoadFromEnv("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var logger *zap.Logger
	if cfg.LogFile != "" {
		logger, err = util.NewLoggerWithFile(cfg.LogFile, cfg.LogLevel)
	} else {
		logger, err = util.NewLogger(cfg.LogLevel)
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "level", cfg.LogLevel, "log_file", cfg.LogFile)

	ex := exchange.NewExchange(sugar)
	clock := util.RealClock{}

	// Optional transaction journal. Write-only: nothing is replayed on boot.
	var jnl *journal.Journal
	if cfg.JournalPath != "" {
		jnl, err = journal.Open(cfg.JournalPath, sugar)
		if err != nil {
			sugar.Fatalw("journal_open_failed", "path", cfg.JournalPath, "err", err)
		}
		defer jnl.Close()
		sugar.Infow("journal_opened", "path", cfg.JournalPath)
	}

	apiServer := api.NewServer(ex, cfg.AllowedOrigins, sugar)

	for _, mc := range cfg.Markets {
		market := exchange.NewMarket(exchange.MarketConfig{
			ID:        mc.ID,
			Symbol:    mc.Symbol,
			QueueSize: mc.QueueSize,
		}, clock, sugar)

		for _, ac := range mc.Agents {
			strategy, err := buildStrategy(mc.ID, ac)
			if err != nil {
				sugar.Fatalw("strategy_build_failed", "symbol", mc.Symbol, "agent", ac.ID, "err", err)
			}
			if _, err := market.AddAgent(ac.ID, strategy, ac.Interval()); err != nil {
				sugar.Fatalw("agent_add_failed", "symbol", mc.Symbol, "agent", ac.ID, "err", err)
			}
		}

		if jnl != nil {
			market.AddSink(jnl)
		}
		apiServer.StreamMarket(market)

		if err := ex.Register(market); err != nil {
			sugar.Fatalw("market_register_failed", "symbol", mc.Symbol, "err", err)
		}
		sugar.Infow("market_configured", "symbol", mc.Symbol, "market_id", mc.ID, "agents", len(mc.Agents))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ex.Start(ctx); err != nil {
		sugar.Fatalw("exchange_start_failed", "err", err)
	}

	go func() {
		if err := apiServer.Start(cfg.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	// Progress logging loop
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sugar.Info("shutting down")
			ex.Stop()
			return
		case <-ticker.C:
			for _, m := range ex.Markets() {
				sugar.Infow("market_progress",
					"symbol", m.Symbol(),
					"trades", m.Ledger().Size(),
					"last_price", m.LastPrice(),
					"best_bid", m.BestBid(),
					"best_ask", m.BestAsk())
			}
		}
	}
}

func buildStrategy(marketID int, ac params.AgentConfig) (exchange.Strategy, error) {
	switch ac.Type {
	case params.StrategyRandomUniform:
		return exchange.NewRandomUniform(marketID, ac.ID, ac.MinPrice, ac.MaxPrice, ac.TickSize, ac.MinQuantity, ac.MaxQuantity, ac.Seed), nil
	case params.StrategyRandomNormal:
		return exchange.NewRandomNormal(marketID, ac.ID, ac.InitialPrice, ac.MinQuantity, ac.MaxQuantity, ac.Seed), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", ac.Type)
	}
}
