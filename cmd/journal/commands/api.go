package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgewise/journal/internal/account"
	"github.com/edgewise/journal/internal/api"
	"github.com/edgewise/journal/internal/api/handlers"
	"github.com/edgewise/journal/internal/breach"
	"github.com/edgewise/journal/internal/calendar"
	"github.com/edgewise/journal/internal/digest"
	"github.com/edgewise/journal/internal/enforcement"
	"github.com/edgewise/journal/internal/journal"
	"github.com/edgewise/journal/internal/playbook"
	"github.com/edgewise/journal/internal/rules"
	"github.com/edgewise/journal/internal/scheduler"
	"github.com/edgewise/journal/internal/trade"
	"github.com/edgewise/journal/pkg/config"
	"github.com/edgewise/journal/pkg/database"
	"github.com/edgewise/journal/pkg/logger"
	"github.com/edgewise/journal/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the journal API server",
	Long: `Start the REST API server.

Endpoints:
  GET    /health                       - Health check
  CRUD   /api/playbooks                - Playbook templates (versioned)
  POST   /api/playbooks/{id}/evaluate  - Dry-run checklist evaluation
  POST   /api/playbook-responses       - Submit a checklist (risk-cap gated)
  CRUD   /api/trades                   - Trade ledger (loss-streak gated)
  GET    /api/calendar                 - Discipline calendar with summary KPIs
  GET/PUT /api/journal/{date}          - Daily journal entries
  GET    /api/breaches                 - Breach ledger
  POST   /api/breaches/{id}/ack        - Acknowledge a breach
  GET/PUT /api/settings/trading-rules  - Per-user rules and enforcement mode
  CRUD   /api/accounts                 - Trading accounts

Example:
  go run ./cmd/journal api
  go run ./cmd/journal api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Override port if flag is set
	if apiPort != "" {
		cfg.Port = apiPort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	log.Info("Connected to database")

	// 4. Connect to Redis (no-op when disabled)
	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	rulesCache := redis.NewCache(redisClient, "journal")

	// 5. Create repositories
	accountRepo := account.NewRepository(db.Pool)
	tradeRepo := trade.NewRepository(db.Pool)
	playbookRepo := playbook.NewRepository(db.Pool)
	breachRepo := breach.NewRepository(db.Pool)
	journalRepo := journal.NewRepository(db.Pool)
	rulesRepo := rules.NewRepository(db.Pool, rulesCache, cfg.Redis.RulesTTL)

	// 6. Create enforcement gate
	gate := enforcement.NewGate(log)

	// 7. Create services
	playbookService := playbook.NewService(db.Pool, playbookRepo, breachRepo, accountRepo, rulesRepo, gate, log)
	tradeService := trade.NewService(db.Pool, tradeRepo, breachRepo, rulesRepo, gate, log)
	calendarService := calendar.NewService(tradeRepo, rulesRepo, log)

	// 8. Create handlers
	h := api.Handlers{
		Playbooks: handlers.NewPlaybookHandler(playbookService, playbookRepo, log),
		Trades:    handlers.NewTradeHandler(tradeService, tradeRepo, log),
		Calendar:  handlers.NewCalendarHandler(calendarService, log),
		Breaches:  handlers.NewBreachHandler(breachRepo, log),
		Settings:  handlers.NewSettingsHandler(rulesRepo, log),
		Accounts:  handlers.NewAccountHandler(accountRepo, log),
		Journal:   handlers.NewJournalHandler(journalRepo, log),
	}

	// 9. Create router and server
	router := api.NewRouter(cfg, h, log)
	server := api.New(cfg, log, router)

	// 10. Start the breach digest scheduler
	var sched *scheduler.Scheduler
	if cfg.Digest.Enabled {
		sched = scheduler.New(log)
		digestJob := digest.NewJob(breachRepo, rulesRepo, cfg.Digest.Schedule, log)
		if err := sched.AddJob(digestJob); err != nil {
			return fmt.Errorf("schedule breach digest: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	// 11. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
