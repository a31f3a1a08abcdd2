package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edgewise/journal/internal/breach"
	"github.com/edgewise/journal/internal/digest"
	"github.com/edgewise/journal/internal/rules"
	"github.com/edgewise/journal/pkg/config"
	"github.com/edgewise/journal/pkg/database"
	"github.com/edgewise/journal/pkg/logger"
	"github.com/edgewise/journal/pkg/redis"
)

// digestCmd runs the breach digest once, outside the scheduler
var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Run the unacknowledged breach digest once",
	Long: `Emit the unacknowledged breach digest immediately.

Scans the breach ledger for unacknowledged events, skips users who
disabled alerts, and logs one summary per remaining user. The api
command runs this on a schedule; this command is for ad-hoc runs.

Example:
  go run ./cmd/journal digest`,
	RunE: runDigest,
}

func init() {
	rootCmd.AddCommand(digestCmd)
}

func runDigest(cmd *cobra.Command, args []string) error {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	// 4. Connect to Redis (no-op when disabled)
	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	// 5. Run the digest once
	breachRepo := breach.NewRepository(db.Pool)
	rulesRepo := rules.NewRepository(db.Pool, redis.NewCache(redisClient, "journal"), cfg.Redis.RulesTTL)
	job := digest.NewJob(breachRepo, rulesRepo, cfg.Digest.Schedule, log)

	return job.Run(context.Background())
}
