package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/benvon/habitflow/internal/config"
	"github.com/benvon/habitflow/internal/database"
	"github.com/benvon/habitflow/internal/models"
	"github.com/spf13/cobra"
)

// NewRatelimitCmd manages the stored API rate limit.
func NewRatelimitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage rate limit configuration",
		Long:  "List or update the API rate limit (e.g. 5-S, 100-M). Stored in the database.",
	}
	cmd.AddCommand(newRatelimitListCmd())
	cmd.AddCommand(newRatelimitSetCmd())
	return cmd
}

// openRatelimitRepo connects to the database and returns the repository
// plus a close func for the connection.
func openRatelimitRepo() (*database.RatelimitConfigRepository, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return database.NewRatelimitConfigRepository(db), func() { _ = db.Close() }, nil
}

func newRatelimitListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the current rate limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeDB, err := openRatelimitRepo()
			if err != nil {
				return err
			}
			defer closeDB()

			c, err := repo.Get(context.Background())
			if err != nil {
				return fmt.Errorf("get ratelimit config: %w", err)
			}
			if c == nil {
				fmt.Println("No rate limit configured. Use 'ratelimit set' to add one.")
				return nil
			}
			fmt.Printf("Rate limit: %s (updated %s)\n", c.Rate, c.UpdatedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

func newRatelimitSetCmd() *cobra.Command {
	var rate string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update the rate limit",
		Long:  "Update the API rate limit (e.g. 5-S, 100-M, 1000-H).",
		RunE: func(cmd *cobra.Command, args []string) error {
			rate = strings.TrimSpace(rate)
			if rate == "" {
				return fmt.Errorf("--rate is required (e.g. 5-S, 100-M)")
			}

			repo, closeDB, err := openRatelimitRepo()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := repo.Set(context.Background(), &models.RatelimitConfig{Rate: rate}); err != nil {
				return fmt.Errorf("set ratelimit config: %w", err)
			}
			fmt.Printf("Rate limit set to %s.\n", rate)
			return nil
		},
	}
	cmd.Flags().StringVar(&rate, "rate", "", "Rate (e.g. 5-S, 100-M, 1000-H) (required)")
	return cmd
}
