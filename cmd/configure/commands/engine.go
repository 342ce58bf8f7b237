package commands

import (
	"context"
	"fmt"

	"github.com/benvon/habitflow/internal/config"
	"github.com/benvon/habitflow/internal/database"
	"github.com/spf13/cobra"
)

// NewEngineCmd creates the engine configuration command with list and set subcommands.
func NewEngineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engine",
		Short: "Manage streak engine configuration",
		Long:  "List or update protection quota, evening cutoff hour and grace days. Stored in database.",
	}
	cmd.AddCommand(newEngineListCmd())
	cmd.AddCommand(newEngineSetCmd())
	return cmd
}

func newEngineListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List current engine configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			db, err := database.New(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer func() { _ = db.Close() }()
			repo := database.NewEngineConfigRepository(db)
			stored, err := repo.Get(context.Background())
			if err != nil {
				return fmt.Errorf("get engine config: %w", err)
			}
			if stored == nil {
				c, err := repo.GetOrDefault(context.Background())
				if err != nil {
					return fmt.Errorf("get engine config: %w", err)
				}
				fmt.Println("No engine configuration in database, showing built-in defaults:")
				printEngineConfig(c.ProtectionQuota, c.EveningCutoffHour, c.GraceDays)
				return nil
			}
			fmt.Println("Engine configuration:")
			printEngineConfig(stored.ProtectionQuota, stored.EveningCutoffHour, stored.GraceDays)
			return nil
		},
	}
}

func printEngineConfig(quota, cutoff, grace int) {
	fmt.Printf("  Protection quota:    %d per month\n", quota)
	fmt.Printf("  Evening cutoff hour: %d\n", cutoff)
	fmt.Printf("  Grace days:          %d\n", grace)
}

func newEngineSetCmd() *cobra.Command {
	var quota int
	var cutoff int
	var grace int
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set engine configuration",
		Long:  "Update protection quota, evening cutoff hour and grace days. Unspecified flags keep their current values.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			db, err := database.New(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer func() { _ = db.Close() }()
			repo := database.NewEngineConfigRepository(db)

			current, err := repo.GetOrDefault(context.Background())
			if err != nil {
				return fmt.Errorf("get engine config: %w", err)
			}
			if cmd.Flags().Changed("quota") {
				current.ProtectionQuota = quota
			}
			if cmd.Flags().Changed("evening-cutoff") {
				current.EveningCutoffHour = cutoff
			}
			if cmd.Flags().Changed("grace-days") {
				current.GraceDays = grace
			}

			if err := repo.Set(context.Background(), current); err != nil {
				return fmt.Errorf("set engine config: %w", err)
			}
			fmt.Println("Engine configuration updated:")
			printEngineConfig(current.ProtectionQuota, current.EveningCutoffHour, current.GraceDays)
			return nil
		},
	}
	cmd.Flags().IntVar(&quota, "quota", 0, "Monthly streak protection quota")
	cmd.Flags().IntVar(&cutoff, "evening-cutoff", 0, "Hour of day (0-23) after which at-risk sweeps run")
	cmd.Flags().IntVar(&grace, "grace-days", 0, "Days a streak survives without activity")
	return cmd
}
