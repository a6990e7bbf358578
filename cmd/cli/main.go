package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/zfogg/paddock/internal/config"
	"github.com/zfogg/paddock/internal/kernel"
	"github.com/zfogg/paddock/internal/logger"
)

var (
	output  string = "text" // "text" or "json"
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "paddock",
	Short: "Paddock CLI - Operate a Paddock deployment",
	Long: `Paddock CLI runs operator tasks directly against the configured
database and backends: migrations, admin grants, bans, the chat
toggle and search reindexing. It reads the same environment as the server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if output != "text" && output != "json" {
			return fmt.Errorf("--output must be text or json")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log backend activity to stderr")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(promoteAdminCmd)
	rootCmd.AddCommand(banCmd)
	rootCmd.AddCommand(unbanCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(searchCmd)
}

// loadConfig reads configuration and sets up logging for a command
func loadConfig() (*config.Config, error) {
	cfg, _, err := config.Load()
	if err != nil {
		return nil, err
	}
	level := "warn"
	if verbose {
		level = "debug"
	}
	if err := logger.Initialize(logger.Options{Level: level, Environment: "development"}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withKernel boots the service graph, runs fn and tears everything down.
// Background services are never started.
func withKernel(ctx context.Context, fn func(k *kernel.Kernel) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Close()

	k, err := kernel.Boot(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = k.Cleanup(context.Background()) }()

	return fn(k)
}

// printResult writes v as JSON or calls text for the human form
func printResult(v interface{}, text func()) error {
	if output == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text()
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
