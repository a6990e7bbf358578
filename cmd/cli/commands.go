package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zfogg/paddock/internal/database"
	"github.com/zfogg/paddock/internal/kernel"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/search"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update every table and index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Close()

		if err := database.Initialize(database.Options{Driver: cfg.DatabaseDriver, URL: cfg.DatabaseURL}); err != nil {
			return err
		}
		defer database.Close()

		if err := database.Migrate(); err != nil {
			return err
		}
		return printResult(map[string]int{"models": len(database.AllModels())}, func() {
			fmt.Printf("✓ Migrated %d models\n", len(database.AllModels()))
		})
	},
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Grant or revoke admin rights",
}

var adminGrantCmd = &cobra.Command{
	Use:   "grant <username>",
	Short: "Make a user an admin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUserChange(cmd, "is already an admin", "Admin rights granted to", func(k *kernel.Kernel) (*models.User, error) {
			return setAdmin(cmd.Context(), k.DB(), args[0], true)
		})
	},
}

// promoteAdminCmd is the top-level shorthand for admin grant
var promoteAdminCmd = &cobra.Command{
	Use:   "promote-admin <username>",
	Short: "Make a user an admin (same as admin grant)",
	Args:  cobra.ExactArgs(1),
	RunE:  adminGrantCmd.RunE,
}

var adminRevokeCmd = &cobra.Command{
	Use:   "revoke <username>",
	Short: "Remove a user's admin rights",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUserChange(cmd, "is not an admin", "Admin rights revoked for", func(k *kernel.Kernel) (*models.User, error) {
			return setAdmin(cmd.Context(), k.DB(), args[0], false)
		})
	},
}

var banReason string

var banCmd = &cobra.Command{
	Use:   "ban <username>",
	Short: "Ban a user and drop them from search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUserChange(cmd, "is already banned", "Banned", func(k *kernel.Kernel) (*models.User, error) {
			user, err := setBanned(cmd.Context(), k.DB(), args[0], true, banReason)
			if err == nil {
				k.Search().Remove(search.KindUsers, user.ID)
			}
			return user, err
		})
	},
}

var unbanCmd = &cobra.Command{
	Use:   "unban <username>",
	Short: "Lift a ban",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUserChange(cmd, "is not banned", "Unbanned", func(k *kernel.Kernel) (*models.User, error) {
			user, err := setBanned(cmd.Context(), k.DB(), args[0], false, "")
			if err == nil {
				k.Search().IndexUser(user)
			}
			return user, err
		})
	},
}

// runUserChange boots the kernel, applies change and reports the outcome.
// errNoChange is reported as a warning, not a failure.
func runUserChange(cmd *cobra.Command, unchanged, done string, change func(k *kernel.Kernel) (*models.User, error)) error {
	return withKernel(cmd.Context(), func(k *kernel.Kernel) error {
		user, err := change(k)
		if errors.Is(err, errNoChange) {
			fmt.Printf("⚠️  %s %s\n", user.Username, unchanged)
			return nil
		}
		if err != nil {
			return err
		}
		return printResult(user, func() {
			fmt.Printf("✓ %s %s\n", done, user.Username)
			fmt.Printf("  User ID: %s\n", user.ID)
			if user.IsBanned && user.BannedReason != "" {
				fmt.Printf("  Reason: %s\n", user.BannedReason)
			}
		})
	})
}

var chatCmd = &cobra.Command{
	Use:   "chat [enable|disable|status]",
	Short: "Show or flip the global live chat toggle",
	Long: `Show or flip the global live chat toggle. The setting is shared
through the database and Redis, so running servers pick it up on their
next status read.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"enable", "disable", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		action := "status"
		if len(args) == 1 {
			action = args[0]
		}
		if action != "enable" && action != "disable" && action != "status" {
			return fmt.Errorf("unknown action %q", action)
		}

		return withKernel(cmd.Context(), func(k *kernel.Kernel) error {
			chatSvc := k.Chat()
			if action != "status" {
				if _, err := chatSvc.SetEnabled(cmd.Context(), "", action == "enable"); err != nil {
					return err
				}
			}
			enabled, err := chatSvc.Enabled(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(map[string]bool{"enabled": enabled}, func() {
				state := "disabled"
				if enabled {
					state = "enabled"
				}
				fmt.Printf("Live chat is %s\n", state)
			})
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Manage the search index",
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild every Elasticsearch document from the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withKernel(cmd.Context(), func(k *kernel.Kernel) error {
			stats, err := k.Search().Reindex(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(stats, func() {
				fmt.Printf("✓ Reindexed %d users, %d polls, %d grids\n", stats.Users, stats.Polls, stats.Grids)
			})
		})
	},
}

func init() {
	adminCmd.AddCommand(adminGrantCmd)
	adminCmd.AddCommand(adminRevokeCmd)
	banCmd.Flags().StringVar(&banReason, "reason", "", "Reason shown to the user")
	searchCmd.AddCommand(reindexCmd)
}
