package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"tg-vaultbot/internal/config"
	"tg-vaultbot/internal/storage"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "dbmigrate",
	Short:         "Maintain the tg-vaultbot database",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// --- migrate ---

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing tables and columns",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(db *gorm.DB) error {
			fmt.Fprintln(cmd.OutOrStdout(), "Migrating database...")
			if err := storage.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migration completed successfully")
			return nil
		})
	},
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which tables exist and how many rows they hold",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(db *gorm.DB) error {
			return printStatus(cmd.OutOrStdout(), db)
		})
	},
}

// --- reset ---

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop all tables and recreate them",
	Long: `Drop all tables and recreate them. Every indexed video and registered user is lost.

Examples:
  dbmigrate reset --config configs/config.yaml
  dbmigrate reset --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout()) {
			return fmt.Errorf("operation cancelled by user")
		}
		return withDB(func(db *gorm.DB) error {
			if err := resetDatabase(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database reset completed successfully")
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path to configuration file")
	resetCmd.Flags().Bool("yes", false, "Skip the confirmation prompt")

	rootCmd.AddCommand(migrateCmd, statusCmd, resetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withDB loads the database settings, opens the database and closes it after fn.
// Bot settings are not required here.
func withDB(fn func(db *gorm.DB) error) error {
	cfg, err := config.LoadDatabase(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := storage.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer storage.Close(db)

	return fn(db)
}

func confirm(in io.Reader, out io.Writer) bool {
	fmt.Fprint(out, "WARNING: This will delete all data! Are you sure? (y/N): ")
	answer, _ := bufio.NewReader(in).ReadString('\n')
	answer = strings.TrimSpace(answer)
	return answer == "y" || answer == "Y"
}

// resetDatabase drops tables in reverse order and recreates them.
func resetDatabase(db *gorm.DB) error {
	tables := storage.Tables()
	for i := len(tables) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(tables[i]); err != nil {
			return fmt.Errorf("failed to drop %T: %w", tables[i], err)
		}
	}
	return storage.Migrate(db)
}

func printStatus(out io.Writer, db *gorm.DB) error {
	fmt.Fprintf(out, "Checking database status (%s)...\n", db.Dialector.Name())

	for _, table := range storage.Tables() {
		name := tableName(db, table)
		if !db.Migrator().HasTable(table) {
			fmt.Fprintf(out, "❌ %s table does not exist\n", name)
			continue
		}

		var count int64
		if err := db.Model(table).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count %s: %w", name, err)
		}
		fmt.Fprintf(out, "✅ %s table exists\n   - Contains %d records\n", name, count)
	}
	return nil
}

func tableName(db *gorm.DB, model any) string {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return fmt.Sprintf("%T", model)
	}
	return stmt.Schema.Table
}
