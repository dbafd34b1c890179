// Package cmd holds the marketctl operator commands: schema migrations,
// category sharing and offline backups.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/Skotchmaster/marketfeed/internal/archive"
	"github.com/Skotchmaster/marketfeed/pkg/db"
	"github.com/Skotchmaster/marketfeed/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:   "marketctl",
	Short: "Operator tooling for the marketfeed backend",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(logging.New(viper.GetString("log_level")))
	},
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	_ = godotenv.Load()

	// flags override DATABASE_URL style environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.SetDefault("db_driver", db.DriverPostgres)
	viper.SetDefault("archive_path", "data/archive.json")
	viper.SetDefault("log_level", "info")

	pf := rootCmd.PersistentFlags()
	pf.String("database-url", "", "database DSN (env DATABASE_URL)")
	pf.String("db-driver", db.DriverPostgres, "postgres or sqlite (env DB_DRIVER)")
	pf.String("archive-path", "data/archive.json", "archive side-store file (env ARCHIVE_PATH)")
	pf.String("log-level", "info", "debug, info, warn or error (env LOG_LEVEL)")
	for _, name := range []string{"database-url", "db-driver", "archive-path", "log-level"} {
		_ = viper.BindPFlag(strings.ReplaceAll(name, "-", "_"), pf.Lookup(name))
	}
}

func databaseURL() (string, error) {
	dsn := viper.GetString("database_url")
	if dsn == "" {
		return "", fmt.Errorf("database url is required: set --database-url or DATABASE_URL")
	}
	return dsn, nil
}

func openDB(ctx context.Context) (*gorm.DB, error) {
	dsn, err := databaseURL()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return db.Open(ctx, viper.GetString("db_driver"), dsn)
}

func closeDB(gdb *gorm.DB) {
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func archiveService(gdb *gorm.DB) *archive.ArchiveService {
	return &archive.ArchiveService{
		Store:  archive.NewFileStore(viper.GetString("archive_path"), nil, 30*time.Second),
		Snap:   &archive.Snapshotter{DB: gdb},
		Purger: archive.NewPurger(gdb),
	}
}
