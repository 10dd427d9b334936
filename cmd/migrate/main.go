// Command migrate imports the JSON data files of the old single-process
// server into the configured store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"campushub/server/internal/bootstrap"
	"campushub/server/internal/config"
	"campushub/server/internal/legacy"
	"campushub/server/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	dataDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Import legacy JSON data into the configured store",
	Long: `migrate reads users.json, files.json, groups.json and chat.json from a
data directory and restores them into the store selected by STORE_DRIVER.
It reads the same environment (.env) as the API server.
Records that already exist are skipped, so the import can be repeated.

Uploaded files are not copied. Copy the old uploads directory into
UPLOAD_DIR (or the S3 bucket) so stored names keep resolving.

Example usage:
  STORE_DRIVER=postgres DATABASE_URL=postgres://... migrate --dir ./data`,
	RunE: run,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.Flags().StringVar(&dataDir, "dir", "data", "directory holding the legacy JSON files")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.StoreDriver == config.DriverMemory {
		return fmt.Errorf("STORE_DRIVER is %q, nothing would be kept", cfg.StoreDriver)
	}

	level := "info"
	if verbose {
		level = "debug"
	}
	log, err := logger.New(true, level)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	im := legacy.NewImporter(stores.Users, stores.Members, stores.Messages, stores.Catalog, log)
	report, err := im.ImportDir(ctx, dataDir)
	if err != nil {
		return err
	}

	log.Info("import finished",
		zap.String("dir", dataDir),
		zap.Int("users", report.Users),
		zap.Int("files", report.Files),
		zap.Int("groups", report.Groups),
		zap.Int("messages", report.Messages),
		zap.Int("skipped", report.Skipped))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
