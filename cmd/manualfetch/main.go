// Command manualfetch runs a single sync cycle from the command line.
// With --dry-run nothing is written to the database; every statement is
// printed as literal SQL instead.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"recon_sync/ingestion/internal/client"
	"recon_sync/ingestion/internal/config"
	"recon_sync/ingestion/internal/models"
	"recon_sync/ingestion/internal/query"
	"recon_sync/ingestion/internal/repository"
	"recon_sync/ingestion/internal/scheduler"
	"recon_sync/ingestion/internal/status"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manualfetch [teams|events...]",
		Short: "Fetch teams and events once and persist them",
		Long: `Run one fetch, transform and persist pass against the search index.

Without arguments every table enabled in the configuration is synced.
Naming tables on the command line syncs exactly those.`,
		SilenceUsage: true,
		RunE:         runFetch,
	}

	cmd.Flags().Bool("dry-run", false, "Print the SQL that would be executed to standard output")
	cmd.Flags().String("export-dir", "", "Also write <table>.json files to this directory")
	cmd.Flags().String("config", "", "Path to a YAML configuration file")

	return cmd
}

func runFetch(cmd *cobra.Command, args []string) error {
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return fmt.Errorf("failed to get dry-run flag: %w", err)
	}
	exportDir, err := cmd.Flags().GetString("export-dir")
	if err != nil {
		return fmt.Errorf("failed to get export-dir flag: %w", err)
	}
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}

	// Logs go to stderr so dry-run SQL on stdout stays clean
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if configPath != "" {
		if err := os.Setenv("CONFIG_FILE", configPath); err != nil {
			return fmt.Errorf("failed to set config path: %w", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if err := applyKinds(cfg, args); err != nil {
		return err
	}
	if exportDir != "" {
		cfg.ExportDir = exportDir
	}

	if cfg.SearchInsecureSkipVerify {
		log.Warn().Msg("TLS certificate verification is disabled for the search index")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	searchOpts, err := cfg.SearchOptions()
	if err != nil {
		return err
	}
	builder, err := query.NewSearchBuilder(searchOpts)
	if err != nil {
		return err
	}
	searchClient := client.NewClient(builder, client.Options{
		PageSize:           cfg.SyncPageSize,
		Timeout:            cfg.SearchTimeout,
		InsecureSkipVerify: cfg.SearchInsecureSkipVerify,
		MaxRetries:         cfg.SearchMaxRetries,
		RetryDelay:         cfg.SearchRetryDelay,
	})

	var sink scheduler.Persister
	if dryRun {
		sink = repository.NewDryRunSink(cmd.OutOrStdout(), cfg.Mode())
	} else {
		db, err := repository.NewDatabase(ctx, repository.Config{
			Host:     cfg.DatabaseHost,
			Port:     strconv.Itoa(cfg.DatabasePort),
			User:     cfg.DatabaseUser,
			Password: cfg.DatabasePassword,
			Database: cfg.DatabaseName,
			SSLMode:  cfg.DatabaseSSLMode,
		})
		if err != nil {
			return err
		}
		defer db.Close()
		sink = repository.NewSink(db.Pool, cfg.Mode())
	}

	sched, err := scheduler.NewScheduler(cfg, searchClient, sink, status.NewTracker())
	if err != nil {
		return err
	}

	report := sched.RunCycle(ctx)
	for _, b := range report.Batches {
		log.Info().
			Str("table", b.Table).
			Int("attempted", b.Attempted).
			Int("succeeded", b.Succeeded).
			Strs("failed_ids", b.FailedIDs()).
			Msg("Batch result")
	}

	if report.Err != nil {
		return fmt.Errorf("sync failed: %w", report.Err)
	}
	if report.Outcome == status.OutcomePartial {
		log.Warn().Msg("Some records were not saved")
	}
	return nil
}

// applyKinds restricts the sync to the tables named on the command line
func applyKinds(cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return nil
	}

	cfg.SyncTeams, cfg.SyncEvents = false, false
	for _, arg := range args {
		kind, err := models.ParseKind(arg)
		if err != nil {
			return err
		}
		switch kind {
		case models.KindTeam:
			cfg.SyncTeams = true
		case models.KindEvent:
			cfg.SyncEvents = true
		}
	}
	return nil
}
