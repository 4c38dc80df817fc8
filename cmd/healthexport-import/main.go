package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/healthexport/internal/app"
	"github.com/claude/healthexport/internal/config"
	"github.com/claude/healthexport/internal/importer"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	path := flag.String("path", "", "export.xml, export.zip, or a directory of exports (required)")
	userID := flag.String("user", "", "user the data belongs to (required)")
	dryRun := flag.Bool("dry-run", false, "parse and count without writing to the database")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *path == "" || *userID == "" {
		fmt.Fprintf(os.Stderr, "Usage: healthexport-import -config config.yaml -user <id> -path <export> [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	ctx := context.Background()
	var imp *importer.Importer

	if *dryRun {
		log.Info("DRY RUN mode, no data will be written to the database")
		imp = importer.New(nil, log, true)
	} else {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		if err := app.Migrate(cfg); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		a, err := app.New(ctx, cfg, log)
		if err != nil {
			log.Error("startup failed", "error", err)
			os.Exit(1)
		}
		defer a.Close()
		imp = importer.New(a.Provider, log, false)
	}

	stats, err := imp.Import(ctx, *path, *userID)
	if err != nil {
		log.Error("import failed", "error", err)
		printStats(log, stats)
		os.Exit(1)
	}

	printStats(log, stats)
	log.Info("import complete")
}

func printStats(log *slog.Logger, stats *importer.Stats) {
	log.Info("import stats",
		"files_processed", stats.FilesProcessed,
		"files_skipped", stats.FilesSkipped,
		"files_errored", stats.FilesErrored,
		"records", stats.RecordsInserted,
		"documents", stats.DocumentsStored,
		"heart_rates", stats.HeartRates,
		"energy", stats.EnergyData,
		"workouts", stats.Workouts,
		"sleep", stats.Sleep,
		"steps", stats.Steps,
		"distances", stats.Distances,
		"vitals", stats.Vitals,
		"skipped_records", stats.Skipped,
		"unrecognized", stats.Unrecognized,
	)
	if len(stats.UploadIDs) > 0 {
		log.Info("current upload", "upload_id", stats.UploadIDs[len(stats.UploadIDs)-1])
	}
}
