package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"stop-importer/core/config"
	"stop-importer/core/database"
	"stop-importer/core/logger"
	"stop-importer/core/storage"
	"stop-importer/feature/stops"
	"stop-importer/feature/stops/feed"
	"stop-importer/feature/stops/gateway"

	"github.com/spf13/cobra"
)

var (
	// Flags for the import command
	feedFile           string
	fromStorage        bool
	invalidateStops    bool
	dryRunImport       bool
	skipImportance     bool
	importanceBaseline float64
	importanceServiced float64
	yesConfirm         bool
)

// importCmd runs one full import of the stop feed.
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the stop feed into the Nominatim database",
	Long: `Import a public transport stop feed (CSV, optionally gzip-compressed)
into the Nominatim database.

Mapped stops get their IFOPT identifier merged into the existing object.
Unmapped stops become artificial entries in a reserved id range; entries
whose feed record disappeared are deleted at the end of the run.

Examples:
  # Import from a local file
  stop-importer import --file zhv.csv.gz

  # Import the configured object from the storage bucket
  stop-importer import --from-storage

  # Report what would change without touching the database
  stop-importer import --file zhv.csv.gz --dry-run

  # Force reindexing of every touched stop (non-interactive)
  stop-importer import --file zhv.csv.gz --invalidate --yes`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&feedFile, "file", "", "Path of the stop feed (overrides IMPORTER_FILE)")
	importCmd.Flags().BoolVar(&fromStorage, "from-storage", false, "Read the feed from the storage bucket instead of the filesystem")
	importCmd.Flags().BoolVarP(&invalidateStops, "invalidate", "i", false, "Mark every touched stop for reindexing")
	importCmd.Flags().BoolVar(&dryRunImport, "dry-run", false, "Classify and report without mutating the database")
	importCmd.Flags().BoolVar(&skipImportance, "skip-importance", false, "Skip the importance pass")
	importCmd.Flags().Float64Var(&importanceBaseline, "importance-baseline", 0, "Baseline importance per station (overrides IMPORTER_IMPORTANCE_BASELINE)")
	importCmd.Flags().Float64Var(&importanceServiced, "importance-serviced", 0, "Maximum importance bonus for serviced lines (overrides IMPORTER_IMPORTANCE_SERVICED)")
	importCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm mutations (non-interactive)")

	RootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Flags override the environment
	if feedFile != "" {
		cfg.Importer.File = feedFile
	}
	if cmd.Flags().Changed("importance-baseline") {
		cfg.Importer.ImportanceBaseline = importanceBaseline
	}
	if cmd.Flags().Changed("importance-serviced") {
		cfg.Importer.ImportanceServiced = importanceServiced
	}

	// Initialize logger
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	source, err := feedSource(ctx, cfg)
	if err != nil {
		return err
	}

	l.Info("Starting stop import")

	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// A mutating run deletes stale artificial stops at the end; ask first
	// unless the caller opted out.
	if !dryRunImport && !confirmMutations() {
		l.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}

	service := stops.NewService(gateway.NewNominatim(db), source, l, cfg.Importer.DropSet())

	if _, err := service.Run(ctx, stops.RunOptions{
		Invalidate:         invalidateStops,
		DryRun:             dryRunImport,
		SkipImportance:     skipImportance,
		ImportanceBaseline: cfg.Importer.ImportanceBaseline,
		ImportanceServiced: cfg.Importer.ImportanceServiced,
	}); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	if dryRunImport {
		l.Info("Dry-run mode: No changes were made.")
	}

	return nil
}

// feedSource picks the feed source based on flags and configuration.
func feedSource(ctx context.Context, cfg *config.Config) (feed.Source, error) {
	if fromStorage {
		if cfg.Importer.Object == "" {
			return nil, fmt.Errorf("--from-storage requires IMPORTER_OBJECT to be set")
		}
		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to storage: %w", err)
		}
		// Fail before touching the database when the bucket is unreachable.
		exists, err := client.BucketExists(ctx, cfg.Storage.Bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to check feed bucket %q: %w", cfg.Storage.Bucket, err)
		}
		if !exists {
			return nil, fmt.Errorf("feed bucket %q does not exist", cfg.Storage.Bucket)
		}
		return feed.ObjectSource{Client: client, Bucket: cfg.Storage.Bucket, Object: cfg.Importer.Object}, nil
	}

	if cfg.Importer.File == "" {
		return nil, fmt.Errorf("no feed configured: pass --file or set IMPORTER_FILE")
	}
	return feed.FileSource{Path: cfg.Importer.File}, nil
}

// confirmMutations prompts the user for confirmation or uses --yes flag.
func confirmMutations() bool {
	if yesConfirm {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Print("\n⚠️  Type 'yes' to confirm database mutations: ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(response)
	return response == "yes"
}
