package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"doc-migrator/internal/config"
	"doc-migrator/internal/indexer"
	"doc-migrator/internal/logging"
	"doc-migrator/internal/migrate"
	"doc-migrator/internal/reconcile"
	"doc-migrator/internal/report"
	"doc-migrator/internal/source"
	"doc-migrator/internal/target"
	"doc-migrator/internal/util"

	"github.com/spf13/cobra"
)

// Define common application-level errors.
var (
	ErrUsage          = errors.New("usage error")
	ErrConfigNotFound = errors.New("configuration file not found")
)

// DefaultConfigFile is read when --config is not given. It may be absent.
const DefaultConfigFile = "config/migrator.yaml"

// --- Factory Variables (Allow Overriding for Testing) ---
var (
	newSourceStoreFunc = newSourceStore
	newTargetStoreFunc = newTargetStore

	osStatFunc = os.Stat
)

func newSourceStore(ctx context.Context, cfg *config.Config) (source.Store, error) {
	if cfg.Source.Type == config.SourceTypeFile {
		fs, err := source.NewFileStore(cfg.Source.Dir)
		if err != nil {
			return nil, err
		}
		return fs, nil
	}
	ms, err := source.NewMongoStore(ctx, cfg.Source.URI, cfg.Source.Database, cfg.Target.ConnectTimeout)
	if err != nil {
		return nil, err
	}
	return ms, nil
}

func newTargetStore(ctx context.Context, cfg *config.Config) (target.Store, error) {
	ps, err := target.NewPostgresStore(ctx, cfg.Target.URI, cfg.Target.ConnectTimeout)
	if err != nil {
		return nil, err
	}
	return ps, nil
}

// globalOptions holds the persistent flag values.
type globalOptions struct {
	configFile string
	sourceURI  string
	sourceDir  string
	sourceDB   string
	targetURI  string
	batchSize  int
	logLevel   string
	reportFile string
	dryRun     bool
}

// AppRunner encapsulates the application's execution logic.
type AppRunner struct {
	opts globalOptions
}

// NewAppRunner creates a new instance of the application runner.
func NewAppRunner() *AppRunner {
	return &AppRunner{}
}

// Usage prints the command-line help information to the specified writer.
func (a *AppRunner) Usage(w io.Writer) {
	cmd := a.Command()
	cmd.SetOut(w)
	_ = cmd.Usage()
}

// Run executes the command line in args.
func (a *AppRunner) Run(args []string) error {
	return a.RunContext(context.Background(), args)
}

// RunContext executes the command line in args under ctx.
func (a *AppRunner) RunContext(ctx context.Context, args []string) error {
	cmd := a.Command()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// Command builds the root command with its subcommands.
func (a *AppRunner) Command() *cobra.Command {
	a.opts = globalOptions{}
	root := &cobra.Command{
		Use:   "doc-migrator",
		Short: "Migrate user and finance documents from MongoDB into Postgres",
		Long: `doc-migrator copies documents from MongoDB (or a mongoexport dump) into
Postgres. Every record keeps its source id, so re-running skips what is
already migrated. References to missing records are nulled or the record is
dropped; nothing dangling is committed.

Environment Variables:
  MONGODB_URL    MongoDB connection string (overridden by --source)
  MONGO_DB       MongoDB database name (overridden by --source-db)
  POSTGRES_URL   Postgres connection string (overridden by --target)
  BATCH_SIZE     Documents fetched per window (overridden by --batch-size)
  LOG_LEVEL      none, error, warn, info or debug (overridden by --loglevel)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.opts.configFile, "config", DefaultConfigFile, "YAML configuration file")
	pf.StringVar(&a.opts.sourceURI, "source", "", "MongoDB connection string")
	pf.StringVar(&a.opts.sourceDir, "source-dir", "", "Read mongoexport dumps from this directory instead of MongoDB")
	pf.StringVar(&a.opts.sourceDB, "source-db", "", "MongoDB database name")
	pf.StringVar(&a.opts.targetURI, "target", "", "Postgres connection string")
	pf.IntVar(&a.opts.batchSize, "batch-size", 0, "Documents fetched per window (default 100)")
	pf.StringVar(&a.opts.logLevel, "loglevel", "", "Logging level (none, error, warn, info, debug)")
	pf.StringVar(&a.opts.reportFile, "report", "", "Write failures and verification results to a .csv or .xlsx file")
	pf.BoolVar(&a.opts.dryRun, "dry-run", false, "Run every step but discard all writes")

	root.AddCommand(
		a.migrationCommand("users", "Migrate user profiles with roles, phone numbers, addresses and links", migrate.UserKinds, reconcile.UserChecks),
		a.migrationCommand("finance", "Migrate accounts, donations, transactions and expenses", migrate.FinanceKinds, reconcile.FinanceChecks),
		a.indexCommand(),
	)
	return root
}

type checksFunc func(config.CollectionsConfig, int) []reconcile.Check

func (a *AppRunner) migrationCommand(name, short string, kinds []string, checks checksFunc) *cobra.Command {
	var verifyOnly bool
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireTarget(); err != nil {
				return fmt.Errorf("%w: %v", ErrUsage, err)
			}
			return a.runMigration(cmd.Context(), cfg, kinds, checks, verifyOnly)
		},
	}
	cmd.Flags().BoolVar(&verifyOnly, "verify", false, "Only verify an earlier migration")
	return cmd
}

func (a *AppRunner) indexCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "index-documents",
		Short: "Map uploaded documents to their donations, expenses and transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			return a.runIndexer(cmd.Context(), cfg)
		},
	}
}

// loadConfig resolves the effective configuration from the config file,
// environment and flags, and configures logging from it.
func (a *AppRunner) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	logging.SetupLogging(firstNonEmpty(a.opts.logLevel, util.FirstEnv(config.EnvLogLevel), config.DefaultLogLevel))

	configFile := a.opts.configFile
	if _, err := osStatFunc(configFile); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file '%s': %w", configFile, err)
		}
		if cmd.Flags().Changed("config") {
			logging.Logf(logging.Error, "Config file '%s' not found.", configFile)
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configFile)
		}
		logging.Logf(logging.Debug, "No config file at '%s'; using defaults and environment.", configFile)
		configFile = ""
	}

	overrides := config.Overrides{
		LogLevel:       a.opts.logLevel,
		SourceURI:      a.opts.sourceURI,
		SourceDatabase: a.opts.sourceDB,
		SourceDir:      a.opts.sourceDir,
		TargetURI:      a.opts.targetURI,
		BatchSize:      a.opts.batchSize,
		ReportFile:     a.opts.reportFile,
	}
	if cmd.Flags().Changed("dry-run") {
		overrides.DryRun = &a.opts.dryRun
	}
	cfg, err := config.Resolve(configFile, overrides)
	if err != nil {
		logging.Logf(logging.Error, "Error loading/validating config: %v", err)
		return nil, err
	}
	logging.SetupLogging(cfg.Logging.Level)
	if configFile != "" {
		logging.Logf(logging.Info, "Using config: %s", configFile)
	}
	return cfg, nil
}

// runMigration migrates kinds unless verifyOnly is set, then reconciles them.
func (a *AppRunner) runMigration(ctx context.Context, cfg *config.Config, kinds []string, checks checksFunc, verifyOnly bool) error {
	src, dst, err := a.connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStores(src, dst)

	var summary *migrate.Summary
	if !verifyOnly {
		m, err := migrate.New(src, dst, migrate.Options{
			BatchSize:   cfg.Migration.BatchSize,
			Collections: cfg.Source.Collections,
			Filters:     cfg.Migration.Filters,
		})
		if err != nil {
			return err
		}
		var runErr error
		summary, runErr = m.Run(ctx, kinds...)
		summary.Log()
		if runErr != nil {
			a.export(cfg, summary, nil)
			return runErr
		}
	}

	rep := reconcile.New(src, dst).Run(ctx, checks(cfg.Source.Collections, cfg.Verify.SampleSize))
	rep.Log()
	a.export(cfg, summary, &rep)

	if ov, ok := dst.(*target.Overlay); ok {
		for _, k := range rep.Kinds {
			logging.Logf(logging.Info, "DRY RUN: %d %s rows would be written.", ov.Pending(ctx, k.Table), k.Table)
		}
	}
	return nil
}

func (a *AppRunner) runIndexer(ctx context.Context, cfg *config.Config) error {
	src, err := newSourceStoreFunc(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open source store: %w", err)
	}
	defer func() {
		if err := src.Close(context.Background()); err != nil {
			logging.Logf(logging.Error, "Failed to close source store: %v", err)
		}
	}()
	if cfg.Migration.DryRun {
		logging.Logf(logging.Info, "DRY RUN: mappings and watermark will not be written.")
	}
	_, err = indexer.New(src, cfg.Indexer, cfg.Migration.DryRun).Run(ctx)
	return err
}

// connect opens both stores. In dry-run mode the target is wrapped in an
// overlay that keeps every write in memory.
func (a *AppRunner) connect(ctx context.Context, cfg *config.Config) (source.Store, target.Store, error) {
	src, err := newSourceStoreFunc(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open source store: %w", err)
	}
	dst, err := newTargetStoreFunc(ctx, cfg)
	if err != nil {
		_ = src.Close(context.Background())
		return nil, nil, fmt.Errorf("failed to open target store: %w", err)
	}
	if cfg.Migration.DryRun {
		logging.Logf(logging.Info, "DRY RUN: target writes are kept in memory and discarded.")
		dst = target.NewOverlay(dst)
	}
	return src, dst, nil
}

func closeStores(src source.Store, dst target.Store) {
	if err := src.Close(context.Background()); err != nil {
		logging.Logf(logging.Error, "Failed to close source store: %v", err)
	}
	dst.Close()
	logging.Logf(logging.Debug, "Stores closed.")
}

// export writes the remediation report when one is configured. Failures to
// write it are logged; they do not change the run's outcome.
func (a *AppRunner) export(cfg *config.Config, summary *migrate.Summary, rep *reconcile.Report) {
	if cfg.Report.File == "" {
		return
	}
	if err := report.Export(cfg.Report.File, summary, rep); err != nil {
		logging.Logf(logging.Error, "Failed to write report '%s': %v", cfg.Report.File, err)
		return
	}
	logging.Logf(logging.Info, "Report written to %s", cfg.Report.File)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
