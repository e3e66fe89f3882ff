package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/floorheights/datamodel/internal/datamodel"
	"github.com/floorheights/datamodel/internal/db"
	"github.com/floorheights/datamodel/internal/ingest"
	"github.com/floorheights/datamodel/internal/logging"
)

var (
	logLevel  string
	logFormat string
)

// Execute runs the CLI and exits non-zero on any fatal condition.
func Execute() {
	if err := RootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// RootCommand assembles the fh command tree.
func RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "fh",
		Short: "Floor heights data model toolchain",
		Long: `fh ingests address registries, building footprints, elevation rasters
and floor height measurement deliveries into a shared PostGIS store,
associates them spatially, and exports the fused model.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "console", "console or json")

	root.AddCommand(
		initDBCommand(),
		addressesCommand(),
		buildingsCommand(),
		joinCommand(),
		nexisCommand(),
		validationCommand(),
		mainMethodCommand(),
		gapFillCommand(),
		imagesCommand(),
		exportCommand(),
	)
	return root
}

// runtime bundles the per-command handles: the logger, the locked
// database connection and the store built on it.
type runtime struct {
	log   *zap.Logger
	db    *db.DB
	store *datamodel.Store
}

// openRuntime loads .env, builds the logger, connects to the store and
// takes the command lock. Callers must close() it.
func openRuntime(ctx context.Context) (*runtime, error) {
	_ = godotenv.Load()

	log, err := logging.NewLogger(logLevel, logFormat)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	cfg, err := db.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	conn, err := db.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := conn.AcquireCommandLock(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return &runtime{log: log, db: conn, store: datamodel.NewStore(conn.Gorm, log)}, nil
}

func (r *runtime) writer() *datamodel.Writer {
	return datamodel.NewWriter(r.db.Gorm, r.log, datamodel.DefaultBatchSize)
}

func (r *runtime) close() {
	_ = r.db.Close()
	_ = r.log.Sync()
}

// runStoreCommand opens the runtime, runs one unit of work and prints
// its summary counts.
func runStoreCommand(cmd *cobra.Command, fn func(rt *runtime) (*ingest.Report, error)) error {
	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	report, err := fn(rt)
	if err != nil {
		return err
	}
	if report != nil {
		fmt.Println("Summary:")
		report.Print()
	}
	return nil
}
