// Package cli provides the propest command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driving"
	"github.com/custodia-labs/propest/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// WorkerFactory builds the local job runner served by "worker serve".
type WorkerFactory func(ctx context.Context) (driving.JobRunner, error)

// Services holds the driving ports the commands call.
type Services struct {
	Estimator       driving.PropertyEstimator
	Datasets        driving.DatasetService
	ParameterSets   driving.ParameterSetService
	Settings        driving.SettingsService
	Scheduler       driving.Scheduler
	SchedulerConfig domain.SchedulerConfig
	Worker          WorkerFactory
}

// Bootstrap wires the services for a propest home directory once flags are
// parsed. The returned function releases them.
type Bootstrap func(ctx context.Context, home string) (*Services, func(), error)

var (
	estimator           driving.PropertyEstimator
	datasetService      driving.DatasetService
	parameterSetService driving.ParameterSetService
	settingsService     driving.SettingsService
	scheduler           driving.Scheduler
	schedulerConfig     domain.SchedulerConfig
	workerFactory       WorkerFactory

	bootstrap Bootstrap
	cleanup   func()
)

var (
	verbose  bool
	logLevel string
	homeDir  string
)

var rootCmd = &cobra.Command{
	Use:   "propest",
	Short: "Estimate physical properties with multi-fidelity calculation layers",
	Long: `propest estimates measured physical properties (densities, dielectric
constants, enthalpies of mixing and vaporisation, excess molar volumes) for one
or more force field parameter sets.

Each property is tried against the configured calculation layers in order:
stored results, reweighting of existing simulations, then new simulations.
Exactly one computed property is returned per property and parameter set, in
the unit the property was measured in.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "propest home directory (default ~/.propest)")
}

// SetVersion sets the version reported by "propest version".
func SetVersion(v string) {
	version = v
}

// SetBootstrap sets the function that wires services before a command runs.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetServices installs the driving ports used by the commands.
func SetServices(s *Services) {
	if s == nil {
		return
	}
	estimator = s.Estimator
	datasetService = s.Datasets
	parameterSetService = s.ParameterSets
	settingsService = s.Settings
	scheduler = s.Scheduler
	schedulerConfig = s.SchedulerConfig
	workerFactory = s.Worker
}

// setup configures logging and wires services.
func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if logLevel != "" {
		if err := logger.SetLevel(logLevel); err != nil {
			return err
		}
	}

	if bootstrap == nil || cmd == versionCmd {
		return nil
	}
	services, release, err := bootstrap(cmd.Context(), homeDir)
	if err != nil {
		return fmt.Errorf("initialise: %w", err)
	}
	SetServices(services)
	cleanup = release
	return nil
}

// Execute runs the root command. Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer func() {
		if cleanup != nil {
			cleanup()
			cleanup = nil
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

// startScheduler runs the background scheduler for long-running commands.
// The returned function stops it.
func startScheduler(ctx context.Context) func() {
	if scheduler == nil || !schedulerConfig.Enabled {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("scheduler stopped: %v", err)
		}
	}()
	return func() {
		cancel()
		if err := scheduler.Stop(); err != nil {
			logger.Warn("scheduler stop: %v", err)
		}
	}
}

func requireEstimator() error {
	if estimator == nil {
		return errors.New("estimator not configured")
	}
	return nil
}
