// Command propest estimates physical properties of molecular systems with
// one or more force field parameter sets.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/propest/internal/adapters/driven/backend"
	"github.com/custodia-labs/propest/internal/adapters/driven/backend/local"
	"github.com/custodia-labs/propest/internal/adapters/driven/backend/remote"
	"github.com/custodia-labs/propest/internal/adapters/driven/config/file"
	"github.com/custodia-labs/propest/internal/adapters/driven/dataset"
	"github.com/custodia-labs/propest/internal/adapters/driven/estimator/workflow"
	"github.com/custodia-labs/propest/internal/adapters/driven/paramsource"
	"github.com/custodia-labs/propest/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/propest/internal/adapters/driving/cli"
	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/core/ports/driven"
	"github.com/custodia-labs/propest/internal/core/ports/driving"
	"github.com/custodia-labs/propest/internal/core/services"
	"github.com/custodia-labs/propest/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap wires the services for the home directory. An empty home uses
// ~/.propest.
func bootstrap(ctx context.Context, home string) (*cli.Services, func(), error) {
	configStore, err := file.NewConfigStore(home)
	if err != nil {
		return nil, nil, fmt.Errorf("open config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore)
	settings, err := settingsService.Get()
	if err != nil {
		return nil, nil, fmt.Errorf("load settings: %w", err)
	}

	dataDir, workflowsDir := "", settings.WorkflowsDir
	if home != "" {
		dataDir = filepath.Join(home, "data")
		if workflowsDir == "" {
			workflowsDir = filepath.Join(home, "workflows")
		}
	}

	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	logger.Debug("store: %s", store.Path())

	workflows, err := file.NewWorkflowDir(workflowsDir)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	loadWorkflows := func(domain.BackendConfig) ([]driven.Estimator, error) {
		if err := workflows.Ensure(); err != nil {
			return nil, err
		}
		return workflow.LoadEstimators(workflows.Dir(), "")
	}

	registry := backend.NewRegistry()
	registry.Register(domain.BackendLocal, local.Builder(loadWorkflows))
	registry.Register(domain.BackendRemote, remote.Builder())

	downloader := dataset.NewHTTPDownloader(nil)
	datasetService := services.NewDatasetService(downloader, dataset.Readers()...)
	parameterSetService := services.NewParameterSetService(parameterSetResolvers(ctx, settings, downloader)...)

	calcStore := store.CalculationStore()
	gateway := services.NewGateway(registry,
		services.NewStoredLayer(calcStore),
		services.NewBackendLayer(domain.LayerReweighting),
		services.NewBackendLayer(domain.LayerSimulation),
	)
	client := services.NewClient(settings.Backend, gateway, services.NewCollector(calcStore), store.RequestStore())

	schedulerConfig := settingsService.GetSchedulerConfig()
	scheduler := services.NewScheduler(schedulerConfig, store.SchedulerStore(), client, calcStore, settings.Storage.Retention)

	// "worker serve" always runs the local workflows, whatever backend.type says.
	workerFactory := func(ctx context.Context) (driving.JobRunner, error) {
		cfg := settings.Backend
		cfg.Type = domain.BackendLocal
		b, err := registry.Create(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return services.NewJobRunner(b), nil
	}

	cleanup := func() {
		client.Shutdown()
		if err := store.Close(); err != nil {
			logger.Warn("close store: %v", err)
		}
	}

	return &cli.Services{
		Estimator:       client,
		Datasets:        datasetService,
		ParameterSets:   parameterSetService,
		Settings:        settingsService,
		Scheduler:       scheduler,
		SchedulerConfig: schedulerConfig,
		Worker:          workerFactory,
	}, cleanup, nil
}

// parameterSetResolvers returns a resolver for every reference scheme the
// settings allow. gs:// is left out when no Google credentials are found.
func parameterSetResolvers(ctx context.Context, settings *domain.AppSettings, downloader driven.Downloader) []driven.ParameterSetResolver {
	resolvers := []driven.ParameterSetResolver{
		paramsource.NewFileResolver(),
		paramsource.NewHTTPResolver("http", downloader),
		paramsource.NewHTTPResolver("https", downloader),
		paramsource.NewGitHubResolver(ctx, settings.Sources.GitHubToken),
	}
	gcs, err := paramsource.NewGCSResolver(ctx, settings.Sources.GCSCredentialsFile)
	if err != nil {
		logger.Debug("gs:// parameter sets unavailable: %v", err)
		return resolvers
	}
	return append(resolvers, gcs)
}
