package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/propest/internal/adapters/driving/worker"
	"github.com/custodia-labs/propest/internal/logger"
)

// DefaultWorkerAddr is the address "worker serve" listens on by default.
const DefaultWorkerAddr = ":8700"

var (
	workerAddr  string
	workerToken string
	workerRPS   float64
	workerBurst int
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run calculation jobs for remote clients",
}

var workerServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local backend over HTTP",
	Long: `Serves the workflows in the local workflows directory to remote clients.

Clients configured with backend.type = "remote" and backend.endpoint pointing
at this server send batches of jobs to POST /v1/jobs and receive one outcome
per job as newline-delimited JSON. GET /v1/capabilities reports the layers the
workflows cover, and GET /healthz is always open.

When --token is empty the backend.token setting is used; an empty token
accepts every client.`,
	Args: cobra.NoArgs,
	RunE: runWorkerServe,
}

func init() {
	workerServeCmd.Flags().StringVar(&workerAddr, "addr", DefaultWorkerAddr, "listen address")
	workerServeCmd.Flags().StringVar(&workerToken, "token", "", "bearer token clients must present")
	workerServeCmd.Flags().Float64Var(&workerRPS, "rps", 0, "job batches accepted per second (0 = unlimited)")
	workerServeCmd.Flags().IntVar(&workerBurst, "burst", 1, "job batches accepted at once when limited")
	workerCmd.AddCommand(workerServeCmd)
	rootCmd.AddCommand(workerCmd)
}

func runWorkerServe(cmd *cobra.Command, _ []string) error {
	if workerFactory == nil {
		return errors.New("worker backend not configured")
	}
	ctx := cmd.Context()

	token := workerToken
	if token == "" && settingsService != nil {
		t, err := settingsService.Value("backend.token")
		if err != nil {
			return fmt.Errorf("failed to get settings: %w", err)
		}
		token = t
	}

	runner, err := workerFactory(ctx)
	if err != nil {
		return fmt.Errorf("start local backend: %w", err)
	}
	defer func() {
		if cerr := runner.Close(); cerr != nil {
			logger.Warn("close backend: %v", cerr)
		}
	}()

	caps := runner.Capabilities()
	if len(caps.Layers) == 0 {
		logger.Warn("no workflows loaded: every job will be reported as unsupported")
	}
	server := worker.NewServer(runner, caps, worker.Config{
		Token:             token,
		RequestsPerSecond: workerRPS,
		Burst:             workerBurst,
	})

	logger.WithFields(logger.Fields{
		"addr":    workerAddr,
		"layers":  caps.Layers,
		"workers": caps.MaxWorkers,
		"auth":    token != "",
	}).Info("worker listening")
	fmt.Fprintf(cmd.OutOrStdout(), "Worker listening on %s\n", workerAddr)

	stop := startScheduler(ctx)
	defer stop()

	return server.Serve(ctx, workerAddr)
}
