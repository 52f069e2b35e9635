package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/propest/internal/core/domain"
	"github.com/custodia-labs/propest/internal/logger"
)

var (
	estimateParameterSets []string
	estimateLayers        []string
	estimateTolerance     float64
	estimateWorkers       int
	estimateNoMerge       bool
	estimatePoll          time.Duration
	estimateJSON          bool
)

var estimateCmd = &cobra.Command{
	Use:   "estimate [dataset]",
	Short: "Estimate a dataset with one or more parameter sets",
	Long: `Estimates every property of a dataset with every given parameter set and
prints one computed property per pair, in the unit the property was measured in.

The dataset is a local JSON, YAML or CSV file, or an http(s) URL. Parameter
sets are file paths or file://, http(s)://, github://owner/repo/path[@ref]
and gs://bucket/object references.

Examples:
  propest estimate water.json -p openff-2.0.0.offxml
  propest estimate mixtures.csv -p github://openforcefield/openff-forcefields/openforcefields/offxml/openff-2.1.0.offxml \
      -p gs://my-bucket/candidate.offxml --layer stored --layer simulation`,
	Args: cobra.ExactArgs(1),
	RunE: runEstimate,
}

func init() {
	estimateCmd.Flags().StringArrayVarP(&estimateParameterSets, "parameter-set", "p", nil, "parameter set reference (repeatable)")
	estimateCmd.Flags().StringSliceVarP(&estimateLayers, "layer", "l", nil, "calculation layers to try, in order (default from settings)")
	estimateCmd.Flags().Float64Var(&estimateTolerance, "tolerance", 0, "relative uncertainty tolerance (default from settings)")
	estimateCmd.Flags().IntVar(&estimateWorkers, "workers", 0, "concurrent jobs hint (0 = backend default)")
	estimateCmd.Flags().BoolVar(&estimateNoMerge, "no-merge", false, "disable protocol merging")
	estimateCmd.Flags().DurationVar(&estimatePoll, "poll", time.Second, "status poll interval")
	estimateCmd.Flags().BoolVar(&estimateJSON, "json", false, "output the result as JSON")
	_ = estimateCmd.MarkFlagRequired("parameter-set")
	rootCmd.AddCommand(estimateCmd)
}

func runEstimate(cmd *cobra.Command, args []string) error {
	if err := requireEstimator(); err != nil {
		return err
	}
	if datasetService == nil || parameterSetService == nil {
		return errors.New("dataset and parameter set services not configured")
	}
	ctx := cmd.Context()

	dataset, err := loadDataset(ctx, args[0])
	if err != nil {
		return err
	}
	sets, err := parameterSetService.Resolve(ctx, estimateParameterSets...)
	if err != nil {
		return fmt.Errorf("resolve parameter sets: %w", err)
	}
	opts, err := estimateOptions(cmd)
	if err != nil {
		return err
	}

	id, err := estimator.Submit(ctx, dataset, sets, opts)
	if err != nil {
		return fmt.Errorf("submit request: %w", err)
	}
	logger.Info("submitted request %s: %d properties x %d parameter sets", id, dataset.Len(), len(sets))

	result, err := waitWithProgress(ctx, cmd, id, estimatePoll)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			if cerr := estimator.Cancel(context.WithoutCancel(ctx), id); cerr != nil {
				logger.Warn("cancel request %s: %v", id, cerr)
			}
		}
		return err
	}
	if estimateJSON {
		return printJSON(cmd, result)
	}
	return printResult(cmd, result)
}

// estimateOptions starts from the configured defaults and applies the flags
// that were set.
func estimateOptions(cmd *cobra.Command) (domain.RequestOptions, error) {
	opts, err := defaultOptions()
	if err != nil {
		return opts, err
	}

	flags := cmd.Flags()
	if flags.Changed("layer") {
		opts.Layers = estimateLayers
	}
	if flags.Changed("tolerance") {
		opts.RelativeUncertaintyTolerance = estimateTolerance
	}
	if flags.Changed("workers") {
		opts.Workers = estimateWorkers
	}
	if estimateNoMerge {
		opts.AllowProtocolMerging = false
	}
	return opts.Normalise()
}

// defaultOptions returns the request options configured in settings.
func defaultOptions() (domain.RequestOptions, error) {
	if settingsService == nil {
		return domain.DefaultRequestOptions(), nil
	}
	settings, err := settingsService.Get()
	if err != nil {
		return domain.RequestOptions{}, fmt.Errorf("failed to get settings: %w", err)
	}
	return settings.Estimation.Options(), nil
}

func loadDataset(ctx context.Context, ref string) (*domain.PhysicalPropertyDataSet, error) {
	var (
		dataset *domain.PhysicalPropertyDataSet
		err     error
	)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		dataset, err = datasetService.LoadURL(ctx, ref)
	} else {
		dataset, err = datasetService.LoadFile(ref)
	}
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	return dataset, nil
}

// waitWithProgress polls a request until it finishes. On a terminal the
// status is redrawn in place.
func waitWithProgress(ctx context.Context, cmd *cobra.Command, id string, poll time.Duration) (*domain.EstimationResult, error) {
	if poll <= 0 {
		poll = time.Second
	}
	interactive := isTerminal(cmd.ErrOrStderr())
	started := time.Now()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		summary, err := estimator.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		if interactive {
			fmt.Fprintf(cmd.ErrOrStderr(), "\r%s: %s (%d tasks, %s)   ",
				id, summary.Status, summary.Tasks, time.Since(started).Round(time.Second))
		}
		if summary.Status.IsTerminal() {
			if interactive {
				fmt.Fprintln(cmd.ErrOrStderr())
			}
			switch summary.Status {
			case domain.RequestFailed:
				return nil, fmt.Errorf("request %s failed: %s", id, summary.Error)
			case domain.RequestCancelled:
				return nil, fmt.Errorf("request %s was cancelled", id)
			}
			return estimator.Result(ctx, id)
		}

		select {
		case <-ctx.Done():
			if interactive {
				fmt.Fprintln(cmd.ErrOrStderr())
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
