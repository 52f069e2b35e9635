package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/propest/internal/adapters/driving/watcher"
	"github.com/custodia-labs/propest/internal/logger"
)

var (
	watchParameterSets []string
	watchLayers        []string
)

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Estimate datasets as they are written to a directory",
	Long: `Watches a directory and submits a request for every dataset file created
or rewritten in it, using the given parameter sets. Requests run in the
background; inspect them with "propest request list" or "propest tui".

Hidden files and files in unsupported formats are ignored. Runs until
interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringArrayVarP(&watchParameterSets, "parameter-set", "p", nil, "parameter set reference (repeatable)")
	watchCmd.Flags().StringSliceVarP(&watchLayers, "layer", "l", nil, "calculation layers to try, in order (default from settings)")
	_ = watchCmd.MarkFlagRequired("parameter-set")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := requireEstimator(); err != nil {
		return err
	}
	if datasetService == nil || parameterSetService == nil {
		return errors.New("dataset and parameter set services not configured")
	}
	ctx := cmd.Context()

	sets, err := parameterSetService.Resolve(ctx, watchParameterSets...)
	if err != nil {
		return fmt.Errorf("resolve parameter sets: %w", err)
	}
	opts, err := defaultOptions()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("layer") {
		opts.Layers = watchLayers
	}
	if opts, err = opts.Normalise(); err != nil {
		return err
	}

	w := watcher.New(args[0], datasetService.Formats())
	files, err := w.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch %s: %w", args[0], err)
	}
	defer w.Close()

	stop := startScheduler(ctx)
	defer stop()

	cmd.Printf("Watching %s for %v datasets. Press Ctrl+C to stop.\n", args[0], datasetService.Formats())
	for path := range files {
		dataset, err := datasetService.LoadFile(path)
		if err != nil {
			logger.Warn("skipping %s: %v", path, err)
			continue
		}
		id, err := estimator.Submit(ctx, dataset, sets, opts)
		if err != nil {
			logger.Warn("submit %s: %v", path, err)
			continue
		}
		cmd.Printf("%s -> request %s (%d properties)\n", path, id, dataset.Len())
	}
	return nil
}
