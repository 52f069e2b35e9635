package cli

import (
	"errors"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/propest/internal/core/domain"
)

var datasetJSON bool

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Work with measured property datasets",
}

var datasetInspectCmd = &cobra.Command{
	Use:   "inspect [file-or-url]",
	Short: "Load and validate a dataset and summarise its contents",
	Args:  cobra.ExactArgs(1),
	RunE:  runDatasetInspect,
}

var datasetFormatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported dataset file formats",
	Args:  cobra.NoArgs,
	RunE:  runDatasetFormats,
}

func init() {
	datasetInspectCmd.Flags().BoolVar(&datasetJSON, "json", false, "print the loaded properties as JSON")
	datasetCmd.AddCommand(datasetInspectCmd)
	datasetCmd.AddCommand(datasetFormatsCmd)
	rootCmd.AddCommand(datasetCmd)
}

func runDatasetInspect(cmd *cobra.Command, args []string) error {
	if datasetService == nil {
		return errors.New("dataset service not configured")
	}
	dataset, err := loadDataset(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if datasetJSON {
		return printJSON(cmd, dataset.Properties())
	}

	cmd.Printf("Properties: %d\n", dataset.Len())

	counts := make(map[domain.PropertyType]int)
	for _, p := range dataset.Properties() {
		counts[p.Type]++
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, string(t))
	}
	sort.Strings(types)
	cmd.Println("\nBy type:")
	for _, t := range types {
		cmd.Printf("  %-24s %d\n", t, counts[domain.PropertyType(t)])
	}

	substances := dataset.Substances()
	cmd.Printf("\nSubstances: %d\n", len(substances))
	for _, s := range substances {
		cmd.Printf("  %s\n", s)
	}

	if sources := dataset.Sources(); len(sources) > 0 {
		cmd.Println("\nSources:")
		for _, s := range sources {
			ref := s.DOI
			if ref == "" {
				ref = s.Reference
			}
			cmd.Printf("  %s\n", ref)
		}
	}
	return nil
}

func runDatasetFormats(cmd *cobra.Command, _ []string) error {
	if datasetService == nil {
		return errors.New("dataset service not configured")
	}
	cmd.Println(strings.Join(datasetService.Formats(), " "))
	return nil
}
