package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/propest/internal/core/domain"
)

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newTable(cmd *cobra.Command) *tabwriter.Writer {
	return tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
}

func printSummary(cmd *cobra.Command, s *domain.RequestSummary) {
	cmd.Printf("Request:        %s\n", s.ID)
	cmd.Printf("Status:         %s\n", s.Status)
	cmd.Printf("Properties:     %d\n", s.Properties)
	cmd.Printf("Parameter sets: %d\n", s.ParameterSets)
	cmd.Printf("Tasks:          %d\n", s.Tasks)
	cmd.Printf("Created:        %s\n", s.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	cmd.Printf("Updated:        %s\n", s.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	if s.Error != "" {
		cmd.Printf("Error:          %s\n", s.Error)
	}
}

func printResult(cmd *cobra.Command, r *domain.EstimationResult) error {
	estimated := r.Estimated()
	cmd.Printf("Request %s: %d estimated, %d unsuccessful\n\n",
		r.RequestID, len(estimated), len(r.Properties)-len(estimated))

	tw := newTable(cmd)
	fmt.Fprintln(tw, "PROPERTY\tTYPE\tPARAMETER SET\tVALUE\tUNCERTAINTY\tLAYER\tSTATUS")
	for _, p := range r.Properties {
		value, uncertainty := "-", "-"
		if p.Succeeded() {
			value = p.Value.String()
			if !p.Uncertainty.IsZero() {
				uncertainty = p.Uncertainty.String()
			}
		}
		layer := p.Layer
		if layer == "" {
			layer = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.PropertyID, p.Type, p.ParameterSetID, value, uncertainty, layer, p.Status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	var failures []string
	for _, p := range r.Unsuccessful() {
		if p.Error != "" {
			failures = append(failures, fmt.Sprintf("  %s / %s: %s", p.PropertyID, p.ParameterSetID, p.Error))
		}
	}
	if len(failures) > 0 {
		cmd.Println("\nFailures:")
		cmd.Println(strings.Join(failures, "\n"))
	}
	if len(r.Exceptions) > 0 {
		cmd.Println("\nExceptions:")
		for _, e := range r.Exceptions {
			cmd.Printf("  %s\n", e)
		}
	}
	return nil
}
