package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	requestJSON bool
	requestPoll time.Duration
)

var requestCmd = &cobra.Command{
	Use:     "request",
	Aliases: []string{"requests"},
	Short:   "Inspect and manage estimation requests",
}

var requestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List requests, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRequestList,
}

var requestStatusCmd = &cobra.Command{
	Use:   "status [request-id]",
	Short: "Show the status of a request",
	Args:  cobra.ExactArgs(1),
	RunE:  runRequestStatus,
}

var requestResultCmd = &cobra.Command{
	Use:   "result [request-id]",
	Short: "Show the computed properties of a finished request",
	Args:  cobra.ExactArgs(1),
	RunE:  runRequestResult,
}

var requestWaitCmd = &cobra.Command{
	Use:   "wait [request-id]",
	Short: "Wait for a request to finish and show its result",
	Args:  cobra.ExactArgs(1),
	RunE:  runRequestWait,
}

var requestCancelCmd = &cobra.Command{
	Use:   "cancel [request-id]",
	Short: "Cancel a queued or running request",
	Args:  cobra.ExactArgs(1),
	RunE:  runRequestCancel,
}

func init() {
	requestCmd.PersistentFlags().BoolVar(&requestJSON, "json", false, "output as JSON")
	requestWaitCmd.Flags().DurationVar(&requestPoll, "poll", time.Second, "status poll interval")

	requestCmd.AddCommand(requestListCmd)
	requestCmd.AddCommand(requestStatusCmd)
	requestCmd.AddCommand(requestResultCmd)
	requestCmd.AddCommand(requestWaitCmd)
	requestCmd.AddCommand(requestCancelCmd)
	rootCmd.AddCommand(requestCmd)
}

func runRequestList(cmd *cobra.Command, _ []string) error {
	if err := requireEstimator(); err != nil {
		return err
	}
	requests, err := estimator.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list requests: %w", err)
	}
	if requestJSON {
		return printJSON(cmd, requests)
	}
	if len(requests) == 0 {
		cmd.Println("No requests.")
		return nil
	}

	tw := newTable(cmd)
	fmt.Fprintln(tw, "ID\tSTATUS\tPROPERTIES\tPARAMETER SETS\tTASKS\tCREATED")
	for _, r := range requests {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n", r.ID, r.Status, r.Properties, r.ParameterSets, r.Tasks,
			r.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func runRequestStatus(cmd *cobra.Command, args []string) error {
	if err := requireEstimator(); err != nil {
		return err
	}
	summary, err := estimator.Status(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get request: %w", err)
	}
	if requestJSON {
		return printJSON(cmd, summary)
	}
	printSummary(cmd, summary)
	return nil
}

func runRequestResult(cmd *cobra.Command, args []string) error {
	if err := requireEstimator(); err != nil {
		return err
	}
	result, err := estimator.Result(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get result: %w", err)
	}
	if requestJSON {
		return printJSON(cmd, result)
	}
	return printResult(cmd, result)
}

func runRequestWait(cmd *cobra.Command, args []string) error {
	if err := requireEstimator(); err != nil {
		return err
	}
	result, err := waitWithProgress(cmd.Context(), cmd, args[0], requestPoll)
	if err != nil {
		return err
	}
	if requestJSON {
		return printJSON(cmd, result)
	}
	return printResult(cmd, result)
}

func runRequestCancel(cmd *cobra.Command, args []string) error {
	if err := requireEstimator(); err != nil {
		return err
	}
	if err := estimator.Cancel(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to cancel request: %w", err)
	}
	cmd.Printf("Request %s cancelled.\n", args[0])
	return nil
}
