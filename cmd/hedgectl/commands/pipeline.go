package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/contracts"
	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/internal/pipeline"
)

// pipelineCmd represents the pipeline command
var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run and inspect daily snapshot pipeline runs",
	Long: `Drives the daily snapshot pipeline over the hedge book.

A run is identified by the hash of its inputs (as-of date, pipeline
version, scope filters, mode, exports policy). Re-running the same
inputs returns the existing run instead of recomputing; a failed run
stays failed until resumed explicitly.

Subcommands:
  run     - execute the pipeline for an as-of date
  resume  - re-execute a failed run from its first failed step
  status  - show a run by id
  lookup  - show a run by inputs hash

Example:
  go run ./cmd/hedgectl pipeline run --as-of 2026-01-16
  go run ./cmd/hedgectl pipeline run --as-of 2026-01-16 --mode dry_run
  go run ./cmd/hedgectl pipeline run --counterparty Glencore --no-exports
  go run ./cmd/hedgectl pipeline resume 7b0d5cf0-4a9e-4a75-9f0e-2f6d1c1f9a11`,
}

var (
	runAsOf         string
	runMode         string
	runNoExports    bool
	runCounterparty string
	runSymbol       string
	runContracts    []string
	runRequestedBy  string
	runShowEvents   bool

	pipelineRunCmd = &cobra.Command{
		Use:   "run",
		Short: "Execute the pipeline for an as-of date",
		RunE:  runPipeline,
	}

	pipelineResumeCmd = &cobra.Command{
		Use:   "resume [run_id]",
		Short: "Re-execute a failed run from its first failed step",
		Args:  cobra.ExactArgs(1),
		RunE:  resumeRun,
	}

	pipelineStatusCmd = &cobra.Command{
		Use:   "status [run_id]",
		Short: "Show a run by id",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	pipelineLookupCmd = &cobra.Command{
		Use:   "lookup [inputs_hash]",
		Short: "Show a run by inputs hash",
		Args:  cobra.ExactArgs(1),
		RunE:  lookupRun,
	}
)

func init() {
	rootCmd.AddCommand(pipelineCmd)
	pipelineCmd.AddCommand(pipelineRunCmd)
	pipelineCmd.AddCommand(pipelineResumeCmd)
	pipelineCmd.AddCommand(pipelineStatusCmd)
	pipelineCmd.AddCommand(pipelineLookupCmd)

	pipelineRunCmd.Flags().StringVar(&runAsOf, "as-of", "", "as-of date (YYYY-MM-DD, default today)")
	pipelineRunCmd.Flags().StringVar(&runMode, "mode", "materialize", "materialize or dry_run")
	pipelineRunCmd.Flags().BoolVar(&runNoExports, "no-exports", false, "skip the exports step")
	pipelineRunCmd.Flags().StringVar(&runCounterparty, "counterparty", "", "limit scope to one counterparty")
	pipelineRunCmd.Flags().StringVar(&runSymbol, "symbol", "", "limit scope to one symbol")
	pipelineRunCmd.Flags().StringSliceVar(&runContracts, "contract", nil, "limit scope to specific contract ids")
	pipelineRunCmd.Flags().StringVar(&runRequestedBy, "requested-by", "cli", "who requested the run")

	pipelineStatusCmd.Flags().BoolVar(&runShowEvents, "events", false, "include lifecycle events")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	asOf := contracts.Day(time.Now().UTC())
	if runAsOf != "" {
		parsed, err := time.Parse(contracts.DateOnly, runAsOf)
		if err != nil {
			return fmt.Errorf("invalid --as-of %q: %w", runAsOf, err)
		}
		asOf = parsed
	}

	filters := map[string]interface{}{}
	if runCounterparty != "" {
		filters["counterparty"] = runCounterparty
	}
	if runSymbol != "" {
		filters["symbol"] = runSymbol
	}
	if len(runContracts) > 0 {
		filters["contract_ids"] = runContracts
	}

	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.pipeline.Execute(cmd.Context(), pipeline.ExecuteRequest{
		AsOfDate:        asOf,
		PipelineVersion: app.cfg.Pipeline.Version,
		ScopeFilters:    filters,
		Mode:            contracts.RunMode(runMode),
		EmitExports:     !runNoExports,
		RequestedBy:     runRequestedBy,
	})
	if err != nil {
		return err
	}

	if res.DryRun != nil {
		return printDryRun(res.DryRun)
	}
	printRun(res.Run)
	if res.Run.Status == contracts.RunFailed {
		return fmt.Errorf("run %s failed: %s", res.Run.RunID, res.Run.ErrorMessage)
	}
	return nil
}

func resumeRun(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	run, err := app.pipeline.Resume(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	printRun(run)
	if run.Status == contracts.RunFailed {
		return fmt.Errorf("run %s failed again: %s", run.RunID, run.ErrorMessage)
	}
	return nil
}

func showRun(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	run, err := app.pipeline.GetRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", args[0])
	}

	printRun(run)

	if runShowEvents {
		events, err := app.timeline.ListBySubject(cmd.Context(), fmt.Sprintf("pipeline_run:%s", run.RunID))
		if err != nil {
			return err
		}
		fmt.Println("Events:")
		for _, ev := range events {
			fmt.Printf("  %s  %s\n", ev.OccurredAt.Format(time.RFC3339), ev.EventType)
		}
	}
	return nil
}

func lookupRun(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	run, err := app.pipeline.LookupByHash(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if run == nil {
		fmt.Printf("No run exists for inputs hash %s\n", args[0])
		return nil
	}

	printRun(run)
	return nil
}

func printRun(run *pipeline.MaterializeResult) {
	fmt.Printf("Run:         %s\n", run.RunID)
	fmt.Printf("Inputs hash: %s\n", run.InputsHash)
	fmt.Printf("Status:      %s", run.Status)
	if run.Reused {
		fmt.Print("  (reused, nothing recomputed)")
	}
	fmt.Println()
	if run.ErrorCode != "" {
		fmt.Printf("Error:       [%s] %s\n", run.ErrorCode, run.ErrorMessage)
	}

	fmt.Println("\nSteps:")
	for _, st := range run.Steps {
		line := fmt.Sprintf("  %-24s %s", st.Name, st.Status)
		if st.ErrorCode != "" {
			line += "  [" + st.ErrorCode + "]"
		}
		fmt.Println(line)
	}
}

func printDryRun(preview *pipeline.DryRunResult) error {
	fmt.Printf("Dry run for %s\n", preview.AsOfDate.Format(contracts.DateOnly))
	fmt.Printf("Inputs hash: %s  (nothing was written)\n", preview.InputsHash)
	fmt.Printf("In scope:    %d active, %d settled\n\n",
		len(preview.ActiveContracts), len(preview.SettledContracts))

	out, err := json.MarshalIndent(preview, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
