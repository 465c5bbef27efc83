package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/bandmap/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string
}

// testSummary is the outcome of a scenario run.
type testSummary struct {
	Passed  int               `json:"passed" yaml:"passed"`
	Failed  int               `json:"failed" yaml:"failed"`
	Results []*harness.Result `json:"results" yaml:"results"`
}

// Text lists each scenario with its failures.
func (s *testSummary) Text() string {
	var b strings.Builder
	for _, r := range s.Results {
		mark := "PASS"
		if !r.Pass {
			mark = "FAIL"
		}
		fmt.Fprintf(&b, "%s %s (status %d)\n", mark, r.Name, r.Status)
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "    %s\n", e)
		}
	}
	fmt.Fprintf(&b, "%d passed, %d failed", s.Passed, s.Failed)
	return b.String()
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run YAML request scenarios against the configured database",
		Long: `Load every *.yaml scenario in a directory, serve each request in
process and check the expected status, totals, ids and assertions.

Exits 1 when any scenario fails.`,
		Example: `  bandmap test ./scenarios
  bandmap test ./scenarios --filter 'band_*'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose name matches this glob")
	return cmd
}

func runTest(cmd *cobra.Command, opts *TestOptions, dir string) error {
	scenarios, err := harness.LoadDir(dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}
	if len(scenarios) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no scenarios found in %s", dir))
	}

	s, err := openStack(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	out := opts.formatter(cmd)
	out.VerboseLog("Running %d scenarios from %s", len(scenarios), dir)

	results, err := harness.RunAll(cmd.Context(), s.server, scenarios)
	if err != nil {
		return WrapExitError(ExitFailure, "scenario run aborted", err)
	}

	summary := &testSummary{Results: results}
	for _, r := range results {
		if r.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	if err := out.Success(summary, ""); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", summary.Failed, len(results)))
	}
	return nil
}
