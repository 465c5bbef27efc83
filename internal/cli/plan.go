package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/bandmap/internal/engine"
)

// planResult lists the statements of one request.
type planResult struct {
	URL        string           `json:"url" yaml:"url"`
	Statements []engine.Planned `json:"statements" yaml:"statements"`
}

// Text renders each statement with its phase and bound arguments.
func (p *planResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan for %s (%d statements)", p.URL, len(p.Statements))
	for i, st := range p.Statements {
		fmt.Fprintf(&b, "\n\n-- %d: %s", i+1, st.Phase)
		if len(st.Args) > 0 {
			fmt.Fprintf(&b, " args=%v", st.Args)
		}
		fmt.Fprintf(&b, "\n%s", st.SQL)
	}
	return b.String()
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <url>",
		Short: "Show the SQL statements a request compiles to",
		Long: `Parse a resource request and print the statements the engine would
run for it. Ancestor lookups and the sort prefetch still execute because
later statements are bound to their results.`,
		Example: `  bandmap plan '/api/bands?fields=name,people.name&sort=people.name'
  bandmap plan --format json 'bands/2/people'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, rootOpts, args[0])
		},
	}
	return cmd
}

func runPlan(cmd *cobra.Command, opts *RootOptions, arg string) error {
	target, err := parseTarget(arg)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid request", err)
	}

	s, err := openStack(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer s.Close()

	out := opts.formatter(cmd)
	d, _, err := s.parser.Parse(target.Path, target.Query)
	if err != nil {
		return requestError(out, err)
	}
	statements, err := s.engine.Plan(cmd.Context(), d)
	if err != nil {
		return requestError(out, err)
	}
	return out.Success(&planResult{URL: d.URL(), Statements: statements}, d.ID)
}
