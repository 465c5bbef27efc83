package cli

import (
	"net/url"

	"github.com/spf13/cobra"

	"github.com/roach88/bandmap/internal/apierr"
	"github.com/roach88/bandmap/internal/filter"
)

// filterResult is a parsed filter expression.
type filterResult struct {
	Resource string `json:"resource" yaml:"resource"`
	Filter   string `json:"filter" yaml:"filter"`
	Tree     any    `json:"tree" yaml:"tree"`
}

// Text returns the canonical rendering of the expression.
func (f *filterResult) Text() string {
	return f.Filter
}

// NewFilterCommand creates the filter command.
func NewFilterCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter <resource> <expression>",
		Short: "Parse a filter expression against a resource",
		Long: `Parse a filter expression the way the API does for the given
resource and print its normalized form. Structured output also includes
the clause tree with scoped entities and bound values.`,
		Example: `  bandmap filter bands "name = 'Nirvana' or peopleCount > 3"
  bandmap filter --format yaml bands/2/people "roles.name = 'Drums'"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilter(cmd, rootOpts, args[0], args[1])
		},
	}
	return cmd
}

func runFilter(cmd *cobra.Command, opts *RootOptions, resource, expr string) error {
	target, err := parseTarget(resource)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid resource", err)
	}

	s, err := openStack(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer s.Close()

	out := opts.formatter(cmd)
	d, _, err := s.parser.Parse(target.Path, url.Values{"filter": {expr}})
	if err != nil {
		return requestError(out, err)
	}
	if d.Filter == nil {
		return requestError(out, apierr.InvalidFilter("Filter expression '%s' is empty.", expr))
	}
	return out.Success(&filterResult{
		Resource: d.Path,
		Filter:   filter.Print(d.Filter),
		Tree:     filter.Dump(d.Filter),
	}, d.ID)
}

// requestError reports an API error and maps it to ExitFailure.
func requestError(out *OutputFormatter, err error) error {
	e := apierr.As(err)
	if ferr := out.Error(string(e.Code), e.Message, nil, ""); ferr != nil {
		return ferr
	}
	return &ExitError{Code: ExitFailure, Message: e.Message}
}
