package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <url>",
		Short: "Run one resource request without starting a server",
		Long: `Serve a single GET in process against the configured database and
print the JSON response. Exits 1 when the API answers with an error status.`,
		Example: `  bandmap query '/api/bands?fields=name,peopleCount&sort=name'
  bandmap query 'bands/Nirvana/people?fields=name,roles.name'
  bandmap query --format yaml 'people?filter=name ~ "Mark%"'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, rootOpts, args[0])
		},
	}
	return cmd
}

func runQuery(cmd *cobra.Command, opts *RootOptions, arg string) error {
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
	out.VerboseLog("GET %s", target.RequestURI())

	status, body, err := s.server.Do(cmd.Context(), target.RequestURI())
	if err != nil {
		return WrapExitError(ExitCommandError, "request failed", err)
	}

	if err := renderBody(out, status, body); err != nil {
		return err
	}
	if status >= 400 {
		return NewExitError(ExitFailure, fmt.Sprintf("request failed with status %d", status))
	}
	return nil
}

// renderBody prints an API response. Text output is the JSON body as
// served; structured output wraps it in the CLI envelope.
func renderBody(out *OutputFormatter, status int, body []byte) error {
	if out.Format == "text" {
		_, err := fmt.Fprintln(out.Writer, string(body))
		return err
	}

	doc, err := structured(out.Format, body)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to decode response body", err)
	}
	if status < 400 {
		return out.Success(doc, "")
	}

	var apiErr struct {
		Errors []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	code, message := fmt.Sprintf("http-%d", status), "request failed"
	if json.Unmarshal(body, &apiErr) == nil && len(apiErr.Errors) > 0 {
		code, message = apiErr.Errors[0].Code, apiErr.Errors[0].Message
	}
	return out.Error(code, message, doc, "")
}

// structured converts a JSON body for the json or yaml encoder, keeping
// the key order the API produced.
func structured(format string, body []byte) (any, error) {
	if format == "yaml" {
		var doc yaml.Node
		if err := yaml.Unmarshal(body, &doc); err != nil {
			return nil, err
		}
		blockStyle(&doc)
		if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
			return doc.Content[0], nil
		}
		return &doc, nil
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	return json.RawMessage(body), nil
}

// blockStyle drops the flow and quoting styles JSON input decodes with.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
