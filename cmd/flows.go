package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/eculver/connect-flows/pkg/connect"
)

func newListCmd(opts *globalOptions, deps runDeps) *cobra.Command {
	var asJSON bool

	c := &cobra.Command{
		Use:   "list [filter]",
		Short: "List contact flows (first 100 only)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter string
			if len(args) == 1 {
				filter = args[0]
			}

			client, err := login(cmd, opts, deps)
			if err != nil {
				return err
			}

			flows, err := client.ListFlows(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(deps, flows)
			}

			fmt.Fprintln(deps.stdout, flowTable(flows))
			return nil
		},
	}

	c.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return c
}

func flowTable(flows []connect.FlowSummary) *table.Table {
	rows := make([][]string, 0, len(flows))
	for _, f := range flows {
		rows = append(rows, []string{f.Name, f.Type, f.Status, f.ARN})
	}

	return table.New().
		Headers("NAME", "TYPE", "STATUS", "ARN").
		Rows(rows...).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderRow(false).
		BorderColumn(false).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

func newGetCmd(opts *globalOptions, deps runDeps) *cobra.Command {
	var status string

	c := &cobra.Command{
		Use:   "get <arn>",
		Short: "Export a contact flow as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := login(cmd, opts, deps)
			if err != nil {
				return err
			}

			flow, err := client.GetFlow(cmd.Context(), args[0], status)
			if err != nil {
				return err
			}

			return writeJSON(deps, flow)
		},
	}

	c.Flags().StringVar(&status, "status", "published", "flow status to export (published or saved)")
	return c
}

func newUploadCmd(opts *globalOptions, deps runDeps) *cobra.Command {
	var (
		publish   bool
		editToken string
	)

	c := &cobra.Command{
		Use:   "upload <arn> <file>",
		Short: "Upload a contact flow document, optionally publishing it",
		Long: `Uploads the flow document in <file> as the new content of the flow.
The file may hold either the bare flow content or the output of "get".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readFlowFile(cmd.Context(), args[1])
			if err != nil {
				return err
			}

			client, err := login(cmd, opts, deps)
			if err != nil {
				return err
			}

			if err := client.UploadFlow(cmd.Context(), args[0], content, connect.UploadOptions{
				EditToken: editToken,
				Publish:   publish,
			}); err != nil {
				return err
			}

			action := "Saved"
			if publish {
				action = "Published"
			}
			fmt.Fprintf(deps.stdout, "%s %s\n", action, args[0])
			return nil
		},
	}

	c.Flags().BoolVar(&publish, "publish", false, "publish the flow after saving")
	c.Flags().StringVar(&editToken, "edit-token", "", "edit token to use instead of reading one from the flow editor")
	return c
}

// readFlowFile returns the flow content in path. Output of the get command is
// unwrapped to its "content" field.
func readFlowFile(ctx context.Context, path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse flow file %s: %w", path, err)
	}

	if inner, ok := doc["content"].(map[string]any); ok {
		log.FromContext(ctx).Debug("Using content of exported flow", "path", path)
		return inner, nil
	}
	return doc, nil
}

func newOpenCmd(opts *globalOptions, deps runDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "open <arn>",
		Short: "Open the flow editor in your default browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instance, _, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}

			editURL, err := connect.NewClientFromSession(connect.Session{Instance: instance}).EditURL(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(deps.stdout, "Opening flow editor in your browser...")
			return deps.open(editURL)
		},
	}
}

func writeJSON(deps runDeps, v any) error {
	enc := json.NewEncoder(deps.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
