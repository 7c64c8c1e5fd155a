package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newFiltersCommand(ctx *commandContext) *cobra.Command {
	var processes []string
	var titles []string
	var ignoreProtected string
	cmd := &cobra.Command{
		Use:   "filters",
		Short: "Show or replace capture exclusion filters",
		Long: "Without flags, prints the current exclusion filters. With flags, " +
			"replaces the corresponding filter lists on the running daemon.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filters := map[string]any{}
			if cmd.Flags().Changed("process") {
				filters["processes"] = processes
			}
			if cmd.Flags().Changed("title") {
				filters["titles"] = titles
			}
			if ignoreProtected != "" {
				switch strings.ToLower(ignoreProtected) {
				case "true", "yes", "on":
					filters["ignore_protected"] = true
				case "false", "no", "off":
					filters["ignore_protected"] = false
				default:
					return fmt.Errorf("invalid --ignore-protected value %q (want true or false)", ignoreProtected)
				}
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.request("update_filters", map[string]any{
				"filters": filters,
			})
			if err != nil {
				return err
			}
			if ctx.jsonOutput() || !stdoutIsTerminal() {
				return writeJSON(cmd, resp)
			}

			current, _ := resp["filters"].(map[string]any)
			rows := [][]string{
				{"Excluded processes", joinAny(current["processes"])},
				{"Excluded titles", joinAny(current["titles"])},
				{"Skip protected windows", fmt.Sprintf("%v", current["ignore_protected"] == true)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Filter", "Value"}, rows))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&processes, "process", "p", nil, "Process names to exclude from capture")
	cmd.Flags().StringSliceVarP(&titles, "title", "t", nil, "Window title substrings to exclude from capture")
	cmd.Flags().StringVar(&ignoreProtected, "ignore-protected", "", "Skip windows marked protected (true or false)")
	return cmd
}

func joinAny(value any) string {
	items, ok := value.([]any)
	if !ok || len(items) == 0 {
		return "(none)"
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
