package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProcessesCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "processes",
		Short: "List processes with captured screenshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			params := map[string]any{}
			if limit > 0 {
				params["limit"] = limit
			}
			resp, err := client.request("list_processes", params)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() || !stdoutIsTerminal() {
				return writeJSON(cmd, resp)
			}

			processes, _ := resp["processes"].([]any)
			if len(processes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no processes recorded")
				return nil
			}
			rows := make([][]string, 0, len(processes))
			for _, raw := range processes {
				entry, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				rows = append(rows, []string{
					str(entry, "process_name"),
					fmt.Sprintf("%.0f", num(entry, "count")),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Process", "Screenshots"}, rows, 1))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of processes (0 for all)")
	return cmd
}
