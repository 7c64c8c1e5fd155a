package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one screenshot and its recognized text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid screenshot id %q", args[0])
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.request("delete_screenshot", map[string]any{
				"screenshot_id": id,
			})
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, resp)
			}
			if resp["deleted"] == true {
				fmt.Fprintf(cmd.OutOrStdout(), "deleted screenshot %d\n", id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "screenshot %d not found\n", id)
			}
			return nil
		},
	}
}

func newDeleteRangeCommand(ctx *commandContext) *cobra.Command {
	var startFlag string
	var endFlag string
	cmd := &cobra.Command{
		Use:   "delete-range",
		Short: "Delete every screenshot captured within a time range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if startFlag == "" || endFlag == "" {
				return fmt.Errorf("--start and --end are required")
			}
			startSec, err := parseTimeArg(startFlag)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			endSec, err := parseTimeArg(endFlag)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			// The delete_by_time_range command takes epoch milliseconds.
			resp, err := client.request("delete_by_time_range", map[string]any{
				"start_time": startSec * 1000.0,
				"end_time":   endSec * 1000.0,
			})
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %.0f screenshots (%.0f index entries)\n",
				num(resp, "deleted_count"), num(resp, "vector_deleted"))
			return nil
		},
	}
	cmd.Flags().StringVar(&startFlag, "start", "", "Range start (epoch seconds, RFC 3339, or YYYY-MM-DD HH:MM:SS)")
	cmd.Flags().StringVar(&endFlag, "end", "", "Range end")
	return cmd
}
