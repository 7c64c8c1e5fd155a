package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newTimelineCommand(ctx *commandContext) *cobra.Command {
	var startFlag string
	var endFlag string
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "List screenshots captured within a time range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			end := time.Now()
			start := end.Add(-time.Hour)
			startSec := float64(start.Unix())
			endSec := float64(end.Unix())
			var err error
			if startFlag != "" {
				if startSec, err = parseTimeArg(startFlag); err != nil {
					return fmt.Errorf("--start: %w", err)
				}
			}
			if endFlag != "" {
				if endSec, err = parseTimeArg(endFlag); err != nil {
					return fmt.Errorf("--end: %w", err)
				}
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.request("get_timeline", map[string]any{
				"start_time": startSec,
				"end_time":   endSec,
			})
			if err != nil {
				return err
			}
			if ctx.jsonOutput() || !stdoutIsTerminal() {
				return writeJSON(cmd, resp)
			}

			records, _ := resp["records"].([]any)
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no screenshots in range")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, raw := range records {
				record, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				rows = append(rows, []string{
					fmt.Sprintf("%.0f", num(record, "id")),
					formatUnix(num(record, "timestamp")),
					str(record, "process_name"),
					truncate(str(record, "window_title"), 48),
					fmt.Sprintf("%.0fx%.0f", num(record, "width"), num(record, "height")),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Captured", "Process", "Window", "Size"}, rows, 0))
			return nil
		},
	}
	cmd.Flags().StringVar(&startFlag, "start", "", "Range start (default one hour ago)")
	cmd.Flags().StringVar(&endFlag, "end", "", "Range end (default now)")
	return cmd
}
