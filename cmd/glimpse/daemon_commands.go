package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon state and pipeline throughput",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.request("status", nil)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() || !stdoutIsTerminal() {
				return writeJSON(cmd, resp)
			}

			state := "recording"
			if resp["paused"] == true {
				state = "paused"
			}
			if resp["stopped"] == true {
				state = "stopped"
			}
			rows := [][]string{
				{"State", state},
				{"Capture interval", fmt.Sprintf("%.0fs", num(resp, "interval"))},
			}
			if stats, ok := resp["ocr_stats"].(map[string]any); ok {
				rows = append(rows,
					[]string{"Processed", fmt.Sprintf("%.0f", num(stats, "processed_count"))},
					[]string{"Failed", fmt.Sprintf("%.0f", num(stats, "failed_count"))},
					[]string{"Duplicates", fmt.Sprintf("%.0f", num(stats, "duplicate_count"))},
					[]string{"Pending", fmt.Sprintf("%.0f", num(stats, "pending_count"))},
				)
			}
			if db, ok := resp["database"].(map[string]any); ok {
				rows = append(rows,
					[]string{"Screenshots", fmt.Sprintf("%.0f", num(db, "screenshot_count"))},
					[]string{"Text spans", fmt.Sprintf("%.0f", num(db, "ocr_result_count"))},
				)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows))
			return nil
		},
	}
}

func newLifecycleCommand(ctx *commandContext, use, short, wire string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.request(wire, nil)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), str(resp, "status"))
			return nil
		},
	}
}

func newPauseCommand(ctx *commandContext) *cobra.Command {
	return newLifecycleCommand(ctx, "pause", "Suspend screen capturing", "pause")
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return newLifecycleCommand(ctx, "resume", "Resume screen capturing", "resume")
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return newLifecycleCommand(ctx, "stop", "Stop the daemon", "stop")
}
