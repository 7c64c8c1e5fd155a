package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var pathFlag string
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show one screenshot record with its recognized text",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{}
			switch {
			case len(args) == 1:
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid screenshot id %q", args[0])
				}
				params["id"] = id
			case pathFlag != "":
				params["path"] = pathFlag
			default:
				return errors.New("pass a screenshot id or --path")
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.request("get_screenshot_details", params)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() || !stdoutIsTerminal() {
				return writeJSON(cmd, resp)
			}

			record, _ := resp["record"].(map[string]any)
			rows := [][]string{
				{"ID", fmt.Sprintf("%.0f", num(record, "id"))},
				{"Captured", str(record, "created_at")},
				{"Process", str(record, "process_name")},
				{"Window", str(record, "window_title")},
				{"Image", str(record, "image_path")},
				{"Hash", str(record, "image_hash")},
				{"Size", fmt.Sprintf("%.0fx%.0f", num(record, "width"), num(record, "height"))},
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows))

			results, _ := resp["ocr_results"].([]any)
			if len(results) == 0 {
				fmt.Fprintln(out, "no recognized text")
				return nil
			}
			spanRows := make([][]string, 0, len(results))
			for _, raw := range results {
				span, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				spanRows = append(spanRows, []string{
					truncate(str(span, "text"), 64),
					fmt.Sprintf("%.2f", num(span, "confidence")),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Text", "Confidence"}, spanRows, 1))
			return nil
		},
	}
	cmd.Flags().StringVar(&pathFlag, "path", "", "Look the screenshot up by image path instead of id")
	return cmd
}
