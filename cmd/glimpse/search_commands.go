package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type searchFlags struct {
	limit     int
	offset    int
	exact     bool
	processes []string
	start     string
	end       string
}

func (f *searchFlags) register(cmd *cobra.Command, includeExact bool) {
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "Number of results to skip")
	cmd.Flags().StringSliceVarP(&f.processes, "process", "p", nil, "Restrict results to these process names")
	cmd.Flags().StringVar(&f.start, "start", "", "Earliest capture time (epoch seconds, RFC 3339, or YYYY-MM-DD HH:MM:SS)")
	cmd.Flags().StringVar(&f.end, "end", "", "Latest capture time")
	if includeExact {
		cmd.Flags().BoolVar(&f.exact, "exact", false, "Disable fuzzy matching")
	}
}

func (f *searchFlags) params(query string) (map[string]any, error) {
	params := map[string]any{
		"query":  query,
		"limit":  f.limit,
		"offset": f.offset,
	}
	if len(f.processes) > 0 {
		params["process_names"] = f.processes
	}
	if f.start != "" {
		seconds, err := parseTimeArg(f.start)
		if err != nil {
			return nil, fmt.Errorf("--start: %w", err)
		}
		params["start_time"] = seconds
	}
	if f.end != "" {
		seconds, err := parseTimeArg(f.end)
		if err != nil {
			return nil, fmt.Errorf("--end: %w", err)
		}
		params["end_time"] = seconds
	}
	return params, nil
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	flags := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over recognized screen text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := flags.params(args[0])
			if err != nil {
				return err
			}
			params["fuzzy"] = !flags.exact
			return runSearch(ctx, cmd, "search", params)
		},
	}
	flags.register(cmd, true)
	return cmd
}

func newSemanticSearchCommand(ctx *commandContext) *cobra.Command {
	flags := &searchFlags{}
	cmd := &cobra.Command{
		Use:     "ask <query>",
		Aliases: []string{"search-nl"},
		Short:   "Semantic search over the vector index",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := flags.params(args[0])
			if err != nil {
				return err
			}
			return runSearch(ctx, cmd, "search_nl", params)
		},
	}
	flags.register(cmd, false)
	return cmd
}

func runSearch(ctx *commandContext, cmd *cobra.Command, wire string, params map[string]any) error {
	client, err := ctx.client()
	if err != nil {
		return err
	}
	resp, err := client.request(wire, params)
	if err != nil {
		return err
	}
	if ctx.jsonOutput() || !stdoutIsTerminal() {
		return writeJSON(cmd, resp)
	}

	results, _ := resp["results"].([]any)
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no matches")
		return nil
	}
	rows := make([][]string, 0, len(results))
	for _, raw := range results {
		hit, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		text := str(hit, "text")
		if text == "" {
			text = str(hit, "ocr_text")
		}
		created := str(hit, "created_at")
		if created == "" {
			created = str(hit, "timestamp")
		}
		rows = append(rows, []string{
			fmt.Sprintf("%.0f", num(hit, "screenshot_id")),
			str(hit, "process_name"),
			truncate(text, 60),
			created,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Process", "Text", "Captured"}, rows, 0))
	return nil
}
