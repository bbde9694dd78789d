package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pauloribeiro16/D3fendGraph/internal/graph"
	"github.com/pauloribeiro16/D3fendGraph/internal/query"
)

var (
	queryFilters       []string
	queryMode          string
	queryTactic        string
	queryClosure       string
	queryIncludeParent bool
	queryLimit         int
)

var queryCmd = &cobra.Command{
	Use:   "query <pattern>",
	Short: "Run a structured pattern query against the graph",
	Long: `Runs one of the structured retrieval patterns:

  countermeasures          defensive techniques joined to countered attacks
  tactic-overview          technique counts per defensive tactic
  techniques-under-tactic  hierarchy closure below a tactic (needs --tactic)
  coverage-ranking         defensive techniques ranked by attacks covered
  framework-search         label search across all taxonomies

Results are ordered deterministically regardless of backend.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	pattern, err := graph.ParsePattern(args[0])
	if err != nil {
		return err
	}
	intent := graph.Intent{
		Pattern:       pattern,
		Filters:       queryFilters,
		Mode:          graph.FilterMode(queryMode),
		Tactic:        graph.Tactic(queryTactic),
		Closure:       graph.Closure(queryClosure),
		IncludeParent: queryIncludeParent,
		Limit:         queryLimit,
	}

	ctx := cmd.Context()
	client, err := connectGraph(ctx)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	start := time.Now()
	rows, err := query.NewPlanner(client, logger).Execute(ctx, intent)
	if err != nil {
		return err
	}

	printRows(cmd.OutOrStdout(), rows)
	cmd.Printf("\n%d rows (%s)\n", rows.Len(), time.Since(start).Round(time.Millisecond))
	return nil
}

func printRows(out io.Writer, rows graph.Rows) {
	if rows.Len() == 0 {
		fmt.Fprintln(out, "(no results)")
		return
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for i, col := range rows.Columns {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, col)
	}
	fmt.Fprintln(w)

	for _, record := range rows.Records {
		for i, col := range rows.Columns {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			if value, ok := record[col]; ok {
				fmt.Fprintf(w, "%v", value)
			}
		}
		fmt.Fprintln(w)
	}
	w.Flush()
}

func init() {
	queryCmd.Flags().StringArrayVarP(&queryFilters, "filter", "f",
		nil, "Label filter term (repeatable, case-insensitive substring)")
	queryCmd.Flags().StringVarP(&queryMode, "mode", "m",
		"", "Filter combination: any (OR) or all (AND)")
	queryCmd.Flags().StringVarP(&queryTactic, "tactic", "t",
		"", "Defensive tactic for techniques-under-tactic")
	queryCmd.Flags().StringVar(&queryClosure, "closure",
		"", "Hierarchy closure: one-or-more or zero-or-more")
	queryCmd.Flags().BoolVar(&queryIncludeParent, "include-parent",
		false, "Attach the hierarchy parent to countermeasure rows")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "l",
		0, "Row cap (0 uses the pattern default)")
}
