package eval

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// metricColumns orders the report columns: cutoff metrics first, MRR last.
func metricColumns(ks []int) []string {
	cols := make([]string, 0, len(ks)*4+1)
	for _, prefix := range []string{"precision", "recall", "hit", "ndcg"} {
		for _, k := range ks {
			cols = append(cols, fmt.Sprintf("%s@%d", prefix, k))
		}
	}
	return append(cols, "mrr")
}

// PrintTable renders the aggregate comparison to w.
func PrintTable(w io.Writer, result Result) {
	cols := metricColumns(result.Ks)

	widths := make([]int, len(cols)+1)
	widths[0] = len("strategy")
	for _, agg := range result.Aggregates {
		if len(agg.Strategy) > widths[0] {
			widths[0] = len(agg.Strategy)
		}
	}
	for i, col := range cols {
		widths[i+1] = max(len(col), 6)
	}

	line := func(left, mid, right string) {
		fmt.Fprint(w, left)
		for i, width := range widths {
			fmt.Fprint(w, strings.Repeat("─", width+2))
			if i < len(widths)-1 {
				fmt.Fprint(w, mid)
			}
		}
		fmt.Fprintln(w, right)
	}

	fmt.Fprintf(w, "Dataset: %s (%s)\n", result.Dataset, result.RanAt.Format("2006-01-02 15:04:05"))
	line("┌", "┬", "┐")
	fmt.Fprintf(w, "│ %-*s │", widths[0], "strategy")
	for i, col := range cols {
		fmt.Fprintf(w, " %*s │", widths[i+1], col)
	}
	fmt.Fprintln(w)
	line("├", "┼", "┤")
	for _, agg := range result.Aggregates {
		fmt.Fprintf(w, "│ %-*s │", widths[0], agg.Strategy)
		for i, col := range cols {
			fmt.Fprintf(w, " %*.4f │", widths[i+1], agg.Means[col])
		}
		fmt.Fprintln(w)
	}
	line("└", "┴", "┘")

	for _, agg := range result.Aggregates {
		if agg.Failures > 0 {
			fmt.Fprintf(w, "  %s: %d/%d cases failed\n", agg.Strategy, agg.Failures, agg.Cases)
		}
	}
}

// SaveJSON writes the full run, cases included, as JSON.
func SaveJSON(path string, result Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return writeFile(path, data)
}

// SaveMarkdown writes the aggregate comparison as a markdown table.
func SaveMarkdown(path string, result Result) error {
	cols := metricColumns(result.Ks)

	var b strings.Builder
	fmt.Fprintf(&b, "# Evaluation: %s\n\nRan at %s\n\n",
		result.Dataset, result.RanAt.Format("2006-01-02 15:04:05 UTC"))
	b.WriteString("| strategy |")
	for _, col := range cols {
		fmt.Fprintf(&b, " %s |", col)
	}
	b.WriteString("\n|---|")
	for range cols {
		b.WriteString("---|")
	}
	b.WriteString("\n")
	for _, agg := range result.Aggregates {
		fmt.Fprintf(&b, "| %s |", agg.Strategy)
		for _, col := range cols {
			fmt.Fprintf(&b, " %.4f |", agg.Means[col])
		}
		b.WriteString("\n")
	}

	return writeFile(path, []byte(b.String()))
}

// SaveCaseDetails writes a per-case markdown breakdown for debugging which
// queries a strategy loses on.
func SaveCaseDetails(path string, result Result) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Case details: %s\n", result.Dataset)

	byStrategy := make(map[string][]CaseResult)
	for _, cr := range result.Cases {
		byStrategy[cr.Strategy] = append(byStrategy[cr.Strategy], cr)
	}
	strategies := make([]string, 0, len(byStrategy))
	for s := range byStrategy {
		strategies = append(strategies, s)
	}
	sort.Strings(strategies)

	for _, strategy := range strategies {
		fmt.Fprintf(&b, "\n## %s\n", strategy)
		for _, cr := range byStrategy[strategy] {
			fmt.Fprintf(&b, "\n### %s\n\nQuery: %s\n\n", cr.CaseID, cr.Query)
			if !cr.Success {
				fmt.Fprintf(&b, "FAILED: %s\n\n", cr.Error)
			}
			fmt.Fprintf(&b, "Retrieved (%d):\n", len(cr.Retrieved))
			for i, id := range cr.Retrieved {
				fmt.Fprintf(&b, "%d. `%s`\n", i+1, id)
			}
			names := make([]string, 0, len(cr.Metrics))
			for name := range cr.Metrics {
				names = append(names, name)
			}
			sort.Strings(names)
			b.WriteString("\nMetrics: ")
			for i, name := range names {
				if i > 0 {
					b.WriteString(", ")
				}
				fmt.Fprintf(&b, "%s=%.4f", name, cr.Metrics[name])
			}
			b.WriteString("\n")
		}
	}

	return writeFile(path, []byte(b.String()))
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
