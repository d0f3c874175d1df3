package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lizqwerscott/ocs2-ros2/internal/linesearch"
	"github.com/lizqwerscott/ocs2-ros2/internal/slq"
)

// Summary renders the outcome of a solve as a bordered block.
func Summary(model string, stats slq.Stats, perf linesearch.Performance, metrics map[string]float64) string {
	status := green.Render(stats.Reason)
	if !stats.Converged {
		status = yellow.Render(stats.Reason)
	}

	lines := []string{
		title.Render(model) + "  " + status,
		fmt.Sprintf("%-18s %d", "iterations", stats.Iterations),
		fmt.Sprintf("%-18s %.6g", "cost", perf.Cost),
		fmt.Sprintf("%-18s %.3e", "ise1", perf.ISE1),
		fmt.Sprintf("%-18s %.3e", "ise2", perf.ISE2),
		fmt.Sprintf("%-18s %s", "avg forward", stats.AvgForward),
		fmt.Sprintf("%-18s %s", "avg approximation", stats.AvgApproximation),
		fmt.Sprintf("%-18s %s", "avg backward", stats.AvgBackward),
	}

	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		lines = append(lines, dim.Render(fmt.Sprintf("%-18s %.6g", name, metrics[name])))
	}
	return box.Render(strings.Join(lines, "\n"))
}

// History plots the cost and type-1 constraint error of an iteration log.
func History(log []slq.IterationRecord, width int) string {
	costs := make([]float64, len(log))
	ise := make([]float64, len(log))
	for i, r := range log {
		costs[i] = r.Performance.Cost
		ise[i] = r.Performance.ISE1
	}
	var parts []string
	if p := Plot(costs, "cost per iteration", 10, width); p != "" {
		parts = append(parts, p)
	}
	if p := Plot(ise, "ise1 per iteration", 6, width); p != "" {
		parts = append(parts, p)
	}
	return strings.Join(parts, "\n\n")
}
