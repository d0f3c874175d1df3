package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/lizqwerscott/ocs2-ros2/internal/config"
	"github.com/lizqwerscott/ocs2-ros2/internal/experiment"
	"github.com/lizqwerscott/ocs2-ros2/internal/optim"
	"github.com/lizqwerscott/ocs2-ros2/internal/riccati"
	"github.com/spf13/cobra"
)

func benchModel(cmd *cobra.Command, args []string) error {
	if benchRuns < 1 {
		return fmt.Errorf("--runs must be positive, got %d", benchRuns)
	}
	base, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// keep solver chatter out of the table
	quiet := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	reg := experiment.NewRegistry()

	fmt.Printf("benchmarking %s (%d runs per policy)\n\n", base.Problem.Model, benchRuns)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "POLICY\tPARALLEL\tITERS\tCOST\tTIME/RUN\tBACKWARD")

	for _, parallel := range []bool{false, true} {
		for _, policy := range []riccati.Policy{riccati.Adaptive, riccati.Nominal, riccati.Sweep} {
			cfg := *base
			cfg.Solver.Riccati.Policy = policy
			cfg.Solver.ParallelRiccati = parallel

			var total time.Duration
			var last *experiment.Result
			for run := 0; run < benchRuns; run++ {
				exp, err := experiment.New(&cfg, reg, quiet)
				if err != nil {
					return err
				}
				start := time.Now()
				res, err := exp.Run(ctx)
				if err != nil {
					return fmt.Errorf("%s: %w", policy, err)
				}
				total += time.Since(start)
				last = res
			}
			fmt.Fprintf(w, "%s\t%v\t%d\t%.6g\t%v\t%v\n",
				policy, parallel, last.Stats.Iterations, last.Performance.Cost,
				total/time.Duration(benchRuns), last.Stats.AvgBackward)
		}
	}
	return w.Flush()
}

func tuneModel(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if len(tuneParams) == 0 {
		return fmt.Errorf("at least one --param is required (known: %s)", strings.Join(optim.ParamNames(), ", "))
	}

	params := make([]optim.Param, 0, len(tuneParams))
	ranges := make([][]float64, 0, len(tuneParams))
	for _, arg := range tuneParams {
		p, values, err := parseParam(arg)
		if err != nil {
			return err
		}
		params = append(params, p)
		ranges = append(ranges, values)
	}

	gs, err := optim.NewGridSearch(params, ranges, base.Solver.Workers)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	quiet := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	reg := experiment.NewRegistry()
	objective := func(ctx context.Context, cfg *config.Config) (float64, error) {
		exp, err := experiment.New(cfg, reg, quiet)
		if err != nil {
			return 0, err
		}
		res, err := exp.Run(ctx)
		if err != nil {
			return 0, err
		}
		v, ok := res.Metrics[tuneMetric]
		if !ok {
			return 0, fmt.Errorf("unknown metric: %s", tuneMetric)
		}
		return v, nil
	}

	fmt.Printf("searching %d points on %s, minimizing %s\n\n", len(gs.Points()), base.Problem.Model, tuneMetric)
	trials, err := gs.Search(ctx, base, objective)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	header := []string{"RANK"}
	for _, p := range params {
		header = append(header, strings.ToUpper(p.Name))
	}
	header = append(header, strings.ToUpper(tuneMetric))
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for i, tr := range trials {
		if i >= tuneTop {
			break
		}
		row := []string{strconv.Itoa(i + 1)}
		for _, p := range params {
			row = append(row, strconv.FormatFloat(tr.Values[p.Name], 'g', 4, 64))
		}
		if tr.Err != nil {
			row = append(row, "error: "+tr.Err.Error())
		} else {
			row = append(row, strconv.FormatFloat(tr.Score, 'g', 6, 64))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

// parseParam reads name=v1,v2,...
func parseParam(arg string) (optim.Param, []float64, error) {
	name, list, ok := strings.Cut(arg, "=")
	if !ok {
		return optim.Param{}, nil, fmt.Errorf("invalid --param %q, want name=v1,v2", arg)
	}
	p, err := optim.LookupParam(strings.TrimSpace(name))
	if err != nil {
		return optim.Param{}, nil, err
	}
	var values []float64
	for _, field := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return optim.Param{}, nil, fmt.Errorf("invalid value for %s: %w", p.Name, err)
		}
		values = append(values, v)
	}
	return p, values, nil
}
