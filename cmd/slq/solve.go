package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lizqwerscott/ocs2-ros2/internal/config"
	"github.com/lizqwerscott/ocs2-ros2/internal/experiment"
	"github.com/lizqwerscott/ocs2-ros2/internal/mpc"
	"github.com/lizqwerscott/ocs2-ros2/internal/slq"
	"github.com/lizqwerscott/ocs2-ros2/internal/storage"
	"github.com/lizqwerscott/ocs2-ros2/internal/tui"
	"github.com/spf13/cobra"
)

func runSolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var program *tea.Program
	var opts []slq.Option
	if live {
		program = tea.NewProgram(tui.NewMonitor("slq "+cfg.Problem.Model, cfg.Problem.Model))
		opts = append(opts, slq.WithObserver(func(r slq.IterationRecord) {
			program.Send(tui.IterationMsg(r))
		}))
	}

	exp, err := experiment.New(cfg, experiment.NewRegistry(), slog.Default(), opts...)
	if err != nil {
		return err
	}

	var res *experiment.Result
	if program != nil {
		done := make(chan struct{})
		go func() {
			defer close(done)
			res, err = exp.Run(ctx)
			program.Send(tui.DoneMsg{Err: err})
		}()
		_, runErr := program.Run()
		// the monitor may be quit before the solver finishes
		stop()
		<-done
		if runErr != nil {
			return runErr
		}
		if err != nil {
			return err
		}
	} else {
		fmt.Printf("optimizing %s...\n", cfg.Problem.Model)
		if res, err = exp.Run(ctx); err != nil {
			return err
		}
	}

	fmt.Println(tui.Summary(res.Model, res.Stats, res.Performance, res.Metrics))
	if noSave {
		return nil
	}
	id, err := save(cfg, &storage.Run{
		Meta: storage.RunMetadata{
			Model:      res.Model,
			Kind:       "slq",
			Iterations: res.Stats.Iterations,
			Converged:  res.Stats.Converged,
			Reason:     res.Stats.Reason,
			Elapsed:    res.Elapsed,
			Metrics:    res.Metrics,
		},
		Iterations: res.Log,
		Trajectory: res.Trajectory,
	})
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", id)
	return nil
}

func runMPC(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	exp, err := experiment.New(cfg, experiment.NewRegistry(), slog.Default())
	if err != nil {
		return err
	}

	var observers []func(mpc.Step)
	var program *tea.Program
	if live {
		program = tea.NewProgram(tui.NewMonitor("mpc "+cfg.Problem.Model, cfg.Problem.Model))
		observers = append(observers, func(s mpc.Step) { program.Send(tui.StepMsg(s)) })
	}

	start := time.Now()
	var res *mpc.Result
	if program != nil {
		done := make(chan struct{})
		go func() {
			defer close(done)
			res, err = exp.RunMPC(ctx, observers...)
			program.Send(tui.DoneMsg{Err: err})
		}()
		_, runErr := program.Run()
		stop()
		<-done
		if runErr != nil {
			return runErr
		}
	} else {
		fmt.Printf("running receding horizon on %s...\n", cfg.Problem.Model)
		res, err = exp.RunMPC(ctx)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	res.Metrics["solves"] = float64(res.Solves)
	res.Metrics["rewinds"] = float64(res.Rewinds)
	res.Metrics["iterations"] = float64(res.Iterations)
	fmt.Printf("completed in %v\n", elapsed)
	for name, val := range res.Metrics {
		fmt.Printf("  %s: %.6g\n", name, val)
	}
	if noSave {
		return nil
	}
	id, err := save(cfg, &storage.Run{
		Meta: storage.RunMetadata{
			Model:      cfg.Problem.Model,
			Kind:       "mpc",
			Iterations: res.Iterations,
			Converged:  true,
			Reason:     "completed",
			Elapsed:    elapsed,
			Metrics:    res.Metrics,
		},
		Trajectory: res.Trajectory,
	})
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", id)
	return nil
}

func openStore(backend, dir string) (storage.Store, error) {
	st, err := storage.Open(backend, dir)
	if err != nil {
		return nil, err
	}
	if err := st.Init(); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func save(cfg *config.Config, run *storage.Run) (string, error) {
	st, err := openStore(cfg.Output.Backend, cfg.Output.Dir)
	if err != nil {
		return "", err
	}
	defer st.Close()
	return st.Save(run)
}
