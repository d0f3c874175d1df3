package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/lizqwerscott/ocs2-ros2/internal/storage"
	"github.com/lizqwerscott/ocs2-ros2/internal/tui"
	"github.com/spf13/cobra"
)

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore(backend, dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tKIND\tTIME\tITERS\tCONVERGED\tCOST")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%v\t%.6g\n",
			r.ID, r.Model, r.Kind, r.Timestamp.Format("2006-01-02 15:04"),
			r.Iterations, r.Converged, r.Metrics["cost"])
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st, err := openStore(backend, dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := storage.LoadRun(st, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s) %s\n\n", run.Meta.ID, run.Meta.Kind, run.Meta.Model)
	if len(run.Iterations) > 0 {
		fmt.Println(tui.History(run.Iterations, 60))
		fmt.Println()
	}

	tr := run.Trajectory
	if tr.Empty() {
		return nil
	}
	for i := range tr.States[0] {
		values := make([]float64, len(tr.States))
		for k, x := range tr.States {
			values[k] = x[i]
		}
		fmt.Println(tui.Plot(values, fmt.Sprintf("x[%d]", i), 10, 60))
		fmt.Println()
	}
	for i := 0; i < inputDim(tr.Inputs); i++ {
		values := make([]float64, len(tr.Inputs))
		for k, u := range tr.Inputs {
			values[k] = u[i]
		}
		fmt.Println(tui.Plot(values, fmt.Sprintf("u[%d]", i), 6, 60))
		fmt.Println()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st, err := openStore(backend, dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := storage.LoadRun(st, args[0])
	if err != nil {
		return err
	}

	switch exportFormat {
	case "json":
		return storage.ExportJSON(os.Stdout, run)
	case "csv":
		return exportCSV(run)
	default:
		return fmt.Errorf("unknown format: %s", exportFormat)
	}
}

func exportCSV(run *storage.Run) error {
	w := csv.NewWriter(os.Stdout)
	tr := run.Trajectory
	if tr.Empty() {
		w.Flush()
		return w.Error()
	}

	header := []string{"time"}
	for i := range tr.States[0] {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	for i := 0; i < inputDim(tr.Inputs); i++ {
		header = append(header, fmt.Sprintf("u%d", i))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for k, t := range tr.Times {
		row := []string{strconv.FormatFloat(t, 'g', -1, 64)}
		for _, v := range tr.States[k] {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if k < len(tr.Inputs) {
			for _, v := range tr.Inputs[k] {
				row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func inputDim(inputs []dynamo.Input) int {
	if len(inputs) == 0 {
		return 0
	}
	return len(inputs[0])
}
