package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/lizqwerscott/ocs2-ros2/internal/config"
	"github.com/lizqwerscott/ocs2-ros2/internal/experiment"
	"github.com/spf13/cobra"
)

func listPresets(cmd *cobra.Command, args []string) error {
	presets := config.ListPresets(args[0])
	if len(presets) == 0 {
		fmt.Printf("no presets for %s\n", args[0])
		return nil
	}
	fmt.Printf("presets for %s:\n", args[0])
	for _, p := range presets {
		fmt.Printf("  %s\n", p)
	}
	return nil
}

func listModels(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tSTATES\tINPUTS\tDESCRIPTION")
	for _, name := range reg.ListModels() {
		m, err := reg.GetModel(name)
		if err != nil {
			return err
		}
		sys := m.Problem().System
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", m.Name, sys.StateDim(), sys.InputDim(), m.Description)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nintegrators: %v\n", reg.ListIntegrators())
	return nil
}
