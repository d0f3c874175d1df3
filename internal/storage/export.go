package storage

import (
	"encoding/json"
	"io"

	"github.com/lizqwerscott/ocs2-ros2/internal/slq"
)

type ExportData struct {
	Meta       RunMetadata           `json:"meta"`
	Iterations []slq.IterationRecord `json:"iterations"`
	Times      []float64             `json:"times"`
	Events     []int                 `json:"events"`
	States     [][]float64           `json:"states"`
	Inputs     [][]float64           `json:"inputs"`
}

// ExportJSON writes run as one indented JSON document.
func ExportJSON(w io.Writer, run *Run) error {
	data := ExportData{
		Meta:       run.Meta,
		Iterations: run.Iterations,
		Times:      run.Trajectory.Times,
		Events:     run.Trajectory.Events,
		States:     make([][]float64, len(run.Trajectory.States)),
		Inputs:     make([][]float64, len(run.Trajectory.Inputs)),
	}
	for i, s := range run.Trajectory.States {
		data.States[i] = s
	}
	for i, u := range run.Trajectory.Inputs {
		data.Inputs[i] = u
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// LoadRun reads back everything stored for id.
func LoadRun(st Store, id string) (*Run, error) {
	meta, err := st.Load(id)
	if err != nil {
		return nil, err
	}
	log, err := st.LoadIterations(id)
	if err != nil {
		return nil, err
	}
	tr, err := st.LoadTrajectory(id)
	if err != nil {
		return nil, err
	}
	return &Run{Meta: *meta, Iterations: log, Trajectory: *tr}, nil
}
