package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/lizqwerscott/ocs2-ros2/internal/linesearch"
	"github.com/lizqwerscott/ocs2-ros2/internal/slq"
)

const (
	metadataFile   = "metadata.json"
	iterationsFile = "iterations.csv"
	trajectoryFile = "trajectory.csv"
)

// FileStore keeps one directory per run.
type FileStore struct {
	baseDir string
}

func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

func (s *FileStore) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) Save(run *Run) (string, error) {
	newID(&run.Meta)
	runDir := filepath.Join(s.baseDir, run.Meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()
	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(run.Meta); err != nil {
		return "", err
	}

	if err := writeCSV(filepath.Join(runDir, iterationsFile), iterationRows(run.Iterations)); err != nil {
		return "", err
	}
	if err := writeCSV(filepath.Join(runDir, trajectoryFile), trajectoryRows(&run.Trajectory)); err != nil {
		return "", err
	}
	return run.Meta.ID, nil
}

func (s *FileStore) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *FileStore) Load(id string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, id, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *FileStore) LoadIterations(id string) ([]slq.IterationRecord, error) {
	_, records, err := readCSV(filepath.Join(s.baseDir, id, iterationsFile))
	if err != nil {
		return nil, err
	}
	out := make([]slq.IterationRecord, 0, len(records))
	for _, rec := range records {
		if len(rec) < 10 {
			continue
		}
		v := parseFloats(rec[1:9])
		it, _ := strconv.Atoi(rec[0])
		out = append(out, slq.IterationRecord{
			Iteration: it,
			Performance: linesearch.Performance{
				Cost: v[0], Merit: v[1], ISE1: v[2], MaxNorm1: v[3], ISE2: v[4], MaxNorm2: v[5],
			},
			LearningRate: v[6],
			MaxDelta:     v[7],
			StepType:     rec[9],
		})
	}
	return out, nil
}

func (s *FileStore) LoadTrajectory(id string) (*dynamo.Trajectory, error) {
	header, records, err := readCSV(filepath.Join(s.baseDir, id, trajectoryFile))
	if err != nil {
		return nil, err
	}
	return parseTrajectory(records, header)
}

func iterationRows(log []slq.IterationRecord) [][]string {
	rows := [][]string{{"iteration", "cost", "merit", "ise1", "max_norm1", "ise2", "max_norm2", "learning_rate", "max_delta", "step"}}
	for _, r := range log {
		p := r.Performance
		rows = append(rows, append([]string{strconv.Itoa(r.Iteration)},
			formatFloats([]float64{p.Cost, p.Merit, p.ISE1, p.MaxNorm1, p.ISE2, p.MaxNorm2, r.LearningRate, r.MaxDelta}, r.StepType)...))
	}
	return rows
}

// trajectoryRows writes time, event flag, states and inputs. The event flag
// marks the first post-jump sample.
func trajectoryRows(tr *dynamo.Trajectory) [][]string {
	if tr.Empty() {
		return nil
	}
	header := []string{"time", "event"}
	for i := range tr.States[0] {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	for i := range tr.Inputs[0] {
		header = append(header, fmt.Sprintf("u%d", i))
	}
	rows := [][]string{header}

	events := make(map[int]bool, len(tr.Events))
	for _, e := range tr.Events {
		events[e] = true
	}
	for k := 0; k < tr.Len(); k++ {
		flag := "0"
		if events[k] {
			flag = "1"
		}
		row := []string{strconv.FormatFloat(tr.Times[k], 'g', -1, 64), flag}
		row = append(row, formatFloats(tr.States[k])...)
		row = append(row, formatFloats(tr.Inputs[k])...)
		rows = append(rows, row)
	}
	return rows
}

func parseTrajectory(records [][]string, header []string) (*dynamo.Trajectory, error) {
	nx := 0
	for _, h := range header {
		if len(h) > 1 && h[0] == 'x' {
			nx++
		}
	}
	tr := &dynamo.Trajectory{}
	for _, rec := range records {
		if len(rec) < 2+nx {
			continue
		}
		t, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, fmt.Errorf("storage: trajectory time %q: %w", rec[0], err)
		}
		if rec[1] == "1" {
			tr.MarkEvent()
		}
		v := parseFloats(rec[2:])
		tr.Append(t, dynamo.State(v[:nx:nx]), dynamo.Input(v[nx:]))
	}
	return tr, nil
}

func formatFloats(vs []float64, extra ...string) []string {
	out := make([]string, 0, len(vs)+len(extra))
	for _, v := range vs {
		out = append(out, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return append(out, extra...)
}

func parseFloats(fields []string) []float64 {
	out := make([]float64, len(fields))
	for i, f := range fields {
		out[i], _ = strconv.ParseFloat(f, 64)
	}
	return out
}

func writeCSV(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	w := csv.NewWriter(file)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return w.Error()
}

// readCSV splits a file into its header row and the records after it.
func readCSV(path string) ([]string, [][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}
