package schedule

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindActivePartition(t *testing.T) {
	times := []float64{0, 1, 2, 3}
	tests := []struct {
		name    string
		t       float64
		want    int
		wantErr error
	}{
		{"first boundary", 0, 0, nil},
		{"inside first", 0.5, 0, nil},
		{"on inner boundary", 1, 0, nil},
		{"just after boundary", 1.0000001, 1, nil},
		{"final boundary", 3, 2, nil},
		{"before start", -0.1, 0, ErrBeforeStart},
		{"after end", 3.1, 0, ErrAfterEnd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindActivePartition(times, tt.t)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate([]float64{0, 1}))
	assert.ErrorIs(t, Validate([]float64{0}), ErrInvalidPartitioning)
	assert.ErrorIs(t, Validate([]float64{0, 1, 1}), ErrInvalidPartitioning)
}

func TestLogicRulesModeAt(t *testing.T) {
	rules := LogicRules{SwitchingTimes: []float64{1, 2}, Modes: []int{7, 8, 9}}
	require.NoError(t, rules.Validate())

	assert.Equal(t, 7, rules.ModeAt(0.5))
	assert.Equal(t, 8, rules.ModeAt(1))
	assert.Equal(t, 9, rules.ModeAt(5))

	bad := LogicRules{SwitchingTimes: []float64{1}, Modes: []int{0}}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidLogicRules)
}

func TestMachineDistributesEvents(t *testing.T) {
	m, err := NewMachine(LogicRules{SwitchingTimes: []float64{0.5, 1.0, 1.5}})
	require.NoError(t, err)
	require.NoError(t, m.Update([]float64{0, 1, 2}))

	assert.Equal(t, 2, m.NumPartitions())
	assert.Equal(t, []float64{0.5, 1.0}, m.EventTimes(0))
	assert.Equal(t, []int{0, 1, 2}, m.Subsystems(0))
	assert.Equal(t, []float64{1.5}, m.EventTimes(1))
	assert.Equal(t, []int{2, 3}, m.Subsystems(1))

	assert.Equal(t, 0, m.ModeAt(0.25))
	assert.Equal(t, 1, m.ModeAt(0.75))
	assert.Equal(t, 3, m.ModeAt(1.75))
}

func TestMachineStateTriggeredEvents(t *testing.T) {
	m, err := NewMachine(LogicRules{})
	require.NoError(t, err)
	require.NoError(t, m.Update([]float64{0, 1}))

	require.NoError(t, m.SetPartitionEvents(0, []float64{0.4}, []int{0, 1}))
	assert.Equal(t, 1, m.ModeAt(0.5))

	assert.ErrorIs(t, m.SetPartitionEvents(3, nil, []int{0}), ErrPartitionOutOfRange)
	assert.ErrorIs(t, m.SetPartitionEvents(0, []float64{0.4}, []int{0}), ErrInvalidLogicRules)
}

func TestMachineDisplay(t *testing.T) {
	m, _ := NewMachine(LogicRules{SwitchingTimes: []float64{0.5}})
	require.NoError(t, m.Update([]float64{0, 1}))

	var buf bytes.Buffer
	m.Display(slog.New(slog.NewTextHandler(&buf, nil)))
	assert.Contains(t, buf.String(), "[schedule]")
	assert.Contains(t, buf.String(), "partition=0")
}

func TestMachineCloneIsIndependent(t *testing.T) {
	m, err := NewMachine(LogicRules{SwitchingTimes: []float64{0.5}, Modes: []int{0, 1}})
	require.NoError(t, err)
	require.NoError(t, m.Update([]float64{0, 1}))

	c := m.Clone()
	require.NoError(t, c.SetPartitionEvents(0, []float64{0.2}, []int{0, 1}))

	assert.Equal(t, 1, c.ModeAt(0.3))
	assert.Equal(t, 0, m.ModeAt(0.3))
	assert.Equal(t, []float64{0.5}, m.EventTimes(0))
}
