package schedule

import (
	"fmt"
	"log/slog"
	"sync"
)

// Machine distributes the logic rules over the partitions. Switching time s
// belongs to partition i when t_i < s <= t_{i+1}.
type Machine struct {
	mu           sync.RWMutex
	rules        LogicRules
	partitioning []float64
	events       [][]float64
	modes        [][]int
}

func NewMachine(rules LogicRules) (*Machine, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &Machine{rules: rules}, nil
}

func (m *Machine) Rules() LogicRules {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rules
}

// Clone returns an independent copy. State-triggered rollouts that run
// concurrently each record their events on their own clone.
func (m *Machine) Clone() *Machine {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := &Machine{
		rules: LogicRules{
			SwitchingTimes: append([]float64(nil), m.rules.SwitchingTimes...),
			Modes:          append([]int(nil), m.rules.Modes...),
		},
		partitioning: append([]float64(nil), m.partitioning...),
		events:       make([][]float64, len(m.events)),
		modes:        make([][]int, len(m.modes)),
	}
	for i := range m.events {
		c.events[i] = append([]float64(nil), m.events[i]...)
	}
	for i := range m.modes {
		c.modes[i] = append([]int(nil), m.modes[i]...)
	}
	return c
}

// SetRules replaces the logic rules and redistributes them.
func (m *Machine) SetRules(rules LogicRules) error {
	if err := rules.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.rules = rules
	m.mu.Unlock()
	if len(m.partitioning) > 0 {
		return m.Update(m.partitioning)
	}
	return nil
}

// Update redistributes the switching times over a new partitioning.
func (m *Machine) Update(partitioning []float64) error {
	if err := Validate(partitioning); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(partitioning) - 1
	m.partitioning = append(m.partitioning[:0], partitioning...)
	m.events = make([][]float64, n)
	m.modes = make([][]int, n)

	for i := 0; i < n; i++ {
		t0, t1 := partitioning[i], partitioning[i+1]
		sub := m.rules.subsystem(t0)
		m.modes[i] = []int{m.rules.mode(sub)}
		for _, s := range m.rules.SwitchingTimes {
			if s > t0 && s <= t1 {
				sub++
				m.events[i] = append(m.events[i], s)
				m.modes[i] = append(m.modes[i], m.rules.mode(sub))
			}
		}
	}
	return nil
}

func (m *Machine) NumPartitions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

func (m *Machine) Partitioning() []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]float64(nil), m.partitioning...)
}

// EventTimes returns the switching times inside partition i.
func (m *Machine) EventTimes(i int) []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i < 0 || i >= len(m.events) {
		return nil
	}
	return m.events[i]
}

// Subsystems returns the mode of every subsystem of partition i, one more
// than the number of events.
func (m *Machine) Subsystems(i int) []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i < 0 || i >= len(m.modes) {
		return nil
	}
	return m.modes[i]
}

// ModeAt returns the mode active at t, honouring events recorded by
// state-triggered rollouts.
func (m *Machine) ModeAt(t float64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.partitioning) < 2 {
		return m.rules.ModeAt(t)
	}
	i, err := FindActivePartition(m.partitioning, t)
	if err != nil {
		return m.rules.ModeAt(t)
	}
	k := 0
	for _, s := range m.events[i] {
		if s <= t {
			k++
		}
	}
	return m.modes[i][min(k, len(m.modes[i])-1)]
}

// SetPartitionEvents overrides the events of partition i with the ones found
// by a state-triggered rollout. modes must hold one more entry than times.
func (m *Machine) SetPartitionEvents(i int, times []float64, modes []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.events) {
		return fmt.Errorf("%w: %d of %d", ErrPartitionOutOfRange, i, len(m.events))
	}
	if len(modes) != len(times)+1 {
		return fmt.Errorf("%w: %d modes for %d events", ErrInvalidLogicRules, len(modes), len(times))
	}
	m.events[i] = append([]float64(nil), times...)
	m.modes[i] = append([]int(nil), modes...)
	return nil
}

// Display logs the per-partition event bookkeeping.
func (m *Machine) Display(logger *slog.Logger) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.events {
		logger.Info("[schedule]",
			slog.Int("partition", i),
			slog.Float64("start", m.partitioning[i]),
			slog.Float64("end", m.partitioning[i+1]),
			slog.Any("events", m.events[i]),
			slog.Any("modes", m.modes[i]),
		)
	}
}
