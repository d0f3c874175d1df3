package dynamo

// Trajectory holds the samples of one partition. Events are past-the-end
// indices of the pre-jump segments: sample e-1 is the pre-jump state and
// sample e the post-jump state at the same time stamp.
type Trajectory struct {
	Times  []float64
	States []State
	Inputs []Input
	Events []int
}

func (tr *Trajectory) Len() int {
	return len(tr.Times)
}

func (tr *Trajectory) Empty() bool {
	return len(tr.Times) == 0
}

func (tr *Trajectory) Append(t float64, x State, u Input) {
	tr.Times = append(tr.Times, t)
	tr.States = append(tr.States, x)
	tr.Inputs = append(tr.Inputs, u)
}

// MarkEvent records that the next appended sample starts a new subsystem.
func (tr *Trajectory) MarkEvent() {
	tr.Events = append(tr.Events, len(tr.Times))
}

func (tr *Trajectory) Clone() Trajectory {
	c := Trajectory{
		Times:  append([]float64(nil), tr.Times...),
		States: make([]State, len(tr.States)),
		Inputs: make([]Input, len(tr.Inputs)),
		Events: append([]int(nil), tr.Events...),
	}
	for i := range tr.States {
		c.States[i] = tr.States[i].Clone()
	}
	for i := range tr.Inputs {
		c.Inputs[i] = tr.Inputs[i].Clone()
	}
	return c
}

// Span returns the first and last time stamps.
func (tr *Trajectory) Span() (float64, float64) {
	if tr.Empty() {
		return 0, 0
	}
	return tr.Times[0], tr.Times[len(tr.Times)-1]
}

// Final returns the last sample.
func (tr *Trajectory) Final() (float64, State, Input) {
	n := len(tr.Times)
	if n == 0 {
		return 0, nil, nil
	}
	return tr.Times[n-1], tr.States[n-1], tr.Inputs[n-1]
}

// Segments returns the event-delimited [begin, end) index ranges.
func (tr *Trajectory) Segments() [][2]int {
	segs := make([][2]int, 0, len(tr.Events)+1)
	begin := 0
	for _, e := range tr.Events {
		segs = append(segs, [2]int{begin, e})
		begin = e
	}
	return append(segs, [2]int{begin, tr.Len()})
}

// IsEvent reports whether k is the last pre-jump sample of a segment.
func (tr *Trajectory) IsEvent(k int) bool {
	for _, e := range tr.Events {
		if e-1 == k {
			return true
		}
	}
	return false
}
