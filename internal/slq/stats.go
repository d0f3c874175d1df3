package slq

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lizqwerscott/ocs2-ros2/internal/linesearch"
)

// IterationRecord is one entry of the iteration log.
type IterationRecord struct {
	Iteration    int                    `json:"iteration"`
	Performance  linesearch.Performance `json:"performance"`
	LearningRate float64                `json:"learning_rate"`
	StepType     string                 `json:"step_type"`
	MaxDelta     float64                `json:"max_delta"`
}

// Stats describes the last Run. It is reset at the start of every Run.
type Stats struct {
	Iterations       int           `json:"iterations"`
	Converged        bool          `json:"converged"`
	Reason           string        `json:"reason"`
	RewindCounter    int           `json:"rewind_counter"`
	AvgForward       time.Duration `json:"avg_forward"`
	AvgApproximation time.Duration `json:"avg_approximation"`
	AvgBackward      time.Duration `json:"avg_backward"`
	LearningRates    []float64     `json:"learning_rates"`

	forward, approximation, backward timer
}

type timer struct {
	total time.Duration
	count int
}

func (t *timer) add(d time.Duration) {
	t.total += d
	t.count++
}

func (t *timer) avg() time.Duration {
	if t.count == 0 {
		return 0
	}
	return t.total / time.Duration(t.count)
}

func (s *Stats) finish() {
	s.AvgForward = s.forward.avg()
	s.AvgApproximation = s.approximation.avg()
	s.AvgBackward = s.backward.avg()
}

// printer serializes display output from concurrent phases.
type printer struct {
	mu     sync.Mutex
	logger *slog.Logger
	info   bool
}

func (p *printer) level() slog.Level {
	if p.info {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

func (p *printer) iteration(r IterationRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger.Log(context.Background(), p.level(), "[slq]",
		slog.Int("iteration", r.Iteration),
		slog.Float64("cost", r.Performance.Cost),
		slog.Float64("merit", r.Performance.Merit),
		slog.Float64("ise1", r.Performance.ISE1),
		slog.Float64("ise2", r.Performance.ISE2),
		slog.Float64("learning_rate", r.LearningRate),
		slog.String("step", r.StepType),
	)
}

func (p *printer) print(msg string, attrs ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger.Log(context.Background(), p.level(), msg, attrs...)
}

func (p *printer) summary(s Stats, perf linesearch.Performance) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger.Info("[slq]",
		slog.String("event", "summary"),
		slog.Int("iterations", s.Iterations),
		slog.Bool("converged", s.Converged),
		slog.String("reason", s.Reason),
		slog.Float64("cost", perf.Cost),
		slog.Float64("ise1", perf.ISE1),
		slog.Duration("avg_forward", s.AvgForward),
		slog.Duration("avg_approximation", s.AvgApproximation),
		slog.Duration("avg_backward", s.AvgBackward),
	)
}
