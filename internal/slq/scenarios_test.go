package slq

import (
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/lizqwerscott/ocs2-ros2/internal/schedule"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"
)

var _ = Describe("Solver", func() {
	var (
		solver *Solver
		x0     dynamo.State
	)

	BeforeEach(func() {
		var err error
		solver, err = New(doubleIntegratorProblem(), schedule.LogicRules{}, testSettings())
		Expect(err).NotTo(HaveOccurred())
		x0 = dynamo.State{1, 0}
	})

	Context("on an unconstrained double integrator", func() {
		It("converges to the LQR optimum", func() {
			Expect(solver.Run(0, x0, 2, []float64{0, 2})).To(Succeed())

			stats := solver.Stats()
			Expect(stats.Converged).To(BeTrue())
			Expect(stats.Iterations).To(BeNumerically("<=", 6))

			optimum := doubleIntegratorOptimum(2, x0)
			Expect(solver.PerformanceIndices().Cost).To(BeNumerically("~", optimum, 1e-3*optimum))

			v, err := solver.ValueFunction(0, x0)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(BeNumerically("~", optimum, 1e-3*optimum))
		})

		It("spans the horizon with contiguous non-decreasing time stamps", func() {
			partitioning := []float64{0, 0.5, 1, 1.5, 2}
			Expect(solver.Run(0.25, x0, 1.75, partitioning)).To(Succeed())

			trs := solver.NominalTrajectories()
			Expect(trs).To(HaveLen(4))
			Expect(trs[0].Times[0]).To(Equal(0.25))
			Expect(trs[3].Times[trs[3].Len()-1]).To(Equal(1.75))
			for i := range trs {
				Expect(trs[i].Empty()).To(BeFalse())
				for k := 1; k < trs[i].Len(); k++ {
					Expect(trs[i].Times[k]).To(BeNumerically(">=", trs[i].Times[k-1]))
				}
				if i > 0 {
					Expect(trs[i].Times[0]).To(Equal(trs[i-1].Times[trs[i-1].Len()-1]))
				}
			}
		})
	})

	Context("when rewinding", func() {
		It("shifts the cached boundary values to the front", func() {
			Expect(solver.Run(0, x0, 2, []float64{0, 0.5, 1, 1.5, 2})).To(Succeed())
			before := solver.Boundaries()
			Expect(before[1].Empty()).To(BeFalse())

			Expect(solver.Rewind(1)).To(Succeed())
			after := solver.Boundaries()

			Expect(mat.Equal(after[0].Sm, before[1].Sm)).To(BeTrue())
			Expect(mat.Equal(after[0].Sv, before[1].Sv)).To(BeTrue())
			Expect(after[0].S).To(Equal(before[1].S))
			Expect(after[3].Empty()).To(BeTrue())
			Expect(solver.RewindCounter()).To(Equal(1))
		})

		It("rejects rewinding past the partitioning", func() {
			Expect(solver.Run(0, x0, 2, []float64{0, 1, 2})).To(Succeed())
			Expect(solver.Rewind(0)).To(Succeed())
			Expect(solver.Rewind(3)).To(MatchError(ErrRewind))
			Expect(solver.RewindCounter()).To(BeZero())
		})
	})
})
