package monitor

import (
	"context"
	"errors"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/vbluemer/Homogenization-for-Damask/internal/increment"
	"github.com/vbluemer/Homogenization-for-Damask/internal/job"
	"github.com/vbluemer/Homogenization-for-Damask/internal/lifecycle"
	"github.com/vbluemer/Homogenization-for-Damask/internal/mocksolver"
	"github.com/vbluemer/Homogenization-for-Damask/internal/resultstore"
	"github.com/vbluemer/Homogenization-for-Damask/internal/stopcond"
)

var _ = ginkgo.Describe("Supervisor", func() {
	var (
		dir    string
		ctx    context.Context
		cancel context.CancelFunc
	)

	ginkgo.BeforeEach(func() {
		dir = ginkgo.GinkgoT().TempDir()
		ctx, cancel = context.WithTimeout(context.Background(), time.Minute)
		ginkgo.DeferCleanup(func() { cancel() })
	})

	run := func(s *Supervisor, j *job.Job) Outcome {
		return s.Run(ctx, j, increment.NewAccumulator(s.Settings.PollInterval))
	}

	ginkgo.Context("when the plastic strain threshold is crossed", func() {
		ginkgo.It("stops the solver and locates the yield point offline", func() {
			j := uniaxialJob(dir, job.Yielding{Kind: job.StressStrainCurve, Threshold: 0.0005})
			out := run(fakeSupervisor(mocksolver.Hardening, 40, 150*time.Millisecond), j)

			gomega.Expect(out.Err).NotTo(gomega.HaveOccurred())
			gomega.Expect(out.Accumulator.StopReached).To(gomega.BeTrue())
			gomega.Expect(out.Accumulator.Succeeded).To(gomega.BeTrue())
			gomega.Expect(out.Accumulator.LastIncrement).To(gomega.BeNumerically(">=", 4))
			gomega.Expect(out.Accumulator.LastIncrement).To(gomega.BeNumerically("<", 40))
			gomega.Expect(out.Exit).NotTo(gomega.Equal(lifecycle.ExitFault))
			gomega.Expect(out.Continue).To(gomega.BeTrue())

			st, err := resultstore.Open(j.Runtime.ResultFile)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			defer st.Close()
			h, err := resultstore.Reader{}.History(context.Background(), st)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			res, err := stopcond.PlasticStrain{}.Offline(j, h)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(res).NotTo(gomega.BeNil())
			gomega.Expect(res.Before).To(gomega.Equal(3))
			gomega.Expect(res.After).To(gomega.Equal(4))
			// ep = 0.9 (e - 0.003) reaches 0.0005 at e = 0.0035556
			gomega.Expect(res.Fraction).To(gomega.BeNumerically("~", 5.0/9.0, 1e-6))
		})
	})

	ginkgo.Context("when the solver holds its write lock", func() {
		ginkgo.It("never reads and keeps the read cursor", func() {
			j := uniaxialJob(dir, job.NoCondition{})
			lock := resultstore.LockPath(j.Runtime.ResultFile)
			s := fakeSupervisor(mocksolver.Locked, 1, 100*time.Millisecond)

			streak, atLock := 0, 0
			s.Observer = func(st State, acc *increment.Accumulator) {
				switch st {
				case ReadingIncrement:
					streak = 0
				case CheckingLock:
					if _, err := os.Stat(lock); err != nil {
						return
					}
					streak++
					if streak == 1 {
						atLock = acc.LastIncrement
					}
					if streak == 5 {
						cancel()
					}
				}
			}
			out := run(s, j)

			gomega.Expect(streak).To(gomega.BeNumerically(">=", 5))
			gomega.Expect(out.Accumulator.LastIncrement).To(gomega.Equal(atLock))
			gomega.Expect(errors.Is(out.Err, context.Canceled)).To(gomega.BeTrue())
			gomega.Expect(out.Accumulator.Succeeded).To(gomega.BeFalse())

			// a locked solver is asked politely and releases its lock
			gomega.Expect(out.Exit).To(gomega.Equal(lifecycle.ExitClean))
			gomega.Expect(lock).NotTo(gomega.BeAnExistingFile())
			log, err := os.ReadFile(j.Runtime.LogFile)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(string(log)).To(gomega.ContainSubstring("releasing lock"))
		})
	})

	ginkgo.Context("when the solver finishes before the stop condition fires", func() {
		ginkgo.It("marks the run successful without a stop", func() {
			j := uniaxialJob(dir, job.Yielding{Kind: job.ModulusDegradation, Threshold: 0.5})
			out := run(fakeSupervisor(mocksolver.Elastic, 3, 30*time.Millisecond), j)

			gomega.Expect(out.Err).NotTo(gomega.HaveOccurred())
			gomega.Expect(out.ExitCode).To(gomega.Equal(0))
			gomega.Expect(out.Exit).To(gomega.Equal(lifecycle.ExitClean))
			gomega.Expect(out.Accumulator.Succeeded).To(gomega.BeTrue())
			gomega.Expect(out.Accumulator.StopReached).To(gomega.BeFalse())
		})
	})

	ginkgo.Context("when the solver reports an error", func() {
		ginkgo.It("fails the run and surfaces the log tail", func() {
			j := uniaxialJob(dir, job.NoCondition{})
			out := run(fakeSupervisor(mocksolver.Fault, 1, time.Millisecond), j)

			gomega.Expect(out.Exit).To(gomega.Equal(lifecycle.ExitFault))
			gomega.Expect(out.Accumulator.Succeeded).To(gomega.BeFalse())
			var se *SolverError
			gomega.Expect(errors.As(out.Err, &se)).To(gomega.BeTrue())
			gomega.Expect(se.ExitCode).To(gomega.Equal(1))
			gomega.Expect(se.Tail).To(gomega.HaveLen(50))
			gomega.Expect(se.Tail[49]).To(gomega.HaveSuffix("cutback 60"))
			gomega.Expect(strings.Count(se.Log(), "\n")).To(gomega.Equal(49))
		})
	})

	ginkgo.Context("when the result file cannot be read", func() {
		ginkgo.It("gives up once the error count exceeds the threshold", func() {
			j := uniaxialJob(dir, job.NoCondition{})
			s := fakeSupervisor(mocksolver.Corrupt, 1, 80*time.Millisecond)
			failed := 0
			s.Observer = func(st State, acc *increment.Accumulator) {
				if st == WaitingUpdate && acc.ParseErrors > failed {
					failed = acc.ParseErrors
				}
			}
			out := run(s, j)

			gomega.Expect(errors.Is(out.Err, ErrTooManyParseErrors)).To(gomega.BeTrue())
			gomega.Expect(out.Accumulator.LastIncrement).To(gomega.Equal(1))
			gomega.Expect(out.Accumulator.ParseErrors).To(gomega.Equal(4))
			gomega.Expect(failed).To(gomega.Equal(3))
			gomega.Expect(out.Accumulator.Succeeded).To(gomega.BeFalse())
			gomega.Expect(out.Exit).To(gomega.Equal(lifecycle.ExitTerminated))
		})

		ginkgo.It("counts an unchanged broken file only once", func() {
			j := uniaxialJob(dir, job.NoCondition{})
			s := fakeSupervisor(mocksolver.Corrupt, 1, 500*time.Millisecond)
			polls := 0
			s.Observer = func(st State, acc *increment.Accumulator) {
				if st != WaitingUpdate || acc.ParseErrors == 0 {
					return
				}
				polls++
				if polls == 8 {
					cancel()
				}
			}
			out := run(s, j)

			gomega.Expect(polls).To(gomega.BeNumerically(">=", 8))
			gomega.Expect(errors.Is(out.Err, context.Canceled)).To(gomega.BeTrue())
			gomega.Expect(out.Accumulator.ParseErrors).To(gomega.Equal(1))
		})

		ginkgo.It("keeps waiting while the solver is still starting", func() {
			j := uniaxialJob(dir, job.NoCondition{})
			s := fakeSupervisor(mocksolver.Garbage, 1, 15*time.Millisecond)
			reads := 0
			s.Observer = func(st State, _ *increment.Accumulator) {
				if st != ReadingIncrement {
					return
				}
				reads++
				if reads == 8 {
					cancel()
				}
			}
			out := run(s, j)

			gomega.Expect(reads).To(gomega.BeNumerically(">=", 8))
			gomega.Expect(errors.Is(out.Err, context.Canceled)).To(gomega.BeTrue())
			gomega.Expect(errors.Is(out.Err, ErrTooManyParseErrors)).To(gomega.BeFalse())
			gomega.Expect(out.Accumulator.ParseErrors).To(gomega.Equal(0))
			gomega.Expect(out.Accumulator.LastIncrement).To(gomega.Equal(-1))
		})
	})

	ginkgo.Context("when the operator interrupts", func() {
		ginkgo.It("stops the solver and asks about the remaining jobs", func() {
			j := uniaxialJob(dir, job.Yielding{Kind: job.PlasticWork, Threshold: 1e9})
			s := fakeSupervisor(mocksolver.Hardening, 40, 100*time.Millisecond)
			interrupts := make(chan os.Signal, 1)
			s.Interrupts = interrupts
			s.Prompter = lifecycle.FixedPrompter{Answer: false}
			s.Observer = func(st State, _ *increment.Accumulator) {
				if st == EvaluatingStop && len(interrupts) == 0 {
					interrupts <- syscall.SIGINT
				}
			}
			out := run(s, j)

			gomega.Expect(out.Continue).To(gomega.BeFalse())
			gomega.Expect(out.Accumulator.Succeeded).To(gomega.BeFalse())
			gomega.Expect(out.Accumulator.StopReached).To(gomega.BeFalse())
			gomega.Expect(out.Exit).NotTo(gomega.Equal(lifecycle.ExitFault))
		})
	})
})
