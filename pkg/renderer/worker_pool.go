package renderer

import (
	"sync"
	"sync/atomic"

	"github.com/df07/go-interactive-raytracer/pkg/core"
)

// DefaultTaskSeed is the seed used to shuffle row order when none is given
const DefaultTaskSeed uint64 = 47

// Job renders one task. Each worker goroutine owns exactly one Job.
type Job func(task int)

// Executor runs a fixed set of workers that pull tasks off a shared cursor
// until stopped. Tasks rotate through all workers; there are no per-worker
// queues and no work stealing.
type Executor struct {
	tasks   []int
	cursor  atomic.Uint64
	running atomic.Bool
	wg      sync.WaitGroup
}

// ShuffleTasks returns [0, n) reordered by n random pair swaps drawn from a
// xoshiro256++ generator. This is deliberately not a uniform permutation; it
// only spreads consecutive rows apart and is reproducible for a given seed.
func ShuffleTasks(n int, seed uint64) []int {
	tasks := make([]int, n)
	for i := range tasks {
		tasks[i] = i
	}
	if n == 0 {
		return tasks
	}

	random := core.NewXoshiro256pp(seed)
	size := uint64(n)
	for range tasks {
		a := random.Next() % size
		b := random.Next() % size
		tasks[a], tasks[b] = tasks[b], tasks[a]
	}
	return tasks
}

// NewExecutor shuffles taskCount tasks and starts one goroutine per job
func NewExecutor(taskCount int, jobs []Job, seed uint64) *Executor {
	e := &Executor{tasks: ShuffleTasks(taskCount, seed)}
	e.running.Store(true)

	if taskCount == 0 {
		return e
	}

	for _, job := range jobs {
		e.wg.Add(1)
		go e.run(job)
	}

	core.Logger().Debug("executor started", "tasks", taskCount, "workers", len(jobs))
	return e
}

// run is the main worker loop
func (e *Executor) run(job Job) {
	defer e.wg.Done()

	n := uint64(len(e.tasks))
	for e.running.Load() {
		idx := (e.cursor.Add(1) - 1) % n
		job(e.tasks[idx])
	}
}

// Stop signals every worker to exit after its current task and waits for
// them. Calling Stop more than once is harmless.
func (e *Executor) Stop() {
	if e.running.CompareAndSwap(true, false) {
		core.Logger().Debug("executor stopping", "dispatched", e.cursor.Load())
	}
	e.wg.Wait()
}

// Tasks returns a copy of the shuffled task order
func (e *Executor) Tasks() []int {
	return append([]int(nil), e.tasks...)
}

// Dispatched returns how many jobs have been started so far
func (e *Executor) Dispatched() uint64 {
	return e.cursor.Load()
}
