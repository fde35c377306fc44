package renderer

import (
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-interactive-raytracer/pkg/core"
)

func TestShuffleTasks_IsPermutation(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7, 100, 1080} {
		tasks := ShuffleTasks(n, DefaultTaskSeed)
		require.Len(t, tasks, n)

		sorted := slices.Clone(tasks)
		slices.Sort(sorted)
		for i, v := range sorted {
			require.Equal(t, i, v, "n=%d: every row must appear exactly once", n)
		}
	}
}

func TestShuffleTasks_SwapPairs(t *testing.T) {
	// Reproduce the pair-swap procedure independently
	const n = 50
	expected := make([]int, n)
	for i := range expected {
		expected[i] = i
	}
	random := core.NewXoshiro256pp(DefaultTaskSeed)
	for i := 0; i < n; i++ {
		a := random.Next() % n
		b := random.Next() % n
		expected[a], expected[b] = expected[b], expected[a]
	}

	assert.Equal(t, expected, ShuffleTasks(n, DefaultTaskSeed))
	assert.Equal(t, ShuffleTasks(n, 3), ShuffleTasks(n, 3), "same seed must give same order")
	assert.NotEqual(t, ShuffleTasks(n, 3), ShuffleTasks(n, 4))
}

func TestExecutor_RunsAllTasksAcrossWorkers(t *testing.T) {
	const rows = 16
	var mu sync.Mutex
	seen := make(map[int]int)
	workersSeen := make(map[int]bool)

	jobs := make([]Job, 3)
	for w := range jobs {
		jobs[w] = func(task int) {
			mu.Lock()
			seen[task]++
			workersSeen[w] = true
			mu.Unlock()
			time.Sleep(50 * time.Microsecond)
		}
	}

	ex := NewExecutor(rows, jobs, DefaultTaskSeed)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == rows && len(workersSeen) == len(jobs)
	}, 5*time.Second, time.Millisecond)
	ex.Stop()

	dispatched := ex.Dispatched()
	mu.Lock()
	total := 0
	for _, c := range seen {
		total += c
	}
	mu.Unlock()
	assert.Equal(t, int(dispatched), total, "every dispatched job must have completed after Stop")

	// No job runs after Stop returns
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, dispatched, ex.Dispatched())
	ex.Stop()
}

func TestExecutor_CursorRotation(t *testing.T) {
	// With a single worker the tasks are visited in shuffled order, cyclically
	const rows = 10
	order := ShuffleTasks(rows, 9)

	var got []int
	var done atomic.Bool
	var ex *Executor
	jobs := []Job{func(task int) {
		if len(got) < 3*rows {
			got = append(got, task)
		} else {
			done.Store(true)
		}
	}}
	ex = NewExecutor(rows, jobs, 9)
	require.Eventually(t, done.Load, 5*time.Second, time.Millisecond)
	ex.Stop()

	for i, task := range got {
		assert.Equal(t, order[i%rows], task, "position %d", i)
	}
	assert.Equal(t, order, ex.Tasks())
}

func TestExecutor_ZeroTasks(t *testing.T) {
	called := false
	ex := NewExecutor(0, []Job{func(int) { called = true }}, 1)
	ex.Stop()
	assert.False(t, called)
}
