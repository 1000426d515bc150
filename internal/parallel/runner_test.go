package parallel

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// countingTask marks check[i]=1 for every task index it processes and
// optionally sleeps to simulate per-task work.
type countingTask struct {
	BaseTaskGenerator

	total int64
	sleep time.Duration

	mu    sync.Mutex
	check []int
}

func newCountingTask(total int64, sleep time.Duration) *countingTask {
	return &countingTask{total: total, sleep: sleep, check: make([]int, total)}
}

func (c *countingTask) NumTasks() int64 { return c.total }

func (c *countingTask) RunTasks(begin, end int64, _ ThreadID) {
	for i := begin; i < end; i++ {
		if c.sleep > 0 {
			time.Sleep(c.sleep)
		}

		c.mu.Lock()
		c.check[i] = 1
		c.mu.Unlock()
	}
}

func TestRunnerCompletesAllTasks(t *testing.T) {
	task := newCountingTask(100, 0)

	runner := NewRunner(4, 8)
	runner.BindThreads = false

	result := runner.Run(task, 0)
	require.True(t, result.Finished)

	for i, v := range task.check {
		require.Equal(t, 1, v, "task %d was not run", i)
	}
}

func TestRunnerRespectsStart(t *testing.T) {
	task := newCountingTask(20, 0)

	runner := NewRunner(2, 4)
	runner.BindThreads = false

	result := runner.Run(task, 5)
	require.True(t, result.Finished)

	for i := int64(0); i < 5; i++ {
		require.Equal(t, 0, task.check[i], "task %d before start must not run", i)
	}

	for i := int64(5); i < 20; i++ {
		require.Equal(t, 1, task.check[i], "task %d after start must run", i)
	}
}

func TestRunnerTimeoutLeavesSuffixUnclaimed(t *testing.T) {
	task := newCountingTask(2000, 200*time.Microsecond)

	runner := NewRunner(4, 16)
	runner.BindThreads = false
	runner.TimeLimit = 10 * time.Millisecond

	result := runner.Run(task, 0)
	require.False(t, result.Finished)
	require.Less(t, result.NextTask, int64(2000))

	tailAllZero := true
	for i := result.NextTask; i < 2000; i++ {
		if task.check[i] != 0 {
			tailAllZero = false
			break
		}
	}

	require.True(t, tailAllZero, "no task at or past NextTask should have run")
}

func TestRunnerCapsThreadsToChunkCount(t *testing.T) {
	task := newCountingTask(10, 0)

	runner := NewRunner(64, 5)
	runner.BindThreads = false

	result := runner.Run(task, 0)
	require.True(t, result.Finished)

	for i, v := range task.check {
		require.Equal(t, 1, v, "task %d was not run", i)
	}
}

func TestRunnerEmptyRangeFinishesImmediately(t *testing.T) {
	task := newCountingTask(5, 0)

	runner := NewRunner(2, 4)
	runner.BindThreads = false

	result := runner.Run(task, 5)
	require.True(t, result.Finished)
	require.Equal(t, int64(5), result.NextTask)
}
