// Package parallel implements the chunked, NUMA-pinned task runner that
// drives both training and prediction. It is a direct translation of the
// original engine's parallel/task.h (TaskGenerator) and parallel/runner.cpp
// (the atomic-counter dynamic scheduling loop), reshaped so the optional
// hooks are satisfied by embedding BaseTaskGenerator instead of C++
// virtual-function defaults.
package parallel

import "github.com/xmc-aalto/dismecpp-sub001/internal/xmctypes"

// ThreadID re-exports xmctypes.ThreadID so task generators don't need to
// import xmctypes just for this one type.
type ThreadID = xmctypes.ThreadID

// TaskGenerator is the contract any parallelized operation must implement.
// NumTasks and RunTasks are required; Prepare, InitThread and Finalize are
// optional lifecycle hooks a generator can override by not embedding
// BaseTaskGenerator, or by embedding it and only overriding what it needs.
type TaskGenerator interface {
	// NumTasks returns the total number of tasks M. Called once on the
	// main thread before any worker starts.
	NumTasks() int64

	// RunTasks executes tasks [begin, end) on the calling worker thread.
	// Must be safe to call reentrantly from different threads with
	// disjoint, non-overlapping intervals.
	RunTasks(begin, end int64, thread ThreadID)

	// Prepare is called on the main thread before any worker starts, and
	// gives the generator a chance to size per-thread scratch from the
	// final (numThreads, chunkSize).
	Prepare(numThreads int, chunkSize int64)

	// InitThread is called once per worker, on that worker's own thread,
	// before its first RunTasks call — this is where first-touch
	// NUMA-local allocations belong.
	InitThread(thread ThreadID)

	// Finalize is called on the main thread after every worker has
	// joined, for single-threaded reductions (e.g. stats merge,
	// confusion-matrix summation).
	Finalize()
}

// BaseTaskGenerator supplies no-op defaults for the optional hooks. Embed
// it in a concrete generator and only override what's needed.
type BaseTaskGenerator struct{}

func (BaseTaskGenerator) Prepare(int, int64)     {}
func (BaseTaskGenerator) InitThread(ThreadID)    {}
func (BaseTaskGenerator) Finalize()              {}
