package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xmc-aalto/dismecpp-sub001/internal/numa"
)

// minTimePerChunkMS is the per-chunk-time threshold below which the runner
// hints that chunk_size should be increased.
const minTimePerChunkMS = 5

// Result reports how a run terminated. Finished is true iff every chunk
// was claimed; NextTask is where a follow-up run should resume (it may
// exceed M when the run did finish).
type Result struct {
	Finished bool
	NextTask int64
	WallTime time.Duration
}

// Runner executes a TaskGenerator over dynamically claimed chunks using a
// single shared atomic counter — not work-stealing, not a channel-based
// pool, matching the original's std::atomic<long> sub_counter design.
type Runner struct {
	NumThreads int           // <=0 means "use hardware concurrency"
	ChunkSize  int64
	TimeLimit  time.Duration // <=0 means "no limit"
	BindThreads bool
	Logger     *zap.Logger
	Topology   *numa.Topology
}

// NewRunner builds a Runner with the given thread/chunk request. Pass
// numThreads<=0 to use hardware concurrency.
func NewRunner(numThreads int, chunkSize int64) *Runner {
	if chunkSize <= 0 {
		chunkSize = 1
	}

	return &Runner{NumThreads: numThreads, ChunkSize: chunkSize, BindThreads: true}
}

// Run drives tasks starting from the given task index. Tasks [0, start)
// are never touched.
func (r *Runner) Run(tasks TaskGenerator, start int64) Result {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	numThreads := r.NumThreads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	if capped, was := numa.EffectiveThreads(numThreads); was {
		logger.Warn("requested thread count exceeds hardware concurrency cap, capping",
			zap.Int("requested", numThreads), zap.Int("capped", capped))

		numThreads = capped
	}

	totalTasks := tasks.NumTasks() - start
	if totalTasks <= 0 {
		tasks.Prepare(0, r.ChunkSize)
		tasks.Finalize()

		return Result{Finished: true, NextTask: start, WallTime: 0}
	}

	numChunks := totalTasks / r.ChunkSize
	if totalTasks%r.ChunkSize != 0 {
		numChunks++
	}

	if int64(numThreads) > numChunks {
		numThreads = int(numChunks)
	}

	if numThreads < 1 {
		numThreads = 1
	}

	var (
		chunkCounter atomic.Int64
		cpuTimeMS    atomic.Int64
		wg           sync.WaitGroup
	)

	startTime := time.Now()
	deadline := r.TimeLimit

	tasks.Prepare(numThreads, r.ChunkSize)

	var distributor *numa.ThreadDistributor
	if r.BindThreads {
		distributor = numa.NewThreadDistributor(r.Topology, numThreads, logger)
	}

	logger.Info("spawning threads to run tasks", zap.Int("threads", numThreads), zap.Int64("tasks", totalTasks))

	for w := 0; w < numThreads; w++ {
		wg.Add(1)

		threadID := ThreadID(w)

		go func() {
			defer wg.Done()

			if distributor != nil {
				runtime.LockOSThread()
				defer runtime.UnlockOSThread()

				_ = distributor.Pin(w)
			}

			tasks.InitThread(threadID)

			for {
				if deadline > 0 && time.Since(startTime) >= deadline {
					return
				}

				pos := chunkCounter.Add(1) - 1
				if pos >= numChunks {
					return
				}

				beginTask := pos*r.ChunkSize + start
				endTask := minInt64((pos+1)*r.ChunkSize, totalTasks) + start

				taskStart := time.Now()
				tasks.RunTasks(beginTask, endTask, threadID)
				cpuTimeMS.Add(time.Since(taskStart).Milliseconds())
			}
		}()
	}

	wg.Wait()

	tasks.Finalize()

	wallTime := time.Since(startTime)
	finished := chunkCounter.Load() >= numChunks
	nextTask := chunkCounter.Load()*r.ChunkSize + start

	if finished {
		logger.Info("threads finished", zap.Duration("wall_time", wallTime))
	} else {
		logger.Info("computation timeout reached", zap.Duration("time_limit", deadline),
			zap.Int64("next_task", nextTask))
	}

	if totalTasks > 0 {
		avgPerChunkMS := (cpuTimeMS.Load() * r.ChunkSize) / totalTasks
		if avgPerChunkMS < minTimePerChunkMS {
			logger.Warn("average time per chunk is low, consider increasing chunk size",
				zap.Int64("avg_ms", avgPerChunkMS), zap.Int64("chunk_size", r.ChunkSize))
		}
	}

	return Result{Finished: finished, NextTask: nextTask, WallTime: wallTime}
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}

	return b
}
