package numa

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"go.uber.org/zap"

	"github.com/xmc-aalto/dismecpp-sub001/internal/xmcerr"
)

// ThreadDistributor maps worker indices to CPU cores so that no two
// workers land on SMT siblings or cache-sharing cores before the topology
// has been spread across physical cores first. Grounded on the original
// engine's parallel::ThreadDistributor (src/parallel/numa.h) and on
// SeleniaProject-Orizon's internal/runtime/numa.Scheduler CPU-selection
// logic (least-loaded-CPU-per-node, round robin across nodes).
type ThreadDistributor struct {
	placements []int
	logger     *zap.Logger
}

type cpuLoad struct {
	cpu  int
	load int
}

// NewThreadDistributor computes the CPU placement vector for numThreads
// workers against topo.
func NewThreadDistributor(topo *Topology, numThreads int, logger *zap.Logger) *ThreadDistributor {
	if logger == nil {
		logger = zap.NewNop()
	}

	if topo == nil {
		topo = singleNodeTopology()
	}

	nodes := topo.Nodes()

	type nodeState struct {
		nodeID int
		loads  []cpuLoad
	}

	var states []nodeState

	for _, n := range nodes {
		if len(n.CPUs) == 0 {
			continue
		}

		loads := make([]cpuLoad, len(n.CPUs))
		for i, cpu := range n.CPUs {
			loads[i] = cpuLoad{cpu: cpu, load: 0}
		}

		states = append(states, nodeState{nodeID: n.ID, loads: loads})
	}

	if len(states) == 0 {
		states = append(states, nodeState{nodeID: 0, loads: []cpuLoad{{cpu: 0, load: 0}}})
	}

	placements := make([]int, 0, numThreads)

	for nodeIdx := 0; len(placements) < numThreads; nodeIdx = (nodeIdx + 1) % len(states) {
		st := &states[nodeIdx]
		if len(st.loads) == 0 {
			continue
		}

		// pick the CPU with minimum load in this node
		best := 0
		for i := range st.loads {
			if st.loads[i].load < st.loads[best].load {
				best = i
			}
		}

		chosen := st.loads[best].cpu
		placements = append(placements, chosen)

		st.loads[best].load += 10

		for i := range st.loads {
			if st.loads[i].cpu == chosen {
				continue
			}

			if isSMTSibling(chosen, st.loads[i].cpu) {
				st.loads[i].load += 5
			} else if sharesCache(chosen, st.loads[i].cpu) {
				st.loads[i].load += 1
			}
		}
	}

	return &ThreadDistributor{placements: placements, logger: logger}
}

// Pin binds the calling OS thread's affinity to the CPU assigned to
// threadIdx. It sets CPU affinity only; the memory allocation policy is
// left unchanged. An affinity failure is returned as an
// *xmcerr.ResourceError. The caller must already hold an OS thread lock
// (runtime.LockOSThread).
func (d *ThreadDistributor) Pin(threadIdx int) error {
	if threadIdx < 0 || threadIdx >= len(d.placements) {
		return fmt.Errorf("numa: thread index %d out of range [0,%d)", threadIdx, len(d.placements))
	}

	cpu := d.placements[threadIdx]
	if err := pinToCPU(cpu); err != nil {
		d.logger.Debug("cpu affinity pin unavailable, continuing unpinned", zap.Int("thread", threadIdx), zap.Error(err))
		return xmcerr.NewResourceError(fmt.Sprintf("pinning thread %d to cpu %d", threadIdx, cpu), err)
	}

	return nil
}

// Placement returns the CPU assigned to a given thread index.
func (d *ThreadDistributor) Placement(threadIdx int) int { return d.placements[threadIdx] }

func isSMTSibling(a, b int) bool {
	path := fmt.Sprintf("/sys/devices/system/cpu/cpu%d/topology/thread_siblings_list", a)

	siblings, err := readCPUList(path)
	if err != nil {
		return false
	}

	for _, s := range siblings {
		if s == b {
			return true
		}
	}

	return false
}

func sharesCache(a, b int) bool {
	base := fmt.Sprintf("/sys/devices/system/cpu/cpu%d/cache", a)

	entries, err := os.ReadDir(base)
	if err != nil {
		return false
	}

	for _, e := range entries {
		listPath := filepath.Join(base, e.Name(), "shared_cpu_list")

		shared, err := readCPUList(listPath)
		if err != nil {
			continue
		}

		for _, s := range shared {
			if s == b {
				return true
			}
		}
	}

	return false
}

// EffectiveThreads caps a requested thread count at 2*hw_concurrency+1,
// returning both the capped value and whether capping happened (the
// caller logs the warning, since this package stays logging-framework
// agnostic about call-site context).
func EffectiveThreads(requested int) (capped int, wasCapped bool) {
	hw := runtime.NumCPU()
	limit := 2*hw + 1

	if requested > limit {
		return limit, true
	}

	return requested, false
}

// sortedCPUs is a small helper used by tests to get a deterministic CPU
// ordering out of a node list.
func sortedCPUs(cpus []int) []int {
	out := append([]int(nil), cpus...)
	sort.Ints(out)

	return out
}
