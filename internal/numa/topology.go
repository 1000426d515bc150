// Package numa implements NUMA-aware topology discovery, thread
// distribution and read-only data replication. It is the Go counterpart
// of the original engine's parallel/numa.{h,cpp}, reshaped around
// SeleniaProject-Orizon's internal/runtime/numa topology/optimizer
// package: the same Topology/Node shape, rebuilt to read the real
// /sys/devices/system/node layout on Linux instead of simulating it.
package numa

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Node describes one NUMA node: its id and the CPUs it owns.
type Node struct {
	ID      int
	CPUs    []int
	Online  bool
}

// Topology is the discovered (or synthesized) NUMA layout of the machine.
type Topology struct {
	nodes   []Node
	cpuNode map[int]int // cpu -> node id
	mutex   sync.RWMutex
}

const sysNodeDir = "/sys/devices/system/node"

// Discover builds a Topology by reading /sys/devices/system/node. If that
// fails (non-Linux, no NUMA, permission denied) it logs the reason at
// debug level and falls back to a single synthetic node spanning
// runtime.NumCPU() — never fatal.
func Discover(logger *zap.Logger) *Topology {
	if logger == nil {
		logger = zap.NewNop()
	}

	topo, err := discoverFromSysfs()
	if err != nil {
		logger.Debug("numa topology discovery fell back to single node", zap.Error(err))
		return singleNodeTopology()
	}

	return topo
}

func singleNodeTopology() *Topology {
	cpus := make([]int, runtime.NumCPU())
	cpuNode := make(map[int]int, len(cpus))

	for i := range cpus {
		cpus[i] = i
		cpuNode[i] = 0
	}

	return &Topology{
		nodes:   []Node{{ID: 0, CPUs: cpus, Online: true}},
		cpuNode: cpuNode,
	}
}

func discoverFromSysfs() (*Topology, error) {
	entries, err := os.ReadDir(sysNodeDir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sysNodeDir, err)
	}

	var nodes []Node

	cpuNode := make(map[int]int)

	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "node") {
			continue
		}

		idStr := strings.TrimPrefix(name, "node")

		id, err := strconv.Atoi(idStr)
		if err != nil {
			continue
		}

		cpus, err := readCPUList(filepath.Join(sysNodeDir, name, "cpulist"))
		if err != nil {
			return nil, err
		}

		for _, cpu := range cpus {
			cpuNode[cpu] = id
		}

		nodes = append(nodes, Node{ID: id, CPUs: cpus, Online: len(cpus) > 0})
	}

	if len(nodes) == 0 {
		return nil, fmt.Errorf("no NUMA nodes found under %s", sysNodeDir)
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	return &Topology{nodes: nodes, cpuNode: cpuNode}, nil
}

// readCPUList parses the Linux "list" format used by cpulist/cpumap
// sysfs files: comma-separated ranges like "0-3,8-11".
func readCPUList(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return nil, nil
	}

	line := strings.TrimSpace(scanner.Text())
	if line == "" {
		return nil, nil
	}

	var cpus []int

	for _, part := range strings.Split(line, ",") {
		if part == "" {
			continue
		}

		if lo, hi, ok := strings.Cut(part, "-"); ok {
			loN, err1 := strconv.Atoi(lo)
			hiN, err2 := strconv.Atoi(hi)

			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("malformed cpu range %q in %s", part, path)
			}

			for c := loN; c <= hiN; c++ {
				cpus = append(cpus, c)
			}
		} else {
			c, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("malformed cpu id %q in %s", part, path)
			}

			cpus = append(cpus, c)
		}
	}

	return cpus, nil
}

// NumNodes returns the number of NUMA nodes in this topology (always >= 1).
func (t *Topology) NumNodes() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return len(t.nodes)
}

// HasNUMA reports whether the platform exposes more than one NUMA node.
func (t *Topology) HasNUMA() bool { return t.NumNodes() > 1 }

// Nodes returns a copy of the node list.
func (t *Topology) Nodes() []Node {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	out := make([]Node, len(t.nodes))
	copy(out, t.nodes)

	return out
}

// NodeOf returns the NUMA node id owning cpu, or 0 if unknown.
func (t *Topology) NodeOf(cpu int) int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	if n, ok := t.cpuNode[cpu]; ok {
		return n
	}

	return 0
}

// CurrentNode returns the NUMA node of the calling goroutine's current CPU.
// It degrades to node 0 when the underlying syscall is unavailable.
func (t *Topology) CurrentNode() int {
	cpu, err := currentCPU()
	if err != nil {
		return 0
	}

	return t.NodeOf(cpu)
}
