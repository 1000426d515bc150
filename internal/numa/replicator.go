package numa

import (
	"go.uber.org/zap"
)

// Replicator holds one immutable copy of a payload per NUMA node and
// serves the node-local copy to callers. It is the generic replacement for
// the original engine's type-erased NUMAReplicator<T> (which hid the
// payload type behind std::any): Go generics let us keep the clone
// function typed, so there is no runtime type assertion at the use site.
type Replicator[T any] struct {
	topo    *Topology
	single  T
	copies  []T // one per node, empty slice if NUMA is unavailable
	hasNUMA bool
}

// Replicate builds a Replicator for value, cloning it once per online NUMA
// node via clone. Every clone call runs on the calling goroutine and no
// per-node allocation policy is set, so the OS decides where each copy's
// memory is placed. On non-Linux or single-node systems, no
// extra clones are made and Local always returns value. A disabled node is
// logged and substituted with the single authoritative copy, never fatal.
func Replicate[T any](topo *Topology, value T, clone func() T, logger *zap.Logger) *Replicator[T] {
	r := &Replicator[T]{topo: topo, single: value}

	if topo == nil || !topo.HasNUMA() {
		return r
	}

	copies := make([]T, topo.NumNodes())
	for i, node := range topo.Nodes() {
		if !node.Online {
			logDisabledNode(logger, node.ID)
			copies[i] = value
			continue
		}

		copies[i] = clone()
	}

	r.copies = copies
	r.hasNUMA = true

	return r
}

// Local returns the copy for the calling goroutine's current NUMA node,
// degrading to the single authoritative copy when NUMA is unavailable or
// the node index is out of range.
func (r *Replicator[T]) Local() T {
	if !r.hasNUMA {
		return r.single
	}

	node := r.topo.CurrentNode()
	if node < 0 || node >= len(r.copies) {
		return r.single
	}

	return r.copies[node]
}

// LocalForNode returns the copy for an explicitly given node id, used by
// worker threads that already know which node they were pinned to and
// want to avoid a repeated CurrentNode() syscall.
func (r *Replicator[T]) LocalForNode(node int) T {
	if !r.hasNUMA || node < 0 || node >= len(r.copies) {
		return r.single
	}

	return r.copies[node]
}

// logDisabledNode logs and skips a disabled node, matching the "never
// fail" contract for Topology errors.
func logDisabledNode(logger *zap.Logger, nodeID int) {
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Warn("numa node disabled, substituting single authoritative copy", zap.Int("node", nodeID))
}
