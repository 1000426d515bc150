package numa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewThreadDistributorAssignsOnePlacementPerThread(t *testing.T) {
	topo := singleNodeTopology()
	dist := NewThreadDistributor(topo, 4, nil)

	for i := 0; i < 4; i++ {
		require.GreaterOrEqual(t, dist.Placement(i), 0)
	}
}

func TestThreadDistributorSpreadsAcrossNodeCPUs(t *testing.T) {
	topo := &Topology{
		nodes: []Node{
			{ID: 0, CPUs: []int{0, 1}, Online: true},
			{ID: 1, CPUs: []int{2, 3}, Online: true},
		},
		cpuNode: map[int]int{0: 0, 1: 0, 2: 1, 3: 1},
	}

	dist := NewThreadDistributor(topo, 4, nil)

	placed := make([]int, 4)
	for i := range placed {
		placed[i] = dist.Placement(i)
	}

	require.Equal(t, []int{0, 1, 2, 3}, sortedCPUs(placed))
}

func TestPinRejectsOutOfRangeThreadIndex(t *testing.T) {
	dist := NewThreadDistributor(singleNodeTopology(), 2, nil)
	require.Error(t, dist.Pin(5))
}

func TestEffectiveThreadsCapsAtLimit(t *testing.T) {
	huge := 1 << 20

	capped, was := EffectiveThreads(huge)
	require.True(t, was)
	require.Less(t, capped, huge)

	capped, was = EffectiveThreads(1)
	require.False(t, was)
	require.Equal(t, 1, capped)
}
