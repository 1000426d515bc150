package numa

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiscoverNeverFails(t *testing.T) {
	topo := Discover(nil)
	require.NotNil(t, topo)
	require.GreaterOrEqual(t, topo.NumNodes(), 1)
}

func TestSingleNodeTopologyHasNoNUMA(t *testing.T) {
	topo := singleNodeTopology()
	require.False(t, topo.HasNUMA())
	require.Equal(t, 1, topo.NumNodes())
}

func TestNodeOfUnknownCPUDefaultsToZero(t *testing.T) {
	topo := singleNodeTopology()
	require.Equal(t, 0, topo.NodeOf(999999))
}

func TestReadCPUListParsesRangesAndSingles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpulist")
	require.NoError(t, os.WriteFile(path, []byte("0-2,5,8-9\n"), 0o644))

	cpus, err := readCPUList(path)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 5, 8, 9}, cpus)
}

func TestReadCPUListRejectsMalformedRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpulist")
	require.NoError(t, os.WriteFile(path, []byte("a-b\n"), 0o644))

	_, err := readCPUList(path)
	require.Error(t, err)
}

func TestReadCPUListEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpulist")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	cpus, err := readCPUList(path)
	require.NoError(t, err)
	require.Empty(t, cpus)
}
