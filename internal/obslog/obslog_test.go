package obslog

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewRaisesLevelWhenVerbose(t *testing.T) {
	quiet := New(false, false)
	require.False(t, quiet.Core().Enabled(zapcore.DebugLevel))
	require.True(t, quiet.Core().Enabled(zapcore.InfoLevel))

	verbose := New(true, false)
	require.True(t, verbose.Core().Enabled(zapcore.DebugLevel))
}

func TestNopDiscardsEverything(t *testing.T) {
	require.NotPanics(t, func() {
		Nop().Info("this should produce no output")
	})
}

func captureStdout(t *testing.T, f func()) string {
	t.Helper()

	r, w, err := os.Pipe()
	require.NoError(t, err)

	orig := os.Stdout
	os.Stdout = w

	f()

	require.NoError(t, w.Close())
	os.Stdout = orig

	buf := make([]byte, 4096)
	n, _ := r.Read(buf)

	return string(buf[:n])
}

func TestCLILoggerInfoRespectsVerboseFlag(t *testing.T) {
	quiet := NewCLILogger(false, false)
	out := captureStdout(t, func() { quiet.Info("hidden %d", 1) })
	require.Empty(t, out)

	loud := NewCLILogger(true, false)
	out = captureStdout(t, func() { loud.Info("shown %d", 1) })
	require.Contains(t, out, "shown 1")
}

func TestCLILoggerDebugRespectsDebugFlag(t *testing.T) {
	off := NewCLILogger(true, false)
	out := captureStdout(t, func() { off.Debug("hidden") })
	require.Empty(t, out)

	on := NewCLILogger(true, true)
	out = captureStdout(t, func() { on.Debug("shown") })
	require.Contains(t, out, "shown")
}
