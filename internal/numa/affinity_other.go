//go:build !linux

package numa

import "errors"

// ErrUnsupported is returned on platforms without a CPU affinity syscall.
var ErrUnsupported = errors.New("numa: CPU affinity is not supported on this platform")

func currentCPU() (int, error) {
	return 0, ErrUnsupported
}

func pinToCPU(_ int) error {
	return ErrUnsupported
}
