//go:build linux

package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newTestPoller(t *testing.T) *Poller {
	t.Helper()
	p, err := NewPoller(nil)
	require.Nil(t, err)
	t.Cleanup(func() {
		assert.Nil(t, p.Close())
	})
	return p
}

// newPipe returns a non-blocking pipe; the read end is wrapped so it can be registered.
func newPipe(t *testing.T) (*PolledFd, int) {
	t.Helper()
	fds := make([]int, 2)
	require.Nil(t, unix.Pipe2(fds, unix.O_NONBLOCK|unix.O_CLOEXEC))
	r := NewPolledFd(fds[0])
	t.Cleanup(func() {
		_ = r.Close()
		_ = unix.Close(fds[1])
	})
	return r, fds[1]
}

func newEventfd(t *testing.T) int {
	t.Helper()
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	require.Nil(t, err)
	t.Cleanup(func() {
		_ = unix.Close(fd)
	})
	return fd
}

func writeByte(t *testing.T, fd int) {
	t.Helper()
	_, err := unix.Write(fd, []byte{'x'})
	require.Nil(t, err)
}
