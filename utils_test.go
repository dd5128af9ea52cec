package einfd

import (
	"context"
	"net"
	"os"
	"testing"

	"github.com/inconshreveable/log15"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

var l = log15.New()

func tmpDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "einfd_test")
	if err != nil {
		panic(err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

// rawDup duplicates fd and returns the new descriptor number without wrapping
// it in an *os.File, so no finalizer will ever close it behind our back.
func rawDup(t *testing.T, fd uintptr) int {
	dup, err := unix.FcntlInt(fd, unix.F_DUPFD_CLOEXEC, 0)
	require.NoError(t, err)
	return dup
}

// inheritedListenerFd plays the part of the supervisor: it binds a listener
// on a loopback port and returns a bare descriptor for it, as a child would
// find it after exec. The original listener stays open until the test ends.
func inheritedListenerFd(t *testing.T) (int, net.Addr) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	raw, err := ln.(*net.TCPListener).SyscallConn()
	require.NoError(t, err)
	var fd int
	require.NoError(t, raw.Control(func(sysfd uintptr) {
		fd = rawDup(t, sysfd)
	}))
	return fd, ln.Addr()
}

// closedFd returns a descriptor number that is not open in this process.
func closedFd(t *testing.T) int {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	w.Close()
	fd := rawDup(t, r.Fd())
	r.Close()
	require.NoError(t, unix.Close(fd))
	return fd
}

func fdIsOpen(fd int) bool {
	_, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	return err == nil
}

// openFdCount counts this process's open descriptors. It skips the test where
// /proc is unavailable.
func openFdCount(t *testing.T) int {
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skipf("can't list open descriptors: %v", err)
	}
	return len(entries)
}
