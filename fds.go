package einfd

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// validateListenerFd checks that fd refers to an open socket in the listening
// state. It does not change the descriptor in any way.
func validateListenerFd(fd int) error {
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0); err != nil {
		return errors.Wrap(err, "descriptor is not open in this process")
	}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return errors.Wrap(err, "can't stat descriptor")
	}
	if uint32(st.Mode)&unix.S_IFMT != unix.S_IFSOCK {
		return errors.Errorf("descriptor is not a socket (mode %#o)", st.Mode)
	}

	accepting, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ACCEPTCONN)
	if err != nil {
		return errors.Wrap(err, "can't query socket state")
	}
	if accepting == 0 {
		return errors.New("socket is not listening")
	}
	return nil
}
