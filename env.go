package einfd

import (
	"net"
	"os"
	"syscall"
)

var stdEnv = &env{
	newFile:      os.NewFile,
	lookupEnv:    os.LookupEnv,
	closeOnExec:  syscall.CloseOnExec,
	fileListener: net.FileListener,
	getpid:       os.Getpid,
}

// env holds the process level hooks the resolver touches, so tests can swap
// out individual pieces.
type env struct {
	newFile      func(fd uintptr, name string) *os.File
	lookupEnv    func(string) (string, bool)
	closeOnExec  func(fd int)
	fileListener func(f *os.File) (net.Listener, error)
	getpid       func() int
}
