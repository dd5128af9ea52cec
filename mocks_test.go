package einfd

import "os"

const mockPid = 4242

// mockEnv returns an env whose variables come from vars instead of the real
// process environment. Descriptor operations are left untouched.
func mockEnv(vars map[string]string) *env {
	e := *stdEnv
	e.lookupEnv = func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
	e.getpid = func() int { return mockPid }
	return &e
}

// untouchableEnv is a mockEnv that panics if the resolver tries to adopt a
// descriptor.
func untouchableEnv(vars map[string]string) *env {
	e := mockEnv(vars)
	e.newFile = func(fd uintptr, name string) *os.File {
		panic("descriptor adoption attempted")
	}
	e.closeOnExec = func(fd int) {
		panic("descriptor adoption attempted")
	}
	return e
}
