package einfd

import (
	"context"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"k8s.io/utils/clock"
)

// DefaultFallbackAddr is the address bound by Fallback when the process is not
// running under a supervisor.
const DefaultFallbackAddr = "localhost:8080"

const (
	fdEnvPrefix = "EINHORN_FD_"
	fdCountEnv  = "EINHORN_FD_COUNT"
)

// Listener is a listening socket that also exposes its raw descriptor.
type Listener interface {
	net.Listener
	syscall.Conn
}

// Source identifies where the listener of an Activation came from.
type Source string

const (
	// SourceInherited means the listener was adopted from a descriptor passed
	// by the supervisor.
	SourceInherited Source = "inherited"
	// SourceFallback means no descriptor was passed and the fallback address
	// was bound.
	SourceFallback Source = "fallback"
)

// Activation is the outcome of Listen. The caller owns Listener and must
// close it on shutdown.
type Activation struct {
	Source   Source
	Listener Listener
	// FD is the inherited descriptor number for SourceInherited, -1 otherwise.
	FD int
	// Addr is the address the listener accepts connections on.
	Addr string
}

// Resolver turns the activation environment into a listening socket. It is
// meant to be used once, at process startup, before any other goroutine
// touches the socket.
type Resolver struct {
	index        int
	fallbackAddr string
	listenConfig *net.ListenConfig
	strict       bool
	ackAttempts  int
	ackBackoff   time.Duration
	clock        clock.Clock

	mu    sync.Mutex
	state resolverState

	l   log15.Logger
	env *env
}

// Option is an option function for Resolver.
type Option func(r *Resolver)

// WithLogger configures the logger used for resolution decisions.
// By default, nothing will be logged.
func WithLogger(l log15.Logger) Option {
	return func(r *Resolver) {
		r.l = l
	}
}

// WithFallbackAddr overrides DefaultFallbackAddr. An empty address keeps the
// default.
func WithFallbackAddr(addr string) Option {
	return func(r *Resolver) {
		if addr != "" {
			r.fallbackAddr = addr
		}
	}
}

// WithListenConfig sets the configuration used to bind the fallback address.
func WithListenConfig(cfg *net.ListenConfig) Option {
	return func(r *Resolver) {
		if cfg != nil {
			r.listenConfig = cfg
		}
	}
}

// WithFDIndex selects which EINHORN_FD_<N> variable is consumed. The default
// is 0.
func WithFDIndex(n int) Option {
	return func(r *Resolver) {
		if n >= 0 {
			r.index = n
		}
	}
}

// WithStrictEnv makes a present but malformed activation variable fatal.
// Without it, a malformed value is treated the same as an absent one.
func WithStrictEnv() Option {
	return func(r *Resolver) {
		r.strict = true
	}
}

// WithAckRetry configures how often Ack tries to reach the supervisor's
// control socket and how long it waits between attempts.
func WithAckRetry(attempts int, backoff time.Duration) Option {
	return func(r *Resolver) {
		if attempts > 0 {
			r.ackAttempts = attempts
		}
		if backoff > 0 {
			r.ackBackoff = backoff
		}
	}
}

// WithClock sets the clock used to pace Ack retries.
func WithClock(c clock.Clock) Option {
	return func(r *Resolver) {
		r.clock = c
	}
}

// New constructs a Resolver that reads the environment of the current
// process.
func New(opts ...Option) *Resolver {
	return newResolver(stdEnv, opts...)
}

func newResolver(e *env, opts ...Option) *Resolver {
	noopLogger := log15.New()
	noopLogger.SetHandler(log15.DiscardHandler())
	r := &Resolver{
		fallbackAddr: DefaultFallbackAddr,
		listenConfig: &net.ListenConfig{},
		ackAttempts:  DefaultAckAttempts,
		ackBackoff:   DefaultAckBackoff,
		clock:        clock.RealClock{},
		state:        resolverStateUnresolved,
		l:            noopLogger,
		env:          e,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) transitionTo(state resolverState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.transitionTo(state)
}

func (r *Resolver) mustTransitionTo(state resolverState) {
	if err := r.transitionTo(state); err != nil {
		panic("BUG: " + err.Error())
	}
}

// Resolve returns the listener passed by the supervisor.
//
// It returns ErrUnsupervised if the activation variable is absent or does not
// hold a descriptor number; the caller may then call Fallback. Any other error
// means a descriptor was passed but could not be used, and the caller should
// treat it as a startup failure. Only the first call on a Resolver does any
// work; later calls return ErrAlreadyResolved.
func (r *Resolver) Resolve() (Listener, error) {
	ln, _, err := r.resolve()
	return ln, err
}

func (r *Resolver) resolve() (Listener, int, error) {
	if err := r.transitionTo(resolverStateResolving); err != nil {
		return nil, -1, ErrAlreadyResolved
	}

	fd, err := r.lookupFd()
	if err == ErrUnsupervised {
		r.mustTransitionTo(resolverStateUnsupervised)
		return nil, -1, err
	}
	if err != nil {
		r.mustTransitionTo(resolverStateFailed)
		return nil, -1, err
	}

	ln, err := r.adopt(fd)
	if err != nil {
		r.l.Error("found an activation descriptor but could not use it", "fd", fd, "err", err)
		r.mustTransitionTo(resolverStateFailed)
		return nil, -1, err
	}
	r.l.Info("adopted inherited listener", "fd", fd, "addr", ln.Addr())
	r.mustTransitionTo(resolverStateResolved)
	return ln, fd, nil
}

// Fallback binds the fallback address. It may only be called after Resolve
// returned ErrUnsupervised.
func (r *Resolver) Fallback(ctx context.Context) (Listener, error) {
	if err := r.transitionTo(resolverStateBindingFallback); err != nil {
		r.mu.Lock()
		state := r.state
		r.mu.Unlock()
		if state == resolverStateUnresolved {
			return nil, errors.New("fallback is only permitted once Resolve has reported ErrUnsupervised")
		}
		return nil, ErrAlreadyResolved
	}

	ln, err := r.bindFallback(ctx)
	if err != nil {
		r.l.Error("no supervisor and fallback bind failed", "addr", r.fallbackAddr, "err", err)
		r.mustTransitionTo(resolverStateFailed)
		return nil, err
	}
	r.l.Info("bound fallback listener", "addr", ln.Addr())
	r.mustTransitionTo(resolverStateResolved)
	return ln, nil
}

// Listen resolves the activation environment and, only if the process is
// unsupervised, binds the fallback address. An adoption failure is returned
// as is and never falls back.
func (r *Resolver) Listen(ctx context.Context) (*Activation, error) {
	ln, fd, err := r.resolve()
	if err == nil {
		return &Activation{
			Source:   SourceInherited,
			Listener: ln,
			FD:       fd,
			Addr:     ln.Addr().String(),
		}, nil
	}
	if err != ErrUnsupervised {
		return nil, err
	}

	r.l.Info("not running under einhorn, falling back", "addr", r.fallbackAddr)
	ln, err = r.Fallback(ctx)
	if err != nil {
		return nil, err
	}
	return &Activation{
		Source:   SourceFallback,
		Listener: ln,
		FD:       -1,
		Addr:     ln.Addr().String(),
	}, nil
}

// lookupFd reads the activation variable. A missing or malformed value yields
// ErrUnsupervised unless strict mode is enabled.
func (r *Resolver) lookupFd() (int, error) {
	name := fdEnvPrefix + strconv.Itoa(r.index)
	val, ok := r.env.lookupEnv(name)
	if !ok {
		r.l.Debug("activation variable not set", "var", name)
		return -1, ErrUnsupervised
	}

	fd, err := strconv.ParseInt(val, 10, 32)
	if err != nil || fd < 0 {
		if r.strict {
			return -1, &MalformedEnvError{Name: name, Value: val}
		}
		r.l.Warn("ignoring malformed activation variable", "var", name, "value", val)
		return -1, ErrUnsupervised
	}

	if countVal, ok := r.env.lookupEnv(fdCountEnv); ok {
		count, err := strconv.Atoi(countVal)
		if err != nil || r.index >= count {
			r.l.Warn("activation variable disagrees with descriptor count", "var", name, "count", countVal)
		}
	}
	return int(fd), nil
}

// adopt turns an inherited descriptor into a listener. The descriptor is only
// taken over once it has been validated; from then on it is closed on every
// path, since the returned listener holds its own duplicate.
func (r *Resolver) adopt(fd int) (Listener, error) {
	if err := validateListenerFd(fd); err != nil {
		return nil, &AdoptionError{FD: fd, Op: "validate", Err: err}
	}

	r.env.closeOnExec(fd)
	f := r.env.newFile(uintptr(fd), fdEnvPrefix+strconv.Itoa(r.index))
	if f == nil {
		return nil, &AdoptionError{FD: fd, Op: "adopt", Err: errors.New("invalid descriptor")}
	}

	ln, err := r.env.fileListener(f)
	if cerr := f.Close(); cerr != nil {
		r.l.Warn("error closing inherited descriptor", "fd", fd, "err", cerr)
	}
	if err != nil {
		return nil, &AdoptionError{FD: fd, Op: "activate", Err: errors.Wrap(err, "can't inherit listener")}
	}

	fdLn, ok := ln.(Listener)
	if !ok {
		ln.Close()
		return nil, &AdoptionError{FD: fd, Op: "activate", Err: errors.Errorf("%T doesn't implement einfd.Listener", ln)}
	}
	return fdLn, nil
}

func (r *Resolver) bindFallback(ctx context.Context) (Listener, error) {
	ln, err := r.listenConfig.Listen(ctx, "tcp", r.fallbackAddr)
	if err != nil {
		return nil, &FallbackBindError{Addr: r.fallbackAddr, Err: errors.Wrap(err, "can't create new listener")}
	}

	fdLn, ok := ln.(Listener)
	if !ok {
		ln.Close()
		return nil, &FallbackBindError{Addr: r.fallbackAddr, Err: errors.Errorf("%T doesn't implement einfd.Listener", ln)}
	}
	return fdLn, nil
}
