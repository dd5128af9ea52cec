package einfd

import (
	"context"
	"net"
	"time"

	"github.com/ngrok/einfd/internal/proto"
	"github.com/pkg/errors"
)

const (
	// DefaultAckAttempts is how many times Ack tries to connect to the
	// supervisor's control socket before giving up.
	DefaultAckAttempts = 5
	// DefaultAckBackoff is the pause between two connection attempts.
	DefaultAckBackoff = 200 * time.Millisecond

	sockPathEnv = "EINHORN_SOCK_PATH"
)

// Ack tells the supervisor that this worker is up and serving, using a
// Resolver configured with opts. See (*Resolver).Ack.
func Ack(ctx context.Context, opts ...Option) error {
	return New(opts...).Ack(ctx)
}

// Ack tells the supervisor that this worker is up and serving. einhorn waits
// for this before it considers an upgrade finished when started with manual
// acks.
//
// It returns ErrUnsupervised if EINHORN_SOCK_PATH is not set, which callers
// running on a fallback listener can ignore. Ack does not depend on Resolve
// and may be called more than once.
func (r *Resolver) Ack(ctx context.Context) error {
	path, ok := r.env.lookupEnv(sockPathEnv)
	if !ok || path == "" {
		return ErrUnsupervised
	}

	conn, err := r.dialControl(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "can't connect to einhorn control socket %s", path)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}

	req := proto.Request{Command: proto.CommandWorkerAck, Pid: r.env.getpid()}
	if err := proto.WriteMessage(conn, req); err != nil {
		return errors.Wrap(err, "can't send worker ack")
	}
	r.l.Info("acked to einhorn", "pid", req.Pid, "sock", path)
	return nil
}

func (r *Resolver) dialControl(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	var lastErr error
	for attempt := 1; attempt <= r.ackAttempts; attempt++ {
		conn, err := d.DialContext(ctx, "unix", path)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.l.Warn("can't reach einhorn control socket", "sock", path, "attempt", attempt, "err", err)
		if attempt == r.ackAttempts {
			break
		}

		timer := r.clock.NewTimer(r.ackBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C():
		}
	}
	return nil, lastErr
}
