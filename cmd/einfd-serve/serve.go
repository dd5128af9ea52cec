package main

import (
	"context"
	"net/http"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/ngrok/einfd"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type config struct {
	fallbackAddr    string
	dir             string
	strict          bool
	shutdownTimeout time.Duration
}

// serve resolves the listener, serves cfg.dir on it until ctx is done, and
// closes the listener before returning. ready, if set, is called with the
// activation once the server is about to accept.
func serve(ctx context.Context, cfg config, l log15.Logger, ready func(*einfd.Activation)) error {
	opts := []einfd.Option{
		einfd.WithLogger(l.New("module", "einfd")),
		einfd.WithFallbackAddr(cfg.fallbackAddr),
	}
	if cfg.strict {
		opts = append(opts, einfd.WithStrictEnv())
	}
	r := einfd.New(opts...)

	act, err := r.Listen(ctx)
	if err != nil {
		return startupError(err)
	}
	defer act.Listener.Close()
	l.Info("serving", "source", act.Source, "addr", act.Addr, "dir", cfg.dir)

	server := &http.Server{Handler: http.FileServer(http.Dir(cfg.dir))}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Serve(act.Listener); err != http.ErrServerClosed {
			return errors.Wrap(err, "server stopped")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		l.Info("shutting down", "timeout", cfg.shutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if act.Source == einfd.SourceInherited {
		g.Go(func() error {
			err := r.Ack(gctx)
			if err == einfd.ErrUnsupervised {
				l.Debug("no einhorn control socket, not acking")
			} else if err != nil {
				l.Warn("could not ack to einhorn", "err", err)
			}
			return nil
		})
	}
	if ready != nil {
		ready(act)
	}
	return g.Wait()
}
