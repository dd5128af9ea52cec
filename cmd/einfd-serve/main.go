// Command einfd-serve serves a directory over HTTP on the socket handed to it
// by einhorn, or on a local fallback address when run on its own.
//
//	einhorn -b 0.0.0.0:8080 -m manual -- einfd-serve --dir /srv/www
//
// When supervised, it acks to einhorn once it is serving. SIGINT or SIGTERM
// close the listener and stop the server.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/ngrok/einfd"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

// Build information, set via ldflags.
var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "einfd-serve",
		Usage:   "serve a directory on an einhorn-activated socket",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "fallback-addr",
				Value:   einfd.DefaultFallbackAddr,
				Usage:   "address to bind when not running under einhorn",
				EnvVars: []string{"EINFD_FALLBACK_ADDR"},
			},
			&cli.StringFlag{
				Name:  "dir",
				Value: ".",
				Usage: "directory to serve",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "one of debug, info, warn, error, crit",
				EnvVars: []string{"EINFD_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "fail instead of falling back when EINHORN_FD_0 is malformed",
			},
			&cli.DurationFlag{
				Name:  "shutdown-timeout",
				Value: 10 * time.Second,
				Usage: "how long to wait for in-flight requests on shutdown",
			},
		},
		Action: func(c *cli.Context) error {
			cfg := config{
				fallbackAddr:    c.String("fallback-addr"),
				dir:             c.String("dir"),
				strict:          c.Bool("strict"),
				shutdownTimeout: c.Duration("shutdown-timeout"),
			}
			l, err := newLogger(c.String("log-level"))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, l, nil)
		},
	}
}

func newLogger(level string) (log15.Logger, error) {
	lvl, err := log15.LvlFromString(level)
	if err != nil {
		return nil, errors.Wrapf(err, "bad log level %q", level)
	}
	l := log15.New("app", "einfd-serve", "pid", os.Getpid())
	l.SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(os.Stderr, log15.LogfmtFormat())))
	return l, nil
}

// startupError adds the operator facing explanation to a resolution failure.
func startupError(err error) error {
	var adoptErr *einfd.AdoptionError
	var bindErr *einfd.FallbackBindError
	var malformedErr *einfd.MalformedEnvError
	switch {
	case errors.As(err, &adoptErr):
		return errors.Wrap(err, "found a supervised descriptor but could not use it")
	case errors.As(err, &bindErr):
		return errors.Wrap(err, "no supervisor and fallback bind failed")
	case errors.As(err, &malformedErr):
		return errors.Wrap(err, "refusing to fall back in strict mode")
	}
	return err
}
