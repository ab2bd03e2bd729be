// Package main runs the central brute service: an HTTP API that ingests
// captured credential attempts, enriches them with IP intelligence,
// persists them and fans them out to WebSocket subscribers.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	joonix "github.com/joonix/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"golang.org/x/sync/errgroup"

	"github.com/brute-sh/brute/internal/config"
	"github.com/brute-sh/brute/internal/httpapi"
	"github.com/brute-sh/brute/internal/hub"
	"github.com/brute-sh/brute/internal/intake"
	"github.com/brute-sh/brute/internal/ipintel"
	"github.com/brute-sh/brute/internal/pipeline"
	"github.com/brute-sh/brute/internal/relay"
	"github.com/brute-sh/brute/internal/store"
)

var log = logrus.WithField("prefix", "main")

func main() {
	// The .env file has to be in the environment before flag parsing so
	// the EnvVars bindings see it.
	if os.Getenv("RUNNING_IN_DOCKER") == "" {
		_ = godotenv.Load()
	}

	app := &cli.App{
		Name:   "brute-http",
		Usage:  "central service that ingests, enriches and broadcasts captured credential attempts",
		Flags:  config.ServiceFlags,
		Before: setupLogging,
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func setupLogging(c *cli.Context) error {
	level, err := logrus.ParseLevel(c.String(config.LogLevelFlag.Name))
	if err != nil {
		return errors.Wrap(err, "parse log level")
	}
	logrus.SetLevel(level)

	switch format := c.String(config.LogFormatFlag.Name); format {
	case "text":
		formatter := new(prefixed.TextFormatter)
		formatter.TimestampFormat = "2006-01-02 15:04:05"
		formatter.FullTimestamp = true
		logrus.SetFormatter(formatter)
	case "fluentd":
		logrus.SetFormatter(joonix.NewFormatter())
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return errors.Errorf("unknown log format %q", format)
	}
	return nil
}

func run(c *cli.Context) error {
	cfg, err := config.NewService(c)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(); err != nil {
		return err
	}

	var mirror *relay.Relay
	if cfg.RedisURL != "" {
		mirror, err = relay.Connect(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer mirror.Close()
	}

	bus := hub.New()
	pipe := pipeline.New(st, ipintel.NewClient(cfg.IPInfoToken), bus, mirror)
	srv := httpapi.NewServer(cfg, st, intake.NewSink(pipe), bus)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pipe.Run(ctx) })

	serve(ctx, g, &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      srv.Router(httpapi.ProtocolHTTP),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, "", "")

	if cfg.ListenAddressTLS != "" {
		serve(ctx, g, &http.Server{
			Addr:         cfg.ListenAddressTLS,
			Handler:      srv.Router(httpapi.ProtocolHTTPS),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}, cfg.TLSCertFile, cfg.TLSKeyFile)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shut down cleanly")
	return nil
}

// serve runs one listener under the group and shuts it down when ctx ends.
// A bind failure is the one error that must take the whole process down.
func serve(ctx context.Context, g *errgroup.Group, server *http.Server, certFile, keyFile string) {
	g.Go(func() error {
		log.WithField("addr", server.Addr).Info("listener ready")
		var err error
		if certFile != "" {
			err = server.ListenAndServeTLS(certFile, keyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			return errors.Wrapf(err, "listener on %s", server.Addr)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}
