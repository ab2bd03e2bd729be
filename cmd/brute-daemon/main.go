// Package main runs the decoy daemon: fake SSH and FTP listeners that
// reject every login and report the attempted credentials to the central
// brute service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	joonix "github.com/joonix/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"golang.org/x/sync/errgroup"

	"github.com/brute-sh/brute/internal/config"
	"github.com/brute-sh/brute/internal/daemon"
)

var log = logrus.WithField("prefix", "main")

func main() {
	// The .env file has to be in the environment before flag parsing so
	// the EnvVars bindings see it.
	if os.Getenv("RUNNING_IN_DOCKER") == "" {
		_ = godotenv.Load()
	}

	app := &cli.App{
		Name:   "brute-daemon",
		Usage:  "decoy SSH and FTP listeners that capture credential attempts",
		Flags:  config.DaemonFlags,
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
	cfg, err := config.NewDaemon(c)
	if err != nil {
		return err
	}

	if cfg.PIDFile != "" {
		release, err := daemon.AcquirePIDFile(cfg.PIDFile)
		if err != nil {
			return err
		}
		defer release()
	}

	reporter := daemon.NewReporter(cfg.Endpoint, cfg.BearerToken)

	sshDecoy, err := daemon.NewSSHDecoy(cfg, reporter)
	if err != nil {
		return err
	}
	ftpDecoy := daemon.NewFTPDecoy(cfg, reporter)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sshDecoy.Listen(ctx) })
	g.Go(func() error { return ftpDecoy.Listen(ctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("decoys stopped")
	return nil
}
