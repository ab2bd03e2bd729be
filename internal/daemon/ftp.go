package daemon

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"

	serverlib "github.com/fclairamb/ftpserverlib"
	"github.com/pkg/errors"

	"github.com/brute-sh/brute/internal/config"
)

// FTPDecoy poses as an FTP server. It implements ftpserverlib's MainDriver
// but never hands out a ClientDriver: every login fails after being
// captured.
type FTPDecoy struct {
	cfg  *config.Daemon
	sink Sink
}

func NewFTPDecoy(cfg *config.Daemon, sink Sink) *FTPDecoy {
	return &FTPDecoy{cfg: cfg, sink: sink}
}

// Listen creates the advertised root directory and serves until ctx ends.
func (d *FTPDecoy) Listen(ctx context.Context) error {
	if err := os.MkdirAll(d.cfg.FTPRoot, 0o755); err != nil {
		return errors.Wrapf(err, "create ftp root %s", d.cfg.FTPRoot)
	}

	server := serverlib.NewFtpServer(d)
	go func() {
		<-ctx.Done()
		server.Stop()
	}()

	log.WithField("addr", fmt.Sprintf(":%d", d.cfg.FTPPort)).Info("ftp decoy listening")
	err := server.ListenAndServe()
	if ctx.Err() != nil {
		return nil
	}
	return errors.Wrap(err, "ftp decoy")
}

// --- serverlib.MainDriver ---

func (d *FTPDecoy) GetSettings() (*serverlib.Settings, error) {
	return &serverlib.Settings{
		ListenAddr: fmt.Sprintf(":%d", d.cfg.FTPPort),
	}, nil
}

func (d *FTPDecoy) ClientConnected(cc serverlib.ClientContext) (string, error) {
	return "FTP Service ready", nil
}

func (d *FTPDecoy) ClientDisconnected(cc serverlib.ClientContext) {}

// AuthUser captures the tuple and rejects it. Returning an error here is
// what turns the server into a decoy; no ClientDriver is ever built.
func (d *FTPDecoy) AuthUser(cc serverlib.ClientContext, user, pass string) (serverlib.ClientDriver, error) {
	d.observe(context.Background(), user, pass, cc.RemoteAddr())
	return nil, errors.New("bad user or password")
}

func (d *FTPDecoy) GetTLSConfig() (*tls.Config, error) {
	return nil, errors.New("TLS is not configured")
}

// observe forwards one captured tuple. Anonymous probes without a username
// and the machine's own probes are dropped.
func (d *FTPDecoy) observe(ctx context.Context, user, pass string, remote net.Addr) {
	if user == "" {
		return
	}
	ip := remoteIP(remote)
	if isLoopback(ip) {
		return
	}
	d.sink.Report(ctx, user, pass, ip, "FTP")
}
