package daemon

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"github.com/brute-sh/brute/internal/config"
)

// Passing as a stock OpenSSH install draws more attempts than the Go
// default banner.
const sshServerVersion = "SSH-2.0-OpenSSH_8.9p1"

// SSHDecoy poses as an SSH server. Every password is rejected and captured,
// except the admin tuple, which connects to a server with nothing on it.
type SSHDecoy struct {
	cfg     *config.Daemon
	sink    Sink
	hostKey ssh.Signer

	// Rejections after the first are slowed by this much.
	rejectDelay time.Duration
}

// NewSSHDecoy generates a fresh host key. Scanners that fingerprint host
// keys will see a different machine after every restart.
func NewSSHDecoy(cfg *config.Daemon, sink Sink) (*SSHDecoy, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generate host key")
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, errors.Wrap(err, "build host signer")
	}
	return &SSHDecoy{
		cfg:         cfg,
		sink:        sink,
		hostKey:     signer,
		rejectDelay: time.Second,
	}, nil
}

// Listen binds the decoy port and serves until ctx ends.
func (d *SSHDecoy) Listen(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", d.cfg.SSHPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "bind ssh listener on %s", addr)
	}
	log.WithField("addr", addr).Info("ssh decoy listening")
	return d.serve(ctx, ln)
}

func (d *SSHDecoy) serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.WithError(err).Warn("ssh accept failed")
			continue
		}
		go d.handle(ctx, conn)
	}
}

// handle runs one connection. The handshake does all the work through the
// password callback; a connection that survives it belongs to the operator
// and is given nothing to look at.
func (d *SSHDecoy) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	var rejections int
	cfg := &ssh.ServerConfig{
		ServerVersion: sshServerVersion,
		PasswordCallback: func(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			user := meta.User()
			pass := string(password)

			if d.cfg.SSHAdminUsername != "" &&
				user == d.cfg.SSHAdminUsername && pass == d.cfg.SSHAdminPassword {
				return nil, nil
			}

			d.observe(ctx, user, pass, meta.RemoteAddr())

			// The first rejection is free so scanners don't notice
			// anything odd; the rest are slowed down.
			if rejections > 0 {
				time.Sleep(d.rejectDelay)
			}
			rejections++
			return nil, errors.Errorf("password rejected for %q", user)
		},
	}
	cfg.AddHostKey(d.hostKey)

	serverConn, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		return
	}
	defer serverConn.Close()

	log.WithFields(logrus.Fields{
		"user": serverConn.User(),
		"addr": serverConn.RemoteAddr().String(),
	}).Info("admin connected to decoy")

	go ssh.DiscardRequests(reqs)
	for newChan := range chans {
		newChan.Reject(ssh.Prohibited, "nothing to see here")
	}
}

// observe forwards one captured tuple unless it came from the machine
// itself.
func (d *SSHDecoy) observe(ctx context.Context, user, pass string, remote net.Addr) {
	ip := remoteIP(remote)
	if isLoopback(ip) {
		return
	}
	d.sink.Report(ctx, user, pass, ip, "SSH")
}
