// Package daemon implements the decoy edge: listeners that look like real
// SSH and FTP services, reject every login, and report what was attempted.
//
// The edge keeps no queue. If the central service is unreachable the
// attempt is lost, which is acceptable: the next one is seconds away.
package daemon

import (
	"context"
	"net"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "daemon")

// Sink receives captured credential attempts. Satisfied by Reporter.
type Sink interface {
	Report(ctx context.Context, username, password, ip, protocol string)
}

// remoteIP strips the port from a peer address.
func remoteIP(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// isLoopback reports whether ip is the machine talking to itself. Those
// attempts are operator probes, not attacks.
func isLoopback(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}
