package model

import (
	"fmt"
	"net/netip"
	"strings"
)

const (
	maxUsernameLen = 255
	maxPasswordLen = 255
	maxProtocolLen = 50
)

// Ranges an attempt can never legitimately originate from. An address inside
// any of these means the submitter is misconfigured, not attacked.
var privateRanges = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// ValidationError names the first field that failed an admission check.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// CanonicalProtocol uppercases the protocol name and rewrites the sshd
// service name to SSH.
func CanonicalProtocol(protocol string) string {
	if strings.EqualFold(protocol, "sshd") {
		return "SSH"
	}
	return strings.ToUpper(protocol)
}

// NewIndividual validates raw credentials and builds the canonical record.
// Checks run in a fixed order and the first failure wins. The returned record
// carries no id and a zero timestamp; the aggregator assigns both on
// admission.
func NewIndividual(username, password, ip, protocol string) (Individual, error) {
	switch {
	case username == "":
		return Individual{}, &ValidationError{Field: "username", Reason: "is empty"}
	case password == "":
		return Individual{}, &ValidationError{Field: "password", Reason: "is empty"}
	case protocol == "":
		return Individual{}, &ValidationError{Field: "protocol", Reason: "is empty"}
	case len(username) > maxUsernameLen:
		return Individual{}, &ValidationError{Field: "username", Reason: fmt.Sprintf("exceeds %d bytes", maxUsernameLen)}
	case len(password) > maxPasswordLen:
		return Individual{}, &ValidationError{Field: "password", Reason: fmt.Sprintf("exceeds %d bytes", maxPasswordLen)}
	case len(protocol) > maxProtocolLen:
		return Individual{}, &ValidationError{Field: "protocol", Reason: fmt.Sprintf("exceeds %d bytes", maxProtocolLen)}
	case ip == "":
		return Individual{}, &ValidationError{Field: "ip", Reason: "is empty"}
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return Individual{}, &ValidationError{Field: "ip", Reason: "is not a valid IPv4 or IPv6 address"}
	}
	// Unmap so ::ffff:10.0.0.1 hits the v4 ranges; drop the zone so
	// fe80::1%eth0 hits the link-local one.
	addr = addr.Unmap().WithZone("")
	for _, r := range privateRanges {
		if r.Contains(addr) {
			return Individual{}, &ValidationError{Field: "ip", Reason: "is in a private address range"}
		}
	}

	return Individual{
		Username: username,
		Password: password,
		IP:       ip,
		Protocol: CanonicalProtocol(protocol),
	}, nil
}
