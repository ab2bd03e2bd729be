// Package config defines the command line flags and runtime configuration
// for the ingestion service and the decoy daemon.
package config

import (
	"time"

	"github.com/urfave/cli/v2"
)

var (
	// LogLevelFlag defines the logrus verbosity.
	LogLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Usage:   "Logging verbosity (trace, debug, info, warn, error, fatal, panic)",
		Value:   "info",
		EnvVars: []string{"LOG_LEVEL"},
	}
	// LogFormatFlag selects the log output format.
	LogFormatFlag = &cli.StringFlag{
		Name:    "log-format",
		Usage:   "Log output format (text, json, fluentd)",
		Value:   "text",
		EnvVars: []string{"LOG_FORMAT"},
	}
	// RunningInDockerFlag skips .env loading when the process runs in a container.
	RunningInDockerFlag = &cli.BoolFlag{
		Name:    "running-in-docker",
		Usage:   "Skip loading a .env file from the working directory.",
		EnvVars: []string{"RUNNING_IN_DOCKER"},
	}
	// BearerTokenFlag is the shared secret for the write endpoints.
	BearerTokenFlag = &cli.StringFlag{
		Name:    "bearer-token",
		Usage:   "Shared bearer token required on the write endpoints.",
		EnvVars: []string{"BEARER_TOKEN"},
	}

	// DatabaseURLFlag is the Postgres connection string.
	DatabaseURLFlag = &cli.StringFlag{
		Name:    "database-url",
		Usage:   "Postgres connection string.",
		EnvVars: []string{"DATABASE_URL"},
	}
	// DatabaseMaxConnsFlag caps the connection pool.
	DatabaseMaxConnsFlag = &cli.IntFlag{
		Name:    "database-max-conns",
		Usage:   "Maximum number of open database connections.",
		Value:   200,
		EnvVars: []string{"DATABASE_MAX_CONNS"},
	}
	// IPInfoTokenFlag authenticates against the IP-intelligence provider.
	IPInfoTokenFlag = &cli.StringFlag{
		Name:    "ipinfo-token",
		Usage:   "API token for the ipinfo.io lookups.",
		EnvVars: []string{"IPINFO_TOKEN"},
	}
	// ListenAddressFlag is the plain HTTP bind address.
	ListenAddressFlag = &cli.StringFlag{
		Name:    "listen-address",
		Usage:   "host:port the HTTP listener binds to.",
		Value:   "0.0.0.0:7000",
		EnvVars: []string{"LISTEN_ADDRESS"},
	}
	// ListenAddressTLSFlag enables the TLS listener when non-empty.
	ListenAddressTLSFlag = &cli.StringFlag{
		Name:    "listen-address-tls",
		Usage:   "host:port the HTTPS listener binds to. Empty disables it.",
		EnvVars: []string{"LISTEN_ADDRESS_TLS"},
	}
	// TLSCertFileFlag is the certificate for the TLS listener.
	TLSCertFileFlag = &cli.StringFlag{
		Name:    "tls-cert-file",
		Usage:   "Path to the TLS certificate (PEM).",
		EnvVars: []string{"TLS_CERT_FILE"},
	}
	// TLSKeyFileFlag is the private key for the TLS listener.
	TLSKeyFileFlag = &cli.StringFlag{
		Name:    "tls-key-file",
		Usage:   "Path to the TLS private key (PEM).",
		EnvVars: []string{"TLS_KEY_FILE"},
	}
	// RateLimitFlag caps requests per client IP per window. Zero disables it.
	RateLimitFlag = &cli.IntFlag{
		Name:    "rate-limit",
		Usage:   "Requests allowed per client IP per window. Zero disables limiting.",
		EnvVars: []string{"RATE_LIMIT"},
	}
	// RateLimitDurationFlag is the rate limiter window.
	RateLimitDurationFlag = &cli.DurationFlag{
		Name:    "rate-limit-duration",
		Usage:   "Sliding window for the per-IP rate limiter.",
		Value:   time.Minute,
		EnvVars: []string{"RATE_LIMIT_DURATION"},
	}
	// MaxLimitFlag caps the ?limit parameter on the stats endpoints.
	MaxLimitFlag = &cli.IntFlag{
		Name:    "max-limit",
		Usage:   "Upper bound for the ?limit query parameter.",
		Value:   100,
		EnvVars: []string{"MAX_LIMIT"},
	}
	// RedisURLFlag enables the Redis relay when non-empty.
	RedisURLFlag = &cli.StringFlag{
		Name:    "redis-url",
		Usage:   "Redis URL for relaying enriched events. Empty disables the relay.",
		EnvVars: []string{"REDIS_URL"},
	}

	// SSHPortFlag is the decoy SSH listener port.
	SSHPortFlag = &cli.IntFlag{
		Name:    "port",
		Usage:   "Port the decoy SSH listener binds to.",
		Value:   22,
		EnvVars: []string{"PORT"},
	}
	// FTPPortFlag is the decoy FTP listener port.
	FTPPortFlag = &cli.IntFlag{
		Name:    "ftp-port",
		Usage:   "Port the decoy FTP listener binds to.",
		Value:   21,
		EnvVars: []string{"FTP_PORT"},
	}
	// FTPRootFlag is the decoy FTP filesystem root, created on startup.
	FTPRootFlag = &cli.StringFlag{
		Name:    "ftp-root",
		Usage:   "Filesystem root for the decoy FTP listener.",
		Value:   "/srv/ftp",
		EnvVars: []string{"FTP_ROOT"},
	}
	// SSHAdminUsernameFlag is the operator login the SSH decoy accepts.
	SSHAdminUsernameFlag = &cli.StringFlag{
		Name:    "ssh-admin-username",
		Usage:   "Username the SSH decoy accepts without recording. Empty disables it.",
		EnvVars: []string{"SSH_ADMIN_USERNAME"},
	}
	// SSHAdminPasswordFlag pairs with SSHAdminUsernameFlag.
	SSHAdminPasswordFlag = &cli.StringFlag{
		Name:    "ssh-admin-password",
		Usage:   "Password for the operator login.",
		EnvVars: []string{"SSH_ADMIN_PASSWORD"},
	}
	// AddAttackEndpointFlag is where captured attempts are posted.
	AddAttackEndpointFlag = &cli.StringFlag{
		Name:    "add-attack-endpoint",
		Usage:   "URL of the central ingestion endpoint.",
		EnvVars: []string{"ADD_ATTACK_ENDPOINT"},
	}
	// PIDFileFlag enables the pidfile lock when non-empty.
	PIDFileFlag = &cli.StringFlag{
		Name:    "pid-file",
		Usage:   "Path to a pidfile guarded with flock. Empty disables it.",
		EnvVars: []string{"PID_FILE"},
	}
)

// ServiceFlags is the flag set of the ingestion service binary.
var ServiceFlags = []cli.Flag{
	DatabaseURLFlag,
	DatabaseMaxConnsFlag,
	IPInfoTokenFlag,
	ListenAddressFlag,
	ListenAddressTLSFlag,
	TLSCertFileFlag,
	TLSKeyFileFlag,
	BearerTokenFlag,
	RateLimitFlag,
	RateLimitDurationFlag,
	MaxLimitFlag,
	RedisURLFlag,
	RunningInDockerFlag,
	LogLevelFlag,
	LogFormatFlag,
}

// DaemonFlags is the flag set of the decoy daemon binary.
var DaemonFlags = []cli.Flag{
	SSHPortFlag,
	FTPPortFlag,
	FTPRootFlag,
	SSHAdminUsernameFlag,
	SSHAdminPasswordFlag,
	AddAttackEndpointFlag,
	BearerTokenFlag,
	PIDFileFlag,
	RunningInDockerFlag,
	LogLevelFlag,
	LogFormatFlag,
}
