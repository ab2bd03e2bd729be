package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

// Service holds the runtime configuration of the ingestion service.
type Service struct {
	DatabaseURL       string
	DatabaseMaxConns  int
	IPInfoToken       string
	ListenAddress     string
	ListenAddressTLS  string
	TLSCertFile       string
	TLSKeyFile        string
	BearerToken       string
	RateLimit         int
	RateLimitDuration time.Duration
	MaxLimit          int
	RedisURL          string
}

// NewService reads the service configuration from parsed flags and checks
// the required values are present.
func NewService(c *cli.Context) (*Service, error) {
	cfg := &Service{
		DatabaseURL:       c.String(DatabaseURLFlag.Name),
		DatabaseMaxConns:  c.Int(DatabaseMaxConnsFlag.Name),
		IPInfoToken:       c.String(IPInfoTokenFlag.Name),
		ListenAddress:     c.String(ListenAddressFlag.Name),
		ListenAddressTLS:  c.String(ListenAddressTLSFlag.Name),
		TLSCertFile:       c.String(TLSCertFileFlag.Name),
		TLSKeyFile:        c.String(TLSKeyFileFlag.Name),
		BearerToken:       c.String(BearerTokenFlag.Name),
		RateLimit:         c.Int(RateLimitFlag.Name),
		RateLimitDuration: c.Duration(RateLimitDurationFlag.Name),
		MaxLimit:          c.Int(MaxLimitFlag.Name),
		RedisURL:          c.String(RedisURLFlag.Name),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.IPInfoToken == "" {
		return nil, errors.New("IPINFO_TOKEN is required")
	}
	if cfg.BearerToken == "" {
		return nil, errors.New("BEARER_TOKEN is required")
	}
	if cfg.ListenAddressTLS != "" && (cfg.TLSCertFile == "" || cfg.TLSKeyFile == "") {
		return nil, errors.New("TLS_CERT_FILE and TLS_KEY_FILE are required when LISTEN_ADDRESS_TLS is set")
	}
	if cfg.DatabaseMaxConns < 1 {
		return nil, errors.New("DATABASE_MAX_CONNS must be at least 1")
	}
	if cfg.MaxLimit < 1 {
		return nil, errors.New("MAX_LIMIT must be at least 1")
	}
	if cfg.RateLimit > 0 && cfg.RateLimitDuration <= 0 {
		return nil, errors.New("RATE_LIMIT_DURATION must be positive when RATE_LIMIT is set")
	}
	return cfg, nil
}

// Daemon holds the runtime configuration of the decoy daemon.
type Daemon struct {
	SSHPort          int
	FTPPort          int
	FTPRoot          string
	SSHAdminUsername string
	SSHAdminPassword string
	Endpoint         string
	BearerToken      string
	PIDFile          string
}

// NewDaemon reads the daemon configuration from parsed flags.
func NewDaemon(c *cli.Context) (*Daemon, error) {
	cfg := &Daemon{
		SSHPort:          c.Int(SSHPortFlag.Name),
		FTPPort:          c.Int(FTPPortFlag.Name),
		FTPRoot:          c.String(FTPRootFlag.Name),
		SSHAdminUsername: c.String(SSHAdminUsernameFlag.Name),
		SSHAdminPassword: c.String(SSHAdminPasswordFlag.Name),
		Endpoint:         c.String(AddAttackEndpointFlag.Name),
		BearerToken:      c.String(BearerTokenFlag.Name),
		PIDFile:          c.String(PIDFileFlag.Name),
	}

	if cfg.Endpoint == "" {
		return nil, errors.New("ADD_ATTACK_ENDPOINT is required")
	}
	if cfg.BearerToken == "" {
		return nil, errors.New("BEARER_TOKEN is required")
	}
	if cfg.SSHPort < 1 || cfg.SSHPort > 65535 {
		return nil, errors.Errorf("PORT %d is out of range", cfg.SSHPort)
	}
	if cfg.FTPPort < 1 || cfg.FTPPort > 65535 {
		return nil, errors.Errorf("FTP_PORT %d is out of range", cfg.FTPPort)
	}
	return cfg, nil
}
