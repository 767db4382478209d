// Package config provides configuration management for hellonode services
package config

import (
	"encoding/hex"
	"time"
)

// Role selects what a long-lived node does.
type Role string

const (
	// RoleResponder listens, echoes and accepts secure channels.
	RoleResponder Role = "responder"
	// RoleMiddle listens and forwards everything to the connect address.
	RoleMiddle Role = "middle"
	// RoleIssuer listens and issues credentials to enrolled members.
	RoleIssuer Role = "issuer"
)

// String returns the string representation of Role
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is known
func (r Role) IsValid() bool {
	switch r {
	case RoleResponder, RoleMiddle, RoleIssuer:
		return true
	default:
		return false
	}
}

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelNone  LogLevel = "none"
)

// String returns the string representation of LogLevel
func (l LogLevel) String() string {
	return string(l)
}

// IsValid checks if the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, LogLevelNone:
		return true
	default:
		return false
	}
}

// Config represents the complete hellonode configuration
type Config struct {
	App       AppConfig       `yaml:"app" json:"app"`
	Log       LogConfig       `yaml:"log" json:"log"`
	Transport TransportConfig `yaml:"transport" json:"transport"`
	Identity  IdentityConfig  `yaml:"identity" json:"identity"`
	Issuer    IssuerConfig    `yaml:"issuer" json:"issuer"`
	Admin     AdminConfig     `yaml:"admin" json:"admin"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	// Node name, used in logs and in the admin status
	Name string `yaml:"name" json:"name"`

	Role Role `yaml:"role" json:"role"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level LogLevel `yaml:"level" json:"level"`

	// Output destination (stdout, stderr, file path)
	Output string `yaml:"output" json:"output"`
}

// TransportConfig contains TCP transport configuration
type TransportConfig struct {
	// Listening address, host:port
	Listen string `yaml:"listen" json:"listen"`

	// Peer the middle role forwards to, host:port
	Connect string `yaml:"connect" json:"connect"`

	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`

	Retry RetryConfig `yaml:"retry" json:"retry"`
}

// RetryConfig controls how outgoing connections are retried
type RetryConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
}

// IdentityConfig contains the node identity
type IdentityConfig struct {
	// Hex 32-byte seed of the node identity. A fresh identity is created
	// when empty.
	Secret string `yaml:"secret" json:"secret"`

	// Hex change history of the credential authority. When set, the
	// responder verifies credentials and admits only members of the
	// production cluster to its echoer.
	Authority string `yaml:"authority,omitempty" json:"authority,omitempty"`
}

// IssuerConfig contains credential issuer settings
type IssuerConfig struct {
	MembersFile    string        `yaml:"members_file" json:"members_file"`
	CredentialTTL  time.Duration `yaml:"credential_ttl" json:"credential_ttl"`
	TrustContextID string        `yaml:"trust_context_id" json:"trust_context_id"`
}

// AdminConfig contains the admin HTTP endpoint settings
type AdminConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Listen  string `yaml:"listen" json:"listen"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name: "hellonode",
			Role: RoleResponder,
		},
		Log: LogConfig{
			Level:  LogLevelInfo,
			Output: "stdout",
		},
		Transport: TransportConfig{
			Listen:         "127.0.0.1:4000",
			ConnectTimeout: 5 * time.Second,
			Retry: RetryConfig{
				InitialDelay: 100 * time.Millisecond,
				MaxDelay:     2 * time.Second,
				MaxAttempts:  5,
			},
		},
		Issuer: IssuerConfig{
			CredentialTTL:  30 * 24 * time.Hour,
			TrustContextID: "trust_context",
		},
		Admin: AdminConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9090",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return ErrInvalidAppName
	}
	if !c.App.Role.IsValid() {
		return ErrInvalidRole
	}

	if !c.Log.Level.IsValid() {
		return ErrInvalidLogLevel
	}

	if c.Transport.Listen == "" {
		return ErrInvalidListen
	}
	if c.App.Role == RoleMiddle && c.Transport.Connect == "" {
		return ErrInvalidConnect
	}
	if c.Transport.ConnectTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if r := c.Transport.Retry; r.InitialDelay <= 0 || r.MaxDelay < r.InitialDelay || r.MaxAttempts <= 0 {
		return ErrInvalidRetry
	}

	if c.Identity.Secret != "" {
		if seed, err := hex.DecodeString(c.Identity.Secret); err != nil || len(seed) != 32 {
			return ErrInvalidSecret
		}
	}

	if c.App.Role == RoleIssuer {
		if c.Issuer.MembersFile == "" {
			return ErrMissingMembersFile
		}
		if c.Issuer.CredentialTTL <= 0 {
			return ErrInvalidCredentialTTL
		}
	}

	if c.Admin.Enabled && c.Admin.Listen == "" {
		return ErrInvalidListen
	}
	return nil
}
