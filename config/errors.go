package config

import "errors"

// Configuration validation errors
var (
	ErrInvalidAppName       = errors.New("invalid application name")
	ErrInvalidRole          = errors.New("invalid role")
	ErrInvalidLogLevel      = errors.New("invalid log level")
	ErrInvalidListen        = errors.New("invalid listen address")
	ErrInvalidConnect       = errors.New("invalid connect address")
	ErrInvalidTimeout       = errors.New("invalid timeout")
	ErrInvalidRetry         = errors.New("invalid retry settings")
	ErrInvalidSecret        = errors.New("invalid identity secret")
	ErrMissingMembersFile   = errors.New("issuer requires a members file")
	ErrInvalidCredentialTTL = errors.New("invalid credential ttl")
)

// Configuration loading errors
var (
	ErrConfigFileNotFound  = errors.New("configuration file not found")
	ErrConfigParseError    = errors.New("configuration parse error")
	ErrEnvironmentVarError = errors.New("environment variable error")
)
