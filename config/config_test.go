package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0b1a9a1ac7eb13f6b8b97dad1cd1b4e5cd1fc9b3b6deac1b7e83f1d8e8a0e7ac"

func noEnv(string) (string, bool) { return "", false }

func testLoader(env map[string]string) *Loader {
	l := NewLoader().SetSearchPaths(nil)
	l.lookupEnv = func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
	return l
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, c.Validate())
	assert.Equal(t, RoleResponder, c.App.Role)
	assert.Equal(t, LogLevelInfo, c.Log.Level)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr error
	}{
		{"empty name", func(c *Config) { c.App.Name = "" }, ErrInvalidAppName},
		{"unknown role", func(c *Config) { c.App.Role = "gateway" }, ErrInvalidRole},
		{"unknown log level", func(c *Config) { c.Log.Level = "trace" }, ErrInvalidLogLevel},
		{"no listen address", func(c *Config) { c.Transport.Listen = "" }, ErrInvalidListen},
		{"middle without peer", func(c *Config) { c.App.Role = RoleMiddle }, ErrInvalidConnect},
		{"zero timeout", func(c *Config) { c.Transport.ConnectTimeout = 0 }, ErrInvalidTimeout},
		{"retry delays reversed", func(c *Config) { c.Transport.Retry.MaxDelay = time.Millisecond }, ErrInvalidRetry},
		{"no retry attempts", func(c *Config) { c.Transport.Retry.MaxAttempts = 0 }, ErrInvalidRetry},
		{"short secret", func(c *Config) { c.Identity.Secret = "abcd" }, ErrInvalidSecret},
		{"issuer without members", func(c *Config) { c.App.Role = RoleIssuer }, ErrMissingMembersFile},
		{"issuer without ttl", func(c *Config) {
			c.App.Role = RoleIssuer
			c.Issuer.MembersFile = "members.yaml"
			c.Issuer.CredentialTTL = 0
		}, ErrInvalidCredentialTTL},
		{"admin without address", func(c *Config) {
			c.Admin.Enabled = true
			c.Admin.Listen = ""
		}, ErrInvalidListen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(c)
			assert.ErrorIs(t, c.Validate(), tt.wantErr)
		})
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "hellonode.yaml", `
app:
  name: middle-1
  role: middle
log:
  level: debug
transport:
  listen: 127.0.0.1:3000
  connect: 127.0.0.1:4000
  connect_timeout: 2s
identity:
  secret: `+testSecret+`
admin:
  enabled: true
  listen: 127.0.0.1:9191
`)

	c, err := testLoader(nil).Load(path)
	require.NoError(t, err)
	assert.Equal(t, "middle-1", c.App.Name)
	assert.Equal(t, RoleMiddle, c.App.Role)
	assert.Equal(t, LogLevelDebug, c.Log.Level)
	assert.Equal(t, "127.0.0.1:4000", c.Transport.Connect)
	assert.Equal(t, 2*time.Second, c.Transport.ConnectTimeout)
	assert.Equal(t, testSecret, c.Identity.Secret)
	assert.True(t, c.Admin.Enabled)

	// unset fields keep their defaults
	assert.Equal(t, "stdout", c.Log.Output)
	assert.Equal(t, 5, c.Transport.Retry.MaxAttempts)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "hellonode.json", `{"app": {"name": "issuer", "role": "issuer"}, "issuer": {"members_file": "members.yaml"}}`)

	c, err := testLoader(nil).Load(path)
	require.NoError(t, err)
	assert.Equal(t, RoleIssuer, c.App.Role)
	assert.Equal(t, "members.yaml", c.Issuer.MembersFile)
	assert.Equal(t, 30*24*time.Hour, c.Issuer.CredentialTTL)
}

func TestLoadErrors(t *testing.T) {
	l := testLoader(nil)

	_, err := l.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrConfigFileNotFound)

	_, err = l.Load(writeFile(t, "hellonode.toml", ""))
	assert.Error(t, err)

	_, err = l.Load(writeFile(t, "bad.yaml", "app: [1, 2"))
	assert.ErrorIs(t, err, ErrConfigParseError)

	_, err = l.Load(writeFile(t, "invalid.yaml", "app:\n  role: gateway\n"))
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestEnvironmentOverrides(t *testing.T) {
	l := testLoader(map[string]string{
		"HELLONODE_APP_ROLE":                  "issuer",
		"HELLONODE_LOG_LEVEL":                 "WARN",
		"HELLONODE_TRANSPORT_LISTEN":          "0.0.0.0:5000",
		"HELLONODE_TRANSPORT_CONNECT_TIMEOUT": "750ms",
		"HELLONODE_ISSUER_MEMBERS_FILE":       "/etc/hellonode/members.yaml",
		"HELLONODE_ISSUER_CREDENTIAL_TTL":     "1h",
		"HELLONODE_ADMIN_ENABLED":             "true",
	})

	c, err := l.Load("")
	require.NoError(t, err)
	assert.Equal(t, RoleIssuer, c.App.Role)
	assert.Equal(t, LogLevelWarn, c.Log.Level)
	assert.Equal(t, "0.0.0.0:5000", c.Transport.Listen)
	assert.Equal(t, 750*time.Millisecond, c.Transport.ConnectTimeout)
	assert.Equal(t, time.Hour, c.Issuer.CredentialTTL)
	assert.True(t, c.Admin.Enabled)
}

func TestEnvironmentOverrideErrors(t *testing.T) {
	_, err := testLoader(map[string]string{"HELLONODE_TRANSPORT_CONNECT_TIMEOUT": "soon"}).Load("")
	assert.ErrorIs(t, err, ErrEnvironmentVarError)

	_, err = testLoader(map[string]string{"HELLONODE_ADMIN_ENABLED": "maybe"}).Load("")
	assert.ErrorIs(t, err, ErrEnvironmentVarError)
}

func TestAutoLoad(t *testing.T) {
	l := testLoader(nil)
	l.lookupEnv = noEnv

	c, err := l.AutoLoad()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), c)

	dir := filepath.Dir(writeFile(t, "hellonode.yml", "app:\n  name: found\n"))
	c, err = l.SetSearchPaths([]string{t.TempDir(), dir}).AutoLoad()
	require.NoError(t, err)
	assert.Equal(t, "found", c.App.Name)
}

func TestLoadFromReader(t *testing.T) {
	c, err := testLoader(nil).LoadFromReader(strings.NewReader("app:\n  name: reader\n"), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "reader", c.App.Name)

	_, err = testLoader(nil).LoadFromReader(strings.NewReader(""), "toml")
	assert.Error(t, err)
}
