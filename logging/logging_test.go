package logging

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]ldlog.LogLevel{
		"debug": ldlog.Debug,
		"INFO":  ldlog.Info,
		"":      ldlog.Info,
		"warn":  ldlog.Warn,
		"error": ldlog.Error,
		"none":  ldlog.None,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseLevel("trace")
	assert.Error(t, err)
}

func TestMakeLoggers(t *testing.T) {
	var buf bytes.Buffer
	loggers := MakeLoggers(&buf, ldlog.Info, "responder")

	loggers.Debug("hidden")
	loggers.Infof("Listening on %s", "127.0.0.1:4000")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[responder]")
	assert.Contains(t, out, "Listening on 127.0.0.1:4000")
}

func TestOpenOutput(t *testing.T) {
	w, c, err := OpenOutput("stdout")
	require.NoError(t, err)
	assert.Equal(t, os.Stdout, w)
	assert.NoError(t, c.Close())

	path := filepath.Join(t.TempDir(), "node.log")
	w, c, err = OpenOutput(path)
	require.NoError(t, err)
	MakeLoggers(w, ldlog.Info, "").Info("to file")
	require.NoError(t, c.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")

	_, _, err = OpenOutput(filepath.Join(t.TempDir(), "missing", "node.log"))
	assert.Error(t, err)
}

func TestRequestLoggerMiddleware(t *testing.T) {
	mockLog := ldlogtest.NewMockLog()
	mockLog.Loggers.SetMinLevel(ldlog.Debug)
	h := RequestLoggerMiddleware(mockLog.Loggers)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	mockLog.AssertMessageMatch(t, true, ldlog.Debug, "method=GET url=/status status=418 bytes=15")
}
