// Package logging builds the ldlog loggers of hellonode services.
package logging

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// ParseLevel converts a configured level name to an ldlog level.
func ParseLevel(name string) (ldlog.LogLevel, error) {
	switch strings.ToLower(name) {
	case "debug":
		return ldlog.Debug, nil
	case "", "info":
		return ldlog.Info, nil
	case "warn", "warning":
		return ldlog.Warn, nil
	case "error":
		return ldlog.Error, nil
	case "none":
		return ldlog.None, nil
	default:
		return ldlog.None, fmt.Errorf("unknown log level %q", name)
	}
}

// MakeLoggers returns loggers writing to w at level and above, with an
// optional category prepended to messages.
func MakeLoggers(w io.Writer, level ldlog.LogLevel, category string) ldlog.Loggers {
	loggers := ldlog.Loggers{}
	loggers.SetBaseLogger(log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds))
	loggers.SetMinLevel(level)
	if category != "" {
		loggers.SetPrefix(fmt.Sprintf("[%s]", category))
	}
	return loggers
}

// OpenOutput resolves a configured output: "stdout", "stderr" or a file path
// opened for appending. The returned closer is a no-op for the standard
// streams.
func OpenOutput(output string) (io.Writer, io.Closer, error) {
	switch output {
	case "", "stdout":
		return os.Stdout, nopCloser{}, nil
	case "stderr":
		return os.Stderr, nopCloser{}, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log output: %w", err)
	}
	return f, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (w *loggingResponseWriter) Write(data []byte) (int, error) {
	if w.statusCode == 0 {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(data)
	w.bytesWritten += n
	return n, err
}

func (w *loggingResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// RequestLoggerMiddleware logs every request at debug level.
func RequestLoggerMiddleware(loggers ldlog.Loggers) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			wrapped := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(wrapped, req)
			loggers.Debugf("Request: method=%s url=%s status=%d bytes=%d",
				req.Method, req.URL, wrapped.statusCode, wrapped.bytesWritten)
		})
	}
}
