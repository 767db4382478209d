// Package admin serves the HTTP status endpoint of a running node.
package admin

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/najoast/hellonode/bootstrap"
	"github.com/najoast/hellonode/core"
	"github.com/najoast/hellonode/logging"
	"github.com/najoast/hellonode/tcp"
)

// Status is the body of GET /status.
type Status struct {
	Node        string                            `json:"node"`
	Identifier  string                            `json:"identifier,omitempty"`
	Status      string                            `json:"status"`
	Workers     []WorkerStatus                    `json:"workers"`
	Connections []tcp.ConnectionInfo              `json:"connections,omitempty"`
	Services    map[string]bootstrap.ServiceState `json:"services,omitempty"`
}

// WorkerStatus adds the readable worker state to core.WorkerStats.
type WorkerStatus struct {
	core.WorkerStats
	State string `json:"state"`
}

type handlerOptions struct {
	transport  *tcp.Transport
	lifecycle  *bootstrap.LifecycleManager
	identifier string
	loggers    ldlog.Loggers
}

// Option customizes the handler returned by NewHandler.
type Option func(*handlerOptions)

// WithTransport adds the transport's connections to the status.
func WithTransport(t *tcp.Transport) Option {
	return func(o *handlerOptions) { o.transport = t }
}

// WithLifecycle adds service states to the status. A failed service makes
// the node report itself as degraded.
func WithLifecycle(lm *bootstrap.LifecycleManager) Option {
	return func(o *handlerOptions) { o.lifecycle = lm }
}

// WithIdentifier names the identity the node runs as.
func WithIdentifier(id string) Option {
	return func(o *handlerOptions) { o.identifier = id }
}

// WithLoggers sets the loggers for request logging. The node's loggers are
// used otherwise.
func WithLoggers(loggers ldlog.Loggers) Option {
	return func(o *handlerOptions) { o.loggers = loggers }
}

type handler struct {
	node *core.Node
	opts handlerOptions
}

// NewHandler returns the admin routes for node:
//
//	GET /status              node, worker, connection and service status
//	GET /workers/{address}   stats of one worker
//	GET /metrics             prometheus metrics of the node
func NewHandler(node *core.Node, opts ...Option) http.Handler {
	h := handler{node: node, opts: handlerOptions{loggers: node.Loggers()}}
	for _, opt := range opts {
		opt(&h.opts)
	}

	router := mux.NewRouter()
	router.Use(logging.RequestLoggerMiddleware(h.opts.loggers))
	router.HandleFunc("/status", h.getStatus).Methods("GET")
	router.HandleFunc("/workers/{address}", h.getWorker).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(node.Registry(), promhttp.HandlerOpts{})).Methods("GET")
	return router
}

func (h handler) getStatus(w http.ResponseWriter, req *http.Request) {
	resp := Status{
		Node:       h.node.Name(),
		Identifier: h.opts.identifier,
		Status:     "healthy",
	}
	for _, ws := range h.node.Workers() {
		resp.Workers = append(resp.Workers, WorkerStatus{WorkerStats: ws, State: ws.State.String()})
	}
	if h.opts.transport != nil {
		resp.Connections = h.opts.transport.Connections()
	}
	if h.opts.lifecycle != nil {
		resp.Services = h.opts.lifecycle.States()
		for _, state := range resp.Services {
			if state == bootstrap.StateFailed {
				resp.Status = "degraded"
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h handler) getWorker(w http.ResponseWriter, req *http.Request) {
	addr := core.ParseAddress(mux.Vars(req)["address"])
	ws, ok := h.node.Worker(addr)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, WorkerStatus{WorkerStats: ws, State: ws.State.String()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
