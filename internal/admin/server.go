// Package admin exposes the daemon's state over a local HTTP
// endpoint: health, metrics, and read-only snapshots of the channel
// stores. The stores are never handed out directly; every response is
// built from a snapshot, so no admin consumer can mutate live state.
package admin

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pedrohba/convo/internal/metrics"
	"github.com/pedrohba/convo/internal/model"
	"github.com/pedrohba/convo/internal/page"
	"github.com/pedrohba/convo/internal/presence"
	"github.com/pedrohba/convo/internal/status"
	"github.com/pedrohba/convo/internal/store"
	"github.com/pedrohba/convo/internal/thread"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server serves the admin HTTP API.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *zap.Logger
}

// Deps are the read surfaces the admin API exposes.
type Deps struct {
	Session string
	Stores  *store.Registry
	Typing  *presence.Tracker
	Machine *status.Machine
	Loader  *page.Loader
	Metrics *metrics.Set
}

// NewServer binds the admin listener on addr.
func NewServer(addr string, deps Deps, logger *zap.Logger) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	h := &handlers{deps: deps, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	r.HandleFunc("/v1/status", h.status).Methods(http.MethodGet)
	r.HandleFunc("/v1/channels", h.channels).Methods(http.MethodGet)
	r.HandleFunc("/v1/channels/{id}/messages", h.messages).Methods(http.MethodGet)
	r.HandleFunc("/v1/channels/{id}/typing", h.typing).Methods(http.MethodGet)
	r.HandleFunc("/v1/channels/{id}/threads/{root}", h.thread).Methods(http.MethodGet)
	r.HandleFunc("/v1/channels/{id}/older", h.older).Methods(http.MethodPost)

	return &Server{
		httpServer: &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second},
		listener:   listener,
		logger:     logger,
	}, nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() string { return s.listener.Addr().String() }

// Start begins serving. Blocks until stopped.
func (s *Server) Start() error {
	s.logger.Info("admin server starting", zap.String("addr", s.Addr()))
	err := s.httpServer.Serve(s.listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop performs a graceful shutdown.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("admin server stopping")
	_ = s.httpServer.Shutdown(ctx)
}

type handlers struct {
	deps   Deps
	logger *zap.Logger
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"session":  h.deps.Session,
		"state":    h.deps.Machine.Current(),
		"channels": len(h.deps.Stores.Channels()),
	})
}

func (h *handlers) channels(w http.ResponseWriter, _ *http.Request) {
	type channelInfo struct {
		ID       string `json:"id"`
		Messages int    `json:"messages"`
	}
	var out []channelInfo
	for _, id := range h.deps.Stores.Channels() {
		out = append(out, channelInfo{ID: id, Messages: h.deps.Stores.Channel(id).Len()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": out})
}

func (h *handlers) messages(w http.ResponseWriter, r *http.Request) {
	channelID := mux.Vars(r)["id"]
	limit := intQuery(r, "limit", 50)

	st := h.deps.Stores.Channel(channelID)
	var msgs []*model.Message
	for m := range st.All() {
		msgs = append(msgs, m)
	}
	// Newest tail of the channel, still in chronological order.
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (h *handlers) typing(w http.ResponseWriter, r *http.Request) {
	channelID := mux.Vars(r)["id"]
	writeJSON(w, http.StatusOK, map[string]any{
		"typing": h.deps.Typing.Active(channelID),
	})
}

func (h *handlers) thread(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	st := h.deps.Stores.Channel(vars["id"])

	seq, ok := thread.Project(st, vars["root"])
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "root message not loaded"})
		return
	}
	var msgs []*model.Message
	for m := range seq {
		msgs = append(msgs, m)
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (h *handlers) older(w http.ResponseWriter, r *http.Request) {
	channelID := mux.Vars(r)["id"]
	before := r.URL.Query().Get("before")

	outcome, err := h.deps.Loader.LoadOlder(r.Context(), channelID, before)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"added":   outcome.Added,
		"hasMore": outcome.HasMore,
		"skipped": outcome.Skipped,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func intQuery(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
