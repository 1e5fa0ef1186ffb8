// Package diag serves boundary status, labels, power controls, a live event
// stream and Prometheus metrics over HTTP.
//
// Routes:
//
//	GET    /v1/status          runtime snapshot
//	GET    /v1/stats           global counters
//	GET    /v1/connections     open connections
//	GET    /v1/labels          telemetry labels
//	PUT    /v1/labels/{key}    set a label from {"value": "..."}
//	DELETE /v1/labels/{key}    remove a label
//	POST   /v1/power?state=    set the power state by name or code
//	POST   /v1/wake            push wake
//	POST   /v1/resume          resume low power session
//	GET    /v1/events          WebSocket event stream
//	GET    /metrics            Prometheus exposition
package diag

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/gorilla/schema"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nyx-network/nyx-mobile/bridge"
)

// Boundary is the part of the runtime exposed over HTTP.
type Boundary interface {
	Snapshot() bridge.Snapshot
	GlobalStats() (bridge.GlobalStats, error)
	Connections() []bridge.ConnStats
	TelemetryLabels() map[string]string
	SetTelemetryLabel(key string, value *string) error
	SetPowerState(bridge.PowerState) error
	PushWake() error
	ResumeLowPowerSession() error
	Subscribe() (<-chan bridge.Event, func())
	Registry() *prometheus.Registry
}

// Options configures the server.
type Options struct {
	Addr            string
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server is the diagnostics HTTP surface.
type Server struct {
	b       Boundary
	opts    Options
	log     *zap.Logger
	decoder *schema.Decoder
	router  chi.Router
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

const (
	wsWriteWait  = 5 * time.Second
	wsPingPeriod = 30 * time.Second
)

// New builds the router.
func New(b Boundary, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	dec := schema.NewDecoder()
	dec.IgnoreUnknownKeys(true)
	s := &Server{b: b, opts: opts, log: log.Named("diag"), decoder: dec}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Get("/stats", s.stats)
		r.Get("/connections", s.connections)
		r.Get("/labels", s.labels)
		r.Put("/labels/{key}", s.putLabel)
		r.Delete("/labels/{key}", s.deleteLabel)
		r.Post("/power", s.setPower)
		r.Post("/wake", s.wake)
		r.Post("/resume", s.resume)
		r.Get("/events", s.events)
	})
	r.Handle("/metrics", promhttp.HandlerFor(b.Registry(), promhttp.HandlerOpts{}))
	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: s.opts.ReadTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("diagnostics listening", zap.String("addr", s.opts.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type errorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status"`
	Code   int32  `json:"code"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	st := bridge.StatusOf(err)
	code := http.StatusInternalServerError
	switch st {
	case bridge.StatusInvalidArgument:
		code = http.StatusBadRequest
	case bridge.StatusNotInitialized, bridge.StatusAlreadyInitialized:
		code = http.StatusConflict
	}
	render.Status(r, code)
	render.JSON(w, r, errorResponse{Error: err.Error(), Status: st.String(), Code: int32(st)})
}

func badRequest(msg string) error {
	return &bridge.Error{Status: bridge.StatusInvalidArgument, Msg: msg}
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.b.Snapshot())
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.b.GlobalStats()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, st)
}

func (s *Server) connections(w http.ResponseWriter, r *http.Request) {
	conns := s.b.Connections()
	render.JSON(w, r, map[string]any{"connections": conns, "count": len(conns)})
}

func (s *Server) labels(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.b.TelemetryLabels())
}

type labelRequest struct {
	Value *string `json:"value"`
}

func (s *Server) putLabel(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, badRequest("invalid JSON body"))
		return
	}
	if req.Value == nil {
		s.writeError(w, r, badRequest("value is required"))
		return
	}
	if err := s.b.SetTelemetryLabel(chi.URLParam(r, "key"), req.Value); err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, s.b.TelemetryLabels())
}

func (s *Server) deleteLabel(w http.ResponseWriter, r *http.Request) {
	if err := s.b.SetTelemetryLabel(chi.URLParam(r, "key"), nil); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type powerQuery struct {
	State string `schema:"state,required"`
}

func (s *Server) setPower(w http.ResponseWriter, r *http.Request) {
	var q powerQuery
	if err := s.decoder.Decode(&q, r.URL.Query()); err != nil {
		s.writeError(w, r, badRequest("state query parameter is required"))
		return
	}
	state, ok := bridge.ParsePowerState(q.State)
	if !ok {
		s.writeError(w, r, badRequest("unknown power state "+q.State))
		return
	}
	if err := s.b.SetPowerState(state); err != nil {
		s.writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"power_state": state.String()})
}

func (s *Server) wake(w http.ResponseWriter, r *http.Request) {
	if err := s.b.PushWake(); err != nil {
		s.writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) resume(w http.ResponseWriter, r *http.Request) {
	if err := s.b.ResumeLowPowerSession(); err != nil {
		s.writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// events streams bus events as JSON text frames until the client goes away.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the handshake completes so no event is missed.
	events, unsub := s.b.Subscribe()
	defer unsub()

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(e); err != nil {
				s.log.Debug("websocket write", zap.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
