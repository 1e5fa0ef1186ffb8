//  runtime.go
//  Nyx Mobile Bridge
//
//  Owns the process-wide boundary state behind the C function table and the
//  platform bridge: lifecycle, configuration, the connection table and the
//  counters reported back to the host.

package bridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nyx-network/nyx-mobile/internal/metrics"
)

// Version is the boundary version reported by nyx_mobile_version. Populated
// at build time via -ldflags.
var Version = "1.0.0"

type conn struct {
	id       ConnectionID
	endpoint string
	session  Session
	opened   time.Time

	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
	quality       atomic.Uint32
}

func (c *conn) stats() ConnStats {
	st := ConnStats{
		ID:            c.id,
		Endpoint:      c.endpoint,
		BytesSent:     c.bytesSent.Load(),
		BytesReceived: c.bytesReceived.Load(),
		Quality:       ConnectionQuality(c.quality.Load()),
	}
	if d, ok := c.session.(Deliverer); ok {
		st.Pending = d.Pending()
	}
	return st
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithEngine replaces the default queue engine.
func WithEngine(e Engine) Option {
	return func(r *Runtime) {
		if e != nil {
			r.engine = e
		}
	}
}

// WithRegistry registers boundary metrics on reg instead of a private
// registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(r *Runtime) {
		if reg != nil {
			r.registry = reg
		}
	}
}

// WithLogSink routes logs to sink from construction on.
func WithLogSink(sink LogSink) Option {
	return func(r *Runtime) { r.sink = sink }
}

// Runtime is the Boundary Adapter. All exported methods are safe for
// concurrent use from the host's main thread and OS callback threads.
type Runtime struct {
	engine   Engine
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	bus      *EventBus
	labels   *labelStore
	sink     LogSink

	level zap.AtomicLevel
	log   atomic.Pointer[zap.Logger]

	initialized atomic.Bool

	mu         sync.Mutex
	generation uint64
	conns      map[ConnectionID]*conn
	cfg        MobileConfig
	worker     *resumeController
	sessionID  string
	clientID   string

	nextID           atomic.Uint64
	power            atomic.Uint32
	network          atomic.Int32
	quality          atomic.Uint32
	background       atomic.Bool
	totalConnections atomic.Uint64
	handshakes       atomic.Uint64
	failures         atomic.Uint64
	networkChanges   atomic.Uint64
	keepalivePasses  atomic.Uint64
	bytesSent        atomic.Uint64
	bytesReceived    atomic.Uint64
	wakeCount        atomic.Uint32
	resumeCount      atomic.Uint32

	lastErrMu sync.Mutex
	lastErr   string
}

// New constructs an uninitialised Runtime.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		engine: NewQueueEngine(QueueEngineConfig{}),
		bus:    NewEventBus(),
		level:  zap.NewAtomicLevelAt(zapcore.InfoLevel),
		conns:  make(map[ConnectionID]*conn),
		cfg:    DefaultMobileConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = prometheus.NewRegistry()
	}
	r.metrics = metrics.New(r.registry)
	r.labels = newLabelStore(r.metrics.TelemetryLabel)
	r.power.Store(uint32(PowerActive))
	r.quality.Store(uint32(QualityDisconnected))
	r.log.Store(newLogger(r.sink, r.level))
	return r
}

var (
	defaultOnce    sync.Once
	defaultRuntime *Runtime
)

// Default returns the process-wide Runtime shared by the C surface and the
// platform bridge.
func Default() *Runtime {
	defaultOnce.Do(func() {
		defaultRuntime = New()
	})
	return defaultRuntime
}

func (r *Runtime) logger() *zap.Logger {
	return r.log.Load()
}

// Logger returns the current boundary logger for companion packages.
func (r *Runtime) Logger() *zap.Logger {
	return r.log.Load()
}

// Registry exposes the metrics registry for scraping.
func (r *Runtime) Registry() *prometheus.Registry {
	return r.registry
}

// Subscribe registers an event listener.
func (r *Runtime) Subscribe() (<-chan Event, func()) {
	return r.bus.Subscribe()
}

func (r *Runtime) publish(t EventType, data map[string]any) {
	r.bus.Publish(Event{Type: t, Data: data})
}

// observe counts the outcome of op; call via defer with the named error.
func (r *Runtime) observe(op string, err *error) {
	r.metrics.CallsTotal.WithLabelValues(op, StatusOf(*err).String()).Inc()
}

// fail records msg in the last-error slot, logs it, and returns the typed
// error for op.
func (r *Runtime) fail(op string, status Status, msg string, cause error) error {
	e := &Error{Op: op, Status: status, Msg: msg, Err: cause}
	r.setLastError(e.Error())
	fields := []zap.Field{zap.String("op", op), zap.Stringer("status", status)}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	r.logger().Error(msg, fields...)
	return e
}

func (r *Runtime) setLastError(msg string) {
	r.lastErrMu.Lock()
	r.lastErr = msg
	r.lastErrMu.Unlock()
}

func (r *Runtime) clearLastError() {
	r.setLastError("")
}

// LastError returns the message of the most recent failure, or "".
func (r *Runtime) LastError() string {
	r.lastErrMu.Lock()
	defer r.lastErrMu.Unlock()
	return r.lastErr
}

// RejectArgument records an argument failure detected before reaching the
// runtime (null pointers at the C layer).
func (r *Runtime) RejectArgument(op, msg string) error {
	err := r.fail(op, StatusInvalidArgument, msg, nil)
	r.observe(op, &err)
	return err
}

// RecordPanic converts a recovered panic into an InternalError.
func (r *Runtime) RecordPanic(op string, v any) error {
	err := r.fail(op, StatusInternalError, fmt.Sprintf("panic: %v", v), nil)
	r.observe(op, &err)
	return err
}

func (r *Runtime) requireInit(op string) error {
	if !r.initialized.Load() {
		return r.fail(op, StatusNotInitialized, "nyx mobile layer not initialized", nil)
	}
	return nil
}

// CheckInit fails with NotInitialized unless the boundary is up. The C layer
// calls it before validating pointers.
func (r *Runtime) CheckInit(op string) (err error) {
	if err = r.requireInit(op); err != nil {
		r.observe(op, &err)
	}
	return err
}

// Initialized reports whether Init has succeeded and Shutdown has not run.
func (r *Runtime) Initialized() bool {
	return r.initialized.Load()
}

// Init brings the boundary up. A second call while active returns an
// AlreadyInitialized error and changes nothing.
func (r *Runtime) Init() (err error) {
	defer r.observe("init", &err)

	r.mu.Lock()
	if r.initialized.Load() {
		r.mu.Unlock()
		return &Error{Op: "init", Status: StatusAlreadyInitialized, Msg: "already initialized"}
	}
	r.generation++
	r.conns = make(map[ConnectionID]*conn)
	r.cfg = DefaultMobileConfig()
	r.sessionID = uuid.NewString()
	r.clientID = ""
	r.power.Store(uint32(PowerActive))
	r.network.Store(int32(NetworkUnknown))
	r.quality.Store(uint32(QualityDisconnected))
	r.background.Store(false)
	r.totalConnections.Store(0)
	r.handshakes.Store(0)
	r.failures.Store(0)
	r.networkChanges.Store(0)
	r.keepalivePasses.Store(0)
	r.bytesSent.Store(0)
	r.bytesReceived.Store(0)
	r.wakeCount.Store(0)
	r.resumeCount.Store(0)
	r.worker = newResumeController(r, r.cfg.BackgroundTaskInterval())
	r.worker.start()
	r.clearLastError()
	r.initialized.Store(true)
	sessionID := r.sessionID
	r.mu.Unlock()

	r.metrics.ActiveConnections.Set(0)
	r.metrics.BackgroundMode.Set(0)
	r.metrics.ConnectionQuality.Set(float64(QualityDisconnected))
	r.logger().Info("nyx mobile layer initialized", zap.String("session", sessionID), zap.String("version", Version))
	r.publish(EventLifecycle, map[string]any{"state": "initialized", "session": sessionID})
	return nil
}

// Shutdown closes every connection and stops background work. It is safe to
// call repeatedly; calls after the first return NotInitialized.
func (r *Runtime) Shutdown() (err error) {
	defer r.observe("shutdown", &err)

	r.mu.Lock()
	if !r.initialized.Load() {
		r.mu.Unlock()
		return r.fail("shutdown", StatusNotInitialized, "nyx mobile layer not initialized", nil)
	}
	r.initialized.Store(false)
	conns := r.conns
	r.conns = make(map[ConnectionID]*conn)
	worker := r.worker
	r.worker = nil
	sessionID := r.sessionID
	r.mu.Unlock()

	if worker != nil {
		worker.stop()
	}
	for id, c := range conns {
		if cerr := c.session.Close(); cerr != nil {
			r.logger().Warn("close session on shutdown", zap.Uint64("connection", uint64(id)), zap.Error(cerr))
		}
	}
	r.metrics.ActiveConnections.Set(0)
	r.clearLastError()
	r.logger().Info("nyx mobile layer shut down", zap.String("session", sessionID), zap.Int("closed", len(conns)))
	r.publish(EventLifecycle, map[string]any{"state": "shutdown", "session": sessionID})
	return nil
}

// SetLogLevel applies the C log level code (0=ERROR .. 4=TRACE).
func (r *Runtime) SetLogLevel(code int) (err error) {
	defer r.observe("log.level", &err)
	if err := r.requireInit("log.level"); err != nil {
		return err
	}
	lvl, ok := logLevelFromCode(code)
	if !ok {
		return r.fail("log.level", StatusInvalidArgument, fmt.Sprintf("invalid log level %d", code), nil)
	}
	r.level.SetLevel(lvl)
	return nil
}

// LogLevel reports the active level name.
func (r *Runtime) LogLevel() string {
	return levelName(r.level.Level())
}

// SetLogSink routes subsequent log lines to sink; nil restores stderr.
func (r *Runtime) SetLogSink(sink LogSink) {
	r.log.Store(newLogger(sink, r.level))
}

// CreateClient replaces the configuration with configJSON decoded over the
// defaults.
func (r *Runtime) CreateClient(configJSON string) (err error) {
	defer r.observe("client.create", &err)
	if err := r.requireInit("client.create"); err != nil {
		return err
	}
	cfg, perr := ParseMobileConfig(DefaultMobileConfig(), configJSON)
	if perr != nil {
		return r.fail("client.create", StatusConfigurationError, perr.Error(), nil)
	}
	clientID := uuid.NewString()
	r.applyConfig(cfg, func() { r.clientID = clientID })
	r.logger().Info("nyx mobile client created", zap.String("client", clientID), zap.Any("config", cfg))
	return nil
}

// UpdateConfig merges configJSON into the current configuration.
func (r *Runtime) UpdateConfig(configJSON string) (err error) {
	defer r.observe("config.update", &err)
	if err := r.requireInit("config.update"); err != nil {
		return err
	}
	r.mu.Lock()
	base := r.cfg
	r.mu.Unlock()
	cfg, perr := ParseMobileConfig(base, configJSON)
	if perr != nil {
		return r.fail("config.update", StatusConfigurationError, perr.Error(), nil)
	}
	r.applyConfig(cfg, nil)
	r.logger().Info("mobile configuration updated", zap.Any("config", cfg))
	return nil
}

func (r *Runtime) applyConfig(cfg MobileConfig, locked func()) {
	r.mu.Lock()
	r.cfg = cfg
	if locked != nil {
		locked()
	}
	worker := r.worker
	r.mu.Unlock()
	if worker != nil {
		worker.reschedule(cfg.BackgroundTaskInterval())
	}
	r.publish(EventConfig, map[string]any{
		"max_connections":             cfg.MaxConnections,
		"background_task_interval_ms": cfg.BackgroundTaskIntervalMS,
	})
}

// Config returns the active configuration.
func (r *Runtime) Config() MobileConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// Version returns the boundary version string.
func (r *Runtime) Version() string {
	return Version
}

// Snapshot reports the runtime status for diagnostics.
func (r *Runtime) Snapshot() Snapshot {
	r.mu.Lock()
	cfg, sessionID, clientID := r.cfg, r.sessionID, r.clientID
	r.mu.Unlock()
	s := Snapshot{
		Version:     Version,
		Initialized: r.initialized.Load(),
		ClientID:    clientID,
		PowerState:  PowerState(r.power.Load()).String(),
		NetworkType: NetworkType(r.network.Load()).String(),
		Quality:     ConnectionQuality(r.quality.Load()).String(),
		Background:  r.background.Load(),
		LogLevel:    r.LogLevel(),
		LastError:   r.LastError(),
		Config:      cfg,
		Labels:      r.labels.snapshot(),
	}
	if s.Initialized {
		s.SessionID = sessionID
	}
	return s
}

// GlobalStats returns counters accumulated since Init.
func (r *Runtime) GlobalStats() (st GlobalStats, err error) {
	defer r.observe("stats.global", &err)
	if err := r.requireInit("stats.global"); err != nil {
		return GlobalStats{}, err
	}
	r.mu.Lock()
	active := len(r.conns)
	r.mu.Unlock()
	return GlobalStats{
		TotalConnections:     r.totalConnections.Load(),
		SuccessfulHandshakes: r.handshakes.Load(),
		ConnectionFailures:   r.failures.Load(),
		NetworkChanges:       r.networkChanges.Load(),
		ActiveConnections:    active,
		BytesSent:            r.bytesSent.Load(),
		BytesReceived:        r.bytesReceived.Load(),
		KeepalivePasses:      r.keepalivePasses.Load(),
		WakeCount:            r.wakeCount.Load(),
		ResumeCount:          r.resumeCount.Load(),
	}, nil
}

// EnterBackground enables background optimisations.
func (r *Runtime) EnterBackground() (err error) {
	defer r.observe("mode.background", &err)
	if err := r.requireInit("mode.background"); err != nil {
		return err
	}
	r.setBackground(true)
	return nil
}

// EnterForeground disables background optimisations.
func (r *Runtime) EnterForeground() (err error) {
	defer r.observe("mode.foreground", &err)
	if err := r.requireInit("mode.foreground"); err != nil {
		return err
	}
	r.setBackground(false)
	return nil
}

func (r *Runtime) setBackground(on bool) {
	if r.background.Swap(on) == on {
		return
	}
	mode := "foreground"
	if on {
		mode = "background"
		r.metrics.BackgroundMode.Set(1)
	} else {
		r.metrics.BackgroundMode.Set(0)
	}
	r.logger().Info("app mode changed", zap.String("mode", mode))
	r.publish(EventAppMode, map[string]any{"mode": mode})
}

// Background reports whether background optimisations are enabled.
func (r *Runtime) Background() bool {
	return r.background.Load()
}
