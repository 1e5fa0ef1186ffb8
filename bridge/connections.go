package bridge

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"
)

func (r *Runtime) lookup(op string, id ConnectionID) (*conn, error) {
	r.mu.Lock()
	c, ok := r.conns[id]
	r.mu.Unlock()
	if !ok {
		return nil, r.fail(op, StatusInvalidArgument, "connection not found", nil)
	}
	return c, nil
}

// Connect dials endpoint through the engine under the connect policy and
// returns the new handle.
func (r *Runtime) Connect(ctx context.Context, endpoint string) (id ConnectionID, err error) {
	const op = "connect"
	defer r.observe(op, &err)
	if err := r.requireInit(op); err != nil {
		return 0, err
	}
	if endpoint == "" {
		return 0, r.fail(op, StatusInvalidArgument, "endpoint is empty", nil)
	}

	r.mu.Lock()
	cfg, gen, active := r.cfg, r.generation, len(r.conns)
	r.mu.Unlock()
	if err := r.admit(op, cfg, active); err != nil {
		return 0, err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectionTimeout())
	defer cancel()
	session, derr := r.engine.Dial(dialCtx, endpoint)
	if derr == nil {
		// An engine that ignores ctx can still overrun the deadline.
		if cerr := dialCtx.Err(); cerr != nil {
			_ = session.Close()
			derr = cerr
		}
	}
	if derr != nil {
		r.failures.Inc()
		r.metrics.ConnectionsTotal.WithLabelValues("failed").Inc()
		if errors.Is(derr, context.DeadlineExceeded) {
			return 0, r.fail(op, StatusConnectionTimeout, "connection timed out", derr)
		}
		return 0, r.fail(op, StatusNetworkError, "dial failed", derr)
	}

	c := &conn{endpoint: endpoint, session: session, opened: time.Now()}
	c.quality.Store(uint32(QualityGood))

	r.mu.Lock()
	if !r.initialized.Load() || r.generation != gen {
		r.mu.Unlock()
		_ = session.Close()
		return 0, r.fail(op, StatusNotInitialized, "nyx mobile layer shut down during connect", nil)
	}
	if len(r.conns) >= int(r.cfg.MaxConnections) {
		r.mu.Unlock()
		_ = session.Close()
		r.metrics.ConnectionsTotal.WithLabelValues("rejected").Inc()
		return 0, r.fail(op, StatusResourceExhausted, "connection limit reached", nil)
	}
	c.id = ConnectionID(r.nextID.Inc())
	r.conns[c.id] = c
	active = len(r.conns)
	r.mu.Unlock()

	r.totalConnections.Inc()
	r.handshakes.Inc()
	r.quality.Store(uint32(QualityGood))
	r.metrics.ConnectionsTotal.WithLabelValues("ok").Inc()
	r.metrics.ActiveConnections.Set(float64(active))
	r.logger().Info("connection established",
		zap.Uint64("connection", uint64(c.id)),
		zap.String("endpoint", endpoint),
		zap.Int("active", active),
	)
	r.publish(EventConnectionOpened, map[string]any{"id": uint64(c.id), "endpoint": endpoint})
	return c.id, nil
}

// admit applies the connect policy before dialing.
func (r *Runtime) admit(op string, cfg MobileConfig, active int) error {
	switch {
	case active >= int(cfg.MaxConnections):
		r.metrics.ConnectionsTotal.WithLabelValues("rejected").Inc()
		return r.fail(op, StatusResourceExhausted, "connection limit reached", nil)
	case r.background.Load() && !cfg.BackgroundKeepalive:
		r.metrics.ConnectionsTotal.WithLabelValues("rejected").Inc()
		return r.fail(op, StatusBackgroundModeRestricted, "connections are disabled in background mode", nil)
	case NetworkType(r.network.Load()) == NetworkCellular && !cfg.CellularDataUsage:
		r.metrics.ConnectionsTotal.WithLabelValues("rejected").Inc()
		return r.fail(op, StatusPermissionDenied, "cellular data usage is disabled", nil)
	}
	return nil
}

// Send hands data to the connection's session and returns the bytes
// accepted.
func (r *Runtime) Send(id ConnectionID, data []byte) (n int, err error) {
	const op = "send"
	defer r.observe(op, &err)
	if err := r.requireInit(op); err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, r.fail(op, StatusInvalidArgument, "data is empty", nil)
	}
	c, err := r.lookup(op, id)
	if err != nil {
		return 0, err
	}
	n, werr := c.session.Write(data)
	if werr != nil {
		if errors.Is(werr, errQueueFull) {
			return 0, r.fail(op, StatusResourceExhausted, "send queue full", werr)
		}
		return 0, r.fail(op, StatusNetworkError, "send failed", werr)
	}
	c.bytesSent.Add(uint64(n))
	r.bytesSent.Add(uint64(n))
	r.metrics.BytesSent.Add(float64(n))
	return n, nil
}

// Receive copies pending bytes into buf without blocking. It returns 0 when
// nothing is queued.
func (r *Runtime) Receive(id ConnectionID, buf []byte) (n int, err error) {
	const op = "receive"
	defer r.observe(op, &err)
	if err := r.requireInit(op); err != nil {
		return 0, err
	}
	if len(buf) == 0 {
		return 0, r.fail(op, StatusInvalidArgument, "buffer is empty", nil)
	}
	c, err := r.lookup(op, id)
	if err != nil {
		return 0, err
	}
	n, rerr := c.session.TryRead(buf)
	if rerr != nil {
		return 0, r.fail(op, StatusNetworkError, "receive failed", rerr)
	}
	if n > 0 {
		c.bytesReceived.Add(uint64(n))
		r.bytesReceived.Add(uint64(n))
		r.metrics.BytesReceived.Add(float64(n))
	}
	return n, nil
}

// Deliver queues inbound bytes on a session whose data is pushed by the
// host.
func (r *Runtime) Deliver(id ConnectionID, data []byte) (err error) {
	const op = "deliver"
	defer r.observe(op, &err)
	if err := r.requireInit(op); err != nil {
		return err
	}
	if len(data) == 0 {
		return r.fail(op, StatusInvalidArgument, "data is empty", nil)
	}
	c, err := r.lookup(op, id)
	if err != nil {
		return err
	}
	d, ok := c.session.(Deliverer)
	if !ok {
		return r.fail(op, StatusUnsupportedOperation, "session has no inbound queue", nil)
	}
	if derr := d.Deliver(data); derr != nil {
		if errors.Is(derr, errQueueFull) {
			return r.fail(op, StatusResourceExhausted, "inbound queue full", derr)
		}
		return r.fail(op, StatusNetworkError, "deliver failed", derr)
	}
	return nil
}

// Disconnect closes and forgets a connection.
func (r *Runtime) Disconnect(id ConnectionID) (err error) {
	const op = "disconnect"
	defer r.observe(op, &err)
	if err := r.requireInit(op); err != nil {
		return err
	}
	r.mu.Lock()
	c, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	active := len(r.conns)
	r.mu.Unlock()
	if !ok {
		return r.fail(op, StatusInvalidArgument, "connection not found", nil)
	}

	if cerr := c.session.Close(); cerr != nil {
		r.logger().Warn("close session", zap.Uint64("connection", uint64(id)), zap.Error(cerr))
	}
	if active == 0 {
		r.quality.Store(uint32(QualityDisconnected))
	}
	r.metrics.ActiveConnections.Set(float64(active))
	r.logger().Info("connection closed",
		zap.Uint64("connection", uint64(id)),
		zap.Duration("age", time.Since(c.opened)),
	)
	r.publish(EventConnectionClosed, map[string]any{"id": uint64(id)})
	return nil
}

// ConnectionStats reports counters for one connection.
func (r *Runtime) ConnectionStats(id ConnectionID) (st ConnStats, err error) {
	const op = "stats.connection"
	defer r.observe(op, &err)
	if err := r.requireInit(op); err != nil {
		return ConnStats{}, err
	}
	c, err := r.lookup(op, id)
	if err != nil {
		return ConnStats{}, err
	}
	return c.stats(), nil
}

// Connections lists every open connection ordered by handle.
func (r *Runtime) Connections() []ConnStats {
	r.mu.Lock()
	conns := make([]*conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()
	sort.Slice(conns, func(i, j int) bool { return conns[i].id < conns[j].id })
	out := make([]ConnStats, len(conns))
	for i, c := range conns {
		out[i] = c.stats()
	}
	return out
}

// SetNetworkType records the network hint. A change bumps network_changes.
func (r *Runtime) SetNetworkType(t NetworkType) (err error) {
	const op = "network.set"
	defer r.observe(op, &err)
	if err := r.requireInit(op); err != nil {
		return err
	}
	if !t.Valid() {
		return r.fail(op, StatusInvalidArgument, "invalid network type", nil)
	}
	prev := NetworkType(r.network.Swap(int32(t)))
	if prev == t {
		return nil
	}
	r.networkChanges.Inc()
	r.metrics.NetworkChanges.Inc()
	r.logger().Info("network type changed", zap.Stringer("from", prev), zap.Stringer("to", t))
	r.publish(EventNetworkType, map[string]any{"from": prev.String(), "to": t.String()})
	return nil
}

// NetworkType returns the current network hint.
func (r *Runtime) NetworkType() (t NetworkType, err error) {
	const op = "network.get"
	defer r.observe(op, &err)
	if err := r.requireInit(op); err != nil {
		return NetworkUnknown, err
	}
	return NetworkType(r.network.Load()), nil
}

// AssessConnectionQuality grades the link and stamps each connection with
// its result.
func (r *Runtime) AssessConnectionQuality() (q ConnectionQuality, err error) {
	const op = "quality.assess"
	defer r.observe(op, &err)
	if err := r.requireInit(op); err != nil {
		return QualityDisconnected, err
	}

	r.mu.Lock()
	conns := make([]*conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	ceiling := QualityExcellent
	if NetworkType(r.network.Load()) == NetworkCellular {
		ceiling = QualityFair
	}
	switch PowerState(r.power.Load()) {
	case PowerCritical, PowerNetworkConstrained:
		ceiling = QualityPoor
	}

	overall := QualityDisconnected
	if len(conns) > 0 {
		overall = QualityExcellent
		for _, c := range conns {
			cq := QualityGood
			if qr, ok := c.session.(QualityReporter); ok {
				cq = qr.Quality()
			}
			cq = worseQuality(cq, ceiling)
			c.quality.Store(uint32(cq))
			overall = worseQuality(overall, cq)
		}
	}

	prev := ConnectionQuality(r.quality.Swap(uint32(overall)))
	r.metrics.ConnectionQuality.Set(float64(overall))
	if prev != overall {
		r.logger().Debug("connection quality changed", zap.Stringer("from", prev), zap.Stringer("to", overall))
		r.publish(EventQuality, map[string]any{"quality": overall.String(), "connections": len(conns)})
	}
	return overall, nil
}
