package bridge

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// resumeController runs keepalive passes on a ticker while the host is
// backgrounded, and on demand when a wake or resume arrives.
type resumeController struct {
	rt      *Runtime
	limiter *rate.Limiter

	kickCh  chan string
	resetCh chan time.Duration
	done    chan struct{}
	stopped chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	interval  time.Duration
}

func newResumeController(rt *Runtime, interval time.Duration) *resumeController {
	return &resumeController{
		rt:       rt,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		kickCh:   make(chan string, 1),
		resetCh:  make(chan time.Duration, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		interval: interval,
	}
}

func (w *resumeController) start() {
	w.startOnce.Do(func() { go w.run() })
}

// stop ends the loop and waits for it to exit.
func (w *resumeController) stop() {
	w.stopOnce.Do(func() { close(w.done) })
	w.startOnce.Do(func() { close(w.stopped) })
	<-w.stopped
}

// kick requests an immediate pass. Kicks beyond one per second are dropped.
func (w *resumeController) kick(reason string) {
	if !w.limiter.Allow() {
		w.rt.logger().Debug("keepalive kick coalesced", zap.String("reason", reason))
		return
	}
	select {
	case w.kickCh <- reason:
	default:
	}
}

// reschedule replaces the ticker interval; only the latest value is kept.
func (w *resumeController) reschedule(d time.Duration) {
	for {
		select {
		case w.resetCh <- d:
			return
		default:
		}
		select {
		case <-w.resetCh:
		default:
		}
	}
}

func (w *resumeController) run() {
	defer close(w.stopped)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case d := <-w.resetCh:
			if d > 0 && d != w.interval {
				w.interval = d
				ticker.Reset(d)
			}
		case reason := <-w.kickCh:
			w.rt.keepalivePass(reason)
		case <-ticker.C:
			if w.rt.shouldBackgroundKeepalive() {
				w.rt.keepalivePass("interval")
			}
		}
	}
}

// shouldBackgroundKeepalive gates the periodic pass on background mode and
// the power configuration.
func (r *Runtime) shouldBackgroundKeepalive() bool {
	if !r.initialized.Load() || !r.background.Load() {
		return false
	}
	cfg := r.Config()
	if !cfg.BackgroundKeepalive {
		return false
	}
	if cfg.BatteryOptimization && PowerState(r.power.Load()) == PowerCritical {
		return false
	}
	return true
}

// keepalivePass sends a keepalive on every session that supports one.
func (r *Runtime) keepalivePass(reason string) {
	r.mu.Lock()
	targets := make([]*conn, 0, len(r.conns))
	for _, c := range r.conns {
		if _, ok := c.session.(Keepaliver); ok {
			targets = append(targets, c)
		}
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.Config().ConnectionTimeout())
	defer cancel()
	var failed int
	for _, c := range targets {
		if ctx.Err() != nil {
			break
		}
		if err := c.session.(Keepaliver).Keepalive(); err != nil {
			failed++
			r.logger().Warn("keepalive failed", zap.Uint64("connection", uint64(c.id)), zap.Error(err))
		}
	}

	n := r.keepalivePasses.Inc()
	r.metrics.KeepalivePasses.Inc()
	r.logger().Debug("keepalive pass",
		zap.String("reason", reason),
		zap.Int("sessions", len(targets)),
		zap.Int("failed", failed),
	)
	r.publish(EventKeepalive, map[string]any{"reason": reason, "sessions": len(targets), "pass": n})
}
