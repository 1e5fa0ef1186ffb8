//  power.go
//  Nyx Mobile Bridge
//
//  Power hints, push wakes and telemetry labels reported by the host OS
//  glue.

package bridge

import (
	"go.uber.org/zap"
)

// SetPowerState records the host power state. Only Active, Background,
// Inactive and Critical are accepted.
func (r *Runtime) SetPowerState(s PowerState) (err error) {
	const op = "power.set"
	defer r.observe(op, &err)
	if err := r.requireInit(op); err != nil {
		return err
	}
	if !s.Settable() {
		return r.fail(op, StatusInvalidArgument, "invalid power state", nil)
	}
	prev := PowerState(r.power.Swap(uint32(s)))
	r.metrics.PowerStateSets.WithLabelValues(s.String()).Inc()
	if prev != s {
		r.logger().Info("power state changed",
			zap.Stringer("from", prev),
			zap.Stringer("to", s),
			zap.Strings("labels", r.labels.keys()),
		)
		r.publish(EventPowerState, map[string]any{"from": prev.String(), "to": s.String()})
	}
	return nil
}

// PowerState returns the last state set by the host. It does not require
// Init.
func (r *Runtime) PowerState() PowerState {
	return PowerState(r.power.Load())
}

// PushWake notes a push notification and kicks the resume controller.
func (r *Runtime) PushWake() (err error) {
	const op = "power.wake"
	defer r.observe(op, &err)
	if err := r.requireInit(op); err != nil {
		return err
	}
	n := r.wakeCount.Inc()
	r.metrics.PushWakes.Inc()
	r.kick("wake")
	r.logger().Debug("push wake", zap.Uint32("count", n))
	r.publish(EventWake, map[string]any{"count": n})
	return nil
}

// ResumeLowPowerSession asks the engine to resume a session suspended for
// power reasons.
func (r *Runtime) ResumeLowPowerSession() (err error) {
	const op = "power.resume"
	defer r.observe(op, &err)
	if err := r.requireInit(op); err != nil {
		return err
	}
	n := r.resumeCount.Inc()
	r.metrics.Resumes.Inc()
	r.kick("resume")
	r.logger().Debug("resume low power session", zap.Uint32("count", n))
	r.publish(EventResume, map[string]any{"count": n})
	return nil
}

func (r *Runtime) kick(reason string) {
	r.mu.Lock()
	worker := r.worker
	r.mu.Unlock()
	if worker != nil {
		worker.kick(reason)
	}
}

// WakeCount returns push wakes since Init.
func (r *Runtime) WakeCount() uint32 {
	return r.wakeCount.Load()
}

// ResumeCount returns resume requests since Init.
func (r *Runtime) ResumeCount() uint32 {
	return r.resumeCount.Load()
}

// SetTelemetryLabel stores key=value, or removes key when value is nil.
// Labels outlive Shutdown.
func (r *Runtime) SetTelemetryLabel(key string, value *string) (err error) {
	const op = "telemetry.set"
	defer r.observe(op, &err)
	if key == "" {
		return r.fail(op, StatusInvalidArgument, "telemetry key is empty", nil)
	}
	key = sanitizeLabel(key)
	if value != nil {
		clean := sanitizeLabel(*value)
		value = &clean
	}
	changed, gerr := r.labels.set(key, value)
	if gerr != nil {
		r.logger().Warn("telemetry label not mirrored to metrics", zap.String("key", key), zap.Error(gerr))
	}
	if !changed {
		return nil
	}
	data := map[string]any{"key": key}
	if value != nil {
		data["value"] = *value
		r.logger().Debug("telemetry label set", zap.String("key", key), zap.String("value", *value))
	} else {
		r.logger().Debug("telemetry label removed", zap.String("key", key))
	}
	r.publish(EventLabel, data)
	return nil
}

// ClearTelemetryLabels removes every label.
func (r *Runtime) ClearTelemetryLabels() (err error) {
	defer r.observe("telemetry.clear", &err)
	if n := r.labels.clear(); n > 0 {
		r.logger().Debug("telemetry labels cleared", zap.Int("count", n))
		r.publish(EventLabel, map[string]any{"cleared": n})
	}
	return nil
}

// TelemetryLabels returns a copy of the label map.
func (r *Runtime) TelemetryLabels() map[string]string {
	return r.labels.snapshot()
}
