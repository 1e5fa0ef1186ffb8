//  engine.go
//  Nyx Mobile Bridge
//
//  Interfaces through which the boundary reaches the session engine. The
//  engine owns handshakes, crypto and real I/O; the boundary only tracks
//  handles, counters and policy around it.

package bridge

import (
	"context"
	"errors"
	"strings"
)

// Engine dials sessions on behalf of the boundary.
type Engine interface {
	// Dial establishes a session to endpoint. ctx carries the configured
	// connection timeout.
	Dial(ctx context.Context, endpoint string) (Session, error)
}

// Session is one engine-side connection.
type Session interface {
	// Write hands payload to the engine and returns the bytes accepted.
	Write(p []byte) (int, error)
	// TryRead copies already-received bytes into p without blocking and
	// returns 0 when nothing is pending.
	TryRead(p []byte) (int, error)
	// Close tears the session down.
	Close() error
}

// Keepaliver is implemented by sessions that need periodic keepalives while
// the host is backgrounded.
type Keepaliver interface {
	Keepalive() error
}

// QualityReporter is implemented by sessions that can grade their own link.
type QualityReporter interface {
	Quality() ConnectionQuality
}

// Deliverer is implemented by sessions whose inbound bytes are pushed by the
// host rather than read from a socket.
type Deliverer interface {
	Deliver(p []byte) error
	Pending() int
}

var (
	errSessionClosed = errors.New("session closed")
	errQueueFull     = errors.New("inbound queue full")
	errEmptyEndpoint = errors.New("endpoint is empty")
)

// QueueEngineConfig tunes the in-memory engine.
type QueueEngineConfig struct {
	// QueueDepth bounds pending inbound payloads per session.
	QueueDepth int
	// Loopback echoes every written payload back into the session's inbound
	// queue.
	Loopback bool
}

// QueueEngine is the default engine: sessions accept writes and serve reads
// from a per-session inbound queue filled by Deliver (or by loopback).
type QueueEngine struct {
	cfg QueueEngineConfig
}

// NewQueueEngine constructs a queue engine.
func NewQueueEngine(cfg QueueEngineConfig) *QueueEngine {
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 128
	}
	return &QueueEngine{cfg: cfg}
}

// Dial implements Engine.
func (e *QueueEngine) Dial(ctx context.Context, endpoint string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(endpoint) == "" {
		return nil, errEmptyEndpoint
	}
	return newQueueSession(endpoint, e.cfg.QueueDepth, e.cfg.Loopback), nil
}
