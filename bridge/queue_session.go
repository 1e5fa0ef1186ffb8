//  queue_session.go
//  Nyx Mobile Bridge
//
//  Implements the in-memory session served by QueueEngine: writes are
//  accepted, reads drain a bounded queue of host-delivered payloads.

package bridge

import (
	"sync"
	"time"
)

type queueSession struct {
	endpoint string
	loopback bool

	mu            sync.Mutex
	recvQueue     chan pooledBytes
	current       pooledBytes
	offset        int
	closed        bool
	lastKeepalive time.Time
	keepalives    uint64
}

func newQueueSession(endpoint string, depth int, loopback bool) *queueSession {
	return &queueSession{
		endpoint:  endpoint,
		loopback:  loopback,
		recvQueue: make(chan pooledBytes, depth),
	}
}

func (s *queueSession) Write(p []byte) (int, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return 0, errSessionClosed
	}
	if s.loopback {
		if err := s.Deliver(p); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// TryRead never blocks: it serves the partially consumed head payload first,
// then at most one queued payload.
func (s *queueSession) TryRead(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.current.data) > 0 {
		n := copy(p, s.current.data[s.offset:])
		s.offset += n
		if s.offset >= len(s.current.data) {
			s.current.release()
			s.current = pooledBytes{}
			s.offset = 0
		}
		return n, nil
	}
	if s.closed {
		return 0, errSessionClosed
	}

	select {
	case payload := <-s.recvQueue:
		n := copy(p, payload.data)
		if n < len(payload.data) {
			s.current = payload
			s.offset = n
			return n, nil
		}
		payload.release()
		return n, nil
	default:
		return 0, nil
	}
}

func (s *queueSession) Deliver(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	payload := newPooledBytes(p)
	select {
	case s.recvQueue <- payload:
		return nil
	default:
		payload.release()
		return errQueueFull
	}
}

func (s *queueSession) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.recvQueue)
	if len(s.current.data) > 0 {
		n++
	}
	return n
}

func (s *queueSession) Keepalive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	s.lastKeepalive = time.Now()
	s.keepalives++
	return nil
}

func (s *queueSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.current.release()
	s.current = pooledBytes{}
	s.offset = 0
	for {
		select {
		case payload := <-s.recvQueue:
			payload.release()
		default:
			return nil
		}
	}
}
