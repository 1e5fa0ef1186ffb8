package bridge

import (
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// labelStore is the process-wide telemetry label map. It outlives
// Init/Shutdown cycles and mirrors itself into an info gauge.
type labelStore struct {
	mu    sync.RWMutex
	m     map[string]string
	gauge *prometheus.GaugeVec
}

func newLabelStore(gauge *prometheus.GaugeVec) *labelStore {
	return &labelStore{m: make(map[string]string), gauge: gauge}
}

// set stores key=value, or deletes key when value is nil. It reports whether
// the map changed, and any error mirroring the pair into the gauge.
func (s *labelStore) set(key string, value *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, had := s.m[key]
	if value == nil {
		if !had {
			return false, nil
		}
		delete(s.m, key)
		s.gauge.DeleteLabelValues(key, old)
		return true, nil
	}
	if had && old == *value {
		return false, nil
	}
	if had {
		s.gauge.DeleteLabelValues(key, old)
	}
	s.m[key] = *value
	g, err := s.gauge.GetMetricWithLabelValues(key, *value)
	if err != nil {
		return true, err
	}
	g.Set(1)
	return true, nil
}

// sanitizeLabel replaces invalid UTF-8 so host bytes are accepted lossily.
func sanitizeLabel(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

func (s *labelStore) clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.m)
	s.m = make(map[string]string)
	s.gauge.Reset()
	return n
}

func (s *labelStore) snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}

func (s *labelStore) keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
