// Package metrics holds the relay's four counters: total calls
// placed, total errors, currently active calls, and total AI-peer
// reconnects. Rendered as plain "name value" lines with no labels and
// no HELP/TYPE comments - the smallest useful exposition format for
// this surface, not the teacher's per-endpoint histogram style.
package metrics

import (
	"fmt"
	"sync"
)

// Metrics is the process-wide counter set, safe for concurrent use by
// every HTTP handler and every BridgeSession.
type Metrics struct {
	mu          sync.Mutex
	callsTotal  int64
	errorsTotal int64
	activeCalls int64
	reconnects  int64
}

// New returns a zeroed counter set.
func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncCallsTotal() {
	m.mu.Lock()
	m.callsTotal++
	m.mu.Unlock()
}

func (m *Metrics) IncErrorsTotal() {
	m.mu.Lock()
	m.errorsTotal++
	m.mu.Unlock()
}

func (m *Metrics) IncActiveCalls() {
	m.mu.Lock()
	m.activeCalls++
	m.mu.Unlock()
}

// DecActiveCalls floors at zero: receiving the same terminal
// call_status twice for one CallSid must not drive the gauge negative.
func (m *Metrics) DecActiveCalls() {
	m.mu.Lock()
	if m.activeCalls > 0 {
		m.activeCalls--
	}
	m.mu.Unlock()
}

func (m *Metrics) IncReconnects() {
	m.mu.Lock()
	m.reconnects++
	m.mu.Unlock()
}

// Snapshot returns the four current values.
func (m *Metrics) Snapshot() (callsTotal, errorsTotal, activeCalls, reconnects int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callsTotal, m.errorsTotal, m.activeCalls, m.reconnects
}

// Prometheus renders the four counters as plain-text exposition.
func (m *Metrics) Prometheus() string {
	calls, errs, active, reconnects := m.Snapshot()
	return fmt.Sprintf(
		"calls_total %d\nerrors_total %d\nactive_calls %d\nreconnects_total %d\n",
		calls, errs, active, reconnects,
	)
}
