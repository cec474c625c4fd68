// Package metrics is a small facade between the pipeline and a metrics
// backend. The core code depends only on this package; backends (Datadog,
// nop) are selected at startup via SetBackend.
package metrics

import (
	"sync"
	"time"
)

// Backend is the minimal sink the pipeline emits into. Implementations must
// be safe for concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, tags ...string)
	ObserveDuration(name string, d time.Duration, tags ...string)
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, ...string)            {}
func (nopBackend) ObserveDuration(string, time.Duration, ...string) {}
func (nopBackend) Flush() error                                     { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs the process-wide backend. Call once at startup; the
// nop backend remains active when never called.
func SetBackend(b Backend) {
	if b == nil {
		b = nopBackend{}
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to a named counter.
func IncCounter(name string, delta float64, tags ...string) {
	current().IncCounter(name, delta, tags...)
}

// ObserveDuration records one duration sample.
func ObserveDuration(name string, d time.Duration, tags ...string) {
	current().ObserveDuration(name, d, tags...)
}

// Flush forces buffered metrics out. Call before process exit.
func Flush() error {
	return current().Flush()
}
