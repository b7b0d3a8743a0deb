package shared

import "sync"

// Status tracks the per-store loading flag and last error message. A new
// error overwrites the previous one; there is no error history.
type Status struct {
	mu      sync.RWMutex
	loading bool
	lastErr string
}

// Begin marks an operation in flight and clears the previous error.
func (s *Status) Begin() {
	s.mu.Lock()
	s.loading = true
	s.lastErr = ""
	s.mu.Unlock()
}

// End marks the operation finished.
func (s *Status) End() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}

// Fail records the failure message and resets the loading flag.
func (s *Status) Fail(err error) {
	s.mu.Lock()
	if err != nil {
		s.lastErr = err.Error()
	}
	s.loading = false
	s.mu.Unlock()
}

// Loading reports whether an operation is in flight.
func (s *Status) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the last recorded error message, empty when none.
func (s *Status) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}
