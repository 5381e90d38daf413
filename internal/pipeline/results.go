package pipeline

import (
	"sync"
)

// ResultMap maps a node's scope path to its most recent StepResult. One map
// is used per run and shared by every branch of that run.
type ResultMap struct {
	mu    sync.RWMutex
	items map[string]*StepResult
	order []string

	failedPath string
	failure    error
}

func NewResultMap() *ResultMap {
	return &ResultMap{
		items: make(map[string]*StepResult),
	}
}

// Set stores the latest result for key. Keys keep the order in which they
// were first written.
func (m *ResultMap) Set(key string, result *StepResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[key]; !ok {
		m.order = append(m.order, key)
	}
	m.items[key] = result
}

func (m *ResultMap) Get(key string) (*StepResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result, ok := m.items[key]
	return result, ok
}

// Keys returns the keys in first-write order.
func (m *ResultMap) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, len(m.order))
	copy(keys, m.order)
	return keys
}

func (m *ResultMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Snapshot returns a copy of the current entries.
func (m *ResultMap) Snapshot() map[string]*StepResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshot := make(map[string]*StepResult, len(m.items))
	for k, v := range m.items {
		snapshot[k] = v
	}
	return snapshot
}

// RecordFailure remembers the path of the first element that raised an
// error. Later calls are ignored.
func (m *ResultMap) RecordFailure(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failure != nil {
		return
	}
	m.failedPath = path
	m.failure = err
}

// Failure returns the path and error recorded by RecordFailure.
func (m *ResultMap) Failure() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failedPath, m.failure
}
