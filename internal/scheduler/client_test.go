package scheduler

import (
	"sync"

	"github.com/turbot/flowci/internal/pipeline"
)

// recordingClient is an in-memory ExecutionClient remembering every scope it
// hands out.
type recordingClient struct {
	path   string
	scopes *scopeLog
}

type scopeLog struct {
	lock  sync.Mutex
	paths []string
}

func newRecordingClient() *recordingClient {
	return &recordingClient{scopes: &scopeLog{}}
}

func (c *recordingClient) Scope(name string) pipeline.ExecutionClient {
	child := &recordingClient{
		path:   pipeline.ScopePath(c.path, name),
		scopes: c.scopes,
	}
	c.scopes.lock.Lock()
	c.scopes.paths = append(c.scopes.paths, child.path)
	c.scopes.lock.Unlock()
	return child
}

func (c *recordingClient) Scopes() []string {
	c.scopes.lock.Lock()
	defer c.scopes.lock.Unlock()
	paths := make([]string, len(c.scopes.paths))
	copy(paths, c.scopes.paths)
	return paths
}

// callLog records step invocations in order.
type callLog struct {
	lock  sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.lock.Lock()
	l.calls = append(l.calls, name)
	l.lock.Unlock()
}

func (l *callLog) list() []string {
	l.lock.Lock()
	defer l.lock.Unlock()
	calls := make([]string, len(l.calls))
	copy(calls, l.calls)
	return calls
}
