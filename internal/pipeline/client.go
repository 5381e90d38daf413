package pipeline

import "context"

// ExecutionClient is the handle to the remote execution backend. The
// scheduler only ever derives scoped clients from it and hands them to leaf
// steps; everything else is up to the backend.
type ExecutionClient interface {
	// Scope returns a client nested under name. It must not block.
	Scope(name string) ExecutionClient
}

// StepFunc is a leaf step. previous is nil when there is no previous result.
// Expected, recoverable conditions are reported through a failure status;
// returned errors are fatal to the run.
type StepFunc func(ctx context.Context, client ExecutionClient, previous *StepResult) (*StepResult, error)
