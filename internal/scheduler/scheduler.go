package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/turbot/pipe-fittings/perr"
	"golang.org/x/sync/errgroup"

	"github.com/turbot/flowci/internal/fperr"
	"github.com/turbot/flowci/internal/fplog"
	"github.com/turbot/flowci/internal/metrics"
	"github.com/turbot/flowci/internal/pipeline"
	"github.com/turbot/flowci/internal/util"
)

// Scheduler walks a pipeline tree. Elements of a node run in order, members of
// a group run concurrently under the configured limit. Create one Scheduler
// per run: the tracker and recorder it owns are never reset.
type Scheduler struct {
	concurrency   int
	failFast      bool
	haltOnFailure bool
	runId         string

	tracker  *Tracker
	recorder *metrics.Recorder
}

type SchedulerOption func(*Scheduler) error

func New(opts ...SchedulerOption) (*Scheduler, error) {
	s := &Scheduler{}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.tracker == nil {
		s.tracker = NewTracker(s.concurrency)
	}
	if s.recorder == nil {
		s.recorder = metrics.NewRecorder()
	}
	if s.runId == "" {
		s.runId = util.NewRunId()
	}
	return s, nil
}

// WithConcurrency limits the number of running steps per depth and the number
// of admitted members per group. Zero or less means no limit.
func WithConcurrency(concurrency int) SchedulerOption {
	return func(s *Scheduler) error {
		s.concurrency = concurrency
		return nil
	}
}

// WithFailFast cancels the remaining members of a group as soon as one of them
// returns an error. Without it every member runs to completion and the first
// error is returned afterwards.
func WithFailFast() SchedulerOption {
	return func(s *Scheduler) error {
		s.failFast = true
		return nil
	}
}

// WithHaltOnFailure stops a node once an element produces a failure status.
// The failure becomes the node's result so enclosing nodes stop too.
func WithHaltOnFailure() SchedulerOption {
	return func(s *Scheduler) error {
		s.haltOnFailure = true
		return nil
	}
}

func WithTracker(tracker *Tracker) SchedulerOption {
	return func(s *Scheduler) error {
		if tracker == nil {
			return perr.BadRequestWithMessage("tracker must not be nil")
		}
		s.tracker = tracker
		return nil
	}
}

func WithRecorder(recorder *metrics.Recorder) SchedulerOption {
	return func(s *Scheduler) error {
		if recorder == nil {
			return perr.BadRequestWithMessage("recorder must not be nil")
		}
		s.recorder = recorder
		return nil
	}
}

func WithRunId(runId string) SchedulerOption {
	return func(s *Scheduler) error {
		s.runId = runId
		return nil
	}
}

func (s *Scheduler) RunId() string {
	return s.runId
}

func (s *Scheduler) Tracker() *Tracker {
	return s.tracker
}

func (s *Scheduler) Recorder() *metrics.Recorder {
	return s.recorder
}

// RunOutput describes a finished run.
type RunOutput struct {
	ID         string               `json:"id"`
	Root       string               `json:"root"`
	Result     *pipeline.StepResult `json:"result"`
	Results    *pipeline.ResultMap  `json:"-"`
	Stats      Stats                `json:"stats"`
	Timings    []metrics.StepRun    `json:"timings"`
	FailedPath string               `json:"failed_path,omitempty"`
	StartTime  time.Time            `json:"start_time"`
	EndTime    time.Time            `json:"end_time"`
}

// Succeeded is true when the run returned no error and the root result is not
// a failure.
func (o *RunOutput) Succeeded() bool {
	return o.FailedPath == "" && o.Result != nil && o.Result.Succeeded()
}

// Run validates root and executes it with a client scoped to the root name.
// The output is returned even when the run fails so the caller can report the
// failing path.
func (s *Scheduler) Run(ctx context.Context, root *pipeline.Node, client pipeline.ExecutionClient) (*RunOutput, error) {
	if err := pipeline.Validate(root); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fperr.ConfigurationWithMessage("execution client is nil")
	}

	logger := fplog.Logger(ctx).With("run", s.runId)
	ctx = fplog.ContextWithFlowciLogger(ctx, logger)

	output := &RunOutput{
		ID:        s.runId,
		Root:      root.Name,
		Results:   pipeline.NewResultMap(),
		StartTime: time.Now(),
	}

	logger.Info("run started", "pipeline", root.Name, "concurrency", s.concurrency, "steps", pipeline.CountLeaves(root))

	err := s.Execute(ctx, root, client.Scope(root.Name), output.Results, 0)

	output.EndTime = time.Now()
	output.Result, _ = output.Results.Get(root.Name)
	output.Stats = s.tracker.Stats()
	output.Timings = s.recorder.FinishedSteps()
	if err != nil {
		output.FailedPath, _ = output.Results.Failure()
		logger.Error("run failed", "pipeline", root.Name, "path", output.FailedPath, "error", err)
		return output, err
	}

	logger.Info("run finished", "pipeline", root.Name, "status", statusOf(output.Result), "duration", output.EndTime.Sub(output.StartTime).String())
	return output, nil
}

// Execute runs node with a client already scoped to it, writing into results.
// results may be nil, in which case a fresh map is used and discarded.
func (s *Scheduler) Execute(ctx context.Context, node *pipeline.Node, client pipeline.ExecutionClient, results *pipeline.ResultMap, depth int) error {
	if node == nil {
		return fperr.ConfigurationWithMessage("pipeline is nil")
	}
	if results == nil {
		results = pipeline.NewResultMap()
	}
	_, err := s.executeNode(ctx, node.Name, node, client, results, nil, depth)
	return err
}

// executeNode returns the node's result: the result of the last element it
// processed.
func (s *Scheduler) executeNode(ctx context.Context, path string, node *pipeline.Node, client pipeline.ExecutionClient, results *pipeline.ResultMap, seed *pipeline.StepResult, depth int) (*pipeline.StepResult, error) {
	logger := fplog.Logger(ctx)
	logger.Debug("pipeline started", "path", path, "depth", depth)

	current := seed
	previousWasNode := false

	for _, element := range node.Steps {
		if err := ctx.Err(); err != nil {
			return current, err
		}

		var res *pipeline.StepResult
		var err error
		isNode := false

		switch e := element.(type) {
		case *pipeline.Leaf:
			res, err = s.executeLeaf(ctx, path, e, client, results, current, depth)

		case *pipeline.Node:
			isNode = true
			if e == nil {
				err = nilElementError(path, results)
				break
			}
			var childSeed *pipeline.StepResult
			if previousWasNode {
				childSeed = current
			}
			res, err = s.executeNode(ctx, pipeline.ScopePath(path, e.Name), e, client.Scope(e.Name), results, childSeed, depth)

		case *pipeline.Group:
			if e == nil {
				err = nilElementError(path, results)
				break
			}
			res, err = s.executeGroup(ctx, path, e, client, results, current, depth+1)

		default:
			err = fperr.ConfigurationWithMessage(fmt.Sprintf("pipeline '%s' contains an unsupported element %T", path, element))
			results.RecordFailure(path, err)
		}

		if err != nil {
			return current, err
		}

		current = res
		results.Set(path, current)
		previousWasNode = isNode

		if s.haltOnFailure && current.Failed() {
			logger.Warn("pipeline halted on failure", "path", path)
			return current, nil
		}
	}

	logger.Debug("pipeline finished", "path", path, "status", statusOf(current))
	return current, nil
}

// executeGroup joins every member before it returns. Member results keep the
// declaration order regardless of completion order.
func (s *Scheduler) executeGroup(ctx context.Context, path string, group *pipeline.Group, client pipeline.ExecutionClient, results *pipeline.ResultMap, previous *pipeline.StepResult, depth int) (*pipeline.StepResult, error) {
	var g *errgroup.Group
	groupCtx := ctx
	if s.failFast {
		g, groupCtx = errgroup.WithContext(ctx)
	} else {
		g = &errgroup.Group{}
	}
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}

	memberResults := make([]*pipeline.StepResult, len(group.Members))
	for i, member := range group.Members {
		i, member := i, member
		g.Go(func() error {
			res, err := s.executeMember(groupCtx, path, member, client, results, previous, depth)
			memberResults[i] = res
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pipeline.GroupResult(memberResults), nil
}

func (s *Scheduler) executeMember(ctx context.Context, path string, member pipeline.Element, client pipeline.ExecutionClient, results *pipeline.ResultMap, previous *pipeline.StepResult, depth int) (*pipeline.StepResult, error) {
	switch m := member.(type) {
	case *pipeline.Leaf:
		return s.executeLeaf(ctx, path, m, client, results, previous, depth)
	case *pipeline.Node:
		if m == nil {
			return nil, nilElementError(path, results)
		}
		return s.executeNode(ctx, pipeline.ScopePath(path, m.Name), m, client.Scope(m.Name), results, previous, depth)
	case *pipeline.Group:
		if m == nil {
			return nil, nilElementError(path, results)
		}
		return s.executeGroup(ctx, path, m, client, results, previous, depth+1)
	}

	err := fperr.ConfigurationWithMessage(fmt.Sprintf("group in pipeline '%s' contains an unsupported element %T", path, member))
	results.RecordFailure(path, err)
	return nil, err
}

// executeLeaf holds a tracker slot for the duration of the step. Step errors
// are returned as they are.
func (s *Scheduler) executeLeaf(ctx context.Context, path string, leaf *pipeline.Leaf, client pipeline.ExecutionClient, results *pipeline.ResultMap, previous *pipeline.StepResult, depth int) (*pipeline.StepResult, error) {
	if leaf == nil {
		return nil, nilElementError(path, results)
	}
	stepPath := pipeline.ScopePath(path, leaf.Name)
	logger := fplog.Logger(ctx)

	// Execute does not validate the tree, so a missing function is reported
	// here rather than dereferenced.
	if leaf.Fn == nil {
		err := fperr.ConfigurationWithMessage(fmt.Sprintf("step '%s' has no function", stepPath))
		results.RecordFailure(stepPath, err)
		return nil, err
	}

	if err := s.tracker.Acquire(ctx, depth); err != nil {
		results.RecordFailure(stepPath, err)
		return nil, err
	}
	defer s.tracker.Release(depth)

	s.recorder.StartStep(stepPath, depth)
	defer s.recorder.EndStep(stepPath)

	logger.Debug("step started", "step", stepPath, "depth", depth)

	res, err := leaf.Fn(ctx, client, previous)
	if err != nil {
		results.RecordFailure(stepPath, err)
		logger.Error("step failed", "step", stepPath, "error", err)
		return nil, err
	}
	if res == nil {
		err = perr.InternalWithMessage(fmt.Sprintf("step '%s' returned no result", stepPath))
		results.RecordFailure(stepPath, err)
		return nil, err
	}

	logger.Debug("step finished", "step", stepPath, "status", res.Status)
	return res, nil
}

// Run executes root with a fresh scheduler admitting concurrency steps per
// depth and returns the result map.
func Run(ctx context.Context, root *pipeline.Node, client pipeline.ExecutionClient, concurrency int) (*pipeline.ResultMap, error) {
	s, err := New(WithConcurrency(concurrency))
	if err != nil {
		return nil, err
	}

	output, err := s.Run(ctx, root, client)
	if output == nil {
		return nil, err
	}
	return output.Results, err
}

func nilElementError(path string, results *pipeline.ResultMap) error {
	err := fperr.ConfigurationWithMessage(fmt.Sprintf("pipeline '%s' contains a nil element", path))
	results.RecordFailure(path, err)
	return err
}

func statusOf(r *pipeline.StepResult) string {
	if r == nil {
		return "none"
	}
	return string(r.Status)
}
