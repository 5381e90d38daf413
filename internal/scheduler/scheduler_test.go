package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/turbot/flowci/internal/fperr"
	"github.com/turbot/flowci/internal/pipeline"
)

type SchedulerTestSuite struct {
	suite.Suite
	ctx context.Context
}

func (suite *SchedulerTestSuite) SetupTest() {
	suite.ctx = context.Background()
}

func (suite *SchedulerTestSuite) newScheduler(opts ...SchedulerOption) *Scheduler {
	s, err := New(opts...)
	suite.Require().NoError(err)
	return s
}

// constant returns a step producing data, recording its name.
func constant(log *callLog, name string, data any) *pipeline.Leaf {
	return pipeline.Step(name, func(ctx context.Context, client pipeline.ExecutionClient, previous *pipeline.StepResult) (*pipeline.StepResult, error) {
		log.add(name)
		return pipeline.Success(data), nil
	})
}

func sleeping(name string, d time.Duration, data any) *pipeline.Leaf {
	return pipeline.Step(name, func(ctx context.Context, client pipeline.ExecutionClient, previous *pipeline.StepResult) (*pipeline.StepResult, error) {
		select {
		case <-time.After(d):
			return pipeline.Success(data), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

func (suite *SchedulerTestSuite) TestSequentialResultThreading() {
	assert := assert.New(suite.T())

	var received *pipeline.StepResult
	root := pipeline.New("root",
		pipeline.Step("leaf_a", func(ctx context.Context, client pipeline.ExecutionClient, previous *pipeline.StepResult) (*pipeline.StepResult, error) {
			assert.Nil(previous)
			return pipeline.Success("X"), nil
		}),
		pipeline.Step("leaf_b", func(ctx context.Context, client pipeline.ExecutionClient, previous *pipeline.StepResult) (*pipeline.StepResult, error) {
			received = previous
			return pipeline.Success("Y"), nil
		}),
	)

	results, err := Run(suite.ctx, root, newRecordingClient(), 4)
	suite.Require().NoError(err)

	assert.Equal(pipeline.Success("X"), received)

	res, ok := results.Get("root")
	assert.True(ok)
	assert.Equal(pipeline.Success("Y"), res)
}

func (suite *SchedulerTestSuite) TestSequentialOrder() {
	assert := assert.New(suite.T())

	log := &callLog{}
	var previousValues []any
	var lock sync.Mutex

	steps := []pipeline.Element{}
	for i, name := range []string{"one", "two", "three", "four"} {
		i, name := i, name
		steps = append(steps, pipeline.Step(name, func(ctx context.Context, client pipeline.ExecutionClient, previous *pipeline.StepResult) (*pipeline.StepResult, error) {
			log.add(name)
			lock.Lock()
			if previous == nil {
				previousValues = append(previousValues, nil)
			} else {
				previousValues = append(previousValues, previous.Data)
			}
			lock.Unlock()
			return pipeline.Success(i), nil
		}))
	}

	_, err := Run(suite.ctx, pipeline.New("root", steps...), newRecordingClient(), 0)
	suite.Require().NoError(err)

	assert.Equal([]string{"one", "two", "three", "four"}, log.list())
	assert.Equal([]any{nil, 0, 1, 2}, previousValues)
}

func (suite *SchedulerTestSuite) TestGroupResultKeepsDeclarationOrder() {
	assert := assert.New(suite.T())

	root := pipeline.New("root",
		pipeline.Concurrent(
			sleeping("leaf_a", 50*time.Millisecond, "a"),
			sleeping("leaf_b", time.Millisecond, "b"),
		),
	)

	results, err := Run(suite.ctx, root, newRecordingClient(), 2)
	suite.Require().NoError(err)

	res, ok := results.Get("root")
	suite.Require().True(ok)
	assert.Equal(pipeline.StatusSuccess, res.Status)
	assert.Equal([]*pipeline.StepResult{pipeline.Success("a"), pipeline.Success("b")}, res.Data)

	// leaf members of a group never write their own keys
	assert.Equal([]string{"root"}, results.Keys())
}

func (suite *SchedulerTestSuite) TestGroupIsNotSerialized() {
	assert := assert.New(suite.T())

	const members = 3
	var started sync.WaitGroup
	started.Add(members)
	allStarted := make(chan struct{})
	go func() {
		started.Wait()
		close(allStarted)
	}()

	barrier := func(ctx context.Context, client pipeline.ExecutionClient, previous *pipeline.StepResult) (*pipeline.StepResult, error) {
		started.Done()
		select {
		case <-allStarted:
			return pipeline.Success(nil), nil
		case <-time.After(5 * time.Second):
			return nil, errors.New("members were serialized")
		}
	}

	root := pipeline.New("root",
		pipeline.Concurrent(
			pipeline.Step("a", barrier),
			pipeline.Step("b", barrier),
			pipeline.Step("c", barrier),
		),
	)

	s := suite.newScheduler(WithConcurrency(members))
	output, err := s.Run(suite.ctx, root, newRecordingClient())
	suite.Require().NoError(err)

	assert.Equal(members, output.Stats.MaxConcurrency)
	assert.Equal(members, output.Stats.MaxPerLevel[1])
	assert.Equal(0, output.Stats.Current)
}

func (suite *SchedulerTestSuite) TestConcurrencyCapSerializesGroup() {
	assert := assert.New(suite.T())

	const hold = 40 * time.Millisecond
	root := pipeline.New("root",
		pipeline.Concurrent(
			sleeping("a", hold, 1),
			sleeping("b", hold, 2),
			sleeping("c", hold, 3),
		),
	)

	s := suite.newScheduler(WithConcurrency(1))
	start := time.Now()
	output, err := s.Run(suite.ctx, root, newRecordingClient())
	elapsed := time.Since(start)
	suite.Require().NoError(err)

	assert.Equal(1, output.Stats.MaxConcurrency)
	assert.GreaterOrEqual(elapsed, 3*hold)
	assert.Len(output.Timings, 3)
}

func (suite *SchedulerTestSuite) TestNestedGroupsReturnToZero() {
	assert := assert.New(suite.T())

	log := &callLog{}
	root := pipeline.New("root",
		constant(log, "setup", "s"),
		pipeline.Concurrent(
			sleeping("lint", 5*time.Millisecond, "lint"),
			pipeline.Concurrent(
				sleeping("unit", 5*time.Millisecond, "unit"),
				pipeline.New("integration",
					sleeping("up", 5*time.Millisecond, "up"),
					pipeline.Concurrent(
						sleeping("api", 5*time.Millisecond, "api"),
						sleeping("ui", 5*time.Millisecond, "ui"),
					),
				),
			),
		),
		constant(log, "publish", "p"),
	)

	s := suite.newScheduler(WithConcurrency(2))
	output, err := s.Run(suite.ctx, root, newRecordingClient())
	suite.Require().NoError(err)

	assert.Equal(0, output.Stats.Current)
	assert.Contains(output.Stats.MaxPerLevel, 0)
	assert.Contains(output.Stats.MaxPerLevel, 1)
	assert.Contains(output.Stats.MaxPerLevel, 2)
	assert.Contains(output.Stats.MaxPerLevel, 3)
	for depth, highest := range output.Stats.MaxPerLevel {
		assert.LessOrEqual(highest, 2, "depth %d", depth)
	}

	assert.Equal([]string{"setup", "publish"}, log.list())
	assert.Equal(pipeline.Success("p"), output.Result)

	integration, ok := output.Results.Get("root.integration")
	suite.Require().True(ok)
	members, ok := integration.Members()
	suite.Require().True(ok)
	assert.Equal([]*pipeline.StepResult{pipeline.Success("api"), pipeline.Success("ui")}, members)
}

func (suite *SchedulerTestSuite) TestIdempotentForPureTrees() {
	build := func() *pipeline.Node {
		log := &callLog{}
		return pipeline.New("root",
			constant(log, "a", "A"),
			pipeline.Concurrent(
				constant(log, "b", "B"),
				pipeline.New("child", constant(log, "c", "C")),
			),
			pipeline.New("tail", constant(log, "d", map[string]string{"k": "v"})),
		)
	}

	first, err := Run(suite.ctx, build(), newRecordingClient(), 3)
	suite.Require().NoError(err)
	second, err := Run(suite.ctx, build(), newRecordingClient(), 3)
	suite.Require().NoError(err)

	assert.Empty(suite.T(), cmp.Diff(first.Snapshot(), second.Snapshot()))
	assert.Equal(suite.T(), first.Keys(), second.Keys())
}

type deepError struct {
	msg string
}

func (e *deepError) Error() string {
	return e.msg
}

func (suite *SchedulerTestSuite) TestErrorPropagatesUnmodified() {
	assert := assert.New(suite.T())

	log := &callLog{}
	boom := &deepError{msg: "backend unreachable"}

	root := pipeline.New("root",
		constant(log, "first", 1),
		pipeline.New("l1",
			pipeline.New("l2",
				pipeline.New("l3",
					pipeline.Step("boom", func(ctx context.Context, client pipeline.ExecutionClient, previous *pipeline.StepResult) (*pipeline.StepResult, error) {
						return nil, boom
					}),
					constant(log, "after_boom", 2),
				),
				constant(log, "after_l3", 3),
			),
			constant(log, "after_l2", 4),
		),
		constant(log, "after_l1", 5),
	)

	s := suite.newScheduler(WithConcurrency(2))
	output, err := s.Run(suite.ctx, root, newRecordingClient())

	assert.Same(boom, err)
	var target *deepError
	assert.True(errors.As(err, &target))

	assert.Equal([]string{"first"}, log.list())
	assert.Equal("root.l1.l2.l3.boom", output.FailedPath)
	assert.False(output.Succeeded())

	path, recorded := output.Results.Failure()
	assert.Equal("root.l1.l2.l3.boom", path)
	assert.Same(boom, recorded)
}

func (suite *SchedulerTestSuite) TestNestedNodeSeeding() {
	assert := assert.New(suite.T())

	var seenByB, seenByC, seenAfter *pipeline.StepResult
	root := pipeline.New("root",
		pipeline.New("a", pipeline.Step("make", func(ctx context.Context, client pipeline.ExecutionClient, previous *pipeline.StepResult) (*pipeline.StepResult, error) {
			return pipeline.Success("A"), nil
		})),
		pipeline.New("b", pipeline.Step("use", func(ctx context.Context, client pipeline.ExecutionClient, previous *pipeline.StepResult) (*pipeline.StepResult, error) {
			seenByB = previous
			return pipeline.Success("B"), nil
		})),
		pipeline.Step("leaf", func(ctx context.Context, client pipeline.ExecutionClient, previous *pipeline.StepResult) (*pipeline.StepResult, error) {
			seenAfter = previous
			return pipeline.Success("L"), nil
		}),
		pipeline.New("c", pipeline.Step("use", func(ctx context.Context, client pipeline.ExecutionClient, previous *pipeline.StepResult) (*pipeline.StepResult, error) {
			seenByC = previous
			return pipeline.Success("C"), nil
		})),
	)

	client := newRecordingClient()
	results, err := Run(suite.ctx, root, client, 1)
	suite.Require().NoError(err)

	assert.Equal(pipeline.Success("A"), seenByB)
	assert.Equal(pipeline.Success("B"), seenAfter)
	assert.Nil(seenByC, "a node after a leaf starts without a previous result")

	assert.Equal([]string{"root.a", "root", "root.b", "root.c"}, results.Keys())
	res, _ := results.Get("root")
	assert.Equal(pipeline.Success("C"), res)

	assert.Equal([]string{"root", "root.a", "root.b", "root.c"}, client.Scopes())
}

func (suite *SchedulerTestSuite) TestScopedClientsReachLeaves() {
	assert := assert.New(suite.T())

	var lock sync.Mutex
	paths := map[string]string{}
	record := func(name string) *pipeline.Leaf {
		return pipeline.Step(name, func(ctx context.Context, client pipeline.ExecutionClient, previous *pipeline.StepResult) (*pipeline.StepResult, error) {
			lock.Lock()
			paths[name] = client.(*recordingClient).path
			lock.Unlock()
			return pipeline.Success(name), nil
		})
	}

	root := pipeline.New("ci",
		record("checkout"),
		pipeline.Concurrent(
			pipeline.New("build", record("compile"), pipeline.New("unit", record("test"))),
			record("lint"),
		),
	)

	_, err := Run(suite.ctx, root, newRecordingClient(), 0)
	suite.Require().NoError(err)

	assert.Equal(map[string]string{
		"checkout": "ci",
		"compile":  "ci.build",
		"test":     "ci.build.unit",
		"lint":     "ci",
	}, paths)
}

func (suite *SchedulerTestSuite) TestFailureStatusContinuesByDefault() {
	assert := assert.New(suite.T())

	log := &callLog{}
	root := pipeline.New("root",
		pipeline.New("child",
			pipeline.Step("fails", func(ctx context.Context, client pipeline.ExecutionClient, previous *pipeline.StepResult) (*pipeline.StepResult, error) {
				return pipeline.Failure("exit 1"), nil
			}),
			constant(log, "child_next", "n"),
		),
		constant(log, "root_next", "r"),
	)

	output, err := suite.newScheduler().Run(suite.ctx, root, newRecordingClient())
	suite.Require().NoError(err)

	assert.Equal([]string{"child_next", "root_next"}, log.list())
	assert.True(output.Succeeded())
}

func (suite *SchedulerTestSuite) TestHaltOnFailure() {
	assert := assert.New(suite.T())

	log := &callLog{}
	root := pipeline.New("root",
		pipeline.New("child",
			pipeline.Concurrent(
				constant(log, "ok", "fine"),
				pipeline.Step("fails", func(ctx context.Context, client pipeline.ExecutionClient, previous *pipeline.StepResult) (*pipeline.StepResult, error) {
					return pipeline.Failure("exit 1"), nil
				}),
			),
			constant(log, "child_next", "n"),
		),
		constant(log, "root_next", "r"),
	)

	output, err := suite.newScheduler(WithHaltOnFailure()).Run(suite.ctx, root, newRecordingClient())
	suite.Require().NoError(err)

	assert.Equal([]string{"ok"}, log.list())
	assert.True(output.Result.Failed())
	assert.False(output.Succeeded())

	child, _ := output.Results.Get("root.child")
	assert.True(child.Failed())
	members, ok := child.Members()
	suite.Require().True(ok)
	assert.Len(members, 2)
}

func (suite *SchedulerTestSuite) TestGroupRunsToCompletionByDefault() {
	assert := assert.New(suite.T())

	var finished atomic.Bool
	boom := errors.New("boom")

	root := pipeline.New("root",
		pipeline.Concurrent(
			pipeline.Step("fails", func(ctx context.Context, client pipeline.ExecutionClient, previous *pipeline.StepResult) (*pipeline.StepResult, error) {
				return nil, boom
			}),
			pipeline.Step("slow", func(ctx context.Context, client pipeline.ExecutionClient, previous *pipeline.StepResult) (*pipeline.StepResult, error) {
				time.Sleep(30 * time.Millisecond)
				finished.Store(ctx.Err() == nil)
				return pipeline.Success(nil), nil
			}),
		),
	)

	_, err := Run(suite.ctx, root, newRecordingClient(), 2)
	assert.Same(boom, err)
	assert.True(finished.Load(), "sibling member must complete uncancelled")
}

func (suite *SchedulerTestSuite) TestFailFastCancelsSiblings() {
	assert := assert.New(suite.T())

	var cancelled atomic.Bool
	boom := errors.New("boom")

	root := pipeline.New("root",
		pipeline.Concurrent(
			pipeline.Step("fails", func(ctx context.Context, client pipeline.ExecutionClient, previous *pipeline.StepResult) (*pipeline.StepResult, error) {
				time.Sleep(5 * time.Millisecond)
				return nil, boom
			}),
			pipeline.Step("waits", func(ctx context.Context, client pipeline.ExecutionClient, previous *pipeline.StepResult) (*pipeline.StepResult, error) {
				select {
				case <-ctx.Done():
					cancelled.Store(true)
					return nil, ctx.Err()
				case <-time.After(5 * time.Second):
					return pipeline.Success(nil), nil
				}
			}),
		),
	)

	s := suite.newScheduler(WithConcurrency(2), WithFailFast())
	start := time.Now()
	output, err := s.Run(suite.ctx, root, newRecordingClient())

	assert.Same(boom, err)
	assert.True(cancelled.Load())
	assert.Less(time.Since(start), 5*time.Second)
	assert.Equal("root.fails", output.FailedPath)
}

func (suite *SchedulerTestSuite) TestInvalidTreeIsConfigurationError() {
	assert := assert.New(suite.T())

	_, err := Run(suite.ctx, pipeline.New("root"), newRecordingClient(), 1)
	assert.Error(err)
	assert.True(fperr.IsConfigurationError(err))

	_, err = Run(suite.ctx, nil, newRecordingClient(), 1)
	assert.True(fperr.IsConfigurationError(err))
}

func (suite *SchedulerTestSuite) TestNilResultIsAnError() {
	assert := assert.New(suite.T())

	root := pipeline.New("root", pipeline.Step("empty", func(ctx context.Context, client pipeline.ExecutionClient, previous *pipeline.StepResult) (*pipeline.StepResult, error) {
		return nil, nil
	}))

	output, err := suite.newScheduler().Run(suite.ctx, root, newRecordingClient())
	assert.Error(err)
	assert.Equal("root.empty", output.FailedPath)
	assert.Equal(0, output.Stats.Current)
}

func (suite *SchedulerTestSuite) TestExecuteWithoutResultMap() {
	root := pipeline.New("root", sleeping("a", time.Millisecond, "a"))
	s := suite.newScheduler()
	suite.NoError(s.Execute(suite.ctx, root, newRecordingClient(), nil, 0))
}

func (suite *SchedulerTestSuite) TestExecuteMissingStepFunction() {
	assert := assert.New(suite.T())

	s := suite.newScheduler()
	results := pipeline.NewResultMap()
	err := s.Execute(suite.ctx, pipeline.New("root", pipeline.Step("a", nil)), newRecordingClient(), results, 0)
	assert.True(fperr.IsConfigurationError(err))

	path, failure := results.Failure()
	assert.Equal("root.a", path)
	assert.Equal(err, failure)
	assert.Equal(0, s.Tracker().Stats().Current)
}

func (suite *SchedulerTestSuite) TestExecuteMissingStepFunctionInGroup() {
	assert := assert.New(suite.T())

	root := pipeline.New("root",
		pipeline.Concurrent(
			sleeping("ok", time.Millisecond, "ok"),
			pipeline.Step("broken", nil),
		),
	)

	s := suite.newScheduler(WithConcurrency(2))
	results := pipeline.NewResultMap()
	err := s.Execute(suite.ctx, root, newRecordingClient(), results, 0)
	assert.True(fperr.IsConfigurationError(err))

	path, _ := results.Failure()
	assert.Equal("root.broken", path)
}

func (suite *SchedulerTestSuite) TestExecuteNilElements() {
	assert := assert.New(suite.T())

	s := suite.newScheduler()
	var node *pipeline.Node
	var leaf *pipeline.Leaf
	var group *pipeline.Group

	assert.True(fperr.IsConfigurationError(s.Execute(suite.ctx, pipeline.New("root", node), newRecordingClient(), nil, 0)))
	assert.True(fperr.IsConfigurationError(s.Execute(suite.ctx, pipeline.New("root", leaf), newRecordingClient(), nil, 0)))
	assert.True(fperr.IsConfigurationError(s.Execute(suite.ctx, pipeline.New("root", group), newRecordingClient(), nil, 0)))
	assert.True(fperr.IsConfigurationError(s.Execute(suite.ctx, pipeline.New("root", pipeline.Concurrent(node)), newRecordingClient(), nil, 0)))
}

func TestSchedulerTestSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}
