package types

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turbot/flowci/internal/parse"
	"github.com/turbot/flowci/internal/pipeline"
	"github.com/turbot/flowci/internal/primitive"
	"github.com/turbot/flowci/internal/sanitize"
	"github.com/turbot/flowci/internal/scheduler"
)

func testRunOutput() *scheduler.RunOutput {
	results := pipeline.NewResultMap()
	results.Set("build.tests", pipeline.Failure(&primitive.Artifact{Image: "golang:1.21", ExitCode: 1}))
	results.Set("build", pipeline.GroupResult([]*pipeline.StepResult{
		pipeline.Success(nil),
		pipeline.Failure(nil),
	}))

	start := time.Date(2023, 10, 1, 12, 0, 0, 0, time.UTC)
	root, _ := results.Get("build")
	return &scheduler.RunOutput{
		ID:        "run_abc",
		Root:      "build",
		Result:    root,
		Results:   results,
		StartTime: start,
		EndTime:   start.Add(1500 * time.Millisecond),
		Stats: scheduler.Stats{
			MaxConcurrency: 2,
			MaxPerLevel:    map[int]int{0: 1, 1: 2},
		},
	}
}

func TestNewPrintableRun(t *testing.T) {
	assert := assert.New(t)

	p := NewPrintableRun(testRunOutput(), nil)
	assert.Equal(RunStatusFailure, p.Summary.Status)
	assert.Equal("1.5s", p.Summary.Duration)
	assert.Equal([]ResultSummary{
		{Path: "build.tests", Status: "failure", Summary: "golang:1.21 exit 1"},
		{Path: "build", Status: "failure", Summary: "group of 2, 1 failed"},
	}, p.Summary.Results)

	p = NewPrintableRun(testRunOutput(), errors.New("boom"))
	assert.Equal(RunStatusError, p.Summary.Status)
	assert.Equal("boom", p.Summary.Error)
}

func TestSummariseData(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("", SummariseData(nil))
	assert.Equal("alpine exit 0 committed 0123456789ab", SummariseData(&primitive.Artifact{Image: "alpine", ImageID: "sha256:0123456789abcdef"}))
	assert.Equal("42", SummariseData(42))
}

func TestPrintableRunSanitizes(t *testing.T) {
	s := sanitize.NewSanitizer(sanitize.SanitizerOptions{})
	s.AddSecretValue("hunter2")

	output := testRunOutput()
	p := NewPrintableRun(output, errors.New("login failed with hunter2"))

	items := p.GetItems(s).(RunSummary)
	assert.NotContains(t, items.Error, "hunter2")
	assert.Contains(t, p.Summary.Error, "hunter2")

	shown := p.Show(RenderOptions{Sanitizer: s})
	assert.NotContains(t, shown, "hunter2")
	assert.Contains(t, shown, "run_abc")
	assert.Contains(t, shown, "depth 1: 2")
}

func TestPrintableRunTable(t *testing.T) {
	table, err := NewPrintableRun(testRunOutput(), nil).GetTable()
	require.NoError(t, err)
	assert.Len(t, table.Columns, 3)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []interface{}{"build.tests", "failure", "golang:1.21 exit 1"}, table.Rows[0].Cells)
}

func TestPipelineTree(t *testing.T) {
	src := `
pipeline "build" {
  description = "build it"
  step "container" "checkout" {
    image = "alpine"
  }
  group {
    step "container" "lint" {
      image = "alpine"
    }
    pipeline "tests" {
      step "container" "unit" {
        image = "alpine"
      }
    }
  }
}
`
	def, err := parse.LoadBytes(context.Background(), "build.hcl", []byte(src), nil)
	require.NoError(t, err)

	expected := "  - checkout\n" +
		"  group\n" +
		"    - lint\n" +
		"    pipeline tests\n" +
		"      - unit\n"
	assert.Equal(t, expected, PipelineTree(def.Pipelines[0].Root))

	p := NewPrintableDefinition(def, true)
	require.Len(t, p.Items, 1)
	assert.Equal(t, 3, p.Items[0].Steps)

	shown := p.Show(RenderOptions{Sanitizer: sanitize.Instance()})
	assert.Contains(t, shown, "build it")
	assert.Contains(t, shown, "pipeline tests")
}
