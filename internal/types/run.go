package types

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/logrusorgru/aurora"

	"github.com/turbot/flowci/internal/metrics"
	"github.com/turbot/flowci/internal/pipeline"
	"github.com/turbot/flowci/internal/primitive"
	"github.com/turbot/flowci/internal/sanitize"
	"github.com/turbot/flowci/internal/scheduler"
)

// RunSummary is the printed form of a finished run.
type RunSummary struct {
	ID         string            `json:"id"`
	Pipeline   string            `json:"pipeline"`
	Status     string            `json:"status"`
	FailedPath string            `json:"failed_path,omitempty"`
	Error      string            `json:"error,omitempty"`
	StartTime  time.Time         `json:"start_time"`
	EndTime    time.Time         `json:"end_time"`
	Duration   string            `json:"duration"`
	Results    []ResultSummary   `json:"results"`
	Steps      []metrics.StepRun `json:"steps"`
	Stats      scheduler.Stats   `json:"stats"`
}

type ResultSummary struct {
	Path    string `json:"path"`
	Status  string `json:"status"`
	Summary string `json:"summary"`
}

type PrintableRun struct {
	Summary RunSummary
}

const (
	RunStatusSuccess = "success"
	RunStatusFailure = "failure"
	RunStatusError   = "error"
)

// NewPrintableRun summarises output. runErr is the error returned by the
// scheduler, if any.
func NewPrintableRun(output *scheduler.RunOutput, runErr error) PrintableRun {
	s := RunSummary{
		ID:         output.ID,
		Pipeline:   output.Root,
		FailedPath: output.FailedPath,
		StartTime:  output.StartTime,
		EndTime:    output.EndTime,
		Duration:   output.EndTime.Sub(output.StartTime).Round(time.Millisecond).String(),
		Steps:      output.Timings,
		Stats:      output.Stats,
	}

	switch {
	case runErr != nil:
		s.Status = RunStatusError
		s.Error = runErr.Error()
	case output.Result.Failed():
		s.Status = RunStatusFailure
	default:
		s.Status = RunStatusSuccess
	}

	if output.Results != nil {
		for _, key := range output.Results.Keys() {
			r, _ := output.Results.Get(key)
			s.Results = append(s.Results, ResultSummary{
				Path:    key,
				Status:  string(r.Status),
				Summary: SummariseData(r.Data),
			})
		}
	}
	return PrintableRun{Summary: s}
}

// SummariseData renders the data of a step result on one line.
func SummariseData(data any) string {
	switch d := data.(type) {
	case nil:
		return ""
	case *primitive.Artifact:
		summary := fmt.Sprintf("%s exit %d", d.Image, d.ExitCode)
		if d.ImageID != "" {
			summary += " committed " + shortId(d.ImageID)
		}
		return summary
	case []*pipeline.StepResult:
		failed := 0
		for _, m := range d {
			if m.Failed() {
				failed++
			}
		}
		return fmt.Sprintf("group of %d, %d failed", len(d), failed)
	case fmt.Stringer:
		return d.String()
	}
	return fmt.Sprintf("%v", data)
}

func shortId(id string) string {
	id = strings.TrimPrefix(id, "sha256:")
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func (p PrintableRun) GetItems(sanitizer *sanitize.Sanitizer) any {
	s := p.Summary
	s.Error = sanitizer.SanitizeString(s.Error)
	s.Results = make([]ResultSummary, len(p.Summary.Results))
	for i, r := range p.Summary.Results {
		r.Summary = sanitizer.SanitizeString(r.Summary)
		s.Results[i] = r
	}
	return s
}

func (p PrintableRun) GetTable() (Table, error) {
	t := NewTable(
		Column("PATH", "string", "The scope path of the pipeline"),
		Column("STATUS", "string", "The status of the latest result"),
		Column("RESULT", "string", "Summary of the result data"),
	)
	for _, r := range p.Summary.Results {
		t.AddRow(r.Path, r.Status, r.Summary)
	}
	return t, nil
}

func (p PrintableRun) Show(opts RenderOptions) string {
	au := aurora.NewAurora(opts.ColorEnabled)
	s := p.Summary
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%s %s %s\n", au.Bold("Run"), s.ID, au.Faint("("+s.Duration+")")))
	b.WriteString(fmt.Sprintf("%s %s\n", au.Bold("Pipeline"), s.Pipeline))
	b.WriteString(fmt.Sprintf("%s %s\n", au.Bold("Status"), statusColor(au, s.Status)))
	if s.FailedPath != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", au.Bold("Failed at"), au.Red(s.FailedPath)))
	}
	if s.Error != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", au.Bold("Error"), opts.Sanitizer.SanitizeString(s.Error)))
	}

	if len(s.Results) > 0 {
		b.WriteString("\n" + au.Blue("Results").Bold().String() + "\n")
		for _, r := range s.Results {
			b.WriteString(fmt.Sprintf("  %s %s %s\n", statusColor(au, r.Status), r.Path, au.Faint(opts.Sanitizer.SanitizeString(r.Summary))))
		}
	}

	if len(s.Steps) > 0 {
		b.WriteString("\n" + au.Blue("Steps").Bold().String() + "\n")
		for _, step := range s.Steps {
			b.WriteString(fmt.Sprintf("  %s%s %s\n", strings.Repeat("  ", step.Depth), step.Path, au.Faint(step.Duration.Round(time.Millisecond).String())))
		}
	}

	b.WriteString("\n" + au.Blue("Concurrency").Bold().String() + "\n")
	b.WriteString(fmt.Sprintf("  max %d\n", s.Stats.MaxConcurrency))
	levels := make([]int, 0, len(s.Stats.MaxPerLevel))
	for level := range s.Stats.MaxPerLevel {
		levels = append(levels, level)
	}
	sort.Ints(levels)
	for _, level := range levels {
		b.WriteString(fmt.Sprintf("  depth %d: %d\n", level, s.Stats.MaxPerLevel[level]))
	}
	return b.String()
}

func statusColor(au aurora.Aurora, status string) aurora.Value {
	switch status {
	case RunStatusSuccess:
		return au.Green(status)
	case RunStatusFailure, RunStatusError:
		return au.Red(status)
	}
	return au.Yellow(status)
}
