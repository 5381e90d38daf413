package metrics

import (
	"sort"
	"sync"
	"time"
)

// StepRun records the wall clock time of a single leaf step.
type StepRun struct {
	Path           string        `json:"path"`
	Depth          int           `json:"depth"`
	StartTimestamp time.Time     `json:"start_timestamp"`
	EndTimestamp   time.Time     `json:"end_timestamp"`
	Duration       time.Duration `json:"duration"`
}

type Recorder struct {
	running sync.Map

	lock     sync.Mutex
	finished []StepRun
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (m *Recorder) StartStep(path string, depth int) {
	stepRun := &StepRun{
		Path:           path,
		Depth:          depth,
		StartTimestamp: time.Now(),
	}

	m.running.Store(path, stepRun)
}

func (m *Recorder) RunningSteps() []StepRun {
	steps := []StepRun{}
	m.running.Range(func(key, value interface{}) bool {
		steps = append(steps, *value.(*StepRun))
		return true
	})
	return steps
}

func (m *Recorder) EndStep(path string) {
	v, ok := m.running.LoadAndDelete(path)
	if !ok {
		return
	}

	stepRun := v.(*StepRun)
	stepRun.EndTimestamp = time.Now()
	stepRun.Duration = stepRun.EndTimestamp.Sub(stepRun.StartTimestamp)

	m.lock.Lock()
	m.finished = append(m.finished, *stepRun)
	m.lock.Unlock()
}

// FinishedSteps returns the completed steps ordered by start time.
func (m *Recorder) FinishedSteps() []StepRun {
	m.lock.Lock()
	steps := make([]StepRun, len(m.finished))
	copy(steps, m.finished)
	m.lock.Unlock()

	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].StartTimestamp.Before(steps[j].StartTimestamp)
	})
	return steps
}
