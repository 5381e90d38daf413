package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/turbot/pipe-fittings/perr"
	"golang.org/x/sync/semaphore"
)

// Stats is a snapshot of the tracker counters.
type Stats struct {
	Current        int         `json:"current"`
	MaxConcurrency int         `json:"max_concurrency"`
	MaxPerLevel    map[int]int `json:"max_per_level"`
}

// Tracker bounds and counts running leaf steps per concurrency depth. A slot
// is taken from the depth's semaphore before the counters move, so the
// tracked count is always the real number of running steps.
//
// A Tracker belongs to one run; counters are never reset.
type Tracker struct {
	concurrency int64

	slotsLock sync.Mutex
	slots     map[int]*semaphore.Weighted

	mu             sync.Mutex
	current        int
	perLevel       map[int]int
	maxPerLevel    map[int]int
	maxConcurrency int
}

// NewTracker creates a tracker admitting at most concurrency steps per depth.
// Zero or a negative value means no limit.
func NewTracker(concurrency int) *Tracker {
	return &Tracker{
		concurrency: int64(concurrency),
		slots:       map[int]*semaphore.Weighted{},
		perLevel:    map[int]int{},
		maxPerLevel: map[int]int{},
	}
}

func (t *Tracker) slot(depth int) *semaphore.Weighted {
	if t.concurrency <= 0 {
		return nil
	}

	t.slotsLock.Lock()
	defer t.slotsLock.Unlock()

	sem, ok := t.slots[depth]
	if !ok {
		sem = semaphore.NewWeighted(t.concurrency)
		t.slots[depth] = sem
	}
	return sem
}

// Acquire blocks until a slot at depth is free, then counts the step as
// running. It only fails when ctx is done first.
func (t *Tracker) Acquire(ctx context.Context, depth int) error {
	if sem := t.slot(depth); sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.current++
	t.perLevel[depth]++

	if t.perLevel[depth] > t.maxPerLevel[depth] {
		t.maxPerLevel[depth] = t.perLevel[depth]
	}
	if t.current > t.maxConcurrency {
		t.maxConcurrency = t.current
	}
	return nil
}

// Release gives back a slot taken by Acquire. Releasing more than was
// acquired is a bug in the caller and panics.
func (t *Tracker) Release(depth int) {
	t.mu.Lock()
	if t.current <= 0 || t.perLevel[depth] <= 0 {
		t.mu.Unlock()
		panic(perr.InternalWithMessage(fmt.Sprintf("concurrency tracker released at depth %d without a matching acquire", depth)))
	}
	t.current--
	t.perLevel[depth]--
	t.mu.Unlock()

	if sem := t.slot(depth); sem != nil {
		sem.Release(1)
	}
}

func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	maxPerLevel := make(map[int]int, len(t.maxPerLevel))
	for k, v := range t.maxPerLevel {
		maxPerLevel[k] = v
	}

	return Stats{
		Current:        t.current,
		MaxConcurrency: t.maxConcurrency,
		MaxPerLevel:    maxPerLevel,
	}
}
