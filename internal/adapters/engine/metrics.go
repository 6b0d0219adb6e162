package engine

import (
	"sync"
	"time"
)

// Stats is a point-in-time view of the engine counters.
type Stats struct {
	WorkflowsStarted   int64
	WorkflowsCompleted int64
	WorkflowsFailed    int64
	WorkflowsCancelled int64
	ActivitiesExecuted int64
	DepthExceeded      int64
	LongestChain       int
	AverageCallTime    time.Duration
}

type StatsTracker struct {
	stats     Stats
	callTimes []time.Duration
	mu        sync.RWMutex
}

func NewStatsTracker() *StatsTracker {
	return &StatsTracker{
		callTimes: make([]time.Duration, 0, 1000),
	}
}

func (st *StatsTracker) RecordStarted() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.stats.WorkflowsStarted++
}

func (st *StatsTracker) RecordCompleted() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.stats.WorkflowsCompleted++
}

func (st *StatsTracker) RecordFailed() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.stats.WorkflowsFailed++
}

func (st *StatsTracker) RecordCancelled() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.stats.WorkflowsCancelled++
}

func (st *StatsTracker) RecordActivity() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.stats.ActivitiesExecuted++
}

func (st *StatsTracker) RecordDepthExceeded() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.stats.DepthExceeded++
}

// RecordChain notes how many activities one Start or Resume call ran and how
// long it took. Only the last 1000 call times are kept.
func (st *StatsTracker) RecordChain(steps int, duration time.Duration) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if steps > st.stats.LongestChain {
		st.stats.LongestChain = steps
	}
	st.callTimes = append(st.callTimes, duration)
	if len(st.callTimes) > 1000 {
		st.callTimes = st.callTimes[1:]
	}
}

func (st *StatsTracker) Snapshot() Stats {
	st.mu.RLock()
	defer st.mu.RUnlock()

	snapshot := st.stats
	if len(st.callTimes) > 0 {
		var total time.Duration
		for _, d := range st.callTimes {
			total += d
		}
		snapshot.AverageCallTime = total / time.Duration(len(st.callTimes))
	}
	return snapshot
}
