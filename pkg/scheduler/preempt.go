package scheduler

import (
	"sync"
	"time"

	"github.com/rendergrid/rendergrid/pkg/types"
)

// PreemptionArbiter decides whether a running job should yield its node to a
// pending job.
type PreemptionArbiter struct {
	margin time.Duration
	clock  func() time.Time
}

// NewPreemptionArbiter creates an arbiter using the given deadline safety
// margin.
func NewPreemptionArbiter(margin time.Duration) *PreemptionArbiter {
	return &PreemptionArbiter{margin: margin, clock: time.Now}
}

// ShouldPreempt reports whether running should yield to pending.
//
// A job that disallows preemption is never preempted. A CRITICAL pending job
// unconditionally preempts any non-CRITICAL running job. Otherwise pending
// wins only when it outranks running and would miss its deadline even with
// the safety margin.
func (a *PreemptionArbiter) ShouldPreempt(running, pending *types.Job) bool {
	if !running.CanBePreempted {
		return false
	}

	if pending.Priority == types.PriorityCritical && running.Priority != types.PriorityCritical {
		return true
	}

	now := a.clock()
	pendingWillMiss := pending.EstimatedRemaining()+a.margin > pending.Deadline.Sub(now)

	return pending.Priority.Rank() > running.Priority.Rank() && pendingWillMiss
}

// PreemptionPolicy bounds how often any single job may be preempted: a
// per-priority daily cap plus a protection window after each preemption.
type PreemptionPolicy struct {
	maxPerDay  map[types.JobPriority]int
	protection time.Duration

	mu      sync.Mutex
	history map[string][]time.Time
}

// DefaultPreemptionPolicy returns the standard budget: CRITICAL jobs are
// never preempted, lower tiers take progressively more, and every preempted
// job is protected for six hours afterwards.
func DefaultPreemptionPolicy() *PreemptionPolicy {
	return &PreemptionPolicy{
		maxPerDay: map[types.JobPriority]int{
			types.PriorityCritical: 0,
			types.PriorityHigh:     1,
			types.PriorityMedium:   2,
			types.PriorityLow:      4,
		},
		protection: 6 * time.Hour,
		history:    make(map[string][]time.Time),
	}
}

// CanPreempt reports whether the job still has preemption budget at now.
func (p *PreemptionPolicy) CanPreempt(job *types.Job, now time.Time) bool {
	if job.Priority == types.PriorityCritical {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	events := p.history[job.ID]
	if len(events) == 0 {
		return true
	}

	last := events[len(events)-1]
	if now.Sub(last) < p.protection {
		return false
	}

	year, month, day := now.Date()
	today := 0
	for _, ts := range events {
		y, m, d := ts.Date()
		if y == year && m == month && d == day {
			today++
		}
	}
	return today < p.maxPerDay[job.Priority]
}

// Record notes that the job was preempted at now.
func (p *PreemptionPolicy) Record(jobID string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history[jobID] = append(p.history[jobID], now)
}
