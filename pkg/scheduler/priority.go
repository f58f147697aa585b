package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rendergrid/rendergrid/pkg/audit"
	"github.com/rendergrid/rendergrid/pkg/log"
	"github.com/rendergrid/rendergrid/pkg/metrics"
	"github.com/rendergrid/rendergrid/pkg/types"
)

// PriorityEngine recomputes job priority tiers from deadline urgency and
// remaining estimated work. It only ever escalates; demotion is an explicit
// caller override between passes.
type PriorityEngine struct {
	auditLogger audit.Logger
	monitor     *metrics.PerformanceMonitor
	margin      time.Duration
	logger      zerolog.Logger
	clock       func() time.Time
}

// NewPriorityEngine creates a priority engine with the given deadline safety
// margin.
func NewPriorityEngine(auditLogger audit.Logger, monitor *metrics.PerformanceMonitor, margin time.Duration) *PriorityEngine {
	return &PriorityEngine{
		auditLogger: auditLogger,
		monitor:     monitor,
		margin:      margin,
		logger:      log.WithComponent("priority-engine"),
		clock:       time.Now,
	}
}

// UpdatePriorities escalates the priority of every non-terminal job whose
// deadline is at risk, one tier per pass:
//
//   - remaining estimate + margin >= time until deadline: escalate one tier
//   - under 24h to deadline: MEDIUM -> HIGH, LOW -> MEDIUM
//   - under 48h to deadline: LOW -> MEDIUM
//
// Terminal jobs pass through unchanged. Jobs are mutated in place and the
// same slice is returned.
func (e *PriorityEngine) UpdatePriorities(jobs []*types.Job) []*types.Job {
	defer e.monitor.TimeOperation("update_priorities")()

	now := e.clock()
	for _, job := range jobs {
		if job.Status.Terminal() {
			continue
		}

		original := job.Priority
		untilDeadline := job.Deadline.Sub(now)
		remaining := job.EstimatedRemaining()

		switch {
		case remaining+e.margin >= untilDeadline:
			// Job will not finish before its deadline at the current tier.
			job.Priority = job.Priority.Escalate()
		case untilDeadline < 24*time.Hour:
			if job.Priority == types.PriorityMedium {
				job.Priority = types.PriorityHigh
			} else if job.Priority == types.PriorityLow {
				job.Priority = types.PriorityMedium
			}
		case untilDeadline < 48*time.Hour:
			if job.Priority == types.PriorityLow {
				job.Priority = types.PriorityMedium
			}
		}

		if job.Priority != original {
			metrics.PriorityEscalations.Inc()
			e.logger.Info().
				Str("job_id", job.ID).
				Str("from", string(original)).
				Str("to", string(job.Priority)).
				Msg("escalated job priority")
			e.auditLogger.LogEvent(
				audit.EventPriorityUpdated,
				fmt.Sprintf("Job %s priority changed from %s to %s", job.ID, original, job.Priority),
				map[string]any{
					"job_id":                job.ID,
					"original_priority":     string(original),
					"new_priority":          string(job.Priority),
					"time_until_deadline":   untilDeadline.Hours(),
					"estimated_time_needed": remaining.Hours(),
				},
			)
		}
	}

	return jobs
}
