package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rendergrid/rendergrid/pkg/audit"
	"github.com/rendergrid/rendergrid/pkg/log"
	"github.com/rendergrid/rendergrid/pkg/metrics"
	"github.com/rendergrid/rendergrid/pkg/types"
)

// Config holds scheduling policy knobs.
type Config struct {
	// DeadlineSafetyMargin is added to a job's remaining estimate when
	// deciding whether its deadline is at risk.
	DeadlineSafetyMargin time.Duration

	// DependencyProgressThreshold is the RUNNING-dependency progress (in
	// percent) at which a dependency counts as satisfied.
	DependencyProgressThreshold float64

	// EnablePreemption allows pending jobs to take nodes from running
	// preemptible jobs.
	EnablePreemption bool
}

// DefaultConfig returns the standard scheduling policy.
func DefaultConfig() Config {
	return Config{
		DeadlineSafetyMargin:        2 * time.Hour,
		DependencyProgressThreshold: 50.0,
		EnablePreemption:            true,
	}
}

// JobScheduler orchestrates a scheduling pass: refresh priorities, filter
// eligible jobs, sort, assign via the node matcher, fall back to preemption.
//
// A pass operates over the snapshot of jobs and nodes handed in by the
// caller; it performs no I/O and spawns no goroutines. Passes are serialized
// by an internal mutex because the algorithm reads then writes shared
// node-occupancy state.
type JobScheduler struct {
	mu sync.Mutex

	cfg         Config
	priorities  *PriorityEngine
	matcher     NodeMatcher
	arbiter     *PreemptionArbiter
	policy      *PreemptionPolicy
	auditLogger audit.Logger
	monitor     *metrics.PerformanceMonitor
	logger      zerolog.Logger
	clock       func() time.Time
}

// NewJobScheduler creates a scheduler with injected audit and instrumentation
// collaborators.
func NewJobScheduler(cfg Config, auditLogger audit.Logger, monitor *metrics.PerformanceMonitor) *JobScheduler {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if monitor == nil {
		monitor = metrics.NewPerformanceMonitor()
	}
	return &JobScheduler{
		cfg:         cfg,
		priorities:  NewPriorityEngine(auditLogger, monitor, cfg.DeadlineSafetyMargin),
		arbiter:     NewPreemptionArbiter(cfg.DeadlineSafetyMargin),
		policy:      DefaultPreemptionPolicy(),
		auditLogger: auditLogger,
		monitor:     monitor,
		logger:      log.WithComponent("scheduler"),
		clock:       time.Now,
	}
}

// ScheduleJobs runs one scheduling pass and returns the job->node assignment
// map. Jobs that cannot be placed this cycle are simply absent from the
// result; infeasibility is never an error.
func (s *JobScheduler) ScheduleJobs(jobs []*types.Job, nodes []*types.Node) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.monitor.TimeOperation("schedule_jobs")()

	timer := metrics.NewTimer()
	defer func() { metrics.SchedulingLatency.Observe(timer.Duration().Seconds()) }()

	now := s.clock()

	s.priorities.UpdatePriorities(jobs)

	jobsByID := make(map[string]*types.Job, len(jobs))
	for _, job := range jobs {
		jobsByID[job.ID] = job
	}

	cyclic := findDependencyCycles(jobsByID)
	if len(cyclic) > 0 {
		s.logger.Warn().Int("jobs", len(cyclic)).Msg("dependency cycle detected; members excluded from this pass")
	}

	var eligible []*types.Job
	for _, job := range jobs {
		if job.Status != types.JobStatusPending && job.Status != types.JobStatusQueued {
			continue
		}
		if cyclic[job.ID] {
			continue
		}
		if s.dependenciesSatisfied(job, jobsByID) {
			eligible = append(eligible, job)
		}
	}

	// Sort by effective priority rank desc, then time until deadline asc.
	// SliceStable keeps input order for full ties (deterministic output).
	sort.SliceStable(eligible, func(i, j int) bool {
		ri, rj := s.effectiveRank(eligible[i], jobsByID), s.effectiveRank(eligible[j], jobsByID)
		if ri != rj {
			return ri > rj
		}
		return eligible[i].Deadline.Before(eligible[j].Deadline)
	})

	var available []*types.Node
	var preemptible []*types.Node
	for _, node := range nodes {
		switch {
		case node.Idle():
			available = append(available, node)
		case node.Status == types.NodeStatusOnline && node.CurrentJobID != "" && s.cfg.EnablePreemption:
			if running, ok := jobsByID[node.CurrentJobID]; ok && running.CanBePreempted {
				preemptible = append(preemptible, node)
			}
		}
	}

	assignments := make(map[string]string)

	for _, job := range eligible {
		if node := s.matcher.FindSuitableNode(job, available); node != nil {
			assignments[job.ID] = node.ID
			available = removeNode(available, node.ID)
			metrics.JobsScheduled.Inc()
			s.logger.Info().Str("job_id", job.ID).Str("node_id", node.ID).Msg("job scheduled")
			s.auditLogger.LogEvent(
				audit.EventJobScheduled,
				fmt.Sprintf("Job %s (%s) scheduled to node %s", job.ID, job.Name, node.ID),
				map[string]any{
					"job_id":   job.ID,
					"node_id":  node.ID,
					"priority": string(job.Priority),
					"deadline": job.Deadline,
				},
			)
			continue
		}

		if !s.cfg.EnablePreemption {
			jobLogger := log.WithJobID(job.ID)
			jobLogger.Info().Msg("no feasible node this cycle")
			continue
		}

		preempted := false
		for _, node := range preemptible {
			running, ok := jobsByID[node.CurrentJobID]
			if !ok {
				continue
			}
			if !s.policy.CanPreempt(running, now) {
				continue
			}
			if s.arbiter.ShouldPreempt(running, job) {
				assignments[job.ID] = node.ID
				preemptible = removeNode(preemptible, node.ID)
				s.policy.Record(running.ID, now)
				metrics.JobsPreempted.Inc()
				nodeLogger := log.WithNodeID(node.ID)
				nodeLogger.Info().
					Str("job_id", job.ID).
					Str("preempted_job_id", running.ID).
					Msg("job preempting running job")
				s.auditLogger.LogEvent(
					audit.EventJobPreemption,
					fmt.Sprintf("Job %s (%s) preempting job %s on node %s", job.ID, job.Name, running.ID, node.ID),
					map[string]any{
						"job_id":           job.ID,
						"preempted_job_id": running.ID,
						"node_id":          node.ID,
						"priority":         string(job.Priority),
						"deadline":         job.Deadline,
					},
				)
				preempted = true
				break
			}
		}

		if !preempted {
			jobLogger := log.WithJobID(job.ID)
			jobLogger.Info().Msg("no feasible node this cycle")
		}
	}

	return assignments
}

// CanMeetDeadline reports whether the job could still finish before its
// deadline, margin included, on one of the given nodes.
func (s *JobScheduler) CanMeetDeadline(job *types.Job, nodes []*types.Node) bool {
	now := s.clock()
	if job.EstimatedRemaining()+s.cfg.DeadlineSafetyMargin > job.Deadline.Sub(now) {
		return false
	}
	return s.matcher.FindSuitableNode(job, nodes) != nil
}

// dependenciesSatisfied reports whether every dependency of the job is
// COMPLETED, unknown (treated as satisfied, logged), or RUNNING past the
// configured progress threshold.
func (s *JobScheduler) dependenciesSatisfied(job *types.Job, jobsByID map[string]*types.Job) bool {
	for _, depID := range job.Dependencies {
		dep, ok := jobsByID[depID]
		if !ok {
			s.logger.Warn().
				Str("job_id", job.ID).
				Str("dependency_id", depID).
				Msg("dependency not in job set; treating as satisfied")
			continue
		}
		if dep.Status == types.JobStatusCompleted {
			continue
		}
		if dep.Status == types.JobStatusRunning && dep.Progress >= s.cfg.DependencyProgressThreshold {
			continue
		}
		return false
	}
	return true
}

// effectiveRank returns the job's priority rank for sort order, lifted to the
// highest rank among its direct dependency parents. Inheritance affects
// ordering only; the stored priority never changes here.
func (s *JobScheduler) effectiveRank(job *types.Job, jobsByID map[string]*types.Job) int {
	rank := job.Priority.Rank()
	for _, depID := range job.Dependencies {
		if dep, ok := jobsByID[depID]; ok && dep.Priority.Rank() > rank {
			rank = dep.Priority.Rank()
		}
	}
	return rank
}

func removeNode(nodes []*types.Node, id string) []*types.Node {
	out := nodes[:0]
	for _, n := range nodes {
		if n.ID != id {
			out = append(out, n)
		}
	}
	return out
}
