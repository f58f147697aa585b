package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendergrid/rendergrid/pkg/audit"
	"github.com/rendergrid/rendergrid/pkg/metrics"
	"github.com/rendergrid/rendergrid/pkg/types"
)

var schedTestNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestScheduler(recorder *audit.Recorder) *JobScheduler {
	s := NewJobScheduler(DefaultConfig(), recorder, metrics.NewPerformanceMonitor())
	s.clock = func() time.Time { return schedTestNow }
	s.priorities.clock = s.clock
	s.arbiter.clock = s.clock
	return s
}

func pendingJob(id string, priority types.JobPriority) *types.Job {
	return &types.Job{
		ID:                   id,
		Name:                 id,
		Priority:             priority,
		Deadline:             schedTestNow.Add(200 * time.Hour),
		EstimatedDuration:    time.Hour,
		Status:               types.JobStatusPending,
		CanBePreempted:       true,
		CPURequirements:      4,
		MemoryRequirementsGB: 8,
	}
}

func idleNode(id string, efficiency float64) *types.Node {
	return &types.Node{
		ID:     id,
		Status: types.NodeStatusOnline,
		Capabilities: types.NodeCapabilities{
			CPUCores: 16,
			MemoryGB: 64,
			GPUCount: 1,
			GPUModel: "RTX 4090",
		},
		PowerEfficiencyRating: efficiency,
	}
}

func busyNode(id string, jobID string) *types.Node {
	n := idleNode(id, 0.8)
	n.CurrentJobID = jobID
	return n
}

func TestScheduleJobsAssignsByPriorityThenDeadline(t *testing.T) {
	recorder := audit.NewRecorder()
	s := newTestScheduler(recorder)

	low := pendingJob("low", types.PriorityLow)
	high := pendingJob("high", types.PriorityHigh)
	critical := pendingJob("critical", types.PriorityCritical)

	// Only two nodes: the LOW job must lose out.
	nodes := []*types.Node{idleNode("n1", 0.9), idleNode("n2", 0.8)}

	assignments := s.ScheduleJobs([]*types.Job{low, high, critical}, nodes)

	require.Len(t, assignments, 2)
	assert.Equal(t, "n1", assignments["critical"], "highest priority gets the most efficient node")
	assert.Equal(t, "n2", assignments["high"])
	assert.NotContains(t, assignments, "low")

	assert.Len(t, recorder.EventsOfType(audit.EventJobScheduled), 2)
}

func TestScheduleJobsDeadlineBreaksPriorityTies(t *testing.T) {
	s := newTestScheduler(audit.NewRecorder())

	urgent := pendingJob("urgent", types.PriorityHigh)
	urgent.Deadline = schedTestNow.Add(100 * time.Hour)
	relaxed := pendingJob("relaxed", types.PriorityHigh)
	relaxed.Deadline = schedTestNow.Add(150 * time.Hour)

	nodes := []*types.Node{idleNode("n1", 0.9)}

	assignments := s.ScheduleJobs([]*types.Job{relaxed, urgent}, nodes)

	require.Len(t, assignments, 1)
	assert.Equal(t, "n1", assignments["urgent"])
}

func TestScheduleJobsIsDeterministic(t *testing.T) {
	mkInput := func() ([]*types.Job, []*types.Node) {
		jobs := []*types.Job{
			pendingJob("a", types.PriorityMedium),
			pendingJob("b", types.PriorityMedium),
			pendingJob("c", types.PriorityMedium),
			pendingJob("d", types.PriorityMedium),
		}
		nodes := []*types.Node{
			idleNode("n1", 0.5),
			idleNode("n2", 0.5),
			idleNode("n3", 0.5),
		}
		return jobs, nodes
	}

	jobs, nodes := mkInput()
	first := newTestScheduler(audit.NewRecorder()).ScheduleJobs(jobs, nodes)
	for i := 0; i < 5; i++ {
		jobs, nodes := mkInput()
		assert.Equal(t, first, newTestScheduler(audit.NewRecorder()).ScheduleJobs(jobs, nodes))
	}
}

func TestScheduleJobsSkipsIneligibleStatuses(t *testing.T) {
	s := newTestScheduler(audit.NewRecorder())

	running := pendingJob("running", types.PriorityHigh)
	running.Status = types.JobStatusRunning
	completed := pendingJob("completed", types.PriorityHigh)
	completed.Status = types.JobStatusCompleted
	queued := pendingJob("queued", types.PriorityLow)
	queued.Status = types.JobStatusQueued

	assignments := s.ScheduleJobs(
		[]*types.Job{running, completed, queued},
		[]*types.Node{idleNode("n1", 0.9), idleNode("n2", 0.9)},
	)

	require.Len(t, assignments, 1)
	assert.Contains(t, assignments, "queued")
}

func TestScheduleJobsDependencyGating(t *testing.T) {
	tests := []struct {
		name      string
		depStatus types.JobStatus
		progress  float64
		scheduled bool
	}{
		{"completed dependency satisfies", types.JobStatusCompleted, 100, true},
		{"running dependency at threshold satisfies", types.JobStatusRunning, 50, true},
		{"running dependency below threshold blocks", types.JobStatusRunning, 49, false},
		{"pending dependency blocks", types.JobStatusPending, 0, false},
		{"failed dependency blocks", types.JobStatusFailed, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScheduler(audit.NewRecorder())

			dep := pendingJob("dep", types.PriorityMedium)
			dep.Status = tt.depStatus
			dep.Progress = tt.progress

			child := pendingJob("child", types.PriorityMedium)
			child.Dependencies = []string{"dep"}

			assignments := s.ScheduleJobs(
				[]*types.Job{dep, child},
				[]*types.Node{idleNode("n1", 0.9), idleNode("n2", 0.9)},
			)
			assert.Equal(t, tt.scheduled, assignments["child"] != "")
		})
	}
}

func TestScheduleJobsUnknownDependencyIsSatisfied(t *testing.T) {
	s := newTestScheduler(audit.NewRecorder())

	job := pendingJob("job", types.PriorityMedium)
	job.Dependencies = []string{"not-in-this-batch"}

	assignments := s.ScheduleJobs([]*types.Job{job}, []*types.Node{idleNode("n1", 0.9)})
	assert.Equal(t, "n1", assignments["job"])
}

func TestScheduleJobsExcludesCycleMembers(t *testing.T) {
	s := newTestScheduler(audit.NewRecorder())

	a := pendingJob("a", types.PriorityHigh)
	a.Dependencies = []string{"b"}
	b := pendingJob("b", types.PriorityHigh)
	b.Dependencies = []string{"a"}
	free := pendingJob("free", types.PriorityLow)

	assignments := s.ScheduleJobs(
		[]*types.Job{a, b, free},
		[]*types.Node{idleNode("n1", 0.9), idleNode("n2", 0.9), idleNode("n3", 0.9)},
	)

	require.Len(t, assignments, 1)
	assert.Contains(t, assignments, "free")
}

func TestScheduleJobsPreemptsWhenNoIdleNode(t *testing.T) {
	recorder := audit.NewRecorder()
	s := newTestScheduler(recorder)

	victim := pendingJob("victim", types.PriorityLow)
	victim.Status = types.JobStatusRunning

	// Critical job with no idle node anywhere.
	urgent := pendingJob("urgent", types.PriorityCritical)
	urgent.Deadline = schedTestNow.Add(2 * time.Hour)

	assignments := s.ScheduleJobs(
		[]*types.Job{victim, urgent},
		[]*types.Node{busyNode("n1", "victim")},
	)

	require.Len(t, assignments, 1)
	assert.Equal(t, "n1", assignments["urgent"])

	events := recorder.EventsOfType(audit.EventJobPreemption)
	require.Len(t, events, 1)
	assert.Equal(t, "victim", events[0].Metadata["preempted_job_id"])
}

func TestScheduleJobsHonorsPreemptionToggle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnablePreemption = false
	s := NewJobScheduler(cfg, audit.NewRecorder(), metrics.NewPerformanceMonitor())
	s.clock = func() time.Time { return schedTestNow }
	s.priorities.clock = s.clock
	s.arbiter.clock = s.clock

	victim := pendingJob("victim", types.PriorityLow)
	victim.Status = types.JobStatusRunning
	urgent := pendingJob("urgent", types.PriorityCritical)

	assignments := s.ScheduleJobs(
		[]*types.Job{victim, urgent},
		[]*types.Node{busyNode("n1", "victim")},
	)
	assert.Empty(t, assignments)
}

func TestScheduleJobsRespectsPreemptionBudget(t *testing.T) {
	s := newTestScheduler(audit.NewRecorder())

	victim := pendingJob("victim", types.PriorityHigh)
	victim.Status = types.JobStatusRunning

	// HIGH jobs may be preempted once per day; exhaust the budget.
	s.policy.Record("victim", schedTestNow.Add(-25*time.Hour))
	s.policy.Record("victim", schedTestNow.Add(-7*time.Hour))

	urgent := pendingJob("urgent", types.PriorityCritical)
	assignments := s.ScheduleJobs(
		[]*types.Job{victim, urgent},
		[]*types.Node{busyNode("n1", "victim")},
	)
	assert.Empty(t, assignments)
}

func TestScheduleJobsPriorityInheritanceOrdersParents(t *testing.T) {
	s := newTestScheduler(audit.NewRecorder())

	// child depends on a CRITICAL parent, so it sorts ahead of the HIGH job
	// even though its own stored priority is LOW.
	parent := pendingJob("parent", types.PriorityCritical)
	parent.Status = types.JobStatusCompleted
	child := pendingJob("child", types.PriorityLow)
	child.Dependencies = []string{"parent"}
	other := pendingJob("other", types.PriorityHigh)

	assignments := s.ScheduleJobs(
		[]*types.Job{other, child, parent},
		[]*types.Node{idleNode("n1", 0.9)},
	)

	require.Len(t, assignments, 1)
	assert.Equal(t, "n1", assignments["child"])
	assert.Equal(t, types.PriorityLow, child.Priority, "stored priority must not change")
}

func TestCanMeetDeadline(t *testing.T) {
	s := newTestScheduler(audit.NewRecorder())
	nodes := []*types.Node{idleNode("n1", 0.9)}

	feasible := pendingJob("feasible", types.PriorityMedium)
	feasible.Deadline = schedTestNow.Add(10 * time.Hour)
	feasible.EstimatedDuration = 4 * time.Hour
	assert.True(t, s.CanMeetDeadline(feasible, nodes))

	late := pendingJob("late", types.PriorityMedium)
	late.Deadline = schedTestNow.Add(3 * time.Hour)
	late.EstimatedDuration = 4 * time.Hour
	assert.False(t, s.CanMeetDeadline(late, nodes))

	// Feasible in time but no node can host it.
	starved := pendingJob("starved", types.PriorityMedium)
	starved.Deadline = schedTestNow.Add(10 * time.Hour)
	starved.EstimatedDuration = time.Hour
	starved.MemoryRequirementsGB = 1024
	assert.False(t, s.CanMeetDeadline(starved, nodes))
}
