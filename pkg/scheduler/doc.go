/*
Package scheduler implements deadline-driven job scheduling for a render-farm
class cluster.

A scheduling pass is a pure computation over a caller-provided snapshot:

 1. PriorityEngine escalates at-risk jobs one tier (never demotes).
 2. Eligibility filter: PENDING/QUEUED status, dependencies satisfied,
    not on a dependency cycle.
 3. Stable sort by effective priority rank, then deadline urgency.
 4. Node partition: idle online nodes vs. nodes running preemptible jobs.
 5. NodeMatcher places each job on the most power-efficient feasible node;
    when nothing is free, PreemptionArbiter may take a node from a running
    lower-priority job, subject to the per-job preemption budget.
 6. The resulting job->node map is returned for the caller to commit.

Jobs that cannot be placed are simply absent from the result and retried on
the next pass; infeasibility is never an error.

Every priority change, assignment, and preemption is reported to the injected
audit.Logger, and pass latency is tracked through metrics.PerformanceMonitor.

	auditLog := audit.NewZerologSink(log.WithComponent("audit"))
	sched := scheduler.NewJobScheduler(scheduler.DefaultConfig(), auditLog, metrics.NewPerformanceMonitor())
	assignments := sched.ScheduleJobs(jobs, nodes)

The scheduler holds no cluster state between passes; periodic invocation and
committing assignments against the node inventory are the caller's concern.
*/
package scheduler
