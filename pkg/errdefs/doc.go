// Package errdefs defines the sentinel errors returned by the scheduling and
// reservation core for expected business failures. Scheduling infeasibility
// (no node found, no preemption candidate) is deliberately not an error and
// has no sentinel here.
package errdefs
