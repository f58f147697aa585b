/*
Package reservation manages time-bounded claims on cluster nodes and the
maintenance windows that compete with them.

A Manager tracks reservations through their lifecycle (REQUESTED, CONFIRMED,
ACTIVE, then COMPLETED, CANCELLED, or PREEMPTED), detects conflicts whenever
node claims overlap in both time and node set, and resolves them with a
pluggable strategy: first come first served, priority based, or preemption.
Critical maintenance always wins; when ordinary resolution cannot clear a
critical window's conflicts, the conflicting reservations are force-cancelled.

Resolved and unresolved conflicts are both retained permanently as the
contention audit trail, queryable via Conflicts.
*/
package reservation
