/*
Package types defines the core data model shared across the rendergrid
scheduler and reservation engine: jobs, compute nodes, reservations,
maintenance windows, and conflict records.

All status and priority enums are string-typed with explicit const blocks so
they serialize cleanly, and carry Rank/Terminal helpers so comparisons are
total-order functions rather than string dispatch.

TimeRange implements the interval algebra used for conflict detection:
Overlaps is half-open ([Start, End)) so back-to-back reservations never
collide, while Contains is bounds-inclusive for wall-clock activation checks.
*/
package types
