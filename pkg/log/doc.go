// Package log provides the global zerolog bootstrap for rendergrid binaries
// and child-logger helpers carrying the standard correlation fields
// (component, job_id, node_id, reservation_id). Library packages take a
// zerolog.Logger from here at construction time rather than reaching for the
// global directly.
package log
