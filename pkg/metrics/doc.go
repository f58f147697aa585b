/*
Package metrics exposes Prometheus metrics for the rendergrid core.

Collectors are package-level and registered in init. The PerformanceMonitor
wraps core operations with a scoped timer feeding the
rendergrid_operation_duration_seconds histogram:

	monitor := metrics.NewPerformanceMonitor()
	defer monitor.TimeOperation("schedule_jobs")()

Serve the registry over HTTP with Handler:

	http.Handle("/metrics", metrics.Handler())
*/
package metrics
