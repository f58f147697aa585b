/*
Package audit provides the audit trail for the rendergrid core.

Every priority change, job assignment, preemption, and conflict resolution is
reported through the Logger interface. The package ships three sinks:

  - ZerologSink: structured log output for operators
  - Journal: append-only BoltDB store that survives restarts
  - Recorder: in-memory capture for tests and dashboards

Sinks compose with Fanout when more than one destination is needed:

	journal, _ := audit.OpenJournal("/var/lib/rendergrid/audit.db")
	logger := audit.Fanout{
		audit.NewZerologSink(log.WithComponent("audit")),
		journal,
	}
*/
package audit
