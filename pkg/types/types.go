package types

import (
	"time"
)

// JobPriority is the scheduling priority tier of a job. Tiers are totally
// ordered via Rank; the priority engine only ever escalates.
type JobPriority string

const (
	PriorityLow      JobPriority = "low"
	PriorityMedium   JobPriority = "medium"
	PriorityHigh     JobPriority = "high"
	PriorityCritical JobPriority = "critical"
)

// Rank returns the ordinal value of a priority for comparison.
// Higher is more important. Unknown priorities rank below LOW.
func (p JobPriority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Escalate returns the next tier up. CRITICAL stays CRITICAL.
func (p JobPriority) Escalate() JobPriority {
	switch p {
	case PriorityLow:
		return PriorityMedium
	case PriorityMedium:
		return PriorityHigh
	case PriorityHigh:
		return PriorityCritical
	}
	return p
}

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is final. Terminal jobs are never
// rescheduled or re-prioritized.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is a render or simulation job submitted to the cluster.
type Job struct {
	ID                string
	Name              string
	Priority          JobPriority
	Deadline          time.Time
	EstimatedDuration time.Duration
	Progress          float64 // 0..100
	Status            JobStatus
	Dependencies      []string
	CanBePreempted    bool

	// Resource requirements
	RequiresGPU          bool
	CPURequirements      int
	MemoryRequirementsGB float64

	SubmittedAt time.Time
}

// EstimatedRemaining returns the estimated work left, scaled by progress.
func (j *Job) EstimatedRemaining() time.Duration {
	remaining := float64(j.EstimatedDuration) * (1 - j.Progress/100)
	if remaining < 0 {
		return 0
	}
	return time.Duration(remaining)
}

// NodeStatus represents the availability of a compute node.
type NodeStatus string

const (
	NodeStatusOnline      NodeStatus = "online"
	NodeStatusOffline     NodeStatus = "offline"
	NodeStatusMaintenance NodeStatus = "maintenance"
)

// NodeCapabilities describes the hardware of a compute node.
type NodeCapabilities struct {
	CPUCores int
	MemoryGB float64
	GPUCount int
	GPUModel string
}

// Node is a compute node in the cluster. Nodes are owned by the external
// inventory; the scheduler only reads them and reports assignments.
// CurrentJobID is a back-reference maintained by the scheduler's commit step,
// empty when the node is idle.
type Node struct {
	ID                    string
	Status                NodeStatus
	CurrentJobID          string
	Capabilities          NodeCapabilities
	PowerEfficiencyRating float64
}

// Idle reports whether the node is online with no job assigned.
func (n *Node) Idle() bool {
	return n.Status == NodeStatusOnline && n.CurrentJobID == ""
}

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether Start is strictly before End.
func (r TimeRange) Valid() bool {
	return r.Start.Before(r.End)
}

// Overlaps reports whether two half-open intervals intersect.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// Contains reports whether t falls within the range, bounds inclusive.
// Activation checks use the inclusive form so a reservation can still be
// activated at the exact instant its window opens or closes.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Duration returns End - Start.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// ReservationType describes how a reservation claims node resources.
type ReservationType string

const (
	ReservationExclusive ReservationType = "exclusive"
	ReservationShared    ReservationType = "shared"
	ReservationPartial   ReservationType = "partial"
	ReservationDynamic   ReservationType = "dynamic"
)

// ReservationStatus is the lifecycle state of a reservation.
//
// Transitions: REQUESTED -> CONFIRMED -> ACTIVE -> COMPLETED, with CANCELLED
// reachable from any non-terminal state and PREEMPTED only from ACTIVE.
type ReservationStatus string

const (
	ReservationRequested ReservationStatus = "requested"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationActive    ReservationStatus = "active"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationPreempted ReservationStatus = "preempted"
)

// Terminal reports whether the reservation can no longer change state.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationCompleted || s == ReservationCancelled || s == ReservationPreempted
}

// ResourceType identifies a class of node resource.
type ResourceType string

const (
	ResourceCPU     ResourceType = "cpu"
	ResourceMemory  ResourceType = "memory"
	ResourceGPU     ResourceType = "gpu"
	ResourceStorage ResourceType = "storage"
	ResourceNetwork ResourceType = "network"
)

// ResourceAllocation claims resources on a single node for the owning
// reservation's time range.
type ResourceAllocation struct {
	NodeID    string
	Resources map[ResourceType]float64
	Exclusive bool
	TimeRange
}

// Reservation is a time-bounded claim on one or more nodes' resources.
type Reservation struct {
	ID           string
	SimulationID string
	TimeRange
	Type        ReservationType
	Status      ReservationStatus
	Priority    JobPriority
	Preemptible bool
	Allocations []ResourceAllocation

	RequestTime        time.Time
	LastModified       time.Time
	CancellationReason string
}

// AllocatedNodes returns the IDs of all nodes this reservation claims.
func (r *Reservation) AllocatedNodes() []string {
	nodes := make([]string, 0, len(r.Allocations))
	for _, alloc := range r.Allocations {
		nodes = append(nodes, alloc.NodeID)
	}
	return nodes
}

// HasExclusiveAllocation reports whether any allocation claims a node
// exclusively.
func (r *Reservation) HasExclusiveAllocation() bool {
	for _, alloc := range r.Allocations {
		if alloc.Exclusive {
			return true
		}
	}
	return false
}

// OverlapsReservation reports whether two reservations overlap in both time
// and allocated node set.
func (r *Reservation) OverlapsReservation(other *Reservation) bool {
	if !r.Overlaps(other.TimeRange) {
		return false
	}
	nodes := make(map[string]bool, len(r.Allocations))
	for _, alloc := range r.Allocations {
		nodes[alloc.NodeID] = true
	}
	for _, alloc := range other.Allocations {
		if nodes[alloc.NodeID] {
			return true
		}
	}
	return false
}

// ConflictsWithWindow reports whether the reservation overlaps a maintenance
// window in both time and affected nodes.
func (r *Reservation) ConflictsWithWindow(w *MaintenanceWindow) bool {
	if !r.Overlaps(w.TimeRange) {
		return false
	}
	for _, alloc := range r.Allocations {
		if w.AffectsNode(alloc.NodeID) {
			return true
		}
	}
	return false
}

// IsActive reports whether the reservation is ACTIVE and now is within its
// window.
func (r *Reservation) IsActive(now time.Time) bool {
	return r.Status == ReservationActive && r.Contains(now)
}

// MaintenanceSeverity classifies maintenance windows.
type MaintenanceSeverity string

const (
	SeverityMinor    MaintenanceSeverity = "minor"
	SeverityMajor    MaintenanceSeverity = "major"
	SeverityCritical MaintenanceSeverity = "critical"
)

// Rank returns the ordinal value of a severity for comparison.
func (s MaintenanceSeverity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityMajor:
		return 2
	case SeverityMinor:
		return 1
	}
	return 0
}

// MaintenanceWindow is a scheduled time range during which the listed nodes
// are unavailable for new work.
type MaintenanceWindow struct {
	ID string
	TimeRange
	Description   string
	AffectedNodes []string
	Severity      MaintenanceSeverity
	Cancellable   bool
	Cancelled     bool

	CreationTime       time.Time
	CancellationReason string
}

// AffectsNode reports whether the window covers the given node.
func (w *MaintenanceWindow) AffectsNode(nodeID string) bool {
	for _, id := range w.AffectedNodes {
		if id == nodeID {
			return true
		}
	}
	return false
}

// IsPending reports whether the window has not started yet.
func (w *MaintenanceWindow) IsPending(now time.Time) bool {
	return !w.Cancelled && now.Before(w.Start)
}

// IsActive reports whether the window is currently in effect.
func (w *MaintenanceWindow) IsActive(now time.Time) bool {
	return !w.Cancelled && w.Contains(now)
}

// IsCompleted reports whether the window has passed.
func (w *MaintenanceWindow) IsCompleted(now time.Time) bool {
	return !w.Cancelled && now.After(w.End)
}

// ConflictType distinguishes the two kinds of detected overlap.
type ConflictType string

const (
	ConflictReservationOverlap ConflictType = "reservation_overlap"
	ConflictMaintenanceOverlap ConflictType = "maintenance_overlap"
)

// ResolutionStrategy identifies the policy used to resolve conflicts.
type ResolutionStrategy string

const (
	StrategyFirstComeFirstServed ResolutionStrategy = "first_come_first_served"
	StrategyPriorityBased        ResolutionStrategy = "priority_based"
	StrategyPreemption           ResolutionStrategy = "preemption"
	StrategyAdminDecision        ResolutionStrategy = "admin_decision"
)

// Conflict records a detected overlap between a reservation and either
// another reservation or a maintenance window. Conflicts are never deleted;
// they form the audit trail of every contention the cluster has seen.
type Conflict struct {
	ID             string
	ReservationA   string
	ReservationB   string // empty for maintenance conflicts
	MaintenanceID  string // empty for reservation conflicts
	Type           ConflictType
	DetectionTime  time.Time
	Resolved       bool
	Strategy       ResolutionStrategy
	ResolutionTime time.Time
	Details        string
}

// Resolve marks the conflict resolved with the strategy and a human-readable
// reason. Resolving an already-resolved conflict is a no-op.
func (c *Conflict) Resolve(strategy ResolutionStrategy, details string, now time.Time) {
	if c.Resolved {
		return
	}
	c.Resolved = true
	c.Strategy = strategy
	c.ResolutionTime = now
	c.Details = details
}
