package reservation

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rendergrid/rendergrid/pkg/audit"
	"github.com/rendergrid/rendergrid/pkg/errdefs"
	"github.com/rendergrid/rendergrid/pkg/log"
	"github.com/rendergrid/rendergrid/pkg/metrics"
	"github.com/rendergrid/rendergrid/pkg/types"
)

// AllocationSpec describes one node's resources to claim for a reservation.
type AllocationSpec struct {
	NodeID    string
	Resources map[types.ResourceType]float64
	Exclusive bool
}

// Manager owns the lifecycle of reservations and maintenance windows,
// detects overlaps between them, and drives the configured conflict
// resolution strategy.
//
// All mutations run under a single mutex so the detect -> resolve ->
// commit-or-rollback sequence is one critical section; two concurrent
// creations touching the same nodes and time range cannot interleave.
type Manager struct {
	mu sync.Mutex

	reservations  map[string]*types.Reservation
	windows       map[string]*types.MaintenanceWindow
	conflicts     map[string]*types.Conflict
	conflictOrder []string

	resolver    resolver
	auditLogger audit.Logger
	logger      zerolog.Logger
	clock       func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the wall clock. Used by tests.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

// NewManager creates a manager resolving conflicts with the given strategy.
// Unknown strategies fall back to priority-based resolution.
func NewManager(strategy types.ResolutionStrategy, auditLogger audit.Logger, opts ...Option) *Manager {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	m := &Manager{
		reservations: make(map[string]*types.Reservation),
		windows:      make(map[string]*types.MaintenanceWindow),
		conflicts:    make(map[string]*types.Conflict),
		auditLogger:  auditLogger,
		logger:       log.WithComponent("reservation-manager"),
		clock:        time.Now,
	}

	switch strategy {
	case types.StrategyFirstComeFirstServed:
		m.resolver = &fcfsResolver{m: m}
	case types.StrategyPreemption:
		m.resolver = &preemptionResolver{m: m}
	case types.StrategyPriorityBased:
		m.resolver = &priorityResolver{m: m}
	default:
		m.logger.Warn().Str("strategy", string(strategy)).Msg("unknown conflict strategy, using priority-based")
		m.resolver = &priorityResolver{m: m}
	}

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateReservation validates and registers a new reservation in REQUESTED
// state, then detects and resolves conflicts against it. Creation is
// all-or-nothing: if any conflict cannot be resolved, the reservation is
// removed and ErrUnresolvableConflict returned. The reservation may come back
// already CANCELLED or PREEMPTED when it lost the resolution itself.
func (m *Manager) CreateReservation(
	simulationID string,
	start, end time.Time,
	reservationType types.ReservationType,
	priority types.JobPriority,
	preemptible bool,
	allocations []AllocationSpec,
) (*types.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	rng := types.TimeRange{Start: start, End: end}
	if !rng.Valid() {
		return nil, fmt.Errorf("reservation for %s: %w", simulationID, errdefs.ErrInvalidTimeRange)
	}
	if start.Before(now) {
		return nil, fmt.Errorf("reservation for %s: %w", simulationID, errdefs.ErrPastStartTime)
	}

	res := &types.Reservation{
		ID:           "rsv-" + uuid.New().String(),
		SimulationID: simulationID,
		TimeRange:    rng,
		Type:         reservationType,
		Status:       types.ReservationRequested,
		Priority:     priority,
		Preemptible:  preemptible,
		RequestTime:  now,
		LastModified: now,
	}
	for _, spec := range allocations {
		res.Allocations = append(res.Allocations, newAllocation(spec, rng))
	}

	m.reservations[res.ID] = res
	metrics.ReservationsByStatus.WithLabelValues(string(res.Status)).Inc()

	conflicts := m.detectReservationConflicts(res)
	if len(conflicts) > 0 {
		if !m.resolver.resolve(conflicts) {
			delete(m.reservations, res.ID)
			metrics.ReservationsByStatus.WithLabelValues(string(res.Status)).Dec()
			return nil, fmt.Errorf("reservation for %s: %w", simulationID, errdefs.ErrUnresolvableConflict)
		}
	}

	metrics.ReservationsCreated.Inc()
	m.logger.Info().
		Str("reservation_id", res.ID).
		Str("simulation_id", simulationID).
		Time("start", start).
		Time("end", end).
		Msg("reservation created")
	return res, nil
}

// AddAllocation claims additional node resources for a REQUESTED or
// CONFIRMED reservation. The new allocation is conflict-checked immediately;
// if resolution fails, the allocation is rolled back.
func (m *Manager) AddAllocation(reservationID string, spec AllocationSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.reservations[reservationID]
	if !ok {
		return errdefs.NotFound("reservation", reservationID)
	}
	if res.Status != types.ReservationRequested && res.Status != types.ReservationConfirmed {
		return errdefs.InvalidTransition("add allocation to", string(res.Status))
	}

	res.Allocations = append(res.Allocations, newAllocation(spec, res.TimeRange))
	res.LastModified = m.clock()

	conflicts := m.detectReservationConflicts(res)
	if len(conflicts) > 0 {
		if !m.resolver.resolve(conflicts) {
			res.Allocations = res.Allocations[:len(res.Allocations)-1]
			return fmt.Errorf("allocation on %s: %w", spec.NodeID, errdefs.ErrUnresolvableConflict)
		}
	}
	return nil
}

// Confirm moves a REQUESTED reservation with at least one allocation to
// CONFIRMED.
func (m *Manager) Confirm(reservationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.reservations[reservationID]
	if !ok {
		return errdefs.NotFound("reservation", reservationID)
	}
	if res.Status != types.ReservationRequested {
		return errdefs.InvalidTransition("confirm", string(res.Status))
	}
	if len(res.Allocations) == 0 {
		return fmt.Errorf("confirm %s: %w", reservationID, errdefs.ErrMissingAllocations)
	}

	m.setStatus(res, types.ReservationConfirmed)
	return nil
}

// Activate moves a CONFIRMED reservation to ACTIVE, provided the wall clock
// is within the reservation window (bounds inclusive).
func (m *Manager) Activate(reservationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.reservations[reservationID]
	if !ok {
		return errdefs.NotFound("reservation", reservationID)
	}
	if res.Status != types.ReservationConfirmed {
		return errdefs.InvalidTransition("activate", string(res.Status))
	}
	now := m.clock()
	if !res.Contains(now) {
		return fmt.Errorf("activate %s outside window [%s, %s]: %w",
			reservationID, res.Start.Format(time.RFC3339), res.End.Format(time.RFC3339),
			errdefs.ErrInvalidStateTransition)
	}

	m.setStatus(res, types.ReservationActive)
	return nil
}

// Complete moves an ACTIVE reservation to COMPLETED.
func (m *Manager) Complete(reservationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.reservations[reservationID]
	if !ok {
		return errdefs.NotFound("reservation", reservationID)
	}
	if res.Status != types.ReservationActive {
		return errdefs.InvalidTransition("complete", string(res.Status))
	}

	m.setStatus(res, types.ReservationCompleted)
	return nil
}

// Cancel cancels a reservation from any non-terminal state. Cancelling a
// terminal reservation returns ErrInvalidStateTransition and changes nothing,
// so repeated cancels are safe.
func (m *Manager) Cancel(reservationID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.reservations[reservationID]
	if !ok {
		return errdefs.NotFound("reservation", reservationID)
	}
	if res.Status.Terminal() {
		return errdefs.InvalidTransition("cancel", string(res.Status))
	}

	m.cancelReservation(res, reason)
	return nil
}

// Preempt forcibly stops an ACTIVE, preemptible reservation.
func (m *Manager) Preempt(reservationID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.reservations[reservationID]
	if !ok {
		return errdefs.NotFound("reservation", reservationID)
	}
	if res.Status != types.ReservationActive || !res.Preemptible {
		return fmt.Errorf("preempt %s in state %s: %w", reservationID, res.Status, errdefs.ErrNonPreemptible)
	}

	m.preemptReservation(res, reason)
	return nil
}

// AddMaintenanceWindow registers a maintenance window. Registration itself
// never fails on conflict: the window is always kept. Conflicts with
// existing reservations are detected and resolved; when resolution fails and
// the window is critical, the conflicting reservations are force-cancelled.
// When resolution fails for a non-critical window, the window is returned
// together with ErrUnresolvableConflict so the caller knows contention
// remains.
func (m *Manager) AddMaintenanceWindow(
	start, end time.Time,
	description string,
	affectedNodes []string,
	severity types.MaintenanceSeverity,
	cancellable bool,
) (*types.MaintenanceWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rng := types.TimeRange{Start: start, End: end}
	if !rng.Valid() {
		return nil, fmt.Errorf("maintenance window: %w", errdefs.ErrInvalidTimeRange)
	}

	now := m.clock()
	w := &types.MaintenanceWindow{
		ID:            "maint-" + uuid.New().String(),
		TimeRange:     rng,
		Description:   description,
		AffectedNodes: append([]string(nil), affectedNodes...),
		Severity:      severity,
		Cancellable:   cancellable,
		CreationTime:  now,
	}
	m.windows[w.ID] = w

	m.auditLogger.LogEvent(
		audit.EventMaintenanceScheduled,
		fmt.Sprintf("Maintenance window %s scheduled (%s)", w.ID, severity),
		map[string]any{
			"maintenance_id": w.ID,
			"severity":       string(severity),
			"affected_nodes": affectedNodes,
			"start":          start,
			"end":            end,
		},
	)
	m.logger.Info().
		Str("maintenance_id", w.ID).
		Str("severity", string(severity)).
		Int("affected_nodes", len(affectedNodes)).
		Msg("maintenance window scheduled")

	conflicts := m.detectWindowConflicts(w)
	if len(conflicts) == 0 {
		return w, nil
	}

	if !m.resolver.resolve(conflicts) {
		if severity == types.SeverityCritical {
			m.forceResolve(conflicts, "critical maintenance takes precedence")
			return w, nil
		}
		return w, fmt.Errorf("maintenance window %s: %w", w.ID, errdefs.ErrUnresolvableConflict)
	}
	return w, nil
}

// CancelMaintenance cancels a maintenance window. Non-cancellable windows
// and windows already in effect cannot be cancelled.
func (m *Manager) CancelMaintenance(windowID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[windowID]
	if !ok {
		return errdefs.NotFound("maintenance window", windowID)
	}
	if w.Cancelled {
		return fmt.Errorf("maintenance window %s is already cancelled: %w", windowID, errdefs.ErrInvalidStateTransition)
	}
	if !m.cancelWindow(w, reason) {
		return fmt.Errorf("maintenance window %s is not cancellable: %w", windowID, errdefs.ErrInvalidStateTransition)
	}
	return nil
}

// GetReservation returns a reservation by id.
func (m *Manager) GetReservation(reservationID string) (*types.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.reservations[reservationID]
	if !ok {
		return nil, errdefs.NotFound("reservation", reservationID)
	}
	return res, nil
}

// ActiveReservations returns all reservations that are ACTIVE and inside
// their window right now.
func (m *Manager) ActiveReservations() []*types.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	var out []*types.Reservation
	for _, res := range m.reservations {
		if res.IsActive(now) {
			out = append(out, res)
		}
	}
	return out
}

// ReservationsForSimulation returns every reservation held by a simulation.
func (m *Manager) ReservationsForSimulation(simulationID string) []*types.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*types.Reservation
	for _, res := range m.reservations {
		if res.SimulationID == simulationID {
			out = append(out, res)
		}
	}
	return out
}

// ActiveMaintenance returns maintenance windows currently in effect.
func (m *Manager) ActiveMaintenance() []*types.MaintenanceWindow {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	var out []*types.MaintenanceWindow
	for _, w := range m.windows {
		if w.IsActive(now) {
			out = append(out, w)
		}
	}
	return out
}

// PendingMaintenance returns maintenance windows that have not started yet.
func (m *Manager) PendingMaintenance() []*types.MaintenanceWindow {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	var out []*types.MaintenanceWindow
	for _, w := range m.windows {
		if w.IsPending(now) {
			out = append(out, w)
		}
	}
	return out
}

// Conflicts returns the conflict audit trail in detection order, optionally
// filtered by resolution state. Conflicts are never deleted.
func (m *Manager) Conflicts(resolved *bool) []*types.Conflict {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*types.Conflict
	for _, id := range m.conflictOrder {
		c := m.conflicts[id]
		if resolved == nil || c.Resolved == *resolved {
			out = append(out, c)
		}
	}
	return out
}

// detectReservationConflicts records a conflict for every other live
// reservation and every non-cancelled maintenance window that overlaps res in
// both time and node set.
func (m *Manager) detectReservationConflicts(res *types.Reservation) []*types.Conflict {
	var conflicts []*types.Conflict

	for _, other := range m.reservations {
		if other.ID == res.ID || other.Status.Terminal() {
			continue
		}
		if res.OverlapsReservation(other) {
			conflicts = append(conflicts, m.recordConflict(&types.Conflict{
				ReservationA: res.ID,
				ReservationB: other.ID,
				Type:         types.ConflictReservationOverlap,
			}))
		}
	}

	for _, w := range m.windows {
		if w.Cancelled {
			continue
		}
		if res.ConflictsWithWindow(w) {
			conflicts = append(conflicts, m.recordConflict(&types.Conflict{
				ReservationA:  res.ID,
				MaintenanceID: w.ID,
				Type:          types.ConflictMaintenanceOverlap,
			}))
		}
	}

	return conflicts
}

// detectWindowConflicts records a conflict for every live reservation that
// the window overlaps in both time and node set.
func (m *Manager) detectWindowConflicts(w *types.MaintenanceWindow) []*types.Conflict {
	var conflicts []*types.Conflict
	for _, res := range m.reservations {
		if res.Status.Terminal() {
			continue
		}
		if res.ConflictsWithWindow(w) {
			conflicts = append(conflicts, m.recordConflict(&types.Conflict{
				ReservationA:  res.ID,
				MaintenanceID: w.ID,
				Type:          types.ConflictMaintenanceOverlap,
			}))
		}
	}
	return conflicts
}

func (m *Manager) recordConflict(c *types.Conflict) *types.Conflict {
	c.ID = "conflict-" + uuid.New().String()
	c.DetectionTime = m.clock()
	m.conflicts[c.ID] = c
	m.conflictOrder = append(m.conflictOrder, c.ID)

	metrics.ConflictsDetected.WithLabelValues(string(c.Type)).Inc()
	m.auditLogger.LogEvent(
		audit.EventConflictDetected,
		fmt.Sprintf("Conflict %s detected (%s)", c.ID, c.Type),
		map[string]any{
			"conflict_id":    c.ID,
			"conflict_type":  string(c.Type),
			"reservation_a":  c.ReservationA,
			"reservation_b":  c.ReservationB,
			"maintenance_id": c.MaintenanceID,
		},
	)
	return c
}

// setStatus transitions a reservation and keeps the status gauge honest.
func (m *Manager) setStatus(res *types.Reservation, status types.ReservationStatus) {
	metrics.ReservationsByStatus.WithLabelValues(string(res.Status)).Dec()
	metrics.ReservationsByStatus.WithLabelValues(string(status)).Inc()
	res.Status = status
	res.LastModified = m.clock()
}

func (m *Manager) cancelReservation(res *types.Reservation, reason string) {
	m.setStatus(res, types.ReservationCancelled)
	res.CancellationReason = reason
	resLogger := log.WithReservationID(res.ID)
	resLogger.Info().Str("reason", reason).Msg("reservation cancelled")
	m.auditLogger.LogEvent(
		audit.EventReservationCancelled,
		fmt.Sprintf("Reservation %s cancelled: %s", res.ID, reason),
		map[string]any{"reservation_id": res.ID, "reason": reason},
	)
}

func (m *Manager) preemptReservation(res *types.Reservation, reason string) {
	m.setStatus(res, types.ReservationPreempted)
	res.CancellationReason = "preempted: " + reason
	resLogger := log.WithReservationID(res.ID)
	resLogger.Info().Str("reason", reason).Msg("reservation preempted")
	m.auditLogger.LogEvent(
		audit.EventReservationPreempted,
		fmt.Sprintf("Reservation %s preempted: %s", res.ID, reason),
		map[string]any{"reservation_id": res.ID, "reason": reason},
	)
}

// cancelWindow cancels a maintenance window if policy allows: it must be
// cancellable and not currently in effect. A critical or non-cancellable
// window that is already active can never be cancelled.
func (m *Manager) cancelWindow(w *types.MaintenanceWindow, reason string) bool {
	if !w.Cancellable {
		return false
	}
	if w.IsActive(m.clock()) {
		return false
	}
	w.Cancelled = true
	w.CancellationReason = reason
	m.logger.Info().Str("maintenance_id", w.ID).Str("reason", reason).Msg("maintenance window cancelled")
	m.auditLogger.LogEvent(
		audit.EventMaintenanceCancelled,
		fmt.Sprintf("Maintenance window %s cancelled: %s", w.ID, reason),
		map[string]any{"maintenance_id": w.ID, "reason": reason},
	)
	return true
}

// forceResolve cancels every reservation party to the given conflicts and
// marks them resolved under the admin strategy. Maintenance windows are never
// touched by forced resolution.
func (m *Manager) forceResolve(conflicts []*types.Conflict, reason string) {
	for _, c := range conflicts {
		if c.Resolved {
			continue
		}
		for _, id := range []string{c.ReservationA, c.ReservationB} {
			if id == "" {
				continue
			}
			if res, ok := m.reservations[id]; ok && !res.Status.Terminal() {
				m.cancelReservation(res, "forced conflict resolution: "+reason)
			}
		}
		m.resolveConflict(c, types.StrategyAdminDecision,
			"forced resolution by cancelling reservations: "+reason)
	}
}

// resolveConflict marks a conflict resolved and emits the audit trail entry.
func (m *Manager) resolveConflict(c *types.Conflict, strategy types.ResolutionStrategy, details string) {
	if c.Resolved {
		return
	}
	c.Resolve(strategy, details, m.clock())
	metrics.ConflictsResolved.WithLabelValues(string(strategy)).Inc()
	m.auditLogger.LogEvent(
		audit.EventConflictResolved,
		fmt.Sprintf("Conflict %s resolved (%s): %s", c.ID, strategy, details),
		map[string]any{
			"conflict_id": c.ID,
			"strategy":    string(strategy),
			"details":     details,
		},
	)
}

func newAllocation(spec AllocationSpec, rng types.TimeRange) types.ResourceAllocation {
	resources := make(map[types.ResourceType]float64, len(spec.Resources))
	for k, v := range spec.Resources {
		resources[k] = v
	}
	return types.ResourceAllocation{
		NodeID:    spec.NodeID,
		Resources: resources,
		Exclusive: spec.Exclusive,
		TimeRange: rng,
	}
}
