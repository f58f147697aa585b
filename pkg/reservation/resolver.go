package reservation

import (
	"fmt"

	"github.com/rendergrid/rendergrid/pkg/types"
)

// resolver applies one resolution strategy to a batch of freshly detected
// conflicts. Implementations run inside the manager's critical section and
// report whether every conflict ended up resolved.
type resolver interface {
	strategy() types.ResolutionStrategy
	resolve(conflicts []*types.Conflict) bool
}

// parties looks up the live objects behind a conflict. A missing or already
// terminal party means some earlier resolution has settled the contention, so
// the conflict can be closed without further action.
func (m *Manager) parties(c *types.Conflict) (a, b *types.Reservation, w *types.MaintenanceWindow, settled bool) {
	a = m.reservations[c.ReservationA]
	if c.ReservationB != "" {
		b = m.reservations[c.ReservationB]
	}
	if c.MaintenanceID != "" {
		w = m.windows[c.MaintenanceID]
	}

	switch c.Type {
	case types.ConflictReservationOverlap:
		settled = a == nil || b == nil || a.Status.Terminal() || b.Status.Terminal()
	case types.ConflictMaintenanceOverlap:
		settled = a == nil || w == nil || a.Status.Terminal() || w.Cancelled
	}
	return a, b, w, settled
}

// displace takes a losing reservation out mid-run: ACTIVE preemptible
// reservations are preempted, everything else is cancelled. Returns false for
// an ACTIVE reservation that refuses preemption. Only the preemption strategy
// displaces; the other strategies cancel the loser outright.
func (m *Manager) displace(res *types.Reservation, reason string) bool {
	if res.Status == types.ReservationActive {
		if !res.Preemptible {
			return false
		}
		m.preemptReservation(res, reason)
		return true
	}
	m.cancelReservation(res, reason)
	return true
}

// fcfsResolver keeps whichever reservation asked first; the loser is
// cancelled whatever its state. Maintenance wins against reservations unless
// the reservation predates the window and the window is still cancellable.
type fcfsResolver struct {
	m *Manager
}

func (r *fcfsResolver) strategy() types.ResolutionStrategy {
	return types.StrategyFirstComeFirstServed
}

func (r *fcfsResolver) resolve(conflicts []*types.Conflict) bool {
	m := r.m

	for _, c := range conflicts {
		if c.Resolved {
			continue
		}
		a, b, w, settled := m.parties(c)
		if settled {
			m.resolveConflict(c, r.strategy(), "conflict settled by an earlier resolution")
			continue
		}

		switch c.Type {
		case types.ConflictReservationOverlap:
			winner, loser := a, b
			if b.RequestTime.Before(a.RequestTime) {
				winner, loser = b, a
			}
			m.cancelReservation(loser, fmt.Sprintf("lost first-come-first-served conflict to %s", winner.ID))
			m.resolveConflict(c, r.strategy(),
				fmt.Sprintf("earlier request %s kept, %s cancelled", winner.ID, loser.ID))

		case types.ConflictMaintenanceOverlap:
			if a.RequestTime.Before(w.CreationTime) &&
				w.Severity != types.SeverityCritical &&
				m.cancelWindow(w, fmt.Sprintf("reservation %s was requested first", a.ID)) {
				m.resolveConflict(c, r.strategy(),
					fmt.Sprintf("maintenance window %s cancelled in favor of earlier reservation %s", w.ID, a.ID))
				continue
			}
			m.cancelReservation(a, fmt.Sprintf("node maintenance %s takes precedence", w.ID))
			m.resolveConflict(c, r.strategy(),
				fmt.Sprintf("maintenance window %s kept, reservation %s cancelled", w.ID, a.ID))
		}
	}
	return true
}

// priorityResolver keeps the higher-priority reservation and cancels the
// loser whatever its state, falling back to request order on ties. Critical
// maintenance always wins; a CRITICAL reservation wins over non-critical
// maintenance and is never sacrificed to it, so a window that cannot be
// cancelled leaves the conflict unresolved.
type priorityResolver struct {
	m *Manager
}

func (r *priorityResolver) strategy() types.ResolutionStrategy {
	return types.StrategyPriorityBased
}

func (r *priorityResolver) resolve(conflicts []*types.Conflict) bool {
	m := r.m
	all := true

	for _, c := range conflicts {
		if c.Resolved {
			continue
		}
		a, b, w, settled := m.parties(c)
		if settled {
			m.resolveConflict(c, r.strategy(), "conflict settled by an earlier resolution")
			continue
		}

		switch c.Type {
		case types.ConflictReservationOverlap:
			winner, loser := a, b
			switch {
			case b.Priority.Rank() > a.Priority.Rank():
				winner, loser = b, a
			case b.Priority.Rank() == a.Priority.Rank() && b.RequestTime.Before(a.RequestTime):
				winner, loser = b, a
			}
			m.cancelReservation(loser, fmt.Sprintf("lost priority conflict to %s (%s)", winner.ID, winner.Priority))
			m.resolveConflict(c, r.strategy(),
				fmt.Sprintf("higher priority %s (%s) kept, %s (%s) cancelled",
					winner.ID, winner.Priority, loser.ID, loser.Priority))

		case types.ConflictMaintenanceOverlap:
			switch {
			case w.Severity == types.SeverityCritical:
				m.cancelReservation(a, fmt.Sprintf("critical maintenance %s takes precedence", w.ID))
				m.resolveConflict(c, r.strategy(),
					fmt.Sprintf("critical maintenance %s kept, reservation %s cancelled", w.ID, a.ID))

			case a.Priority == types.PriorityCritical:
				if m.cancelWindow(w, fmt.Sprintf("critical reservation %s takes precedence", a.ID)) {
					m.resolveConflict(c, r.strategy(),
						fmt.Sprintf("maintenance window %s (%s) cancelled in favor of critical reservation %s",
							w.ID, w.Severity, a.ID))
					continue
				}
				// The reservation wins but the window cannot yield.
				all = false

			default:
				m.cancelReservation(a, fmt.Sprintf("node maintenance %s (%s) takes precedence", w.ID, w.Severity))
				m.resolveConflict(c, r.strategy(),
					fmt.Sprintf("maintenance window %s kept, reservation %s cancelled", w.ID, a.ID))
			}
		}
	}
	return all
}

// preemptionResolver is priority resolution with a harder edge: the losing
// reservation is preempted mid-run when it is preemptible. An ACTIVE loser
// that refuses preemption blocks resolution of a reservation conflict, and an
// equal-priority standoff is broken in favor of the incumbent. Maintenance
// losers fall back to cancellation.
type preemptionResolver struct {
	m *Manager
}

func (r *preemptionResolver) strategy() types.ResolutionStrategy {
	return types.StrategyPreemption
}

func (r *preemptionResolver) resolve(conflicts []*types.Conflict) bool {
	m := r.m
	all := true

	for _, c := range conflicts {
		if c.Resolved {
			continue
		}
		a, b, w, settled := m.parties(c)
		if settled {
			m.resolveConflict(c, r.strategy(), "conflict settled by an earlier resolution")
			continue
		}

		switch c.Type {
		case types.ConflictReservationOverlap:
			// a is the newcomer that triggered detection, b the incumbent.
			// The newcomer must strictly outrank the incumbent to displace it.
			winner, loser := b, a
			if a.Priority.Rank() > b.Priority.Rank() {
				winner, loser = a, b
			}
			if !m.displace(loser, fmt.Sprintf("preempted by %s (%s)", winner.ID, winner.Priority)) {
				all = false
				continue
			}
			m.resolveConflict(c, r.strategy(),
				fmt.Sprintf("%s (%s) displaced %s (%s)", winner.ID, winner.Priority, loser.ID, loser.Priority))

		case types.ConflictMaintenanceOverlap:
			switch {
			case w.Severity == types.SeverityCritical:
				reason := fmt.Sprintf("critical maintenance %s takes precedence", w.ID)
				if !m.displace(a, reason) {
					m.cancelReservation(a, reason)
				}
				m.resolveConflict(c, r.strategy(),
					fmt.Sprintf("critical maintenance %s kept, reservation %s displaced", w.ID, a.ID))

			case a.Priority == types.PriorityCritical:
				if m.cancelWindow(w, fmt.Sprintf("critical reservation %s takes precedence", a.ID)) {
					m.resolveConflict(c, r.strategy(),
						fmt.Sprintf("maintenance window %s (%s) cancelled in favor of critical reservation %s",
							w.ID, w.Severity, a.ID))
					continue
				}
				all = false

			default:
				reason := fmt.Sprintf("displaced by node maintenance %s (%s)", w.ID, w.Severity)
				if !m.displace(a, reason) {
					m.cancelReservation(a, reason)
				}
				m.resolveConflict(c, r.strategy(),
					fmt.Sprintf("maintenance window %s kept, reservation %s displaced", w.ID, a.ID))
			}
		}
	}
	return all
}
