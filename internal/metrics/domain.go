package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Role change outcomes.
const (
	OutcomeChanged   = "changed"
	OutcomeRejected  = "rejected"
	OutcomeForbidden = "forbidden"
	OutcomeError     = "error"
)

var (
	roleChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "role_changes_total",
			Help:      "Role change requests by requested role and outcome.",
		},
		[]string{"new_role", "outcome"},
	)

	seededCellsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seeded_cells_total",
			Help:      "Cells inserted from the layout seed file.",
		},
	)
)

// RoleChange counts one role change request.
func RoleChange(newRole, outcome string) {
	roleChangesTotal.WithLabelValues(newRole, outcome).Inc()
}

// CellsSeeded adds n provisioned cells.
func CellsSeeded(n int) {
	seededCellsTotal.Add(float64(n))
}
