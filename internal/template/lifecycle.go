package template

import "waba-gateway/internal/models"

// Operation is a mutation requested against an existing (or new) template.
type Operation string

const (
	OpCreate Operation = "create"
	OpEdit   Operation = "edit"
	OpDelete Operation = "delete"
	OpSubmit Operation = "submit"
)

func (o Operation) pastTense() string {
	switch o {
	case OpCreate:
		return "created"
	case OpEdit:
		return "edited"
	case OpDelete:
		return "deleted"
	case OpSubmit:
		return "submitted"
	}
	return string(o)
}

// transitions lists, per operation, the statuses from which it is allowed.
// Create has no prior status and is handled separately.
var transitions = map[Operation]map[models.Status]bool{
	OpEdit: {
		models.StatusApproved: true,
		models.StatusRejected: true,
		models.StatusPaused:   true,
	},
	OpDelete: {
		models.StatusPending:         true,
		models.StatusRejected:        true,
		models.StatusPaused:          true,
		models.StatusPendingDeletion: true,
	},
	// APPROVED templates may be edited, so they must be resubmittable.
	OpSubmit: {
		models.StatusPending:  true,
		models.StatusApproved: true,
		models.StatusRejected: true,
		models.StatusPaused:   true,
	},
}

// CanTransition reports whether op is permitted on a template in status current.
func CanTransition(current models.Status, op Operation) bool {
	if op == OpCreate {
		return true
	}
	return transitions[op][current]
}

func checkTransition(current models.Status, op Operation) error {
	if !CanTransition(current, op) {
		return &StateError{Status: current, Operation: op}
	}
	return nil
}
