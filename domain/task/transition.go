package task

import "github.com/example/task-tracker/pkg/apperr"

// transitions is the fixed adjacency set of legal status moves.
var transitions = map[Status]map[Status]struct{}{
	StatusToDo: {
		StatusInProgress: {},
		StatusDeleted:    {},
	},
	StatusInProgress: {
		StatusDone:    {},
		StatusDeleted: {},
	},
	StatusDone: {
		StatusDeleted: {},
	},
	StatusDeleted: {},
}

// CanTransition reports whether from may move to to.
// Staying on the same status is always allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	_, ok := transitions[from][to]
	return ok
}

// ValidateTransition returns a validation error naming the pair when the move is illegal.
func ValidateTransition(from, to Status) error {
	if !to.Valid() {
		return apperr.Validation("unknown task status %s", to)
	}
	if !CanTransition(from, to) {
		return apperr.Validation("status transition %s → %s is impossible", from, to)
	}
	return nil
}
