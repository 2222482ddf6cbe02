// Package fsm checks process lifecycle actions with looplab/fsm.
package fsm

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"github.com/neomorfeo/processiq/internal/domain"
)

var _ domain.TransitionValidator = (*Validator)(nil)

// Validator runs each action through a throwaway machine seeded with the
// process status. looplab machines hold state, so none is shared.
type Validator struct {
	events loopfsm.Events
}

// New builds a validator from domain.Transitions.
func New() *Validator {
	return &Validator{events: lifecycleEvents(domain.Transitions)}
}

// lifecycleEvents folds transitions sharing an action and destination into a
// single event with several sources, keeping first-seen order.
func lifecycleEvents(transitions []domain.Transition) loopfsm.Events {
	var events loopfsm.Events
	index := make(map[[2]string]int)
	for _, t := range transitions {
		k := [2]string{string(t.Action), string(t.Dst)}
		i, ok := index[k]
		if !ok {
			i = len(events)
			index[k] = i
			events = append(events, loopfsm.EventDesc{Name: k[0], Dst: k[1]})
		}
		events[i].Src = append(events[i].Src, string(t.Src))
	}
	return events
}

// Apply returns the status a process reaches by performing action from
// current. An edit of an open process keeps it open.
func (v *Validator) Apply(ctx context.Context, current domain.Status, action domain.Action) (domain.Status, error) {
	machine := loopfsm.NewFSM(string(current), v.events, nil)

	err := machine.Event(ctx, string(action))
	var (
		same    loopfsm.NoTransitionError
		invalid loopfsm.InvalidEventError
		unknown loopfsm.UnknownEventError
	)
	switch {
	case err == nil:
		return domain.Status(machine.Current()), nil
	case errors.As(err, &same) && same.Err == nil:
		return current, nil
	case errors.As(err, &invalid), errors.As(err, &unknown):
		return "", &domain.TransitionError{Action: action, Current: current}
	default:
		return "", err
	}
}
