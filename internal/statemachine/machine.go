package statemachine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/looplab/fsm"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
)

// machine is the shared core of the entity state machines. Each event has a
// single destination, so a requested target status resolves to one event.
type machine struct {
	entity string
	fsm    *fsm.FSM
	events fsm.Events
}

func newMachine(entity, current string, events fsm.Events) *machine {
	return &machine{
		entity: entity,
		fsm:    fsm.NewFSM(current, events, fsm.Callbacks{}),
		events: events,
	}
}

// eventFor returns the name of the event leading to target
func (m *machine) eventFor(target string) (string, bool) {
	for _, e := range m.events {
		if e.Dst == target {
			return e.Name, true
		}
	}
	return "", false
}

// fire runs a named event and returns the new state
func (m *machine) fire(ctx context.Context, event string) (string, error) {
	if !m.fsm.Can(event) {
		return "", m.invalid(event)
	}
	if err := m.fsm.Event(ctx, event); err != nil {
		var noTransition fsm.NoTransitionError
		if errors.As(err, &noTransition) {
			return m.fsm.Current(), nil
		}
		return "", fmt.Errorf("failed to %s %s: %w", event, m.entity, err)
	}
	return m.fsm.Current(), nil
}

// transitionTo moves to target; re-applying the current status is a no-op
func (m *machine) transitionTo(ctx context.Context, target string) (string, error) {
	current := m.fsm.Current()
	if target == current {
		return current, nil
	}
	event, ok := m.eventFor(target)
	if !ok {
		return "", apperr.New(apperr.KindInvalidStatusTransition, "unknown %s status %q", m.entity, target)
	}
	if !m.fsm.Can(event) {
		return "", apperr.New(apperr.KindInvalidStatusTransition,
			"%s cannot transition from %s to %s", m.entity, current, target)
	}
	return m.fire(ctx, event)
}

// targets lists the statuses reachable from the current state
func (m *machine) targets() []string {
	var out []string
	for _, e := range m.events {
		if m.fsm.Can(e.Name) && !slices.Contains(out, e.Dst) {
			out = append(out, e.Dst)
		}
	}
	return out
}

func (m *machine) invalid(event string) error {
	return apperr.New(apperr.KindInvalidStatusTransition,
		"%s cannot %s in current state: %s", m.entity, event, m.fsm.Current())
}
