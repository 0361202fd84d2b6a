package conversation

import (
	"context"
	"errors"
	"fmt"
)

// ErrStaleState means the user's flow is no longer in the expected state.
var ErrStaleState = errors.New("conversation state changed")

type Machine struct {
	store FlowStore
}

func NewMachine(store FlowStore) *Machine {
	return &Machine{store: store}
}

// Current returns the user's flow, or an Idle flow when there is none.
func (m *Machine) Current(ctx context.Context, userID int64) (Flow, error) {
	flow, err := m.store.Get(ctx, userID)
	if err != nil {
		return Flow{}, err
	}
	if flow == nil {
		return Flow{State: Idle}, nil
	}
	return *flow, nil
}

// Begin starts a flow, abandoning any flow already in the slot.
func (m *Machine) Begin(ctx context.Context, userID int64, flow Flow) error {
	if !flow.Active() {
		return fmt.Errorf("begin: flow needs a non-idle state")
	}
	return m.store.Set(ctx, userID, flow)
}

// Advance moves the flow from one state to the next, applying mutate to the
// collected data. It fails with ErrStaleState if the flow is not in from.
func (m *Machine) Advance(ctx context.Context, userID int64, from, to State, mutate func(*Flow)) (Flow, error) {
	flow, err := m.Current(ctx, userID)
	if err != nil {
		return Flow{}, err
	}
	if flow.State != from {
		return flow, fmt.Errorf("%w: want %q, have %q", ErrStaleState, from, flow.State)
	}
	if !canMove(from, to) {
		return flow, fmt.Errorf("no transition from %q to %q", from, to)
	}

	if mutate != nil {
		mutate(&flow)
	}
	flow.State = to

	if to == Idle {
		return flow, m.store.Clear(ctx, userID)
	}
	return flow, m.store.Set(ctx, userID, flow)
}

// Finish ends a flow that is in state from and returns what it collected.
func (m *Machine) Finish(ctx context.Context, userID int64, from State) (Flow, error) {
	flow, err := m.Current(ctx, userID)
	if err != nil {
		return Flow{}, err
	}
	if flow.State != from {
		return flow, fmt.Errorf("%w: want %q, have %q", ErrStaleState, from, flow.State)
	}
	return flow, m.store.Clear(ctx, userID)
}

// Cancel clears the slot from any state and reports whether a flow was active.
func (m *Machine) Cancel(ctx context.Context, userID int64) (bool, error) {
	flow, err := m.Current(ctx, userID)
	if err != nil {
		return false, err
	}
	if err := m.store.Clear(ctx, userID); err != nil {
		return false, err
	}
	return flow.Active(), nil
}
