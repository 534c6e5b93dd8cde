// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package receiver

import "sync/atomic"

// controlState is the Receiver's tri-state lifecycle flag. It is written
// and read with relaxed atomic ordering: there is no other state being
// synchronized through it, so no happens-before guarantee beyond "visible
// within the next poll" is required, matching the teacher's convention of
// plain int32 atomics for lifecycle counters (see Dispatcher.activeCount).
type controlState int32

const (
	stateRun controlState = iota
	stateStop
	stateStopNow
)

// control wraps the atomic lifecycle flag. newControl starts it as Stop;
// the zero value (0) would read as Run, so always construct it through
// newControl.
type control struct {
	state atomic.Int32
}

func newControl() *control {
	c := &control{}
	c.state.Store(int32(stateStop))
	return c
}

func (c *control) get() controlState {
	return controlState(c.state.Load())
}

func (c *control) set(s controlState) {
	c.state.Store(int32(s))
}
