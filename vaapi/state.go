package vaapi

import (
	"fmt"
)

type State int

const (
	StateIdle = State(iota)
	StateDeviceBound
	StateProfileSelected
	StateConfigCreated
	StateConstraintsValidated
	StateFramePoolAllocated
	StateExecutionContextCreated
	StateDestroyed
)

// StateActive is the state of a fully constructed session.
const StateActive = StateExecutionContextCreated

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDeviceBound:
		return "device_bound"
	case StateProfileSelected:
		return "profile_selected"
	case StateConfigCreated:
		return "config_created"
	case StateConstraintsValidated:
		return "constraints_validated"
	case StateFramePoolAllocated:
		return "frame_pool_allocated"
	case StateExecutionContextCreated:
		return "active"
	case StateDestroyed:
		return "destroyed"
	}
	return fmt.Sprintf("unexpected_state_%d", int(s))
}
