package types

import "github.com/google/uuid"

// ActionStatus is the lifecycle state of a queued action.
type ActionStatus string

const (
	ActionQueued       ActionStatus = "queued"
	ActionAwaitingConf ActionStatus = "awaiting_confirmation"
	ActionExecuting    ActionStatus = "executing"
	ActionSucceeded    ActionStatus = "succeeded"
	ActionFailed       ActionStatus = "failed"
)

// Action is a device-executable task with declared preconditions. The
// postconditions an action will establish come from the device, not the
// action itself, so rollback eligibility can be evaluated off the
// execution path.
type Action struct {
	ID            string            `json:"id"`
	Type          string            `json:"type"`
	Name          string            `json:"name"`
	Params        map[string]string `json:"params,omitempty"`
	Preconditions []string          `json:"preconditions,omitempty"`
	Status        ActionStatus      `json:"status"`
	Confirmed     bool              `json:"confirmed"`
}

// NewAction creates a queued action with a fresh identity.
func NewAction(actionType, name string, params map[string]string) *Action {
	return &Action{
		ID:     uuid.NewString(),
		Type:   actionType,
		Name:   name,
		Params: params,
		Status: ActionQueued,
	}
}

// Clone returns a deep copy.
func (a *Action) Clone() *Action {
	if a == nil {
		return nil
	}
	out := *a
	if a.Params != nil {
		out.Params = make(map[string]string, len(a.Params))
		for k, v := range a.Params {
			out.Params[k] = v
		}
	}
	if a.Preconditions != nil {
		out.Preconditions = append([]string(nil), a.Preconditions...)
	}
	return &out
}

// ResultStatus classifies a device execution outcome.
type ResultStatus string

const (
	ResultSuccess            ResultStatus = "SUCCESS"
	ResultFailure            ResultStatus = "FAILURE"
	ResultPreconditionFailed ResultStatus = "PRECONDITION_FAILED"
)

// ActionResult is what a device reports back for one execution attempt.
type ActionResult struct {
	Status         ResultStatus  `json:"status"`
	Value          string        `json:"value,omitempty"`
	Postconditions []Proposition `json:"postconditions,omitempty"`
	ErrorMessage   string        `json:"error_message,omitempty"`
}
