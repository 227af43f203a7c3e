package task

// State is the task lifecycle state. It is authoritative for which planning
// operations are legal; every mutator validates its precondition against it.
type State string

const (
	StateNew                  State = "NEW"
	StateContextGathering     State = "CONTEXT_GATHERING"
	StateContextGathered      State = "CONTEXT_GATHERED"
	StateTaskFormation        State = "TASK_FORMATION"
	StateIFRGenerated         State = "IFR_GENERATED"
	StateRequirementsDefined  State = "REQUIREMENTS_DEFINED"
	StateNetworkPlanGenerated State = "NETWORK_PLAN_GENERATED"
	StateExecuting            State = "EXECUTING"
	StateCompleted            State = "COMPLETED"
	StateFailed               State = "FAILED"
)

// legalTransitions is the edge set of the lifecycle graph. TASK_FORMATION
// intentionally returns to CONTEXT_GATHERED on scope approval: the task is
// then armed for IFR generation.
var legalTransitions = map[State][]State{
	StateNew:                  {StateContextGathering, StateContextGathered},
	StateContextGathering:     {StateContextGathering, StateContextGathered},
	StateContextGathered:      {StateTaskFormation, StateIFRGenerated},
	StateTaskFormation:        {StateTaskFormation, StateContextGathered},
	StateIFRGenerated:         {StateRequirementsDefined},
	StateRequirementsDefined:  {StateNetworkPlanGenerated},
	StateNetworkPlanGenerated: {StateNetworkPlanGenerated, StateExecuting},
	StateExecuting:            {StateCompleted},
}

// CanTransition reports whether from -> to is a legal edge. Failing into
// StateFailed is legal from anywhere.
func CanTransition(from, to State) bool {
	if to == StateFailed {
		return true
	}
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the task to the target state or fails with InvalidState.
func (t *Task) Transition(to State) error {
	if !CanTransition(t.State, to) {
		return invalidTransition(t.State, to)
	}
	t.State = to
	t.Touch()
	return nil
}

// RequireState guards a mutating operation on the current state being one of
// the allowed values.
func (t *Task) RequireState(allowed ...State) error {
	for _, s := range allowed {
		if t.State == s {
			return nil
		}
	}
	return wrongState(t.State, allowed)
}

// Fail records a fatal planning error on the task.
func (t *Task) Fail() {
	t.State = StateFailed
	t.Touch()
}

// SyncLifecycle advances the lifecycle to mirror subtask progress: the task
// enters EXECUTING once any subtask has started and COMPLETED once every
// subtask finished. States outside the execution arc are left untouched.
func (t *Task) SyncLifecycle() {
	subtasks := t.Subtasks()
	if len(subtasks) == 0 {
		return
	}
	started := false
	completed := 0
	for _, st := range subtasks {
		if st.Status != StatusPending {
			started = true
		}
		if st.Status == StatusCompleted {
			completed++
		}
	}
	if t.State == StateNetworkPlanGenerated && started {
		t.State = StateExecuting
		t.Touch()
	}
	if t.State == StateExecuting && completed == len(subtasks) {
		t.State = StateCompleted
		t.Touch()
	}
}
