package execution

import (
	"fmt"

	"github.com/lexcodex/planform/task"
)

// Progress summarizes descendant subtask statuses under one reference.
type Progress struct {
	Ref             string              `json:"ref"`
	Total           int                 `json:"total"`
	ByStatus        map[task.Status]int `json:"by_status"`
	PercentComplete float64             `json:"percent_complete"`
	NeedsValidation bool                `json:"needs_validation"`
	Blocked         []string            `json:"blocked,omitempty"`
}

// ProgressSummary walks the descendants of ref (the whole task when ref is
// empty) and aggregates their statuses.
func (e *Engine) ProgressSummary(t *task.Task, ref string) (*Progress, error) {
	subtasks, err := descendants(t, ref)
	if err != nil {
		return nil, err
	}
	p := &Progress{Ref: ref, Total: len(subtasks), ByStatus: make(map[task.Status]int)}
	for _, st := range subtasks {
		p.ByStatus[st.Status]++
		if st.Status == task.StatusReadyForValidation {
			p.NeedsValidation = true
		}
		if blocked, _ := e.CheckDependencies(t, st.ID); blocked {
			p.Blocked = append(p.Blocked, st.ID)
		}
	}
	if p.Total > 0 {
		p.PercentComplete = float64(p.ByStatus[task.StatusCompleted]) / float64(p.Total) * 100
	}
	return p, nil
}

func descendants(t *task.Task, ref string) ([]*task.Subtask, error) {
	if ref == "" {
		return t.Subtasks(), nil
	}
	parsed, err := task.ParseRef(ref)
	if err != nil {
		return nil, err
	}
	var out []*task.Subtask
	switch parsed.Depth() {
	case 1:
		stage, err := t.StageByPath(parsed.StageID)
		if err != nil {
			return nil, err
		}
		for i := range stage.WorkPackages {
			collectWork(&stage.WorkPackages[i], &out)
		}
	case 2:
		work, err := t.WorkByPath(parsed.StageID, parsed.WorkID)
		if err != nil {
			return nil, err
		}
		collectWork(work, &out)
	case 3:
		et, err := t.ExecutableTaskByPath(parsed.StageID, parsed.WorkID, parsed.ExecutableTaskID)
		if err != nil {
			return nil, err
		}
		for i := range et.Subtasks {
			out = append(out, &et.Subtasks[i])
		}
	case 4:
		st, err := t.SubtaskByPath(parsed.StageID, parsed.WorkID, parsed.ExecutableTaskID, parsed.SubtaskID)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func collectWork(w *task.Work, out *[]*task.Subtask) {
	for i := range w.Tasks {
		et := &w.Tasks[i]
		for j := range et.Subtasks {
			*out = append(*out, &et.Subtasks[j])
		}
	}
}

// CheckDependencies reports whether the referenced unit is blocked and by
// what. A subtask is blocked while any sibling with a lower sequence order
// is not COMPLETED; higher levels are blocked by unsatisfied entries in
// their dependency lists.
func (e *Engine) CheckDependencies(t *task.Task, ref string) (bool, []string) {
	parsed, err := task.ParseRef(ref)
	if err != nil {
		return false, nil
	}
	switch parsed.Depth() {
	case 4:
		st, err := t.SubtaskByPath(parsed.StageID, parsed.WorkID, parsed.ExecutableTaskID, parsed.SubtaskID)
		if err != nil {
			return false, nil
		}
		et, err := t.ExecutableTaskByPath(parsed.StageID, parsed.WorkID, parsed.ExecutableTaskID)
		if err != nil {
			return false, nil
		}
		var blocking []string
		for i := range et.Subtasks {
			sibling := &et.Subtasks[i]
			if sibling.SequenceOrder < st.SequenceOrder && sibling.Status != task.StatusCompleted {
				blocking = append(blocking, sibling.ID)
			}
		}
		return len(blocking) > 0, blocking
	case 3:
		et := t.FindExecutableTask(ref)
		if et == nil {
			return false, nil
		}
		return e.unsatisfied(t, et.Dependencies)
	case 2:
		work := t.FindWork(ref)
		if work == nil {
			return false, nil
		}
		return e.unsatisfied(t, work.Dependencies)
	}
	return false, nil
}

func (e *Engine) unsatisfied(t *task.Task, deps []string) (bool, []string) {
	var blocking []string
	for _, dep := range deps {
		if !depSatisfied(t, dep) {
			blocking = append(blocking, dep)
		}
	}
	return len(blocking) > 0, blocking
}

func depSatisfied(t *task.Task, id string) bool {
	if work := t.FindWork(id); work != nil {
		return work.AggregateStatus() == task.StatusCompleted
	}
	if et := t.FindExecutableTask(id); et != nil {
		return et.AggregateStatus() == task.StatusCompleted
	}
	// Unknown dependency: treat as satisfied rather than deadlocking.
	return true
}

// SuggestValidationWorkflow produces an ordered human checklist for an
// executable task whose subtasks are all complete. Otherwise it reports what
// still has to run.
func (e *Engine) SuggestValidationWorkflow(t *task.Task, ref string) ([]string, error) {
	parsed, err := task.ParseRef(ref)
	if err != nil {
		return nil, err
	}
	if parsed.Depth() != 3 {
		return nil, fmt.Errorf("validation workflow applies to executable tasks, got %s", ref)
	}
	et, err := t.ExecutableTaskByPath(parsed.StageID, parsed.WorkID, parsed.ExecutableTaskID)
	if err != nil {
		return nil, err
	}
	for i := range et.Subtasks {
		if et.Subtasks[i].Status != task.StatusCompleted {
			return []string{fmt.Sprintf("complete subtask %s before validating", et.Subtasks[i].ID)}, nil
		}
	}
	steps := []string{fmt.Sprintf("1. Review the outputs of %s (%s)", et.ID, et.Name)}
	n := 2
	for _, a := range et.GeneratedArtifacts {
		steps = append(steps, fmt.Sprintf("%d. Inspect artifact %q at %s", n, a.Name, a.Location))
		n++
	}
	for _, c := range et.ValidationCriteria {
		steps = append(steps, fmt.Sprintf("%d. Verify: %s", n, c))
		n++
	}
	steps = append(steps, fmt.Sprintf("%d. Mark %s READY_FOR_VALIDATION or report defects", n, et.ID))
	return steps, nil
}
