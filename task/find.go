package task

import "github.com/lexcodex/planform/framework"

// The find helpers descend the hierarchy lazily and return the first match.
// ID-only variants return nil when nothing matches; path variants raise
// typed errors naming the missing component so callers can report precisely
// where the ancestor chain broke.

// FindStage returns the stage with the given ID, or nil.
func (t *Task) FindStage(id string) *Stage {
	if t.NetworkPlan == nil {
		return nil
	}
	for i := range t.NetworkPlan.Stages {
		if t.NetworkPlan.Stages[i].ID == id {
			return &t.NetworkPlan.Stages[i]
		}
	}
	return nil
}

// FindWork searches every stage for a work package with the given ID.
func (t *Task) FindWork(id string) *Work {
	if t.NetworkPlan == nil {
		return nil
	}
	for i := range t.NetworkPlan.Stages {
		stage := &t.NetworkPlan.Stages[i]
		for j := range stage.WorkPackages {
			if stage.WorkPackages[j].ID == id {
				return &stage.WorkPackages[j]
			}
		}
	}
	return nil
}

// FindExecutableTask searches the whole tree for an executable task.
func (t *Task) FindExecutableTask(id string) *ExecutableTask {
	if t.NetworkPlan == nil {
		return nil
	}
	for i := range t.NetworkPlan.Stages {
		stage := &t.NetworkPlan.Stages[i]
		for j := range stage.WorkPackages {
			work := &stage.WorkPackages[j]
			for k := range work.Tasks {
				if work.Tasks[k].ID == id {
					return &work.Tasks[k]
				}
			}
		}
	}
	return nil
}

// FindSubtask searches the whole tree for a subtask.
func (t *Task) FindSubtask(id string) *Subtask {
	if t.NetworkPlan == nil {
		return nil
	}
	for i := range t.NetworkPlan.Stages {
		stage := &t.NetworkPlan.Stages[i]
		for j := range stage.WorkPackages {
			work := &stage.WorkPackages[j]
			for k := range work.Tasks {
				et := &work.Tasks[k]
				for p := range et.Subtasks {
					if et.Subtasks[p].ID == id {
						return &et.Subtasks[p]
					}
				}
			}
		}
	}
	return nil
}

// StageByPath resolves a stage or fails with a typed error.
func (t *Task) StageByPath(stageID string) (*Stage, error) {
	if t.NetworkPlan == nil {
		return nil, framework.MissingComponentf("task %s has no network plan", t.ID)
	}
	if stage := t.FindStage(stageID); stage != nil {
		return stage, nil
	}
	return nil, stageNotFound(stageID)
}

// WorkByPath resolves stage then work, naming whichever link is missing.
func (t *Task) WorkByPath(stageID, workID string) (*Work, error) {
	stage, err := t.StageByPath(stageID)
	if err != nil {
		return nil, err
	}
	if len(stage.WorkPackages) == 0 {
		return nil, framework.MissingComponentf("stage %s has no work packages", stageID)
	}
	for i := range stage.WorkPackages {
		if stage.WorkPackages[i].ID == workID {
			return &stage.WorkPackages[i], nil
		}
	}
	return nil, workNotFound(stageID, workID)
}

// ExecutableTaskByPath resolves down to an executable task.
func (t *Task) ExecutableTaskByPath(stageID, workID, etID string) (*ExecutableTask, error) {
	work, err := t.WorkByPath(stageID, workID)
	if err != nil {
		return nil, err
	}
	if len(work.Tasks) == 0 {
		return nil, framework.MissingComponentf("work %s has no executable tasks", workID)
	}
	for i := range work.Tasks {
		if work.Tasks[i].ID == etID {
			return &work.Tasks[i], nil
		}
	}
	return nil, executableTaskNotFound(workID, etID)
}

// SubtaskByPath resolves the full four-level chain.
func (t *Task) SubtaskByPath(stageID, workID, etID, stID string) (*Subtask, error) {
	et, err := t.ExecutableTaskByPath(stageID, workID, etID)
	if err != nil {
		return nil, err
	}
	if len(et.Subtasks) == 0 {
		return nil, framework.MissingComponentf("executable task %s has no subtasks", etID)
	}
	for i := range et.Subtasks {
		if et.Subtasks[i].ID == stID {
			return &et.Subtasks[i], nil
		}
	}
	return nil, subtaskNotFound(etID, stID)
}

// Subtasks returns every subtask in execution order: stages in plan order,
// works and executable tasks by sequence order, subtasks by sequence order.
func (t *Task) Subtasks() []*Subtask {
	var out []*Subtask
	if t.NetworkPlan == nil {
		return out
	}
	for i := range t.NetworkPlan.Stages {
		stage := &t.NetworkPlan.Stages[i]
		for j := range stage.WorkPackages {
			work := &stage.WorkPackages[j]
			for k := range work.Tasks {
				et := &work.Tasks[k]
				for p := range et.Subtasks {
					out = append(out, &et.Subtasks[p])
				}
			}
		}
	}
	return out
}
