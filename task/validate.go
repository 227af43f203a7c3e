package task

import (
	"strings"

	"github.com/lexcodex/planform/framework"
)

// ValidatePlan checks the structural invariants of the decomposition tree:
// every child ID carries its parent's ID as a prefix, sequence_order values
// within a parent form a gapless 0-based range, and sibling dependency
// references exist and are acyclic.
func (t *Task) ValidatePlan() error {
	if t.NetworkPlan == nil {
		return nil
	}
	for i := range t.NetworkPlan.Stages {
		stage := &t.NetworkPlan.Stages[i]
		if err := validateStage(stage); err != nil {
			return err
		}
	}
	return nil
}

func validateStage(stage *Stage) error {
	ids := make([]string, 0, len(stage.WorkPackages))
	orders := make([]int, 0, len(stage.WorkPackages))
	deps := make(map[string][]string, len(stage.WorkPackages))
	for i := range stage.WorkPackages {
		work := &stage.WorkPackages[i]
		if !strings.HasPrefix(work.ID, stage.ID+"_") {
			return framework.Validationf("work %s does not carry stage prefix %s", work.ID, stage.ID)
		}
		ids = append(ids, work.ID)
		orders = append(orders, work.SequenceOrder)
		deps[work.ID] = work.Dependencies
		if err := validateWork(work); err != nil {
			return err
		}
	}
	if err := validateSequence(stage.ID, orders); err != nil {
		return err
	}
	return validateDependencies(stage.ID, ids, deps)
}

func validateWork(work *Work) error {
	ids := make([]string, 0, len(work.Tasks))
	orders := make([]int, 0, len(work.Tasks))
	deps := make(map[string][]string, len(work.Tasks))
	for i := range work.Tasks {
		et := &work.Tasks[i]
		if !strings.HasPrefix(et.ID, work.ID+"_") {
			return framework.Validationf("executable task %s does not carry work prefix %s", et.ID, work.ID)
		}
		ids = append(ids, et.ID)
		orders = append(orders, et.SequenceOrder)
		deps[et.ID] = et.Dependencies
		if err := validateExecutableTask(et); err != nil {
			return err
		}
	}
	if err := validateSequence(work.ID, orders); err != nil {
		return err
	}
	return validateDependencies(work.ID, ids, deps)
}

func validateExecutableTask(et *ExecutableTask) error {
	orders := make([]int, 0, len(et.Subtasks))
	for i := range et.Subtasks {
		st := &et.Subtasks[i]
		if !strings.HasPrefix(st.ID, et.ID+"_") {
			return framework.Validationf("subtask %s does not carry executable task prefix %s", st.ID, et.ID)
		}
		if st.ExecutorType == "" {
			return framework.Validationf("subtask %s missing executor type", st.ID)
		}
		orders = append(orders, st.SequenceOrder)
	}
	return validateSequence(et.ID, orders)
}

// validateSequence checks 0-based contiguity regardless of slice order.
func validateSequence(parent string, orders []int) error {
	seen := make(map[int]bool, len(orders))
	for _, o := range orders {
		if o < 0 || o >= len(orders) {
			return framework.Validationf("sequence_order %d out of range under %s", o, parent)
		}
		if seen[o] {
			return framework.Validationf("duplicate sequence_order %d under %s", o, parent)
		}
		seen[o] = true
	}
	return nil
}

// validateDependencies checks that dependencies reference existing siblings
// and that the directed graph has no cycles.
func validateDependencies(parent string, ids []string, deps map[string][]string) error {
	exists := make(map[string]bool, len(ids))
	for _, id := range ids {
		exists[id] = true
	}
	for id, ds := range deps {
		for _, d := range ds {
			if !exists[d] {
				return framework.Validationf("%s depends on unknown sibling %s under %s", id, d, parent)
			}
		}
	}
	// Depth-first cycle detection with a three-color marking.
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[string]int, len(ids))
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		for _, d := range deps[id] {
			switch color[d] {
			case grey:
				return false
			case white:
				if !visit(d) {
					return false
				}
			}
		}
		color[id] = black
		return true
	}
	for _, id := range ids {
		if color[id] == white {
			if !visit(id) {
				return framework.Validationf("dependency cycle detected under %s", parent)
			}
		}
	}
	return nil
}
