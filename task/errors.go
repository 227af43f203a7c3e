package task

import (
	"strings"

	"github.com/lexcodex/planform/framework"
)

func invalidTransition(from, to State) error {
	return framework.InvalidStatef("illegal state transition %s -> %s", from, to)
}

func wrongState(current State, allowed []State) error {
	names := make([]string, 0, len(allowed))
	for _, s := range allowed {
		names = append(names, string(s))
	}
	return framework.InvalidStatef("operation requires state %s, task is %s",
		strings.Join(names, " or "), current)
}

func stageNotFound(id string) error {
	return framework.NotFoundf("stage %s not found", id)
}

func workNotFound(stageID, id string) error {
	if stageID != "" {
		return framework.NotFoundf("work %s not found in stage %s", id, stageID)
	}
	return framework.NotFoundf("work %s not found", id)
}

func executableTaskNotFound(workID, id string) error {
	if workID != "" {
		return framework.NotFoundf("executable task %s not found in work %s", id, workID)
	}
	return framework.NotFoundf("executable task %s not found", id)
}

func subtaskNotFound(etID, id string) error {
	if etID != "" {
		return framework.NotFoundf("subtask %s not found in executable task %s", id, etID)
	}
	return framework.NotFoundf("subtask %s not found", id)
}
