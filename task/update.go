package task

import "time"

// Status updaters mirror each other at every level: start sets IN_PROGRESS
// and clears prior completion, complete sets COMPLETED and clears stale
// errors, fail sets FAILED with the message. They mutate an already-loaded
// aggregate; the caller is responsible for re-saving through the store.

// StartSubtask marks the subtask in progress.
func (s *Subtask) Start() {
	now := time.Now().UTC()
	s.Status = StatusInProgress
	s.StartedAt = &now
	s.CompletedAt = nil
	s.Result = ""
	s.ErrorMessage = ""
	s.UpdatedAt = now
}

// Complete marks the subtask done with an optional serialized result.
func (s *Subtask) Complete(result string) {
	now := time.Now().UTC()
	s.Status = StatusCompleted
	if s.StartedAt == nil {
		s.StartedAt = &now
	}
	s.CompletedAt = &now
	s.Result = result
	s.ErrorMessage = ""
	s.UpdatedAt = now
}

// Fail marks the subtask failed with the error message.
func (s *Subtask) Fail(errMsg string) {
	now := time.Now().UTC()
	s.Status = StatusFailed
	if s.StartedAt == nil {
		s.StartedAt = &now
	}
	s.CompletedAt = &now
	s.ErrorMessage = errMsg
	s.UpdatedAt = now
}

// Cancel marks the subtask cancelled without touching results.
func (s *Subtask) Cancel() {
	s.Status = StatusCancelled
	s.UpdatedAt = time.Now().UTC()
}

// ApplyStatus applies an externally supplied status update, used by the
// subtask status endpoint where the caller controls every field.
func (s *Subtask) ApplyStatus(status Status, result, errMsg string, startedAt, completedAt *time.Time) {
	s.Status = status
	if result != "" {
		s.Result = result
	}
	if errMsg != "" {
		s.ErrorMessage = errMsg
	}
	if startedAt != nil {
		s.StartedAt = startedAt
	}
	if completedAt != nil {
		s.CompletedAt = completedAt
	}
	switch status {
	case StatusCompleted:
		s.ErrorMessage = ""
		if s.CompletedAt == nil {
			now := time.Now().UTC()
			s.CompletedAt = &now
		}
	case StatusInProgress:
		s.CompletedAt = nil
		if s.StartedAt == nil {
			now := time.Now().UTC()
			s.StartedAt = &now
		}
	}
	s.UpdatedAt = time.Now().UTC()
}

// AggregateStatus derives a level's status from its children: FAILED if any
// child failed, IN_PROGRESS if any child started, COMPLETED only when every
// child completed, PENDING otherwise.
func AggregateStatus(children []Status) Status {
	if len(children) == 0 {
		return StatusPending
	}
	completed := 0
	anyStarted := false
	for _, c := range children {
		switch c {
		case StatusFailed:
			return StatusFailed
		case StatusCompleted:
			completed++
		case StatusInProgress, StatusReadyForValidation:
			anyStarted = true
		}
	}
	switch {
	case completed == len(children):
		return StatusCompleted
	case anyStarted || completed > 0:
		return StatusInProgress
	default:
		return StatusPending
	}
}

// ExecutableTaskStatus aggregates an executable task from its subtasks.
func (et *ExecutableTask) AggregateStatus() Status {
	statuses := make([]Status, 0, len(et.Subtasks))
	for _, st := range et.Subtasks {
		statuses = append(statuses, st.Status)
	}
	return AggregateStatus(statuses)
}

// WorkStatus aggregates a work package from its executable tasks.
func (w *Work) AggregateStatus() Status {
	statuses := make([]Status, 0, len(w.Tasks))
	for _, et := range w.Tasks {
		statuses = append(statuses, et.AggregateStatus())
	}
	return AggregateStatus(statuses)
}

// StageStatus aggregates a stage from its work packages.
func (s *Stage) AggregateStatus() Status {
	statuses := make([]Status, 0, len(s.WorkPackages))
	for _, w := range s.WorkPackages {
		statuses = append(statuses, w.AggregateStatus())
	}
	return AggregateStatus(statuses)
}
