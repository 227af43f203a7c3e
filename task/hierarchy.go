package task

import (
	"fmt"
	"time"
)

// ArtifactType categorizes a deliverable.
type ArtifactType string

const (
	ArtifactDocument ArtifactType = "document"
	ArtifactSoftware ArtifactType = "software"
	ArtifactPhysical ArtifactType = "physical"
	ArtifactData     ArtifactType = "data"
)

// ArtifactLocation is a stable enumerated place an artifact lives, so a
// generated artifact at step N can be referenced as a required input at step
// N+1 by name plus location.
type ArtifactLocation string

const (
	LocationWorkspace ArtifactLocation = "workspace"
	LocationGenerated ArtifactLocation = "generated_files"
	LocationExternal  ArtifactLocation = "external"
	LocationDatabase  ArtifactLocation = "database"
)

// Artifact is a concrete deliverable with a name, type, and location.
type Artifact struct {
	Name        string           `json:"name"`
	Type        ArtifactType     `json:"type"`
	Description string           `json:"description,omitempty"`
	Location    ArtifactLocation `json:"location"`
}

// Checkpoint is an intermediate verification point within a stage.
type Checkpoint struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Artifact    *Artifact  `json:"artifact,omitempty"`
	Validations []string   `json:"validations,omitempty"`
}

// ExecutorType selects who performs a subtask.
type ExecutorType string

const (
	ExecutorAIAgent ExecutorType = "AI_AGENT"
	ExecutorRobot   ExecutorType = "ROBOT"
	ExecutorHuman   ExecutorType = "HUMAN"
)

// Status enumerates subtask execution states.
type Status string

const (
	StatusPending            Status = "PENDING"
	StatusInProgress         Status = "IN_PROGRESS"
	StatusCompleted          Status = "COMPLETED"
	StatusFailed             Status = "FAILED"
	StatusCancelled          Status = "CANCELLED"
	StatusBlocked            Status = "BLOCKED"
	StatusReadyForValidation Status = "READY_FOR_VALIDATION"
)

// ValidStatus reports whether s names a known status.
func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed,
		StatusCancelled, StatusBlocked, StatusReadyForValidation:
		return true
	}
	return false
}

// Stage is the first decomposition level. IDs follow the pattern S<n>.
type Stage struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Result      []string     `json:"result,omitempty"`
	Deliverables []Artifact  `json:"what_should_be_delivered,omitempty"`
	Checkpoints []Checkpoint `json:"checkpoints,omitempty"`
	WorkPackages []Work      `json:"work_packages,omitempty"`
	CreatedAt   time.Time    `json:"created_at,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at,omitempty"`
}

// Work is the second decomposition level. IDs follow S<n>_W<m>.
type Work struct {
	ID                 string           `json:"id"`
	StageID            string           `json:"stage_id,omitempty"`
	Name               string           `json:"name"`
	Description        string           `json:"description,omitempty"`
	RequiredInputs     []Artifact       `json:"required_inputs,omitempty"`
	ExpectedOutcome    string           `json:"expected_outcome,omitempty"`
	GeneratedArtifacts []Artifact       `json:"generated_artifacts,omitempty"`
	ValidationCriteria []string         `json:"validation_criteria,omitempty"`
	SequenceOrder      int              `json:"sequence_order"`
	Dependencies       []string         `json:"dependencies,omitempty"`
	Tasks              []ExecutableTask `json:"tasks,omitempty"`
	CreatedAt          time.Time        `json:"created_at,omitempty"`
	UpdatedAt          time.Time        `json:"updated_at,omitempty"`
}

// ExecutableTask is the third decomposition level. IDs follow S<n>_W<m>_ET<k>.
type ExecutableTask struct {
	ID                 string    `json:"id"`
	WorkID             string    `json:"work_id,omitempty"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	RequiredInputs     []Artifact `json:"required_inputs,omitempty"`
	GeneratedArtifacts []Artifact `json:"generated_artifacts,omitempty"`
	ValidationCriteria []string  `json:"validation_criteria,omitempty"`
	SequenceOrder      int       `json:"sequence_order"`
	Dependencies       []string  `json:"dependencies,omitempty"`
	Subtasks           []Subtask `json:"subtasks,omitempty"`
	CreatedAt          time.Time `json:"created_at,omitempty"`
	UpdatedAt          time.Time `json:"updated_at,omitempty"`
}

// Subtask is the leaf level actually executed. IDs follow
// S<n>_W<m>_ET<k>_ST<p>.
type Subtask struct {
	ID            string       `json:"id"`
	ParentTaskID  string       `json:"executable_task_id,omitempty"`
	Name          string       `json:"name"`
	Description   string       `json:"description,omitempty"`
	ExecutorType  ExecutorType `json:"executor_type"`
	SequenceOrder int          `json:"sequence_order"`
	Status        Status       `json:"status"`
	Result        string       `json:"result,omitempty"`
	ErrorMessage  string       `json:"error_message,omitempty"`
	StartedAt     *time.Time   `json:"started_at,omitempty"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at,omitempty"`
	UpdatedAt     time.Time    `json:"updated_at,omitempty"`
}

// StageIDFor formats the canonical stage ID for a 1-based index.
func StageIDFor(n int) string { return fmt.Sprintf("S%d", n) }

// WorkIDFor formats a work ID under the given stage.
func WorkIDFor(stageID string, m int) string { return fmt.Sprintf("%s_W%d", stageID, m) }

// ExecutableTaskIDFor formats an executable task ID under the given work.
func ExecutableTaskIDFor(workID string, k int) string { return fmt.Sprintf("%s_ET%d", workID, k) }

// SubtaskIDFor formats a subtask ID under the given executable task.
func SubtaskIDFor(etID string, p int) string { return fmt.Sprintf("%s_ST%d", etID, p) }
