// Package task defines the hierarchical task model: the Task aggregate, its
// four levels of decomposition (Stage, Work, ExecutableTask, Subtask), the
// lifecycle state machine, and the traversal and status helpers that every
// other component builds on. The Task aggregate exclusively owns every
// descendant; children are born and die with their parent.
package task

import "time"

// ContextAnswer is one question/answer pair gathered during context
// clarification. Answer stays empty while the question is pending.
type ContextAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Pending reports whether the question still awaits an answer.
func (a ContextAnswer) Pending() bool { return a.Answer == "" }

// ScopeDimension enumerates the six canonical formulation dimensions, asked
// in the order returned by ScopeDimensions.
type ScopeDimension string

const (
	DimWhat  ScopeDimension = "what"
	DimWhy   ScopeDimension = "why"
	DimWho   ScopeDimension = "who"
	DimWhere ScopeDimension = "where"
	DimWhen  ScopeDimension = "when"
	DimHow   ScopeDimension = "how"
)

// ScopeDimensions returns the canonical ordering. Each dimension is locked
// once answered and becomes visible context for the dimensions after it.
func ScopeDimensions() []ScopeDimension {
	return []ScopeDimension{DimWhat, DimWhy, DimWho, DimWhere, DimWhen, DimHow}
}

// ValidDimension reports whether s names a known scope dimension.
func ValidDimension(s string) bool {
	for _, d := range ScopeDimensions() {
		if string(d) == s {
			return true
		}
	}
	return false
}

// ScopeAnswer records an accepted answer to one scope question.
type ScopeAnswer struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// DimensionScope holds the locked answers for one dimension.
type DimensionScope struct {
	Dimension ScopeDimension `json:"dimension"`
	Answers   []ScopeAnswer  `json:"answers"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Scope is the six-dimensional boundary of the task plus the draft produced
// from it and the draft's approval status.
type Scope struct {
	What               string           `json:"what,omitempty"`
	Why                string           `json:"why,omitempty"`
	Who                string           `json:"who,omitempty"`
	Where              string           `json:"where,omitempty"`
	When               string           `json:"when,omitempty"`
	How                string           `json:"how,omitempty"`
	Dimensions         []DimensionScope `json:"dimensions,omitempty"`
	Draft              string           `json:"scope,omitempty"`
	Status             string           `json:"status,omitempty"`
	FeedbackLog        []string         `json:"feedback_log,omitempty"`
	ValidationCriteria []string         `json:"validation_criteria,omitempty"`
}

// SetDimension writes one dimension's summary text.
func (s *Scope) SetDimension(d ScopeDimension, value string) {
	switch d {
	case DimWhat:
		s.What = value
	case DimWhy:
		s.Why = value
	case DimWho:
		s.Who = value
	case DimWhere:
		s.Where = value
	case DimWhen:
		s.When = value
	case DimHow:
		s.How = value
	}
}

// Dimension reads one dimension's summary text.
func (s *Scope) Dimension(d ScopeDimension) string {
	switch d {
	case DimWhat:
		return s.What
	case DimWhy:
		return s.Why
	case DimWho:
		return s.Who
	case DimWhere:
		return s.Where
	case DimWhen:
		return s.When
	case DimHow:
		return s.How
	}
	return ""
}

// IFR is the ideal final result: a structured articulation of what "done"
// looks like for the task.
type IFR struct {
	Statement           string   `json:"ideal_final_result"`
	SuccessCriteria     []string `json:"success_criteria"`
	ExpectedOutcomes    []string `json:"expected_outcomes"`
	QualityMetrics      []string `json:"quality_metrics"`
	ValidationChecklist []string `json:"validation_checklist"`
}

// Requirements is derived from scope plus IFR.
type Requirements struct {
	Requirements []string `json:"requirements"`
	Constraints  []string `json:"constraints"`
	Limitations  []string `json:"limitations"`
	Resources    []string `json:"resources"`
	Tools        []string `json:"tools"`
	Definitions  []string `json:"definitions"`
}

// Connection is one dependency edge between stages in the network plan.
type Connection struct {
	From string `json:"stage1"`
	To   string `json:"stage2"`
}

// NetworkPlan is the ordered stage graph the planner produces.
type NetworkPlan struct {
	Summary     string       `json:"summary,omitempty"`
	Stages      []Stage      `json:"stages"`
	Connections []Connection `json:"connections,omitempty"`
}

// Task is the top-level aggregate. Its State gates every planning operation;
// see the transition table in state.go.
type Task struct {
	ID                  string          `json:"id"`
	ProjectID           string          `json:"project_id,omitempty"`
	State               State           `json:"state"`
	ShortDescription    string          `json:"short_description,omitempty"`
	Task                string          `json:"task,omitempty"`
	Context             string          `json:"context,omitempty"`
	IsContextSufficient bool            `json:"is_context_sufficient"`
	ContextAnswers      []ContextAnswer `json:"context_answers,omitempty"`
	Scope               *Scope          `json:"scope,omitempty"`
	IFR                 *IFR            `json:"ifr,omitempty"`
	Requirements        *Requirements   `json:"requirements,omitempty"`
	NetworkPlan         *NetworkPlan    `json:"network_plan,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// New builds a fresh task in StateNew from the raw user query.
func New(id, projectID, query string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:               id,
		ProjectID:        projectID,
		State:            StateNew,
		ShortDescription: query,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Touch refreshes the provenance timestamp. Mutating helpers call it so the
// store persists a truthful updated_at.
func (t *Task) Touch() { t.UpdatedAt = time.Now().UTC() }

// PendingQuestions returns the context questions still awaiting answers.
func (t *Task) PendingQuestions() []ContextAnswer {
	var pending []ContextAnswer
	for _, qa := range t.ContextAnswers {
		if qa.Pending() {
			pending = append(pending, qa)
		}
	}
	return pending
}

// AnswerQuestion records an answer against a previously asked question.
// Unknown questions are appended so no user input is silently dropped.
func (t *Task) AnswerQuestion(question, answer string) {
	for i := range t.ContextAnswers {
		if t.ContextAnswers[i].Question == question {
			t.ContextAnswers[i].Answer = answer
			return
		}
	}
	t.ContextAnswers = append(t.ContextAnswers, ContextAnswer{Question: question, Answer: answer})
}
