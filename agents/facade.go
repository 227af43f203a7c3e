// Package agents holds the LLM-facing layer: the planning facade that turns
// task state into structured planning artifacts, the keyword intent router,
// and the specialist chat agents it routes to.
package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lexcodex/planform/llm"
	"github.com/lexcodex/planform/task"
)

// PlanningFacade is the uniform entry point for every structured planning
// call. It knows nothing of persistence or HTTP: each method maps a slice of
// Task state to a typed result, attaching parent IDs on generated children so
// downstream code can rely on them.
type PlanningFacade struct {
	caller *llm.StructuredCaller
	log    *zap.Logger
}

// NewPlanningFacade wires the facade over a structured caller.
func NewPlanningFacade(caller *llm.StructuredCaller, log *zap.Logger) *PlanningFacade {
	if log == nil {
		log = zap.NewNop()
	}
	return &PlanningFacade{caller: caller, log: log.Named("planning")}
}

// SufficiencyResult is the outcome of a context sufficiency check.
type SufficiencyResult struct {
	Sufficient bool     `json:"is_context_sufficient"`
	Questions  []string `json:"follow_up_questions"`
}

// AnalyzeContextSufficiency decides whether the gathered context is enough to
// plan, and if not, which follow-up questions to ask.
func (f *PlanningFacade) AnalyzeContextSufficiency(ctx context.Context, t *task.Task) (*SufficiencyResult, error) {
	schema := llm.ObjectSchema(map[string]interface{}{
		"is_context_sufficient": map[string]interface{}{"type": "boolean"},
		"follow_up_questions":   llm.StringArraySchema(),
	})
	var out SufficiencyResult
	user := taskBrief(t) + "\nDecide whether this context is sufficient to plan the task. " +
		"If not, list concrete follow-up questions for the user."
	if err := f.caller.Call(ctx, sufficiencySystem, user, schema, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ContextSummary is the refined task statement plus consolidated context.
type ContextSummary struct {
	Task    string `json:"task"`
	Context string `json:"context"`
}

// SummarizeContext consolidates the raw query and gathered answers into a
// clarified task statement and context narrative. Feedback, when non-empty,
// asks for a revision of the previous summary.
func (f *PlanningFacade) SummarizeContext(ctx context.Context, t *task.Task, feedback string) (*ContextSummary, error) {
	schema := llm.ObjectSchema(map[string]interface{}{
		"task":    llm.StringSchema(),
		"context": llm.StringSchema(),
	})
	user := taskBrief(t) + "\nProduce a clarified task statement and a consolidated context narrative."
	if feedback != "" {
		user += "\nThe user asked for this revision: " + feedback
	}
	var out ContextSummary
	if err := f.caller.Call(ctx, summarySystem, user, schema, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ScopeQuestion is one question asked while formulating a scope dimension.
type ScopeQuestion struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// FormulateScopeQuestions produces the questions for one scope dimension,
// given the already-locked earlier dimensions as context.
func (f *PlanningFacade) FormulateScopeQuestions(ctx context.Context, t *task.Task, dim task.ScopeDimension) ([]ScopeQuestion, error) {
	schema := llm.ObjectSchema(map[string]interface{}{
		"questions": llm.ArraySchema(llm.ObjectSchema(map[string]interface{}{
			"id":       llm.StringSchema(),
			"question": llm.StringSchema(),
			"options":  llm.StringArraySchema(),
		})),
	})
	user := taskBrief(t) + lockedDimensions(t) +
		fmt.Sprintf("\nFormulate clarifying questions for the %q dimension of the task scope.", dim)
	var out struct {
		Questions []ScopeQuestion `json:"questions"`
	}
	if err := f.caller.Call(ctx, scopeSystem, user, schema, &out); err != nil {
		return nil, err
	}
	for i := range out.Questions {
		if out.Questions[i].ID == "" {
			out.Questions[i].ID = fmt.Sprintf("%s_q%d", dim, i+1)
		}
	}
	return out.Questions, nil
}

// DraftScope is the generated scope draft plus its validation criteria.
type DraftScope struct {
	Scope              string   `json:"scope"`
	ValidationCriteria []string `json:"validation_criteria"`
}

// GenerateDraftScope composes the six answered dimensions into one coherent
// scope statement with validation criteria.
func (f *PlanningFacade) GenerateDraftScope(ctx context.Context, t *task.Task) (*DraftScope, error) {
	schema := llm.ObjectSchema(map[string]interface{}{
		"scope":               llm.StringSchema(),
		"validation_criteria": llm.StringArraySchema(),
	})
	user := taskBrief(t) + lockedDimensions(t) +
		"\nCompose the answered dimensions into a single coherent scope statement, with validation criteria."
	var out DraftScope
	if err := f.caller.Call(ctx, scopeSystem, user, schema, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ScopeRevision is a revised scope draft plus the list of applied changes.
type ScopeRevision struct {
	UpdatedScope string   `json:"updated_scope"`
	Changes      []string `json:"changes"`
}

// ValidateScope revises the draft scope against user feedback.
func (f *PlanningFacade) ValidateScope(ctx context.Context, t *task.Task, feedback string) (*ScopeRevision, error) {
	schema := llm.ObjectSchema(map[string]interface{}{
		"updated_scope": llm.StringSchema(),
		"changes":       llm.StringArraySchema(),
	})
	draft := ""
	if t.Scope != nil {
		draft = t.Scope.Draft
	}
	user := taskBrief(t) + "\nCurrent scope draft:\n" + draft +
		"\nRevise the draft according to this feedback, listing each change made:\n" + feedback
	var out ScopeRevision
	if err := f.caller.Call(ctx, scopeSystem, user, schema, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateIFR derives the ideal final result from the approved scope.
func (f *PlanningFacade) GenerateIFR(ctx context.Context, t *task.Task) (*task.IFR, error) {
	schema := llm.ObjectSchema(map[string]interface{}{
		"ideal_final_result":   llm.StringSchema(),
		"success_criteria":     llm.StringArraySchema(),
		"expected_outcomes":    llm.StringArraySchema(),
		"quality_metrics":      llm.StringArraySchema(),
		"validation_checklist": llm.StringArraySchema(),
	})
	user := taskBrief(t) + scopeBrief(t) +
		"\nArticulate the ideal final result: what a perfect completion of this task looks like."
	var out task.IFR
	if err := f.caller.Call(ctx, ifrSystem, user, schema, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DefineRequirements derives requirements from scope plus IFR.
func (f *PlanningFacade) DefineRequirements(ctx context.Context, t *task.Task) (*task.Requirements, error) {
	schema := llm.ObjectSchema(map[string]interface{}{
		"requirements": llm.StringArraySchema(),
		"constraints":  llm.StringArraySchema(),
		"limitations":  llm.StringArraySchema(),
		"resources":    llm.StringArraySchema(),
		"tools":        llm.StringArraySchema(),
		"definitions":  llm.StringArraySchema(),
	})
	user := taskBrief(t) + scopeBrief(t) + ifrBrief(t) +
		"\nDerive the concrete requirements, constraints, limitations, resources, tools, and definitions. " +
		"Keep the lists proportional to the task's complexity."
	var out task.Requirements
	if err := f.caller.Call(ctx, requirementsSystem, user, schema, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateWorkForStage decomposes one stage into work packages. Returned
// packages carry canonical IDs under the stage and a normalized 0-based
// sequence order.
func (f *PlanningFacade) GenerateWorkForStage(ctx context.Context, t *task.Task, stage *task.Stage) ([]task.Work, error) {
	schema := llm.ObjectSchema(map[string]interface{}{
		"work_packages": llm.ArraySchema(llm.ObjectSchema(map[string]interface{}{
			"name":                llm.StringSchema(),
			"description":         llm.StringSchema(),
			"expected_outcome":    llm.StringSchema(),
			"validation_criteria": llm.StringArraySchema(),
			"dependencies":        llm.StringArraySchema(),
		})),
	})
	user := taskBrief(t) + stageBrief(stage) +
		"\nDecompose this stage into ordered work packages. Dependencies may only reference sibling packages by name."
	var out struct {
		WorkPackages []task.Work `json:"work_packages"`
	}
	if err := f.caller.Call(ctx, decomposeSystem, user, schema, &out); err != nil {
		return nil, err
	}
	names := make(map[string]string, len(out.WorkPackages))
	for i := range out.WorkPackages {
		w := &out.WorkPackages[i]
		w.ID = task.WorkIDFor(stage.ID, i+1)
		w.StageID = stage.ID
		w.SequenceOrder = i
		names[w.Name] = w.ID
	}
	for i := range out.WorkPackages {
		out.WorkPackages[i].Dependencies = resolveDeps(out.WorkPackages[i].Dependencies, names)
	}
	return out.WorkPackages, nil
}

// GenerateTasksForWork decomposes one work package into executable tasks.
func (f *PlanningFacade) GenerateTasksForWork(ctx context.Context, t *task.Task, stage *task.Stage, work *task.Work) ([]task.ExecutableTask, error) {
	schema := llm.ObjectSchema(map[string]interface{}{
		"tasks": llm.ArraySchema(llm.ObjectSchema(map[string]interface{}{
			"name":                llm.StringSchema(),
			"description":         llm.StringSchema(),
			"validation_criteria": llm.StringArraySchema(),
			"dependencies":        llm.StringArraySchema(),
		})),
	})
	user := taskBrief(t) + stageBrief(stage) + workBrief(work) +
		"\nDecompose this work package into ordered executable tasks."
	var out struct {
		Tasks []task.ExecutableTask `json:"tasks"`
	}
	if err := f.caller.Call(ctx, decomposeSystem, user, schema, &out); err != nil {
		return nil, err
	}
	names := make(map[string]string, len(out.Tasks))
	for i := range out.Tasks {
		et := &out.Tasks[i]
		et.ID = task.ExecutableTaskIDFor(work.ID, i+1)
		et.WorkID = work.ID
		et.SequenceOrder = i
		names[et.Name] = et.ID
	}
	for i := range out.Tasks {
		out.Tasks[i].Dependencies = resolveDeps(out.Tasks[i].Dependencies, names)
	}
	return out.Tasks, nil
}

// GenerateSubtasks decomposes one executable task into leaf subtasks, each
// assigned an executor and born PENDING.
func (f *PlanningFacade) GenerateSubtasks(ctx context.Context, t *task.Task, stage *task.Stage, work *task.Work, et *task.ExecutableTask) ([]task.Subtask, error) {
	schema := llm.ObjectSchema(map[string]interface{}{
		"subtasks": llm.ArraySchema(llm.ObjectSchema(map[string]interface{}{
			"name":          llm.StringSchema(),
			"description":   llm.StringSchema(),
			"executor_type": map[string]interface{}{"type": "string", "enum": []string{"AI_AGENT", "ROBOT", "HUMAN"}},
		})),
	})
	user := taskBrief(t) + workBrief(work) +
		"\nExecutable task: " + et.Name + " — " + et.Description +
		"\nDecompose it into atomic subtasks, assigning each an executor type."
	var out struct {
		Subtasks []task.Subtask `json:"subtasks"`
	}
	if err := f.caller.Call(ctx, decomposeSystem, user, schema, &out); err != nil {
		return nil, err
	}
	for i := range out.Subtasks {
		st := &out.Subtasks[i]
		st.ID = task.SubtaskIDFor(et.ID, i+1)
		st.ParentTaskID = et.ID
		st.SequenceOrder = i
		st.Status = task.StatusPending
		switch st.ExecutorType {
		case task.ExecutorAIAgent, task.ExecutorRobot, task.ExecutorHuman:
		default:
			st.ExecutorType = task.ExecutorAIAgent
		}
	}
	return out.Subtasks, nil
}

// resolveDeps maps model-produced dependency names onto canonical sibling
// IDs; names that resolve to nothing and are not already IDs are dropped.
func resolveDeps(deps []string, names map[string]string) []string {
	var resolved []string
	for _, d := range deps {
		switch {
		case names[d] != "":
			resolved = append(resolved, names[d])
		case looksLikeID(d):
			resolved = append(resolved, d)
		}
	}
	return resolved
}

func looksLikeID(s string) bool {
	return strings.HasPrefix(s, "S") && strings.Contains(s, "_")
}

// Prompt fragments. Each call composes a templated header plus the relevant
// slice of task state; no system secrets ever enter the prompt.

const (
	sufficiencySystem = "You analyze whether enough context exists to plan a task. Reply with JSON only."
	summarySystem     = "You consolidate a raw task request and clarifications into a clean statement. Reply with JSON only."
	scopeSystem       = "You formulate and refine the scope of a task along the what/why/who/where/when/how dimensions. Reply with JSON only."
	ifrSystem         = "You articulate the ideal final result of a task. Reply with JSON only."
	requirementsSystem = "You derive concrete requirements from a task's scope and ideal final result. Reply with JSON only."
	decomposeSystem   = "You decompose plans into smaller ordered units of work. Reply with JSON only."
)

func taskBrief(t *task.Task) string {
	var b strings.Builder
	b.WriteString("Task: " + firstNonEmpty(t.Task, t.ShortDescription) + "\n")
	if t.Context != "" {
		b.WriteString("Context: " + t.Context + "\n")
	}
	for _, qa := range t.ContextAnswers {
		if qa.Answer != "" {
			b.WriteString("Q: " + qa.Question + "\nA: " + qa.Answer + "\n")
		}
	}
	return b.String()
}

func lockedDimensions(t *task.Task) string {
	if t.Scope == nil {
		return ""
	}
	var b strings.Builder
	for _, d := range task.ScopeDimensions() {
		if v := t.Scope.Dimension(d); v != "" {
			fmt.Fprintf(&b, "%s: %s\n", d, v)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "Locked scope dimensions:\n" + b.String()
}

func scopeBrief(t *task.Task) string {
	if t.Scope == nil || t.Scope.Draft == "" {
		return ""
	}
	return "Approved scope:\n" + t.Scope.Draft + "\n"
}

func ifrBrief(t *task.Task) string {
	if t.IFR == nil {
		return ""
	}
	return "Ideal final result: " + t.IFR.Statement + "\n"
}

func stageBrief(s *task.Stage) string {
	return fmt.Sprintf("Stage %s: %s — %s\n", s.ID, s.Name, s.Description)
}

func workBrief(w *task.Work) string {
	return fmt.Sprintf("Work %s: %s — %s\n", w.ID, w.Name, w.Description)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
