// Package planning orchestrates the end-to-end planning flow: each phase is
// a thin wrapper of validate precondition, invoke the planning facade, apply
// the result, transition state, persist. The task's lifecycle state is the
// single source of truth for which phase may run next.
package planning

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexcodex/planform/agents"
	"github.com/lexcodex/planform/framework"
	"github.com/lexcodex/planform/store"
	"github.com/lexcodex/planform/task"
)

// DontKnowThreshold is how many distinct "don't know" answers end context
// gathering regardless of what the model wants.
const DontKnowThreshold = 3

// defaultDontKnowMarkers are the phrases treated as a non-answer. The set is
// configurable so deployments can add language equivalents.
var defaultDontKnowMarkers = []string{
	"i don't know", "i dont know", "dont know", "don't know",
	"no idea", "not sure", "idk", "unsure",
}

// Pipeline drives a task from NEW to NETWORK_PLAN_GENERATED. All compound
// operations hold the project's store lock for their whole read-modify-write.
type Pipeline struct {
	store  *store.Store
	facade *agents.PlanningFacade
	log    *zap.Logger

	dontKnowMarkers []string
}

// NewPipeline wires the pipeline. Extra markers extend the built-in
// "don't know" set.
func NewPipeline(s *store.Store, facade *agents.PlanningFacade, log *zap.Logger, extraMarkers ...string) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		store:           s,
		facade:          facade,
		log:             log.Named("pipeline"),
		dontKnowMarkers: append(append([]string(nil), defaultDontKnowMarkers...), extraMarkers...),
	}
}

// CreateTask registers a new project around the raw user query. The task and
// project share one generated ID.
func (p *Pipeline) CreateTask(query string) (*task.Task, error) {
	if strings.TrimSpace(query) == "" {
		return nil, framework.Validationf("query must not be empty")
	}
	id := uuid.NewString()
	if _, err := p.store.CreateProject(id, query); err != nil {
		return nil, err
	}
	t := task.New(id, id, query)
	if err := p.store.SaveTask(id, t); err != nil {
		return nil, err
	}
	p.log.Info("task created", zap.String("task", id))
	return t, nil
}

// load fetches the task for a project, failing when none was saved yet.
func (p *Pipeline) load(projectID string) (*task.Task, error) {
	t, err := p.store.LoadTask(projectID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, framework.NotFoundf("project %s has no task yet", projectID)
	}
	return t, nil
}

// ContextResult is the outcome of one context-gathering round.
type ContextResult struct {
	Sufficient bool                 `json:"is_context_sufficient"`
	Questions  []task.ContextAnswer `json:"questions,omitempty"`
	Task       *task.Task           `json:"-"`
}

// GatherContext runs one round of iterative context clarification: record
// the caller's answers, then either finalize (forced, worn down by
// non-answers, or judged sufficient) or ask the next batch of questions.
func (p *Pipeline) GatherContext(ctx context.Context, projectID string, answers map[string]string, force bool) (*ContextResult, error) {
	lock := p.store.Lock(projectID)
	lock.Lock()
	defer lock.Unlock()

	t, err := p.load(projectID)
	if err != nil {
		return nil, err
	}
	if err := t.RequireState(task.StateNew, task.StateContextGathering); err != nil {
		return nil, err
	}
	for question, answer := range answers {
		t.AnswerQuestion(question, answer)
	}

	if force || p.dontKnowCount(t) >= DontKnowThreshold {
		if err := p.finalizeContext(ctx, t); err != nil {
			return nil, err
		}
		if err := p.store.SaveTask(projectID, t); err != nil {
			return nil, err
		}
		return &ContextResult{Sufficient: true, Task: t}, nil
	}

	res, err := p.facade.AnalyzeContextSufficiency(ctx, t)
	if err != nil {
		return nil, err
	}
	if res.Sufficient {
		if err := p.finalizeContext(ctx, t); err != nil {
			return nil, err
		}
		if err := p.store.SaveTask(projectID, t); err != nil {
			return nil, err
		}
		return &ContextResult{Sufficient: true, Task: t}, nil
	}

	for _, q := range res.Questions {
		t.AnswerQuestion(q, "")
	}
	if err := t.Transition(task.StateContextGathering); err != nil {
		return nil, err
	}
	if err := p.store.SaveTask(projectID, t); err != nil {
		return nil, err
	}
	return &ContextResult{Sufficient: false, Questions: t.PendingQuestions(), Task: t}, nil
}

// finalizeContext summarizes everything gathered and arms the task for scope
// formulation.
func (p *Pipeline) finalizeContext(ctx context.Context, t *task.Task) error {
	summary, err := p.facade.SummarizeContext(ctx, t, "")
	if err != nil {
		return err
	}
	t.Task = summary.Task
	t.Context = summary.Context
	t.IsContextSufficient = true
	return t.Transition(task.StateContextGathered)
}

func (p *Pipeline) dontKnowCount(t *task.Task) int {
	count := 0
	for _, qa := range t.ContextAnswers {
		if qa.Answer == "" {
			continue
		}
		normalized := strings.ToLower(strings.TrimSpace(qa.Answer))
		for _, marker := range p.dontKnowMarkers {
			if strings.Contains(normalized, marker) {
				count++
				break
			}
		}
	}
	return count
}

// EditContext re-summarizes the gathered context per user feedback. The task
// stays in CONTEXT_GATHERED.
func (p *Pipeline) EditContext(ctx context.Context, projectID, feedback string) (*task.Task, error) {
	lock := p.store.Lock(projectID)
	lock.Lock()
	defer lock.Unlock()

	t, err := p.load(projectID)
	if err != nil {
		return nil, err
	}
	if err := t.RequireState(task.StateContextGathered); err != nil {
		return nil, err
	}
	summary, err := p.facade.SummarizeContext(ctx, t, feedback)
	if err != nil {
		return nil, err
	}
	t.Task = summary.Task
	t.Context = summary.Context
	t.Touch()
	if err := p.store.SaveTask(projectID, t); err != nil {
		return nil, err
	}
	return t, nil
}

// FormulateQuestions produces the clarifying questions for one scope
// dimension, entering TASK_FORMATION on first use.
func (p *Pipeline) FormulateQuestions(ctx context.Context, projectID string, dim task.ScopeDimension) ([]agents.ScopeQuestion, error) {
	lock := p.store.Lock(projectID)
	lock.Lock()
	defer lock.Unlock()

	t, err := p.load(projectID)
	if err != nil {
		return nil, err
	}
	if err := t.RequireState(task.StateContextGathered, task.StateTaskFormation); err != nil {
		return nil, err
	}
	if t.State == task.StateContextGathered {
		if err := t.Transition(task.StateTaskFormation); err != nil {
			return nil, err
		}
	}
	questions, err := p.facade.FormulateScopeQuestions(ctx, t, dim)
	if err != nil {
		return nil, err
	}
	if err := p.store.SaveTask(projectID, t); err != nil {
		return nil, err
	}
	return questions, nil
}

// SubmitDimension locks one dimension's answers. Locked dimensions become
// visible context for every later dimension.
func (p *Pipeline) SubmitDimension(ctx context.Context, projectID string, dim task.ScopeDimension, answers []task.ScopeAnswer) (*task.Task, error) {
	lock := p.store.Lock(projectID)
	lock.Lock()
	defer lock.Unlock()

	t, err := p.load(projectID)
	if err != nil {
		return nil, err
	}
	if err := t.RequireState(task.StateTaskFormation); err != nil {
		return nil, err
	}
	if len(answers) == 0 {
		return nil, framework.Validationf("dimension %s needs at least one answer", dim)
	}
	if t.Scope == nil {
		t.Scope = &task.Scope{}
	}
	texts := make([]string, 0, len(answers))
	for _, a := range answers {
		texts = append(texts, a.Answer)
	}
	t.Scope.SetDimension(dim, strings.Join(texts, " "))
	t.Scope.Dimensions = append(t.Scope.Dimensions, task.DimensionScope{
		Dimension: dim,
		Answers:   answers,
		UpdatedAt: t.UpdatedAt,
	})
	t.Touch()
	if err := p.store.SaveTask(projectID, t); err != nil {
		return nil, err
	}
	return t, nil
}

// GenerateDraftScope composes the locked dimensions into a draft scope. All
// six dimensions must be answered first.
func (p *Pipeline) GenerateDraftScope(ctx context.Context, projectID string) (*task.Task, error) {
	lock := p.store.Lock(projectID)
	lock.Lock()
	defer lock.Unlock()

	t, err := p.load(projectID)
	if err != nil {
		return nil, err
	}
	if err := t.RequireState(task.StateTaskFormation); err != nil {
		return nil, err
	}
	if t.Scope == nil {
		return nil, framework.Validationf("no scope dimensions answered yet")
	}
	for _, d := range task.ScopeDimensions() {
		if t.Scope.Dimension(d) == "" {
			return nil, framework.Validationf("dimension %s not yet answered", d)
		}
	}
	draft, err := p.facade.GenerateDraftScope(ctx, t)
	if err != nil {
		return nil, err
	}
	t.Scope.Draft = draft.Scope
	t.Scope.ValidationCriteria = draft.ValidationCriteria
	t.Scope.Status = "pending"
	t.Touch()
	if err := p.store.SaveTask(projectID, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ApproveScope either accepts the draft, returning the task to
// CONTEXT_GATHERED armed for IFR generation, or revises it per feedback and
// leaves it pending.
func (p *Pipeline) ApproveScope(ctx context.Context, projectID string, approved bool, feedback string) (*task.Task, []string, error) {
	lock := p.store.Lock(projectID)
	lock.Lock()
	defer lock.Unlock()

	t, err := p.load(projectID)
	if err != nil {
		return nil, nil, err
	}
	if err := t.RequireState(task.StateTaskFormation); err != nil {
		return nil, nil, err
	}
	if t.Scope == nil || t.Scope.Draft == "" {
		return nil, nil, framework.Validationf("no draft scope to approve")
	}

	var changes []string
	if approved {
		t.Scope.Status = "approved"
		if err := t.Transition(task.StateContextGathered); err != nil {
			return nil, nil, err
		}
	} else {
		if strings.TrimSpace(feedback) == "" {
			return nil, nil, framework.Validationf("rejection requires feedback")
		}
		revision, err := p.facade.ValidateScope(ctx, t, feedback)
		if err != nil {
			return nil, nil, err
		}
		t.Scope.Draft = revision.UpdatedScope
		t.Scope.FeedbackLog = append(t.Scope.FeedbackLog, feedback)
		t.Scope.Status = "pending"
		changes = revision.Changes
		t.Touch()
	}
	if err := p.store.SaveTask(projectID, t); err != nil {
		return nil, nil, err
	}
	return t, changes, nil
}

// GenerateIFR derives the ideal final result from the approved scope.
func (p *Pipeline) GenerateIFR(ctx context.Context, projectID string) (*task.Task, error) {
	lock := p.store.Lock(projectID)
	lock.Lock()
	defer lock.Unlock()

	t, err := p.load(projectID)
	if err != nil {
		return nil, err
	}
	if err := t.RequireState(task.StateContextGathered); err != nil {
		return nil, err
	}
	if t.Scope == nil || t.Scope.Status != "approved" {
		return nil, framework.Validationf("scope must be approved before IFR generation")
	}
	ifr, err := p.facade.GenerateIFR(ctx, t)
	if err != nil {
		return nil, err
	}
	t.IFR = ifr
	if err := t.Transition(task.StateIFRGenerated); err != nil {
		return nil, err
	}
	if err := p.store.SaveTask(projectID, t); err != nil {
		return nil, err
	}
	return t, nil
}

// DefineRequirements derives requirements from scope plus IFR.
func (p *Pipeline) DefineRequirements(ctx context.Context, projectID string) (*task.Task, error) {
	lock := p.store.Lock(projectID)
	lock.Lock()
	defer lock.Unlock()

	t, err := p.load(projectID)
	if err != nil {
		return nil, err
	}
	if err := t.RequireState(task.StateIFRGenerated); err != nil {
		return nil, err
	}
	reqs, err := p.facade.DefineRequirements(ctx, t)
	if err != nil {
		return nil, err
	}
	t.Requirements = reqs
	if err := t.Transition(task.StateRequirementsDefined); err != nil {
		return nil, err
	}
	if err := p.store.SaveTask(projectID, t); err != nil {
		return nil, err
	}
	return t, nil
}

// GenerateNetworkPlan runs the creator/critic loop and stores the winning
// plan. With force, an already generated plan may be regenerated from
// scratch; any existing decomposition is discarded with it.
func (p *Pipeline) GenerateNetworkPlan(ctx context.Context, projectID string, force bool) (*task.Task, error) {
	lock := p.store.Lock(projectID)
	lock.Lock()
	defer lock.Unlock()

	t, err := p.load(projectID)
	if err != nil {
		return nil, err
	}
	allowed := []task.State{task.StateRequirementsDefined}
	if force {
		allowed = append(allowed, task.StateNetworkPlanGenerated)
	}
	if err := t.RequireState(allowed...); err != nil {
		return nil, err
	}
	plan, err := p.facade.GenerateNetworkPlan(ctx, t)
	if err != nil {
		return nil, err
	}
	t.NetworkPlan = plan
	if err := t.ValidatePlan(); err != nil {
		return nil, err
	}
	if err := t.Transition(task.StateNetworkPlanGenerated); err != nil {
		return nil, err
	}
	if err := p.store.SaveTask(projectID, t); err != nil {
		return nil, err
	}
	for i := range plan.Stages {
		if err := p.store.SaveStage(projectID, &plan.Stages[i]); err != nil {
			p.log.Warn("stage sidecar write failed",
				zap.String("stage", plan.Stages[i].ID), zap.Error(err))
		}
	}
	return t, nil
}
