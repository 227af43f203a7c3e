package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/lexcodex/planform/framework"
	"github.com/lexcodex/planform/llm"
	"github.com/lexcodex/planform/task"
)

// MaxPlanIterations bounds the creator/critic loop. On reaching the cap the
// last produced plan wins, whatever the critic thought of it.
const MaxPlanIterations = 3

// AcceptScore is the minimum critic score that lets a plan through.
const AcceptScore = 8

type planAction int

const (
	actionCreate planAction = iota
	actionCritic
	actionStop
)

// CriticVerdict is the critic's judgement of one plan.
type CriticVerdict struct {
	Score            int      `json:"score"`
	NeedsImprovement bool     `json:"needs_improvement"`
	Feedback         string   `json:"feedback"`
	Issues           []string `json:"issues"`
}

// Accepted reports whether the verdict lets the plan through.
func (v *CriticVerdict) Accepted() bool {
	return !v.NeedsImprovement && v.Score >= AcceptScore
}

// GenerateNetworkPlan runs the bounded creator/critic loop: the creator
// drafts a stage graph, the critic scores it, and low scores feed the
// feedback back into another creation round. Any LLM error mid-loop falls
// back to the last good plan; only when no plan exists yet does the whole
// call fail.
func (f *PlanningFacade) GenerateNetworkPlan(ctx context.Context, t *task.Task) (*task.NetworkPlan, error) {
	var (
		lastPlan    *task.NetworkPlan
		lastVerdict *CriticVerdict
		lastErr     error
	)
	action := actionCreate
	for iteration := 0; iteration < MaxPlanIterations; iteration++ {
		switch action {
		case actionCreate:
			plan, err := f.createPlan(ctx, t, lastPlan, lastVerdict)
			if err != nil {
				lastErr = err
				if lastPlan != nil {
					f.log.Warn("plan creation failed, keeping previous plan", zap.Error(err))
					return lastPlan, nil
				}
				return nil, err
			}
			lastPlan = plan
			action = actionCritic
		case actionCritic:
			verdict, err := f.critiquePlan(ctx, lastPlan)
			if err != nil {
				f.log.Warn("critic failed, accepting current plan", zap.Error(err))
				return lastPlan, nil
			}
			lastVerdict = verdict
			f.log.Info("plan critiqued",
				zap.Int("score", verdict.Score),
				zap.Bool("needs_improvement", verdict.NeedsImprovement))
			if verdict.Accepted() {
				return lastPlan, nil
			}
			action = actionCreate
		case actionStop:
			return lastPlan, nil
		}
	}
	if lastPlan != nil {
		return lastPlan, nil
	}
	return nil, framework.AgentErr("network plan generation produced no plan", lastErr)
}

func (f *PlanningFacade) createPlan(ctx context.Context, t *task.Task, prev *task.NetworkPlan, verdict *CriticVerdict) (*task.NetworkPlan, error) {
	schema := llm.ObjectSchema(map[string]interface{}{
		"summary": llm.StringSchema(),
		"stages": llm.ArraySchema(llm.ObjectSchema(map[string]interface{}{
			"name":        llm.StringSchema(),
			"description": llm.StringSchema(),
			"result":      llm.StringArraySchema(),
		})),
		"connections": llm.ArraySchema(llm.ObjectSchema(map[string]interface{}{
			"stage1": llm.StringSchema(),
			"stage2": llm.StringSchema(),
		})),
	})
	user := taskBrief(t) + scopeBrief(t) + ifrBrief(t) + requirementsBrief(t) +
		"\nProduce a network plan: the ordered stages needed to complete the task, " +
		"with connections naming which stage feeds which."
	if prev != nil && verdict != nil {
		prevJSON, _ := json.Marshal(prev)
		user += "\nPrevious plan:\n" + string(prevJSON) +
			fmt.Sprintf("\nThe reviewer scored it %d/10 and said: %s\nProduce an improved plan.", verdict.Score, verdict.Feedback)
	}
	var out task.NetworkPlan
	if err := f.caller.Call(ctx, plannerSystem, user, schema, &out); err != nil {
		return nil, err
	}
	stampPlanIDs(&out)
	return &out, nil
}

func (f *PlanningFacade) critiquePlan(ctx context.Context, plan *task.NetworkPlan) (*CriticVerdict, error) {
	schema := llm.ObjectSchema(map[string]interface{}{
		"score":             map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 10},
		"needs_improvement": map[string]interface{}{"type": "boolean"},
		"feedback":          llm.StringSchema(),
		"issues":            llm.StringArraySchema(),
	})
	planJSON, _ := json.Marshal(plan)
	user := "Review this network plan for completeness, ordering, and missing stages. " +
		"Score it 1-10 and state whether it needs improvement.\n" + string(planJSON)
	var out CriticVerdict
	if err := f.caller.Call(ctx, criticSystem, user, schema, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// stampPlanIDs assigns canonical stage IDs in order and rewrites connection
// endpoints that name stages rather than IDs.
func stampPlanIDs(plan *task.NetworkPlan) {
	names := make(map[string]string, len(plan.Stages))
	for i := range plan.Stages {
		plan.Stages[i].ID = task.StageIDFor(i + 1)
		names[plan.Stages[i].Name] = plan.Stages[i].ID
	}
	kept := plan.Connections[:0]
	for _, c := range plan.Connections {
		if id, ok := names[c.From]; ok {
			c.From = id
		}
		if id, ok := names[c.To]; ok {
			c.To = id
		}
		if validStageID(plan, c.From) && validStageID(plan, c.To) {
			kept = append(kept, c)
		}
	}
	plan.Connections = kept
}

func validStageID(plan *task.NetworkPlan, id string) bool {
	for i := range plan.Stages {
		if plan.Stages[i].ID == id {
			return true
		}
	}
	return false
}

func requirementsBrief(t *task.Task) string {
	if t.Requirements == nil || len(t.Requirements.Requirements) == 0 {
		return ""
	}
	out := "Requirements:\n"
	for _, r := range t.Requirements.Requirements {
		out += "- " + r + "\n"
	}
	return out
}

const (
	plannerSystem = "You design network plans: ordered stage graphs that take a task from start to completion. Reply with JSON only."
	criticSystem  = "You review network plans and score them honestly. Reply with JSON only."
)
