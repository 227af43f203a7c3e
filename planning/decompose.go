package planning

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lexcodex/planform/task"
)

// stageFanout bounds concurrent per-stage decomposition calls so a wide plan
// does not stampede the provider.
const stageFanout = 4

// GenerateWorkForStage decomposes one stage into work packages and persists
// the result.
func (p *Pipeline) GenerateWorkForStage(ctx context.Context, projectID, stageID string) ([]task.Work, error) {
	lock := p.store.Lock(projectID)
	lock.Lock()
	defer lock.Unlock()

	t, err := p.load(projectID)
	if err != nil {
		return nil, err
	}
	if err := t.RequireState(task.StateNetworkPlanGenerated, task.StateExecuting); err != nil {
		return nil, err
	}
	stage, err := t.StageByPath(stageID)
	if err != nil {
		return nil, err
	}
	work, err := p.facade.GenerateWorkForStage(ctx, t, stage)
	if err != nil {
		return nil, err
	}
	stage.WorkPackages = work
	t.Touch()
	if err := t.ValidatePlan(); err != nil {
		return nil, err
	}
	if err := p.store.SaveTask(projectID, t); err != nil {
		return nil, err
	}
	if err := p.store.SaveStage(projectID, stage); err != nil {
		p.log.Warn("stage sidecar write failed", zap.String("stage", stageID), zap.Error(err))
	}
	return work, nil
}

// GenerateWorkForAllStages fans the per-stage decomposition out over a
// bounded worker group. Results land in each stage's own slot, so the only
// shared write is the final save under the project lock.
func (p *Pipeline) GenerateWorkForAllStages(ctx context.Context, projectID string) (*task.Task, error) {
	lock := p.store.Lock(projectID)
	lock.Lock()
	defer lock.Unlock()

	t, err := p.load(projectID)
	if err != nil {
		return nil, err
	}
	if err := t.RequireState(task.StateNetworkPlanGenerated); err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(stageFanout)
	results := make([][]task.Work, len(t.NetworkPlan.Stages))
	for i := range t.NetworkPlan.Stages {
		i := i
		stage := t.NetworkPlan.Stages[i]
		g.Go(func() error {
			work, err := p.facade.GenerateWorkForStage(gctx, t, &stage)
			if err != nil {
				return err
			}
			results[i] = work
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i := range t.NetworkPlan.Stages {
		t.NetworkPlan.Stages[i].WorkPackages = results[i]
	}
	t.Touch()
	if err := t.ValidatePlan(); err != nil {
		return nil, err
	}
	if err := p.store.SaveTask(projectID, t); err != nil {
		return nil, err
	}
	for i := range t.NetworkPlan.Stages {
		if err := p.store.SaveStage(projectID, &t.NetworkPlan.Stages[i]); err != nil {
			p.log.Warn("stage sidecar write failed",
				zap.String("stage", t.NetworkPlan.Stages[i].ID), zap.Error(err))
		}
	}
	return t, nil
}

// GenerateTasksForWork decomposes one work package into executable tasks.
func (p *Pipeline) GenerateTasksForWork(ctx context.Context, projectID, stageID, workID string) ([]task.ExecutableTask, error) {
	lock := p.store.Lock(projectID)
	lock.Lock()
	defer lock.Unlock()

	t, err := p.load(projectID)
	if err != nil {
		return nil, err
	}
	if err := t.RequireState(task.StateNetworkPlanGenerated, task.StateExecuting); err != nil {
		return nil, err
	}
	stage, err := t.StageByPath(stageID)
	if err != nil {
		return nil, err
	}
	work, err := t.WorkByPath(stageID, workID)
	if err != nil {
		return nil, err
	}
	tasks, err := p.facade.GenerateTasksForWork(ctx, t, stage, work)
	if err != nil {
		return nil, err
	}
	work.Tasks = tasks
	t.Touch()
	if err := t.ValidatePlan(); err != nil {
		return nil, err
	}
	if err := p.store.SaveTask(projectID, t); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GenerateSubtasks decomposes one executable task into leaf subtasks.
func (p *Pipeline) GenerateSubtasks(ctx context.Context, projectID, stageID, workID, etID string) ([]task.Subtask, error) {
	lock := p.store.Lock(projectID)
	lock.Lock()
	defer lock.Unlock()

	t, err := p.load(projectID)
	if err != nil {
		return nil, err
	}
	if err := t.RequireState(task.StateNetworkPlanGenerated, task.StateExecuting); err != nil {
		return nil, err
	}
	stage, err := t.StageByPath(stageID)
	if err != nil {
		return nil, err
	}
	work, err := t.WorkByPath(stageID, workID)
	if err != nil {
		return nil, err
	}
	et, err := t.ExecutableTaskByPath(stageID, workID, etID)
	if err != nil {
		return nil, err
	}
	subtasks, err := p.facade.GenerateSubtasks(ctx, t, stage, work, et)
	if err != nil {
		return nil, err
	}
	et.Subtasks = subtasks
	t.Touch()
	if err := t.ValidatePlan(); err != nil {
		return nil, err
	}
	if err := p.store.SaveTask(projectID, t); err != nil {
		return nil, err
	}
	return subtasks, nil
}
