package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civicsignal/billscan-cli/internal/annotate"
	"github.com/civicsignal/billscan-cli/internal/model"
	"github.com/civicsignal/billscan-cli/internal/store"
)

// Pipeline orchestrates the ordered annotation stages for one bill.
type Pipeline struct {
	store     store.Store
	annotator annotate.Annotator
	runner    *Runner
	stages    []*Stage
}

// New creates a Pipeline with all dependencies.
func New(st store.Store, ann annotate.Annotator, opts RunnerOptions) *Pipeline {
	return &Pipeline{
		store:     st,
		annotator: ann,
		runner:    NewRunner(st, opts),
		stages:    Stages(ann),
	}
}

// Run executes every stage in order for the bill. Item failures degrade the
// outcome to partial_failure but never stop later stages; an unmet
// prerequisite or an unsaveable checkpoint aborts the run with the
// checkpointed state intact. The returned result is the run report; the
// error return is reserved for failures to even start (unknown bill).
func (p *Pipeline) Run(ctx context.Context, billID string) (*model.RunResult, error) {
	return p.run(ctx, billID, p.stages)
}

// RunStage executes a single named stage for the bill, with the same
// prerequisite gate as a full run.
func (p *Pipeline) RunStage(ctx context.Context, billID, stageName string) (*model.RunResult, error) {
	stage := StageByName(p.annotator, stageName)
	if stage == nil {
		return nil, eris.Errorf("pipeline: unknown stage %q", stageName)
	}
	return p.run(ctx, billID, []*Stage{stage})
}

func (p *Pipeline) run(ctx context.Context, billID string, stages []*Stage) (*model.RunResult, error) {
	bill, err := p.store.LoadBill(ctx, billID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load bill %s", billID)
	}

	result := &model.RunResult{
		RunID:     uuid.NewString(),
		BillID:    billID,
		Outcome:   model.OutcomeSuccess,
		StartedAt: time.Now().UTC(),
	}
	log := zap.L().With(
		zap.String("run_id", result.RunID),
		zap.String("bill", billID),
	)
	log.Info("pipeline: starting", zap.Int("stages", len(stages)), zap.Int("sections", len(bill.Sections)))

	for _, stage := range stages {
		if stage.Needs != nil {
			if perr := stage.Needs(bill); perr != nil {
				log.Error("pipeline: aborted", zap.String("stage", stage.Name), zap.Error(perr))
				result.Outcome = model.OutcomeAborted
				result.Error = perr.Error()
				break
			}
		}

		stageRes, err := p.runner.RunStage(ctx, bill, stage)
		result.Stages = append(result.Stages, stageRes)
		if err != nil {
			log.Error("pipeline: stage error", zap.String("stage", stage.Name), zap.Error(err))
			result.Outcome = model.OutcomeAborted
			result.Error = err.Error()
			break
		}
		if stageRes.Failed > 0 {
			result.Outcome = model.OutcomePartialFailure
		}
	}

	result.FinishedAt = time.Now().UTC()
	log.Info("pipeline: finished",
		zap.String("outcome", string(result.Outcome)),
		zap.Int("failed_items", result.TotalFailed()),
		zap.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)),
	)
	return result, nil
}
