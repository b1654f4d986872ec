package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/civicsignal/billscan-cli/internal/model"
	"github.com/civicsignal/billscan-cli/internal/resilience"
	"github.com/civicsignal/billscan-cli/internal/store"
)

// Runner executes one stage over one bill: work-list computation, bounded
// parallelism, per-item failure isolation, and checkpointing.
type Runner struct {
	store       store.Store
	batchSize   int
	concurrency int
	force       bool
	dryRun      bool
}

// RunnerOptions configures stage execution.
type RunnerOptions struct {
	// BatchSize is the checkpoint cadence in successful items. Default 10.
	BatchSize int
	// Concurrency bounds the worker pool. Default 4.
	Concurrency int
	// Force re-annotates items that are already complete.
	Force bool
	// DryRun executes stages and reports results but skips persistence.
	// Annotators are still called; nothing reaches the store.
	DryRun bool
}

// NewRunner builds a Runner backed by st.
func NewRunner(st store.Store, opts RunnerOptions) *Runner {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Runner{
		store:       st,
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
		force:       opts.Force,
		dryRun:      opts.DryRun,
	}
}

// RunStage executes stage over bill, mutating bill in place and persisting
// checkpoints. Item failures are recorded in the result, not returned; the
// error return is reserved for run-level failures (a checkpoint that cannot
// be saved after retries, or a cancelled context).
func (r *Runner) RunStage(ctx context.Context, bill *model.Bill, stage *Stage) (res model.StageResult, err error) {
	res = model.StageResult{Name: stage.Name}
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start).Milliseconds()
	}()

	log := zap.L().With(zap.String("stage", stage.Name), zap.String("bill", bill.ID))

	if stage.billLevel() {
		err = r.runBillStage(ctx, log, bill, stage, &res)
		return res, err
	}

	// Work list: in-scope and (forced or not yet complete). Items already
	// carrying the output are skipped; out-of-scope sections are not counted.
	var work []string
	for i := range bill.Sections {
		sec := &bill.Sections[i]
		if !stage.Selector(sec) {
			continue
		}
		if stage.Done(sec) && !r.force {
			res.Skipped++
			continue
		}
		work = append(work, sec.ID)
	}
	res.Attempted = len(work)

	if len(work) == 0 {
		log.Info("stage: nothing to do", zap.Int("skipped", res.Skipped))
		return res, nil
	}
	log.Info("stage: starting",
		zap.Int("pending", len(work)),
		zap.Int("skipped", res.Skipped),
		zap.Int("concurrency", r.concurrency),
		zap.Bool("dry_run", r.dryRun),
	)

	var (
		mu        sync.Mutex
		unflushed int
		saveErr   error
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, id := range work {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			sec := bill.SectionByID(id)

			apply, err := stage.Apply(gCtx, bill, *sec)
			if err != nil {
				log.Warn("stage: item failed", zap.String("section", id), zap.Error(err))
				mu.Lock()
				res.Failed++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			apply(bill)
			res.Succeeded++
			unflushed++
			if unflushed >= r.batchSize && saveErr == nil {
				if err := r.checkpoint(gCtx, bill); err != nil {
					saveErr = err
					return err
				}
				unflushed = 0
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if saveErr != nil {
			return res, eris.Wrapf(saveErr, "stage %s: checkpoint", stage.Name)
		}
		return res, eris.Wrapf(err, "stage %s", stage.Name)
	}

	if unflushed > 0 {
		if err := r.checkpoint(ctx, bill); err != nil {
			return res, eris.Wrapf(err, "stage %s: final checkpoint", stage.Name)
		}
	}

	log.Info("stage: finished",
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// runBillStage handles a single-item bill-level stage.
func (r *Runner) runBillStage(ctx context.Context, log *zap.Logger, bill *model.Bill, stage *Stage, res *model.StageResult) error {
	if stage.BillDone(bill) && !r.force {
		res.Skipped = 1
		log.Info("stage: already complete")
		return nil
	}
	res.Attempted = 1

	apply, err := stage.ApplyBill(ctx, bill)
	if err != nil {
		res.Failed = 1
		log.Warn("stage: failed", zap.Error(err))
		return nil
	}
	apply(bill)
	res.Succeeded = 1

	if err := r.checkpoint(ctx, bill); err != nil {
		return eris.Wrapf(err, "stage %s: checkpoint", stage.Name)
	}
	log.Info("stage: finished")
	return nil
}

// checkpoint persists the document, retrying with backoff. A checkpoint that
// fails after retries surfaces as a run-level error. Dry-run keeps the
// in-memory merge and skips the save.
func (r *Runner) checkpoint(ctx context.Context, bill *model.Bill) error {
	if r.dryRun {
		return nil
	}
	cfg := resilience.DefaultRetryConfig()
	// Storage failures get a second chance regardless of error class.
	cfg.ShouldRetry = func(error) bool { return true }
	cfg.OnRetry = resilience.RetryLogger("store", "save")
	return resilience.Do(ctx, cfg, func(ctx context.Context) error {
		return r.store.SaveBill(ctx, bill)
	})
}
