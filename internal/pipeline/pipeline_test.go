package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/civicsignal/billscan-cli/internal/model"
	"github.com/civicsignal/billscan-cli/internal/store"
)

func successAnnotator(sections int) *mockAnnotator {
	ann := &mockAnnotator{}
	ann.On("Categorize", mock.Anything, mock.Anything, mock.Anything).
		Return(provisionCategory(), nil).Times(sections)
	ann.On("Summarize", mock.Anything, mock.Anything, mock.Anything).
		Return("plain summary", nil).Times(sections)
	ann.On("ExecutiveSummary", mock.Anything, mock.Anything, mock.Anything).
		Return("executive summary", nil).Once()
	ann.On("AssessImpact", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(neutralImpact(0.9), nil).Times(sections)
	return ann
}

func TestPipeline_Run_FullSuccess(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.SaveBill(ctx, uncategorizedBill("hr-1", 3)))

	// Neutral impacts mean no topic analyses and no concerns, so neither
	// synthesis call fires.
	ann := successAnnotator(3)

	p := New(st, ann, RunnerOptions{Concurrency: 2})
	result, err := p.Run(ctx, "hr-1")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeSuccess, result.Outcome)
	assert.Empty(t, result.Error)
	assert.NotEmpty(t, result.RunID)
	require.Len(t, result.Stages, 7)
	assert.Equal(t, 0, result.TotalFailed())

	saved, err := st.LoadBill(ctx, "hr-1")
	require.NoError(t, err)
	assert.True(t, saved.AllCategorized())
	assert.True(t, saved.ProvisionsSummarized())
	assert.True(t, saved.ProvisionsAssessed())
	assert.Equal(t, "executive summary", saved.ExecutiveSummary)
	assert.NotNil(t, saved.ImpactAnalyses)
	assert.NotNil(t, saved.KeyConcerns)
	require.NotNil(t, saved.Meta)
	assert.Equal(t, 3, saved.Meta.Statistics.Provisions)
	ann.AssertExpectations(t)
}

func TestPipeline_Run_DryRunExecutesEveryStage(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.SaveBill(ctx, uncategorizedBill("hr-dry", 3)))
	st.saves = 0

	// A fresh bill clears every prerequisite gate because dry-run results
	// accumulate in memory; only persistence is suppressed.
	ann := successAnnotator(3)

	p := New(st, ann, RunnerOptions{DryRun: true})
	result, err := p.Run(ctx, "hr-dry")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeSuccess, result.Outcome)
	require.Len(t, result.Stages, 7)
	assert.Equal(t, 3, result.Stages[0].Succeeded)

	assert.Equal(t, 0, st.saveCount())
	saved, err := st.LoadBill(ctx, "hr-dry")
	require.NoError(t, err)
	assert.False(t, saved.AllCategorized())
	assert.Empty(t, saved.ExecutiveSummary)
	ann.AssertExpectations(t)
}

func TestPipeline_Run_SecondRunSkipsEverything(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.SaveBill(ctx, uncategorizedBill("hr-2", 2)))

	first := successAnnotator(2)
	p := New(st, first, RunnerOptions{})
	_, err := p.Run(ctx, "hr-2")
	require.NoError(t, err)

	// A fresh annotator with no expectations: any call would fail the test.
	second := &mockAnnotator{}
	p2 := New(st, second, RunnerOptions{})
	result, err := p2.Run(ctx, "hr-2")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeSuccess, result.Outcome)
	for _, sr := range result.Stages {
		assert.Zero(t, sr.Attempted, sr.Name)
		assert.NotZero(t, sr.Skipped, sr.Name)
	}
	second.AssertExpectations(t)
}

func TestPipeline_Run_ItemFailureThenAbortAtPrereq(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	bill := categorizedBill("hr-3", 2)
	bill.Sections[1].Title = "poison"
	require.NoError(t, st.SaveBill(ctx, bill))

	ann := &mockAnnotator{}
	ann.On("Summarize", mock.Anything, "Section", mock.Anything).
		Return("plain summary", nil).Once()
	ann.On("Summarize", mock.Anything, "poison", mock.Anything).
		Return("", errors.New("model refused")).Once()

	p := New(st, ann, RunnerOptions{Concurrency: 1})
	result, err := p.Run(ctx, "hr-3")
	require.NoError(t, err)

	// The failed summary blocks the executive summary prerequisite; the run
	// stops there with the completed work checkpointed.
	assert.Equal(t, model.OutcomeAborted, result.Outcome)
	assert.Contains(t, result.Error, "prerequisite not met")
	require.Len(t, result.Stages, 2) // categorize (skipped) + summarize
	assert.Equal(t, 1, result.Stages[1].Failed)
	assert.Equal(t, 1, result.Stages[1].Succeeded)

	saved, err := st.LoadBill(ctx, "hr-3")
	require.NoError(t, err)
	assert.Equal(t, "plain summary", saved.Sections[0].Summary)
	assert.Empty(t, saved.Sections[1].Summary)
	ann.AssertExpectations(t)
}

func TestPipeline_Run_ResumeAfterFailure(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	bill := categorizedBill("hr-4", 2)
	bill.Sections[0].Summary = "already summarized"
	require.NoError(t, st.SaveBill(ctx, bill))

	ann := &mockAnnotator{}
	// Only the pending provision is summarized on resume.
	ann.On("Summarize", mock.Anything, mock.Anything, mock.Anything).
		Return("recovered summary", nil).Once()
	ann.On("ExecutiveSummary", mock.Anything, mock.Anything, mock.Anything).
		Return("executive summary", nil).Once()
	ann.On("AssessImpact", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(neutralImpact(0.9), nil).Times(2)

	p := New(st, ann, RunnerOptions{})
	result, err := p.Run(ctx, "hr-4")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeSuccess, result.Outcome)
	summarize := result.Stages[1]
	assert.Equal(t, "summarize", summarize.Name)
	assert.Equal(t, 1, summarize.Attempted)
	assert.Equal(t, 1, summarize.Skipped)

	saved, err := st.LoadBill(ctx, "hr-4")
	require.NoError(t, err)
	assert.Equal(t, "already summarized", saved.Sections[0].Summary)
	assert.Equal(t, "recovered summary", saved.Sections[1].Summary)
	ann.AssertExpectations(t)
}

func TestPipeline_Run_ExecSummaryFailureDoesNotBlockImpact(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	bill := categorizedBill("hr-12", 2)
	for i := range bill.Sections {
		bill.Sections[i].Summary = "s"
	}
	require.NoError(t, st.SaveBill(ctx, bill))

	ann := &mockAnnotator{}
	ann.On("ExecutiveSummary", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("timeout")).Once()
	// Impact runs anyway, falling back to the placeholder bill context.
	ann.On("AssessImpact", mock.Anything, noExecutiveSummary, mock.Anything, mock.Anything).
		Return(neutralImpact(0.9), nil).Times(2)

	p := New(st, ann, RunnerOptions{})
	result, err := p.Run(ctx, "hr-12")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomePartialFailure, result.Outcome)
	require.Len(t, result.Stages, 7)
	assert.Equal(t, 1, result.Stages[2].Failed)

	saved, err := st.LoadBill(ctx, "hr-12")
	require.NoError(t, err)
	assert.Empty(t, saved.ExecutiveSummary)
	assert.True(t, saved.ProvisionsAssessed())
	ann.AssertExpectations(t)
}

func TestPipeline_Run_ImpactFailureGatesSynthesis(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	bill := categorizedBill("hr-5", 2)
	for i := range bill.Sections {
		bill.Sections[i].Summary = "s"
	}
	bill.ExecutiveSummary = "exec"
	bill.Sections[1].Title = "poison"
	require.NoError(t, st.SaveBill(ctx, bill))

	ann := &mockAnnotator{}
	ann.On("AssessImpact", mock.Anything, mock.Anything, "Section", mock.Anything).
		Return(neutralImpact(0.9), nil).Once()
	ann.On("AssessImpact", mock.Anything, mock.Anything, "poison", mock.Anything).
		Return(nil, errors.New("model refused")).Once()

	p := New(st, ann, RunnerOptions{Concurrency: 1})
	result, err := p.Run(ctx, "hr-5")
	require.NoError(t, err)

	// One impact failed, so impact_analysis and key_concerns gate on the
	// unmet prerequisite and the run reports aborted after the first gate.
	assert.Equal(t, model.OutcomeAborted, result.Outcome)
	impact := result.Stages[3]
	assert.Equal(t, "impact", impact.Name)
	assert.Equal(t, 1, impact.Failed)
	ann.AssertExpectations(t)
}

func TestPipeline_Run_UnknownBill(t *testing.T) {
	st := newTestStore(t)
	p := New(st, &mockAnnotator{}, RunnerOptions{})

	_, err := p.Run(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestPipeline_RunStage_SingleStage(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.SaveBill(ctx, uncategorizedBill("hr-6", 2)))

	ann := &mockAnnotator{}
	ann.On("Categorize", mock.Anything, mock.Anything, mock.Anything).
		Return(provisionCategory(), nil).Times(2)

	p := New(st, ann, RunnerOptions{})
	result, err := p.RunStage(ctx, "hr-6", "categorize")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeSuccess, result.Outcome)
	require.Len(t, result.Stages, 1)
	assert.Equal(t, "categorize", result.Stages[0].Name)
	ann.AssertExpectations(t)
}

func TestPipeline_RunStage_PrereqGate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.SaveBill(ctx, uncategorizedBill("hr-7", 2)))

	p := New(st, &mockAnnotator{}, RunnerOptions{})
	result, err := p.RunStage(ctx, "hr-7", "summarize")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeAborted, result.Outcome)
	assert.Contains(t, result.Error, "categorize")
	assert.Empty(t, result.Stages)
}

func TestPipeline_RunStage_UnknownStage(t *testing.T) {
	st := newTestStore(t)
	p := New(st, &mockAnnotator{}, RunnerOptions{})

	_, err := p.RunStage(context.Background(), "hr-8", "transmogrify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stage")
}
