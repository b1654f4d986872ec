package annotate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/civicsignal/billscan-cli/internal/model"
	"github.com/civicsignal/billscan-cli/pkg/anthropic"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 20},
	}
}

func newTestAnnotator(client anthropic.Client) *ClaudeAnnotator {
	return NewClaude(client, ClaudeOptions{
		FastModel:         "fast-model",
		SynthesisModel:    "synthesis-model",
		RequestsPerSecond: 1000,
		Burst:             1000,
		MaxAttempts:       1,
	})
}

func TestClaudeAnnotator_Categorize(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "fast-model"
	})).Return(textResponse(`{"type": "provision", "reasoning": "imposes duties"}`), nil).Once()

	ann := newTestAnnotator(client)
	cat, err := ann.Categorize(context.Background(), "Data duties", "A covered entity shall...")
	require.NoError(t, err)
	assert.Equal(t, model.CategoryProvision, cat.Type)
	assert.Equal(t, "imposes duties", cat.Reasoning)
	client.AssertExpectations(t)
}

func TestClaudeAnnotator_Categorize_Fenced(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("```json\n{\"type\": \"preamble\"}\n```"), nil).Once()

	ann := newTestAnnotator(client)
	cat, err := ann.Categorize(context.Background(), "Findings", "Congress finds...")
	require.NoError(t, err)
	assert.Equal(t, model.CategoryPreamble, cat.Type)
}

func TestClaudeAnnotator_Categorize_UnknownCategory(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"type": "chapter"}`), nil).Once()

	ann := newTestAnnotator(client)
	_, err := ann.Categorize(context.Background(), "Title", "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")
}

func TestClaudeAnnotator_Summarize_UsesFastModel(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "fast-model"
	})).Return(textResponse("The provision requires covered entities to report."), nil).Once()

	ann := newTestAnnotator(client)
	summary, err := ann.Summarize(context.Background(), "Reporting", "A covered entity shall report...")
	require.NoError(t, err)
	assert.Equal(t, "The provision requires covered entities to report.", summary)
	client.AssertExpectations(t)
}

func TestClaudeAnnotator_ExecutiveSummary_UsesSynthesisModel(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "synthesis-model"
	})).Return(textResponse("This bill establishes..."), nil).Once()

	ann := newTestAnnotator(client)
	summary, err := ann.ExecutiveSummary(context.Background(), "Data Act", []SectionContext{
		{Type: "provision", Title: "Duties", Summary: "Requires reporting."},
	})
	require.NoError(t, err)
	assert.Equal(t, "This bill establishes...", summary)
	client.AssertExpectations(t)
}

func TestClaudeAnnotator_AssessImpact(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{
			"levels": {
				"Digital Innovation": "medium-negative",
				"Freedom of Speech": "neutral",
				"Privacy & Data Rights": "high-positive",
				"Business Environment": "low-negative"
			},
			"reasoning": "trade-off between compliance cost and privacy gains",
			"confidence": 0.85
		}`), nil).Once()

	ann := newTestAnnotator(client)
	impact, err := ann.AssessImpact(context.Background(), "bill context", "Duties", "text")
	require.NoError(t, err)
	assert.Equal(t, model.ImpactHighPositive, impact.Levels[model.TopicPrivacyDataRights])
	assert.InDelta(t, 0.85, impact.Confidence, 1e-9)
}

func TestClaudeAnnotator_AssessImpact_MissingTopic(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"levels": {"Digital Innovation": "neutral"}, "confidence": 0.5}`), nil).Once()

	ann := newTestAnnotator(client)
	_, err := ann.AssessImpact(context.Background(), "ctx", "Duties", "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing topic")
}

func TestClaudeAnnotator_AssessImpact_BadConfidence(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{
			"levels": {
				"Digital Innovation": "neutral",
				"Freedom of Speech": "neutral",
				"Privacy & Data Rights": "neutral",
				"Business Environment": "neutral"
			},
			"confidence": 1.7
		}`), nil).Once()

	ann := newTestAnnotator(client)
	_, err := ann.AssessImpact(context.Background(), "ctx", "Duties", "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestClaudeAnnotator_AnalyzeTopic(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "synthesis-model"
	})).Return(textResponse(`{"overallImpact": "high-negative", "analysis": "Taken together..."}`), nil).Once()

	ann := newTestAnnotator(client)
	analysis, err := ann.AnalyzeTopic(context.Background(), TopicAnalysisRequest{
		BillTitle:   "Data Act",
		BillContext: "ctx",
		Topic:       model.TopicFreedomOfSpeech,
		Provisions: []ProvisionExcerpt{
			{ID: "s003", Title: "Duties", RawText: "text", ImpactLevel: model.ImpactHighNegative},
			{ID: "s007", Title: "Penalties", RawText: "text", ImpactLevel: model.ImpactSevereNegative},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ImpactHighNegative, analysis.OverallImpact)
	assert.Equal(t, 2, analysis.AffectedProvisions)
	assert.Equal(t, []string{"s003", "s007"}, analysis.RelatedProvisions)
	client.AssertExpectations(t)
}

func TestClaudeAnnotator_DraftConcern(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"title": "Broad Content Removal Mandate", "description": "The provision compels..."}`), nil).Once()

	ann := newTestAnnotator(client)
	concern, err := ann.DraftConcern(context.Background(), ConcernRequest{
		BillContext:    "ctx",
		Topic:          model.TopicFreedomOfSpeech,
		ProvisionID:    "s003",
		ProvisionTitle: "Content removal",
		ImpactLevel:    model.ImpactSevereNegative,
	})
	require.NoError(t, err)
	assert.Equal(t, "broad-content-removal-mandate", concern.ID)
	assert.Equal(t, model.SeverityCritical, concern.Severity)
	assert.Equal(t, []string{"s003"}, concern.RelatedProvisions)
}

func TestClaudeAnnotator_DraftConcern_MissingFields(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"title": "", "description": ""}`), nil).Once()

	ann := newTestAnnotator(client)
	_, err := ann.DraftConcern(context.Background(), ConcernRequest{ProvisionID: "s003", ImpactLevel: model.ImpactHighNegative})
	require.Error(t, err)
}

func TestSeverityFor(t *testing.T) {
	assert.Equal(t, model.SeverityCritical, severityFor(model.ImpactSevereNegative))
	assert.Equal(t, model.SeverityHigh, severityFor(model.ImpactHighNegative))
	assert.Equal(t, model.SeverityMedium, severityFor(model.ImpactMediumNegative))
	assert.Equal(t, model.SeverityLow, severityFor(model.ImpactNeutral))
}

func TestClaudeAnnotator_TracksUsage(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("a summary"), nil).Twice()

	ann := newTestAnnotator(client)
	ctx := context.Background()
	_, err := ann.Summarize(ctx, "a", "b")
	require.NoError(t, err)
	_, err = ann.Summarize(ctx, "c", "d")
	require.NoError(t, err)

	usage := ann.Usage()
	assert.Equal(t, int64(200), usage.InputTokens)
	assert.Equal(t, int64(40), usage.OutputTokens)
}
