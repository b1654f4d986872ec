package annotate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/civicsignal/billscan-cli/internal/model"
	"github.com/civicsignal/billscan-cli/internal/resilience"
	"github.com/civicsignal/billscan-cli/pkg/anthropic"
)

const (
	categorizeSystem = `You are a legislative analyst sorting bill sections.
Classify the section as exactly one of: "provision" (operative text that
creates, amends or repeals rules), "preamble" (recitals, purpose statements,
findings), or "metadata" (titles, tables of contents, enactment formulas,
signatures).

Respond with a JSON object only:
{"type": "<provision|preamble|metadata>", "reasoning": "<one sentence>"}`

	summarizeSystem = `You are a legislative analyst. Summarize the operative
effect of the provision below in two to four plain-language sentences. State
what the provision requires, permits or prohibits, and who it applies to. Do
not editorialize. Respond with the summary text only, no preamble.`

	executiveSummarySystem = `You are a legislative analyst writing for a
general audience. Given the sections of a bill, write an executive summary of
three to five paragraphs covering the bill's purpose, its principal
mechanisms, and who is affected. Respond with the summary text only.`

	assessImpactSystem = `You are a policy analyst. Assess the impact of the
provision below on each of these four topics: "Digital Innovation",
"Freedom of Speech", "Privacy & Data Rights", "Business Environment".

Rate each topic on this scale, from worst to best: severe-negative,
high-negative, medium-negative, low-negative, neutral, low-positive,
medium-positive, high-positive, severe-positive.

Respond with a JSON object only:
{"levels": {"<topic>": "<level>", ...}, "reasoning": "<short paragraph>",
"confidence": <0.0-1.0>}
Include all four topics in "levels".`

	analyzeTopicSystem = `You are a policy analyst. Given the provisions of a
bill that touch one policy topic, write a cross-provision analysis of the
bill's overall effect on that topic: the combined effect, interactions
between provisions, and the net direction.

Rate the overall impact on this scale, from worst to best: severe-negative,
high-negative, medium-negative, low-negative, neutral, low-positive,
medium-positive, high-positive, severe-positive.

Respond with a JSON object only:
{"overallImpact": "<level>", "analysis": "<two to four paragraphs>"}`

	draftConcernSystem = `You are a policy analyst drafting a key concern
about one high-impact provision of a bill. Write a short, specific title
(under twelve words) and a one-paragraph description of the concern: what
the provision does, why it is harmful for the topic named, and who bears
the effect.

Respond with a JSON object only:
{"title": "<title>", "description": "<paragraph>"}`
)

// ClaudeOptions configures a Claude-backed annotator.
type ClaudeOptions struct {
	// FastModel handles per-section work: categorization, summaries and
	// impact assessments.
	FastModel string
	// SynthesisModel handles bill-level work: executive summaries, topic
	// analyses and key concerns.
	SynthesisModel string
	// RequestsPerSecond bounds the call rate across all operations.
	RequestsPerSecond float64
	Burst             int
	MaxAttempts       int
}

// ClaudeAnnotator implements Annotator against the Anthropic API.
type ClaudeAnnotator struct {
	client         anthropic.Client
	fastModel      string
	synthesisModel string
	limiter        *rate.Limiter
	retry          resilience.RetryConfig

	mu    sync.Mutex
	usage anthropic.TokenUsage
}

// NewClaude builds a Claude-backed annotator.
func NewClaude(client anthropic.Client, opts ClaudeOptions) *ClaudeAnnotator {
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	retry := resilience.DefaultRetryConfig()
	if opts.MaxAttempts > 0 {
		retry.MaxAttempts = opts.MaxAttempts
	}
	return &ClaudeAnnotator{
		client:         client,
		fastModel:      opts.FastModel,
		synthesisModel: opts.SynthesisModel,
		limiter:        rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		retry:          retry,
	}
}

// Usage returns cumulative token consumption across all calls.
func (a *ClaudeAnnotator) Usage() anthropic.TokenUsage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usage
}

// call sends one message with rate limiting and retry, and returns the
// response text.
func (a *ClaudeAnnotator) call(ctx context.Context, operation, modelID, system, user string, maxTokens int64) (string, error) {
	retry := a.retry
	retry.OnRetry = resilience.RetryLogger("anthropic", operation)

	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return a.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     modelID,
			MaxTokens: maxTokens,
			System:    anthropic.BuildCachedSystemBlocks(system),
			Messages:  []anthropic.Message{{Role: "user", Content: user}},
		})
	})
	if err != nil {
		return "", eris.Wrapf(err, "annotate: %s", operation)
	}

	a.mu.Lock()
	a.usage.Add(resp.Usage)
	a.mu.Unlock()

	text := strings.TrimSpace(anthropic.ExtractText(resp))
	if text == "" {
		return "", eris.Errorf("annotate: %s: empty response", operation)
	}
	return text, nil
}

func decodeJSON(text string, v any) error {
	return json.Unmarshal([]byte(anthropic.CleanJSON(text)), v)
}

// Categorize classifies one section.
func (a *ClaudeAnnotator) Categorize(ctx context.Context, title, preview string) (*model.Categorization, error) {
	user := fmt.Sprintf("Section title: %s\n\nSection text:\n%s", title, preview)
	text, err := a.call(ctx, "categorize", a.fastModel, categorizeSystem, user, 512)
	if err != nil {
		return nil, err
	}

	var cat model.Categorization
	if err := decodeJSON(text, &cat); err != nil {
		return nil, eris.Wrap(err, "annotate: categorize: parse response")
	}
	if !cat.Type.Valid() {
		return nil, eris.Errorf("annotate: categorize: unknown category %q", cat.Type)
	}
	return &cat, nil
}

// Summarize produces a plain-language summary of one provision.
func (a *ClaudeAnnotator) Summarize(ctx context.Context, title, content string) (string, error) {
	user := fmt.Sprintf("Provision title: %s\n\nProvision text:\n%s", title, content)
	return a.call(ctx, "summarize", a.fastModel, summarizeSystem, user, 1024)
}

// ExecutiveSummary writes a bill-level summary from the section contexts.
func (a *ClaudeAnnotator) ExecutiveSummary(ctx context.Context, billTitle string, sections []SectionContext) (string, error) {
	doc, err := json.Marshal(sections)
	if err != nil {
		return "", eris.Wrap(err, "annotate: executive summary: marshal sections")
	}
	user := fmt.Sprintf("Bill title: %s\n\nSections (JSON):\n%s", billTitle, doc)
	return a.call(ctx, "executive_summary", a.synthesisModel, executiveSummarySystem, user, 4096)
}

// AssessImpact rates one provision against every topic.
func (a *ClaudeAnnotator) AssessImpact(ctx context.Context, billContext, title, content string) (*model.Impact, error) {
	user := fmt.Sprintf("Bill context:\n%s\n\nProvision title: %s\n\nProvision text:\n%s", billContext, title, content)
	text, err := a.call(ctx, "assess_impact", a.fastModel, assessImpactSystem, user, 2048)
	if err != nil {
		return nil, err
	}

	var impact model.Impact
	if err := decodeJSON(text, &impact); err != nil {
		return nil, eris.Wrap(err, "annotate: assess impact: parse response")
	}
	for _, topic := range model.AllTopics() {
		level, ok := impact.Levels[topic]
		if !ok {
			return nil, eris.Errorf("annotate: assess impact: missing topic %q", topic)
		}
		if !level.Valid() {
			return nil, eris.Errorf("annotate: assess impact: unknown level %q for topic %q", level, topic)
		}
	}
	if impact.Confidence < 0 || impact.Confidence > 1 {
		return nil, eris.Errorf("annotate: assess impact: confidence %v out of range", impact.Confidence)
	}
	return &impact, nil
}

// AnalyzeTopic writes a cross-provision analysis for one topic.
func (a *ClaudeAnnotator) AnalyzeTopic(ctx context.Context, req TopicAnalysisRequest) (*model.TopicAnalysis, error) {
	doc, err := json.Marshal(req.Provisions)
	if err != nil {
		return nil, eris.Wrap(err, "annotate: analyze topic: marshal provisions")
	}
	user := fmt.Sprintf("Bill title: %s\n\nBill context:\n%s\n\nTopic: %s\n\nProvisions (JSON):\n%s",
		req.BillTitle, req.BillContext, req.Topic, doc)
	text, err := a.call(ctx, "analyze_topic", a.synthesisModel, analyzeTopicSystem, user, 4096)
	if err != nil {
		return nil, err
	}

	var out struct {
		OverallImpact model.ImpactLevel `json:"overallImpact"`
		Analysis      string            `json:"analysis"`
	}
	if err := decodeJSON(text, &out); err != nil {
		return nil, eris.Wrap(err, "annotate: analyze topic: parse response")
	}
	if !out.OverallImpact.Valid() {
		return nil, eris.Errorf("annotate: analyze topic: unknown level %q", out.OverallImpact)
	}
	if out.Analysis == "" {
		return nil, eris.New("annotate: analyze topic: empty analysis")
	}

	related := make([]string, 0, len(req.Provisions))
	for _, p := range req.Provisions {
		related = append(related, p.ID)
	}
	return &model.TopicAnalysis{
		OverallImpact:      out.OverallImpact,
		Analysis:           out.Analysis,
		AffectedProvisions: len(req.Provisions),
		RelatedProvisions:  related,
	}, nil
}

// DraftConcern writes one key concern from one high-impact provision.
func (a *ClaudeAnnotator) DraftConcern(ctx context.Context, req ConcernRequest) (*model.KeyConcern, error) {
	user := fmt.Sprintf(`Bill context:
%s

Topic: %s
Impact level: %s
Impact reasoning: %s

Provision title: %s

Provision summary:
%s

Provision text:
%s`, req.BillContext, req.Topic, req.ImpactLevel, req.ImpactReasoning,
		req.ProvisionTitle, req.ProvisionSummary, req.ProvisionText)

	text, err := a.call(ctx, "draft_concern", a.synthesisModel, draftConcernSystem, user, 1024)
	if err != nil {
		return nil, err
	}

	var out struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := decodeJSON(text, &out); err != nil {
		return nil, eris.Wrap(err, "annotate: draft concern: parse response")
	}
	if out.Title == "" || out.Description == "" {
		return nil, eris.New("annotate: draft concern: missing title or description")
	}

	return &model.KeyConcern{
		ID:                model.Slugify(out.Title),
		Title:             out.Title,
		Severity:          severityFor(req.ImpactLevel),
		Description:       out.Description,
		RelatedProvisions: []string{req.ProvisionID},
	}, nil
}

// severityFor maps the provision's worst negative impact level onto the
// concern severity scale.
func severityFor(level model.ImpactLevel) model.Severity {
	switch level {
	case model.ImpactSevereNegative:
		return model.SeverityCritical
	case model.ImpactHighNegative:
		return model.SeverityHigh
	case model.ImpactMediumNegative:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}
