// Package annotate defines the external inference capability the pipeline
// stages invoke per item. The pipeline guarantees each item is annotated at
// most once per run (unless forced); implementations only need to be safe to
// call repeatedly for the same item.
package annotate

import (
	"context"

	"github.com/civicsignal/billscan-cli/internal/model"
)

// SectionContext is the slice of a section handed to bill-level operations.
type SectionContext struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// ProvisionExcerpt carries one provision into a topic-level synthesis call.
type ProvisionExcerpt struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	RawText     string            `json:"rawText"`
	ImpactLevel model.ImpactLevel `json:"impactLevel"`
}

// TopicAnalysisRequest asks for a cross-provision analysis of one topic.
type TopicAnalysisRequest struct {
	BillTitle   string
	BillContext string
	Topic       model.Topic
	Provisions  []ProvisionExcerpt
}

// ConcernRequest asks for a key concern drafted from one high-impact provision.
type ConcernRequest struct {
	BillContext      string
	Topic            model.Topic
	ProvisionID      string
	ProvisionTitle   string
	ProvisionText    string
	ProvisionSummary string
	ImpactReasoning  string
	ImpactLevel      model.ImpactLevel
}

// Annotator is the pluggable external capability behind each stage. The
// orchestration layer treats every method as expensive, slow and fallible.
type Annotator interface {
	Categorize(ctx context.Context, title, preview string) (*model.Categorization, error)
	Summarize(ctx context.Context, title, content string) (string, error)
	ExecutiveSummary(ctx context.Context, billTitle string, sections []SectionContext) (string, error)
	AssessImpact(ctx context.Context, billContext, title, content string) (*model.Impact, error)
	AnalyzeTopic(ctx context.Context, req TopicAnalysisRequest) (*model.TopicAnalysis, error)
	DraftConcern(ctx context.Context, req ConcernRequest) (*model.KeyConcern, error)
}
