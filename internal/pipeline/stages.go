package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/civicsignal/billscan-cli/internal/annotate"
	"github.com/civicsignal/billscan-cli/internal/model"
)

// noExecutiveSummary stands in for the bill context when the executive
// summary has not been generated yet.
const noExecutiveSummary = "No executive summary available."

// categorizePreviewChars bounds how much section text the categorizer sees.
const categorizePreviewChars = 400

// Stages returns the full ordered stage list wired to ann.
func Stages(ann annotate.Annotator) []*Stage {
	return []*Stage{
		CategorizeStage(ann),
		SummarizeStage(ann),
		ExecutiveSummaryStage(ann),
		ImpactStage(ann),
		ImpactAnalysisStage(ann),
		KeyConcernsStage(ann),
		EnrichMetadataStage(),
	}
}

// StageByName returns the named stage, or nil.
func StageByName(ann annotate.Annotator, name string) *Stage {
	for _, st := range Stages(ann) {
		if st.Name == name {
			return st
		}
	}
	return nil
}

// StageNames lists the stage names in pipeline order.
func StageNames() []string {
	var names []string
	for _, st := range Stages(nil) {
		names = append(names, st.Name)
	}
	return names
}

// CategorizeStage classifies every section as provision, preamble or
// metadata. It has no prerequisite and runs over all sections.
func CategorizeStage(ann annotate.Annotator) *Stage {
	return &Stage{
		Name:     "categorize",
		Selector: func(*model.Section) bool { return true },
		Done:     func(sec *model.Section) bool { return sec.Category != nil },
		Apply: func(ctx context.Context, _ *model.Bill, sec model.Section) (merge, error) {
			cat, err := ann.Categorize(ctx, sec.Title, preview(sec.RawText, categorizePreviewChars))
			if err != nil {
				return nil, err
			}
			return func(bill *model.Bill) {
				bill.SectionByID(sec.ID).Category = cat
			}, nil
		},
	}
}

// SummarizeStage writes a plain-language summary for every provision.
func SummarizeStage(ann annotate.Annotator) *Stage {
	return &Stage{
		Name:     "summarize",
		Selector: (*model.Section).IsProvision,
		Done:     func(sec *model.Section) bool { return sec.Summary != "" },
		Needs: func(bill *model.Bill) *PrereqError {
			if !bill.AllCategorized() {
				return &PrereqError{
					Stage:      "summarize",
					Condition:  "every section categorized",
					ProducedBy: "categorize",
				}
			}
			return nil
		},
		Apply: func(ctx context.Context, _ *model.Bill, sec model.Section) (merge, error) {
			summary, err := ann.Summarize(ctx, sec.Title, sec.RawText)
			if err != nil {
				return nil, err
			}
			return func(bill *model.Bill) {
				bill.SectionByID(sec.ID).Summary = summary
			}, nil
		},
	}
}

// ExecutiveSummaryStage synthesizes the bill-level summary from every
// section: provisions contribute their summaries, other sections a text
// excerpt.
func ExecutiveSummaryStage(ann annotate.Annotator) *Stage {
	return &Stage{
		Name:     "executive_summary",
		BillDone: func(bill *model.Bill) bool { return bill.ExecutiveSummary != "" },
		Needs: func(bill *model.Bill) *PrereqError {
			if !bill.AllCategorized() || !bill.ProvisionsSummarized() {
				return &PrereqError{
					Stage:      "executive_summary",
					Condition:  "every provision summarized",
					ProducedBy: "summarize",
				}
			}
			return nil
		},
		ApplyBill: func(ctx context.Context, bill *model.Bill) (merge, error) {
			contexts := make([]annotate.SectionContext, 0, len(bill.Sections))
			for i := range bill.Sections {
				sec := &bill.Sections[i]
				sc := annotate.SectionContext{
					Type:  string(sec.Category.Type),
					Title: sec.Title,
				}
				if sec.IsProvision() {
					sc.Summary = sec.Summary
				} else {
					sc.Content = preview(sec.RawText, 1200)
				}
				contexts = append(contexts, sc)
			}
			summary, err := ann.ExecutiveSummary(ctx, bill.Title, contexts)
			if err != nil {
				return nil, err
			}
			return func(bill *model.Bill) {
				bill.ExecutiveSummary = summary
			}, nil
		},
	}
}

// ImpactStage rates every provision against the topic set. The executive
// summary, when present, supplies bill context; a placeholder stands in
// otherwise.
func ImpactStage(ann annotate.Annotator) *Stage {
	return &Stage{
		Name:     "impact",
		Selector: (*model.Section).IsProvision,
		Done:     func(sec *model.Section) bool { return sec.Impact != nil },
		Needs: func(bill *model.Bill) *PrereqError {
			if !bill.AllCategorized() {
				return &PrereqError{
					Stage:      "impact",
					Condition:  "every section categorized",
					ProducedBy: "categorize",
				}
			}
			return nil
		},
		Apply: func(ctx context.Context, bill *model.Bill, sec model.Section) (merge, error) {
			impact, err := ann.AssessImpact(ctx, billContext(bill), sec.Title, sec.RawText)
			if err != nil {
				return nil, err
			}
			return func(bill *model.Bill) {
				bill.SectionByID(sec.ID).Impact = impact
			}, nil
		},
	}
}

// ImpactAnalysisStage writes a cross-provision analysis per topic, covering
// the topics with at least one severe or high rated provision. An empty
// non-nil map marks the stage complete when no topic qualifies.
func ImpactAnalysisStage(ann annotate.Annotator) *Stage {
	return &Stage{
		Name:     "impact_analysis",
		BillDone: func(bill *model.Bill) bool { return bill.ImpactAnalyses != nil },
		Needs: func(bill *model.Bill) *PrereqError {
			if !bill.ProvisionsAssessed() {
				return &PrereqError{
					Stage:      "impact_analysis",
					Condition:  "every provision assessed for impact",
					ProducedBy: "impact",
				}
			}
			return nil
		},
		ApplyBill: func(ctx context.Context, bill *model.Bill) (merge, error) {
			groups := GroupByTopic(bill)
			analyses := make(map[model.Topic]model.TopicAnalysis)
			for _, topic := range model.AllTopics() {
				excerpts, ok := groups[topic]
				if !ok {
					continue
				}
				analysis, err := ann.AnalyzeTopic(ctx, annotate.TopicAnalysisRequest{
					BillTitle:   bill.Title,
					BillContext: billContext(bill),
					Topic:       topic,
					Provisions:  excerpts,
				})
				if err != nil {
					return nil, err
				}
				analyses[topic] = *analysis
			}
			return func(bill *model.Bill) {
				bill.ImpactAnalyses = analyses
			}, nil
		},
	}
}

// KeyConcernsStage drafts one concern per selected high-impact provision and
// stores them ordered by severity. An empty non-nil slice marks the stage
// complete when no provision qualifies.
func KeyConcernsStage(ann annotate.Annotator) *Stage {
	return &Stage{
		Name:     "key_concerns",
		BillDone: func(bill *model.Bill) bool { return bill.KeyConcerns != nil },
		Needs: func(bill *model.Bill) *PrereqError {
			if !bill.ProvisionsAssessed() {
				return &PrereqError{
					Stage:      "key_concerns",
					Condition:  "every provision assessed for impact",
					ProducedBy: "impact",
				}
			}
			return nil
		},
		ApplyBill: func(ctx context.Context, bill *model.Bill) (merge, error) {
			candidates := SelectConcernCandidates(bill)
			concerns := make([]model.KeyConcern, 0, len(candidates))
			for _, cand := range candidates {
				concern, err := ann.DraftConcern(ctx, annotate.ConcernRequest{
					BillContext:      billContext(bill),
					Topic:            cand.Topic,
					ProvisionID:      cand.Section.ID,
					ProvisionTitle:   cand.Section.Title,
					ProvisionText:    cand.Section.RawText,
					ProvisionSummary: cand.Section.Summary,
					ImpactReasoning:  cand.Section.Impact.Reasoning,
					ImpactLevel:      cand.Level,
				})
				if err != nil {
					return nil, err
				}
				concerns = append(concerns, *concern)
			}
			sort.SliceStable(concerns, func(i, j int) bool {
				return concerns[i].Severity.Rank() < concerns[j].Severity.Rank()
			})
			return func(bill *model.Bill) {
				bill.KeyConcerns = concerns
			}, nil
		},
	}
}

// EnrichMetadataStage writes the deterministic metadata block: title, slug,
// processing timestamp and coverage statistics. No external calls.
func EnrichMetadataStage() *Stage {
	return &Stage{
		Name:     "enrich_metadata",
		BillDone: func(bill *model.Bill) bool { return bill.Meta != nil },
		Needs: func(bill *model.Bill) *PrereqError {
			if !bill.AllCategorized() {
				return &PrereqError{
					Stage:      "enrich_metadata",
					Condition:  "every section categorized",
					ProducedBy: "categorize",
				}
			}
			return nil
		},
		ApplyBill: func(_ context.Context, bill *model.Bill) (merge, error) {
			meta := &model.Metadata{
				Title:       bill.Title,
				Slug:        model.Slugify(bill.Title),
				ProcessedAt: time.Now().UTC(),
				Statistics:  ComputeStatistics(bill),
			}
			if bill.Meta != nil {
				meta.SourcePath = bill.Meta.SourcePath
			}
			return func(bill *model.Bill) {
				bill.Meta = meta
			}, nil
		},
	}
}

// billContext returns the text handed to provision-level assessments as bill
// context.
func billContext(bill *model.Bill) string {
	if bill.ExecutiveSummary != "" {
		return bill.ExecutiveSummary
	}
	return noExecutiveSummary
}

// preview returns at most n runes of s.
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
