package model

import "time"

// Category classifies a bill section.
type Category string

const (
	CategoryProvision Category = "provision"
	CategoryPreamble  Category = "preamble"
	CategoryMetadata  Category = "metadata"
)

// AllCategories returns the closed set of section categories.
func AllCategories() []Category {
	return []Category{CategoryProvision, CategoryPreamble, CategoryMetadata}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryProvision, CategoryPreamble, CategoryMetadata:
		return true
	}
	return false
}

// Categorization is the output of the categorize stage for one section.
type Categorization struct {
	Type      Category `json:"type"`
	Reasoning string   `json:"reasoning,omitempty"`
}

// Topic is a policy area tracked by the impact assessment.
type Topic string

const (
	TopicDigitalInnovation   Topic = "Digital Innovation"
	TopicFreedomOfSpeech     Topic = "Freedom of Speech"
	TopicPrivacyDataRights   Topic = "Privacy & Data Rights"
	TopicBusinessEnvironment Topic = "Business Environment"
)

// AllTopics returns the fixed topic set in canonical order.
func AllTopics() []Topic {
	return []Topic{
		TopicDigitalInnovation,
		TopicFreedomOfSpeech,
		TopicPrivacyDataRights,
		TopicBusinessEnvironment,
	}
}

// ImpactLevel is an ordered categorical rating from severe-negative through
// neutral to severe-positive.
type ImpactLevel string

const (
	ImpactSevereNegative ImpactLevel = "severe-negative"
	ImpactHighNegative   ImpactLevel = "high-negative"
	ImpactMediumNegative ImpactLevel = "medium-negative"
	ImpactLowNegative    ImpactLevel = "low-negative"
	ImpactNeutral        ImpactLevel = "neutral"
	ImpactLowPositive    ImpactLevel = "low-positive"
	ImpactMediumPositive ImpactLevel = "medium-positive"
	ImpactHighPositive   ImpactLevel = "high-positive"
	ImpactSeverePositive ImpactLevel = "severe-positive"
)

// impactRank orders levels from most negative (0) to most positive (8).
var impactRank = map[ImpactLevel]int{
	ImpactSevereNegative: 0,
	ImpactHighNegative:   1,
	ImpactMediumNegative: 2,
	ImpactLowNegative:    3,
	ImpactNeutral:        4,
	ImpactLowPositive:    5,
	ImpactMediumPositive: 6,
	ImpactHighPositive:   7,
	ImpactSeverePositive: 8,
}

// Valid reports whether l is a known impact level.
func (l ImpactLevel) Valid() bool {
	_, ok := impactRank[l]
	return ok
}

// Rank returns the level's position on the negative-to-positive scale.
// Unknown levels rank as neutral.
func (l ImpactLevel) Rank() int {
	if r, ok := impactRank[l]; ok {
		return r
	}
	return impactRank[ImpactNeutral]
}

// Negative reports whether l is on the negative side of the scale.
func (l ImpactLevel) Negative() bool {
	return l.Valid() && l.Rank() < impactRank[ImpactNeutral]
}

// Significant reports whether l falls in one of the two most severe bands
// on either side of the scale (severe or high).
func (l ImpactLevel) Significant() bool {
	switch l {
	case ImpactSevereNegative, ImpactHighNegative, ImpactSeverePositive, ImpactHighPositive:
		return true
	}
	return false
}

// Impact is the per-provision result of the impact assessment stage.
type Impact struct {
	Levels     map[Topic]ImpactLevel `json:"levels"`
	Reasoning  string                `json:"reasoning,omitempty"`
	Confidence float64               `json:"confidence"`
}

// WorstNegative returns the provision's most severe negative rating and the
// first topic (in canonical order) carrying it. The second return is
// ImpactNeutral when no topic is rated negative.
func (im *Impact) WorstNegative() (Topic, ImpactLevel) {
	for _, band := range []ImpactLevel{ImpactSevereNegative, ImpactHighNegative, ImpactMediumNegative, ImpactLowNegative} {
		for _, topic := range AllTopics() {
			if im.Levels[topic] == band {
				return topic, band
			}
		}
	}
	return "", ImpactNeutral
}

// Severity ranks key concerns.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

// Rank returns the severity's sort position (critical first). Unknown
// severities sort last.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return len(severityRank)
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// KeyConcern is one synthesized concern derived from a high-impact provision.
type KeyConcern struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Severity          Severity `json:"severity"`
	Description       string   `json:"description"`
	RelatedProvisions []string `json:"relatedProvisions"`
}

// TopicAnalysis is the synthesized cross-provision analysis for one topic.
type TopicAnalysis struct {
	OverallImpact      ImpactLevel `json:"overallImpact"`
	Analysis           string      `json:"analysis"`
	AffectedProvisions int         `json:"affectedProvisions"`
	RelatedProvisions  []string    `json:"relatedProvisions"`
}

// Statistics tallies annotation coverage across a bill's sections.
type Statistics struct {
	TotalSections int `json:"totalSections"`
	Provisions    int `json:"provisions"`
	Preambles     int `json:"preambles"`
	Metadata      int `json:"metadata"`
	WithSummaries int `json:"withSummaries"`
	WithImpacts   int `json:"withImpacts"`
}

// Metadata is the bill-level block written by the enrich_metadata stage.
type Metadata struct {
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	SourcePath  string     `json:"sourcePath,omitempty"`
	ProcessedAt time.Time  `json:"processedAt"`
	Statistics  Statistics `json:"statistics"`
}

// Section is one logical unit of a bill. ID, Index, Title and RawText are
// assigned at import and never change; the optional fields are populated by
// annotation stages, and their presence is each stage's completion marker.
type Section struct {
	ID       string          `json:"id"`
	Index    int             `json:"index"`
	Title    string          `json:"title"`
	RawText  string          `json:"rawText"`
	Category *Categorization `json:"category,omitempty"`
	Summary  string          `json:"summary,omitempty"`
	Impact   *Impact         `json:"impact,omitempty"`
}

// IsProvision reports whether the section has been categorized as a provision.
func (s *Section) IsProvision() bool {
	return s.Category != nil && s.Category.Type == CategoryProvision
}

// Bill is the unit of work for the pipeline: an ordered section list plus
// bill-level derived fields. KeyConcerns and ImpactAnalyses deliberately omit
// omitempty so that "generated, empty" (non-nil) survives a round trip and
// stays distinguishable from "not yet generated" (nil).
type Bill struct {
	ID               string                  `json:"id"`
	Title            string                  `json:"title"`
	Sections         []Section               `json:"sections"`
	ExecutiveSummary string                  `json:"executiveSummary,omitempty"`
	ImpactAnalyses   map[Topic]TopicAnalysis `json:"impactAnalyses"`
	KeyConcerns      []KeyConcern            `json:"keyConcerns"`
	Meta             *Metadata               `json:"metadata,omitempty"`
}

// SectionByID returns the section with the given id, or nil.
func (b *Bill) SectionByID(id string) *Section {
	for i := range b.Sections {
		if b.Sections[i].ID == id {
			return &b.Sections[i]
		}
	}
	return nil
}

// Provisions returns pointers to all sections categorized as provisions, in
// document order.
func (b *Bill) Provisions() []*Section {
	var out []*Section
	for i := range b.Sections {
		if b.Sections[i].IsProvision() {
			out = append(out, &b.Sections[i])
		}
	}
	return out
}

// AllCategorized reports whether every section carries a category.
func (b *Bill) AllCategorized() bool {
	for i := range b.Sections {
		if b.Sections[i].Category == nil {
			return false
		}
	}
	return true
}

// ProvisionsSummarized reports whether every provision carries a summary.
func (b *Bill) ProvisionsSummarized() bool {
	for _, p := range b.Provisions() {
		if p.Summary == "" {
			return false
		}
	}
	return true
}

// ProvisionsAssessed reports whether every provision carries an impact.
func (b *Bill) ProvisionsAssessed() bool {
	for _, p := range b.Provisions() {
		if p.Impact == nil {
			return false
		}
	}
	return true
}
