package pipeline

import (
	"sort"

	"github.com/civicsignal/billscan-cli/internal/annotate"
	"github.com/civicsignal/billscan-cli/internal/model"
)

// ComputeStatistics tallies annotation coverage across the bill's sections.
func ComputeStatistics(bill *model.Bill) model.Statistics {
	stats := model.Statistics{TotalSections: len(bill.Sections)}
	for i := range bill.Sections {
		sec := &bill.Sections[i]
		if sec.Category == nil {
			continue
		}
		switch sec.Category.Type {
		case model.CategoryProvision:
			stats.Provisions++
			if sec.Summary != "" {
				stats.WithSummaries++
			}
			if sec.Impact != nil {
				stats.WithImpacts++
			}
		case model.CategoryPreamble:
			stats.Preambles++
		case model.CategoryMetadata:
			stats.Metadata++
		}
	}
	return stats
}

// Candidate is one provision selected for concern drafting, tagged with the
// topic and band of its worst negative rating.
type Candidate struct {
	Section *model.Section
	Topic   model.Topic
	Level   model.ImpactLevel
}

// SelectConcernCandidates picks the provisions that warrant a key concern:
// every provision whose worst rating is severe-negative, in document order,
// followed by every high-negative provision ordered by assessment confidence
// (highest first). Provisions rated medium-negative or better are not
// candidates. The selection is deterministic and never truncated.
func SelectConcernCandidates(bill *model.Bill) []Candidate {
	var severe, high []Candidate
	for _, sec := range bill.Provisions() {
		if sec.Impact == nil {
			continue
		}
		topic, level := sec.Impact.WorstNegative()
		switch level {
		case model.ImpactSevereNegative:
			severe = append(severe, Candidate{Section: sec, Topic: topic, Level: level})
		case model.ImpactHighNegative:
			high = append(high, Candidate{Section: sec, Topic: topic, Level: level})
		}
	}
	sort.SliceStable(high, func(i, j int) bool {
		return high[i].Section.Impact.Confidence > high[j].Section.Impact.Confidence
	})
	return append(severe, high...)
}

// GroupByTopic collects, for each topic, the provisions rated severe or high
// on that topic (either direction), ordered most negative first and by
// document order within a band. Topics with no such provisions are absent
// from the map.
func GroupByTopic(bill *model.Bill) map[model.Topic][]annotate.ProvisionExcerpt {
	groups := make(map[model.Topic][]annotate.ProvisionExcerpt)
	for _, topic := range model.AllTopics() {
		type entry struct {
			excerpt annotate.ProvisionExcerpt
			rank    int
		}
		var entries []entry
		for _, sec := range bill.Provisions() {
			if sec.Impact == nil {
				continue
			}
			level, ok := sec.Impact.Levels[topic]
			if !ok || !level.Significant() {
				continue
			}
			entries = append(entries, entry{
				excerpt: annotate.ProvisionExcerpt{
					ID:          sec.ID,
					Title:       sec.Title,
					RawText:     sec.RawText,
					ImpactLevel: level,
				},
				rank: level.Rank(),
			})
		}
		if len(entries) == 0 {
			continue
		}
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].rank < entries[j].rank
		})
		excerpts := make([]annotate.ProvisionExcerpt, len(entries))
		for i, e := range entries {
			excerpts[i] = e.excerpt
		}
		groups[topic] = excerpts
	}
	return groups
}
