package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/civicsignal/billscan-cli/internal/annotate"
	"github.com/civicsignal/billscan-cli/internal/model"
	"github.com/civicsignal/billscan-cli/internal/store"
)

// --- Annotator mock ---

type mockAnnotator struct {
	mock.Mock
}

func (m *mockAnnotator) Categorize(ctx context.Context, title, preview string) (*model.Categorization, error) {
	args := m.Called(ctx, title, preview)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Categorization), args.Error(1)
}

func (m *mockAnnotator) Summarize(ctx context.Context, title, content string) (string, error) {
	args := m.Called(ctx, title, content)
	return args.String(0), args.Error(1)
}

func (m *mockAnnotator) ExecutiveSummary(ctx context.Context, billTitle string, sections []annotate.SectionContext) (string, error) {
	args := m.Called(ctx, billTitle, sections)
	return args.String(0), args.Error(1)
}

func (m *mockAnnotator) AssessImpact(ctx context.Context, billContext, title, content string) (*model.Impact, error) {
	args := m.Called(ctx, billContext, title, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Impact), args.Error(1)
}

func (m *mockAnnotator) AnalyzeTopic(ctx context.Context, req annotate.TopicAnalysisRequest) (*model.TopicAnalysis, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TopicAnalysis), args.Error(1)
}

func (m *mockAnnotator) DraftConcern(ctx context.Context, req annotate.ConcernRequest) (*model.KeyConcern, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.KeyConcern), args.Error(1)
}

// --- Store wrappers ---

// countingStore records every SaveBill so checkpoint cadence is observable.
type countingStore struct {
	store.Store

	mu    sync.Mutex
	saves int
}

func (s *countingStore) SaveBill(ctx context.Context, bill *model.Bill) error {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return s.Store.SaveBill(ctx, bill)
}

func (s *countingStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// failingStore rejects every save.
type failingStore struct {
	store.Store
	err error
}

func (s *failingStore) SaveBill(ctx context.Context, bill *model.Bill) error {
	return s.err
}

// --- Fixtures ---

func newTestStore(t *testing.T) *countingStore {
	t.Helper()
	fs, err := store.NewFile(t.TempDir())
	require.NoError(t, err)
	return &countingStore{Store: fs}
}

func provisionCategory() *model.Categorization {
	return &model.Categorization{Type: model.CategoryProvision}
}

func neutralImpact(confidence float64) *model.Impact {
	return &model.Impact{
		Levels: map[model.Topic]model.ImpactLevel{
			model.TopicDigitalInnovation:   model.ImpactNeutral,
			model.TopicFreedomOfSpeech:     model.ImpactNeutral,
			model.TopicPrivacyDataRights:   model.ImpactNeutral,
			model.TopicBusinessEnvironment: model.ImpactNeutral,
		},
		Confidence: confidence,
	}
}

func negativeImpact(topic model.Topic, level model.ImpactLevel, confidence float64) *model.Impact {
	im := neutralImpact(confidence)
	im.Levels[topic] = level
	return im
}

// uncategorizedBill returns a bill fresh from import.
func uncategorizedBill(id string, sections int) *model.Bill {
	bill := &model.Bill{ID: id, Title: "Test Act"}
	for i := 0; i < sections; i++ {
		bill.Sections = append(bill.Sections, model.Section{
			ID:      sectionID(i),
			Index:   i,
			Title:   "Section",
			RawText: "Section text.",
		})
	}
	return bill
}

func sectionID(i int) string {
	return string(rune('a'+i)) + "-sec"
}

// categorizedBill returns a bill where every section is a provision.
func categorizedBill(id string, sections int) *model.Bill {
	bill := uncategorizedBill(id, sections)
	for i := range bill.Sections {
		bill.Sections[i].Category = provisionCategory()
	}
	return bill
}
