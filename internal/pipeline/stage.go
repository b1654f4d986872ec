package pipeline

import (
	"context"
	"fmt"

	"github.com/civicsignal/billscan-cli/internal/model"
)

// PrereqError reports an unmet hard prerequisite. The run is aborted before
// the stage touches any item.
type PrereqError struct {
	Stage      string
	Condition  string
	ProducedBy string
}

func (e *PrereqError) Error() string {
	return fmt.Sprintf("stage %s: prerequisite not met: %s (produced by %s)", e.Stage, e.Condition, e.ProducedBy)
}

// merge applies one completed item's output to the document. Merges run
// serialized under the runner's lock; the external call never does.
type merge func(bill *model.Bill)

// Stage is one annotation pass over a bill. Section stages declare a
// Selector, Done and Apply; bill-level stages leave Selector nil and declare
// BillDone and ApplyBill instead.
//
// Apply receives the section by value and may read only bill fields that no
// merge of the same stage writes. All mutation happens in the returned merge.
type Stage struct {
	Name string

	// Selector bounds the stage to a subset of sections. Nil marks a
	// bill-level stage with a single unit of work.
	Selector func(sec *model.Section) bool

	// Done reports whether the section already carries this stage's output.
	// Presence of the output field is the only completion signal.
	Done func(sec *model.Section) bool

	// Needs verifies the stage's hard prerequisite against the current
	// document. Nil means no prerequisite.
	Needs func(bill *model.Bill) *PrereqError

	// Apply performs the external work for one section.
	Apply func(ctx context.Context, bill *model.Bill, sec model.Section) (merge, error)

	// BillDone and ApplyBill are the bill-level equivalents of Done and Apply.
	BillDone  func(bill *model.Bill) bool
	ApplyBill func(ctx context.Context, bill *model.Bill) (merge, error)
}

func (s *Stage) billLevel() bool {
	return s.Selector == nil
}
