package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civicsignal/billscan-cli/internal/model"
	"github.com/civicsignal/billscan-cli/internal/store"
)

var (
	importID    string
	importForce bool
)

var importCmd = &cobra.Command{
	Use:   "import <bill.json>",
	Short: "Ingest a bill document into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		data, err := os.ReadFile(path)
		if err != nil {
			return eris.Wrap(err, "read bill file")
		}

		var bill model.Bill
		if err := json.Unmarshal(data, &bill); err != nil {
			return eris.Wrap(err, "parse bill file")
		}
		if importID != "" {
			bill.ID = importID
		}
		if err := normalizeBill(&bill); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		if !importForce {
			if _, err := st.LoadBill(ctx, bill.ID); err == nil {
				return eris.Errorf("bill %s already exists (use --force to overwrite)", bill.ID)
			} else if !eris.Is(err, store.ErrNotFound) {
				return eris.Wrap(err, "check existing bill")
			}
		}

		if err := st.SaveBill(ctx, &bill); err != nil {
			return eris.Wrap(err, "save bill")
		}

		zap.L().Info("bill imported",
			zap.String("bill", bill.ID),
			zap.String("title", bill.Title),
			zap.Int("sections", len(bill.Sections)),
		)
		fmt.Println(bill.ID)
		return nil
	},
}

// normalizeBill validates the imported document and fills in identity:
// a slug id for the bill, sequential ids for sections missing one, and the
// document-order index. Duplicate section ids are rejected.
func normalizeBill(bill *model.Bill) error {
	if bill.Title == "" {
		return eris.New("bill title is required")
	}
	if len(bill.Sections) == 0 {
		return eris.New("bill has no sections")
	}
	if bill.ID == "" {
		bill.ID = model.Slugify(bill.Title)
	}

	seen := make(map[string]bool, len(bill.Sections))
	for i := range bill.Sections {
		sec := &bill.Sections[i]
		if sec.RawText == "" {
			return eris.Errorf("section %d has no text", i+1)
		}
		if sec.ID == "" {
			sec.ID = fmt.Sprintf("s%03d", i+1)
		}
		if seen[sec.ID] {
			return eris.Errorf("duplicate section id %q", sec.ID)
		}
		seen[sec.ID] = true
		sec.Index = i
	}
	return nil
}

func init() {
	importCmd.Flags().StringVar(&importID, "id", "", "bill id (default: slug of the title)")
	importCmd.Flags().BoolVar(&importForce, "force", false, "overwrite an existing bill")
	rootCmd.AddCommand(importCmd)
}
