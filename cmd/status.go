package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/civicsignal/billscan-cli/internal/model"
	"github.com/civicsignal/billscan-cli/internal/pipeline"
)

var statusOutput string

type stageStatus struct {
	Name     string `json:"name" yaml:"name"`
	Total    int    `json:"total" yaml:"total"`
	Complete int    `json:"complete" yaml:"complete"`
	Pending  int    `json:"pending" yaml:"pending"`
}

type statusReport struct {
	BillID     string            `json:"bill_id" yaml:"bill_id"`
	Title      string            `json:"title" yaml:"title"`
	Sections   int               `json:"sections" yaml:"sections"`
	Stages     []stageStatus     `json:"stages" yaml:"stages"`
	Statistics *model.Statistics `json:"statistics,omitempty" yaml:"statistics,omitempty"`
}

// buildStatus computes per-stage annotation coverage from field presence.
func buildStatus(bill *model.Bill) *statusReport {
	report := &statusReport{
		BillID:   bill.ID,
		Title:    bill.Title,
		Sections: len(bill.Sections),
	}
	for _, st := range pipeline.Stages(nil) {
		ss := stageStatus{Name: st.Name}
		if st.Selector == nil {
			ss.Total = 1
			if st.BillDone(bill) {
				ss.Complete = 1
			}
		} else {
			for i := range bill.Sections {
				sec := &bill.Sections[i]
				if !st.Selector(sec) {
					continue
				}
				ss.Total++
				if st.Done(sec) {
					ss.Complete++
				}
			}
		}
		ss.Pending = ss.Total - ss.Complete
		report.Stages = append(report.Stages, ss)
	}
	if bill.Meta != nil {
		report.Statistics = &bill.Meta.Statistics
	}
	return report
}

var statusCmd = &cobra.Command{
	Use:   "status <bill-id>",
	Short: "Report annotation coverage for a bill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		bill, err := st.LoadBill(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "load bill %s", args[0])
		}

		report := buildStatus(bill)
		switch statusOutput {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		case "yaml":
			enc := yaml.NewEncoder(os.Stdout)
			defer enc.Close()
			return enc.Encode(report)
		default:
			return eris.Errorf("unsupported output format: %s", statusOutput)
		}
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusOutput, "output", "json", "output format: json or yaml")
	rootCmd.AddCommand(statusCmd)
}
