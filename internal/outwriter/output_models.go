package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/step6836/marketing-attribution/internal/contract"
	"github.com/step6836/marketing-attribution/schema"
)

// PrintModels displays the rule and scoring profile of every attribution model.
// This is a static display that does not require an event log.
func PrintModels(models []schema.ModelDescription, cfg *contract.Config) error {
	fmtFloat, _ := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, models)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeModelsCSV(w, models, fmtFloat)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeModelsText(w, models, cfg, fmtFloat)
		}, "Wrote text")
	}
}

// writeModelsText prints each rule followed by the profile table.
func writeModelsText(w io.Writer, models []schema.ModelDescription, cfg *contract.Config, fmtFloat func(float64) string) error {
	if err := heading(w, "🧮 Attribution Models", cfg); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "=====================\n\n"); err != nil {
		return err
	}
	for _, m := range models {
		if _, err := fmt.Fprintf(w, "%s (%s)\n   %s\n\n", m.Name, m.Model, m.Rule); err != nil {
			return err
		}
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Model", "Accuracy", "Fairness", "Business"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	var data [][]string
	for _, m := range models {
		data = append(data, []string{
			m.Name,
			fmtFloat(m.Profile.Accuracy),
			fmtFloat(m.Profile.Fairness),
			fmtFloat(m.Profile.BusinessValue),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// writeModelsCSV writes one row per model.
func writeModelsCSV(w io.Writer, models []schema.ModelDescription, fmtFloat func(float64) string) error {
	header := []string{"model", "name", "rule", "accuracy", "fairness", "business_value"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, m := range models {
			rec := []string{
				string(m.Model),
				m.Name,
				m.Rule,
				fmtFloat(m.Profile.Accuracy),
				fmtFloat(m.Profile.Fairness),
				fmtFloat(m.Profile.BusinessValue),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}
