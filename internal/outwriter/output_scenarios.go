package outwriter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/step6836/marketing-attribution/internal/contract"
	"github.com/step6836/marketing-attribution/internal/parquet"
	"github.com/step6836/marketing-attribution/schema"
)

// PrintScenarios outputs projected scenarios, dispatching based on the output format configured.
func PrintScenarios(scenarios []schema.Scenario, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, _ := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		if scenarios == nil {
			scenarios = []schema.Scenario{}
		}
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, scenarios)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeScenariosCSV(w, scenarios, fmtFloat)
		}, "Wrote CSV")
	case schema.ParquetOut:
		if cfg.OutputFile == "" {
			return errors.New("parquet output requires --output-file")
		}
		if err := parquet.WriteScenariosParquet(convertScenarios(scenarios), cfg.OutputFile); err != nil {
			return fmt.Errorf("error writing Parquet output: %w", err)
		}
		return nil
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			if err := writeScenarioTable(w, scenarios, cfg, fmtFloat); err != nil {
				return err
			}
			_, err := fmt.Fprintf(w, "Projected %d scenarios in %v\n", len(scenarios), duration)
			return err
		}, "Wrote table")
	}
}

// writeScenarioTable writes one row per scenario.
func writeScenarioTable(w io.Writer, scenarios []schema.Scenario, cfg *contract.Config, fmtFloat func(float64) string) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Scenario", "Awareness", "Cart", "Cart %", "Revenue", "ROAS", "Lift %", "Risk"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, sc := range scenarios {
		data = append(data, []string{
			sc.Name,
			formatMoney(sc.AwarenessBudget),
			formatMoney(sc.CartBudget),
			fmtFloat(sc.CartShare() * 100),
			formatMoney(sc.ProjectedRevenue),
			fmtFloat(sc.ProjectedROAS),
			fmtFloat(sc.ProjectedLift),
			riskLabel(sc.RiskLevel, cfg),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// writeScenariosCSV writes one row per scenario.
func writeScenariosCSV(w io.Writer, scenarios []schema.Scenario, fmtFloat func(float64) string) error {
	header := []string{
		"name",
		"awareness_budget",
		"cart_budget",
		"total_budget",
		"projected_revenue",
		"projected_roas",
		"projected_lift",
		"risk_level",
	}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, sc := range scenarios {
			rec := []string{
				sc.Name,
				fmtFloat(sc.AwarenessBudget),
				fmtFloat(sc.CartBudget),
				fmtFloat(sc.TotalBudget),
				fmtFloat(sc.ProjectedRevenue),
				fmtFloat(sc.ProjectedROAS),
				fmtFloat(sc.ProjectedLift),
				string(sc.RiskLevel),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// convertScenarios maps projected scenarios onto the export rows of an untracked run.
func convertScenarios(scenarios []schema.Scenario) []parquet.Scenario {
	rows := make([]parquet.Scenario, len(scenarios))
	for i, sc := range scenarios {
		rows[i] = parquet.Scenario{
			Name:             sc.Name,
			AwarenessBudget:  sc.AwarenessBudget,
			CartBudget:       sc.CartBudget,
			ProjectedRevenue: sc.ProjectedRevenue,
			ProjectedROAS:    sc.ProjectedROAS,
			ProjectedLift:    sc.ProjectedLift,
			RiskLevel:        string(sc.RiskLevel),
		}
	}
	return rows
}
