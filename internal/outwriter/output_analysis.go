package outwriter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/step6836/marketing-attribution/internal/contract"
	"github.com/step6836/marketing-attribution/internal/parquet"
	"github.com/step6836/marketing-attribution/schema"
)

// Suffixes of the files written by the parquet output.
const (
	creditsSuffix  = ".model_credits.parquet"
	journeysSuffix = ".journeys.parquet"
)

// PrintAnalysis outputs the analysis result, dispatching based on the output format configured.
func PrintAnalysis(out schema.RunOutput, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, intFmt := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, out.Artifact)
		}, "Wrote JSON"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeAnalysisCSV(w, out, fmtFloat)
		}, "Wrote CSV"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		if err := writeAnalysisParquet(out, cfg.OutputFile); err != nil {
			return fmt.Errorf("error writing Parquet output: %w", err)
		}
	default:
		// Default to human-readable tables
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeAnalysisText(w, out, cfg, fmtFloat, intFmt, duration)
		}, "Wrote table")
	}
	return nil
}

// writeAnalysisText renders the attribution, journey and scenario tables.
func writeAnalysisText(w io.Writer, out schema.RunOutput, cfg *contract.Config, fmtFloat func(float64) string, intFmt string, duration time.Duration) error {
	art := out.Artifact

	if err := heading(w, "📊 Attribution by model", cfg); err != nil {
		return err
	}
	if err := writeAttributionTable(w, art, cfg, fmtFloat); err != nil {
		return err
	}

	if err := heading(w, "\n🛤️  Journeys", cfg); err != nil {
		return err
	}
	if err := writeJourneyTable(w, art, fmtFloat, intFmt); err != nil {
		return err
	}

	if err := heading(w, "\n💰 Budget scenarios", cfg); err != nil {
		return err
	}
	if err := writeScenarioTable(w, art.Scenarios, cfg, fmtFloat); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "Analyzed %d events (%d bot events from %d users filtered, %d duplicates, %d malformed, %d ignored)\n",
		art.Meta.TotalEvents, art.Meta.BotFiltered, art.Meta.BotUsers, art.Meta.DuplicatesRemoved,
		art.Meta.MalformedDropped, art.Meta.IgnoredEvents); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Analysis completed in %v with %d workers. Cache backend: %s\n", duration, cfg.Workers, cfg.CacheBackend); err != nil {
		return err
	}
	return nil
}

// writeAttributionTable writes one row per model with its stage shares and scores.
func writeAttributionTable(w io.Writer, art schema.Artifact, cfg *contract.Config, fmtFloat func(float64) string) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Model", "View %", "Cart %", "Accuracy", "Fairness", "Business", "Method", "Status", "Notes"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	noteWidth := GetMaxNoteWidth(cfg)
	var data [][]string
	for _, kind := range schema.AllModels {
		share := art.AttributionModels[kind]
		metric := art.ModelComparison[kind]
		diag := art.Diagnostics[kind]
		data = append(data, []string{
			schema.ModelDisplayName(kind),
			fmtFloat(share.View),
			fmtFloat(share.Cart),
			fmtFloat(metric.Accuracy),
			fmtFloat(metric.Fairness),
			fmtFloat(metric.BusinessValue),
			diag.Method,
			statusLabel(diag, cfg),
			contract.TruncateString(strings.Join(diag.Notes, "; "), noteWidth),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// writeJourneyTable writes the journey statistics as a two-column table.
func writeJourneyTable(w io.Writer, art schema.Artifact, fmtFloat func(float64) string, intFmt string) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Statistic", "Value"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	s := art.JourneyStats
	data := [][]string{
		{"Users", fmt.Sprintf(intFmt, art.Meta.TotalUsers)},
		{"Sessions", fmt.Sprintf(intFmt, art.Meta.TotalSessions)},
		{"Journeys", fmt.Sprintf(intFmt, s.TotalJourneys)},
		{"Converted journeys", fmt.Sprintf(intFmt, s.TotalJourneysAnalyzed)},
		{"Conversion rate %", fmtFloat(s.ConversionRate)},
		{"Cart abandonment %", fmtFloat(s.CartAbandonmentRate)},
		{"Avg touchpoints", fmtFloat(s.AvgTouchpoints)},
		{"Avg days to purchase", fmtFloat(s.AvgDays)},
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// writeAnalysisCSV writes one row per model.
func writeAnalysisCSV(w io.Writer, out schema.RunOutput, fmtFloat func(float64) string) error {
	header := []string{
		"model",
		"name",
		"view_pct",
		"cart_pct",
		"view_credit",
		"cart_credit",
		"purchase_credit",
		"total_value",
		"journeys_credited",
		"accuracy",
		"fairness",
		"business_value",
		"method",
		"degraded",
	}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		art := out.Artifact
		for _, kind := range schema.AllModels {
			res := out.Results[kind]
			share := art.AttributionModels[kind]
			metric := art.ModelComparison[kind]
			diag := art.Diagnostics[kind]
			rec := []string{
				string(kind),
				schema.ModelDisplayName(kind),
				fmtFloat(share.View),
				fmtFloat(share.Cart),
				fmtFloat(res.Credits[schema.ViewStage]),
				fmtFloat(res.Credits[schema.CartStage]),
				fmtFloat(res.Credits[schema.PurchaseStage]),
				fmtFloat(res.TotalValue),
				strconv.Itoa(res.JourneysCredited),
				fmtFloat(metric.Accuracy),
				fmtFloat(metric.Fairness),
				fmtFloat(metric.BusinessValue),
				diag.Method,
				strconv.FormatBool(diag.Degraded),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeAnalysisParquet writes the model credits and the journeys next to outputFile.
func writeAnalysisParquet(out schema.RunOutput, outputFile string) error {
	if outputFile == "" {
		return errors.New("parquet output requires --output-file")
	}

	creditsFile := outputFile + creditsSuffix
	if err := parquet.WriteModelCreditsParquet(parquet.ConvertResults(out.RunID, out.Results), creditsFile); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "💾 Wrote %d credit rows to %s\n", len(out.Results)*len(schema.ReportStages), creditsFile)

	journeysFile := outputFile + journeysSuffix
	if err := parquet.WriteJourneysParquet(parquet.ConvertJourneys(out.Journeys), journeysFile); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "💾 Wrote %d journeys to %s\n", len(out.Journeys), journeysFile)
	return nil
}
