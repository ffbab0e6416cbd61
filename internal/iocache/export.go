package iocache

import (
	"errors"
	"fmt"
	"io"

	"github.com/step6836/marketing-attribution/internal/contract"
	"github.com/step6836/marketing-attribution/internal/parquet"
)

// ExecuteAnalysisExport writes every table of the analysis store to Parquet files
// named after outputFile.
func ExecuteAnalysisExport(store contract.AnalysisStore, outputFile string, w io.Writer) error {
	// Validate that output file is specified
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}
	if store == nil {
		return errors.New("analysis store is not initialized")
	}

	// Check if there's any data to export
	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get analysis status: %w", err)
	}

	if status.TotalRuns == 0 {
		return errors.New("no analysis data found to export")
	}

	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Total analysis runs: %d\n", status.TotalRuns)
	_, _ = fmt.Fprintf(w, "Total credit records: %d\n", status.TableSizes[modelCreditsTable])

	runs, err := store.GetAllAnalysisRuns()
	if err != nil {
		return fmt.Errorf("failed to retrieve analysis runs: %w", err)
	}
	credits, err := store.GetAllModelCredits()
	if err != nil {
		return fmt.Errorf("failed to retrieve model credits: %w", err)
	}
	scores, err := store.GetAllModelScores()
	if err != nil {
		return fmt.Errorf("failed to retrieve model scores: %w", err)
	}
	scenarios, err := store.GetAllScenarios()
	if err != nil {
		return fmt.Errorf("failed to retrieve scenarios: %w", err)
	}

	parquetRuns := parquet.ConvertAnalysisRunRecords(runs)
	runsFile := outputFile + ".analysis_runs.parquet"
	if err := parquet.WriteAnalysisRunsParquet(parquetRuns, runsFile); err != nil {
		return fmt.Errorf("failed to write analysis runs: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d analysis runs to: %s\n", len(parquetRuns), runsFile)

	parquetCredits := parquet.ConvertModelCreditRecords(credits)
	creditsFile := outputFile + ".model_credits.parquet"
	if err := parquet.WriteModelCreditsParquet(parquetCredits, creditsFile); err != nil {
		return fmt.Errorf("failed to write model credits: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d credit records to: %s\n", len(parquetCredits), creditsFile)

	parquetScores := parquet.ConvertModelScoreRecords(scores)
	scoresFile := outputFile + ".model_scores.parquet"
	if err := parquet.WriteModelScoresParquet(parquetScores, scoresFile); err != nil {
		return fmt.Errorf("failed to write model scores: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d score records to: %s\n", len(parquetScores), scoresFile)

	parquetScenarios := parquet.ConvertScenarioRecords(scenarios)
	scenariosFile := outputFile + ".scenarios.parquet"
	if err := parquet.WriteScenariosParquet(parquetScenarios, scenariosFile); err != nil {
		return fmt.Errorf("failed to write scenarios: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d scenario records to: %s\n", len(parquetScenarios), scenariosFile)

	_, _ = fmt.Fprintln(w, "\nExport complete! The Parquet files can be used with:")
	_, _ = fmt.Fprintln(w, "  - Apache Spark")
	_, _ = fmt.Fprintln(w, "  - Pandas (via pyarrow)")
	_, _ = fmt.Fprintln(w, "  - DuckDB")
	_, _ = fmt.Fprintln(w, "  - Any other Parquet-compatible tool")

	return nil
}
