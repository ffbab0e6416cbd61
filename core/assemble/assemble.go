// Package assemble turns the outputs of one analysis run into the dashboard artifact.
package assemble

import (
	"github.com/step6836/marketing-attribution/core/ingest"
	"github.com/step6836/marketing-attribution/core/journey"
	"github.com/step6836/marketing-attribution/schema"
)

// Decimals used in the artifact.
const (
	ShareDecimals = 1
	StatDecimals  = 2
)

// Input is everything the artifact is built from.
type Input struct {
	Ingest         ingest.Result
	Journeys       []schema.Journey
	Results        map[schema.ModelKind]schema.AttributionResult
	Scores         map[schema.ModelKind]schema.ComparisonMetric
	Scenarios      []schema.Scenario
	IncludeCredits bool // also publish currency credits per model
}

// Assemble builds the artifact. Every model of schema.AllModels is present; a model
// missing from the results is published as zero shares with a degraded diagnostic.
func Assemble(in Input) schema.Artifact {
	stats := Stats(in.Journeys)

	art := schema.Artifact{
		Meta: schema.Meta{
			TotalEvents:       in.Ingest.Total,
			TotalUsers:        in.Ingest.Users,
			TotalSessions:     in.Ingest.Sessions,
			AnalysisSample:    stats.TotalJourneysAnalyzed,
			BotFiltered:       in.Ingest.BotEvents,
			BotUsers:          in.Ingest.BotUsers,
			DuplicatesRemoved: in.Ingest.Duplicates,
			MalformedDropped:  in.Ingest.Malformed,
			IgnoredEvents:     in.Ingest.Ignored,
		},
		AttributionModels: make(map[schema.ModelKind]schema.StageShare, len(schema.AllModels)),
		ModelComparison:   make(map[schema.ModelKind]schema.ComparisonMetric, len(schema.AllModels)),
		JourneyStats:      stats,
		Scenarios:         in.Scenarios,
		Diagnostics:       make(map[schema.ModelKind]schema.Diagnostic, len(schema.AllModels)),
	}
	if art.Scenarios == nil {
		art.Scenarios = []schema.Scenario{}
	}
	if in.IncludeCredits {
		art.Credits = make(map[schema.ModelKind]schema.StageCredit, len(schema.AllModels))
	}

	for _, kind := range schema.AllModels {
		res, ok := in.Results[kind]
		if !ok {
			res = schema.AttributionResult{
				Model:      kind,
				Diagnostic: schema.Diagnostic{Method: "missing", Degraded: true},
			}
		}
		art.AttributionModels[kind] = schema.StageShare{
			View: schema.Round(res.Percentages[schema.ViewStage], ShareDecimals),
			Cart: schema.Round(res.Percentages[schema.CartStage], ShareDecimals),
		}
		art.ModelComparison[kind] = in.Scores[kind]
		art.Diagnostics[kind] = res.Diagnostic
		if in.IncludeCredits {
			credits := make(schema.StageCredit, len(schema.ReportStages))
			for _, s := range schema.ReportStages {
				credits[s] = schema.Round(res.Credits[s], StatDecimals)
			}
			art.Credits[kind] = credits
		}
	}
	return art
}

// Stats returns the journey statistics as published: averages rounded to two decimals
// and rates as percentages rounded to one decimal.
func Stats(journeys []schema.Journey) schema.JourneyStats {
	s := journey.Stats(journeys)
	s.AvgTouchpoints = schema.Round(s.AvgTouchpoints, StatDecimals)
	s.AvgDays = schema.Round(s.AvgDays, StatDecimals)
	s.ConversionRate = schema.Round(s.ConversionRate*100, ShareDecimals)
	s.CartAbandonmentRate = schema.Round(s.CartAbandonmentRate*100, ShareDecimals)
	return s
}
