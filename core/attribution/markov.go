package attribution

import (
	"context"
	"fmt"

	"github.com/step6836/marketing-attribution/schema"
)

// RemovalEffects returns, for every stage state of the chain, the relative drop in
// conversion probability when that stage is removed. The base probability is returned
// alongside. Any iterative fallback is reported through notes.
func RemovalEffects(chain *Chain, p Params) (map[schema.Stage]float64, float64, []string, error) {
	pivotTol := p.PivotTolerance
	if pivotTol <= 0 {
		pivotTol = DefaultParams().PivotTolerance
	}
	tol := p.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	maxIter := p.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	var notes []string
	note := func(label string, res SolveResult) {
		if !res.Iterative {
			return
		}
		msg := fmt.Sprintf("near-singular absorption system for %s; used fixed-point iteration (%d iterations", label, res.Iterations)
		if !res.Converged {
			msg += ", not converged"
		}
		notes = append(notes, msg+")")
	}

	matrix := chain.TransitionMatrix()
	base, err := ConversionProbability(matrix, pivotTol, tol, maxIter)
	if err != nil {
		return nil, 0, notes, err
	}
	note("full chain", base)

	effects := make(map[schema.Stage]float64)
	for _, stage := range chain.StageStates() {
		k, _ := chain.Index(string(stage))
		removed, err := ConversionProbability(Without(matrix, k), pivotTol, tol, maxIter)
		if err != nil {
			return nil, 0, notes, err
		}
		note("removal of "+string(stage), removed)
		effects[stage] = max(schema.SafeDiv(base.Probability-removed.Probability, base.Probability), 0)
	}
	return effects, base.Probability, notes, nil
}

// markov credits each journey's distinct stages proportionally to their removal effects.
func markov(ctx context.Context, journeys []schema.Journey, p Params) ([]schema.JourneyCredit, schema.Diagnostic, error) {
	diag := schema.Diagnostic{Method: "direct"}

	chain := NewChain(journeys)
	effects, _, notes, err := RemovalEffects(chain, p)
	if err != nil {
		return nil, diag, err
	}
	if len(notes) > 0 {
		diag.Method = "iterative"
		diag.Notes = append(diag.Notes, notes...)
	}

	fallback := 0
	out, err := eachConverted(ctx, journeys, func(j schema.Journey) schema.StageCredit {
		stages := j.CreditedStages()
		if len(stages) == 1 {
			return schema.StageCredit{stages[0]: j.Value}
		}
		credits, ok := splitByWeight(stages, effects, j.Value)
		if !ok {
			fallback++
			return splitEqually(stages, j.Value)
		}
		return credits
	})
	if err != nil {
		return nil, diag, err
	}
	if fallback > 0 {
		diag.Notes = append(diag.Notes, fmt.Sprintf("%d journeys had zero removal effect on every stage; split equally", fallback))
	}
	return out, diag, nil
}
