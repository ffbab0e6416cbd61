package attribution

import (
	"errors"
	"fmt"
	"math"

	"github.com/step6836/marketing-attribution/core/algo"
	"github.com/step6836/marketing-attribution/schema"
)

// Reserved state names.
const (
	StartState      = "(start)"
	ConversionState = "(conversion)"
	NullState       = "(null)"
)

// Chain is an absorbing Markov chain over funnel stages. States live in an arena
// and are addressed by index: start is 0, conversion 1, null 2, stages follow.
type Chain struct {
	names  []string
	index  map[string]int
	counts [][]float64
}

const (
	startIdx = iota
	conversionIdx
	nullIdx
)

// NewChain counts transitions over all journeys. Converted journeys walk their credited
// stages into the conversion state, others walk all touchpoints into null. Repeated
// consecutive stages are collapsed so the chain has no self-loops on stages.
func NewChain(journeys []schema.Journey) *Chain {
	c := &Chain{index: make(map[string]int)}
	for _, name := range []string{StartState, ConversionState, NullState} {
		c.state(name)
	}
	for _, j := range journeys {
		tps := j.Touchpoints
		end := nullIdx
		if j.Converted {
			tps = j.Credited()
			end = conversionIdx
		}
		prev := startIdx
		for _, tp := range tps {
			cur := c.state(string(tp.Stage))
			if cur == prev {
				continue
			}
			c.counts[prev][cur]++
			prev = cur
		}
		c.counts[prev][end]++
	}
	return c
}

func (c *Chain) state(name string) int {
	if i, ok := c.index[name]; ok {
		return i
	}
	i := len(c.names)
	c.names = append(c.names, name)
	c.index[name] = i
	for k := range c.counts {
		c.counts[k] = append(c.counts[k], 0)
	}
	c.counts = append(c.counts, make([]float64, len(c.names)))
	return i
}

// States returns the state names in arena order.
func (c *Chain) States() []string {
	return append([]string(nil), c.names...)
}

// Index returns the arena index of a state.
func (c *Chain) Index(name string) (int, bool) {
	i, ok := c.index[name]
	return i, ok
}

// StageStates returns the stage states, which are every state except the reserved ones.
func (c *Chain) StageStates() []schema.Stage {
	out := make([]schema.Stage, 0, len(c.names)-3)
	for _, n := range c.names[3:] {
		out = append(out, schema.Stage(n))
	}
	return out
}

// TransitionMatrix returns the row-stochastic transition matrix. Absorbing states loop
// onto themselves; a transient state with no observed exit moves to null.
func (c *Chain) TransitionMatrix() [][]float64 {
	n := len(c.names)
	p := make([][]float64, n)
	for i := range n {
		p[i] = make([]float64, n)
		if i == conversionIdx || i == nullIdx {
			p[i][i] = 1
			continue
		}
		total := 0.0
		for _, v := range c.counts[i] {
			total += v
		}
		if total == 0 {
			p[i][nullIdx] = 1
			continue
		}
		for j, v := range c.counts[i] {
			p[i][j] = v / total
		}
	}
	return p
}

// Without returns a copy of p where every transition into state k goes to null instead.
func Without(p [][]float64, k int) [][]float64 {
	out := make([][]float64, len(p))
	for i, row := range p {
		out[i] = append([]float64(nil), row...)
		if i == k || i == conversionIdx || i == nullIdx {
			continue
		}
		out[i][nullIdx] += out[i][k]
		out[i][k] = 0
	}
	return out
}

// SolveResult is the conversion probability from start plus how it was obtained.
type SolveResult struct {
	Probability float64
	Iterative   bool
	Iterations  int
	Converged   bool
}

// ConversionProbability solves (I - Q)x = r on the transient submatrix of p, where r is
// the one-step probability of conversion. A near-singular system is retried with
// fixed-point iteration.
func ConversionProbability(p [][]float64, pivotTol, tol float64, maxIter int) (SolveResult, error) {
	var transient []int
	for i := range p {
		if i != conversionIdx && i != nullIdx {
			transient = append(transient, i)
		}
	}

	m := len(transient)
	a := make([][]float64, m)
	q := make([][]float64, m)
	r := make([]float64, m)
	for ri, i := range transient {
		a[ri] = make([]float64, m)
		q[ri] = make([]float64, m)
		for ci, j := range transient {
			q[ri][ci] = p[i][j]
			a[ri][ci] = -p[i][j]
		}
		a[ri][ri]++
		r[ri] = p[i][conversionIdx]
	}

	// start is always the first transient state
	x, err := algo.Solve(a, r, pivotTol)
	if err == nil {
		return SolveResult{Probability: clamp01(x[0]), Converged: true}, nil
	}
	if !errors.Is(err, algo.ErrSingular) {
		return SolveResult{}, fmt.Errorf("absorption solve: %w", err)
	}

	x, iters, ierr := algo.SolveFixedPoint(q, r, tol, maxIter)
	res := SolveResult{Probability: clamp01(x[0]), Iterative: true, Iterations: iters, Converged: ierr == nil}
	return res, nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return schema.Clamp(v, 0, 1)
}
