// Package validate runs the fixed, ordered battery of checks every candidate
// output must clear before it may be surfaced: grounding (claims cite live
// nodes), consistency (no unflagged contradiction of prior passed outputs)
// and novelty (no near-duplicate of the agent's recent claims). The overall
// verdict is a lightweight consensus: a configurable fraction of checks must
// pass rather than a strict AND, tolerating one weak signal.
package validate

import (
	"context"

	"github.com/hupe1980/graphmind/core"
	"github.com/hupe1980/graphmind/history"
	"github.com/hupe1980/graphmind/logging"
)

// DefaultPassThreshold is the fraction of checks that must pass for the
// output to surface.
const DefaultPassThreshold = 0.7

// Verdict is the outcome of a single check.
type Verdict struct {
	// Passed counts toward the pass fraction.
	Passed bool

	// Issues carries diagnostics even for passed checks (e.g. a flagged
	// conflict that is surfaced rather than suppressed).
	Issues []core.Issue

	// Conflicting lists prior passed output ids this output contradicts.
	Conflicting []string
}

// Check is one validation stage. Checks are pure with respect to the output:
// they read the graph and history but never mutate the candidate.
type Check interface {
	Name() string
	Evaluate(ctx context.Context, out *core.AgentOutput) Verdict
}

// Options configures a Pipeline.
type Options struct {
	// Graph backs the grounding check.
	Graph core.GraphStore

	// History backs the consistency and novelty checks.
	History history.History

	// Threshold is the pass fraction required to surface (DefaultPassThreshold).
	Threshold float64

	// NoveltyThreshold is the similarity above which a claim counts as a
	// near-duplicate (default 0.9).
	NoveltyThreshold float64

	// NoveltyWindow is how many recent insights of the same agent are
	// compared (default 10).
	NoveltyWindow int

	// Checks overrides the default battery entirely.
	Checks []Check

	// Logger receives per-output verdict diagnostics.
	Logger logging.Logger
}

// Pipeline runs the battery in order and folds the verdicts into one
// core.ValidationResult keyed by output id. The candidate output is never
// mutated.
type Pipeline struct {
	checks    []Check
	threshold float64
	logger    logging.Logger
}

// New builds a pipeline. Unless Checks is overridden, the battery is
// grounding, consistency, novelty in that order; Graph and History are then
// required.
func New(optFns ...func(o *Options)) *Pipeline {
	opts := Options{
		Threshold:        DefaultPassThreshold,
		NoveltyThreshold: 0.9,
		NoveltyWindow:    10,
		Logger:           logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	checks := opts.Checks
	if checks == nil {
		checks = []Check{
			&GroundingCheck{Graph: opts.Graph},
			&ConsistencyCheck{History: opts.History},
			&NoveltyCheck{History: opts.History, Threshold: opts.NoveltyThreshold, Window: opts.NoveltyWindow},
		}
	}

	return &Pipeline{checks: checks, threshold: opts.Threshold, logger: opts.Logger}
}

// Run evaluates every check against the output and returns the verdict.
// Passed requires pass fraction >= threshold.
func (p *Pipeline) Run(ctx context.Context, out *core.AgentOutput) *core.ValidationResult {
	res := &core.ValidationResult{OutputID: out.ID}

	passed := 0
	for _, check := range p.checks {
		v := check.Evaluate(ctx, out)
		if v.Passed {
			passed++
		}
		res.Issues = append(res.Issues, v.Issues...)
		res.Conflicting = append(res.Conflicting, v.Conflicting...)
	}

	if len(p.checks) > 0 {
		res.PassFraction = float64(passed) / float64(len(p.checks))
	}
	res.Passed = res.PassFraction >= p.threshold

	p.logger.Debug("validation verdict", "output_id", out.ID, "passed", res.Passed, "pass_fraction", res.PassFraction, "issues", len(res.Issues))
	return res
}
