package agent

import (
	"fmt"

	"github.com/hupe1980/graphmind/core"
	"github.com/hupe1980/graphmind/logging"
)

// Options configures agent construction.
type Options struct {
	// Spec carries the specialization parameters. Unset params fall back to
	// capability defaults.
	Spec core.Specialization

	// Graph is consulted (read-only) during Process.
	Graph core.GraphStore

	// Reasoner is the injected natural-language capability.
	Reasoner core.Reasoner

	// Logger receives per-agent diagnostics. Defaults to NoOp.
	Logger logging.Logger
}

// New constructs an agent of the given capability. The capability set is
// closed: variants are selected here at construction rather than through
// subclassing, keeping dispatch a single interface.
func New(capability core.CapabilityType, optFns ...func(o *Options)) (core.Agent, error) {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Graph == nil {
		return nil, fmt.Errorf("agent %s: graph store is required", capability)
	}
	if opts.Reasoner == nil {
		return nil, fmt.Errorf("agent %s: reasoner is required", capability)
	}

	d := deps{graph: opts.Graph, reasoner: opts.Reasoner, logger: opts.Logger}

	switch capability {
	case core.CapabilityResearch:
		return newResearchAgent(opts.Spec, d), nil
	case core.CapabilityPattern:
		return newPatternAgent(opts.Spec, d), nil
	case core.CapabilitySynthesis:
		return newSynthesisAgent(opts.Spec, d), nil
	default:
		return nil, fmt.Errorf("unknown capability type: %s", capability)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
