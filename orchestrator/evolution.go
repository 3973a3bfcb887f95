package orchestrator

import (
	"context"
	"sort"
	"time"

	"github.com/hupe1980/graphmind/agent"
	"github.com/hupe1980/graphmind/core"
)

// EvolutionReport summarizes one evolution cycle.
type EvolutionReport struct {
	// Population is the live population after the cycle.
	Population int

	// Terminated is how many agents were culled this cycle.
	Terminated int

	// Spawned is how many replacement descendants were created.
	Spawned int
}

// liveAgent pairs a registry key with its record for evolution bookkeeping.
type liveAgent struct {
	id  string
	rec *agentRecord
}

// evolutionLoop runs evolution cycles on the configured interval until the
// orchestrator stops.
func (o *Orchestrator) evolutionLoop(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.config.EvolutionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.RunEvolutionCycle()
		}
	}
}

// RunEvolutionCycle applies one round of evolutionary pressure: the bottom
// CullFraction of the live population is examined, agents under the
// termination floor are culled, and each termination is balanced by a
// descendant of a top-quartile survivor carrying a perturbed copy of its
// parent's specialization. The population never drops below PopulationMin
// and replacements never push it past PopulationMax.
func (o *Orchestrator) RunEvolutionCycle() EvolutionReport {
	start := time.Now()

	o.mu.Lock()
	defer o.mu.Unlock()

	var live []liveAgent
	for id, rec := range o.agents {
		if rec.state != core.StateTerminated {
			live = append(live, liveAgent{id: id, rec: rec})
		}
	}

	// Lowest fitness first; older agents break ties so newcomers get a
	// full interval to prove themselves.
	sort.Slice(live, func(i, j int) bool {
		if live[i].rec.fitness != live[j].rec.fitness {
			return live[i].rec.fitness < live[j].rec.fitness
		}
		return live[i].rec.born.Before(live[j].rec.born)
	})

	// Truncation would exempt populations smaller than 1/CullFraction from
	// any pressure, so at least the single worst agent is always examined.
	examined := int(o.config.CullFraction * float64(len(live)))
	if examined == 0 && len(live) > 0 {
		examined = 1
	}

	var doomed []liveAgent
	for _, la := range live[:min(examined, len(live))] {
		if la.rec.fitness < o.config.TerminationFloor {
			doomed = append(doomed, la)
		}
	}

	// Never cull below the population floor; the worst performers go
	// first when only some can be terminated.
	if maxTerminable := len(live) - o.config.PopulationMin; len(doomed) > maxTerminable {
		if maxTerminable < 0 {
			maxTerminable = 0
		}
		doomed = doomed[:maxTerminable]
	}

	var killed []liveAgent
	doomedIDs := make(map[string]bool, len(doomed))
	for _, la := range doomed {
		if err := o.killLocked(la.id); err != nil {
			o.logger.Error("evolution termination failed", "agent_id", la.id, "error", err)
			continue
		}
		doomedIDs[la.id] = true
		killed = append(killed, la)
	}

	var survivors []liveAgent
	for _, la := range live {
		if !doomedIDs[la.id] {
			survivors = append(survivors, la)
		}
	}
	sort.Slice(survivors, func(i, j int) bool {
		return survivors[i].rec.fitness > survivors[j].rec.fitness
	})

	spawned := 0
	if len(survivors) > 0 {
		quartile := survivors[:max(1, len(survivors)/4)]
		for _, la := range killed {
			parent := o.pickParent(quartile, la.rec.agent.Capability())
			childSpec := o.inherit(parent.rec.agent.Specialization())

			childID, err := o.spawnLocked(parent.rec.agent.Capability(), childSpec)
			if err != nil {
				o.logger.Error("evolution spawn failed", "parent_id", parent.id, "error", err)
				continue
			}

			child := o.agents[childID]
			if err := child.agent.Wake(); err == nil {
				child.state = core.StateActive
			}
			spawned++

			o.logger.Info("descendant spawned",
				"agent_id", childID,
				"parent_id", parent.id,
				"capability", parent.rec.agent.Capability(),
				"replaces", la.id)
		}
	}

	report := EvolutionReport{
		Population: o.populationLocked(),
		Terminated: len(killed),
		Spawned:    spawned,
	}

	o.logger.Info("evolution cycle complete",
		"population", report.Population,
		"terminated", report.Terminated,
		"spawned", report.Spawned,
		"duration", time.Since(start))

	return report
}

// pickParent chooses a random top-quartile survivor, preferring one with the
// same capability as the agent being replaced so specializations breed true.
func (o *Orchestrator) pickParent(quartile []liveAgent, capability core.CapabilityType) liveAgent {
	var matching []int
	for i, la := range quartile {
		if la.rec.agent.Capability() == capability {
			matching = append(matching, i)
		}
	}

	o.rngMu.Lock()
	defer o.rngMu.Unlock()

	if len(matching) > 0 {
		return quartile[matching[o.rng.Intn(len(matching))]]
	}
	return quartile[o.rng.Intn(len(quartile))]
}

// inherit derives a child specialization from a parent under the rng lock.
func (o *Orchestrator) inherit(parent core.Specialization) core.Specialization {
	o.rngMu.Lock()
	defer o.rngMu.Unlock()
	return agent.Inherit(parent, o.config.Variation, o.rng)
}
