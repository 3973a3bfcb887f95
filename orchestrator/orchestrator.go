package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/graphmind/agent"
	"github.com/hupe1980/graphmind/core"
	"github.com/hupe1980/graphmind/history"
	"github.com/hupe1980/graphmind/logging"
	"github.com/hupe1980/graphmind/validate"
)

// Fitness adjustments. Scores start at fitnessInitial and are clamped to
// [fitnessMin, fitnessMax] after every adjustment.
const (
	fitnessInitial = 1.0
	fitnessMin     = 0.0
	fitnessMax     = 2.0

	rewardValidated = 0.10
	penaltyRejected = 0.15
	penaltyError    = 0.10
	rewardAccepted  = 0.10
	penaltyIgnored  = 0.05
)

// Config defines tuning parameters for the orchestrator's operational
// behavior: dispatch concurrency and timeouts, intake queue sizing, and the
// evolutionary pressure applied to the agent population.
type Config struct {
	// MaxConcurrentDispatches bounds how many agent Process calls may run
	// simultaneously across the whole population.
	MaxConcurrentDispatches int64

	// DispatchTimeout caps a single agent Process call. An expired dispatch
	// counts as a processing failure for fitness purposes.
	DispatchTimeout time.Duration

	// GraceTimeout is how long a terminated agent's in-flight work may keep
	// running before its context is cancelled.
	GraceTimeout time.Duration

	// QueueCapacity bounds the validation intake queue. When full, outputs
	// from the lowest-fitness agents are shed first.
	QueueCapacity int

	// PopulationMin and PopulationMax bound the agent population. Evolution
	// never terminates below the minimum and spawning refuses to exceed the
	// maximum.
	PopulationMin int
	PopulationMax int

	// TerminationFloor is the fitness below which an agent becomes a
	// termination candidate during evolution.
	TerminationFloor float64

	// CullFraction is the share of the population (lowest fitness first)
	// examined for termination each evolution cycle.
	CullFraction float64

	// Variation is the perturbation magnitude applied to one inherited
	// specialization parameter when spawning a replacement.
	Variation float64

	// EvolutionInterval is the period between automatic evolution cycles.
	// Zero disables the timer; cycles can still be run manually.
	EvolutionInterval time.Duration
}

// DefaultConfig provides production-ready defaults: conservative concurrency,
// a queue deep enough for bursty event storms, and the standard evolutionary
// pressure settings.
var DefaultConfig = Config{
	MaxConcurrentDispatches: 16,
	DispatchTimeout:         30 * time.Second,
	GraceTimeout:            5 * time.Second,
	QueueCapacity:           128,
	PopulationMin:           2,
	PopulationMax:           32,
	TerminationFloor:        0.5,
	CullFraction:            0.2,
	Variation:               0.2,
	EvolutionInterval:       time.Minute,
}

// Reconciler merges conflicting outputs into a single reconciled claim. The
// synthesis agent capability satisfies this.
type Reconciler interface {
	Reconcile(ctx context.Context, conflicting []*core.AgentOutput) (*core.AgentOutput, error)
}

// Options configures an Orchestrator using the functional options pattern.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// Graph is the knowledge graph agents read from. Required.
	Graph core.GraphStore

	// Bus carries graph mutation events in and insight events out. Required.
	Bus core.Bus

	// History records validated insights for conflict detection, novelty
	// checks, and feedback. Defaults to an in-memory implementation.
	History history.History

	// Pipeline validates agent outputs. Defaults to the standard battery
	// wired to Graph and History.
	Pipeline *validate.Pipeline

	// Reasoner is handed to spawned agents for generative work. Required
	// for SpawnAgent and for synthesis-based conflict resolution.
	Reasoner core.Reasoner

	// Reconciler resolves conflicting outputs. Defaults to a synthesis
	// agent built on Reasoner; without one, conflicts escalate directly.
	Reconciler Reconciler

	// Rand drives parent selection and trait perturbation during evolution.
	// Defaults to a time-seeded source.
	Rand *rand.Rand

	// Logger provides structured logging. Defaults to NoOp.
	Logger logging.Logger
}

// agentRecord tracks one supervised agent: its fitness, lifecycle state, and
// the context in-flight dispatches run under.
type agentRecord struct {
	agent   core.Agent
	fitness float64
	state   core.LifecycleState
	ctx     context.Context
	cancel  context.CancelFunc
	born    time.Time
}

// AgentInfo is a point-in-time snapshot of a supervised agent.
type AgentInfo struct {
	ID         string
	Capability core.CapabilityType
	State      core.LifecycleState
	Fitness    float64
}

// Orchestrator supervises the agent population: routing events, validating
// outputs, accounting fitness, and applying evolutionary pressure. All public
// methods are safe for concurrent use.
type Orchestrator struct {
	config     Config
	graph      core.GraphStore
	bus        core.Bus
	hist       history.History
	pipeline   *validate.Pipeline
	reasoner   core.Reasoner
	reconciler Reconciler
	logger     logging.Logger

	mu     sync.RWMutex
	agents map[string]*agentRecord

	intake *intakeQueue
	notify chan struct{}
	sem    *semaphore.Weighted

	rngMu sync.Mutex
	rng   *rand.Rand

	runMu      sync.Mutex
	runCtx     context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	started    bool
	subscribed bool
}

// New creates an Orchestrator. Graph and Bus must be provided; everything
// else defaults to in-memory or no-op implementations.
func New(optFns ...func(o *Options)) (*Orchestrator, error) {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Graph == nil {
		return nil, fmt.Errorf("orchestrator: graph store is required")
	}

	if opts.Bus == nil {
		return nil, fmt.Errorf("orchestrator: event bus is required")
	}

	if opts.History == nil {
		opts.History = history.NewInMemoryHistory()
	}

	if opts.Pipeline == nil {
		opts.Pipeline = validate.New(func(o *validate.Options) {
			o.Graph = opts.Graph
			o.History = opts.History
			o.Logger = opts.Logger
		})
	}

	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	if opts.Reconciler == nil && opts.Reasoner != nil {
		synth, err := agent.New(core.CapabilitySynthesis, func(o *agent.Options) {
			o.Graph = opts.Graph
			o.Reasoner = opts.Reasoner
			o.Logger = opts.Logger
		})
		if err != nil {
			return nil, fmt.Errorf("orchestrator: build synthesis agent: %w", err)
		}
		opts.Reconciler = synth.(Reconciler)
	}

	cfg := opts.Config
	if cfg.MaxConcurrentDispatches <= 0 {
		cfg.MaxConcurrentDispatches = DefaultConfig.MaxConcurrentDispatches
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultConfig.QueueCapacity
	}
	if cfg.PopulationMax <= 0 {
		cfg.PopulationMax = DefaultConfig.PopulationMax
	}
	if cfg.PopulationMin < 0 {
		cfg.PopulationMin = 0
	}

	return &Orchestrator{
		config:     cfg,
		graph:      opts.Graph,
		bus:        opts.Bus,
		hist:       opts.History,
		pipeline:   opts.Pipeline,
		reasoner:   opts.Reasoner,
		reconciler: opts.Reconciler,
		logger:     opts.Logger,
		agents:     make(map[string]*agentRecord),
		intake:     newIntakeQueue(cfg.QueueCapacity),
		notify:     make(chan struct{}, 1),
		sem:        semaphore.NewWeighted(cfg.MaxConcurrentDispatches),
		rng:        opts.Rand,
	}, nil
}

// Start subscribes to graph mutation events and launches the validation
// worker and, when configured, the evolution timer. Start is not reentrant;
// a second call before Stop returns an error.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	if o.started {
		return fmt.Errorf("orchestrator: already started")
	}

	o.runCtx, o.cancel = context.WithCancel(ctx)
	o.started = true

	// The bus has no unsubscribe, so the handlers are registered once for the
	// orchestrator's lifetime; route drops events while stopped.
	if !o.subscribed {
		for _, t := range []core.EventType{core.EventNodeCreated, core.EventNodeUpdated, core.EventEdgeCreated} {
			o.bus.Subscribe(t, func(ev core.Event) error {
				o.route(ev)
				return nil
			})
		}
		o.subscribed = true
	}

	o.wg.Add(1)
	go o.validationWorker(o.runCtx)

	if o.config.EvolutionInterval > 0 {
		o.wg.Add(1)
		go o.evolutionLoop(o.runCtx)
	}

	o.logger.Info("orchestrator started",
		"max_concurrent", o.config.MaxConcurrentDispatches,
		"queue_capacity", o.config.QueueCapacity,
		"evolution_interval", o.config.EvolutionInterval)

	return nil
}

// Stop cancels all in-flight work, puts every live agent to sleep, and waits
// for the workers to exit. The bus itself is owned by the caller and is not
// closed here.
func (o *Orchestrator) Stop() {
	o.runMu.Lock()
	if !o.started {
		o.runMu.Unlock()
		return
	}
	o.started = false
	cancel := o.cancel
	o.runMu.Unlock()

	cancel()

	o.mu.Lock()
	for _, rec := range o.agents {
		if rec.state == core.StateActive {
			if err := rec.agent.Sleep(); err == nil {
				rec.state = core.StateSleeping
			}
		}
		rec.cancel()
	}
	o.mu.Unlock()

	o.wg.Wait()
	o.logger.Info("orchestrator stopped")
}

// route fans an event out to every active agent subscribed to its type. Each
// dispatch runs on its own goroutine behind the concurrency semaphore with a
// per-call timeout, so one slow agent cannot stall the others.
func (o *Orchestrator) route(ev core.Event) {
	o.mu.RLock()
	var targets []*agentRecord
	for _, rec := range o.agents {
		if rec.state != core.StateActive {
			continue
		}
		for _, t := range rec.agent.Subscriptions() {
			if t == ev.Type {
				targets = append(targets, rec)
				break
			}
		}
	}
	o.mu.RUnlock()

	// The started check and the Add share the lock Stop takes before Wait,
	// so a dispatch goroutine can never be registered after Stop started
	// waiting.
	o.runMu.Lock()
	if !o.started {
		o.runMu.Unlock()
		return
	}
	runCtx := o.runCtx
	o.wg.Add(len(targets))
	o.runMu.Unlock()

	for _, rec := range targets {
		rec := rec
		go func() {
			defer o.wg.Done()
			if err := o.sem.Acquire(runCtx, 1); err != nil {
				return
			}
			defer o.sem.Release(1)
			o.dispatch(rec, ev)
		}()
	}
}

// dispatch runs one agent Process call and feeds the result into the intake
// queue. Errors and timeouts are absorbed as fitness penalties; they never
// propagate past the dispatch boundary.
func (o *Orchestrator) dispatch(rec *agentRecord, ev core.Event) {
	ctx := rec.ctx
	if o.config.DispatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.DispatchTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := rec.agent.Process(ctx, ev)
	dur := time.Since(start)

	agentID := rec.agent.ID()
	if err != nil {
		o.adjustFitness(agentID, -penaltyError)
		o.logger.Warn("agent processing failed",
			"agent_id", agentID,
			"event_type", ev.Type,
			"duration", dur,
			"error", err)
		return
	}

	if out == nil {
		o.logger.Debug("agent produced no output",
			"agent_id", agentID,
			"event_type", ev.Type,
			"duration", dur)
		return
	}

	fitness, _ := o.Fitness(agentID)
	if !o.intake.Push(out, fitness) {
		o.logger.Warn("intake queue full, output shed",
			"agent_id", agentID,
			"output_id", out.ID,
			"fitness", fitness)
		return
	}

	select {
	case o.notify <- struct{}{}:
	default:
	}
}

// validationWorker drains the intake queue in priority order, one output at
// a time so validation verdicts land in a deterministic sequence.
func (o *Orchestrator) validationWorker(ctx context.Context) {
	defer o.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.notify:
		}

		for {
			out := o.intake.Pop()
			if out == nil {
				break
			}
			o.processOutput(ctx, out)
		}
	}
}

// processOutput validates one output and settles its fate: suppression with a
// fitness penalty, surfacing as an insight, or conflict resolution.
func (o *Orchestrator) processOutput(ctx context.Context, out *core.AgentOutput) {
	res := o.pipeline.Run(ctx, out)

	if !res.Passed {
		o.adjustFitness(out.AgentID, -penaltyRejected)
		o.logger.Debug("output rejected",
			"output_id", out.ID,
			"agent_id", out.AgentID,
			"pass_fraction", res.PassFraction,
			"issues", len(res.Issues))
		return
	}

	o.adjustFitness(out.AgentID, rewardValidated)

	if err := o.hist.Record(out, res); err != nil {
		o.logger.Error("record insight failed", "output_id", out.ID, "error", err)
		return
	}

	if len(res.Conflicting) == 0 {
		o.bus.Publish(core.NewInsightEvent(out, res))
		o.logger.Info("insight surfaced",
			"output_id", out.ID,
			"agent_id", out.AgentID,
			"confidence", out.Confidence)
		return
	}

	o.resolveConflict(ctx, out, res)
}

// resolveConflict attempts synthesis-based reconciliation of a validated
// output against the prior insights it contradicts. A reconciled claim that
// itself passes validation replaces the conflicting set; anything else
// escalates the whole set for human resolution.
func (o *Orchestrator) resolveConflict(ctx context.Context, out *core.AgentOutput, res *core.ValidationResult) {
	conflicting := []*core.AgentOutput{out}
	for _, id := range res.Conflicting {
		prior, err := o.hist.Get(id)
		if err != nil {
			continue
		}
		conflicting = append(conflicting, prior.Output)
	}

	o.logger.Info("conflict detected",
		"output_id", out.ID,
		"conflicting", len(conflicting))

	if o.reconciler != nil {
		merged, err := o.reconciler.Reconcile(ctx, conflicting)
		if err == nil && merged != nil {
			if verdict := o.pipeline.Run(ctx, merged); verdict.Passed {
				if err := o.hist.Record(merged, verdict); err == nil {
					o.bus.Publish(core.NewInsightEvent(merged, verdict))
					o.logger.Info("conflict reconciled",
						"output_id", out.ID,
						"merged_id", merged.ID)
					return
				}
			}
		}
	}

	o.escalate(conflicting)
}

// escalate marks every conflicting insight as needing human resolution and
// publishes a conflict event for the embedding application.
func (o *Orchestrator) escalate(conflicting []*core.AgentOutput) {
	for _, c := range conflicting {
		if err := o.hist.MarkEscalated(c.ID); err != nil && !errors.Is(err, history.ErrNotFound) {
			o.logger.Error("mark escalated failed", "output_id", c.ID, "error", err)
		}
	}

	o.bus.Publish(core.NewConflictEvent(conflicting))
	o.logger.Warn("conflict escalated", "conflicting", len(conflicting))
}

// SpawnAgent builds a new agent of the given capability, registers it in the
// Sleeping state with initial fitness, and returns its identity. Spawning
// fails once the population cap is reached.
func (o *Orchestrator) SpawnAgent(capability core.CapabilityType, spec core.Specialization) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.spawnLocked(capability, spec)
}

func (o *Orchestrator) spawnLocked(capability core.CapabilityType, spec core.Specialization) (string, error) {
	if o.populationLocked() >= o.config.PopulationMax {
		return "", fmt.Errorf("orchestrator: population cap %d reached", o.config.PopulationMax)
	}

	a, err := agent.New(capability, func(ao *agent.Options) {
		ao.Spec = spec
		ao.Graph = o.graph
		ao.Reasoner = o.reasoner
		ao.Logger = o.logger
	})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(context.Background())
	o.agents[a.ID()] = &agentRecord{
		agent:   a,
		fitness: fitnessInitial,
		state:   core.StateSleeping,
		ctx:     ctx,
		cancel:  cancel,
		born:    time.Now(),
	}

	o.logger.Info("agent spawned",
		"agent_id", a.ID(),
		"capability", capability,
		"focus", spec.Focus)

	return a.ID(), nil
}

// WakeAgent transitions a sleeping agent to Active so it starts receiving
// events.
func (o *Orchestrator) WakeAgent(agentID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	rec, ok := o.agents[agentID]
	if !ok {
		return fmt.Errorf("orchestrator: unknown agent %q", agentID)
	}
	if rec.state == core.StateTerminated {
		return fmt.Errorf("orchestrator: agent %q is terminated", agentID)
	}
	if err := rec.agent.Wake(); err != nil {
		return err
	}
	rec.state = core.StateActive
	return nil
}

// SleepAgent transitions an active agent back to Sleeping. Its fitness and
// specialization persist across the nap.
func (o *Orchestrator) SleepAgent(agentID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	rec, ok := o.agents[agentID]
	if !ok {
		return fmt.Errorf("orchestrator: unknown agent %q", agentID)
	}
	if rec.state == core.StateTerminated {
		return fmt.Errorf("orchestrator: agent %q is terminated", agentID)
	}
	if err := rec.agent.Sleep(); err != nil {
		return err
	}
	rec.state = core.StateSleeping
	return nil
}

// KillAgent permanently terminates an agent. In-flight work gets the grace
// timeout before its context is cancelled; the identity is never reused.
func (o *Orchestrator) KillAgent(agentID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.killLocked(agentID)
}

func (o *Orchestrator) killLocked(agentID string) error {
	rec, ok := o.agents[agentID]
	if !ok {
		return fmt.Errorf("orchestrator: unknown agent %q", agentID)
	}
	if rec.state == core.StateTerminated {
		return fmt.Errorf("orchestrator: agent %q already terminated", agentID)
	}

	if rec.state == core.StateActive {
		if err := rec.agent.Sleep(); err != nil {
			o.logger.Warn("sleep before kill failed", "agent_id", agentID, "error", err)
		}
	}
	rec.state = core.StateTerminated

	if o.config.GraceTimeout > 0 {
		time.AfterFunc(o.config.GraceTimeout, rec.cancel)
	} else {
		rec.cancel()
	}

	o.logger.Info("agent terminated", "agent_id", agentID, "fitness", rec.fitness)
	return nil
}

// RecordFeedback applies downstream usage signals to the producing agent's
// fitness: used and saved insights reward it, ignored and dismissed ones
// penalize it.
func (o *Orchestrator) RecordFeedback(outputID string, action core.FeedbackAction) error {
	var delta float64
	switch action {
	case core.FeedbackUsed, core.FeedbackSaved:
		delta = rewardAccepted
	case core.FeedbackIgnored, core.FeedbackDismissed:
		delta = -penaltyIgnored
	default:
		return fmt.Errorf("orchestrator: unknown feedback action %q", action)
	}

	if err := o.hist.AddFeedback(outputID, action); err != nil {
		return err
	}

	insight, err := o.hist.Get(outputID)
	if err != nil {
		return err
	}

	o.adjustFitness(insight.Output.AgentID, delta)
	return nil
}

// ResolveConflict records a human decision on an escalated insight, clearing
// the needs-human-resolution flag.
func (o *Orchestrator) ResolveConflict(outputID string) error {
	return o.hist.Resolve(outputID)
}

// Fitness returns the current fitness of an agent, if it is known.
func (o *Orchestrator) Fitness(agentID string) (float64, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	rec, ok := o.agents[agentID]
	if !ok {
		return 0, false
	}
	return rec.fitness, true
}

// adjustFitness applies a bounded delta. Adjustments on terminated or unknown
// agents are dropped silently; late results from a culled agent are not an
// error.
func (o *Orchestrator) adjustFitness(agentID string, delta float64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	rec, ok := o.agents[agentID]
	if !ok || rec.state == core.StateTerminated {
		return
	}

	rec.fitness += delta
	if rec.fitness > fitnessMax {
		rec.fitness = fitnessMax
	}
	if rec.fitness < fitnessMin {
		rec.fitness = fitnessMin
	}

	o.logger.Debug("fitness adjusted",
		"agent_id", agentID,
		"delta", delta,
		"fitness", rec.fitness)
}

// Population reports the number of live (non-terminated) agents.
func (o *Orchestrator) Population() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.populationLocked()
}

func (o *Orchestrator) populationLocked() int {
	n := 0
	for _, rec := range o.agents {
		if rec.state != core.StateTerminated {
			n++
		}
	}
	return n
}

// Agents returns a snapshot of every supervised agent, terminated ones
// included.
func (o *Orchestrator) Agents() []AgentInfo {
	o.mu.RLock()
	defer o.mu.RUnlock()

	infos := make([]AgentInfo, 0, len(o.agents))
	for id, rec := range o.agents {
		infos = append(infos, AgentInfo{
			ID:         id,
			Capability: rec.agent.Capability(),
			State:      rec.state,
			Fitness:    rec.fitness,
		})
	}
	return infos
}

// QueueDepth reports the number of outputs awaiting validation.
func (o *Orchestrator) QueueDepth() int { return o.intake.Len() }

// ShedCount reports how many outputs have been dropped under load.
func (o *Orchestrator) ShedCount() uint64 { return o.intake.Shed() }
