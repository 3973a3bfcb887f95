// Package orchestrator supervises the agent population and drives the
// perceive-process-validate loop at the heart of graphmind.
//
// The orchestrator subscribes to graph mutation events on the shared bus and
// routes each event to every active agent whose subscriptions match, with
// bounded concurrency and a per-dispatch timeout. Agent outputs are queued by
// confidence, validated through the pipeline, and either surfaced as insights,
// reconciled when they conflict with prior insights, or suppressed.
//
// Every outcome feeds a per-agent fitness score: validated outputs and useful
// feedback raise it, rejections, processing failures, and ignored insights
// lower it. A periodic evolution cycle terminates persistently low-fitness
// agents and replaces them with perturbed descendants of top performers, so
// the population drifts toward specializations that produce accepted work.
//
// Core Responsibilities:
//   - Agent Registry: thread-safe lifecycle management (sleeping, active,
//     terminated) with spawn, wake, sleep, and kill operations
//   - Event Routing: concurrent dispatch to subscribed active agents with
//     backpressure and timeouts
//   - Validation Flow: intake queue, pipeline runs, conflict resolution via a
//     synthesis agent, and human escalation when reconciliation fails
//   - Fitness Accounting: bounded scores driving evolutionary pressure
//
// The orchestrator never writes to the graph itself; it observes mutations and
// surfaces validated insights for the embedding application to act on.
package orchestrator
