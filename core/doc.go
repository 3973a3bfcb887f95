// Package core provides the foundational domain types and interfaces used by
// GraphMind. It defines the core abstractions for:
//
//   - Nodes and Edges (units of the knowledge graph and their typed,
//     directed relationships)
//   - Events (immutable graph-change and orchestration records fanned out
//     over the event bus)
//   - Agents (autonomous analysis units with a uniform wake/sleep/process
//     lifecycle)
//   - AgentOutputs and ValidationResults (candidate insights and the
//     verdicts produced by the validation pipeline)
//   - Pluggable boundaries for graph storage, event dispatch and external
//     reasoning capabilities
//
// The package intentionally keeps implementation concerns (concrete stores,
// orchestration, provider-backed reasoners) out of scope, exposing small
// interfaces to enable custom backends and extensions.
package core
