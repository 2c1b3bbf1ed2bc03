// Package api defines the public types of the workflow-graph
// synchronization engine: the graph document model (graphs, nodes,
// connections, groups), the Engine mutation surface, the ChangeRecord
// event model with its typed payloads, the error taxonomy, and the
// Sink family used for live fan-out.
//
// Most users import the root zeal package, which re-exports everything
// here together with the engine constructors.
package api
