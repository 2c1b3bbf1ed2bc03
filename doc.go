// Package zeal provides an embeddable synchronization engine for
// collaborative workflow graphs.
//
// Zeal is designed for backend services that let many clients edit the
// same workflow graph concurrently and need every client to converge on
// the same state. It runs fully in Go, supports multiple persistence
// backends, and integrates cleanly into existing codebases.
//
// # Core Concepts
//
// The programming model is intentionally small and idiomatic:
//
//  1. Engine
//  2. ChangeRecord
//  3. Poller
//  4. Sink
//  5. LocalRunner
//
// These components form a complete synchronization system with
// serialized mutation ordering, durable state (when using persistent
// backends), and a clear mental model.
//
// # Engine
//
// The Engine owns every workflow's graph document and provides APIs to:
//   - mutate graphs (nodes, connections, groups, subgraphs)
//   - read a consistent snapshot of a workflow's state
//   - fetch the change records committed after a known sequence
//   - flush, close, or delete workflows
//
// All mutations against one workflow are serialized: each concurrent
// request is applied atomically in some order, and the resulting change
// records carry strictly increasing sequence numbers. Engines can be
// backed by different storage systems:
//
//   - In-memory (non-durable, best for tests)
//   - SQLite (embedded durability)
//
// Engines are safe for concurrent use from any goroutine.
//
// # ChangeRecord
//
// Every committed mutation produces one or more ChangeRecords. A record
// names the workflow, the graph, the change type (node.added,
// connection.deleted, ...), and carries a typed payload. The sequence
// number is the sole ordering key; replaying records in sequence order
// reproduces the graph exactly.
//
// Records are kept in a bounded pending update log so disconnected
// clients can catch up. A client that falls behind the retention window
// gets a CapacityError and must resync from a snapshot.
//
// # Poller
//
// A Poller drives the catch-up protocol for one consumer: it tracks a
// sequence cursor, repeatedly fetches pending updates, hands each
// record to a handler, and transparently resyncs from a snapshot after
// a retention miss.
//
// # Sink
//
// A Sink receives every committed record at commit time, for live
// fan-out to connected clients. Sinks compose: LoggingSink writes
// structured logs, MetricsSink counts records by family, ChannelSink
// bridges into a Go channel, and CompositeSink fans out to several at
// once.
//
// # LocalRunner
//
// LocalRunner bundles an in-memory engine with managed poller
// goroutines into a single, process-local helper useful for development
// and unit testing.
//
// LocalRunner is intentionally **not crash-durable**, but it provides
// the most convenient way to run and debug graph synchronization during
// development.
//
// For examples, see the /examples directory or the project README.
package zeal
