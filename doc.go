// Package steptrack provides execution-tracking primitives for multi-step
// workflows whose steps run as stateless compute units under an external
// step orchestrator. It records JobRun and Attempt lifecycle history,
// guards duplicate work with short-lived idempotency locks, and classifies
// failures so the orchestrator retries only what is safe to retry.
//
// steptrack is designed as a library, not a service. Import it, configure a
// store backend, and wrap step logic with a runner.Runner.
//
// # Quick Start
//
//	rt, err := steptrack.New(
//	    steptrack.WithStore(memory.New()),
//	    steptrack.WithLogger(logger),
//	)
//
// # Architecture
//
// All coordination happens through conditional writes against a shared
// (partition, sort)-keyed store. The store contract lives in the store
// package; backends: DynamoDB, Postgres, Redis, MongoDB, SQLite, and
// Memory. The runtime itself never retries, sweeps, or polls — each call
// is a single request/response against the store, and retry timing belongs
// to the orchestrator.
//
// Record IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based
// identifiers. Correlation IDs are plain random UUIDs generated once per
// workflow execution and propagated verbatim.
package steptrack
