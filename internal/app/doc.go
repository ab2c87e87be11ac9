// Package app runs a drop end to end: identity, merkle tree, metadata,
// then the mint batch.
//
// Responsibilities:
// - Sequence the stages and enforce the run state machine.
// - Decide the abort policy and build the run report.
// - Trace each stage.
//
// Non-responsibilities:
// - Wire encoding, RPC transport and persistence, which live in the
//   packages the stages are built from.
package app
