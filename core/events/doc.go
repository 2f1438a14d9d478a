// Package events defines the build related events emitted on the event bus.
//
// Available event types:
//   - RunStarted: a build run begins
//   - TaskStarted: a task was admitted and handed to a worker
//   - TaskFinished: a task completed, successfully or not
//   - TaskCached: a task was skipped because its outputs are fresh
//   - TaskBlocked: a task will never run because a dependency failed
//   - LedgerSampled: the memory ledger changed
//   - FallbackApplied: a fallback policy substituted a wildcard value
//   - RunFinished: the run ended and the report is final
package events
