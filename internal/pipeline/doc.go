// Package pipeline drives the classify-and-label pass over a mailbox.
//
// An Orchestrator fetches unread messages, classifies each one into a
// category and applies the matching label. Runs are independent: each one
// produces a RunReport with per-message outcomes and carries no state into
// the next run.
//
// Failure handling is staged. A failure while listing unread messages
// aborts the run with no report. A failure while classifying or labeling a
// single message is recorded as that message's outcome and the run
// continues with the rest. Label application is idempotent on the provider
// side, so re-running over the same messages is safe.
package pipeline
