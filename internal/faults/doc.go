// Package faults defines the error taxonomy shared by the mailbox client,
// the classifier client, and the pipeline.
//
// Three kinds of failure exist:
//
//   - AuthError: the credential is invalid or expired. Fatal to a run.
//   - ProviderError: a transport/HTTP failure from Gmail or the model API.
//     Fatal at the fetch stage, per-message otherwise.
//   - ClassifierError: the model's answer matched no allowed category.
//     Always per-message; the message is left unlabeled.
//
// All three support errors.As via the Is* predicates, and AuthError and
// ProviderError unwrap to the underlying cause.
package faults
