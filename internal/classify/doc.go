// Package classify provides the classifier client for the pipeline.
//
// The client wraps a single chat-completion request per email: the prompt
// carries the email text and the allowed category set, and the model's
// answer is snapped to that set by exact case-insensitive match. A response
// that matches no allowed category is a ClassifierError; the client never
// falls back to a default category.
package classify
