// Package logging defines the structured logging conventions of mailsort.
//
// All output goes through the standard library's slog package. Configure
// installs the process-wide handler from MAILSORT_LOG_LEVEL and
// MAILSORT_LOG_FORMAT; the attribute helpers keep field names consistent
// across the codebase so log lines stay greppable.
//
// Typical use:
//
//	logger := logging.WithRun(slog.Default(), runID)
//	logger.Info("message labeled",
//	    logging.MessageID(id),
//	    logging.Category("Work"))
//
// Email addresses never appear verbatim in logs. AnonymizeEmail hashes them
// so lines stay correlatable without carrying PII, Domain reduces them to
// the mail domain, and SanitizeToken replaces credentials with their length.
package logging
