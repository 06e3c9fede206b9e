package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Attribute keys shared across packages so log fields stay greppable.
const (
	KeyOperation = "operation"
	KeyService   = "service"
	KeyAccount   = "account"
	KeyUserHash  = "user_hash"
	KeyStatus    = "status"
	KeyError     = "error"
	KeyTool      = "tool"
	KeyRunID     = "run_id"
	KeyMessageID = "message_id"
	KeyCategory  = "category"
	KeyCount     = "count"
)

// Status values mirror the instrumentation package; importing it here
// would be circular.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var logLevel = new(slog.LevelVar)

// Configure sets up the global default logger. The level comes from
// MAILSORT_LOG_LEVEL (DEBUG, INFO, WARN, ERROR; default INFO) and the
// format from MAILSORT_LOG_FORMAT (text or json; default text). Output
// goes to stderr so stdout stays free for command output and the MCP
// stdio transport.
func Configure() {
	logLevel.Set(slog.LevelInfo)
	switch strings.ToUpper(os.Getenv("MAILSORT_LOG_LEVEL")) {
	case "DEBUG":
		logLevel.Set(slog.LevelDebug)
	case "WARN":
		logLevel.Set(slog.LevelWarn)
	case "ERROR":
		logLevel.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if strings.EqualFold(os.Getenv("MAILSORT_LOG_FORMAT"), "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// SetLevel adjusts the level of the logger configured by Configure.
func SetLevel(level slog.Level) {
	logLevel.Set(level)
}

// WithOperation returns a logger carrying the operation name.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithAccount returns a logger carrying the account name.
func WithAccount(logger *slog.Logger, account string) *slog.Logger {
	return logger.With(slog.String(KeyAccount, account))
}

// WithRun returns a logger carrying the run identifier.
func WithRun(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With(slog.String(KeyRunID, runID))
}

// Attribute constructors for the shared keys.

func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

func Service(svc string) slog.Attr {
	return slog.String(KeyService, svc)
}

func Account(account string) slog.Attr {
	return slog.String(KeyAccount, account)
}

func Tool(tool string) slog.Attr {
	return slog.String(KeyTool, tool)
}

func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

func MessageID(id string) slog.Attr {
	return slog.String(KeyMessageID, id)
}

func Category(name string) slog.Attr {
	return slog.String(KeyCategory, name)
}

// Err turns an error into a log attribute. A nil error becomes an empty
// group, which slog drops from the output, so call sites never need to
// branch on nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeEmail hashes an email address into a stable opaque token. Log
// entries for the same user still correlate, but the address itself never
// reaches the log stream.
func AnonymizeEmail(email string) string {
	if email == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(email))
	return "user:" + hex.EncodeToString(hash[:8])
}

// UserHash returns the anonymized form of an email as a log attribute.
func UserHash(email string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeEmail(email))
}

// SanitizeToken renders a credential as a bare length indicator. Even a
// token prefix can leak structure (a JWT header, say), so no part of the
// content survives.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}

// ExtractDomain reduces an email address to its mail domain, the
// low-cardinality form for fields that would otherwise carry one value
// per user. Malformed addresses reduce to "".
func ExtractDomain(email string) string {
	if email == "" {
		return ""
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}

// Domain returns the mail domain of an email as a log attribute.
func Domain(email string) slog.Attr {
	return slog.String("user_domain", ExtractDomain(email))
}
