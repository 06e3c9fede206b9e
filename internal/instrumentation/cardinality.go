package instrumentation

import "strings"

// ExtractUserDomain reduces an email address to its domain for use as a
// metrics label. Full addresses are PII and unbounded in cardinality;
// domains are neither. Anything that does not parse as a single address
// collapses to "unknown" so the label set stays closed.
//
//	ExtractUserDomain("jane@example.com") // "example.com"
//	ExtractUserDomain("not-an-address")   // "unknown"
func ExtractUserDomain(email string) string {
	_, domain, found := strings.Cut(email, "@")
	if !found || domain == "" || strings.Contains(domain, "@") {
		return "unknown"
	}
	return domain
}

// Operation classes for upstream API metrics and spans. Service and status
// constants live in config.go.
const (
	OperationList     = "list"
	OperationGet      = "get"
	OperationCreate   = "create"
	OperationModify   = "modify"
	OperationClassify = "classify"
	OperationOrganize = "organize"
)
