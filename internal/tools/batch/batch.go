package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Item statuses
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result records the outcome of one item in a batch
type Result struct {
	ID     string `json:"id"`
	Status string `json:"status"` // "success" or "error"
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// BatchResult is the aggregate returned to the MCP client
type BatchResult struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Results    []Result `json:"results"`
}

// ParseStringOrArray accepts a tool argument as a single string, an array of
// strings, or a JSON-encoded array passed as a string. Some MCP clients
// stringify array arguments, so a string starting with "[" is tried as JSON
// first and treated as a literal value if it does not parse.
func ParseStringOrArray(param interface{}, paramName string) ([]string, error) {
	if param == nil {
		return nil, fmt.Errorf("%s is required", paramName)
	}

	switch v := param.(type) {
	case string:
		if v == "" {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		if strings.HasPrefix(strings.TrimSpace(v), "[") {
			var decoded []string
			if err := json.Unmarshal([]byte(v), &decoded); err == nil {
				if len(decoded) == 0 {
					return nil, fmt.Errorf("%s cannot be empty", paramName)
				}
				for i, item := range decoded {
					if item == "" {
						return nil, fmt.Errorf("%s[%d] cannot be empty", paramName, i)
					}
				}
				return decoded, nil
			}
		}
		return []string{v}, nil
	case []interface{}:
		if len(v) == 0 {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		result := make([]string, 0, len(v))
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string", paramName, i)
			}
			if str == "" {
				return nil, fmt.Errorf("%s[%d] cannot be empty", paramName, i)
			}
			result = append(result, str)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("%s must be a string or array of strings", paramName)
	}
}

// ProcessBatch runs fn once per ID and records each outcome. A failed item
// never stops the batch. Once ctx is done the remaining IDs are recorded as
// errors without calling fn, so a canceled run still reports every ID.
func ProcessBatch(ctx context.Context, ids []string, fn func(id string) (string, error)) []Result {
	results := make([]Result, 0, len(ids))

	for _, id := range ids {
		result := Result{ID: id}
		if err := ctx.Err(); err != nil {
			result.Status = StatusError
			result.Error = err.Error()
			results = append(results, result)
			continue
		}

		res, err := fn(id)
		if err != nil {
			result.Status = StatusError
			result.Error = err.Error()
		} else {
			result.Status = StatusSuccess
			result.Result = res
		}
		results = append(results, result)
	}

	return results
}

// FormatResults renders batch results as indented JSON with aggregate counts
func FormatResults(results []Result) string {
	br := BatchResult{
		Total:   len(results),
		Results: results,
	}

	for _, r := range results {
		if r.Status == StatusSuccess {
			br.Successful++
		} else {
			br.Failed++
		}
	}

	jsonBytes, _ := json.MarshalIndent(br, "", "  ")
	return string(jsonBytes)
}
