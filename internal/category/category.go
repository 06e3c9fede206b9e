package category

import (
	"fmt"
	"strings"
)

// Category is one classification outcome for a message.
type Category string

const (
	Work       Category = "Work"
	Personal   Category = "Personal"
	Promotions Category = "Promotions"
	Social     Category = "Social"
	Updates    Category = "Updates"
)

// Stock returns the built-in category set in prompt order.
func Stock() []Category {
	return []Category{Work, Personal, Promotions, Social, Updates}
}

// String returns the canonical name of the category.
func (c Category) String() string {
	return string(c)
}

// Parse resolves a name to a stock category using exact case-insensitive
// matching. It returns an error for anything outside the stock set.
func Parse(name string) (Category, error) {
	c, ok := Snap(name, Stock())
	if !ok {
		return "", fmt.Errorf("unknown category %q", name)
	}
	return c, nil
}

// Snap matches raw text against the allowed set, case-insensitively and
// ignoring surrounding whitespace. The returned category carries the
// canonical casing of the allowed entry, not the raw input's. Snap reports
// false when nothing matches; callers decide how to fail.
func Snap(raw string, allowed []Category) (Category, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	for _, c := range allowed {
		if strings.EqualFold(trimmed, string(c)) {
			return c, true
		}
	}
	return "", false
}

// ParseList parses a comma-separated list of category names into categories,
// skipping empty entries and collapsing duplicates while preserving order.
// An empty input yields nil, meaning "no restriction".
func ParseList(input string) ([]Category, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}

	var out []Category
	seen := make(map[Category]bool)
	for _, part := range strings.Split(input, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		c, err := Parse(name)
		if err != nil {
			return nil, err
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// Names returns the canonical names of the given categories.
func Names(categories []Category) []string {
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, string(c))
	}
	return names
}

// RestrictionFromInstructions derives an allowed-category restriction from
// free-text classification instructions. Instructions like "sort my mail
// only into Work and Social" restrict the run to the stock categories they
// mention. The restriction applies when the instructions contain "only" and
// name at least two stock categories; otherwise nil is returned and the
// full stock set stays in effect.
func RestrictionFromInstructions(instructions string) []Category {
	lower := strings.ToLower(instructions)
	if !strings.Contains(lower, "only") {
		return nil
	}

	var mentioned []Category
	for _, c := range Stock() {
		if strings.Contains(lower, strings.ToLower(string(c))) {
			mentioned = append(mentioned, c)
		}
	}

	if len(mentioned) < 2 {
		return nil
	}
	return mentioned
}
