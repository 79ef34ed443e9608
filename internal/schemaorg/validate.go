package schemaorg

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Issue is a single validation finding.
type Issue struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// CheckResult is the outcome of validating one JSON-LD document.
type CheckResult struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues,omitempty"`
}

// requiredFields maps a schema.org type to field names it cannot ship
// without. Types not listed here only get the generic checks.
var requiredFields = map[string][]string{
	"Article":     {"headline"},
	"BlogPosting": {"headline"},
	"NewsArticle": {"headline"},
	"FAQPage":     {"mainEntity"},
	"HowTo":       {"name", "step"},
	"Product":     {"name"},
}

// Validate structurally checks a JSON-LD document: it must parse, carry a
// schema.org @context and a non-empty @type, and include the required
// fields for known types. Malformed JSON is an error (the caller cannot
// distinguish valid from invalid), anything parseable yields a CheckResult.
func Validate(schemaJSON string) (CheckResult, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(schemaJSON), &doc); err != nil {
		return CheckResult{}, fmt.Errorf("schema is not valid JSON: %w", err)
	}

	var issues []Issue

	ctxVal, ok := doc["@context"]
	if !ok {
		issues = append(issues, Issue{Path: "@context", Message: "missing @context"})
	} else if !contextMentionsSchemaOrg(ctxVal) {
		issues = append(issues, Issue{Path: "@context", Message: "@context does not reference schema.org"})
	}

	typeName := typeOf(doc)
	if typeName == "" {
		issues = append(issues, Issue{Path: "@type", Message: "missing or empty @type"})
	}

	for _, field := range requiredFields[typeName] {
		v, ok := doc[field]
		if !ok || isEmptyValue(v) {
			issues = append(issues, Issue{Path: field, Message: fmt.Sprintf("%s requires %q", typeName, field)})
		}
	}

	return CheckResult{Valid: len(issues) == 0, Issues: issues}, nil
}

func contextMentionsSchemaOrg(v any) bool {
	switch ctx := v.(type) {
	case string:
		return strings.Contains(ctx, "schema.org")
	case []any:
		for _, item := range ctx {
			if s, ok := item.(string); ok && strings.Contains(s, "schema.org") {
				return true
			}
		}
	case map[string]any:
		for _, item := range ctx {
			if s, ok := item.(string); ok && strings.Contains(s, "schema.org") {
				return true
			}
		}
	}
	return false
}

func typeOf(doc map[string]any) string {
	switch t := doc["@type"].(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}
