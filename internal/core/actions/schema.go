package actions

import "fmt"

// FieldKind is the declared type of a payload field.
type FieldKind uint8

const (
	FieldAny FieldKind = iota
	FieldString
	FieldNumber
	FieldBool
	FieldList
)

func (k FieldKind) String() string {
	switch k {
	case FieldString:
		return "string"
	case FieldNumber:
		return "number"
	case FieldBool:
		return "bool"
	case FieldList:
		return "list"
	default:
		return "any"
	}
}

// FieldSpec validates a single payload field. Numeric bounds apply to
// numbers, OneOf and MaxLen to strings.
type FieldSpec struct {
	Kind     FieldKind
	Required bool
	OneOf    []string
	Min      *float64
	Max      *float64
	MaxLen   int
}

// Schema is the declarative input contract of an action, keyed by field
// name. Unknown payload fields are rejected to keep handler inputs closed.
type Schema map[string]FieldSpec

// Issue is one structured validation finding.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validate checks a raw payload against the schema and returns all findings.
func (s Schema) Validate(payload map[string]any) []Issue {
	var issues []Issue

	for name := range payload {
		if _, declared := s[name]; !declared {
			issues = append(issues, Issue{Field: name, Message: "unknown field"})
		}
	}

	for name, spec := range s {
		value, present := payload[name]
		if !present {
			if spec.Required {
				issues = append(issues, Issue{Field: name, Message: "required field missing"})
			}
			continue
		}
		issues = append(issues, spec.check(name, value)...)
	}
	return issues
}

func (spec FieldSpec) check(name string, value any) []Issue {
	var issues []Issue
	switch spec.Kind {
	case FieldString:
		str, isString := value.(string)
		if !isString {
			return []Issue{{Field: name, Message: "expected string"}}
		}
		if spec.MaxLen > 0 && len(str) > spec.MaxLen {
			issues = append(issues, Issue{Field: name, Message: fmt.Sprintf("longer than %d characters", spec.MaxLen)})
		}
		if len(spec.OneOf) > 0 && !contains(spec.OneOf, str) {
			issues = append(issues, Issue{Field: name, Message: fmt.Sprintf("must be one of %v", spec.OneOf)})
		}
	case FieldNumber:
		// JSON decoding hands numbers over as float64
		num, isNumber := value.(float64)
		if !isNumber {
			if i, isInt := value.(int); isInt {
				num, isNumber = float64(i), true
			}
		}
		if !isNumber {
			return []Issue{{Field: name, Message: "expected number"}}
		}
		if spec.Min != nil && num < *spec.Min {
			issues = append(issues, Issue{Field: name, Message: fmt.Sprintf("below minimum %g", *spec.Min)})
		}
		if spec.Max != nil && num > *spec.Max {
			issues = append(issues, Issue{Field: name, Message: fmt.Sprintf("above maximum %g", *spec.Max)})
		}
	case FieldBool:
		if _, isBool := value.(bool); !isBool {
			return []Issue{{Field: name, Message: "expected bool"}}
		}
	case FieldList:
		if _, isList := value.([]any); !isList {
			return []Issue{{Field: name, Message: "expected list"}}
		}
	}
	return issues
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// Float is a convenience for bound pointers in schema literals.
func Float(v float64) *float64 { return &v }
