package payload

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/apprendo/apprendo/pkg/api"
)

// Kind is the expected JSON type of a field.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	}
	return "unknown"
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Field declares one accepted payload field and its constraints.
// MinLen/MaxLen and Email apply to string fields only.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
	MinLen   int
	MaxLen   int
	Enum     []string
	Email    bool
}

// Schema is the declared field set of one operation. Fields not listed
// here are rejected outright so a caller cannot smuggle extra columns
// into a store write.
type Schema struct {
	Fields []Field
}

// Validate checks a sanitized payload against the schema and returns
// all failures, not just the first, so a caller can fix its request in
// one round trip. An empty slice means the payload is valid.
func (s *Schema) Validate(body map[string]any) []string {
	var failures []string

	declared := make(map[string]*Field, len(s.Fields))
	for i := range s.Fields {
		declared[s.Fields[i].Name] = &s.Fields[i]
	}

	for name := range body {
		if _, ok := declared[name]; !ok {
			failures = append(failures, fmt.Sprintf("%s: unknown field", name))
		}
	}

	for i := range s.Fields {
		f := &s.Fields[i]
		value, present := body[f.Name]
		if !present {
			if f.Required {
				failures = append(failures, fmt.Sprintf("%s: required", f.Name))
			}
			continue
		}
		failures = append(failures, f.check(value)...)
	}

	slices.Sort(failures)
	return failures
}

func (f *Field) check(value any) []string {
	var failures []string

	switch f.Kind {
	case KindString:
		s, ok := value.(string)
		if !ok {
			return []string{fmt.Sprintf("%s: must be a string", f.Name)}
		}
		n := len([]rune(s))
		if f.Required && n == 0 {
			failures = append(failures, fmt.Sprintf("%s: required", f.Name))
		}
		if f.MinLen > 0 && n > 0 && n < f.MinLen {
			failures = append(failures, fmt.Sprintf("%s: must be at least %d characters", f.Name, f.MinLen))
		}
		if f.MaxLen > 0 && n > f.MaxLen {
			failures = append(failures, fmt.Sprintf("%s: must be at most %d characters", f.Name, f.MaxLen))
		}
		if f.Email && n > 0 && !emailPattern.MatchString(s) {
			failures = append(failures, fmt.Sprintf("%s: must be a valid email address", f.Name))
		}
		if len(f.Enum) > 0 && n > 0 && !slices.Contains(f.Enum, s) {
			failures = append(failures, fmt.Sprintf("%s: must be one of %s", f.Name, strings.Join(f.Enum, ", ")))
		}
	case KindBool:
		if _, ok := value.(bool); !ok {
			failures = append(failures, fmt.Sprintf("%s: must be a boolean", f.Name))
		}
	case KindNumber:
		if _, ok := value.(float64); !ok {
			failures = append(failures, fmt.Sprintf("%s: must be a number", f.Name))
		}
	}

	return failures
}

// Processor runs the full pipeline over a decoded body: sanitize, then
// screen, then validate.
type Processor struct {
	screener *Screener
}

// NewProcessor creates a Processor. Nil screener means one with the
// default rule set.
func NewProcessor(screener *Screener) *Processor {
	if screener == nil {
		screener = NewScreener(nil, nil)
	}
	return &Processor{screener: screener}
}

// Process returns the sanitized body, or an error when a threat
// signature matches or the schema rejects it. The raw body is screened
// standalone before sanitization so a signature the sanitizer would
// strip is still detected; the sanitized body is then screened again
// with the full rule set. The returned body is the one handlers must
// read; the raw input is not to be trusted.
func (p *Processor) Process(body map[string]any, schema *Schema) (map[string]any, error) {
	if err := p.screener.ScreenRaw(body); err != nil {
		return nil, err
	}

	clean, _ := Sanitize(body).(map[string]any)
	if clean == nil {
		clean = map[string]any{}
	}

	if err := p.screener.Screen(clean); err != nil {
		return nil, err
	}

	if schema != nil {
		if failures := schema.Validate(clean); len(failures) > 0 {
			return nil, api.NewValidationError(failures)
		}
	}

	return clean, nil
}

// OptionalString reads a string field that may be absent, returning nil
// when it is.
func OptionalString(body map[string]any, name string) *string {
	if v, ok := body[name].(string); ok {
		return &v
	}
	return nil
}

// String reads a string field, returning "" when absent.
func String(body map[string]any, name string) string {
	v, _ := body[name].(string)
	return v
}
