package harness

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rete/internal/demo"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fired := 0
	for _, event := range e.Trace {
		if event.Type == eventRuleFired {
			if fired == 0 {
				fmt.Fprintf(&buf, "\nFired rules:\n")
			}
			fired++
			fmt.Fprintf(&buf, "  [%d] step %d: %s\n", fired, event.Step, event.Rule)
		}
	}
	return buf.String()
}

// assertFired checks the rule fired at least once.
func assertFired(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Type == eventRuleFired && event.Rule == assertion.Rule {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertFired,
		Expected: fmt.Sprintf("rule %s fired", assertion.Rule),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertFiredOrder checks rules first fired in the specified order.
// Rules don't need to be consecutive (intervening firings are allowed).
func assertFiredOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	n := 0
	for _, event := range trace {
		if event.Type != eventRuleFired {
			continue
		}
		n++
		if positions[event.Rule] == 0 {
			positions[event.Rule] = n // 1-indexed for readability
		}
	}

	for _, rule := range assertion.Rules {
		if positions[rule] == 0 {
			return &AssertionError{
				Type:     AssertFiredOrder,
				Expected: fmt.Sprintf("all rules fired: %v", assertion.Rules),
				Actual:   fmt.Sprintf("missing rule: %s", rule),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Rules); i++ {
		prev, curr := assertion.Rules[i-1], assertion.Rules[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertFiredOrder,
				Expected: fmt.Sprintf("rules in order: %v", assertion.Rules),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertFiredCount checks the rule fired exactly the specified number of times.
func assertFiredCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == eventRuleFired && event.Rule == assertion.Rule {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertFiredCount,
			Expected: fmt.Sprintf("%d firings of %s", assertion.Count, assertion.Rule),
			Actual:   fmt.Sprintf("%d firings", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFactCount checks the number of final facts of a kind.
func assertFactCount(result *Result, assertion Assertion) error {
	if got := result.Facts[assertion.Kind]; got != assertion.Count {
		return &AssertionError{
			Type:     AssertFactCount,
			Expected: fmt.Sprintf("%d %s facts", assertion.Count, assertion.Kind),
			Actual:   fmt.Sprintf("%d %s facts", got, assertion.Kind),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFact checks a final fact of the kind matches every expected field.
func assertFact(result *Result, assertion Assertion) error {
	for _, obj := range result.objects {
		if demo.KindOf(obj) != assertion.Kind {
			continue
		}
		fields, err := factFields(obj)
		if err != nil {
			return fmt.Errorf("%s: %w", AssertFact, err)
		}
		if matchFields(fields, assertion.Fields) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertFact,
		Expected: fmt.Sprintf("%s fact with %s", assertion.Kind, formatFields(assertion.Fields)),
		Actual:   "no matching fact in working memory",
		Trace:    result.Trace,
	}
}

// factFields converts a fact to the map its YAML form decodes to, so field
// values compare with the same types the scenario file produces.
func factFields(obj any) (map[string]any, error) {
	data, err := yaml.Marshal(obj)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]any)
	if err := yaml.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// matchFields checks if actual contains all expected fields (subset match).
// An expected zero value matches an omitted field.
func matchFields(actual, expected map[string]any) bool {
	for key, want := range expected {
		got, exists := actual[key]
		if !exists {
			if want == false || want == 0 || want == "" {
				continue
			}
			return false
		}
		if !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// formatFields creates a human-readable description of expected fields.
func formatFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " AND ")
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertFired:
			err = assertFired(result.Trace, assertion)
		case AssertFiredOrder:
			err = assertFiredOrder(result.Trace, assertion)
		case AssertFiredCount:
			err = assertFiredCount(result.Trace, assertion)
		case AssertFactCount:
			err = assertFactCount(result, assertion)
		case AssertFact:
			err = assertFact(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
