package harness

// TraceEvent is one recorded session event.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Step int    `json:"step"`
	Type string `json:"type"` // event kind, e.g. "fact_inserted" or "rule_fired"
	Rule string `json:"rule,omitempty"`
	Fact string `json:"fact,omitempty"` // "kind:identity"
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step behaved as expected and all assertions match.
	Pass bool `json:"pass"`

	// SessionID identifies the session the scenario ran in.
	SessionID string `json:"session_id"`

	// Trace contains fact and rule events in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Fired is the total number of rules fired.
	Fired int `json:"fired"`

	// Facts counts final working memory by fact kind.
	Facts map[string]int `json:"facts"`

	// objects is the final working memory, for fact assertions.
	objects []any
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Facts:  make(map[string]int),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// FiredRules returns the names of fired rules in firing order.
func (r *Result) FiredRules() []string {
	var rules []string
	for _, ev := range r.Trace {
		if ev.Type == eventRuleFired {
			rules = append(rules, ev.Rule)
		}
	}
	return rules
}
