package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
)

// Domain prefixes for content-addressed keys.
// The version suffix allows the key format to change without collisions.
const (
	DomainCondition = "rete/condition/v1"
	DomainRuleSet   = "rete/ruleset/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TypeName returns a stable display name for a fact type.
func TypeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// ConditionKey computes the structural-sharing key of an alpha condition
// evaluated against facts of factType.
//
// Two conditions share an alpha node iff they have the same canonical text
// and parameter types and are attached to the same fact type.
func ConditionKey(factType reflect.Type, cond Expr) (string, error) {
	params := make([]any, len(cond.Params))
	for i, p := range cond.Params {
		params[i] = TypeName(p.Type)
	}
	canonical, err := MarshalCanonical(map[string]any{
		"fact_type": TypeName(factType),
		"text":      cond.Text,
		"params":    params,
	})
	if err != nil {
		return "", fmt.Errorf("ConditionKey: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCondition, canonical), nil
}

// RuleSetHash computes a version hash over rule names, priorities and
// pattern shapes. Closures are not hashed; the hash identifies a rule set
// revision for journals and diagnostics only.
func RuleSetHash(rs RuleSet) (string, error) {
	rules := make([]any, len(rs.Rules))
	for i, r := range rs.Rules {
		patterns := make([]any, len(r.Patterns))
		for j, p := range r.Patterns {
			patterns[j] = patternShape(p)
		}
		rules[i] = map[string]any{
			"name":          r.Name,
			"priority":      r.Priority,
			"repeatability": r.Repeatability.String(),
			"patterns":      patterns,
		}
	}
	canonical, err := MarshalCanonical(map[string]any{
		"name":  rs.Name,
		"rules": rules,
	})
	if err != nil {
		return "", fmt.Errorf("RuleSetHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRuleSet, canonical), nil
}

func patternShape(p Pattern) map[string]any {
	shape := map[string]any{
		"kind": p.Kind.String(),
		"type": TypeName(p.Type),
	}
	if p.Name != "" {
		shape["name"] = p.Name
	}
	texts := make([]string, 0, len(p.Conditions)+len(p.Joins))
	for _, c := range p.Conditions {
		texts = append(texts, c.Text)
	}
	for _, j := range p.Joins {
		texts = append(texts, j.Text)
	}
	shape["conditions"] = texts
	if p.Source != nil {
		shape["source"] = patternShape(*p.Source)
	}
	if p.Aggregate != nil {
		shape["aggregate"] = p.Aggregate.Name
	}
	return shape
}
