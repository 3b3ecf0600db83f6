package demo

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var constructors = map[string]func() any{
	"alert":    func() any { return &Alert{} },
	"customer": func() any { return &Customer{} },
	"discount": func() any { return &Discount{} },
	"order":    func() any { return &Order{} },
	"shipment": func() any { return &Shipment{} },
	"summary":  func() any { return &Summary{} },
}

var kindsByType = func() map[reflect.Type]string {
	m := make(map[reflect.Type]string, len(constructors))
	for kind, newFact := range constructors {
		m[reflect.TypeOf(newFact())] = kind
	}
	return m
}()

// Kinds returns the fact kinds scenario files may use, sorted.
func Kinds() []string {
	kinds := make([]string, 0, len(constructors))
	for k := range constructors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// KindOf returns the scenario kind of a demo fact, or its Go type name for
// anything else.
func KindOf(obj any) string {
	if kind, ok := kindsByType[reflect.TypeOf(obj)]; ok {
		return kind
	}
	return fmt.Sprintf("%T", obj)
}

// Fact is a fact decoded from YAML. It is written as a single-key mapping
// from kind to fields:
//
//	- order: {id: o1, customer: c1, amount: 2500}
type Fact struct {
	Kind   string
	Object any
}

// UnmarshalYAML implements yaml.Unmarshaler. Unknown kinds and unknown
// fields are rejected.
func (f *Fact) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return fmt.Errorf("line %d: fact must be a single-key mapping from kind to fields", node.Line)
	}
	kind := node.Content[0].Value
	obj, err := NewFact(kind)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	if err := decodeStrict(node.Content[1], obj); err != nil {
		return fmt.Errorf("line %d: %s: %w", node.Line, kind, err)
	}
	f.Kind = kind
	f.Object = obj
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (f Fact) MarshalYAML() (any, error) {
	return map[string]any{f.Kind: f.Object}, nil
}

// NewFact returns a zero fact of the given kind.
func NewFact(kind string) (any, error) {
	newFact, ok := constructors[kind]
	if !ok {
		return nil, fmt.Errorf("unknown fact kind %q (known: %s)", kind, strings.Join(Kinds(), ", "))
	}
	return newFact(), nil
}

// DecodeFacts decodes a YAML sequence of facts.
func DecodeFacts(data []byte) ([]any, error) {
	var facts []Fact
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&facts); err != nil {
		return nil, fmt.Errorf("failed to parse facts: %w", err)
	}
	return Objects(facts), nil
}

// Objects returns the decoded objects in order.
func Objects(facts []Fact) []any {
	out := make([]any, len(facts))
	for i, f := range facts {
		out[i] = f.Object
	}
	return out
}

// decodeStrict decodes node into out, rejecting fields out does not
// declare. yaml.Node.Decode does not honour KnownFields, so the node is
// re-encoded and run through a strict decoder.
func decodeStrict(node *yaml.Node, out any) error {
	data, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	return decoder.Decode(out)
}
