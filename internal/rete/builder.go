package rete

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/rete/internal/aggregate"
	"github.com/roach88/rete/internal/compiler"
	"github.com/roach88/rete/internal/ir"
)

// Option configures Build.
type Option func(*builder)

// WithAggregator registers a custom aggregator factory.
func WithAggregator(f aggregate.Factory) Option {
	return func(b *builder) {
		if err := b.registry.Register(f); err != nil {
			b.optErrs = append(b.optErrs, err)
		}
	}
}

// WithBuildLogger sets the logger used while building.
func WithBuildLogger(logger *slog.Logger) Option {
	return func(b *builder) {
		b.logger = logger
	}
}

type builder struct {
	registry *aggregate.Registry
	logger   *slog.Logger
	optErrs  []error

	schema     Schema
	root       *rootNode
	rootMemory *betaMemoryNode
	types      map[reflect.Type]*typeNode
	anonymous  int
}

// Build compiles a rule set into a network.
//
// The rule set is validated first; any validation error is fatal and
// returned as a *BuildError. Alpha chains with the same fact type and
// condition text are shared between rules; beta chains follow each rule's
// pattern declaration order.
func Build(rs ir.RuleSet, opts ...Option) (*Network, error) {
	b := &builder{
		registry: aggregate.NewRegistry(),
		logger:   slog.Default(),
		types:    make(map[reflect.Type]*typeNode),
	}
	for _, opt := range opts {
		opt(b)
	}
	if len(b.optErrs) > 0 {
		return nil, fmt.Errorf("build options: %w", errors.Join(b.optErrs...))
	}

	if errs := compiler.Validate(rs, b.registry); len(errs) > 0 {
		return nil, &BuildError{RuleSet: rs.Name, Errors: errs}
	}
	hash, err := ir.RuleSetHash(rs)
	if err != nil {
		return nil, fmt.Errorf("hash rule set: %w", err)
	}

	b.schema = Schema{RuleSet: rs.Name, Hash: hash}
	b.root = &rootNode{nodeBase: b.node(KindRoot, "root", nil)}
	b.rootMemory = &betaMemoryNode{nodeBase: b.node(KindBetaMemory, "root", nil)}

	net := &Network{
		name:       rs.Name,
		hash:       hash,
		root:       b.root,
		rootMemory: b.rootMemory,
		byName:     make(map[string]*Rule),
	}
	defs := slices.Clone(rs.Rules)
	for i := range defs {
		rule, err := b.buildRule(&defs[i], i)
		if err != nil {
			return nil, fmt.Errorf("build rule %q: %w", defs[i].Name, err)
		}
		net.rules = append(net.rules, rule)
		net.byName[rule.Name()] = rule
	}
	net.schema = b.schema

	b.logger.Debug("network built",
		"rule_set", rs.Name,
		"rules", len(net.rules),
		"nodes", len(b.schema.Nodes),
		"selection_nodes", b.schema.Count(KindSelection),
	)
	return net, nil
}

func (b *builder) node(kind, label string, props map[string]string) nodeBase {
	id := len(b.schema.Nodes)
	b.schema.Nodes = append(b.schema.Nodes, SchemaNode{ID: id, Kind: kind, Label: label, Properties: props})
	return nodeBase{nid: id}
}

func (b *builder) link(source, target int, input string) {
	b.schema.Links = append(b.schema.Links, SchemaLink{Source: source, Target: target, Input: input})
}

func (b *builder) typeNode(t reflect.Type) *typeNode {
	if n, ok := b.types[t]; ok {
		return n
	}
	n := &typeNode{
		nodeBase:    b.node(KindType, ir.TypeName(t), nil),
		alphaParent: alphaParent{selections: make(map[string]*selectionNode)},
		typ:         t,
	}
	b.types[t] = n
	b.root.types = append(b.root.types, n)
	b.link(b.root.nid, n.nid, "")
	return n
}

// alphaMemory returns the memory at the end of the pattern's alpha chain,
// reusing every existing node with the same condition key.
func (b *builder) alphaMemory(p *ir.Pattern) (*alphaMemoryNode, error) {
	tn := b.typeNode(p.Type)
	parent, parentID := &tn.alphaParent, tn.nid

	for _, c := range p.Conditions {
		key, err := b.conditionKey(p.Type, c)
		if err != nil {
			return nil, err
		}
		sel, ok := parent.selections[key]
		if !ok {
			sel = &selectionNode{
				nodeBase:    b.node(KindSelection, c.Text, nil),
				alphaParent: alphaParent{selections: make(map[string]*selectionNode)},
				cond:        &boundExpr{expr: c, slots: []int{selfSlot}, kind: ExprCondition},
			}
			parent.selections[key] = sel
			parent.children = append(parent.children, sel)
			b.link(parentID, sel.nid, "")
		}
		parent, parentID = &sel.alphaParent, sel.nid
	}

	if parent.memory == nil {
		parent.memory = &alphaMemoryNode{nodeBase: b.node(KindAlphaMemory, ir.TypeName(p.Type), nil)}
		b.link(parentID, parent.memory.nid, "")
	}
	return parent.memory, nil
}

// conditionKey returns the sharing key of a condition. Conditions without
// text are never shared.
func (b *builder) conditionKey(t reflect.Type, c ir.Expr) (string, error) {
	if c.Text == "" {
		b.anonymous++
		return "anonymous:" + strconv.Itoa(b.anonymous), nil
	}
	return ir.ConditionKey(t, c)
}

func (b *builder) betaMemory(rule string, level int) *betaMemoryNode {
	return &betaMemoryNode{nodeBase: b.node(KindBetaMemory, fmt.Sprintf("%s[%d]", rule, level), nil)}
}

func (b *builder) buildRule(def *ir.Rule, index int) (*Rule, error) {
	rule := &Rule{def: def, index: index, declarations: make(map[string]int)}
	left := b.rootMemory

	for i := range def.Patterns {
		p := &def.Patterns[i]
		var next *betaMemoryNode

		switch p.Kind {
		case ir.KindMatch:
			alpha, err := b.alphaMemory(p)
			if err != nil {
				return nil, err
			}
			conds := b.bindAll(p.Joins, ExprJoin, rule, p.Name)
			join := &joinNode{
				nodeBase: b.node(KindJoin, patternLabel(p), conditionProps(p.Joins, nil)),
				left:     left,
				right:    alpha,
				conds:    conds,
			}
			next = b.betaMemory(def.Name, i)
			join.memory = next
			b.wireBeta(left, alpha, join.nid, join, join, next)

		case ir.KindNot, ir.KindExists:
			src := p.Source
			alpha, err := b.alphaMemory(src)
			if err != nil {
				return nil, err
			}
			kind := KindExists
			if p.Kind == ir.KindNot {
				kind = KindNot
			}
			en := &existsNode{
				nodeBase: b.node(kind, patternLabel(src), conditionProps(src.Joins, nil)),
				negated:  p.Kind == ir.KindNot,
				left:     left,
				right:    alpha,
				conds:    b.bindAll(src.Joins, ExprJoin, rule, src.Name),
			}
			next = b.betaMemory(def.Name, i)
			en.memory = next
			b.wireBeta(left, alpha, en.nid, en, en, next)

		case ir.KindAggregate:
			src := p.Source
			alpha, err := b.alphaMemory(src)
			if err != nil {
				return nil, err
			}
			factory, ok := b.registry.Lookup(p.Aggregate.Name)
			if !ok {
				return nil, fmt.Errorf("unknown aggregator %q", p.Aggregate.Name)
			}
			exprKeys := ir.SortedKeys(p.Aggregate.Exprs)
			exprs := make(map[string]*boundExpr, len(exprKeys))
			for _, name := range exprKeys {
				exprs[name] = b.bind(p.Aggregate.Exprs[name], ExprAggregate, rule, src.Name)
			}
			an := &aggregateNode{
				nodeBase: b.node(KindAggregate, p.Aggregate.Name, resultProps(p, conditionProps(src.Joins, map[string]string{
					"source": ir.TypeName(src.Type),
					"result": ir.TypeName(p.Type),
				}))),
				name:     p.Aggregate.Name,
				factory:  factory,
				left:     left,
				right:    alpha,
				conds:    b.bindAll(src.Joins, ExprJoin, rule, src.Name),
				results:  b.bindAll(resultConditions(p), ExprJoin, rule, p.Name),
				exprs:    exprs,
				exprKeys: exprKeys,
			}
			next = b.betaMemory(def.Name, i)
			an.memory = next
			b.wireBeta(left, alpha, an.nid, an, an, next)

		default:
			return nil, fmt.Errorf("pattern %d: unsupported kind %s", i, p.Kind)
		}

		if p.Declares() && p.Name != "" {
			rule.declarations[p.Name] = i
		}
		left = next
	}

	var err error
	if def.PriorityExpr != nil {
		if rule.priority, err = b.bindActivation(*def.PriorityExpr, ExprPriority, rule); err != nil {
			return nil, err
		}
	}
	for _, f := range def.Filters {
		rf := RuleFilter{Kind: f.Kind}
		for _, e := range f.Exprs {
			bound, err := b.bindActivation(e, ExprFilter, rule)
			if err != nil {
				return nil, err
			}
			rf.Expressions = append(rf.Expressions, &Expression{bound: bound})
		}
		rule.filters = append(rule.filters, rf)
	}

	terminal := &ruleNode{
		nodeBase: b.node(KindRule, def.Name, map[string]string{
			"priority":   strconv.Itoa(def.Priority),
			"repeatable": strconv.FormatBool(rule.Repeatable()),
		}),
		rule: rule,
	}
	left.sinks = append(left.sinks, terminal)
	b.link(left.nid, terminal.nid, "")
	return rule, nil
}

func (b *builder) wireBeta(left *betaMemoryNode, right *alphaMemoryNode, id int, ts tupleSink, os objectSink, out *betaMemoryNode) {
	left.sinks = append(left.sinks, ts)
	right.sinks = append(right.sinks, os)
	b.link(left.nid, id, "left")
	b.link(right.nid, id, "right")
	b.link(id, out.nid, "")
}

// bind computes the argument index map of a join or aggregate expression.
// Parameters named self (or unnamed) bind to the right fact; others to
// earlier declarations.
func (b *builder) bind(e ir.Expr, kind ExpressionKind, rule *Rule, self string) *boundExpr {
	slots := make([]int, len(e.Params))
	for i, p := range e.Params {
		if p.Name == "" || p.Name == self {
			slots[i] = selfSlot
			continue
		}
		slots[i] = rule.declarations[p.Name]
	}
	return &boundExpr{expr: e, slots: slots, kind: kind, rule: rule.Name()}
}

func (b *builder) bindAll(es []ir.Expr, kind ExpressionKind, rule *Rule, self string) []*boundExpr {
	out := make([]*boundExpr, len(es))
	for i, e := range es {
		out[i] = b.bind(e, kind, rule, self)
	}
	return out
}

// bindActivation binds an expression evaluated over a complete tuple.
// Unnamed parameters resolve to the single declaration of a matching type.
func (b *builder) bindActivation(e ir.Expr, kind ExpressionKind, rule *Rule) (*boundExpr, error) {
	slots := make([]int, len(e.Params))
	for i, p := range e.Params {
		if p.Name != "" {
			pos, ok := rule.declarations[p.Name]
			if !ok {
				return nil, fmt.Errorf("%s expression %q: undefined declaration %q", kind, e.Text, p.Name)
			}
			slots[i] = pos
			continue
		}
		pos := -1
		for j, pat := range rule.def.Patterns {
			if pat.Declares() && pat.Type != nil && pat.Type.AssignableTo(p.Type) {
				if pos >= 0 {
					return nil, fmt.Errorf("%s expression %q: parameter %d of type %s is ambiguous", kind, e.Text, i, p.Type)
				}
				pos = j
			}
		}
		if pos < 0 {
			return nil, fmt.Errorf("%s expression %q: no declaration of type %s", kind, e.Text, p.Type)
		}
		slots[i] = pos
	}
	return &boundExpr{expr: e, slots: slots, kind: kind, rule: rule.Name()}, nil
}

// resultConditions returns the conditions an aggregate result must satisfy
// to reach the rule's tuple.
func resultConditions(p *ir.Pattern) []ir.Expr {
	return append(append([]ir.Expr(nil), p.Conditions...), p.Joins...)
}

func resultProps(p *ir.Pattern, props map[string]string) map[string]string {
	conds := resultConditions(p)
	if len(conds) == 0 {
		return props
	}
	texts := make([]string, len(conds))
	for i, c := range conds {
		texts[i] = c.Text
	}
	props["having"] = strings.Join(texts, "; ")
	return props
}

func patternLabel(p *ir.Pattern) string {
	if p.Name != "" {
		return p.Name + ": " + ir.TypeName(p.Type)
	}
	return ir.TypeName(p.Type)
}

func conditionProps(joins []ir.Expr, props map[string]string) map[string]string {
	if len(joins) == 0 {
		return props
	}
	if props == nil {
		props = make(map[string]string)
	}
	texts := make([]string, len(joins))
	for i, j := range joins {
		texts[i] = j.Text
	}
	props["conditions"] = strings.Join(texts, "; ")
	return props
}
