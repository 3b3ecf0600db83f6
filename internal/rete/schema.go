package rete

import "maps"

// Schema node kinds.
const (
	KindRoot        = "root"
	KindType        = "type"
	KindSelection   = "selection"
	KindAlphaMemory = "alpha_memory"
	KindBetaMemory  = "beta_memory"
	KindJoin        = "join"
	KindNot         = "not"
	KindExists      = "exists"
	KindAggregate   = "aggregate"
	KindRule        = "rule"
)

// SchemaNode describes one network node.
type SchemaNode struct {
	ID         int               `json:"id"`
	Kind       string            `json:"kind"`
	Label      string            `json:"label"`
	Properties map[string]string `json:"properties,omitempty"`
}

// SchemaLink is a directed edge. Input is "left" or "right" for edges into
// beta nodes and empty otherwise.
type SchemaLink struct {
	Source int    `json:"source"`
	Target int    `json:"target"`
	Input  string `json:"input,omitempty"`
}

// Schema is a read-only view of the network graph for diagnostics and
// visualization.
type Schema struct {
	RuleSet string       `json:"rule_set"`
	Hash    string       `json:"hash,omitempty"`
	Nodes   []SchemaNode `json:"nodes"`
	Links   []SchemaLink `json:"links"`
}

// Count returns the number of nodes of the given kind.
func (s Schema) Count(kind string) int {
	n := 0
	for _, node := range s.Nodes {
		if node.Kind == kind {
			n++
		}
	}
	return n
}

// Schema returns a copy of the network graph.
func (n *Network) Schema() Schema {
	out := Schema{
		RuleSet: n.schema.RuleSet,
		Hash:    n.schema.Hash,
		Nodes:   make([]SchemaNode, len(n.schema.Nodes)),
		Links:   append([]SchemaLink(nil), n.schema.Links...),
	}
	for i, node := range n.schema.Nodes {
		node.Properties = maps.Clone(node.Properties)
		out.Nodes[i] = node
	}
	return out
}
