// Package selection models the fields a client asked for beneath a GraphQL
// field and derives storage projections from them.
//
// A Node is built by the executor with fragments, aliases and @skip/@include
// already applied, so everything here is a plain tree walk.
package selection

import (
	"sort"
	"strings"
)

// Node is one selected field and the fields selected beneath it.
type Node struct {
	Name     string
	Alias    string
	Children []*Node
}

// Child returns the first child selecting field name, or nil.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Has reports whether field name is selected directly under n.
func (n *Node) Has(name string) bool { return n.Child(name) != nil }

// FieldSet is an ordered set of field names without duplicates.
type FieldSet []string

// Contains reports whether name is in the set.
func (s FieldSet) Contains(name string) bool {
	for _, f := range s {
		if f == name {
			return true
		}
	}
	return false
}

// Union returns s followed by the names of other that s lacks.
func (s FieldSet) Union(other FieldSet) FieldSet {
	out := make(FieldSet, 0, len(s)+len(other))
	out = append(out, s...)
	for _, f := range other {
		if !out.Contains(f) {
			out = append(out, f)
		}
	}
	return out
}

// Fingerprint identifies the projection shape independent of selection order.
func (s FieldSet) Fingerprint() string {
	sorted := append([]string(nil), s...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// Options adjusts an extracted FieldSet.
type Options struct {
	// Keep names are always included, selected or not.
	Keep []string
	// Exclude names are removed, typically relations that are not columns.
	Exclude []string
}

// Extract returns the names selected one level beneath node, unioned with
// opts.Keep and stripped of opts.Exclude. Meta fields such as __typename are
// never part of the result.
func Extract(node *Node, opts Options) FieldSet {
	var fields FieldSet
	add := func(name string) {
		if strings.HasPrefix(name, "__") || fields.Contains(name) {
			return
		}
		for _, ex := range opts.Exclude {
			if ex == name {
				return
			}
		}
		fields = append(fields, name)
	}
	if node != nil {
		for _, c := range node.Children {
			add(c.Name)
		}
	}
	for _, k := range opts.Keep {
		add(k)
	}
	return fields
}

// Extractor is the request-scoped handle resolvers use for projections.
type Extractor struct{}

// Fields is Extract bound to an Extractor.
func (Extractor) Fields(node *Node, opts Options) FieldSet { return Extract(node, opts) }
