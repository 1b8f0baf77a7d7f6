// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast defines the structure tree consumed by the classifier and the
// sources that produce it.
//
// A structure tree is a SourceKit-style outline of one Swift file: every node
// carries a kind identifier (see kinds.go), a name, attribute tags, inherited
// type names, and ordered children. The tree is deliberately shallow in
// meaning; no types or scopes are resolved.
//
// Two sources are provided:
//
//   - SourceKitten shells out to `sourcekitten structure --file` and decodes
//     its JSON output.
//   - TreeSitter parses the file in-process with the tree-sitter Swift grammar
//     and emits the same kind vocabulary.
//
// # Thread Safety
//
// Nodes are plain values and are not synchronized. Sources are safe for
// concurrent use; each call builds an independent tree.
package ast

// Node is one element of a structure tree.
//
// The root returned by a Source has an empty Kind and holds the file's
// top-level declarations as Children.
type Node struct {
	// Kind is the SourceKit kind identifier, e.g. KindCall.
	// Empty for the file root and for nodes the source could not classify.
	Kind string

	// Name is the identifier associated with the node. May be empty.
	Name string

	// USR is the unified symbol resolution string, when the source provides one.
	USR string

	// Attributes holds attribute tags in declaration order,
	// e.g. "source.decl.attribute.@StateObject".
	Attributes []string

	// InheritedTypes lists the types a class-like declaration inherits from
	// or conforms to.
	InheritedTypes []string

	// Children are the nested nodes in source order.
	Children []*Node
}

// NewRoot returns an empty-kind root holding the given top-level nodes.
func NewRoot(children ...*Node) *Node {
	return &Node{Children: children}
}

// HasAttribute reports whether the node carries the given attribute tag.
func (n *Node) HasAttribute(tag string) bool {
	for _, a := range n.Attributes {
		if a == tag {
			return true
		}
	}
	return false
}

// Inherits reports whether typeName appears in InheritedTypes.
func (n *Node) Inherits(typeName string) bool {
	for _, t := range n.InheritedTypes {
		if t == typeName {
			return true
		}
	}
	return false
}

// Count returns the number of nodes in the tree rooted at n, including n.
func (n *Node) Count() int {
	if n == nil {
		return 0
	}
	count := 0
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == nil {
			continue
		}
		count++
		stack = append(stack, cur.Children...)
	}
	return count
}
