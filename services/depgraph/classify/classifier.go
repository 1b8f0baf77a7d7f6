// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classify turns a structure tree into a dependency record.
//
// Classification is purely syntactic: it looks at each node's kind, name,
// attribute tags and inherited types, and never resolves symbols across
// files. Rules live in a table keyed by kind (see rules.go); all rules for a
// node's kind are evaluated and each may add to its own bucket.
package classify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/swiftdeps/services/depgraph/ast"
	"github.com/AleutianAI/swiftdeps/services/depgraph/deps"
)

// rulesRevision changes whenever rule semantics change, invalidating cached
// records.
const rulesRevision = "3"

// DefaultPersistenceBaseType is the base class that marks a Core Data model.
const DefaultPersistenceBaseType = "NSManagedObject"

// Options configures a Classifier.
type Options struct {
	// DescendUntyped makes the walk continue below nodes with an empty kind.
	// When false, such a node ends its branch and nothing beneath it is
	// classified.
	DescendUntyped bool

	// PersistenceBaseTypes are the inherited type names that mark a class as
	// a persistence model. Default: ["NSManagedObject"].
	PersistenceBaseTypes []string
}

// DefaultOptions returns the default classifier options.
func DefaultOptions() Options {
	return Options{
		DescendUntyped:       false,
		PersistenceBaseTypes: []string{DefaultPersistenceBaseType},
	}
}

// Classifier applies the rule table to structure trees.
//
// Thread Safety: Safe for concurrent use. A Classifier holds no mutable state.
type Classifier struct {
	opts        Options
	persistence map[string]struct{}
	version     string
}

// New creates a Classifier. An empty PersistenceBaseTypes falls back to the
// default.
func New(opts Options) *Classifier {
	if len(opts.PersistenceBaseTypes) == 0 {
		opts.PersistenceBaseTypes = []string{DefaultPersistenceBaseType}
	}
	persistence := make(map[string]struct{}, len(opts.PersistenceBaseTypes))
	for _, t := range opts.PersistenceBaseTypes {
		persistence[t] = struct{}{}
	}

	bases := append([]string(nil), opts.PersistenceBaseTypes...)
	sort.Strings(bases)

	return &Classifier{
		opts:        opts,
		persistence: persistence,
		version: fmt.Sprintf("r%s;descend=%t;persistence=%s",
			rulesRevision, opts.DescendUntyped, strings.Join(bases, ",")),
	}
}

// Options returns the options the classifier was built with.
func (c *Classifier) Options() Options {
	return c.opts
}

// Version identifies the rule set and options. Two classifiers with the same
// version produce identical records for identical trees.
func (c *Classifier) Version() string {
	return c.version
}

type frame struct {
	node      *ast.Node
	enclosing string
}

// Classify walks root and returns the record for fileID.
//
// Description:
//
//	The walk is a pre-order depth-first traversal driven by an explicit
//	stack. Each entry carries the name of the nearest enclosing method,
//	free function or initializer, which keys the call graph. The root
//	itself is never classified; the walk starts at its children.
//
//	Unknown kinds match no rule. Empty-kind nodes register nothing and,
//	unless DescendUntyped is set, end their branch.
//
// Outputs:
//
//	*deps.Record - Never nil. A nil root yields an empty record.
func (c *Classifier) Classify(fileID string, root *ast.Node) *deps.Record {
	b := deps.NewBuilder(fileID)
	if root == nil {
		return b.Build()
	}

	stack := make([]frame, 0, len(root.Children))
	for i := len(root.Children) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: root.Children[i]})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := f.node
		if n == nil {
			continue
		}
		if n.Kind == "" && !c.opts.DescendUntyped {
			continue
		}

		for _, r := range rulesByKind[n.Kind] {
			r(c, n, f.enclosing, b)
		}

		enclosing := f.enclosing
		if _, ok := enclosingKinds[n.Kind]; ok {
			enclosing = n.Name
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: n.Children[i], enclosing: enclosing})
		}
	}

	return b.Build()
}

var defaultClassifier = New(DefaultOptions())

// Classify classifies root with the default options.
func Classify(fileID string, root *ast.Node) *deps.Record {
	return defaultClassifier.Classify(fileID, root)
}
