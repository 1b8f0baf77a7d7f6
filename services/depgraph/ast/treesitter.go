// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/swift"
)

// Tree-sitter Swift node types read by the converter.
const (
	tsImportDeclaration           = "import_declaration"
	tsClassDeclaration            = "class_declaration"
	tsProtocolDeclaration         = "protocol_declaration"
	tsPropertyDeclaration         = "property_declaration"
	tsProtocolPropertyDeclaration = "protocol_property_declaration"
	tsFunctionDeclaration         = "function_declaration"
	tsProtocolFunctionDeclaration = "protocol_function_declaration"
	tsInitDeclaration             = "init_declaration"
	tsCallExpression              = "call_expression"
	tsLambdaLiteral               = "lambda_literal"
	tsModifiers                   = "modifiers"
	tsAttribute                   = "attribute"
	tsInheritanceSpecifier        = "inheritance_specifier"
	tsTypeAnnotation              = "type_annotation"
	tsIdentifier                  = "identifier"
	tsPattern                     = "pattern"
	tsParameter                   = "parameter"
)

// DefaultMaxFileSize bounds the files TreeSitter will parse (4MB).
const DefaultMaxFileSize = 4 * 1024 * 1024

// scope tracks where a declaration sits, which decides its kind.
type scope int

const (
	scopeFile scope = iota
	scopeType
	scopeFunction
)

// tsFrame is one entry of the conversion work-list.
type tsFrame struct {
	cst    *sitter.Node
	parent *Node
	scope  scope
}

// TreeSitter builds structure trees in-process with the tree-sitter Swift
// grammar.
//
// Description:
//
//	Concrete syntax nodes that have a SourceKit counterpart (imports, type,
//	property and function declarations, calls, closures) become Nodes; every
//	other syntax node is transparent and its descendants attach to the
//	nearest emitted ancestor. Names follow SourceKit conventions where cheap
//	to reproduce: functions are named with their argument labels, e.g.
//	"fetch(id:)".
//
//	Tree-sitter recovers from syntax errors, so a file with errors still
//	yields a best-effort tree. Only unreadable, oversized, or non-UTF-8
//	files fail.
//
// Thread Safety: Safe for concurrent use. Each call creates its own parser.
type TreeSitter struct {
	timeout     time.Duration
	maxFileSize int
}

// NewTreeSitter creates a TreeSitter source.
func NewTreeSitter(timeout time.Duration) *TreeSitter {
	return &TreeSitter{timeout: timeout, maxFileSize: DefaultMaxFileSize}
}

// Name returns "treesitter".
func (t *TreeSitter) Name() string {
	return SourceTreeSitter
}

// Structure parses content (read from path when nil) into a structure tree.
func (t *TreeSitter) Structure(ctx context.Context, path string, content []byte) (*Node, error) {
	if content == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, NewParseError(path, t.Name(), "read file", err)
		}
		content = data
	}
	if len(content) > t.maxFileSize {
		return nil, NewParseError(path, t.Name(), "file too large", nil)
	}
	if !utf8.Valid(content) {
		return nil, NewParseError(path, t.Name(), "invalid UTF-8", nil)
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	parser := sitter.NewParser()
	parser.SetLanguage(swift.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, NewParseError(path, t.Name(), "tree-sitter parse failed", err)
	}
	defer tree.Close()

	return convertTS(tree.RootNode(), content), nil
}

// convertTS walks the syntax tree with an explicit work-list.
func convertTS(root *sitter.Node, content []byte) *Node {
	out := NewRoot()
	stack := []tsFrame{{cst: root, parent: out, scope: scopeFile}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node, childScope, descend := translate(f.cst, content, f.scope)
		parent := f.parent
		if node != nil {
			parent.Children = append(parent.Children, node)
			parent = node
		}
		if !descend {
			continue
		}
		for i := int(f.cst.ChildCount()) - 1; i >= 0; i-- {
			child := f.cst.Child(i)
			if child == nil || !child.IsNamed() {
				continue
			}
			stack = append(stack, tsFrame{cst: child, parent: parent, scope: childScope})
		}
	}
	return out
}

// translate maps one syntax node. A nil node means the syntax node is
// transparent; descend reports whether its children are visited.
func translate(n *sitter.Node, content []byte, sc scope) (node *Node, childScope scope, descend bool) {
	switch n.Type() {
	case tsImportDeclaration:
		name := ""
		if id := firstNamedChildOfType(n, tsIdentifier); id != nil {
			name = compact(id.Content(content))
		} else {
			name = strings.TrimSpace(strings.TrimPrefix(compact(n.Content(content)), "import"))
		}
		return &Node{Kind: KindImport, Name: name}, sc, false

	case tsClassDeclaration, tsProtocolDeclaration:
		node = &Node{
			Kind:           typeDeclarationKind(n),
			Name:           fieldText(n, "name", content),
			Attributes:     attributeTags(n, content),
			InheritedTypes: inheritedTypes(n, content),
		}
		return node, scopeType, true

	case tsPropertyDeclaration, tsProtocolPropertyDeclaration:
		name := ""
		if p := firstNamedChildOfType(n, tsPattern); p != nil {
			name = compact(p.Content(content))
		} else {
			name = fieldText(n, "name", content)
		}
		node = &Node{
			Kind:       propertyKind(n, content, sc),
			Name:       name,
			Attributes: attributeTags(n, content),
		}
		return node, scopeFunction, true

	case tsFunctionDeclaration, tsProtocolFunctionDeclaration:
		node = &Node{
			Kind:       functionKind(n, content, sc),
			Name:       fieldText(n, "name", content) + parameterLabels(n, content),
			Attributes: attributeTags(n, content),
		}
		return node, scopeFunction, true

	case tsInitDeclaration:
		node = &Node{
			Kind:       KindConstructor,
			Name:       "init" + parameterLabels(n, content),
			Attributes: attributeTags(n, content),
		}
		return node, scopeFunction, true

	case tsCallExpression:
		callee := n.NamedChild(0)
		if callee == nil {
			return nil, scopeFunction, true
		}
		return &Node{Kind: KindCall, Name: compact(callee.Content(content))}, scopeFunction, true

	case tsLambdaLiteral:
		return &Node{Kind: KindClosure}, scopeFunction, true

	case tsModifiers, tsAttribute, tsInheritanceSpecifier, tsTypeAnnotation, tsParameter:
		return nil, sc, false

	default:
		return nil, sc, true
	}
}

func typeDeclarationKind(n *sitter.Node) string {
	if n.Type() == tsProtocolDeclaration {
		return KindProtocol
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		switch n.Child(i).Type() {
		case "class":
			return KindClass
		case "struct":
			return KindStruct
		case "actor":
			return KindActor
		case "enum":
			return KindEnum
		case "extension":
			return KindExtension
		}
	}
	return KindClass
}

func propertyKind(n *sitter.Node, content []byte, sc scope) string {
	switch sc {
	case scopeFile:
		return KindVarGlobal
	case scopeType:
		switch {
		case hasModifier(n, content, "static"):
			return KindVarStatic
		case hasModifier(n, content, "class"):
			return KindVarClass
		default:
			return KindVarInstance
		}
	default:
		return KindVarLocal
	}
}

func functionKind(n *sitter.Node, content []byte, sc scope) string {
	if sc != scopeType {
		return KindFunctionFree
	}
	switch {
	case hasModifier(n, content, "static"):
		return KindMethodStatic
	case hasModifier(n, content, "class"):
		return KindMethodClass
	default:
		return KindMethodInstance
	}
}

// hasModifier looks for a keyword among the declaration's modifiers and its
// direct anonymous tokens ("class func" puts class outside modifiers).
func hasModifier(n *sitter.Node, content []byte, word string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if !child.IsNamed() && child.Type() == word {
			return true
		}
		if child.Type() != tsModifiers {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			mod := child.Child(j)
			if mod.Type() == tsAttribute {
				continue
			}
			if strings.TrimSpace(mod.Content(content)) == word {
				return true
			}
		}
	}
	return false
}

// attributeTags collects @attributes written on the declaration.
func attributeTags(n *sitter.Node, content []byte) []string {
	var tags []string
	collect := func(attr *sitter.Node) {
		name := strings.TrimPrefix(strings.TrimSpace(attr.Content(content)), "@")
		if i := strings.IndexByte(name, '('); i >= 0 {
			name = name[:i]
		}
		name = strings.TrimSpace(name)
		if name != "" {
			tags = append(tags, AttributeTag(name))
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case tsAttribute:
			collect(child)
		case tsModifiers:
			for j := 0; j < int(child.NamedChildCount()); j++ {
				if mod := child.NamedChild(j); mod.Type() == tsAttribute {
					collect(mod)
				}
			}
		}
	}
	return tags
}

func inheritedTypes(n *sitter.Node, content []byte) []string {
	var types []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == tsInheritanceSpecifier {
			types = append(types, compact(child.Content(content)))
		}
	}
	return types
}

// parameterLabels renders "(label:label:)" from the declaration's parameters.
func parameterLabels(n *sitter.Node, content []byte) string {
	var b strings.Builder
	b.WriteByte('(')
	for i := 0; i < int(n.NamedChildCount()); i++ {
		p := n.NamedChild(i)
		if p.Type() != tsParameter {
			continue
		}
		label := fieldText(p, "external_name", content)
		if label == "" {
			label = fieldText(p, "name", content)
		}
		if label == "" {
			label = "_"
		}
		b.WriteString(label)
		b.WriteByte(':')
	}
	b.WriteByte(')')
	return b.String()
}

func fieldText(n *sitter.Node, field string, content []byte) string {
	child := n.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return compact(child.Content(content))
}

func firstNamedChildOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() == typ {
			return child
		}
	}
	return nil
}

// compact collapses whitespace and removes it around member access dots, so
// a chain split across lines reads as a single dotted name.
func compact(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, " .", ".")
	return strings.ReplaceAll(s, ". ", ".")
}
