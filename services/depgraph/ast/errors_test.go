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
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseError_Error(t *testing.T) {
	err := NewParseError("App.swift", SourceTreeSitter, "invalid UTF-8", nil)
	assert.Equal(t, "App.swift: treesitter: invalid UTF-8", err.Error())

	err = NewParseError("App.swift", "", "boom", nil)
	assert.Equal(t, "App.swift: boom", err.Error())
}

func TestParseError_IsAndUnwrap(t *testing.T) {
	err := NewParseError("App.swift", SourceSourceKitten, "read", fs.ErrNotExist)

	assert.True(t, errors.Is(err, ErrParseFailure))
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	wrapped := fmt.Errorf("extract: %w", err)
	assert.True(t, IsParseFailure(wrapped))
}

func TestAsParseFailure(t *testing.T) {
	assert.Nil(t, AsParseFailure(nil, "a.swift", "x"))

	orig := NewParseError("a.swift", "x", "m", nil)
	assert.Same(t, orig, AsParseFailure(orig, "b.swift", "y"))

	converted := AsParseFailure(errors.New("tool crashed"), "a.swift", "fake")
	var parseErr *ParseError
	assert.True(t, errors.As(converted, &parseErr))
	assert.Equal(t, "a.swift", parseErr.FilePath)
	assert.Equal(t, "fake", parseErr.Source)
	assert.Equal(t, "tool crashed", parseErr.Message)
}

func TestNode_Helpers(t *testing.T) {
	n := &Node{
		Kind:           KindClass,
		Attributes:     []string{AttributeTag("MainActor")},
		InheritedTypes: []string{"ObservableObject"},
		Children:       []*Node{{Kind: KindCall}, {Kind: KindCall, Children: []*Node{{}}}},
	}

	assert.True(t, n.HasAttribute("source.decl.attribute.@MainActor"))
	assert.False(t, n.HasAttribute(AttributeTag("StateObject")))
	assert.True(t, n.Inherits("ObservableObject"))
	assert.False(t, n.Inherits("NSManagedObject"))
	assert.Equal(t, 4, n.Count())

	var nilNode *Node
	assert.Equal(t, 0, nilNode.Count())
	assert.Equal(t, 1, NewRoot().Count())
}
