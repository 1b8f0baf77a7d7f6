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
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"
)

// SourceKitten runs `sourcekitten structure --file <path>` and decodes the
// JSON it prints.
//
// Thread Safety: Safe for concurrent use; each call spawns its own process.
type SourceKitten struct {
	binary  string
	timeout time.Duration
}

// NewSourceKitten creates a SourceKitten source. An empty binary defaults to
// "sourcekitten" resolved through PATH.
func NewSourceKitten(binary string, timeout time.Duration) *SourceKitten {
	if binary == "" {
		binary = "sourcekitten"
	}
	return &SourceKitten{binary: binary, timeout: timeout}
}

// Name returns "sourcekitten".
func (s *SourceKitten) Name() string {
	return SourceSourceKitten
}

// Structure runs sourcekitten against path. content is ignored.
func (s *SourceKitten) Structure(ctx context.Context, path string, _ []byte) (*Node, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.binary, "structure", "--file", path)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "sourcekitten failed"
		}
		return nil, NewParseError(path, s.Name(), msg, err)
	}
	return DecodeSourceKitten(path, out)
}

// skNode mirrors one dictionary of sourcekitten's structure output.
type skNode struct {
	Kind           string        `json:"key.kind"`
	Name           string        `json:"key.name"`
	USR            string        `json:"key.usr"`
	Attributes     []skAttribute `json:"key.attributes"`
	InheritedTypes []skNamed     `json:"key.inheritedtypes"`
	Substructure   []*skNode     `json:"key.substructure"`
}

type skAttribute struct {
	Attribute string `json:"key.attribute"`
}

type skNamed struct {
	Name string `json:"key.name"`
}

// DecodeSourceKitten converts sourcekitten structure JSON into a tree.
//
// The top-level dictionary becomes the root; its kind, if any, is dropped so
// the root is always empty-kind.
//
// Outputs:
//
//	*Node - The root node.
//	error - A ParseError if data is not a JSON object.
func DecodeSourceKitten(path string, data []byte) (*Node, error) {
	var top skNode
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, NewParseError(path, SourceSourceKitten, "decode structure output", err)
	}
	root := convertSK(&top)
	root.Kind = ""
	return root, nil
}

func convertSK(sk *skNode) *Node {
	n := &Node{
		Kind: sk.Kind,
		Name: sk.Name,
		USR:  sk.USR,
	}
	for _, a := range sk.Attributes {
		n.Attributes = append(n.Attributes, a.Attribute)
	}
	for _, t := range sk.InheritedTypes {
		n.InheritedTypes = append(n.InheritedTypes, t.Name)
	}
	for _, child := range sk.Substructure {
		if child == nil {
			continue
		}
		n.Children = append(n.Children, convertSK(child))
	}
	return n
}
