// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classify

import (
	"strings"

	"github.com/AleutianAI/swiftdeps/services/depgraph/ast"
	"github.com/AleutianAI/swiftdeps/services/depgraph/deps"
)

// Wrapper is a recognized SwiftUI property wrapper.
type Wrapper int

const (
	WrapperNone Wrapper = iota
	WrapperEnvironmentObject
	WrapperStateObject
	WrapperObservedObject
	WrapperAppStorage
)

// String returns the wrapper's attribute name without the "@".
func (w Wrapper) String() string {
	switch w {
	case WrapperEnvironmentObject:
		return "EnvironmentObject"
	case WrapperStateObject:
		return "StateObject"
	case WrapperObservedObject:
		return "ObservedObject"
	case WrapperAppStorage:
		return "AppStorage"
	default:
		return "none"
	}
}

// wrapperTags maps attribute tags to wrappers. Extend this table, together
// with wrapperBuckets, to recognize another wrapper.
var wrapperTags = map[string]Wrapper{
	ast.AttributeTag("EnvironmentObject"): WrapperEnvironmentObject,
	ast.AttributeTag("StateObject"):       WrapperStateObject,
	ast.AttributeTag("ObservedObject"):    WrapperObservedObject,
	ast.AttributeTag("AppStorage"):        WrapperAppStorage,
}

var wrapperBuckets = map[Wrapper]deps.Bucket{
	WrapperEnvironmentObject: deps.EnvironmentObjects,
	WrapperStateObject:       deps.StateObjects,
	WrapperObservedObject:    deps.ObservedObjects,
	WrapperAppStorage:        deps.AppStorageKeys,
}

// WrapperForTag returns the wrapper an attribute tag denotes, or WrapperNone.
func WrapperForTag(tag string) Wrapper {
	return wrapperTags[tag]
}

// Call names that mark SwiftUI navigation.
var navigationCalls = map[string]struct{}{
	"NavigationLink":        {},
	"NavigationStack":       {},
	"NavigationView":        {},
	"navigationDestination": {},
	"sheet":                 {},
	"fullScreenCover":       {},
	"popover":               {},
}

// Call names that mark view lifecycle hooks.
var lifecycleCalls = map[string]struct{}{
	"onAppear":    {},
	"onDisappear": {},
	"task":        {},
	"onChange":    {},
	"onReceive":   {},
	"onOpenURL":   {},
}

var loggerKeywords = []string{"log", "debug", "trace", "print"}

// enclosingKinds are the declarations whose name becomes the enclosing
// function of the calls beneath them.
var enclosingKinds = map[string]struct{}{
	ast.KindMethodInstance: {},
	ast.KindMethodStatic:   {},
	ast.KindMethodClass:    {},
	ast.KindFunctionFree:   {},
	ast.KindConstructor:    {},
}

// rule inspects one node and adds whatever it matches.
type rule func(c *Classifier, n *ast.Node, enclosing string, b *deps.Builder)

// rulesByKind lists the rules evaluated for each node kind. Every rule for a
// kind runs; a node may land in several buckets.
var rulesByKind = map[string][]rule{
	ast.KindImport:       {importRule},
	ast.KindVarGlobal:    {globalVariableRule},
	ast.KindVarStatic:    {singletonRule},
	ast.KindMethodStatic: {staticFunctionRule},
	ast.KindVarInstance:  {propertyWrapperRule},
	ast.KindClass:        {coreDataModelRule},
	ast.KindCall: {
		functionCallRule,
		userDefaultsRule,
		networkClientRule,
		loggerRule,
		navigationRule,
		lifecycleRule,
	},
}

func importRule(_ *Classifier, n *ast.Node, _ string, b *deps.Builder) {
	b.Add(deps.Imports, n.Name)
}

func globalVariableRule(_ *Classifier, n *ast.Node, _ string, b *deps.Builder) {
	b.Add(deps.GlobalVariables, n.Name)
}

func singletonRule(_ *Classifier, n *ast.Node, _ string, b *deps.Builder) {
	if strings.Contains(strings.ToLower(n.Name), "shared") {
		b.Add(deps.Singletons, n.Name)
	}
}

func staticFunctionRule(_ *Classifier, n *ast.Node, _ string, b *deps.Builder) {
	b.Add(deps.StaticFunctions, n.Name)
}

func functionCallRule(_ *Classifier, n *ast.Node, enclosing string, b *deps.Builder) {
	b.Add(deps.FunctionCalls, n.Name)
	b.AddCall(enclosing, n.Name)
}

func userDefaultsRule(_ *Classifier, n *ast.Node, _ string, b *deps.Builder) {
	if strings.Contains(n.Name, "UserDefaults") {
		b.Add(deps.UserDefaultsKeys, UserDefaultsKey(n))
	}
}

func networkClientRule(_ *Classifier, n *ast.Node, _ string, b *deps.Builder) {
	if strings.Contains(n.Name, "URLSession") {
		b.Add(deps.NetworkClients, deps.NetworkClientMarker)
	}
}

func loggerRule(_ *Classifier, n *ast.Node, _ string, b *deps.Builder) {
	lower := strings.ToLower(n.Name)
	for _, kw := range loggerKeywords {
		if strings.Contains(lower, kw) {
			b.Add(deps.Loggers, deps.LoggerMarker)
			return
		}
	}
}

func navigationRule(_ *Classifier, n *ast.Node, _ string, b *deps.Builder) {
	if _, ok := navigationCalls[BaseName(n.Name)]; ok {
		b.Add(deps.NavigationTargets, n.Name)
	}
}

func lifecycleRule(_ *Classifier, n *ast.Node, _ string, b *deps.Builder) {
	base := BaseName(n.Name)
	if _, ok := lifecycleCalls[base]; ok {
		b.Add(deps.LifecycleTriggers, base)
	}
}

func propertyWrapperRule(_ *Classifier, n *ast.Node, _ string, b *deps.Builder) {
	for _, tag := range n.Attributes {
		if bucket, ok := wrapperBuckets[WrapperForTag(tag)]; ok {
			b.Add(bucket, n.Name)
		}
	}
}

func coreDataModelRule(c *Classifier, n *ast.Node, _ string, b *deps.Builder) {
	for _, t := range n.InheritedTypes {
		if _, ok := c.persistence[t]; ok {
			b.Add(deps.CoreDataModels, n.Name)
			return
		}
	}
}

// UserDefaultsKey derives the key recorded for a UserDefaults call: the last
// dot-separated segment of the USR when one is present, otherwise the name.
func UserDefaultsKey(n *ast.Node) string {
	if n.USR == "" {
		return n.Name
	}
	if i := strings.LastIndexByte(n.USR, '.'); i >= 0 {
		return n.USR[i+1:]
	}
	return n.USR
}

// BaseName returns the member a call names: the text after the last dot
// outside any brackets, cut before its own argument list or generic clause.
//
//	BaseName("Text(\"a.b\").onAppear") == "onAppear"
//	BaseName("NavigationLink<Label>")  == "NavigationLink"
func BaseName(name string) string {
	depth := 0
	start := 0
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			if depth > 0 {
				depth--
			}
		case '.':
			if depth == 0 {
				start = i + 1
			}
		}
	}
	base := name[start:]
	if i := strings.IndexAny(base, "([{<"); i >= 0 {
		base = base[:i]
	}
	return strings.TrimSpace(base)
}
