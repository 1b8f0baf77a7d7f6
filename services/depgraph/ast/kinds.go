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

// SourceKit kind identifiers. Both sources emit this vocabulary so the
// classifier never needs to know which one produced a tree.
const (
	KindImport = "source.lang.swift.import"

	KindVarGlobal   = "source.lang.swift.decl.var.global"
	KindVarStatic   = "source.lang.swift.decl.var.static"
	KindVarClass    = "source.lang.swift.decl.var.class"
	KindVarInstance = "source.lang.swift.decl.var.instance"
	KindVarLocal    = "source.lang.swift.decl.var.local"

	KindFunctionFree   = "source.lang.swift.decl.function.free"
	KindMethodInstance = "source.lang.swift.decl.function.method.instance"
	KindMethodStatic   = "source.lang.swift.decl.function.method.static"
	KindMethodClass    = "source.lang.swift.decl.function.method.class"
	KindConstructor    = "source.lang.swift.decl.function.constructor"

	KindClass     = "source.lang.swift.decl.class"
	KindStruct    = "source.lang.swift.decl.struct"
	KindActor     = "source.lang.swift.decl.actor"
	KindEnum      = "source.lang.swift.decl.enum"
	KindProtocol  = "source.lang.swift.decl.protocol"
	KindExtension = "source.lang.swift.decl.extension"

	KindCall    = "source.lang.swift.expr.call"
	KindClosure = "source.lang.swift.expr.closure"
)

// AttributePrefix prefixes every attribute tag.
const AttributePrefix = "source.decl.attribute."

// AttributeTag returns the tag for a Swift attribute written as @name,
// e.g. AttributeTag("StateObject") == "source.decl.attribute.@StateObject".
func AttributeTag(name string) string {
	return AttributePrefix + "@" + name
}
