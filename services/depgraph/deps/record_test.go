// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package deps

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_SetSemantics(t *testing.T) {
	b := NewBuilder("App/Store.swift")
	b.Add(Imports, "SwiftUI")
	b.Add(Imports, "Foundation")
	b.Add(Imports, "SwiftUI")
	b.Add(Bucket("bogus"), "ignored")
	rec := b.Build()

	assert.Equal(t, "App/Store.swift", rec.FileID())
	assert.Equal(t, []string{"Foundation", "SwiftUI"}, rec.Values(Imports))
	assert.Equal(t, 2, rec.Len(Imports))
	assert.True(t, rec.Has(Imports, "SwiftUI"))
	assert.False(t, rec.Has(Loggers, LoggerMarker))
	assert.Equal(t, []string{}, rec.Values(Bucket("bogus")))
	assert.False(t, rec.IsEmpty())
}

func TestBuilder_CallOrderKeepsDuplicates(t *testing.T) {
	b := NewBuilder("a.swift")
	b.AddCall("load()", "fetch")
	b.AddCall("load()", "print")
	b.AddCall("load()", "fetch")
	b.AddCall("", "setup")
	rec := b.Build()

	assert.Equal(t, []string{"fetch", "print", "fetch"}, rec.Calls("load()"))
	assert.Equal(t, []string{"setup"}, rec.Calls(""))
	assert.Equal(t, []string{}, rec.Calls("missing()"))

	calls := rec.Calls("load()")
	calls[0] = "mutated"
	assert.Equal(t, "fetch", rec.Calls("load()")[0])
}

func TestEmpty(t *testing.T) {
	rec := Empty("x.swift")
	assert.True(t, rec.IsEmpty())
	for _, b := range Buckets {
		assert.Equal(t, []string{}, rec.Values(b), b)
	}
}

func TestWithFileID(t *testing.T) {
	b := NewBuilder("old.swift")
	b.Add(Singletons, "shared")
	rec := b.Build()

	moved := rec.WithFileID("new.swift")
	assert.Equal(t, "new.swift", moved.FileID())
	assert.Equal(t, "old.swift", rec.FileID())
	assert.Equal(t, []string{"shared"}, moved.Values(Singletons))
}

func TestMarshalJSON_AllBucketsPresentAndSorted(t *testing.T) {
	b := NewBuilder("a.swift")
	b.Add(FunctionCalls, "zeta")
	b.Add(FunctionCalls, "alpha")
	b.AddCall("run()", "zeta")
	b.AddCall("run()", "alpha")

	data, err := json.Marshal(b.Build())
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, bucket := range Buckets {
		assert.Contains(t, raw, string(bucket))
	}
	assert.Contains(t, raw, "callGraph")
	assert.JSONEq(t, `["alpha","zeta"]`, string(raw["functionCalls"]))
	assert.JSONEq(t, `["zeta","alpha"]`, mustField(t, raw["callGraph"], "run()"))
	assert.JSONEq(t, `[]`, string(raw["imports"]))

	// Field order follows the bucket list.
	s := string(data)
	assert.Less(t, strings.Index(s, `"imports"`), strings.Index(s, `"lifecycleTriggers"`))
}

func TestUnmarshalJSON(t *testing.T) {
	var rec Record
	err := json.Unmarshal([]byte(`{"imports":["UIKit"],"loggers":["Logger"],"callGraph":{"":["main"]}}`), &rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"UIKit"}, rec.Values(Imports))
	assert.Equal(t, []string{"Logger"}, rec.Values(Loggers))
	assert.Equal(t, []string{}, rec.Values(Singletons))
	assert.Equal(t, []string{"main"}, rec.Calls(""))
}

func TestUnmarshalJSON_Malformed(t *testing.T) {
	var rec Record
	assert.Error(t, json.Unmarshal([]byte(`{"imports": 7}`), &rec))
}

func TestBucketValid(t *testing.T) {
	assert.True(t, NavigationTargets.Valid())
	assert.False(t, Bucket("nope").Valid())
	assert.Len(t, Buckets, 15)
}

func mustField(t *testing.T, obj json.RawMessage, key string) string {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(obj, &m))
	return string(m[key])
}
