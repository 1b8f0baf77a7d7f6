// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package deps defines the per-file dependency record produced by the
// classifier and its JSON shape.
package deps

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Bucket names a category of facts. The value is also the JSON field name.
type Bucket string

const (
	Imports            Bucket = "imports"
	GlobalVariables    Bucket = "globalVariables"
	Singletons         Bucket = "singletons"
	StaticFunctions    Bucket = "staticFunctions"
	FunctionCalls      Bucket = "functionCalls"
	EnvironmentObjects Bucket = "environmentObjects"
	StateObjects       Bucket = "stateObjects"
	ObservedObjects    Bucket = "observedObjects"
	AppStorageKeys     Bucket = "appStorageKeys"
	CoreDataModels     Bucket = "coreDataModels"
	UserDefaultsKeys   Bucket = "userDefaultsKeys"
	NetworkClients     Bucket = "networkClients"
	Loggers            Bucket = "loggers"
	NavigationTargets  Bucket = "navigationTargets"
	LifecycleTriggers  Bucket = "lifecycleTriggers"
)

// Marker values recorded instead of the call name.
const (
	NetworkClientMarker = "URLSession"
	LoggerMarker        = "Logger"
)

// Buckets lists every bucket in serialization order.
var Buckets = []Bucket{
	Imports,
	GlobalVariables,
	Singletons,
	StaticFunctions,
	FunctionCalls,
	EnvironmentObjects,
	StateObjects,
	ObservedObjects,
	AppStorageKeys,
	CoreDataModels,
	UserDefaultsKeys,
	NetworkClients,
	Loggers,
	NavigationTargets,
	LifecycleTriggers,
}

// Valid reports whether b is a known bucket.
func (b Bucket) Valid() bool {
	for _, known := range Buckets {
		if b == known {
			return true
		}
	}
	return false
}

type set map[string]struct{}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Record holds the facts extracted from one file.
//
// Every bucket is a set; Values returns it sorted. CallGraph maps the name of
// the enclosing function to the calls made inside it, in walk order with
// duplicates kept. Calls outside any function are keyed by "".
//
// A Record is immutable once built. Use Builder to construct one.
type Record struct {
	fileID  string
	buckets map[Bucket]set
	calls   map[string][]string
}

func newRecord(fileID string) *Record {
	r := &Record{
		fileID:  fileID,
		buckets: make(map[Bucket]set, len(Buckets)),
		calls:   make(map[string][]string),
	}
	for _, b := range Buckets {
		r.buckets[b] = set{}
	}
	return r
}

// Empty returns a record for fileID with every bucket empty.
func Empty(fileID string) *Record {
	return newRecord(fileID)
}

// FileID returns the project-relative path of the file.
func (r *Record) FileID() string {
	return r.fileID
}

// Values returns the sorted contents of bucket b. Never nil.
func (r *Record) Values(b Bucket) []string {
	s, ok := r.buckets[b]
	if !ok {
		return []string{}
	}
	return s.sorted()
}

// Has reports whether value is in bucket b.
func (r *Record) Has(b Bucket, value string) bool {
	_, ok := r.buckets[b][value]
	return ok
}

// Len returns the number of values in bucket b.
func (r *Record) Len(b Bucket) int {
	return len(r.buckets[b])
}

// Calls returns a copy of the calls made inside the named function.
func (r *Record) Calls(function string) []string {
	calls := r.calls[function]
	out := make([]string, len(calls))
	copy(out, calls)
	return out
}

// CallGraph returns a copy of the call graph.
func (r *Record) CallGraph() map[string][]string {
	out := make(map[string][]string, len(r.calls))
	for fn, calls := range r.calls {
		cp := make([]string, len(calls))
		copy(cp, calls)
		out[fn] = cp
	}
	return out
}

// IsEmpty reports whether no bucket holds a value and no call was recorded.
func (r *Record) IsEmpty() bool {
	for _, s := range r.buckets {
		if len(s) > 0 {
			return false
		}
	}
	return len(r.calls) == 0
}

// WithFileID returns a copy of r attributed to a different file.
// Buckets and call lists are shared; records are never mutated.
func (r *Record) WithFileID(fileID string) *Record {
	return &Record{fileID: fileID, buckets: r.buckets, calls: r.calls}
}

// Builder accumulates facts into a Record.
//
// Not safe for concurrent use. Build may be called once.
type Builder struct {
	rec *Record
}

// NewBuilder starts a record for fileID.
func NewBuilder(fileID string) *Builder {
	return &Builder{rec: newRecord(fileID)}
}

// Add puts value into bucket b. Unknown buckets are ignored.
func (b *Builder) Add(bucket Bucket, value string) {
	if s, ok := b.rec.buckets[bucket]; ok {
		s[value] = struct{}{}
	}
}

// AddCall appends a call made inside function.
func (b *Builder) AddCall(function, call string) {
	b.rec.calls[function] = append(b.rec.calls[function], call)
}

// Build returns the finished record.
func (b *Builder) Build() *Record {
	rec := b.rec
	b.rec = nil
	return rec
}

// recordJSON fixes the field order of the serialized record.
type recordJSON struct {
	Imports            []string            `json:"imports"`
	GlobalVariables    []string            `json:"globalVariables"`
	Singletons         []string            `json:"singletons"`
	StaticFunctions    []string            `json:"staticFunctions"`
	FunctionCalls      []string            `json:"functionCalls"`
	EnvironmentObjects []string            `json:"environmentObjects"`
	StateObjects       []string            `json:"stateObjects"`
	ObservedObjects    []string            `json:"observedObjects"`
	AppStorageKeys     []string            `json:"appStorageKeys"`
	CoreDataModels     []string            `json:"coreDataModels"`
	UserDefaultsKeys   []string            `json:"userDefaultsKeys"`
	NetworkClients     []string            `json:"networkClients"`
	Loggers            []string            `json:"loggers"`
	NavigationTargets  []string            `json:"navigationTargets"`
	LifecycleTriggers  []string            `json:"lifecycleTriggers"`
	CallGraph          map[string][]string `json:"callGraph"`
}

func (j *recordJSON) fields() map[Bucket]*[]string {
	return map[Bucket]*[]string{
		Imports:            &j.Imports,
		GlobalVariables:    &j.GlobalVariables,
		Singletons:         &j.Singletons,
		StaticFunctions:    &j.StaticFunctions,
		FunctionCalls:      &j.FunctionCalls,
		EnvironmentObjects: &j.EnvironmentObjects,
		StateObjects:       &j.StateObjects,
		ObservedObjects:    &j.ObservedObjects,
		AppStorageKeys:     &j.AppStorageKeys,
		CoreDataModels:     &j.CoreDataModels,
		UserDefaultsKeys:   &j.UserDefaultsKeys,
		NetworkClients:     &j.NetworkClients,
		Loggers:            &j.Loggers,
		NavigationTargets:  &j.NavigationTargets,
		LifecycleTriggers:  &j.LifecycleTriggers,
	}
}

// MarshalJSON encodes the record with every bucket present as a sorted array.
// The file id is not part of the encoding; the graph keys records by it.
func (r *Record) MarshalJSON() ([]byte, error) {
	var j recordJSON
	for b, field := range j.fields() {
		*field = r.Values(b)
	}
	j.CallGraph = r.CallGraph()
	return json.Marshal(&j)
}

// UnmarshalJSON decodes a record. Missing buckets decode as empty.
// The file id is left empty; use WithFileID to attach it.
func (r *Record) UnmarshalJSON(data []byte) error {
	var j recordJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	fresh := newRecord(r.fileID)
	for b, field := range j.fields() {
		for _, v := range *field {
			fresh.buckets[b][v] = struct{}{}
		}
	}
	for fn, calls := range j.CallGraph {
		fresh.calls[fn] = append([]string(nil), calls...)
	}
	*r = *fresh
	return nil
}
