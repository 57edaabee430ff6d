// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// Copyright 2025-present the sweep authors.

// Package fieldset implements the fixed-schema output model. Each probe
// module declares an ordered schema once; every processed response must
// populate every declared field, in order, so records from different modules
// merge into one uniform tabular stream.
package fieldset

import (
	"encoding/json"
	"fmt"
)

// Kind is the type tag of a schema field.
type Kind int

const (
	// KindUint is an unsigned integer field.
	KindUint Kind = iota
	// KindBool is a boolean field.
	KindBool
	// KindString is a string field drawn from a small fixed vocabulary.
	KindString
	// KindBinary is a raw byte field copied out of the capture buffer.
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindUint:
		return "uint"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FieldDef declares one schema field.
type FieldDef struct {
	Name string
	Kind Kind
	Desc string
}

// Schema is an ordered list of field declarations. Immutable once a module
// registers it.
type Schema []FieldDef

// Index returns the position of the named field, or -1.
func (s Schema) Index(name string) int {
	for i, d := range s {
		if d.Name == name {
			return i
		}
	}
	return -1
}

// Value is one typed field value. A Value with Null set carries no payload.
type Value struct {
	Kind  Kind
	Null  bool
	Uint  uint64
	Bool  bool
	Str   string
	Bytes []byte
}

// MarshalJSON renders the payload (or null) without the type wrapper.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Null {
		return []byte("null"), nil
	}
	switch v.Kind {
	case KindUint:
		return json.Marshal(v.Uint)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindString:
		return json.Marshal(v.Str)
	case KindBinary:
		return json.Marshal(v.Bytes)
	default:
		return nil, fmt.Errorf("cannot marshal field of kind %s", v.Kind)
	}
}

// FieldSet accumulates one output record against a schema. Fields must be
// added in declaration order; any deviation is a module bug and panics.
// The zero FieldSet is not usable; call New.
type FieldSet struct {
	schema Schema
	values []Value
}

// New returns an empty FieldSet for the given schema.
func New(schema Schema) *FieldSet {
	return &FieldSet{
		schema: schema,
		values: make([]Value, 0, len(schema)),
	}
}

func (fs *FieldSet) push(name string, v Value) {
	i := len(fs.values)
	if i >= len(fs.schema) {
		panic(fmt.Sprintf("fieldset: %q added past the end of the schema", name))
	}
	def := fs.schema[i]
	if def.Name != name {
		panic(fmt.Sprintf("fieldset: got %q, schema declares %q at position %d", name, def.Name, i))
	}
	if !v.Null && def.Kind != v.Kind {
		panic(fmt.Sprintf("fieldset: %q is declared %s, got %s", name, def.Kind, v.Kind))
	}
	v.Kind = def.Kind
	fs.values = append(fs.values, v)
}

// AddUint adds an unsigned integer field.
func (fs *FieldSet) AddUint(name string, v uint64) {
	fs.push(name, Value{Kind: KindUint, Uint: v})
}

// AddBool adds a boolean field.
func (fs *FieldSet) AddBool(name string, v bool) {
	fs.push(name, Value{Kind: KindBool, Bool: v})
}

// AddString adds a string field.
func (fs *FieldSet) AddString(name string, v string) {
	fs.push(name, Value{Kind: KindString, Str: v})
}

// AddBinary adds a binary field. The bytes are copied: the capture buffer is
// reused after the record is handed off.
func (fs *FieldSet) AddBinary(name string, v []byte) {
	b := make([]byte, len(v))
	copy(b, v)
	fs.push(name, Value{Kind: KindBinary, Bytes: b})
}

// AddNull adds an explicit null for the named field.
func (fs *FieldSet) AddNull(name string) {
	fs.push(name, Value{Null: true})
}

// Complete reports whether every schema field has been assigned.
func (fs *FieldSet) Complete() bool {
	return len(fs.values) == len(fs.schema)
}

// Len returns the number of fields assigned so far.
func (fs *FieldSet) Len() int {
	return len(fs.values)
}

// Get returns the value for the named field.
func (fs *FieldSet) Get(name string) (Value, bool) {
	i := fs.schema.Index(name)
	if i < 0 || i >= len(fs.values) {
		return Value{}, false
	}
	return fs.values[i], true
}

// MarshalJSON renders the record as a flat name→value object.
func (fs *FieldSet) MarshalJSON() ([]byte, error) {
	if !fs.Complete() {
		return nil, fmt.Errorf("fieldset: %d of %d fields assigned", len(fs.values), len(fs.schema))
	}
	m := make(map[string]Value, len(fs.schema))
	for i, def := range fs.schema {
		m[def.Name] = fs.values[i]
	}
	return json.Marshal(m)
}
