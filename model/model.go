// Copyright 2023-present The Modeldiff Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package model defines the abstract schema-model graph and the migration
// operations produced by diffing two snapshots of it.
package model

type (
	// A Model describes a complete schema snapshot: a collection of entity
	// types that are logically connected and diffed as one unit.
	Model struct {
		// Schema is the default physical schema
		// name for entity types (e.g. "public").
		Schema   string
		Entities []*EntityType
		Attrs    []Attr // Model-wide attrs and provider options.
	}

	// An EntityType describes one entity type and its physical table mapping.
	EntityType struct {
		Name       string // Logical name.
		Schema     string // Physical schema name.
		Table      string // Physical table name.
		Model      *Model
		Properties []*Property
		PrimaryKey *Key
		Keys       []*Key // Unique constraints.
		Indexes    []*Index
		Attrs      []Attr
	}

	// A Property describes a column-like member of an entity type.
	Property struct {
		Name    string // Logical name.
		Column  string // Mapped physical column name.
		Type    Type
		Null    bool
		Default Expr
		// ValueGenerated indicates that a value is
		// generated for the property on insert.
		ValueGenerated bool
		Entity         *EntityType
		Attrs          []Attr
	}

	// A Key is an ordered set of properties forming a primary
	// key or a unique constraint.
	Key struct {
		Name       string
		Entity     *EntityType
		Properties []*Property
		Attrs      []Attr
	}

	// An Index is an ordered set of properties plus a uniqueness flag.
	Index struct {
		Name       string
		Unique     bool
		Entity     *EntityType
		Properties []*Property
		Attrs      []Attr
	}

	// A Sequence describes a named counter entity owned by the provider.
	Sequence struct {
		Name      string
		Schema    string
		Start     int64
		Increment int64
	}
)

// EntityType returns the first entity type that matched the given name.
func (m *Model) EntityType(name string) (*EntityType, bool) {
	for _, e := range m.Entities {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// Property returns the first property that matched the given name.
func (e *EntityType) Property(name string) (*Property, bool) {
	for _, p := range e.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Key returns the first unique constraint that matched the given name.
func (e *EntityType) Key(name string) (*Key, bool) {
	for _, k := range e.Keys {
		if k.Name == name {
			return k, true
		}
	}
	return nil, false
}

// Index returns the first index that matched the given name.
func (e *EntityType) Index(name string) (*Index, bool) {
	for _, i := range e.Indexes {
		if i.Name == name {
			return i, true
		}
	}
	return nil, false
}

// InPrimaryKey reports whether the property is a member of its
// entity type's primary key.
func (p *Property) InPrimaryKey() bool {
	if p.Entity == nil || p.Entity.PrimaryKey == nil {
		return false
	}
	for _, m := range p.Entity.PrimaryKey.Properties {
		if m == p {
			return true
		}
	}
	return false
}

// IsPrimary reports whether the key is its entity type's primary key.
func (k *Key) IsPrimary() bool {
	return k.Entity != nil && k.Entity.PrimaryKey == k
}

type (
	// A Type represents a property type. The types below implement this
	// interface and can be used for describing models.
	//
	// The Type interface can also be implemented outside this package
	// as follows:
	//
	//	type RangeType struct {
	//		model.Type
	//		T string
	//	}
	//
	//	var t model.Type = &RangeType{T: "int4range"}
	//
	Type interface {
		typ()
	}

	// BinaryType represents a type that stores binary data.
	BinaryType struct {
		T string
	}

	// BoolType represents a boolean type.
	BoolType struct {
		T string
	}

	// DecimalType represents a fixed-point type that stores exact numeric values.
	DecimalType struct {
		T         string
		Precision int
		Scale     int
	}

	// EnumType represents an enum type.
	EnumType struct {
		T      string
		Values []string
	}

	// FloatType represents a floating-point type that stores approximate numeric values.
	FloatType struct {
		T         string
		Precision int
	}

	// IntegerType represents an int type.
	IntegerType struct {
		T string
	}

	// JSONType represents a JSON type.
	JSONType struct {
		T string
	}

	// StringType represents a string type.
	StringType struct {
		T    string
		Size int
	}

	// TimeType represents a date/time type.
	TimeType struct {
		T         string
		Precision int
	}

	// A UUIDType defines a UUID type.
	UUIDType struct {
		T string
	}

	// UnsupportedType represents a type that is not supported by the provider.
	UnsupportedType struct {
		T string
	}
)

type (
	// Expr defines a value expression in a model or an operation.
	Expr interface {
		expr()
	}

	// Literal represents a basic literal expression like 1, or '1'.
	// String literals are usually quoted with single or double quotes.
	Literal struct {
		V string
	}

	// RawExpr represents a raw expression like "uuid()" or "now()".
	// Unlike literals, raw expressions are usually inlined as is.
	RawExpr struct {
		X string
	}
)

type (
	// Attr represents the interface that all attributes implement.
	// Provider packages attach their element metadata through it.
	Attr interface {
		attr()
	}

	// GeneratedExpr describes the expression used for generating
	// the value of a computed/generated property.
	GeneratedExpr struct {
		Expr string
	}
)

// expressions.
func (*Literal) expr() {}
func (*RawExpr) expr() {}

// types.
func (*BoolType) typ()        {}
func (*EnumType) typ()        {}
func (*TimeType) typ()        {}
func (*JSONType) typ()        {}
func (*FloatType) typ()       {}
func (*StringType) typ()      {}
func (*BinaryType) typ()      {}
func (*UUIDType) typ()        {}
func (*IntegerType) typ()     {}
func (*DecimalType) typ()     {}
func (*UnsupportedType) typ() {}

// attributes.
func (*GeneratedExpr) attr() {}
