// Copyright 2023-present The Modeldiff Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package model

import (
	"reflect"
	"strings"

	"github.com/go-openapi/inflect"
)

// New creates a new Model with the given default physical schema name.
func New(schema string) *Model {
	return &Model{Schema: schema}
}

// AddEntities adds and binds the given entity types to the model.
func (m *Model) AddEntities(entities ...*EntityType) *Model {
	for _, e := range entities {
		e.Model = m
		if e.Schema == "" {
			e.Schema = m.Schema
		}
	}
	m.Entities = append(m.Entities, entities...)
	return m
}

// AddAttrs adds additional attributes to the model.
func (m *Model) AddAttrs(attrs ...Attr) *Model {
	m.Attrs = append(m.Attrs, attrs...)
	return m
}

// NewEntityType creates a new EntityType with the given logical name.
// The physical table name is derived from it (e.g. "OrderLine" is
// mapped to "order_lines") and can be overridden with SetTable.
func NewEntityType(name string) *EntityType {
	return &EntityType{Name: name, Table: inflect.Tableize(name)}
}

// SetSchema sets the physical schema name of the entity type.
func (e *EntityType) SetSchema(schema string) *EntityType {
	e.Schema = schema
	return e
}

// SetTable sets the physical table name of the entity type.
func (e *EntityType) SetTable(table string) *EntityType {
	e.Table = table
	return e
}

// AddProperties adds and binds the given properties to the entity type.
func (e *EntityType) AddProperties(properties ...*Property) *EntityType {
	for _, p := range properties {
		p.Entity = e
	}
	e.Properties = append(e.Properties, properties...)
	return e
}

// SetPrimaryKey sets the primary key of the entity type. An empty key
// name defaults to "pk_<table>".
func (e *EntityType) SetPrimaryKey(k *Key) *EntityType {
	k.Entity = e
	if k.Name == "" {
		k.Name = "pk_" + e.Table
	}
	e.PrimaryKey = k
	return e
}

// AddKeys adds and binds the given unique constraints to the entity
// type. An empty key name defaults to "uq_<table>_<columns>".
func (e *EntityType) AddKeys(keys ...*Key) *EntityType {
	for _, k := range keys {
		k.Entity = e
		if k.Name == "" {
			k.Name = "uq_" + e.Table + "_" + joinColumns(k.Properties)
		}
	}
	e.Keys = append(e.Keys, keys...)
	return e
}

// AddIndexes adds and binds the given indexes to the entity type. An
// empty index name defaults to "ix_<table>_<columns>".
func (e *EntityType) AddIndexes(indexes ...*Index) *EntityType {
	for _, i := range indexes {
		i.Entity = e
		if i.Name == "" {
			i.Name = "ix_" + e.Table + "_" + joinColumns(i.Properties)
		}
	}
	e.Indexes = append(e.Indexes, indexes...)
	return e
}

// AddAttrs adds additional attributes to the entity type.
func (e *EntityType) AddAttrs(attrs ...Attr) *EntityType {
	e.Attrs = append(e.Attrs, attrs...)
	return e
}

// NewProperty creates a new Property with the given logical name and
// type. The physical column name is derived from the logical name
// (e.g. "CreatedAt" is mapped to "created_at") and can be overridden
// with SetColumn.
func NewProperty(name string, t Type) *Property {
	return &Property{Name: name, Column: inflect.Underscore(name), Type: t}
}

// NewIntProperty creates a new integer property.
func NewIntProperty(name, t string) *Property {
	return NewProperty(name, &IntegerType{T: t})
}

// NewNullIntProperty creates a new nullable integer property.
func NewNullIntProperty(name, t string) *Property {
	p := NewIntProperty(name, t)
	p.Null = true
	return p
}

// NewStringProperty creates a new string property.
func NewStringProperty(name, t string) *Property {
	return NewProperty(name, &StringType{T: t})
}

// NewNullStringProperty creates a new nullable string property.
func NewNullStringProperty(name, t string) *Property {
	p := NewStringProperty(name, t)
	p.Null = true
	return p
}

// NewBoolProperty creates a new bool property.
func NewBoolProperty(name, t string) *Property {
	return NewProperty(name, &BoolType{T: t})
}

// NewTimeProperty creates a new time property.
func NewTimeProperty(name, t string) *Property {
	return NewProperty(name, &TimeType{T: t})
}

// SetColumn overrides the derived physical column name.
func (p *Property) SetColumn(column string) *Property {
	p.Column = column
	return p
}

// SetDefault sets the default value of the property.
func (p *Property) SetDefault(x Expr) *Property {
	p.Default = x
	return p
}

// SetValueGenerated sets whether a value is generated for the
// property on insert.
func (p *Property) SetValueGenerated(b bool) *Property {
	p.ValueGenerated = b
	return p
}

// SetGeneratedExpr sets the computed expression of the property.
func (p *Property) SetGeneratedExpr(x *GeneratedExpr) *Property {
	ReplaceOrAppend(&p.Attrs, x)
	return p
}

// AddAttrs adds additional attributes to the property.
func (p *Property) AddAttrs(attrs ...Attr) *Property {
	p.Attrs = append(p.Attrs, attrs...)
	return p
}

// NewPrimaryKey creates a new primary key from the given properties.
// Its name is derived when attached with SetPrimaryKey.
func NewPrimaryKey(properties ...*Property) *Key {
	return &Key{Properties: properties}
}

// NewUniqueConstraint creates a new unique constraint from the given
// properties. Its name is derived when attached with AddKeys.
func NewUniqueConstraint(properties ...*Property) *Key {
	return &Key{Properties: properties}
}

// AddAttrs adds additional attributes to the key.
func (k *Key) AddAttrs(attrs ...Attr) *Key {
	k.Attrs = append(k.Attrs, attrs...)
	return k
}

// NewIndex creates a new index with the given name. An empty name is
// derived when the index is attached with AddIndexes.
func NewIndex(name string, properties ...*Property) *Index {
	return &Index{Name: name, Properties: properties}
}

// NewUniqueIndex creates a new unique index with the given name.
func NewUniqueIndex(name string, properties ...*Property) *Index {
	i := NewIndex(name, properties...)
	i.Unique = true
	return i
}

// AddAttrs adds additional attributes to the index.
func (i *Index) AddAttrs(attrs ...Attr) *Index {
	i.Attrs = append(i.Attrs, attrs...)
	return i
}

// ReplaceOrAppend searches an attribute of the same type as v in
// the list and replaces it. Otherwise, v is appended to the list.
func ReplaceOrAppend(attrs *[]Attr, v Attr) {
	t := reflect.TypeOf(v)
	for i := range *attrs {
		if reflect.TypeOf((*attrs)[i]) == t {
			(*attrs)[i] = v
			return
		}
	}
	*attrs = append(*attrs, v)
}

// RemoveAttr returns a new slice where all attributes of type T
// were filtered out.
func RemoveAttr[T Attr](attrs []Attr) []Attr {
	f := make([]Attr, 0, len(attrs))
	for _, a := range attrs {
		if _, ok := a.(T); !ok {
			f = append(f, a)
		}
	}
	return f
}

func joinColumns(properties []*Property) string {
	names := make([]string, len(properties))
	for i, p := range properties {
		names[i] = p.Column
	}
	return strings.Join(names, "_")
}
