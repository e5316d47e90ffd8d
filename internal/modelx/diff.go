// Copyright 2023-present The Modeldiff Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package modelx

import (
	"fmt"
	"reflect"

	"github.com/veiloq/modeldiff/model"
)

// A Diff provides a generic model.Differ for diffing model elements.
//
// Elements are matched strictly by name and compared by their structural
// definition; renames are not detected. Provider-specific concerns, like
// computed expressions, value-generation strategies or clustering, are
// invisible to it and layered on top of its output as a post-processing
// pass (see the postgres package for an implementation).
type Diff struct{}

// ModelDiff implements the model.Differ interface and returns a list of
// operations that need to be applied in order to move a model from the
// current state to the desired. A nil side denotes an empty model.
func (d *Diff) ModelDiff(from, to *model.Model) ([]model.Operation, error) {
	if from == nil {
		from = &model.Model{}
	}
	if to == nil {
		to = &model.Model{}
	}
	var ops []model.Operation
	// Drop or modify entity types.
	for _, e1 := range from.Entities {
		e2, ok := to.EntityType(e1.Name)
		if !ok {
			ops = append(ops, &model.DropTable{Schema: e1.Schema, Table: e1.Table})
			continue
		}
		change, err := d.entityDiff(e1, e2)
		if err != nil {
			return nil, err
		}
		ops = append(ops, change...)
	}
	// Add entity types.
	for _, e1 := range to.Entities {
		if _, ok := from.EntityType(e1.Name); !ok {
			ops = append(ops, d.createOps(e1)...)
		}
	}
	return ops, nil
}

// AddModel returns the operations for creating all entity types of the
// given model.
func (d *Diff) AddModel(to *model.Model) ([]model.Operation, error) {
	return d.ModelDiff(nil, to)
}

// RemoveModel returns the operations for dropping all entity types of
// the given model.
func (d *Diff) RemoveModel(from *model.Model) ([]model.Operation, error) {
	return d.ModelDiff(from, nil)
}

// PropertyDiff implements the model.PropertyDiffer interface. A nil side
// delegates to AddProperty or RemoveProperty.
func (d *Diff) PropertyDiff(from, to *model.Property) ([]model.Operation, error) {
	switch {
	case from == nil && to == nil:
		return nil, nil
	case from == nil:
		return d.AddProperty(to)
	case to == nil:
		return d.RemoveProperty(from)
	}
	if !propertyChanged(from, to) {
		return nil, nil
	}
	s, t := TableIdent(from.Entity)
	return []model.Operation{&model.AlterColumn{Schema: s, Table: t, From: from, To: to}}, nil
}

// AddProperty returns the operation for adding the given property to
// its entity type.
func (d *Diff) AddProperty(to *model.Property) ([]model.Operation, error) {
	s, t := TableIdent(to.Entity)
	return []model.Operation{&model.AddColumn{Schema: s, Table: t, P: to}}, nil
}

// RemoveProperty returns the operation for dropping the given property
// from its entity type.
func (d *Diff) RemoveProperty(from *model.Property) ([]model.Operation, error) {
	s, t := TableIdent(from.Entity)
	return []model.Operation{&model.DropColumn{Schema: s, Table: t, Column: from.Column}}, nil
}

// KeyDiff implements the model.KeyDiffer interface for both primary
// keys and unique constraints. A changed key is dropped and recreated.
// A nil side delegates to AddKey or RemoveKey.
func (d *Diff) KeyDiff(from, to *model.Key) ([]model.Operation, error) {
	switch {
	case from == nil && to == nil:
		return nil, nil
	case from == nil:
		return d.AddKey(to)
	case to == nil:
		return d.RemoveKey(from)
	}
	if !columnsChanged(from.Properties, to.Properties) {
		return nil, nil
	}
	remove, err := d.RemoveKey(from)
	if err != nil {
		return nil, err
	}
	add, err := d.AddKey(to)
	if err != nil {
		return nil, err
	}
	return append(remove, add...), nil
}

// AddKey returns the operation for adding the given key to its entity
// type: an AddPrimaryKey for primary keys, and an AddUniqueConstraint
// for unique constraints.
func (d *Diff) AddKey(to *model.Key) ([]model.Operation, error) {
	s, t := TableIdent(to.Entity)
	if to.IsPrimary() {
		return []model.Operation{&model.AddPrimaryKey{Schema: s, Table: t, K: to}}, nil
	}
	return []model.Operation{&model.AddUniqueConstraint{Schema: s, Table: t, K: to}}, nil
}

// RemoveKey returns the operation for dropping the given key from its
// entity type.
func (d *Diff) RemoveKey(from *model.Key) ([]model.Operation, error) {
	s, t := TableIdent(from.Entity)
	if from.IsPrimary() {
		return []model.Operation{&model.DropPrimaryKey{Schema: s, Table: t, Name: from.Name}}, nil
	}
	return []model.Operation{&model.DropUniqueConstraint{Schema: s, Table: t, Name: from.Name}}, nil
}

// IndexDiff implements the model.IndexDiffer interface. A changed index
// is dropped and recreated. A nil side delegates to AddIndex or
// RemoveIndex.
func (d *Diff) IndexDiff(from, to *model.Index) ([]model.Operation, error) {
	switch {
	case from == nil && to == nil:
		return nil, nil
	case from == nil:
		return d.AddIndex(to)
	case to == nil:
		return d.RemoveIndex(from)
	}
	if from.Unique == to.Unique && !columnsChanged(from.Properties, to.Properties) {
		return nil, nil
	}
	remove, err := d.RemoveIndex(from)
	if err != nil {
		return nil, err
	}
	add, err := d.AddIndex(to)
	if err != nil {
		return nil, err
	}
	return append(remove, add...), nil
}

// AddIndex returns the operation for creating the given index. The
// operation is self-contained: name, table, ordered column list and
// uniqueness are copied out of the model element.
func (d *Diff) AddIndex(to *model.Index) ([]model.Operation, error) {
	return []model.Operation{CreateIndexOp(to)}, nil
}

// RemoveIndex returns the operation for dropping the given index.
func (d *Diff) RemoveIndex(from *model.Index) ([]model.Operation, error) {
	s, t := TableIdent(from.Entity)
	return []model.Operation{&model.DropIndex{Schema: s, Table: t, Name: from.Name}}, nil
}

// entityDiff returns the operations for migrating one entity type to
// the other.
func (d *Diff) entityDiff(from, to *model.EntityType) ([]model.Operation, error) {
	if from.Name != to.Name {
		return nil, fmt.Errorf("modelx: mismatched entity type names: %q != %q", from.Name, to.Name)
	}
	var ops []model.Operation
	// Drop or modify properties.
	for _, p1 := range from.Properties {
		p2, ok := to.Property(p1.Name)
		if !ok {
			change, err := d.RemoveProperty(p1)
			if err != nil {
				return nil, err
			}
			ops = append(ops, change...)
			continue
		}
		change, err := d.PropertyDiff(p1, p2)
		if err != nil {
			return nil, err
		}
		ops = append(ops, change...)
	}
	// Add properties.
	for _, p1 := range to.Properties {
		if _, ok := from.Property(p1.Name); !ok {
			change, err := d.AddProperty(p1)
			if err != nil {
				return nil, err
			}
			ops = append(ops, change...)
		}
	}
	// Drop, modify or add the primary key.
	if from.PrimaryKey != nil || to.PrimaryKey != nil {
		change, err := d.KeyDiff(from.PrimaryKey, to.PrimaryKey)
		if err != nil {
			return nil, err
		}
		ops = append(ops, change...)
	}
	// Drop or modify unique constraints.
	for _, k1 := range from.Keys {
		k2, ok := to.Key(k1.Name)
		if !ok {
			change, err := d.RemoveKey(k1)
			if err != nil {
				return nil, err
			}
			ops = append(ops, change...)
			continue
		}
		change, err := d.KeyDiff(k1, k2)
		if err != nil {
			return nil, err
		}
		ops = append(ops, change...)
	}
	// Add unique constraints.
	for _, k1 := range to.Keys {
		if _, ok := from.Key(k1.Name); !ok {
			change, err := d.AddKey(k1)
			if err != nil {
				return nil, err
			}
			ops = append(ops, change...)
		}
	}
	// Drop or modify indexes.
	for _, i1 := range from.Indexes {
		i2, ok := to.Index(i1.Name)
		if !ok {
			change, err := d.RemoveIndex(i1)
			if err != nil {
				return nil, err
			}
			ops = append(ops, change...)
			continue
		}
		change, err := d.IndexDiff(i1, i2)
		if err != nil {
			return nil, err
		}
		ops = append(ops, change...)
	}
	// Add indexes.
	for _, i1 := range to.Indexes {
		if _, ok := from.Index(i1.Name); !ok {
			change, err := d.AddIndex(i1)
			if err != nil {
				return nil, err
			}
			ops = append(ops, change...)
		}
	}
	return ops, nil
}

// createOps returns the operations for creating the given entity type.
// Columns and the primary key travel inside the create operation; unique
// constraints and secondary indexes are emitted separately.
func (d *Diff) createOps(e *model.EntityType) []model.Operation {
	ops := []model.Operation{&model.CreateTable{E: e}}
	for _, k := range e.Keys {
		ops = append(ops, &model.AddUniqueConstraint{Schema: e.Schema, Table: e.Table, K: k})
	}
	for _, i := range e.Indexes {
		ops = append(ops, CreateIndexOp(i))
	}
	return ops
}

// CreateIndexOp builds the self-contained create operation for the
// given index.
func CreateIndexOp(i *model.Index) *model.CreateIndex {
	s, t := TableIdent(i.Entity)
	columns := make([]string, len(i.Properties))
	for n, p := range i.Properties {
		columns[n] = p.Column
	}
	return &model.CreateIndex{Schema: s, Table: t, Name: i.Name, Columns: columns, Unique: i.Unique}
}

// propertyChanged reports if the property definition was changed.
func propertyChanged(from, to *model.Property) bool {
	return !reflect.DeepEqual(from.Type, to.Type) ||
		from.Null != to.Null ||
		!reflect.DeepEqual(from.Default, to.Default) ||
		from.ValueGenerated != to.ValueGenerated
}

// columnsChanged reports if the ordered column lists differ.
func columnsChanged(from, to []*model.Property) bool {
	if len(from) != len(to) {
		return true
	}
	for i := range from {
		if from[i].Column != to[i].Column {
			return true
		}
	}
	return false
}

// TableIdent returns the physical table identity of the entity type.
func TableIdent(e *model.EntityType) (schema, table string) {
	if e != nil {
		return e.Schema, e.Table
	}
	return "", ""
}
