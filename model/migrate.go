// Copyright 2023-present The Modeldiff Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package model

import (
	"context"
	"database/sql"
)

type (
	// An Operation represents one atomic schema change. The types below
	// implement this interface and can be used for describing migrations.
	// Operations are immutable except for their annotation table, which
	// migration drivers write through the Annotate method.
	//
	// The Operation interface can also be implemented outside this package
	// as follows:
	//
	//	type RenameColumn struct {
	//		model.Operation
	//		From, To string
	//	}
	//
	//	var op model.Operation = &RenameColumn{From: "old", To: "new"}
	//
	Operation interface {
		// Annotate records the provider annotation v under k,
		// overwriting a previously recorded value.
		Annotate(k, v string)

		// Annotation returns the value recorded under k.
		Annotation(k string) (string, bool)

		op()
	}

	// CreateTable describes an entity-type creation operation. The created
	// entity type carries its full definition, so columns and the primary
	// key travel inside the operation rather than as separate operations.
	CreateTable struct {
		Annotations
		E *EntityType
	}

	// DropTable describes an entity-type removal operation.
	DropTable struct {
		Annotations
		Schema string
		Table  string
	}

	// AddColumn describes a column creation operation.
	AddColumn struct {
		Annotations
		Schema string
		Table  string
		P      *Property
	}

	// AlterColumn describes an operation that modifies a column in place.
	AlterColumn struct {
		Annotations
		Schema   string
		Table    string
		From, To *Property
	}

	// DropColumn describes a column removal operation.
	DropColumn struct {
		Annotations
		Schema string
		Table  string
		Column string
	}

	// AddPrimaryKey describes a primary-key creation operation.
	AddPrimaryKey struct {
		Annotations
		Schema string
		Table  string
		K      *Key
	}

	// DropPrimaryKey describes a primary-key removal operation.
	DropPrimaryKey struct {
		Annotations
		Schema string
		Table  string
		Name   string
	}

	// AddUniqueConstraint describes a unique-constraint creation operation.
	AddUniqueConstraint struct {
		Annotations
		Schema string
		Table  string
		K      *Key
	}

	// DropUniqueConstraint describes a unique-constraint removal operation.
	DropUniqueConstraint struct {
		Annotations
		Schema string
		Table  string
		Name   string
	}

	// CreateIndex describes an index creation operation. Unlike the other
	// creation operations, it is self-contained: the index definition is
	// rebuilt into the operation so it can be emitted without a model
	// element backing it.
	CreateIndex struct {
		Annotations
		Schema  string
		Table   string
		Name    string
		Columns []string
		Unique  bool
	}

	// DropIndex describes an index removal operation.
	DropIndex struct {
		Annotations
		Schema string
		Table  string
		Name   string
	}

	// AddSequence describes a sequence creation operation.
	AddSequence struct {
		Annotations
		S *Sequence
	}

	// DropSequence describes a sequence removal operation.
	DropSequence struct {
		Annotations
		S *Sequence
	}
)

type (
	// An Annotation is a provider-namespaced key/value pair attached to a
	// migration operation and consumed by later migration phases.
	Annotation struct {
		K, V string
	}

	// Annotations is an ordered annotation set carried by all operation
	// types. Writing a key that was already written overwrites its value
	// in place instead of appending a duplicate.
	Annotations struct {
		pairs []Annotation
	}
)

// Annotate records v under k, replacing the previous value if the key
// was already written.
func (a *Annotations) Annotate(k, v string) {
	for i := range a.pairs {
		if a.pairs[i].K == k {
			a.pairs[i].V = v
			return
		}
	}
	a.pairs = append(a.pairs, Annotation{K: k, V: v})
}

// Annotation returns the value recorded under k.
func (a *Annotations) Annotation(k string) (string, bool) {
	for i := range a.pairs {
		if a.pairs[i].K == k {
			return a.pairs[i].V, true
		}
	}
	return "", false
}

// All returns the annotations in insertion order.
func (a *Annotations) All() []Annotation {
	return a.pairs
}

type (
	// Differ is the interface implemented by the migration drivers for
	// comparing and diffing model elements. It groups the per-element
	// differs below; each method returns the ordered operation sequence
	// for migrating its element from state "from" to state "to".
	Differ interface {
		ModelDiffer
		PropertyDiffer
		KeyDiffer
		IndexDiffer
	}

	// ModelDiffer wraps the model-level diff methods. Either side of
	// ModelDiff may be nil, denoting "create from empty" and "drop
	// everything" respectively.
	ModelDiffer interface {
		ModelDiff(from, to *Model) ([]Operation, error)
		AddModel(to *Model) ([]Operation, error)
		RemoveModel(from *Model) ([]Operation, error)
	}

	// PropertyDiffer wraps the property-level diff methods. PropertyDiff
	// expects properties of matched entity types.
	PropertyDiffer interface {
		PropertyDiff(from, to *Property) ([]Operation, error)
		AddProperty(to *Property) ([]Operation, error)
		RemoveProperty(from *Property) ([]Operation, error)
	}

	// KeyDiffer wraps the key-level diff methods, covering both primary
	// keys and unique constraints.
	KeyDiffer interface {
		KeyDiff(from, to *Key) ([]Operation, error)
		AddKey(to *Key) ([]Operation, error)
		RemoveKey(from *Key) ([]Operation, error)
	}

	// IndexDiffer wraps the index-level diff methods.
	IndexDiffer interface {
		IndexDiff(from, to *Index) ([]Operation, error)
		AddIndex(to *Index) ([]Operation, error)
		RemoveIndex(from *Index) ([]Operation, error)
	}
)

// ExecQuerier wraps the standard sql.DB methods used by drivers.
type ExecQuerier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// operations.
func (*CreateTable) op()          {}
func (*DropTable) op()            {}
func (*AddColumn) op()            {}
func (*AlterColumn) op()          {}
func (*DropColumn) op()           {}
func (*AddPrimaryKey) op()        {}
func (*DropPrimaryKey) op()       {}
func (*AddUniqueConstraint) op()  {}
func (*DropUniqueConstraint) op() {}
func (*CreateIndex) op()          {}
func (*DropIndex) op()            {}
func (*AddSequence) op()          {}
func (*DropSequence) op()         {}
