// Copyright 2023-present The Modeldiff Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package postgres

import (
	"fmt"
	"strconv"

	"github.com/veiloq/modeldiff/internal/modelx"
	"github.com/veiloq/modeldiff/model"
)

// A diff wraps a generic differ with the PostgreSQL rules. It patches
// the generic operation stream with value-generation, computed-column
// and clustering annotations, and appends operations for the default
// sequence when its aggregate usage changed between the two models.
type diff struct {
	base model.Differ
	seq  *model.Sequence
}

// DefaultDiff provides basic diffing capabilities for PostgreSQL dialects.
// Note, it is recommended to call Open, create a new Driver and use its
// model.Differ when a database connection is available.
var DefaultDiff model.Differ = &diff{base: &modelx.Diff{}, seq: DefaultSequence()}

// Annotation keys the differ writes on operations. Their values are
// consumed by later migration phases when rendering the operation.
const (
	// AnnotationValueGeneration holds the name of the value-generation
	// strategy of a column (see GenerationIdentity).
	AnnotationValueGeneration = "postgres:value_generation_strategy"

	// AnnotationComputed holds the expression of a computed column.
	AnnotationComputed = "postgres:computed_expression"

	// AnnotationClustered holds the clustering flag of a key or an
	// index as a boolean string.
	AnnotationClustered = "postgres:clustered"
)

// Value generation strategies.
const (
	GenerationIdentity = "Identity"
	GenerationSequence = "Sequence"
	GenerationNone     = "None"
)

// DefaultSequenceName is the name of the sequence backing
// sequence-generated properties that do not name one explicitly.
const DefaultSequenceName = "DefaultSequence"

// DefaultSequence returns the descriptor of the default sequence. The
// same descriptor is carried by every add and remove operation a differ
// emits for it.
func DefaultSequence() *model.Sequence {
	return &model.Sequence{
		Name:      DefaultSequenceName,
		Start:     1,
		Increment: 10,
	}
}

type (
	// ValueGeneration describes how column values are generated on
	// insert. It can be declared on a single property, or on the model
	// to apply to every property that does not declare its own.
	ValueGeneration struct {
		model.Attr
		Strategy string // GenerationIdentity, GenerationSequence or GenerationNone.
	}

	// SequenceName names the sequence backing a sequence-generated
	// property. Declared on the model, it renames the default sequence.
	SequenceName struct {
		model.Attr
		N string
	}

	// Clustered describes the physical storage ordering of a key or an
	// index. An absent attribute and one set to false are distinct
	// states; absence leaves the decision to the server.
	Clustered struct {
		model.Attr
		V bool
	}
)

// ModelDiff returns the operations for migrating the model from its
// current state to the desired one. The generic operations are patched
// pair by pair, and the default-sequence operations are appended last.
// A nil side denotes an empty model.
func (d *diff) ModelDiff(from, to *model.Model) ([]model.Operation, error) {
	ops, err := d.base.ModelDiff(from, to)
	if err != nil {
		return nil, err
	}
	if ops, err = d.patchModel(ops, from, to); err != nil {
		return nil, err
	}
	switch fromSeq, toSeq := usesDefaultSequence(from), usesDefaultSequence(to); {
	case !fromSeq && toSeq:
		ops = append(ops, &model.AddSequence{S: d.seq})
	case fromSeq && !toSeq:
		ops = append(ops, &model.DropSequence{S: d.seq})
	}
	return ops, nil
}

// AddModel returns the operations for creating the model.
func (d *diff) AddModel(to *model.Model) ([]model.Operation, error) {
	return d.ModelDiff(nil, to)
}

// RemoveModel returns the operations for dropping the model.
func (d *diff) RemoveModel(from *model.Model) ([]model.Operation, error) {
	return d.ModelDiff(from, nil)
}

// PropertyDiff returns the operations for migrating a property from its
// current state to the desired one. A nil side delegates to AddProperty
// or RemoveProperty.
func (d *diff) PropertyDiff(from, to *model.Property) ([]model.Operation, error) {
	switch {
	case from == nil && to == nil:
		return nil, nil
	case from == nil:
		return d.AddProperty(to)
	case to == nil:
		return d.RemoveProperty(from)
	}
	ops, err := d.base.PropertyDiff(from, to)
	if err != nil {
		return nil, err
	}
	return d.patchProperty(ops, from, to)
}

// AddProperty returns the operations for creating a property, with the
// value-generation and computed-expression annotations stamped on the
// add operation when they apply.
func (d *diff) AddProperty(to *model.Property) ([]model.Operation, error) {
	ops, err := d.base.AddProperty(to)
	if err != nil {
		return nil, err
	}
	add, err := addColumnOp(ops, to)
	if err != nil {
		return nil, err
	}
	if add == nil {
		return nil, fmt.Errorf("postgres: missing add operation for column %q", to.Column)
	}
	stampProperty(add, to)
	return ops, nil
}

// RemoveProperty returns the operations for dropping a property.
func (d *diff) RemoveProperty(from *model.Property) ([]model.Operation, error) {
	return d.base.RemoveProperty(from)
}

// KeyDiff returns the operations for migrating a key (primary key or
// unique constraint) from its current state to the desired one. A nil
// side delegates to AddKey or RemoveKey.
func (d *diff) KeyDiff(from, to *model.Key) ([]model.Operation, error) {
	switch {
	case from == nil && to == nil:
		return nil, nil
	case from == nil:
		return d.AddKey(to)
	case to == nil:
		return d.RemoveKey(from)
	}
	ops, err := d.base.KeyDiff(from, to)
	if err != nil {
		return nil, err
	}
	return d.patchKey(ops, from, to)
}

// AddKey returns the operations for creating a key, with the clustering
// annotation stamped on the add operation when the key declares the
// flag.
func (d *diff) AddKey(to *model.Key) ([]model.Operation, error) {
	ops, err := d.base.AddKey(to)
	if err != nil {
		return nil, err
	}
	add, err := addKeyOp(ops, to)
	if err != nil {
		return nil, err
	}
	if add == nil {
		return nil, fmt.Errorf("postgres: missing add operation for key %q", to.Name)
	}
	stampClustered(add, to.Attrs)
	return ops, nil
}

// RemoveKey returns the operations for dropping a key.
func (d *diff) RemoveKey(from *model.Key) ([]model.Operation, error) {
	return d.base.RemoveKey(from)
}

// IndexDiff returns the operations for migrating an index from its
// current state to the desired one. A nil side delegates to AddIndex or
// RemoveIndex.
func (d *diff) IndexDiff(from, to *model.Index) ([]model.Operation, error) {
	switch {
	case from == nil && to == nil:
		return nil, nil
	case from == nil:
		return d.AddIndex(to)
	case to == nil:
		return d.RemoveIndex(from)
	}
	ops, err := d.base.IndexDiff(from, to)
	if err != nil {
		return nil, err
	}
	return d.patchIndex(ops, from, to)
}

// AddIndex returns the operations for creating an index, with the
// clustering annotation stamped on the create operation when the index
// declares the flag.
func (d *diff) AddIndex(to *model.Index) ([]model.Operation, error) {
	ops, err := d.base.AddIndex(to)
	if err != nil {
		return nil, err
	}
	create, err := createIndexOp(ops, to)
	if err != nil {
		return nil, err
	}
	if create == nil {
		return nil, fmt.Errorf("postgres: missing create operation for index %q", to.Name)
	}
	stampClustered(create, to.Attrs)
	return ops, nil
}

// RemoveIndex returns the operations for dropping an index.
func (d *diff) RemoveIndex(from *model.Index) ([]model.Operation, error) {
	return d.base.RemoveIndex(from)
}

// patchModel applies the property, key and index rules to the generic
// operation stream, entity pair by entity pair.
func (d *diff) patchModel(ops []model.Operation, from, to *model.Model) ([]model.Operation, error) {
	if from == nil {
		from = &model.Model{}
	}
	if to == nil {
		to = &model.Model{}
	}
	var err error
	for _, e2 := range to.Entities {
		e1, ok := from.EntityType(e2.Name)
		if !ok {
			if ops, err = d.patchAdded(ops, e2); err != nil {
				return nil, err
			}
			continue
		}
		if ops, err = d.patchEntity(ops, e1, e2); err != nil {
			return nil, err
		}
	}
	return ops, nil
}

// patchEntity applies the patch rules to the operations of a matched
// entity-type pair.
func (d *diff) patchEntity(ops []model.Operation, from, to *model.EntityType) ([]model.Operation, error) {
	var err error
	for _, p2 := range to.Properties {
		p1, ok := from.Property(p2.Name)
		if !ok {
			add, err := addColumnOp(ops, p2)
			if err != nil {
				return nil, err
			}
			if add != nil {
				stampProperty(add, p2)
			}
			continue
		}
		if ops, err = d.patchProperty(ops, p1, p2); err != nil {
			return nil, err
		}
	}
	switch pk1, pk2 := from.PrimaryKey, to.PrimaryKey; {
	case pk2 == nil:
	case pk1 == nil:
		add, err := addKeyOp(ops, pk2)
		if err != nil {
			return nil, err
		}
		if add != nil {
			stampClustered(add, pk2.Attrs)
		}
	default:
		if ops, err = d.patchKey(ops, pk1, pk2); err != nil {
			return nil, err
		}
	}
	for _, k2 := range to.Keys {
		k1, ok := from.Key(k2.Name)
		if !ok {
			add, err := addKeyOp(ops, k2)
			if err != nil {
				return nil, err
			}
			if add != nil {
				stampClustered(add, k2.Attrs)
			}
			continue
		}
		if ops, err = d.patchKey(ops, k1, k2); err != nil {
			return nil, err
		}
	}
	for _, i2 := range to.Indexes {
		i1, ok := from.Index(i2.Name)
		if !ok {
			create, err := createIndexOp(ops, i2)
			if err != nil {
				return nil, err
			}
			if create != nil {
				stampClustered(create, i2.Attrs)
			}
			continue
		}
		if ops, err = d.patchIndex(ops, i1, i2); err != nil {
			return nil, err
		}
	}
	return ops, nil
}

// patchAdded stamps the add operations the generic differ planned for
// the keys and indexes of a new entity type. Its columns and primary
// key travel inside the create operation and need no stamping.
func (d *diff) patchAdded(ops []model.Operation, e *model.EntityType) ([]model.Operation, error) {
	for _, k := range e.Keys {
		add, err := addKeyOp(ops, k)
		if err != nil {
			return nil, err
		}
		if add != nil {
			stampClustered(add, k.Attrs)
		}
	}
	for _, i := range e.Indexes {
		create, err := createIndexOp(ops, i)
		if err != nil {
			return nil, err
		}
		if create != nil {
			stampClustered(create, i.Attrs)
		}
	}
	return ops, nil
}

// patchProperty applies the value-generation and computed-expression
// rules to the operations of a matched property pair. A strategy or
// expression change is invisible to the generic differ and turns into
// an alter operation here if one was not already planned.
func (d *diff) patchProperty(ops []model.Operation, from, to *model.Property) ([]model.Operation, error) {
	alter, err := alterColumnOp(ops, to)
	if err != nil {
		return nil, err
	}
	x1, ok1 := computed(from)
	x2, ok2 := computed(to)
	if alter == nil && (ok1 != ok2 || x1 != x2 || strategy(from) != strategy(to)) {
		s, t := modelx.TableIdent(from.Entity)
		alter = &model.AlterColumn{Schema: s, Table: t, From: from, To: to}
		ops = append(ops, alter)
	}
	if alter != nil {
		stampProperty(alter, to)
	}
	return ops, nil
}

// patchKey applies the clustering rules to the operations of a matched
// key pair. A clustering change without a planned add operation drops
// and recreates the key, since the flag cannot be altered in place.
func (d *diff) patchKey(ops []model.Operation, from, to *model.Key) ([]model.Operation, error) {
	add, err := addKeyOp(ops, to)
	if err != nil {
		return nil, err
	}
	switch {
	case add == nil && clusteredChanged(from.Attrs, to.Attrs):
		if !hasKeyDrop(ops, from) {
			drop, err := d.RemoveKey(from)
			if err != nil {
				return nil, err
			}
			ops = append(ops, drop...)
		}
		adds, err := d.AddKey(to)
		if err != nil {
			return nil, err
		}
		ops = append(ops, adds...)
	case add != nil:
		stampClustered(add, to.Attrs)
	}
	return ops, nil
}

// patchIndex applies the clustering rules to the operations of a
// matched index pair. Unlike keys, recreating an index rebuilds its
// full definition into a fresh create operation, as no planned
// operation exists to reuse.
func (d *diff) patchIndex(ops []model.Operation, from, to *model.Index) ([]model.Operation, error) {
	create, err := createIndexOp(ops, to)
	if err != nil {
		return nil, err
	}
	if create == nil && clusteredChanged(from.Attrs, to.Attrs) {
		drop, err := d.RemoveIndex(from)
		if err != nil {
			return nil, err
		}
		create = modelx.CreateIndexOp(to)
		ops = append(append(ops, drop...), create)
	}
	if create != nil {
		stampClustered(create, to.Attrs)
	}
	return ops, nil
}

// stampProperty records the value-generation and computed-expression
// annotations of the property on the operation.
func stampProperty(op model.Operation, p *model.Property) {
	if strategy(p) == GenerationIdentity {
		op.Annotate(AnnotationValueGeneration, GenerationIdentity)
	}
	if x, ok := computed(p); ok {
		op.Annotate(AnnotationComputed, x)
	}
}

// stampClustered records the clustering annotation on the operation if
// the attributes declare the flag.
func stampClustered(op model.Operation, attrs []model.Attr) {
	var c Clustered
	if modelx.Has(attrs, &c) {
		op.Annotate(AnnotationClustered, strconv.FormatBool(c.V))
	}
}

// strategy resolves the effective value-generation strategy of the
// property. An explicit strategy on the property wins, then an explicit
// strategy on the model, and finally integer primary-key members that
// generate their value on insert default to identity generation.
func strategy(p *model.Property) string {
	var g ValueGeneration
	if modelx.Has(p.Attrs, &g) {
		return g.Strategy
	}
	if e := p.Entity; e != nil && e.Model != nil && modelx.Has(e.Model.Attrs, &g) {
		return g.Strategy
	}
	if p.ValueGenerated && p.InPrimaryKey() && isInteger(p.Type) {
		return GenerationIdentity
	}
	return ""
}

// computed returns the computed expression of the property.
func computed(p *model.Property) (string, bool) {
	var x model.GeneratedExpr
	if modelx.Has(p.Attrs, &x) {
		return x.Expr, true
	}
	return "", false
}

// usesDefaultSequence reports if the model relies on the default
// sequence: it declares no sequence name of its own, and either the
// model-wide strategy is sequence generation or at least one property
// resolves to it without naming a sequence explicitly.
func usesDefaultSequence(m *model.Model) bool {
	if m == nil {
		return false
	}
	var sn SequenceName
	if modelx.Has(m.Attrs, &sn) {
		return false
	}
	var g ValueGeneration
	if modelx.Has(m.Attrs, &g) && g.Strategy == GenerationSequence {
		return true
	}
	for _, e := range m.Entities {
		for _, p := range e.Properties {
			var psn SequenceName
			if strategy(p) == GenerationSequence && !modelx.Has(p.Attrs, &psn) {
				return true
			}
		}
	}
	return false
}

// clusteredChanged reports if the clustering flag differs between the
// two attribute lists. An absent flag and a flag set to false are
// distinct states.
func clusteredChanged(from, to []model.Attr) bool {
	var c1, c2 Clustered
	has1, has2 := modelx.Has(from, &c1), modelx.Has(to, &c2)
	return has1 != has2 || c1.V != c2.V
}

// isInteger reports if the type is an integer type.
func isInteger(t model.Type) bool {
	_, ok := t.(*model.IntegerType)
	return ok
}

// addColumnOp returns the add operation the generic differ planned for
// the property, or nil if it did not plan one. More than one add for
// the same property is a contract violation.
func addColumnOp(ops []model.Operation, p *model.Property) (*model.AddColumn, error) {
	var add *model.AddColumn
	for _, op := range ops {
		a, ok := op.(*model.AddColumn)
		if !ok || a.P != p {
			continue
		}
		if add != nil {
			return nil, fmt.Errorf("postgres: duplicate add operations for column %q", p.Column)
		}
		add = a
	}
	return add, nil
}

// alterColumnOp returns the alter operation the generic differ planned
// for the property, or nil if it did not plan one. More than one alter
// for the same property is a contract violation.
func alterColumnOp(ops []model.Operation, to *model.Property) (*model.AlterColumn, error) {
	var alter *model.AlterColumn
	for _, op := range ops {
		a, ok := op.(*model.AlterColumn)
		if !ok || a.To != to {
			continue
		}
		if alter != nil {
			return nil, fmt.Errorf("postgres: duplicate alter operations for column %q", to.Column)
		}
		alter = a
	}
	return alter, nil
}

// addKeyOp returns the add operation the generic differ planned for the
// key, or nil if it did not plan one. More than one add for the same
// key is a contract violation.
func addKeyOp(ops []model.Operation, k *model.Key) (model.Operation, error) {
	var add model.Operation
	for _, op := range ops {
		var match bool
		switch op := op.(type) {
		case *model.AddPrimaryKey:
			match = op.K == k
		case *model.AddUniqueConstraint:
			match = op.K == k
		}
		if !match {
			continue
		}
		if add != nil {
			return nil, fmt.Errorf("postgres: duplicate add operations for key %q", k.Name)
		}
		add = op
	}
	return add, nil
}

// createIndexOp returns the create operation planned for the index, or
// nil if none was planned. More than one create for the same index is a
// contract violation.
func createIndexOp(ops []model.Operation, i *model.Index) (*model.CreateIndex, error) {
	s, t := modelx.TableIdent(i.Entity)
	var create *model.CreateIndex
	for _, op := range ops {
		c, ok := op.(*model.CreateIndex)
		if !ok || c.Schema != s || c.Table != t || c.Name != i.Name {
			continue
		}
		if create != nil {
			return nil, fmt.Errorf("postgres: duplicate create operations for index %q", i.Name)
		}
		create = c
	}
	return create, nil
}

// hasKeyDrop reports if a drop operation for the key kind and name is
// already planned.
func hasKeyDrop(ops []model.Operation, k *model.Key) bool {
	s, t := modelx.TableIdent(k.Entity)
	for _, op := range ops {
		switch op := op.(type) {
		case *model.DropPrimaryKey:
			if k.IsPrimary() && op.Schema == s && op.Table == t && op.Name == k.Name {
				return true
			}
		case *model.DropUniqueConstraint:
			if !k.IsPrimary() && op.Schema == s && op.Table == t && op.Name == k.Name {
				return true
			}
		}
	}
	return false
}
